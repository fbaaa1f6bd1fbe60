package service

import (
	"context"
	"testing"
	"time"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/dto"
	"golang-sentiment-panel/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vnTime(day, hour int) *time.Time {
	ts := time.Date(2025, 6, day, hour, 0, 0, 0, utils.GetVNTimeLocation())
	return &ts
}

func scoredLedger(t *testing.T, articles []entity.Article, sentiments []float64) *fakeScoredRepo {
	t.Helper()
	require.Equal(t, len(articles), len(sentiments))
	repo := newFakeScoredRepo(articles)
	for i, article := range articles {
		_, err := repo.SaveBatch(context.Background(), []entity.ScoredArticle{
			{ArticleID: article.ID, Sentiment: sentiments[i], ScoredAt: time.Now()},
		})
		require.NoError(t, err)
	}
	return repo
}

func TestAggregateComputesMeanPerFirmDay(t *testing.T) {
	articles := []entity.Article{
		{ID: 1, Headline: "Hòa Phát tăng sản lượng", PublishedAt: vnTime(2, 9)},
		{ID: 2, Headline: "Hòa Phát mở nhà máy mới", PublishedAt: vnTime(2, 11)},
		{ID: 3, Headline: "Hòa Phát bị phạt thuế", PublishedAt: vnTime(2, 15)},
	}
	repo := scoredLedger(t, articles, []float64{0.5, 0.4, -0.2})
	svc := NewAggregationService(repo, newTestRuleTable(), newTestLogger(t))

	agg, err := svc.Aggregate(context.Background(), *vnTime(1, 0), *vnTime(3, 0))
	require.NoError(t, err)

	key := dto.EntityDate{Entity: "HPG", Date: "2025-06-02"}
	require.Contains(t, agg.Firm, key)
	assert.InDelta(t, 0.2333333, agg.Firm[key], 1e-6)
}

func TestAggregateLeavesEmptyBucketsAbsent(t *testing.T) {
	articles := []entity.Article{
		{ID: 1, Headline: "Hòa Phát tăng sản lượng", PublishedAt: vnTime(2, 9)},
	}
	repo := scoredLedger(t, articles, []float64{0.5})
	svc := NewAggregationService(repo, newTestRuleTable(), newTestLogger(t))

	agg, err := svc.Aggregate(context.Background(), *vnTime(1, 0), *vnTime(5, 0))
	require.NoError(t, err)

	assert.Len(t, agg.Firm, 1)
	assert.NotContains(t, agg.Firm, dto.EntityDate{Entity: "HPG", Date: "2025-06-03"})
	assert.NotContains(t, agg.Firm, dto.EntityDate{Entity: "VNM", Date: "2025-06-02"})
	assert.Empty(t, agg.Macro)
}

func TestAggregateFansOutMultiTickerArticles(t *testing.T) {
	articles := []entity.Article{
		{ID: 1, Headline: "Hòa Phát và Vinamilk cùng bứt phá", PublishedAt: vnTime(2, 9)},
	}
	repo := scoredLedger(t, articles, []float64{0.7})
	svc := NewAggregationService(repo, newTestRuleTable(), newTestLogger(t))

	agg, err := svc.Aggregate(context.Background(), *vnTime(1, 0), *vnTime(3, 0))
	require.NoError(t, err)

	// The article enters both tickers' aggregates at full weight.
	assert.InDelta(t, 0.7, agg.Firm[dto.EntityDate{Entity: "HPG", Date: "2025-06-02"}], 1e-9)
	assert.InDelta(t, 0.7, agg.Firm[dto.EntityDate{Entity: "VNM", Date: "2025-06-02"}], 1e-9)
}

func TestAggregateBuildsMacroSeries(t *testing.T) {
	articles := []entity.Article{
		{ID: 1, Headline: "VN-Index vượt mốc 1300 điểm", PublishedAt: vnTime(2, 9)},
		{ID: 2, Headline: "Lãi suất điều hành giảm", PublishedAt: vnTime(2, 14)},
	}
	repo := scoredLedger(t, articles, []float64{0.6, 0.2})
	svc := NewAggregationService(repo, newTestRuleTable(), newTestLogger(t))

	agg, err := svc.Aggregate(context.Background(), *vnTime(1, 0), *vnTime(3, 0))
	require.NoError(t, err)

	require.Contains(t, agg.Macro, "2025-06-02")
	assert.InDelta(t, 0.4, agg.Macro["2025-06-02"], 1e-9)
	assert.Empty(t, agg.Firm)
}

func TestAggregateDropsUnclassifiedArticles(t *testing.T) {
	articles := []entity.Article{
		{ID: 1, Headline: "Dự báo thời tiết cuối tuần", PublishedAt: vnTime(2, 9)},
	}
	repo := scoredLedger(t, articles, []float64{0.9})
	svc := NewAggregationService(repo, newTestRuleTable(), newTestLogger(t))

	agg, err := svc.Aggregate(context.Background(), *vnTime(1, 0), *vnTime(3, 0))
	require.NoError(t, err)

	assert.Empty(t, agg.Firm)
	assert.Empty(t, agg.Macro)
}

func TestAggregateBucketsByVietnamCalendarDay(t *testing.T) {
	// 18:00 UTC on June 2 is already 01:00 on June 3 in Vietnam.
	late := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	articles := []entity.Article{
		{ID: 1, Headline: "Hòa Phát chốt quyền cổ tức", PublishedAt: &late},
	}
	repo := scoredLedger(t, articles, []float64{0.3})
	svc := NewAggregationService(repo, newTestRuleTable(), newTestLogger(t))

	agg, err := svc.Aggregate(context.Background(), *vnTime(1, 0), *vnTime(4, 0))
	require.NoError(t, err)

	assert.Contains(t, agg.Firm, dto.EntityDate{Entity: "HPG", Date: "2025-06-03"})
	assert.NotContains(t, agg.Firm, dto.EntityDate{Entity: "HPG", Date: "2025-06-02"})
}
