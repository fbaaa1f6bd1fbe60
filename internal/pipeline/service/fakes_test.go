package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/dto"
	"golang-sentiment-panel/pkg/logger"

	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	return log
}

// fakeArticleRepo is an in-memory ArticleRepository keyed by canonical key.
type fakeArticleRepo struct {
	mu     sync.Mutex
	byKey  map[string]entity.Article
	nextID uint64
}

func newFakeArticleRepo() *fakeArticleRepo {
	return &fakeArticleRepo{byKey: make(map[string]entity.Article)}
}

func (r *fakeArticleRepo) FilterExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := make(map[string]bool, len(keys))
	for _, key := range keys {
		if _, ok := r.byKey[key]; ok {
			existing[key] = true
		}
	}
	return existing, nil
}

func (r *fakeArticleRepo) CreateIgnoreConflict(ctx context.Context, articles []entity.Article) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var inserted int64
	for _, article := range articles {
		if _, ok := r.byKey[article.CanonicalKey]; ok {
			continue
		}
		r.nextID++
		article.ID = r.nextID
		r.byKey[article.CanonicalKey] = article
		inserted++
	}
	return inserted, nil
}

func (r *fakeArticleRepo) CountAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byKey)), nil
}

// fakeScoredRepo is an in-memory ScoredArticleRepository over a fixed article
// ledger.
type fakeScoredRepo struct {
	mu       sync.Mutex
	articles []entity.Article
	scored   map[uint64]entity.ScoredArticle
}

func newFakeScoredRepo(articles []entity.Article) *fakeScoredRepo {
	sorted := make([]entity.Article, len(articles))
	copy(sorted, articles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &fakeScoredRepo{
		articles: sorted,
		scored:   make(map[uint64]entity.ScoredArticle),
	}
}

func (r *fakeScoredRepo) FindUnscored(ctx context.Context, afterID uint64, limit int) ([]entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var batch []entity.Article
	for _, article := range r.articles {
		if article.ID <= afterID {
			continue
		}
		if _, ok := r.scored[article.ID]; ok {
			continue
		}
		batch = append(batch, article)
		if len(batch) == limit {
			break
		}
	}
	return batch, nil
}

func (r *fakeScoredRepo) SaveBatch(ctx context.Context, scored []entity.ScoredArticle) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var inserted int64
	for _, row := range scored {
		if _, ok := r.scored[row.ArticleID]; ok {
			continue
		}
		r.scored[row.ArticleID] = row
		inserted++
	}
	return inserted, nil
}

func (r *fakeScoredRepo) FindScoredInRange(ctx context.Context, from, to time.Time) ([]dto.ScoredNews, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []dto.ScoredNews
	for _, article := range r.articles {
		score, ok := r.scored[article.ID]
		if !ok || article.PublishedAt == nil {
			continue
		}
		if article.PublishedAt.Before(from) || article.PublishedAt.After(to) {
			continue
		}
		rows = append(rows, dto.ScoredNews{
			ArticleID:   article.ID,
			Sentiment:   score.Sentiment,
			Category:    score.Category,
			Headline:    article.Headline,
			Body:        article.Body,
			URL:         article.URL,
			TickerTags:  article.TickerTags,
			PublishedAt: article.PublishedAt,
		})
	}
	return rows, nil
}

// fakeScorer scores by headline lookup and can be told to fail for specific
// headlines.
type fakeScorer struct {
	mu       sync.Mutex
	scores   map[string]float64
	failing  map[string]bool
	calls    int
}

func newFakeScorer() *fakeScorer {
	return &fakeScorer{
		scores:  make(map[string]float64),
		failing: make(map[string]bool),
	}
}

func (s *fakeScorer) Score(ctx context.Context, headline, body string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failing[headline] {
		return 0, fmt.Errorf("scoring backend unavailable")
	}
	if score, ok := s.scores[headline]; ok {
		return score, nil
	}
	return 0.5, nil
}

func (s *fakeScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakePriceRepo is an in-memory PriceRepository.
type fakePriceRepo struct {
	mu   sync.Mutex
	bars []entity.PriceBar
}

func (r *fakePriceRepo) FindBars(ctx context.Context, tickers []string, from, to time.Time) ([]entity.PriceBar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		wanted[t] = true
	}
	var found []entity.PriceBar
	for _, bar := range r.bars {
		if !wanted[bar.Ticker] || bar.Date.Before(from) || bar.Date.After(to) {
			continue
		}
		found = append(found, bar)
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Ticker != found[j].Ticker {
			return found[i].Ticker < found[j].Ticker
		}
		return found[i].Date.Before(found[j].Date)
	})
	return found, nil
}

func (r *fakePriceRepo) SaveBatch(ctx context.Context, bars []entity.PriceBar) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := make(map[string]bool, len(r.bars))
	for _, bar := range r.bars {
		existing[bar.Ticker+bar.Date.Format("2006-01-02")] = true
	}
	var inserted int64
	for _, bar := range bars {
		key := bar.Ticker + bar.Date.Format("2006-01-02")
		if existing[key] {
			continue
		}
		existing[key] = true
		r.bars = append(r.bars, bar)
		inserted++
	}
	return inserted, nil
}

// fakePanelRepo is an in-memory PanelRepository.
type fakePanelRepo struct {
	mu   sync.Mutex
	rows []entity.PanelRow
}

func (r *fakePanelRepo) ReplaceRows(ctx context.Context, rows []entity.PanelRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	replaced := make(map[string]bool)
	for _, row := range rows {
		replaced[row.Ticker] = true
	}
	var kept []entity.PanelRow
	for _, row := range r.rows {
		if !replaced[row.Ticker] {
			kept = append(kept, row)
		}
	}
	r.rows = append(kept, rows...)
	return nil
}

func (r *fakePanelRepo) FindAll(ctx context.Context) ([]entity.PanelRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([]entity.PanelRow, len(r.rows))
	copy(rows, r.rows)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Ticker != rows[j].Ticker {
			return rows[i].Ticker < rows[j].Ticker
		}
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows, nil
}
