package service

import (
	"context"
	"fmt"
	"time"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/dto"
	"golang-sentiment-panel/internal/pipeline/repository"
	"golang-sentiment-panel/pkg/logger"
	"golang-sentiment-panel/pkg/utils"
)

// AggregationService reduces scored articles to mean sentiment per
// (entity, calendar day). An article attributed to several tickers enters
// each ticker's aggregate at full weight (fan-out).
type AggregationService interface {
	Aggregate(ctx context.Context, from, to time.Time) (*dto.SentimentAggregates, error)
}

// NewAggregationService creates a new AggregationService.
func NewAggregationService(scoredRepo repository.ScoredArticleRepository, rules *KeywordRuleTable, log *logger.Logger) AggregationService {
	return &aggregationService{
		scoredRepo: scoredRepo,
		rules:      rules,
		logger:     log,
	}
}

type aggregationService struct {
	scoredRepo repository.ScoredArticleRepository
	rules      *KeywordRuleTable
	logger     *logger.Logger
}

func (s *aggregationService) Aggregate(ctx context.Context, from, to time.Time) (*dto.SentimentAggregates, error) {
	rows, err := s.scoredRepo.FindScoredInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load scored articles: %w", err)
	}

	firmSums := make(map[dto.EntityDate]float64)
	firmCounts := make(map[dto.EntityDate]int)
	macroSums := make(map[string]float64)
	macroCounts := make(map[string]int)

	dropped := 0
	for _, row := range rows {
		if row.PublishedAt == nil {
			continue
		}
		date := utils.DateBucket(*row.PublishedAt)

		classifications := s.rules.Classify(row.Headline, row.Body, row.URL, row.TickerTags)
		if len(classifications) == 0 {
			dropped++
			continue
		}

		for _, c := range classifications {
			switch c.Category {
			case entity.CategoryFirm:
				key := dto.EntityDate{Entity: c.Ticker, Date: date}
				firmSums[key] += row.Sentiment
				firmCounts[key]++
			case entity.CategoryMacro:
				macroSums[date] += row.Sentiment
				macroCounts[date]++
			}
		}
	}

	agg := &dto.SentimentAggregates{
		Firm:  make(map[dto.EntityDate]float64, len(firmSums)),
		Macro: make(map[string]float64, len(macroSums)),
	}
	for key, sum := range firmSums {
		agg.Firm[key] = sum / float64(firmCounts[key])
	}
	for date, sum := range macroSums {
		agg.Macro[date] = sum / float64(macroCounts[date])
	}

	s.logger.Info("Sentiment aggregation complete",
		logger.IntField("scored_articles", len(rows)),
		logger.IntField("firm_buckets", len(agg.Firm)),
		logger.IntField("macro_buckets", len(agg.Macro)),
		logger.IntField("unclassified", dropped),
	)
	return agg, nil
}
