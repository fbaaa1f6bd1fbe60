package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/dto"
	"golang-sentiment-panel/internal/pipeline/errs"
	"golang-sentiment-panel/internal/pipeline/repository"
	"golang-sentiment-panel/pkg/checkpoint"
	"golang-sentiment-panel/pkg/logger"
	"golang-sentiment-panel/pkg/utils"
)

// ScoringService scores every article exactly once across repeated runs.
// The work set is the explicit set difference between the article ledger and
// the scored set, so re-running after an interruption resumes where the last
// committed batch left off and produces the same final result as an
// uninterrupted run.
type ScoringService interface {
	Run(ctx context.Context) (*dto.ScoreResult, error)
}

// NewScoringService creates a new ScoringService. The checkpoint store is
// passed by reference; concurrent pipeline instances must use distinct
// stores.
func NewScoringService(
	scoredRepo repository.ScoredArticleRepository,
	scorer repository.SentimentScorer,
	rules *KeywordRuleTable,
	ckpt *checkpoint.Store,
	log *logger.Logger,
	batchSize int,
	maxConcurrent int,
) ScoringService {
	return &scoringService{
		scoredRepo:    scoredRepo,
		scorer:        scorer,
		rules:         rules,
		ckpt:          ckpt,
		logger:        log,
		batchSize:     batchSize,
		maxConcurrent: maxConcurrent,
	}
}

type scoringService struct {
	scoredRepo    repository.ScoredArticleRepository
	scorer        repository.SentimentScorer
	rules         *KeywordRuleTable
	ckpt          *checkpoint.Store
	logger        *logger.Logger
	batchSize     int
	maxConcurrent int
}

func (s *scoringService) Run(ctx context.Context) (*dto.ScoreResult, error) {
	state, err := s.ckpt.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring checkpoint: %w", err)
	}
	if state.LastArticleID > 0 {
		s.logger.Info("Resuming after previous scoring run",
			logger.Field("last_article_id", state.LastArticleID),
			logger.IntField("scored_total", state.ScoredTotal),
		)
	}

	result := &dto.ScoreResult{}

	// Always walk the full set difference from the start: articles skipped
	// by an earlier run (scoring failures) are still unscored and get
	// retried here.
	var cursor uint64
	for {
		if !utils.ShouldContinue(ctx, s.logger) {
			return result, ctx.Err()
		}

		batch, err := s.scoredRepo.FindUnscored(ctx, cursor, s.batchSize)
		if err != nil {
			return result, fmt.Errorf("failed to find unscored articles: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		scored := s.scoreBatch(ctx, batch, result)
		if len(scored) > 0 {
			inserted, err := s.scoredRepo.SaveBatch(ctx, scored)
			if err != nil {
				return result, fmt.Errorf("failed to persist scored batch: %w", err)
			}
			result.ScoredCount += int(inserted)
			state.ScoredTotal += int(inserted)
		}

		// The batch is durable; commit progress. A crash before this point
		// loses only the current batch, which the set difference re-does.
		cursor = batch[len(batch)-1].ID
		state.LastArticleID = cursor
		state.UpdatedAt = time.Now()
		if err := s.ckpt.Commit(state); err != nil {
			return result, fmt.Errorf("failed to commit scoring checkpoint: %w", err)
		}
	}

	s.logger.Info("Scoring run complete",
		logger.IntField("scored", result.ScoredCount),
		logger.IntField("skipped", result.SkippedCount),
	)
	return result, nil
}

// scoreBatch scores one batch with bounded parallelism. Scoring one article
// has no data dependency on another, so articles within a batch are
// dispatched concurrently; persistence stays single-writer in the caller.
func (s *scoringService) scoreBatch(ctx context.Context, batch []entity.Article, result *dto.ScoreResult) []entity.ScoredArticle {
	var (
		scored []entity.ScoredArticle
		wg     sync.WaitGroup
		mu     sync.Mutex
	)
	semaphore := make(chan struct{}, s.maxConcurrent)

	for _, article := range batch {
		if !utils.ShouldContinue(ctx, s.logger) {
			break
		}
		article := article
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			row, err := s.scoreArticle(ctx, article)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Per-item failure: log, skip, retry on the next run.
				s.logger.Error("Skipping article", logger.ErrorField(err))
				result.SkippedCount++
				return
			}
			scored = append(scored, row)
		})
	}

	wg.Wait()

	sort.Slice(scored, func(i, j int) bool { return scored[i].ArticleID < scored[j].ArticleID })
	return scored
}

func (s *scoringService) scoreArticle(ctx context.Context, article entity.Article) (entity.ScoredArticle, error) {
	if strings.TrimSpace(article.Headline) == "" && strings.TrimSpace(article.Body) == "" {
		return entity.ScoredArticle{}, &errs.ScoringError{
			ArticleID: article.ID,
			Err:       fmt.Errorf("article has no scoreable text"),
		}
	}

	sentiment, err := s.scorer.Score(ctx, article.Headline, article.Body)
	if err != nil {
		return entity.ScoredArticle{}, &errs.ScoringError{ArticleID: article.ID, Err: err}
	}

	var category string
	if classifications := s.rules.Classify(article.Headline, article.Body, article.URL, article.TickerTags); len(classifications) > 0 {
		category = classifications[0].Category
	}

	return entity.ScoredArticle{
		ArticleID: article.ID,
		Sentiment: sentiment,
		Category:  category,
		ScoredAt:  time.Now(),
	}, nil
}
