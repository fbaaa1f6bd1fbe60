package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/config"
	"golang-sentiment-panel/internal/pipeline/dto"
	"golang-sentiment-panel/internal/pipeline/repository"
	"golang-sentiment-panel/internal/pipeline/source"
	"golang-sentiment-panel/pkg/common"
	"golang-sentiment-panel/pkg/logger"
	"golang-sentiment-panel/pkg/redis"
	"golang-sentiment-panel/pkg/telegram"
	"golang-sentiment-panel/pkg/utils"
)

// PipelineService sequences the pipeline stages. Stages depend only on the
// output contract of the stage before them; aborting between stages leaves
// the article store and the last committed checkpoint in a consistent,
// previously valid state.
type PipelineService interface {
	Run(ctx context.Context) (*dto.RunResult, error)
	FetchAndIngest(ctx context.Context) (int, *dto.IngestResult, error)
	Score(ctx context.Context) (*dto.ScoreResult, error)
	BuildPanel(ctx context.Context) (*dto.BuildResult, error)
}

// NewPipelineService creates a new PipelineService. The notifier may be nil
// when Telegram is not configured.
func NewPipelineService(
	cfg *config.Config,
	log *logger.Logger,
	newsSource source.NewsSource,
	ingestionSvc IngestionService,
	scoringSvc ScoringService,
	aggregationSvc AggregationService,
	priceSvc PriceService,
	panelSvc PanelService,
	runRepo repository.PipelineRunRepository,
	redisClient *redis.Client,
	notifier telegram.Notifier,
) PipelineService {
	return &pipelineService{
		cfg:            cfg,
		logger:         log,
		newsSource:     newsSource,
		ingestionSvc:   ingestionSvc,
		scoringSvc:     scoringSvc,
		aggregationSvc: aggregationSvc,
		priceSvc:       priceSvc,
		panelSvc:       panelSvc,
		runRepo:        runRepo,
		redisClient:    redisClient,
		notifier:       notifier,
	}
}

type pipelineService struct {
	cfg            *config.Config
	logger         *logger.Logger
	newsSource     source.NewsSource
	ingestionSvc   IngestionService
	scoringSvc     ScoringService
	aggregationSvc AggregationService
	priceSvc       PriceService
	panelSvc       PanelService
	runRepo        repository.PipelineRunRepository
	redisClient    *redis.Client
	notifier       telegram.Notifier
}

func (s *pipelineService) Run(ctx context.Context) (*dto.RunResult, error) {
	acquired, err := s.acquireRunLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("another pipeline run holds the lock")
	}
	defer s.releaseRunLock()

	started := time.Now()
	run := &entity.PipelineRun{
		Status:    entity.RunStatusRunning,
		StartedAt: started,
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record pipeline run: %w", err)
	}

	result := &dto.RunResult{}

	fetched, ingestRes, err := s.FetchAndIngest(ctx)
	if err != nil {
		return nil, s.finishRun(run, result, started, err)
	}
	result.FetchedCount = fetched
	result.Ingest = ingestRes

	scoreRes, err := s.Score(ctx)
	if err != nil {
		return nil, s.finishRun(run, result, started, err)
	}
	result.Score = scoreRes

	buildRes, err := s.BuildPanel(ctx)
	if err != nil {
		return nil, s.finishRun(run, result, started, err)
	}
	result.Build = buildRes

	if err := s.finishRun(run, result, started, nil); err != nil {
		return nil, err
	}
	s.notify(result)
	return result, nil
}

func (s *pipelineService) FetchAndIngest(ctx context.Context) (int, *dto.IngestResult, error) {
	raws, err := s.newsSource.Fetch(ctx, s.cfg.TickerCodes())
	if err != nil {
		return 0, nil, fmt.Errorf("failed to fetch news: %w", err)
	}

	ingestRes, err := s.ingestionSvc.Ingest(ctx, raws)
	if err != nil {
		return len(raws), nil, err
	}
	return len(raws), ingestRes, nil
}

func (s *pipelineService) Score(ctx context.Context) (*dto.ScoreResult, error) {
	return s.scoringSvc.Run(ctx)
}

func (s *pipelineService) BuildPanel(ctx context.Context) (*dto.BuildResult, error) {
	from, to, err := s.panelDateRange()
	if err != nil {
		return nil, err
	}

	agg, err := s.aggregationSvc.Aggregate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	priceSeries, err := s.priceSvc.Load(ctx, s.cfg.TickerCodes(), from, to)
	if err != nil {
		return nil, err
	}

	marketReturns, err := s.priceSvc.MarketReturns(ctx, from, to)
	if err != nil {
		return nil, err
	}

	rows, err := s.panelSvc.Build(ctx, priceSeries, agg, marketReturns)
	if err != nil {
		return nil, err
	}

	if err := s.panelSvc.Store(ctx, rows); err != nil {
		return nil, err
	}

	result := &dto.BuildResult{
		RowCount:    len(rows),
		TickerCount: len(priceSeries),
	}
	for _, row := range rows {
		if row.InsufficientHistory {
			result.FlaggedCount++
		}
	}
	return result, nil
}

func (s *pipelineService) panelDateRange() (time.Time, time.Time, error) {
	loc := utils.GetVNTimeLocation()

	to := utils.TimeNowVN()
	if s.cfg.Panel.EndDate != "" {
		parsed, err := time.ParseInLocation(utils.DateLayout, s.cfg.Panel.EndDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid panel end_date: %w", err)
		}
		to = parsed.Add(24*time.Hour - time.Second)
	}

	from := to.AddDate(-1, 0, 0)
	if s.cfg.Panel.StartDate != "" {
		parsed, err := time.ParseInLocation(utils.DateLayout, s.cfg.Panel.StartDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid panel start_date: %w", err)
		}
		from = parsed
	}
	return from, to, nil
}

func (s *pipelineService) finishRun(run *entity.PipelineRun, result *dto.RunResult, started time.Time, runErr error) error {
	result.Duration = time.Since(started)

	if stats, err := json.Marshal(result); err == nil {
		run.Stats = stats
	}
	run.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	if runErr != nil {
		run.Status = entity.RunStatusFailed
		run.ErrorMessage = sql.NullString{String: runErr.Error(), Valid: true}
	} else {
		run.Status = entity.RunStatusSuccess
	}

	if err := s.runRepo.Update(context.Background(), run); err != nil {
		s.logger.Error("Failed to update pipeline run record", logger.ErrorField(err))
	}
	return runErr
}

func (s *pipelineService) acquireRunLock(ctx context.Context) (bool, error) {
	hostname, _ := os.Hostname()
	owner := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	return s.redisClient.SetNX(ctx, common.RedisKeyPipelineRunLock, owner, common.PipelineRunLockTTL).Result()
}

func (s *pipelineService) releaseRunLock() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.redisClient.Del(ctx, common.RedisKeyPipelineRunLock).Err(); err != nil {
		s.logger.Error("Failed to release run lock", logger.ErrorField(err))
	}
}

func (s *pipelineService) notify(result *dto.RunResult) {
	if s.notifier == nil {
		return
	}

	text := fmt.Sprintf(
		"*Sentiment panel pipeline finished*\nFetched: %d\nNew articles: %d\nScored: %d (skipped %d)\nPanel rows: %d across %d tickers\nDuration: %s",
		result.FetchedCount,
		result.Ingest.NewCount,
		result.Score.ScoredCount,
		result.Score.SkippedCount,
		result.Build.RowCount,
		result.Build.TickerCount,
		result.Duration.Round(time.Second),
	)
	if err := s.notifier.SendMessage(text); err != nil {
		s.logger.Error("Failed to send telegram notification", logger.ErrorField(err))
	}
}
