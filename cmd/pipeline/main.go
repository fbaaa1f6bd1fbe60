package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang-sentiment-panel/internal/pipeline/config"
	"golang-sentiment-panel/internal/pipeline/repository"
	"golang-sentiment-panel/internal/pipeline/service"
	"golang-sentiment-panel/internal/pipeline/source"
	"golang-sentiment-panel/pkg/checkpoint"
	"golang-sentiment-panel/pkg/logger"
	"golang-sentiment-panel/pkg/postgres"
	"golang-sentiment-panel/pkg/redis"
	"golang-sentiment-panel/pkg/telegram"

	"google.golang.org/genai"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

// app holds the wired pipeline components and their teardown hooks.
type app struct {
	cfg         *config.Config
	logger      *logger.Logger
	db          *postgres.DB
	redisClient *redis.Client

	pipelineSvc service.PipelineService
	priceSvc    service.PriceService
	exportSvc   service.ExportService
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting sentiment panel pipeline", zap.String("name", cfg.App.Name))

	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Initialize repositories
	articleRepo := repository.NewArticleRepository(db.DB)
	scoredRepo := repository.NewScoredArticleRepository(db.DB)
	priceRepo := repository.NewPriceRepository(db.DB)
	panelRepo := repository.NewPanelRepository(db.DB)
	runRepo := repository.NewPipelineRunRepository(db.DB)

	// Initialize AI provider
	var scorer repository.SentimentScorer
	switch cfg.AI.Provider {
	case "gemini":
		genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.Gemini.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini AI client: %w", err)
		}
		scorer, err = repository.NewGeminiScorerRepository(cfg, appLogger, genAiClient)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini scorer: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid AI provider specified in config: %s", cfg.AI.Provider)
	}

	var notifier telegram.Notifier
	if cfg.Telegram.BotToken != "" {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Telegram notifier: %w", err)
		}
	}

	rules := service.NewKeywordRuleTable(cfg.Market.Tickers, cfg.Market.MacroKeywords)
	ckpt := checkpoint.NewStore(cfg.Scoring.CheckpointPath)

	newsSource := source.NewGoogleNewsSource(cfg, appLogger)
	ingestionSvc := service.NewIngestionService(articleRepo, appLogger)
	scoringSvc := service.NewScoringService(scoredRepo, scorer, rules, ckpt, appLogger, cfg.Scoring.BatchSize, cfg.Scoring.MaxConcurrent)
	aggregationSvc := service.NewAggregationService(scoredRepo, rules, appLogger)
	priceSvc := service.NewPriceService(priceRepo, cfg.Market.IndexTicker, appLogger)
	panelSvc := service.NewPanelService(panelRepo, appLogger, cfg.Scoring.MaxConcurrent)
	exportSvc := service.NewExportService(panelRepo, appLogger)

	pipelineSvc := service.NewPipelineService(
		cfg,
		appLogger,
		newsSource,
		ingestionSvc,
		scoringSvc,
		aggregationSvc,
		priceSvc,
		panelSvc,
		runRepo,
		redisClient,
		notifier,
	)

	return &app{
		cfg:         cfg,
		logger:      appLogger,
		db:          db,
		redisClient: redisClient,
		pipelineSvc: pipelineSvc,
		priceSvc:    priceSvc,
		exportSvc:   exportSvc,
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.redisClient.Close()
	_ = a.logger.Sync()
}

// withApp wires the application, runs fn with a signal-cancelled context and
// tears everything down afterwards.
func withApp(fn func(ctx context.Context, a *app) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := buildApp(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize pipeline: %v", err)
		}
		defer a.close()

		if err := fn(ctx, a); err != nil {
			a.logger.Fatal("Command failed", zap.Error(err))
		}
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: fetch, ingest, score and build the panel",
	Run: withApp(func(ctx context.Context, a *app) error {
		result, err := a.pipelineSvc.Run(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("Pipeline run finished",
			logger.IntField("fetched", result.FetchedCount),
			logger.IntField("new_articles", result.Ingest.NewCount),
			logger.IntField("scored", result.Score.ScoredCount),
			logger.IntField("panel_rows", result.Build.RowCount),
		)
		return nil
	}),
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch news feeds and append new articles to the store",
	Run: withApp(func(ctx context.Context, a *app) error {
		fetched, result, err := a.pipelineSvc.FetchAndIngest(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("Ingestion finished",
			logger.IntField("fetched", fetched),
			logger.IntField("new", result.NewCount),
			logger.IntField("duplicate", result.DuplicateCount),
			logger.IntField("rejected", result.RejectedCount),
		)
		return nil
	}),
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score all articles not yet scored",
	Run: withApp(func(ctx context.Context, a *app) error {
		result, err := a.pipelineSvc.Score(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("Scoring finished",
			logger.IntField("scored", result.ScoredCount),
			logger.IntField("skipped", result.SkippedCount),
		)
		return nil
	}),
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the panel from scored articles and price series",
	Run: withApp(func(ctx context.Context, a *app) error {
		result, err := a.pipelineSvc.BuildPanel(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("Panel build finished",
			logger.IntField("rows", result.RowCount),
			logger.IntField("tickers", result.TickerCount),
			logger.IntField("flagged", result.FlaggedCount),
		)
		return nil
	}),
}

var importPricesFile string

var importPricesCmd = &cobra.Command{
	Use:   "import-prices",
	Short: "Import daily price bars from a CSV file",
	Run: withApp(func(ctx context.Context, a *app) error {
		inserted, err := a.priceSvc.ImportCSV(ctx, importPricesFile)
		if err != nil {
			return err
		}
		a.logger.Info("Price import finished", logger.IntField("inserted", inserted))
		return nil
	}),
}

var exportPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored panel to CSV",
	Run: withApp(func(ctx context.Context, a *app) error {
		path := exportPath
		if path == "" {
			path = a.cfg.Export.PanelPath
		}
		if path == "" {
			return fmt.Errorf("no export path given and export.panel_path is not configured")
		}
		_, err := a.exportSvc.ExportPanel(ctx, path)
		return err
	}),
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the full pipeline on the configured cron schedule",
	Run: withApp(func(ctx context.Context, a *app) error {
		if a.cfg.Schedule.Cron == "" {
			return fmt.Errorf("schedule.cron is not configured")
		}

		c := cron.New()
		_, err := c.AddFunc(a.cfg.Schedule.Cron, func() {
			if _, err := a.pipelineSvc.Run(ctx); err != nil {
				a.logger.Error("Scheduled pipeline run failed", logger.ErrorField(err))
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", a.cfg.Schedule.Cron, err)
		}

		c.Start()
		a.logger.Info("Scheduler started", logger.StringField("cron", a.cfg.Schedule.Cron))

		<-ctx.Done()
		a.logger.Info("Shutting down scheduler...")
		<-c.Stop().Done()
		return nil
	}),
}

func main() {
	rootCmd := &cobra.Command{Use: "pipeline"}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	importPricesCmd.Flags().StringVarP(&importPricesFile, "file", "f", "", "Path to the price CSV file")
	_ = importPricesCmd.MarkFlagRequired("file")
	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "Output CSV path (defaults to export.panel_path)")

	rootCmd.AddCommand(runCmd, ingestCmd, scoreCmd, buildCmd, importPricesCmd, exportCmd, scheduleCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing pipeline CLI: %s\n", err)
		os.Exit(1)
	}
}
