package config

import (
	"golang-sentiment-panel/pkg/config"
)

// Ticker holds one tracked ticker and the alias keywords that attribute an
// article to it.
type Ticker struct {
	Code    string   `mapstructure:"code"`
	Aliases []string `mapstructure:"aliases"`
}

// Market holds the tracked universe and the classification rule inputs.
type Market struct {
	IndexTicker   string   `mapstructure:"index_ticker"`
	Tickers       []Ticker `mapstructure:"tickers"`
	MacroKeywords []string `mapstructure:"macro_keywords"`
}

// News holds news source configuration.
type News struct {
	MacroQueries  []string `mapstructure:"macro_queries"`
	MaxAgeDays    int      `mapstructure:"max_age_days"`
	MaxConcurrent int      `mapstructure:"max_concurrent"`
	DelaySeconds  int      `mapstructure:"delay_seconds"`
}

// Scoring holds incremental scorer configuration.
type Scoring struct {
	BatchSize      int    `mapstructure:"batch_size"`
	MaxConcurrent  int    `mapstructure:"max_concurrent"`
	CheckpointPath string `mapstructure:"checkpoint_path"`
}

// Panel holds panel build configuration. Dates are YYYY-MM-DD in Vietnam
// time.
type Panel struct {
	StartDate string `mapstructure:"start_date"`
	EndDate   string `mapstructure:"end_date"`
}

// Export holds export configuration.
type Export struct {
	PanelPath string `mapstructure:"panel_path"`
}

// Schedule holds the cron expression for scheduled runs.
type Schedule struct {
	Cron string `mapstructure:"cron"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// AI holds configuration for AI providers.
type AI struct {
	Provider string `mapstructure:"provider"`
}

// Telegram holds configuration for the Telegram notifier. Empty bot token
// disables notifications.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the pipeline.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	Market   Market          `mapstructure:"market"`
	News     News            `mapstructure:"news"`
	Scoring  Scoring         `mapstructure:"scoring"`
	Panel    Panel           `mapstructure:"panel"`
	Export   Export          `mapstructure:"export"`
	Schedule Schedule        `mapstructure:"schedule"`
	Gemini   Gemini          `mapstructure:"gemini"`
	AI       AI              `mapstructure:"ai"`
	Telegram Telegram        `mapstructure:"telegram"`
}

// Load loads the pipeline configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Scoring.BatchSize <= 0 {
		cfg.Scoring.BatchSize = 50
	}
	if cfg.Scoring.MaxConcurrent <= 0 {
		cfg.Scoring.MaxConcurrent = 4
	}
	if cfg.Scoring.CheckpointPath == "" {
		cfg.Scoring.CheckpointPath = "data/scoring_checkpoint.json"
	}
	if cfg.News.MaxConcurrent <= 0 {
		cfg.News.MaxConcurrent = 3
	}
	if cfg.News.MaxAgeDays <= 0 {
		cfg.News.MaxAgeDays = 7
	}
	return &cfg, nil
}

// TickerCodes returns the tracked ticker codes in config order.
func (c *Config) TickerCodes() []string {
	codes := make([]string, 0, len(c.Market.Tickers))
	for _, t := range c.Market.Tickers {
		codes = append(codes, t.Code)
	}
	return codes
}
