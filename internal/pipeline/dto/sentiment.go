package dto

import (
	"time"

	"github.com/lib/pq"
)

// EntityDate keys an aggregated sentiment bucket: one entity (ticker or the
// shared MARKET series) on one calendar day, formatted YYYY-MM-DD.
type EntityDate struct {
	Entity string
	Date   string
}

// ScoredNews is a scored article joined with its source row, as consumed by
// the aggregator.
type ScoredNews struct {
	ArticleID   uint64         `json:"article_id"`
	Sentiment   float64        `json:"sentiment"`
	Category    string         `json:"category"`
	Headline    string         `json:"headline"`
	Body        string         `json:"body"`
	URL         string         `json:"url"`
	TickerTags  pq.StringArray `gorm:"type:text[]" json:"ticker_tags"`
	PublishedAt *time.Time     `json:"published_at"`
}

// SentimentAggregates holds per-bucket mean sentiment. A bucket with zero
// qualifying articles is simply absent: a day with no news is not neutral
// news.
type SentimentAggregates struct {
	// Firm maps (ticker, date) to mean firm sentiment.
	Firm map[EntityDate]float64
	// Macro maps date to mean market-wide sentiment.
	Macro map[string]float64
}
