package entity

import (
	"time"

	"github.com/lib/pq"
)

// RawArticle is an article as delivered by a news source, before
// deduplication. Records may arrive in any order and may repeat.
type RawArticle struct {
	URL          string     `json:"url"`
	Headline     string     `json:"headline"`
	Body         string     `json:"body"`
	PublishedAt  *time.Time `json:"published_at"`
	SourcePortal string     `json:"source_portal"`
	TickerTags   []string   `json:"ticker_tags"`
}

// Article is a deduplicated news article in the append-only ingestion
// ledger. Rows are immutable once stored.
type Article struct {
	ID           uint64         `gorm:"primaryKey" json:"id"`
	CanonicalKey string         `gorm:"uniqueIndex;not null" json:"canonical_key"`
	TickerTags   pq.StringArray `gorm:"type:text[]" json:"ticker_tags"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	Headline     string         `gorm:"not null" json:"headline"`
	Body         string         `json:"body"`
	URL          string         `json:"url"`
	SourcePortal string         `json:"source_portal"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the Article model.
func (Article) TableName() string {
	return "news_raw"
}
