package entity

import "time"

// Sentiment categories. An article that matches no firm or macro rule is
// stored without a category and never enters aggregation.
const (
	CategoryFirm  = "FIRM"
	CategoryMacro = "MACRO"
)

// ScoredArticle records the sentiment score of one article. At most one row
// exists per article; rows are never mutated after creation. Re-scoring
// requires deleting the row explicitly, never a silent overwrite.
type ScoredArticle struct {
	ArticleID uint64    `gorm:"primaryKey" json:"article_id"`
	Sentiment float64   `gorm:"not null" json:"sentiment"`
	Category  string    `json:"category"`
	ScoredAt  time.Time `gorm:"not null" json:"scored_at"`
}

// TableName specifies the table name for the ScoredArticle model.
func (ScoredArticle) TableName() string {
	return "news_scored"
}
