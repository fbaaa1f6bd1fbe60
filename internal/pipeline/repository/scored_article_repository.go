package repository

import (
	"context"
	"time"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/dto"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScoredArticleRepository persists the append-only scored set. The set of
// unscored articles is an explicit set difference between the article ledger
// and this table, which is what makes incremental scoring idempotent.
type ScoredArticleRepository interface {
	// FindUnscored returns articles with no score yet, with id greater than
	// afterID, ordered by id, at most limit rows.
	FindUnscored(ctx context.Context, afterID uint64, limit int) ([]entity.Article, error)
	// SaveBatch inserts scored articles, silently skipping any article
	// already scored. A score is never overwritten.
	SaveBatch(ctx context.Context, scored []entity.ScoredArticle) (int64, error)
	// FindScoredInRange returns scored articles joined with their source
	// rows, published inside [from, to].
	FindScoredInRange(ctx context.Context, from, to time.Time) ([]dto.ScoredNews, error)
}

// NewScoredArticleRepository creates a new instance of ScoredArticleRepository.
func NewScoredArticleRepository(db *gorm.DB) ScoredArticleRepository {
	return &scoredArticleRepository{db: db}
}

type scoredArticleRepository struct {
	db *gorm.DB
}

func (r *scoredArticleRepository) FindUnscored(ctx context.Context, afterID uint64, limit int) ([]entity.Article, error) {
	var articles []entity.Article
	err := r.db.WithContext(ctx).
		Table("news_raw AS a").
		Select("a.*").
		Joins("LEFT JOIN news_scored s ON s.article_id = a.id").
		Where("s.article_id IS NULL AND a.id > ?", afterID).
		Order("a.id ASC").
		Limit(limit).
		Find(&articles).Error
	return articles, err
}

func (r *scoredArticleRepository) SaveBatch(ctx context.Context, scored []entity.ScoredArticle) (int64, error) {
	if len(scored) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_id"}},
		DoNothing: true,
	}).Create(&scored)

	return tx.RowsAffected, tx.Error
}

func (r *scoredArticleRepository) FindScoredInRange(ctx context.Context, from, to time.Time) ([]dto.ScoredNews, error) {
	var rows []dto.ScoredNews
	err := r.db.WithContext(ctx).
		Table("news_scored AS s").
		Select("s.article_id, s.sentiment, s.category, a.headline, a.body, a.url, a.ticker_tags, a.published_at").
		Joins("JOIN news_raw a ON a.id = s.article_id").
		Where("a.published_at >= ? AND a.published_at <= ?", from, to).
		Order("s.article_id ASC").
		Scan(&rows).Error
	return rows, err
}
