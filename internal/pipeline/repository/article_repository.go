package repository

import (
	"context"

	"golang-sentiment-panel/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticleRepository persists the append-only article ledger.
type ArticleRepository interface {
	// FilterExistingKeys returns which of the given canonical keys are
	// already stored.
	FilterExistingKeys(ctx context.Context, keys []string) (map[string]bool, error)
	// CreateIgnoreConflict inserts articles, silently skipping any whose
	// canonical key already exists. Returns the number of rows inserted.
	CreateIgnoreConflict(ctx context.Context, articles []entity.Article) (int64, error)
	CountAll(ctx context.Context) (int64, error)
}

// NewArticleRepository creates a new instance of ArticleRepository.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

type articleRepository struct {
	db *gorm.DB
}

func (r *articleRepository) FilterExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}

	var found []string
	err := r.db.WithContext(ctx).
		Model(&entity.Article{}).
		Where("canonical_key IN ?", keys).
		Pluck("canonical_key", &found).Error
	if err != nil {
		return nil, err
	}

	for _, key := range found {
		existing[key] = true
	}
	return existing, nil
}

func (r *articleRepository) CreateIgnoreConflict(ctx context.Context, articles []entity.Article) (int64, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "canonical_key"}},
		DoNothing: true,
	}).CreateInBatches(&articles, 200)

	return tx.RowsAffected, tx.Error
}

func (r *articleRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Article{}).Count(&count).Error
	return count, err
}
