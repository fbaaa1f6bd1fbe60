package repository

import (
	"context"
	"time"

	"golang-sentiment-panel/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceRepository reads and writes the raw price table. The table is
// read-only to the panel builder.
type PriceRepository interface {
	// FindBars returns bars for the given tickers inside [from, to],
	// ordered by ticker then date ascending.
	FindBars(ctx context.Context, tickers []string, from, to time.Time) ([]entity.PriceBar, error)
	// SaveBatch inserts bars, silently skipping duplicate (ticker, date)
	// keys.
	SaveBatch(ctx context.Context, bars []entity.PriceBar) (int64, error)
}

// NewPriceRepository creates a new instance of PriceRepository.
func NewPriceRepository(db *gorm.DB) PriceRepository {
	return &priceRepository{db: db}
}

type priceRepository struct {
	db *gorm.DB
}

func (r *priceRepository) FindBars(ctx context.Context, tickers []string, from, to time.Time) ([]entity.PriceBar, error) {
	var bars []entity.PriceBar
	err := r.db.WithContext(ctx).
		Where("ticker IN ? AND date >= ? AND date <= ?", tickers, from, to).
		Order("ticker ASC, date ASC").
		Find(&bars).Error
	return bars, err
}

func (r *priceRepository) SaveBatch(ctx context.Context, bars []entity.PriceBar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}, {Name: "date"}},
		DoNothing: true,
	}).CreateInBatches(&bars, 500)

	return tx.RowsAffected, tx.Error
}
