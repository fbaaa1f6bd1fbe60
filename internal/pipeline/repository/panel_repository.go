package repository

import (
	"context"

	"golang-sentiment-panel/internal/entity"

	"gorm.io/gorm"
)

// PanelRepository is the sole writer of the panel table.
type PanelRepository interface {
	// ReplaceRows transactionally replaces the panel rows for the tickers
	// present in rows. A failed build never leaves a half-written panel.
	ReplaceRows(ctx context.Context, rows []entity.PanelRow) error
	// FindAll returns the full panel grouped by ticker, ascending by date
	// within ticker.
	FindAll(ctx context.Context) ([]entity.PanelRow, error)
}

// NewPanelRepository creates a new instance of PanelRepository.
func NewPanelRepository(db *gorm.DB) PanelRepository {
	return &panelRepository{db: db}
}

type panelRepository struct {
	db *gorm.DB
}

func (r *panelRepository) ReplaceRows(ctx context.Context, rows []entity.PanelRow) error {
	if len(rows) == 0 {
		return nil
	}

	tickerSet := make(map[string]bool)
	var tickers []string
	for _, row := range rows {
		if !tickerSet[row.Ticker] {
			tickerSet[row.Ticker] = true
			tickers = append(tickers, row.Ticker)
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ticker IN ?", tickers).Delete(&entity.PanelRow{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(&rows, 500).Error
	})
}

func (r *panelRepository) FindAll(ctx context.Context) ([]entity.PanelRow, error) {
	var rows []entity.PanelRow
	err := r.db.WithContext(ctx).
		Order("ticker ASC, date ASC").
		Find(&rows).Error
	return rows, err
}
