package entity

import "time"

// PriceBar is one daily OHLCV observation for a ticker.
type PriceBar struct {
	ID     uint64    `gorm:"primaryKey" json:"id"`
	Ticker string    `gorm:"not null;uniqueIndex:idx_prices_ticker_date" json:"ticker"`
	Date   time.Time `gorm:"type:date;not null;uniqueIndex:idx_prices_ticker_date" json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	// LogReturn is ln(close_t / close_{t-1}) within the same ticker,
	// derived in memory. Nil for the first bar of a series.
	LogReturn *float64 `gorm:"-" json:"log_return,omitempty"`
}

// TableName specifies the table name for the PriceBar model.
func (PriceBar) TableName() string {
	return "stock_prices_raw"
}
