package entity

import "time"

// PanelRow is one (ticker, date) observation of the finished panel.
// Nullable fields use pointers: NULL is an explicit missing marker,
// distinct from an observed zero.
type PanelRow struct {
	ID     uint64    `gorm:"primaryKey" json:"id"`
	Ticker string    `gorm:"not null;uniqueIndex:idx_panel_ticker_date" json:"ticker"`
	Date   time.Time `gorm:"type:date;not null;uniqueIndex:idx_panel_ticker_date" json:"date"`

	Ret        *float64 `json:"ret"`
	SentFirm   *float64 `json:"sent_firm"`
	SentMacro  *float64 `json:"sent_macro"`
	MktRet     *float64 `json:"mkt_ret"`
	VolumeNorm *float64 `json:"volume_norm"`

	SentFirmLag1   *float64 `json:"sent_firm_lag1"`
	SentFirmLag2   *float64 `json:"sent_firm_lag2"`
	SentMacroLag1  *float64 `json:"sent_macro_lag1"`
	MktRetLag1     *float64 `json:"mkt_ret_lag1"`
	VolumeNormLag1 *float64 `json:"volume_norm_lag1"`
	SentXVol       *float64 `json:"sent_x_vol"`

	// InsufficientHistory marks the leading rows of each ticker whose lag
	// fields cannot exist yet. They are kept; excluding them is the
	// estimator's call.
	InsufficientHistory bool `json:"insufficient_history"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the PanelRow model.
func (PanelRow) TableName() string {
	return "panel_data"
}
