package service

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"golang-sentiment-panel/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportPanelWritesHeaderedCSV(t *testing.T) {
	ret := 0.0123
	sent := -0.5
	repo := &fakePanelRepo{rows: []entity.PanelRow{
		{Ticker: "HPG", Date: day(3), Ret: &ret, SentFirm: &sent, InsufficientHistory: false},
		{Ticker: "HPG", Date: day(2), InsufficientHistory: true},
	}}
	svc := NewExportService(repo, newTestLogger(t))
	path := filepath.Join(t.TempDir(), "out", "panel.csv")

	count, err := svc.ExportPanel(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, panelCSVHeader, records[0])

	// Rows come out ordered by date; missing values are empty cells.
	assert.Equal(t, "2025-06-02", records[1][1])
	assert.Equal(t, "", records[1][2])
	assert.Equal(t, "true", records[1][13])

	assert.Equal(t, "2025-06-03", records[2][1])
	assert.Equal(t, "0.0123", records[2][2])
	assert.Equal(t, "-0.5", records[2][3])
	assert.Equal(t, "false", records[2][13])
}

func TestExportPanelEmptyStore(t *testing.T) {
	svc := NewExportService(&fakePanelRepo{}, newTestLogger(t))
	path := filepath.Join(t.TempDir(), "panel.csv")

	count, err := svc.ExportPanel(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ticker,date,ret,sent_firm,sent_macro,mkt_ret,volume_norm,sent_firm_lag1,sent_firm_lag2,sent_macro_lag1,mkt_ret_lag1,volume_norm_lag1,sent_x_vol,insufficient_history\n", string(data))
}
