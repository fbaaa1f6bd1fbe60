package service

import (
	"context"
	"math"
	"testing"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hpgSeries() []entity.PriceBar {
	return []entity.PriceBar{
		bar("HPG", 2, 100, 1000),
		bar("HPG", 3, 110, 2000),
		bar("HPG", 4, 105, 3000),
		bar("HPG", 5, 120, 2000),
	}
}

func hpgAggregates() *dto.SentimentAggregates {
	return &dto.SentimentAggregates{
		Firm: map[dto.EntityDate]float64{
			{Entity: "HPG", Date: "2025-06-03"}: 0.5,
			{Entity: "HPG", Date: "2025-06-04"}: -0.2,
		},
		Macro: map[string]float64{"2025-06-03": 0.1},
	}
}

func TestBuildAlignsSentimentAndReturns(t *testing.T) {
	svc := NewPanelService(&fakePanelRepo{}, newTestLogger(t), 2)
	marketReturns := map[string]float64{"2025-06-03": 0.01}

	rows, err := svc.Build(context.Background(), map[string][]entity.PriceBar{"HPG": hpgSeries()}, hpgAggregates(), marketReturns)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Nil(t, rows[0].Ret)
	assert.Nil(t, rows[0].SentFirm)

	require.NotNil(t, rows[1].Ret)
	assert.InDelta(t, math.Log(110.0/100.0), *rows[1].Ret, 1e-12)
	require.NotNil(t, rows[1].SentFirm)
	assert.InDelta(t, 0.5, *rows[1].SentFirm, 1e-9)
	require.NotNil(t, rows[1].SentMacro)
	assert.InDelta(t, 0.1, *rows[1].SentMacro, 1e-9)
	require.NotNil(t, rows[1].MktRet)
	assert.InDelta(t, 0.01, *rows[1].MktRet, 1e-9)

	// Days without sentiment stay missing, never zero-filled.
	assert.Nil(t, rows[3].SentFirm)
	assert.Nil(t, rows[3].SentMacro)
	assert.Nil(t, rows[3].MktRet)
}

func TestBuildLagsComeFromTrailingRows(t *testing.T) {
	svc := NewPanelService(&fakePanelRepo{}, newTestLogger(t), 2)

	rows, err := svc.Build(context.Background(), map[string][]entity.PriceBar{"HPG": hpgSeries()}, hpgAggregates(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// Row 2 (June 4) lags row 1 (June 3).
	require.NotNil(t, rows[2].SentFirmLag1)
	assert.InDelta(t, 0.5, *rows[2].SentFirmLag1, 1e-9)
	require.NotNil(t, rows[2].SentMacroLag1)
	assert.InDelta(t, 0.1, *rows[2].SentMacroLag1, 1e-9)
	assert.Nil(t, rows[2].SentFirmLag2)

	// Row 3 (June 5) lags rows 2 and 1.
	require.NotNil(t, rows[3].SentFirmLag1)
	assert.InDelta(t, -0.2, *rows[3].SentFirmLag1, 1e-9)
	require.NotNil(t, rows[3].SentFirmLag2)
	assert.InDelta(t, 0.5, *rows[3].SentFirmLag2, 1e-9)

	// The first row has nothing to lag from.
	assert.Nil(t, rows[0].SentFirmLag1)
	assert.Nil(t, rows[0].VolumeNormLag1)
}

func TestBuildInteractionTerm(t *testing.T) {
	svc := NewPanelService(&fakePanelRepo{}, newTestLogger(t), 2)

	rows, err := svc.Build(context.Background(), map[string][]entity.PriceBar{"HPG": hpgSeries()}, hpgAggregates(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// Volumes 1000,2000,3000,2000: mean 2000, population std sqrt(5e5).
	std := math.Sqrt(500000)

	require.NotNil(t, rows[3].SentXVol)
	wantLagVol := (3000.0 - 2000.0) / std
	assert.InDelta(t, -0.2*wantLagVol, *rows[3].SentXVol, 1e-9)

	// Row 1 has a lagged volume but no lagged sentiment: the product stays
	// missing instead of treating absent sentiment as zero.
	assert.Nil(t, rows[1].SentXVol)
}

func TestBuildFlagsInsufficientHistory(t *testing.T) {
	svc := NewPanelService(&fakePanelRepo{}, newTestLogger(t), 2)

	rows, err := svc.Build(context.Background(), map[string][]entity.PriceBar{"HPG": hpgSeries()}, hpgAggregates(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.True(t, rows[0].InsufficientHistory)
	assert.True(t, rows[1].InsufficientHistory)
	assert.False(t, rows[2].InsufficientHistory)
	assert.False(t, rows[3].InsufficientHistory)
}

func TestBuildIsInputOrderInvariant(t *testing.T) {
	svc := NewPanelService(&fakePanelRepo{}, newTestLogger(t), 2)
	agg := hpgAggregates()

	ordered, err := svc.Build(context.Background(), map[string][]entity.PriceBar{"HPG": hpgSeries()}, agg, nil)
	require.NoError(t, err)

	series := hpgSeries()
	shuffled := []entity.PriceBar{series[2], series[0], series[3], series[1]}
	fromShuffled, err := svc.Build(context.Background(), map[string][]entity.PriceBar{"HPG": shuffled}, agg, nil)
	require.NoError(t, err)

	assert.Equal(t, ordered, fromShuffled)
}

func TestBuildIsolatesTickers(t *testing.T) {
	svc := NewPanelService(&fakePanelRepo{}, newTestLogger(t), 2)
	series := map[string][]entity.PriceBar{
		"HPG": {bar("HPG", 2, 100, 1000), bar("HPG", 3, 110, 2000)},
		"VNM": {bar("VNM", 4, 60, 500), bar("VNM", 5, 61, 600)},
	}
	agg := &dto.SentimentAggregates{
		Firm: map[dto.EntityDate]float64{
			{Entity: "HPG", Date: "2025-06-03"}: 0.9,
		},
		Macro: map[string]float64{},
	}

	rows, err := svc.Build(context.Background(), series, agg, nil)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// Rows come out grouped by ticker, ascending by date within ticker.
	assert.Equal(t, "HPG", rows[0].Ticker)
	assert.Equal(t, "HPG", rows[1].Ticker)
	assert.Equal(t, "VNM", rows[2].Ticker)
	assert.Equal(t, "VNM", rows[3].Ticker)

	// VNM's first row never sees HPG's history, even though HPG's last bar
	// precedes it in time.
	assert.Nil(t, rows[2].Ret)
	assert.Nil(t, rows[2].SentFirmLag1)
	assert.Nil(t, rows[2].VolumeNormLag1)
	assert.Nil(t, rows[2].SentFirm)
}

func TestBuildConstantVolumeYieldsMissingNormalization(t *testing.T) {
	svc := NewPanelService(&fakePanelRepo{}, newTestLogger(t), 2)
	series := map[string][]entity.PriceBar{
		"HPG": {bar("HPG", 2, 100, 5000), bar("HPG", 3, 110, 5000), bar("HPG", 4, 105, 5000)},
	}

	rows, err := svc.Build(context.Background(), series, &dto.SentimentAggregates{
		Firm:  map[dto.EntityDate]float64{},
		Macro: map[string]float64{},
	}, nil)
	require.NoError(t, err)

	for _, row := range rows {
		assert.Nil(t, row.VolumeNorm)
	}
}

func TestStoreReplacesExistingPanel(t *testing.T) {
	repo := &fakePanelRepo{}
	svc := NewPanelService(repo, newTestLogger(t), 2)

	first := []entity.PanelRow{{Ticker: "HPG", Date: day(2)}, {Ticker: "HPG", Date: day(3)}}
	require.NoError(t, svc.Store(context.Background(), first))

	second := []entity.PanelRow{{Ticker: "HPG", Date: day(4)}}
	require.NoError(t, svc.Store(context.Background(), second))

	stored, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, day(4), stored[0].Date)
}
