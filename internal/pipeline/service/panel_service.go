package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/dto"
	"golang-sentiment-panel/internal/pipeline/repository"
	"golang-sentiment-panel/pkg/logger"
	"golang-sentiment-panel/pkg/utils"
)

// maxLagDepth is the deepest lag the panel carries (sent_firm_lag2). The
// first maxLagDepth rows of each ticker cannot have complete lag fields and
// are flagged rather than dropped.
const maxLagDepth = 2

// PanelService builds the entity-aligned panel from price series and
// aggregated sentiment, and owns the panel table.
type PanelService interface {
	// Build computes panel rows. Each ticker is processed independently:
	// lags, normalization and interactions never read another ticker's
	// history, and input row order does not affect the result.
	Build(ctx context.Context, priceSeries map[string][]entity.PriceBar, agg *dto.SentimentAggregates, marketReturns map[string]float64) ([]entity.PanelRow, error)
	// Store transactionally replaces the stored panel rows.
	Store(ctx context.Context, rows []entity.PanelRow) error
}

// NewPanelService creates a new PanelService.
func NewPanelService(panelRepo repository.PanelRepository, log *logger.Logger, maxConcurrent int) PanelService {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &panelService{
		panelRepo:     panelRepo,
		logger:        log,
		maxConcurrent: maxConcurrent,
	}
}

type panelService struct {
	panelRepo     repository.PanelRepository
	logger        *logger.Logger
	maxConcurrent int
}

func (s *panelService) Build(ctx context.Context, priceSeries map[string][]entity.PriceBar, agg *dto.SentimentAggregates, marketReturns map[string]float64) ([]entity.PanelRow, error) {
	tickers := make([]string, 0, len(priceSeries))
	for ticker := range priceSeries {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	// One result slot per ticker: partitions share nothing mutable, the
	// macro and market maps are read-only.
	results := make([][]entity.PanelRow, len(tickers))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.maxConcurrent)

	for i, ticker := range tickers {
		if !utils.ShouldContinue(ctx, s.logger) {
			return nil, ctx.Err()
		}
		i, ticker := i, ticker
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[i] = buildTickerRows(ticker, priceSeries[ticker], agg, marketReturns)
		})
	}
	wg.Wait()

	var rows []entity.PanelRow
	for _, tickerRows := range results {
		rows = append(rows, tickerRows...)
	}

	s.logger.Info("Panel build complete",
		logger.IntField("tickers", len(tickers)),
		logger.IntField("rows", len(rows)),
	)
	return rows, nil
}

func (s *panelService) Store(ctx context.Context, rows []entity.PanelRow) error {
	if err := s.panelRepo.ReplaceRows(ctx, rows); err != nil {
		return fmt.Errorf("failed to store panel rows: %w", err)
	}
	return nil
}

// buildTickerRows is the per-ticker two-phase pass: align by date, then
// derive lag, normalization and interaction features from trailing index
// positions only.
func buildTickerRows(ticker string, bars []entity.PriceBar, agg *dto.SentimentAggregates, marketReturns map[string]float64) []entity.PanelRow {
	if len(bars) == 0 {
		return nil
	}

	// Defensive copy and sort: the build must not depend on input row
	// order, and returns are positional within the sorted sequence.
	sorted := make([]entity.PriceBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	ComputeLogReturns(sorted)

	volumeNorm := normalizeVolume(sorted)

	rows := make([]entity.PanelRow, len(sorted))
	for i, bar := range sorted {
		date := bar.Date.Format(utils.DateLayout)

		row := entity.PanelRow{
			Ticker:     ticker,
			Date:       bar.Date,
			Ret:        bar.LogReturn,
			VolumeNorm: volumeNorm[i],
		}
		if sent, ok := agg.Firm[dto.EntityDate{Entity: ticker, Date: date}]; ok {
			row.SentFirm = &sent
		}
		if sent, ok := agg.Macro[date]; ok {
			row.SentMacro = &sent
		}
		if ret, ok := marketReturns[date]; ok {
			row.MktRet = &ret
		}
		rows[i] = row
	}

	// Lag pass: strictly trailing positions of the same ticker. Wall-clock
	// offsets would mishandle non-trading days.
	for i := range rows {
		if i >= 1 {
			rows[i].SentFirmLag1 = rows[i-1].SentFirm
			rows[i].SentMacroLag1 = rows[i-1].SentMacro
			rows[i].MktRetLag1 = rows[i-1].MktRet
			rows[i].VolumeNormLag1 = rows[i-1].VolumeNorm
		}
		if i >= 2 {
			rows[i].SentFirmLag2 = rows[i-2].SentFirm
		}
		if rows[i].SentFirmLag1 != nil && rows[i].VolumeNormLag1 != nil {
			product := *rows[i].SentFirmLag1 * *rows[i].VolumeNormLag1
			rows[i].SentXVol = &product
		}
		rows[i].InsufficientHistory = i < maxLagDepth
	}

	return rows
}

// normalizeVolume z-scores volume against this ticker's own mean and
// standard deviation over the sample window. Parameters are never shared
// across tickers. A degenerate (constant) series yields missing values.
func normalizeVolume(bars []entity.PriceBar) []*float64 {
	norm := make([]*float64, len(bars))
	if len(bars) == 0 {
		return norm
	}

	var sum float64
	for _, bar := range bars {
		sum += bar.Volume
	}
	mean := sum / float64(len(bars))

	var variance float64
	for _, bar := range bars {
		d := bar.Volume - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(bars)))
	if std == 0 {
		return norm
	}

	for i, bar := range bars {
		z := (bar.Volume - mean) / std
		norm[i] = &z
	}
	return norm
}
