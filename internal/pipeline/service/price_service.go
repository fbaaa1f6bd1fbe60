package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/errs"
	"golang-sentiment-panel/internal/pipeline/repository"
	"golang-sentiment-panel/pkg/logger"
	"golang-sentiment-panel/pkg/utils"
)

// PriceService loads per-ticker price series with derived log returns and
// the shared market return series.
type PriceService interface {
	// Load returns date-ordered bars per ticker with log returns computed.
	// Duplicate (ticker, date) keys in the source are an AlignmentError.
	Load(ctx context.Context, tickers []string, from, to time.Time) (map[string][]entity.PriceBar, error)
	// MarketReturns returns the index log return per calendar day. Days the
	// index did not trade are simply absent.
	MarketReturns(ctx context.Context, from, to time.Time) (map[string]float64, error)
	// ImportCSV loads the raw price table from a headered CSV file.
	ImportCSV(ctx context.Context, path string) (int, error)
}

// NewPriceService creates a new PriceService.
func NewPriceService(priceRepo repository.PriceRepository, indexTicker string, log *logger.Logger) PriceService {
	return &priceService{
		priceRepo:   priceRepo,
		indexTicker: indexTicker,
		logger:      log,
	}
}

type priceService struct {
	priceRepo   repository.PriceRepository
	indexTicker string
	logger      *logger.Logger
}

func (s *priceService) Load(ctx context.Context, tickers []string, from, to time.Time) (map[string][]entity.PriceBar, error) {
	bars, err := s.priceRepo.FindBars(ctx, tickers, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load price bars: %w", err)
	}

	series := make(map[string][]entity.PriceBar)
	for _, bar := range bars {
		series[bar.Ticker] = append(series[bar.Ticker], bar)
	}

	for ticker, tickerBars := range series {
		for i := 1; i < len(tickerBars); i++ {
			if !tickerBars[i].Date.After(tickerBars[i-1].Date) {
				return nil, &errs.AlignmentError{
					Ticker: ticker,
					Date:   tickerBars[i].Date.Format(utils.DateLayout),
					Reason: "duplicate or out-of-order (ticker, date) key in price source",
				}
			}
		}
		ComputeLogReturns(series[ticker])
	}

	return series, nil
}

func (s *priceService) MarketReturns(ctx context.Context, from, to time.Time) (map[string]float64, error) {
	series, err := s.Load(ctx, []string{s.indexTicker}, from, to)
	if err != nil {
		return nil, err
	}

	returns := make(map[string]float64)
	for _, bar := range series[s.indexTicker] {
		if bar.LogReturn != nil {
			returns[bar.Date.Format(utils.DateLayout)] = *bar.LogReturn
		}
	}
	return returns, nil
}

// ComputeLogReturns fills LogReturn on a date-ascending bar slice. The first
// bar has no return; a non-positive close leaves the return missing rather
// than fabricating a value.
func ComputeLogReturns(bars []entity.PriceBar) {
	if len(bars) == 0 {
		return
	}
	bars[0].LogReturn = nil
	for i := 1; i < len(bars); i++ {
		prev, curr := bars[i-1].Close, bars[i].Close
		if prev <= 0 || curr <= 0 {
			bars[i].LogReturn = nil
			continue
		}
		ret := math.Log(curr / prev)
		bars[i].LogReturn = &ret
	}
}

var priceCSVColumns = []string{"ticker", "date", "open", "high", "low", "close", "volume"}

func (s *priceService) ImportCSV(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open price file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read price file header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}
	for _, col := range priceCSVColumns {
		if _, ok := colIndex[col]; !ok {
			return 0, &errs.SchemaError{Table: "stock_prices_raw", Column: col}
		}
	}

	var bars []entity.PriceBar
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read price file: %w", err)
		}

		bar, err := parsePriceRecord(record, colIndex)
		if err != nil {
			s.logger.Warn("Skipping malformed price row", logger.ErrorField(err))
			skipped++
			continue
		}
		bars = append(bars, bar)
	}

	inserted, err := s.priceRepo.SaveBatch(ctx, bars)
	if err != nil {
		return 0, fmt.Errorf("failed to persist price bars: %w", err)
	}

	s.logger.Info("Imported price bars",
		logger.IntField("inserted", int(inserted)),
		logger.IntField("duplicates", len(bars)-int(inserted)),
		logger.IntField("skipped", skipped),
	)
	return int(inserted), nil
}

func parsePriceRecord(record []string, colIndex map[string]int) (entity.PriceBar, error) {
	ticker := record[colIndex["ticker"]]
	if ticker == "" {
		return entity.PriceBar{}, fmt.Errorf("price row has empty ticker")
	}

	date, err := time.ParseInLocation(utils.DateLayout, record[colIndex["date"]], utils.GetVNTimeLocation())
	if err != nil {
		return entity.PriceBar{}, fmt.Errorf("price row for %s has bad date %q: %w", ticker, record[colIndex["date"]], err)
	}

	values := make(map[string]float64, 5)
	for _, col := range []string{"open", "high", "low", "close", "volume"} {
		v, err := strconv.ParseFloat(record[colIndex[col]], 64)
		if err != nil {
			return entity.PriceBar{}, fmt.Errorf("price row for %s on %s has bad %s: %w", ticker, record[colIndex["date"]], col, err)
		}
		values[col] = v
	}

	return entity.PriceBar{
		Ticker: ticker,
		Date:   date,
		Open:   values["open"],
		High:   values["high"],
		Low:    values["low"],
		Close:  values["close"],
		Volume: values["volume"],
	}, nil
}
