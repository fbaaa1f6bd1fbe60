package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang-sentiment-panel/internal/pipeline/repository"
	"golang-sentiment-panel/pkg/logger"
	"golang-sentiment-panel/pkg/utils"
)

// ExportService writes the finished panel as a headered UTF-8 CSV for the
// external estimator. Missing values are written as empty cells, never as
// zeros.
type ExportService interface {
	ExportPanel(ctx context.Context, path string) (int, error)
}

// NewExportService creates a new ExportService.
func NewExportService(panelRepo repository.PanelRepository, log *logger.Logger) ExportService {
	return &exportService{
		panelRepo: panelRepo,
		logger:    log,
	}
}

type exportService struct {
	panelRepo repository.PanelRepository
	logger    *logger.Logger
}

var panelCSVHeader = []string{
	"ticker", "date", "ret", "sent_firm", "sent_macro", "mkt_ret", "volume_norm",
	"sent_firm_lag1", "sent_firm_lag2", "sent_macro_lag1", "mkt_ret_lag1",
	"volume_norm_lag1", "sent_x_vol", "insufficient_history",
}

func (s *exportService) ExportPanel(ctx context.Context, path string) (int, error) {
	rows, err := s.panelRepo.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load panel rows: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create export directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(panelCSVHeader); err != nil {
		return 0, fmt.Errorf("failed to write export header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Ticker,
			row.Date.Format(utils.DateLayout),
			formatOptionalFloat(row.Ret),
			formatOptionalFloat(row.SentFirm),
			formatOptionalFloat(row.SentMacro),
			formatOptionalFloat(row.MktRet),
			formatOptionalFloat(row.VolumeNorm),
			formatOptionalFloat(row.SentFirmLag1),
			formatOptionalFloat(row.SentFirmLag2),
			formatOptionalFloat(row.SentMacroLag1),
			formatOptionalFloat(row.MktRetLag1),
			formatOptionalFloat(row.VolumeNormLag1),
			formatOptionalFloat(row.SentXVol),
			strconv.FormatBool(row.InsufficientHistory),
		}
		if err := writer.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write export row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush export file: %w", err)
	}

	s.logger.Info("Exported panel",
		logger.StringField("path", path),
		logger.IntField("rows", len(rows)),
	)
	return len(rows), nil
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
