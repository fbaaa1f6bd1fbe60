package dto

import "time"

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	NewCount       int `json:"new_count"`
	DuplicateCount int `json:"duplicate_count"`
	RejectedCount  int `json:"rejected_count"`
}

// ScoreResult summarizes one incremental scoring run.
type ScoreResult struct {
	ScoredCount  int `json:"scored_count"`
	SkippedCount int `json:"skipped_count"`
}

// BuildResult summarizes one panel build.
type BuildResult struct {
	RowCount     int `json:"row_count"`
	TickerCount  int `json:"ticker_count"`
	FlaggedCount int `json:"flagged_count"`
}

// RunResult summarizes one end-to-end pipeline run.
type RunResult struct {
	FetchedCount int           `json:"fetched_count"`
	Ingest       *IngestResult `json:"ingest"`
	Score        *ScoreResult  `json:"score"`
	Build        *BuildResult  `json:"build"`
	Duration     time.Duration `json:"duration"`
}
