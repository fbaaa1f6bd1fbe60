// Package errs defines the pipeline error taxonomy. IngestionError and
// ScoringError are per-item and non-fatal: the item is logged, skipped and
// retried on the next run. AlignmentError and SchemaError abort the current
// build step, because a silently malformed panel corrupts every downstream
// estimate.
package errs

import "fmt"

// IngestionError reports a malformed raw article (missing required fields).
type IngestionError struct {
	URL    string
	Reason string
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion rejected article %q: %s", e.URL, e.Reason)
}

// ScoringError reports a classifier failure or unscoreable text for one
// article.
type ScoringError struct {
	ArticleID uint64
	Err       error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring article %d failed: %v", e.ArticleID, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

// AlignmentError reports an unresolvable ambiguity in a date/ticker join,
// such as duplicate (ticker, date) keys in a price source.
type AlignmentError struct {
	Ticker string
	Date   string
	Reason string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("alignment error for %s on %s: %s", e.Ticker, e.Date, e.Reason)
}

// SchemaError reports a persisted table missing an expected column on read.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %s is missing expected column %q", e.Table, e.Column)
}
