package repository

import "context"

// SentimentScorer scores the sentiment of one article text on [-1, 1].
// Implementations are treated as deterministic for a given text and model
// version, which is what lets scoring be reasoned about as exactly-once.
type SentimentScorer interface {
	Score(ctx context.Context, headline, body string) (float64, error)
}
