package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter enforces a token budget per one-minute window. It complements
// a request-per-minute limiter for APIs that also meter consumed tokens.
type TokenLimiter struct {
	mu           sync.Mutex
	maxPerMinute int
	used         int
	windowStart  time.Time
}

// NewTokenLimiter creates a limiter allowing maxPerMinute tokens per minute.
func NewTokenLimiter(maxPerMinute int) *TokenLimiter {
	return &TokenLimiter{
		maxPerMinute: maxPerMinute,
		windowStart:  time.Now(),
	}
}

// Wait blocks until the given number of tokens fits in the current window.
// A request larger than the whole budget is admitted alone at a window start
// so it cannot starve forever.
func (l *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	for {
		l.mu.Lock()
		now := time.Now()
		if now.Sub(l.windowStart) >= time.Minute {
			l.windowStart = now
			l.used = 0
		}
		if l.used+tokens <= l.maxPerMinute || (tokens > l.maxPerMinute && l.used == 0) {
			l.used += tokens
			l.mu.Unlock()
			return nil
		}
		wait := time.Minute - now.Sub(l.windowStart)
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// GetRemaining returns the tokens left in the current window.
func (l *TokenLimiter) GetRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.windowStart) >= time.Minute {
		return l.maxPerMinute
	}
	remaining := l.maxPerMinute - l.used
	if remaining < 0 {
		return 0
	}
	return remaining
}
