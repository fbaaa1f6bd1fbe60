package utils

import (
	"context"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"golang-sentiment-panel/pkg/logger"
)

// GoSafe runs fn in a goroutine and recovers from panics so one bad item
// cannot take down a whole batch.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				debug.PrintStack()
			}
		}()
		fn()
	}()
}

// ShouldContinue reports whether the context is still alive, logging once
// when it is not.
func ShouldContinue(ctx context.Context, log *logger.Logger) bool {
	if err := ctx.Err(); err != nil {
		log.Info("Context cancelled, stopping work", logger.ErrorField(err))
		return false
	}
	return true
}

// ContainsString reports whether target is present in items.
func ContainsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

// CleanToValidUTF8 strips invalid UTF-8 sequences and NUL bytes, which
// PostgreSQL text columns reject.
func CleanToValidUTF8(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, 0) {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	return strings.ReplaceAll(s, "\x00", "")
}

// SafeText collapses runs of whitespace into single spaces and trims the
// result.
func SafeText(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
