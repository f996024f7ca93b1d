// Package logging provides the structured logger used across the pipeline.
package logging

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog with helpers for the pipeline's recurring log shapes.
type Logger struct {
	*slog.Logger
}

// New creates a JSON structured logger at the given level.
func New(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// Default returns an info-level logger.
func Default() *Logger {
	return New(slog.LevelInfo)
}

// ExternalAPICall logs one upstream API call.
func (l *Logger) ExternalAPICall(method, endpoint string, statusCode int, duration time.Duration, attempt int) {
	l.Debug("external api call",
		"method", method,
		"endpoint", endpoint,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
		"attempt", attempt,
	)
}

// CacheOp logs a cache lookup.
func (l *Logger) CacheOp(cacheName, key string, hit bool, size int) {
	l.Debug("cache operation",
		"cache", cacheName,
		"key", key,
		"hit", hit,
		"cache_size", size,
	)
}

// CollectionPass logs the outcome of one collection pass.
func (l *Logger) CollectionPass(kind string, total, succeeded, failed int, duration time.Duration) {
	l.Info("collection pass completed",
		"kind", kind,
		"total_items", total,
		"successful_items", succeeded,
		"failed_items", failed,
		"duration_ms", duration.Milliseconds(),
	)
}
