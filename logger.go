package csrgo

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with csrgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewJSONLoggerTo(os.Stderr, level)
}

// NewJSONLoggerTo is NewJSONLogger writing to w.
func NewJSONLoggerTo(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewTextLoggerTo(os.Stderr, level)
}

// NewTextLoggerTo is NewTextLogger writing to w.
func NewTextLoggerTo(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithType adds a relationship type field to the logger.
func (l *Logger) WithType(t RelationshipType) *Logger {
	return &Logger{
		Logger: l.Logger.With("type", string(t)),
	}
}

// WithConcurrency adds a concurrency field to the logger.
func (l *Logger) WithConcurrency(concurrency int) *Logger {
	return &Logger{
		Logger: l.Logger.With("concurrency", concurrency),
	}
}

// LogImportStarted logs the start of an import.
func (l *Logger) LogImportStarted(ctx context.Context, nodes, expectedRelationships uint64, concurrency int) {
	l.InfoContext(ctx, "import started",
		"nodes", nodes,
		"expected_relationships", expectedRelationships,
		"concurrency", concurrency,
	)
}

// LogImportFinished logs the outcome of an import.
func (l *Logger) LogImportFinished(ctx context.Context, s ImportSummary, err error) {
	if err != nil {
		l.ErrorContext(ctx, "import failed",
			"edges_read", s.EdgesRead,
			"duration", s.Duration,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "import completed",
		"nodes", s.Nodes,
		"edges_read", s.EdgesRead,
		"relationships", s.Relationships,
		"discarded", s.Discarded,
		"duplicates_aggregated", s.DuplicatesAggregated,
		"duration", s.Duration,
	)
}

// LogImportRejected logs an import rejected by the memory budget.
func (l *Logger) LogImportRejected(ctx context.Context, required, limit int64) {
	l.WarnContext(ctx, "import rejected",
		"required_bytes", required,
		"limit_bytes", limit,
	)
}

// LogInverseIndexed logs a lazily built inverse index.
func (l *Logger) LogInverseIndexed(ctx context.Context, t RelationshipType, relationships int64, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "inverse index failed",
			"type", string(t),
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "inverse index built",
		"type", string(t),
		"relationships", relationships,
		"duration", elapsed,
	)
}
