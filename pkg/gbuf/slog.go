package gbuf

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger interface for custom logging.
// It follows the slog-style signature for compatibility with Go's structured logging.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// SlogAdapter wraps a *slog.Logger to implement the Logger interface.
//
// Example:
//
//	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
//	opts := gbuf.Options{Logger: gbuf.NewSlogAdapter(slog.New(handler))}
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a Logger adapter from a *slog.Logger.
// If logger is nil, slog.Default() is used.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Debug logs a debug-level message with optional key-value pairs.
func (s *SlogAdapter) Debug(msg string, args ...any) {
	s.logger.Debug(msg, args...)
}

// Info logs an info-level message with optional key-value pairs.
func (s *SlogAdapter) Info(msg string, args ...any) {
	s.logger.Info(msg, args...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (s *SlogAdapter) Warn(msg string, args ...any) {
	s.logger.Warn(msg, args...)
}

// Error logs an error-level message with optional key-value pairs.
func (s *SlogAdapter) Error(msg string, args ...any) {
	s.logger.Error(msg, args...)
}

// Slog returns the wrapped *slog.Logger.
func (s *SlogAdapter) Slog() *slog.Logger {
	return s.logger
}

// DefaultLogger returns a Logger that writes text to stderr at Info level.
func DefaultLogger() Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &SlogAdapter{logger: slog.New(handler)}
}

// DebugLogger returns a Logger configured for debugging.
// It logs to stderr with text format at Debug level, including source location.
func DebugLogger() Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	})
	return &SlogAdapter{logger: slog.New(handler)}
}

// JSONLogger returns a Logger that outputs JSON-formatted logs.
func JSONLogger(w io.Writer, level slog.Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return &SlogAdapter{logger: slog.New(handler)}
}

// NopLogger returns a Logger that discards all log messages.
func NopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string, args ...any) {}
func (n *nopLogger) Info(msg string, args ...any)  {}
func (n *nopLogger) Warn(msg string, args ...any)  {}
func (n *nopLogger) Error(msg string, args ...any) {}

// toSlog returns a *slog.Logger that writes through l. The internal
// packages log through *slog.Logger; an SlogAdapter hands its logger over
// directly and anything else is bridged by loggerHandler.
func toSlog(l Logger) *slog.Logger {
	switch v := l.(type) {
	case nil:
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	case *SlogAdapter:
		return v.logger
	default:
		return slog.New(&loggerHandler{logger: l})
	}
}

// loggerHandler is a slog.Handler that forwards records to a Logger.
type loggerHandler struct {
	logger Logger
	attrs  []any
	group  string
}

func (h *loggerHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *loggerHandler) Handle(_ context.Context, r slog.Record) error {
	args := make([]any, 0, len(h.attrs)+2*r.NumAttrs())
	args = append(args, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		args = append(args, h.key(a.Key), a.Value.Any())
		return true
	})
	switch {
	case r.Level >= slog.LevelError:
		h.logger.Error(r.Message, args...)
	case r.Level >= slog.LevelWarn:
		h.logger.Warn(r.Message, args...)
	case r.Level >= slog.LevelInfo:
		h.logger.Info(r.Message, args...)
	default:
		h.logger.Debug(r.Message, args...)
	}
	return nil
}

func (h *loggerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &loggerHandler{logger: h.logger, group: h.group}
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.key(a.Key), a.Value.Any())
	}
	return next
}

func (h *loggerHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &loggerHandler{logger: h.logger, attrs: h.attrs, group: h.key(name)}
}

func (h *loggerHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}
