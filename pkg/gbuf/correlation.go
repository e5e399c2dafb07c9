package gbuf

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"
)

// correlationAttr is the log attribute carrying a run's ID.
const correlationAttr = "correlation_id"

// CorrelationID names one run of a Viewer: every Start draws a fresh one,
// and the logs and events of that run carry it. The first eight hex
// digits are the start time in Unix seconds, so IDs sort by start.
type CorrelationID string

func (c CorrelationID) String() string { return string(c) }

// Started returns the start time encoded in c.
func (c CorrelationID) Started() (time.Time, bool) {
	if len(c) != 16 {
		return time.Time{}, false
	}
	b, err := hex.DecodeString(string(c[:8]))
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(int64(binary.BigEndian.Uint32(b)), 0), true
}

// NewCorrelationID returns an ID for a run starting now.
func NewCorrelationID() CorrelationID {
	var b [8]byte
	binary.BigEndian.PutUint32(b[:4], uint32(time.Now().Unix()))
	// crypto/rand.Read does not fail on supported platforms.
	_, _ = rand.Read(b[4:])
	return CorrelationID(hex.EncodeToString(b[:]))
}

type runKey struct{}

// WithCorrelationID tags ctx with id, or with a new ID when id is empty.
func WithCorrelationID(ctx context.Context, id CorrelationID) context.Context {
	if id == "" {
		id = NewCorrelationID()
	}
	return context.WithValue(ctx, runKey{}, id)
}

// CorrelationIDFromContext returns the run ID in ctx, or "".
func CorrelationIDFromContext(ctx context.Context) CorrelationID {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runKey{}).(CorrelationID)
	return id
}

// RunLogHandler adds correlation_id to records logged with a context
// that carries one. Passing Event.Context to slog.InfoContext tags an
// event handler's own lines with the run that emitted the event.
type RunLogHandler struct {
	slog.Handler
}

// NewRunLogHandler wraps inner.
func NewRunLogHandler(inner slog.Handler) *RunLogHandler {
	return &RunLogHandler{Handler: inner}
}

func (h *RunLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := CorrelationIDFromContext(ctx); id != "" {
		r = r.Clone()
		r.AddAttrs(slog.String(correlationAttr, id.String()))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *RunLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RunLogHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *RunLogHandler) WithGroup(name string) slog.Handler {
	return &RunLogHandler{Handler: h.Handler.WithGroup(name)}
}
