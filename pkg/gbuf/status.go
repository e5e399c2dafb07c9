package gbuf

import (
	"context"
	"time"
)

// Status represents the current state of a Viewer.
type Status struct {
	// Running indicates if the viewer is currently active.
	Running bool
	// Headless is true when rendering to an offscreen raster.
	Headless bool
	// StartTime is when the viewer was last started (zero if never started).
	StartTime time.Time
	// FrameCount is the number of frames rendered since the last start.
	FrameCount uint64
	// RenderStatus is the status line of the most recent render pass,
	// such as "Rendered 12 commands (3 text) at 14:05:09 [640×480]".
	RenderStatus string
	// Feed names the active feed kind.
	Feed string
	// LastError is the most recent error encountered (nil if none).
	LastError error
	// ConfigSource describes the configuration source (file path or "embedded").
	ConfigSource string
}

// ErrorHandler is a callback for runtime errors.
// It is called asynchronously when errors occur during operation.
// Do not block in the handler; perform only quick, non-blocking operations.
type ErrorHandler func(err error)

// EventHandler is a callback for lifecycle events.
// It is called asynchronously; do not block in the handler.
type EventHandler func(event Event)

// Event represents a lifecycle event.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Message   string
	// CorrelationID identifies the run that emitted the event.
	CorrelationID CorrelationID
}

// Context returns ctx carrying the event's correlation ID.
func (e Event) Context(ctx context.Context) context.Context {
	if e.CorrelationID == "" {
		return ctx
	}
	return WithCorrelationID(ctx, e.CorrelationID)
}

// EventType enumerates lifecycle event types.
// The underlying integer values are implementation details and should not
// be relied upon for serialization. Use the constant names for comparison.
type EventType int

const (
	// EventStarted is emitted when the viewer starts successfully.
	EventStarted EventType = iota
	// EventStopped is emitted when the viewer stops.
	EventStopped
	// EventRestarted is emitted after a successful restart.
	EventRestarted
	// EventConfigReloaded is emitted when configuration is reloaded.
	EventConfigReloaded
	// EventFrameRendered is emitted after every render pass. The message
	// is the pass status line.
	EventFrameRendered
	// EventWindowChanged is emitted when a frame declares different
	// setwindow bounds than the previous one.
	EventWindowChanged
	// EventError is emitted when a recoverable error occurs.
	EventError
)

// String returns a human-readable representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventRestarted:
		return "restarted"
	case EventConfigReloaded:
		return "config_reloaded"
	case EventFrameRendered:
		return "frame_rendered"
	case EventWindowChanged:
		return "window_changed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}
