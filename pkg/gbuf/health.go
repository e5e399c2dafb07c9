package gbuf

import (
	"fmt"
	"time"

	"github.com/opd-ai/go-gbuf/internal/config"
	"github.com/opd-ai/go-gbuf/internal/feed"
	"github.com/opd-ai/go-gbuf/internal/render"
)

// HealthStatus grades the viewer or one of its parts.
type HealthStatus string

const (
	HealthOK        HealthStatus = "ok"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the viewer's health at Timestamp. Components holds one
// entry each for "instance", "feed", "renderer" and "errors".
type HealthCheck struct {
	Status     HealthStatus
	Timestamp  time.Time
	Uptime     time.Duration // zero while stopped
	Components map[string]ComponentHealth
	Message    string
}

// ComponentHealth grades one part of the viewer. LastUpdated is the
// last render for the renderer and the check time otherwise.
type ComponentHealth struct {
	Status      HealthStatus
	Message     string
	LastUpdated time.Time
}

func (h HealthCheck) IsHealthy() bool   { return h.Status == HealthOK }
func (h HealthCheck) IsDegraded() bool  { return h.Status == HealthDegraded }
func (h HealthCheck) IsUnhealthy() bool { return h.Status == HealthUnhealthy }

// healthInputs is what Health reads from the viewer under its lock.
type healthInputs struct {
	now     time.Time
	running bool
	started time.Time
	feed    feed.Feed
	kind    config.FeedKind
	session *render.Session
	frames  uint64
	lastErr error
}

// assessHealth grades each part, then the whole. A stopped viewer is
// unhealthy; a recent error or a degraded feed degrades a running one.
// Command failures in the last frame only degrade the renderer.
func assessHealth(in healthInputs) HealthCheck {
	parts := map[string]ComponentHealth{
		"instance": instanceHealth(in),
		"feed":     feedHealth(in),
		"renderer": rendererHealth(in),
		"errors":   errorsHealth(in),
	}
	h := HealthCheck{
		Status:     HealthOK,
		Timestamp:  in.now,
		Components: parts,
		Message:    "All components healthy",
	}
	if in.running && !in.started.IsZero() {
		h.Uptime = in.now.Sub(in.started)
	}
	switch {
	case !in.running:
		h.Status, h.Message = HealthUnhealthy, "Viewer is not running"
	case in.lastErr != nil:
		h.Status, h.Message = HealthDegraded, "Running with recent errors"
	case parts["feed"].Status != HealthOK:
		h.Status, h.Message = HealthDegraded, parts["feed"].Message
	}
	return h
}

func instanceHealth(in healthInputs) ComponentHealth {
	if !in.running {
		return ComponentHealth{HealthUnhealthy, "Viewer is not running", in.now}
	}
	return ComponentHealth{HealthOK, "Viewer is running", in.now}
}

// feedHealth reports a dserv feed as degraded while it is disconnected.
func feedHealth(in healthInputs) ComponentHealth {
	switch {
	case !in.running:
		return ComponentHealth{HealthUnhealthy, "Feed stopped", in.now}
	case in.feed == nil:
		return ComponentHealth{HealthOK, "No feed; frames arrive through Submit", in.now}
	}
	c, ok := in.feed.(*feed.Client)
	if !ok {
		return ComponentHealth{HealthOK, in.kind.String() + " feed running", in.now}
	}
	if !c.Connected() {
		return ComponentHealth{HealthDegraded, fmt.Sprintf("dserv disconnected (breaker %s)", c.Breaker().State()), in.now}
	}
	return ComponentHealth{HealthOK, fmt.Sprintf("dserv connected, %d datapoints delivered", c.Stats().Delivered), in.now}
}

// rendererHealth grades the last rendered frame. The session outlives
// Stop, so a stopped viewer can still report a healthy renderer.
func rendererHealth(in healthInputs) ComponentHealth {
	if in.session == nil {
		return ComponentHealth{HealthUnhealthy, "Renderer not initialized", in.now}
	}
	st := in.session.Stats()
	if st.Errors > 0 {
		return ComponentHealth{HealthDegraded, fmt.Sprintf("%d of %d commands failed in the last frame", st.Errors, st.Commands), st.RenderedAt}
	}
	return ComponentHealth{HealthOK, fmt.Sprintf("%d frames rendered", in.frames), st.RenderedAt}
}

func errorsHealth(in healthInputs) ComponentHealth {
	if in.lastErr != nil {
		return ComponentHealth{HealthDegraded, in.lastErr.Error(), in.now}
	}
	return ComponentHealth{HealthOK, "No recent errors", in.now}
}
