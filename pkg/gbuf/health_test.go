package gbuf

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/go-gbuf/internal/config"
	"github.com/opd-ai/go-gbuf/internal/feed"
)

// idleFeed is a non-dserv feed that never delivers.
type idleFeed struct{}

func (idleFeed) Run(ctx context.Context, _ *feed.Mailbox) error {
	<-ctx.Done()
	return nil
}

func TestAssessHealth(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		in      healthInputs
		status  HealthStatus
		message string
		feed    HealthStatus
		uptime  time.Duration
	}{
		{
			name:    "stopped",
			in:      healthInputs{now: now},
			status:  HealthUnhealthy,
			message: "Viewer is not running",
			feed:    HealthUnhealthy,
		},
		{
			name:    "running on submit",
			in:      healthInputs{now: now, running: true, started: now.Add(-time.Minute)},
			status:  HealthOK,
			message: "All components healthy",
			feed:    HealthOK,
			uptime:  time.Minute,
		},
		{
			name:    "script feed",
			in:      healthInputs{now: now, running: true, feed: idleFeed{}, kind: config.FeedScript},
			status:  HealthOK,
			message: "All components healthy",
			feed:    HealthOK,
		},
		{
			name:    "recent error",
			in:      healthInputs{now: now, running: true, lastErr: errors.New("bad frame")},
			status:  HealthDegraded,
			message: "Running with recent errors",
			feed:    HealthOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := assessHealth(tt.in)
			if h.Status != tt.status || h.Message != tt.message {
				t.Errorf("health = %s %q, want %s %q", h.Status, h.Message, tt.status, tt.message)
			}
			if got := h.Components["feed"].Status; got != tt.feed {
				t.Errorf("feed = %s, want %s", got, tt.feed)
			}
			if h.Uptime != tt.uptime {
				t.Errorf("Uptime = %v, want %v", h.Uptime, tt.uptime)
			}
			if !h.Timestamp.Equal(now) {
				t.Errorf("Timestamp = %v", h.Timestamp)
			}
		})
	}
}

func TestAssessHealthScriptFeedMessage(t *testing.T) {
	h := assessHealth(healthInputs{running: true, feed: idleFeed{}, kind: config.FeedScript})
	if msg := h.Components["feed"].Message; msg != config.FeedScript.String()+" feed running" {
		t.Errorf("feed message = %q", msg)
	}
	if h.Components["renderer"].Status != HealthUnhealthy {
		t.Errorf("renderer = %+v, want unhealthy without a session", h.Components["renderer"])
	}
	if h.Components["errors"].Message != "No recent errors" {
		t.Errorf("errors = %+v", h.Components["errors"])
	}
}

func TestHealthCheck_Predicates(t *testing.T) {
	tests := []struct {
		status                        HealthStatus
		healthy, degraded, unhealthy bool
	}{
		{HealthOK, true, false, false},
		{HealthDegraded, false, true, false},
		{HealthUnhealthy, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := HealthCheck{Status: tt.status}
			if h.IsHealthy() != tt.healthy || h.IsDegraded() != tt.degraded || h.IsUnhealthy() != tt.unhealthy {
				t.Errorf("predicates for %s = %v/%v/%v", tt.status, h.IsHealthy(), h.IsDegraded(), h.IsUnhealthy())
			}
		})
	}
}

func TestHealth_NotRunning(t *testing.T) {
	v := newHeadless(t, noFeedConfig, Options{})

	h := v.Health()
	if !h.IsUnhealthy() {
		t.Errorf("Status = %s, want unhealthy", h.Status)
	}
	if h.Uptime != 0 {
		t.Errorf("Uptime = %v, want 0", h.Uptime)
	}
	for _, name := range []string{"instance", "feed", "renderer", "errors"} {
		if _, ok := h.Components[name]; !ok {
			t.Errorf("component %q missing", name)
		}
	}
	if h.Components["renderer"].Status != HealthUnhealthy {
		t.Errorf("renderer = %+v, want unhealthy before the first start", h.Components["renderer"])
	}
}

func TestHealth_Running(t *testing.T) {
	v := newHeadless(t, noFeedConfig, Options{})
	if err := v.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	h := v.Health()
	if !h.IsHealthy() {
		t.Errorf("health = %+v", h)
	}
	if h.Uptime <= 0 {
		t.Errorf("Uptime = %v, want > 0", h.Uptime)
	}
	if msg := h.Components["feed"].Message; !strings.Contains(msg, "Submit") {
		t.Errorf("feed message = %q", msg)
	}
}

func TestHealth_AfterStop(t *testing.T) {
	v := newHeadless(t, noFeedConfig, Options{})
	if err := v.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	v.Stop()

	h := v.Health()
	if !h.IsUnhealthy() {
		t.Errorf("Status = %s, want unhealthy", h.Status)
	}
	if h.Components["feed"].Status != HealthUnhealthy {
		t.Errorf("feed = %+v", h.Components["feed"])
	}
	// The session survives Stop.
	if h.Components["renderer"].Status != HealthOK {
		t.Errorf("renderer = %+v", h.Components["renderer"])
	}
}

func TestHealth_DservDisconnected(t *testing.T) {
	// Nothing listens on this port, so the feed never connects.
	v := newHeadless(t, "width 32\nheight 32\nreconnect_delay 0.05\n", Options{URL: "ws://127.0.0.1:1/ws"})
	if err := v.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h := v.Health()
	fh := h.Components["feed"]
	if fh.Status != HealthDegraded || !strings.HasPrefix(fh.Message, "dserv disconnected") {
		t.Errorf("feed = %+v", fh)
	}
	if !h.IsDegraded() {
		t.Errorf("Status = %s, want degraded", h.Status)
	}
}
