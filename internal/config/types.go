// Package config provides configuration parsing for go-gbuf.
// It defines the configuration structures and parses two formats: a Lua
// table assigned to gbuf.config and a legacy "key value" text file.
package config

import (
	"fmt"
	"image/color"
	"strings"
	"time"
)

// Config represents the complete viewer configuration.
type Config struct {
	// Window contains the preview window settings.
	Window WindowConfig
	// Render contains rendering behavior settings.
	Render RenderConfig
	// Feed selects where gbuf payloads come from.
	Feed FeedConfig
	// Snapshot contains headless snapshot settings.
	Snapshot SnapshotConfig
}

// WindowConfig contains window-related configuration options.
type WindowConfig struct {
	// Width is the initial canvas width in pixels.
	Width int
	// Height is the initial canvas height in pixels.
	Height int
	// Title is the window title.
	Title string
	// Background is the color each render pass clears to.
	Background color.RGBA
	// FPS is the preview update rate.
	FPS int
}

// RenderConfig contains rendering behavior options.
type RenderConfig struct {
	// AutoScale maps setwindow bounds onto the canvas.
	AutoScale bool
	// ClipEnabled honors setclipregion commands.
	ClipEnabled bool
	// FontFamily is the family used before any setfont.
	FontFamily string
	// FontSize is the size used before any setfont.
	FontSize float64
	// Antialias enables anti-aliased vector drawing.
	Antialias bool
	// FontFiles maps extra family names to TrueType files.
	FontFiles map[string]string
}

// FeedConfig selects and configures the payload source.
type FeedConfig struct {
	// Kind is the feed type.
	Kind FeedKind
	// URL is the dserv WebSocket endpoint.
	URL string
	// Stream is the datapoint name rendered by the viewer.
	Stream string
	// Match is the subscription pattern sent to dserv. Empty means Stream.
	Match string
	// Every asks dserv to forward every nth update.
	Every int
	// File is the gbuf JSON file watched by the file feed.
	File string
	// Script is the Lua script run by the script feed.
	Script string
	// Interval is how often the script feed re-runs its script.
	// Zero runs it once.
	Interval time.Duration
	// ReconnectDelay is the pause between dserv reconnect attempts.
	ReconnectDelay time.Duration
}

// SubscribeMatch returns the pattern to subscribe with.
func (fc FeedConfig) SubscribeMatch() string {
	if fc.Match != "" {
		return fc.Match
	}
	return fc.Stream
}

// SnapshotConfig contains headless output settings.
type SnapshotConfig struct {
	// Path is the PNG file written after every rendered frame. Empty disables.
	Path string
}

// FeedKind identifies a payload source.
type FeedKind int

const (
	// FeedDserv subscribes to a dserv WebSocket server.
	FeedDserv FeedKind = iota
	// FeedFile watches a gbuf JSON file.
	FeedFile
	// FeedScript runs a Lua drawing script.
	FeedScript
	// FeedNone accepts frames only through the API.
	FeedNone
)

// String returns the string representation of a FeedKind.
func (fk FeedKind) String() string {
	switch fk {
	case FeedDserv:
		return "dserv"
	case FeedFile:
		return "file"
	case FeedScript:
		return "script"
	case FeedNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseFeedKind parses a feed kind string into a FeedKind.
func ParseFeedKind(s string) (FeedKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dserv", "websocket", "ws":
		return FeedDserv, nil
	case "file":
		return FeedFile, nil
	case "script", "lua":
		return FeedScript, nil
	case "none", "":
		return FeedNone, nil
	default:
		return FeedNone, fmt.Errorf("unknown feed kind: %s", s)
	}
}

// Validate checks the configuration and returns the first error found.
// Use a Validator for the full list of errors and warnings.
func (c *Config) Validate() error {
	return NewValidator().Validate(c).Error()
}
