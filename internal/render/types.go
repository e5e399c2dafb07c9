package render

import (
	"fmt"
	"image/color"

	"github.com/opd-ai/go-gbuf/internal/command"
)

// Config holds the preview window options.
type Config struct {
	// Width is the initial window width in pixels.
	Width int
	// Height is the initial window height in pixels.
	Height int
	// Title is the window title.
	Title string
	// TPS is the number of update ticks per second. Frames are pulled from
	// the source once per tick.
	TPS int
	// BackgroundColor fills the window behind the canvas.
	BackgroundColor color.RGBA
	// Resizable lets the user resize the window. A resize replays the
	// retained frame at the new size.
	Resizable bool
	// StatusInTitle appends the session status line to the window title.
	StatusInTitle bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Width:           640,
		Height:          480,
		Title:           "gbuf-view",
		TPS:             30,
		BackgroundColor: White,
		Resizable:       true,
		StatusInTitle:   true,
	}
}

// Validate checks if the Config has valid values.
func (c Config) Validate() error {
	if c.Width <= 0 {
		return fmt.Errorf("width must be positive, got %d", c.Width)
	}
	if c.Height <= 0 {
		return fmt.Errorf("height must be positive, got %d", c.Height)
	}
	if c.TPS < 0 {
		return fmt.Errorf("tps must not be negative, got %d", c.TPS)
	}
	return nil
}

// FrameSource yields payloads for the preview window. Next must not block;
// it reports false when nothing new has arrived.
type FrameSource interface {
	Next() (command.Envelope, bool)
}
