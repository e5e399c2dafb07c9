package config

import (
	"time"

	"github.com/opd-ai/go-gbuf/internal/render"
)

// Default values for configuration options.
const (
	// DefaultWidth is the default canvas width in pixels.
	DefaultWidth = 640
	// DefaultHeight is the default canvas height in pixels.
	DefaultHeight = 480
	// DefaultTitle is the default window title.
	DefaultTitle = "gbuf-view"
	// DefaultFPS is the default preview update rate.
	DefaultFPS = 30
	// DefaultURL is the default dserv endpoint.
	DefaultURL = "ws://localhost:2565/ws"
	// DefaultStream is the datapoint the viewer renders by default.
	DefaultStream = "graphics/main"
	// DefaultReconnectDelay is the pause between dserv reconnect attempts.
	DefaultReconnectDelay = 2 * time.Second
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{
			Width:      DefaultWidth,
			Height:     DefaultHeight,
			Title:      DefaultTitle,
			Background: render.White,
			FPS:        DefaultFPS,
		},
		Render: RenderConfig{
			AutoScale:  true,
			FontFamily: render.DefaultFontFamily,
			FontSize:   render.DefaultFontSize,
			Antialias:  true,
		},
		Feed: FeedConfig{
			Kind:           FeedDserv,
			URL:            DefaultURL,
			Stream:         DefaultStream,
			Every:          1,
			ReconnectDelay: DefaultReconnectDelay,
		},
	}
}
