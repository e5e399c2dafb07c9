package feed

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/opd-ai/go-gbuf/internal/config"
	"github.com/opd-ai/go-gbuf/internal/lua"
)

// Feed is a payload source. Run delivers envelopes into out until ctx
// is cancelled or the source is exhausted.
type Feed interface {
	Run(ctx context.Context, out *Mailbox) error
}

// Resizer is implemented by feeds that react to canvas size changes.
type Resizer interface {
	Resize(width, height int)
}

// Options carries the settings New cannot take from a config.Config.
type Options struct {
	// Logger receives feed diagnostics. Nil discards.
	Logger *slog.Logger
	// Lua limits the script feed's runtime. The zero value uses
	// lua.DefaultConfig.
	Lua lua.RuntimeConfig
	// ScriptFS resolves the script feed's path. Nil reads from disk.
	ScriptFS fs.FS
	// OnConnect is passed to the dserv client.
	OnConnect func(connected bool)
}

// New builds the feed selected by cfg.Feed.
func New(cfg config.Config, opts Options) (Feed, error) {
	fc := cfg.Feed
	logger := opts.Logger
	switch fc.Kind {
	case config.FeedDserv:
		return NewClient(ClientOptions{
			URL:            fc.URL,
			Stream:         fc.Stream,
			Match:          fc.SubscribeMatch(),
			Every:          fc.Every,
			ReconnectDelay: fc.ReconnectDelay,
			Logger:         logger,
			OnConnect:      opts.OnConnect,
		})
	case config.FeedFile:
		return NewFile(FileOptions{Path: fc.File, Name: fc.Stream, Logger: logger})
	case config.FeedScript:
		return NewScript(ScriptOptions{
			Path:     fc.Script,
			FS:       opts.ScriptFS,
			Name:     fc.Stream,
			Interval: fc.Interval,
			Width:    cfg.Window.Width,
			Height:   cfg.Window.Height,
			Runtime:  opts.Lua,
			Logger:   logger,
		})
	case config.FeedNone:
		return nil, ErrNoFeed
	default:
		return nil, fmt.Errorf("unknown feed kind %v", fc.Kind)
	}
}
