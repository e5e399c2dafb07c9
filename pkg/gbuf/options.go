package gbuf

import (
	"time"

	"github.com/opd-ai/go-gbuf/internal/config"
	"github.com/opd-ai/go-gbuf/internal/lua"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown.
// This can be overridden via Options.ShutdownTimeout.
const DefaultShutdownTimeout = 5 * time.Second

// Options configures the Viewer behavior. Non-zero fields override the
// corresponding configuration value, including after a reload.
type Options struct {
	// Headless renders onto an offscreen raster instead of a window.
	Headless bool

	// WindowTitle overrides the window title.
	WindowTitle string

	// Width and Height override the initial canvas size.
	Width  int
	Height int

	// URL selects the dserv feed and sets its endpoint.
	URL string

	// Stream overrides the datapoint name to render.
	Stream string

	// FeedFile selects the file feed and sets the watched file.
	FeedFile string

	// FeedScript selects the Lua script feed and sets the script path.
	// It takes precedence over FeedFile, which takes precedence over URL.
	FeedScript string

	// SnapshotPath writes a PNG of the canvas after every rendered frame.
	SnapshotPath string

	// LuaCPULimit overrides the Lua CPU instruction limit of the script feed.
	// Zero means use the default (10 million instructions).
	LuaCPULimit uint64

	// LuaMemoryLimit overrides the script feed's Lua memory limit in bytes.
	// Zero means use the default (50 MB).
	LuaMemoryLimit uint64

	// ShutdownTimeout sets the maximum time to wait for graceful shutdown.
	// Zero means use DefaultShutdownTimeout (5 seconds).
	ShutdownTimeout time.Duration

	// Logger sets a custom logger for debug/info messages.
	// If nil, no logging is performed.
	Logger Logger

	// Metrics sets a custom metrics collector. If nil, DefaultMetrics() is used.
	// Metrics can be exposed via /debug/vars by calling Metrics.RegisterExpvar().
	Metrics *Metrics

	// ErrorTracker sets a custom error tracker for error aggregation and alerting.
	// If nil, DefaultErrorTracker() is used.
	ErrorTracker *ErrorTracker

	// WatchConfig reloads the configuration in place whenever the
	// configuration file changes on disk. Only New honors it.
	WatchConfig bool

	// WatchDebounce sets the debounce interval for file change events.
	// Zero means use the default (500ms).
	WatchDebounce time.Duration
}

// DefaultOptions returns Options that change nothing in the configuration.
func DefaultOptions() Options {
	return Options{}
}

// apply writes the non-zero overrides into cfg.
func (o Options) apply(cfg *config.Config) {
	if o.WindowTitle != "" {
		cfg.Window.Title = o.WindowTitle
	}
	if o.Width > 0 {
		cfg.Window.Width = o.Width
	}
	if o.Height > 0 {
		cfg.Window.Height = o.Height
	}
	if o.Stream != "" {
		cfg.Feed.Stream = o.Stream
	}
	switch {
	case o.FeedScript != "":
		cfg.Feed.Kind = config.FeedScript
		cfg.Feed.Script = o.FeedScript
	case o.FeedFile != "":
		cfg.Feed.Kind = config.FeedFile
		cfg.Feed.File = o.FeedFile
	case o.URL != "":
		cfg.Feed.Kind = config.FeedDserv
		cfg.Feed.URL = o.URL
	}
	if o.SnapshotPath != "" {
		cfg.Snapshot.Path = o.SnapshotPath
	}
}

// luaConfig returns the Lua limits for the script feed. The zero value
// leaves the choice to the feed.
func (o Options) luaConfig() lua.RuntimeConfig {
	if o.LuaCPULimit == 0 && o.LuaMemoryLimit == 0 {
		return lua.RuntimeConfig{}
	}
	rc := lua.DefaultConfig()
	rc.Stdout = nil
	if o.LuaCPULimit > 0 {
		rc.CPULimit = o.LuaCPULimit
	}
	if o.LuaMemoryLimit > 0 {
		rc.MemoryLimit = o.LuaMemoryLimit
	}
	return rc
}
