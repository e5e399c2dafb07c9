package gbuf

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"

	"github.com/opd-ai/go-gbuf/internal/command"
	"github.com/opd-ai/go-gbuf/internal/config"
)

// Configuration format constants for use with NewFromReader.
const (
	// FormatLegacy indicates the "key value" text format.
	FormatLegacy = "legacy"
	// FormatLua indicates the Lua format assigning gbuf.config.
	FormatLua = "lua"
)

// Envelope is one datapoint handed to Viewer.Submit. Data holds the gbuf
// payload: a JSON string, raw JSON bytes, an already-decoded map, or a
// compressed JSON document.
type Envelope = command.Envelope

// Viewer is an embedded gbuf renderer with full lifecycle control.
// It is safe for concurrent use from multiple goroutines.
type Viewer interface {
	// Start connects the feed and begins rendering. It returns once the
	// background goroutines are running.
	Start() error

	// Stop shuts the viewer down and waits for its goroutines.
	// Safe to call multiple times; subsequent calls are no-ops.
	Stop() error

	// Restart stops the viewer, reloads the configuration from its
	// original source and starts again.
	Restart() error

	// ReloadConfig reloads the configuration without stopping. Render
	// options apply to the retained frame at once; a changed feed is
	// reconnected. On error the previous configuration stays active.
	ReloadConfig() error

	// IsRunning returns true if the viewer is currently running.
	IsRunning() bool

	// Status returns detailed status information about the viewer.
	Status() Status

	// Submit queues a payload for rendering, replacing any payload that
	// has not been drawn yet.
	Submit(env Envelope) error

	// Resize changes the canvas size and replays the retained frame.
	Resize(width, height int) error

	// Snapshot writes the current canvas as PNG.
	Snapshot(w io.Writer) error

	// ExportFrame writes the retained command list as a gbuf JSON frame.
	ExportFrame(w io.Writer) error

	// SetErrorHandler registers a callback for runtime errors.
	// Panics in the handler are recovered.
	SetErrorHandler(handler ErrorHandler)

	// SetEventHandler registers a callback for lifecycle events.
	SetEventHandler(handler EventHandler)

	// Health returns a health check result for the viewer.
	Health() HealthCheck

	// Metrics returns the metrics collector for this viewer.
	Metrics() *Metrics
}

// New creates a Viewer from a configuration file on disk, in either the
// Lua or the legacy format. The viewer is created but not started.
//
//	v, err := gbuf.New("/etc/gbuf/view.lua", &gbuf.Options{WatchConfig: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer v.Stop()
func New(configPath string, opts *Options) (Viewer, error) {
	o := optionsOrDefault(opts)
	loader := configLoader(o, func(p *config.Parser) (*config.Config, error) {
		return p.ParseFile(configPath)
	})
	return newViewer(loader, o, configPath, configPath)
}

// NewFromFS creates a Viewer using configuration from an embedded filesystem.
// A script feed named by that configuration is read from the same filesystem.
//
//	//go:embed configs/*
//	var configFS embed.FS
//
//	v, err := gbuf.NewFromFS(configFS, "configs/view.lua", nil)
func NewFromFS(fsys fs.FS, configPath string, opts *Options) (Viewer, error) {
	o := optionsOrDefault(opts)
	loader := configLoader(o, func(p *config.Parser) (*config.Config, error) {
		return p.ParseFromFS(fsys, configPath)
	})
	v, err := newViewer(loader, o, "embedded:"+configPath, "")
	if err != nil {
		return nil, err
	}
	v.scriptFS = fsys
	return v, nil
}

// NewFromReader creates a Viewer from configuration content. The format
// is FormatLua or FormatLegacy.
//
//	cfg := strings.NewReader(`gbuf.config = { feed = "file", file = "frame.json" }`)
//	v, err := gbuf.NewFromReader(cfg, gbuf.FormatLua, nil)
func NewFromReader(r io.Reader, format string, opts *Options) (Viewer, error) {
	o := optionsOrDefault(opts)
	if format != FormatLegacy && format != FormatLua {
		return nil, fmt.Errorf("%w: %s (expected %q or %q)", ErrInvalidFormat, format, FormatLua, FormatLegacy)
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	loader := configLoader(o, func(p *config.Parser) (*config.Config, error) {
		return p.ParseReader(bytes.NewReader(content), format)
	})
	return newViewer(loader, o, "reader", "")
}

// NewDefault creates a Viewer from the built-in defaults and opts alone.
func NewDefault(opts *Options) (Viewer, error) {
	o := optionsOrDefault(opts)
	loader := func() (*config.Config, error) {
		cfg := config.DefaultConfig()
		return finishConfig(&cfg, o)
	}
	return newViewer(loader, o, "defaults", "")
}

func optionsOrDefault(opts *Options) Options {
	if opts == nil {
		return DefaultOptions()
	}
	return *opts
}

// configLoader returns a function that parses with a fresh Parser, then
// applies the overrides and validates.
func configLoader(opts Options, parse func(*config.Parser) (*config.Config, error)) func() (*config.Config, error) {
	return func() (*config.Config, error) {
		p, err := config.NewParser()
		if err != nil {
			return nil, fmt.Errorf("parser init: %w", err)
		}
		defer p.Close()

		cfg, err := parse(p)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		return finishConfig(cfg, opts)
	}
}

func finishConfig(cfg *config.Config, opts Options) (*config.Config, error) {
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
