// Package main provides gbuf-view, a viewer for gbuf graphics command
// streams. It renders a dserv stream, a watched gbuf file or a Lua
// drawing script into a preview window, or headless into a PNG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-gbuf/internal/config"
	"github.com/opd-ai/go-gbuf/internal/profiling"
	"github.com/opd-ai/go-gbuf/pkg/gbuf"
)

// Version is the current version of gbuf-view.
// This default value can be overridden at build time using:
//
//	go build -ldflags "-X main.Version=x.y.z"
var Version = "0.1.0-dev"

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, sigCh))
}

// flags holds the parsed command line.
type flags struct {
	configPath  string
	url         string
	stream      string
	file        string
	script      string
	snapshot    string
	dump        string
	width       int
	height      int
	headless    bool
	timeout     time.Duration
	verbose     bool
	version     bool
	convert     string
	cpuProfile  string
	memProfile  string
	debugAddr   string
	watchConfig bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("gbuf-view", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "c", "", "Path to configuration file (Lua or legacy key/value)")
	fs.StringVar(&f.url, "url", "", "dserv WebSocket URL, selects the dserv feed")
	fs.StringVar(&f.stream, "stream", "", "Datapoint name to render")
	fs.StringVar(&f.file, "file", "", "gbuf JSON file to render and watch, selects the file feed")
	fs.StringVar(&f.script, "script", "", "Lua drawing script, selects the script feed")
	fs.StringVar(&f.snapshot, "snapshot", "", "Render headless, write the first frame to this PNG and exit")
	fs.StringVar(&f.dump, "dump", "", "Render headless, write the first frame as gbuf JSON to this file and exit")
	fs.IntVar(&f.width, "width", 0, "Canvas width in pixels")
	fs.IntVar(&f.height, "height", 0, "Canvas height in pixels")
	fs.BoolVar(&f.headless, "headless", false, "Render offscreen without a window")
	fs.DurationVar(&f.timeout, "timeout", 30*time.Second, "How long -snapshot and -dump wait for a frame")
	fs.BoolVar(&f.verbose, "v", false, "Verbose (debug) logging")
	fs.BoolVar(&f.version, "version", false, "Print version and exit")
	fs.StringVar(&f.convert, "convert", "", "Convert a legacy config to Lua format and print to stdout")
	fs.StringVar(&f.cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	fs.StringVar(&f.memProfile, "memprofile", "", "Write memory profile to file")
	fs.StringVar(&f.debugAddr, "debug-addr", "", "Serve /debug/vars and /debug/pprof/ on this address")
	fs.BoolVar(&f.watchConfig, "watch", false, "Reload the configuration file when it changes")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return f, nil
}

func (f *flags) options(logger gbuf.Logger, metrics *gbuf.Metrics) *gbuf.Options {
	return &gbuf.Options{
		Headless:     f.headless || f.oneShot(),
		Width:        f.width,
		Height:       f.height,
		URL:          f.url,
		Stream:       f.stream,
		FeedFile:     f.file,
		FeedScript:   f.script,
		SnapshotPath: f.snapshot,
		Logger:       logger,
		Metrics:      metrics,
		WatchConfig:  f.watchConfig,
	}
}

// oneShot reports whether the run renders a single frame and exits.
func (f *flags) oneShot() bool {
	return f.snapshot != "" || f.dump != ""
}

func run(args []string, stdout, stderr io.Writer, signals <-chan os.Signal) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	if f.version {
		fmt.Fprintf(stdout, "gbuf-view version %s\n", Version)
		return 0
	}
	if f.convert != "" {
		return runConvert(f.convert, stdout, stderr)
	}

	profConfig := profiling.Config{
		CPUProfilePath: f.cpuProfile,
		MemProfilePath: f.memProfile,
		DebugAddr:      f.debugAddr,
	}
	if profConfig.Enabled() {
		profiler := profiling.New(profConfig)
		if err := profiler.Start(); err != nil {
			fmt.Fprintf(stderr, "Failed to start profiling: %v\n", err)
			return 1
		}
		defer func() {
			if err := profiler.Stop(); err != nil {
				fmt.Fprintf(stderr, "Warning: failed to stop profiling: %v\n", err)
			}
		}()
		if addr := profiler.DebugAddr(); addr != nil {
			fmt.Fprintf(stderr, "Debug endpoint on http://%s/debug/vars\n", addr)
		}
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	slogger := slog.New(gbuf.NewRunLogHandler(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	logger := gbuf.NewSlogAdapter(slogger)
	metrics := gbuf.NewMetrics()
	if f.debugAddr != "" {
		metrics.RegisterExpvar()
	}

	v, err := newViewer(f, f.options(logger, metrics))
	if err != nil {
		fmt.Fprintf(stderr, "Error creating viewer: %v\n", err)
		return 1
	}

	if f.oneShot() {
		return runSnapshot(v, f, stdout, stderr, signals)
	}
	return runInteractive(v, slogger, stdout, stderr, signals)
}

func newViewer(f *flags, opts *gbuf.Options) (gbuf.Viewer, error) {
	if f.configPath == "" {
		return gbuf.NewDefault(opts)
	}
	if _, err := os.Stat(f.configPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", f.configPath)
		}
		return nil, fmt.Errorf("accessing configuration file %s: %w", f.configPath, err)
	}
	return gbuf.New(f.configPath, opts)
}

// runInteractive renders until a signal arrives or the window closes.
// SIGHUP reloads the configuration in place.
func runInteractive(v gbuf.Viewer, logger *slog.Logger, stdout, stderr io.Writer, signals <-chan os.Signal) int {
	stopped := make(chan struct{}, 1)
	v.SetErrorHandler(func(err error) {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	})
	v.SetEventHandler(func(e gbuf.Event) {
		switch e.Type {
		case gbuf.EventFrameRendered:
			// Too frequent for stdout.
			logger.DebugContext(e.Context(context.Background()), "frame rendered", "status", e.Message)
			return
		case gbuf.EventStopped:
			select {
			case stopped <- struct{}{}:
			default:
			}
		}
		fmt.Fprintf(stdout, "[%s] %s: %s\n", e.Timestamp.Format("15:04:05"), e.Type, e.Message)
	})

	fmt.Fprintf(stdout, "gbuf-view %s starting (%s)\n", Version, v.Status().ConfigSource)
	if err := v.Start(); err != nil {
		fmt.Fprintf(stderr, "Failed to start: %v\n", err)
		return 1
	}

	for {
		select {
		case <-stopped:
			// The window was closed.
			v.Stop()
			return 0
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				fmt.Fprintln(stdout, "Received SIGHUP, reloading configuration...")
				if err := v.ReloadConfig(); err != nil {
					fmt.Fprintf(stderr, "Reload failed: %v\n", err)
				}
				continue
			}
			fmt.Fprintln(stdout, "Shutting down...")
			if err := v.Stop(); err != nil {
				fmt.Fprintf(stderr, "Stop error: %v\n", err)
				return 1
			}
			return 0
		}
	}
}

// runSnapshot renders headless until the first frame is written as PNG,
// gbuf JSON or both.
func runSnapshot(v gbuf.Viewer, f *flags, stdout, stderr io.Writer, signals <-chan os.Signal) int {
	rendered := make(chan string, 1)
	failed := make(chan error, 1)
	v.SetEventHandler(func(e gbuf.Event) {
		if e.Type == gbuf.EventFrameRendered {
			select {
			case rendered <- e.Message:
			default:
			}
		}
	})
	v.SetErrorHandler(func(err error) {
		var ce *gbuf.CategorizedError
		if errors.As(err, &ce) && ce.Severity < gbuf.SeverityError {
			fmt.Fprintf(stderr, "Warning: %v\n", err)
			return
		}
		select {
		case failed <- err:
		default:
		}
	})

	if err := v.Start(); err != nil {
		fmt.Fprintf(stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer v.Stop()

	select {
	case status := <-rendered:
		fmt.Fprintln(stdout, status)
		if f.dump != "" {
			if err := dumpFrame(v, f.dump); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			fmt.Fprintf(stdout, "Wrote %s\n", f.dump)
		}
		if f.snapshot != "" {
			fmt.Fprintf(stdout, "Wrote %s\n", f.snapshot)
		}
		return 0
	case err := <-failed:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	case <-signals:
		fmt.Fprintln(stderr, "Interrupted before the first frame")
		return 1
	case <-time.After(f.timeout):
		fmt.Fprintf(stderr, "No frame within %v\n", f.timeout)
		return 1
	}
}

func dumpFrame(v gbuf.Viewer, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := v.ExportFrame(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// runConvert converts a legacy config file to Lua format on stdout.
func runConvert(path string, stdout, stderr io.Writer) int {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(stderr, "Configuration file not found: %s\n", path)
		} else {
			fmt.Fprintf(stderr, "Error accessing configuration file %s: %v\n", path, err)
		}
		return 1
	}

	luaContent, err := config.MigrateLegacyFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error converting configuration: %v\n", err)
		return 1
	}
	fmt.Fprint(stdout, string(luaContent))
	return 0
}
