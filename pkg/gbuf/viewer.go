package gbuf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-gbuf/internal/command"
	"github.com/opd-ai/go-gbuf/internal/config"
	"github.com/opd-ai/go-gbuf/internal/feed"
	"github.com/opd-ai/go-gbuf/internal/raster"
	"github.com/opd-ai/go-gbuf/internal/render"
)

// viewerImpl is the private implementation of the Viewer interface.
type viewerImpl struct {
	// Configuration
	cfg          *config.Config
	opts         Options
	configSource string
	configPath   string // disk path for the watcher; empty otherwise
	configLoader func() (*config.Config, error)
	scriptFS     fs.FS // resolves script feed paths; nil reads disk

	metrics *Metrics
	tracker *ErrorTracker

	// Components, rebuilt by every Start
	catalog  *render.FontCatalog
	mailbox  *feed.Mailbox
	session  *render.Session
	raster   *raster.Surface // headless canvas
	window   *windowRunner   // preview window
	feed     feed.Feed
	feedStop context.CancelFunc
	feedDone chan struct{}
	watcher  *configWatcher

	correlationID CorrelationID
	logger        *slog.Logger

	// State
	running    atomic.Bool
	startTime  time.Time
	frameCount atomic.Uint64
	lastError  atomic.Pointer[error]

	boundsMu  sync.Mutex
	bounds    render.WindowBounds
	hasBounds bool

	// Handlers
	errorHandler ErrorHandler
	eventHandler EventHandler

	// Synchronization
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Viewer = (*viewerImpl)(nil)

func newViewer(loader func() (*config.Config, error), opts Options, source, path string) (*viewerImpl, error) {
	cfg, err := loader()
	if err != nil {
		return nil, err
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = DefaultMetrics()
	}
	tracker := opts.ErrorTracker
	if tracker == nil {
		tracker = DefaultErrorTracker()
	}
	return &viewerImpl{
		cfg:          cfg,
		opts:         opts,
		configSource: source,
		configPath:   path,
		configLoader: loader,
		metrics:      metrics,
		tracker:      tracker,
		logger:       toSlog(opts.Logger),
	}, nil
}

// Start connects the feed and begins rendering.
func (v *viewerImpl) Start() error {
	v.mu.Lock()

	if v.running.Load() {
		v.mu.Unlock()
		return ErrAlreadyRunning
	}

	id := NewCorrelationID()
	v.correlationID = id
	v.ctx, v.cancel = context.WithCancel(WithCorrelationID(context.Background(), id))
	v.logger = toSlog(v.opts.Logger).With(correlationAttr, id.String())
	cfg := v.cfg

	if err := v.initComponents(cfg); err != nil {
		v.cancel()
		v.mu.Unlock()
		return fmt.Errorf("failed to initialize: %w", err)
	}
	if err := v.startFeedLocked(cfg); err != nil {
		v.cancel()
		v.releaseLocked()
		v.mu.Unlock()
		return fmt.Errorf("failed to start feed: %w", err)
	}

	v.running.Store(true)
	v.startTime = time.Now()
	v.frameCount.Store(0)
	v.metrics.IncrementStarts()
	v.metrics.SetRunning(true)

	ctx := v.ctx
	v.wg.Add(1)
	go v.run(ctx)

	if v.opts.WatchConfig && v.configPath != "" {
		w, err := newConfigWatcher(v.configPath, v.opts.WatchDebounce, v.ReloadConfig, func(err error) {
			v.notifyError(NewCategorizedError(err, ErrorCategoryConfig, SeverityWarning))
		})
		if err != nil {
			v.logger.Warn("config watch disabled", "path", v.configPath, "error", err)
		} else {
			v.watcher = w
		}
	}

	headless := v.window == nil
	v.mu.Unlock()

	v.logger.Info("viewer started",
		"source", v.configSource, "feed", cfg.Feed.Kind.String(),
		"headless", headless, "width", cfg.Window.Width, "height", cfg.Window.Height)
	v.emitEvent(EventStarted, "Viewer started")
	return nil
}

// run drives rendering until ctx is cancelled or the window is closed.
func (v *viewerImpl) run(ctx context.Context) {
	defer v.wg.Done()
	defer v.running.Store(false)
	defer v.metrics.SetRunning(false)
	defer v.cleanup()

	v.mu.RLock()
	window := v.window
	v.mu.RUnlock()

	if window != nil {
		if err := window.run(ctx); err != nil {
			v.notifyError(NewCategorizedError(err, ErrorCategoryRender, SeverityCritical))
		}
		// Closing the window ends the run like Stop does.
		v.mu.RLock()
		if v.cancel != nil {
			v.cancel()
		}
		v.mu.RUnlock()
	} else {
		v.drain(ctx)
	}

	v.logger.Info("viewer stopped", "frames", v.frameCount.Load())
	v.emitEvent(EventStopped, "Viewer stopped")
}

// drain renders mailbox payloads onto the headless canvas.
func (v *viewerImpl) drain(ctx context.Context) {
	v.mu.RLock()
	mb, session := v.mailbox, v.session
	v.mu.RUnlock()

	for {
		env, err := mb.Wait(ctx)
		if err != nil {
			return
		}
		stats, err := session.HandlePayload(env)
		if err != nil {
			v.payloadFailed(env.Name, err)
			continue
		}
		v.onFrame(stats)
	}
}

// Stop shuts the viewer down.
func (v *viewerImpl) Stop() error {
	if !v.running.Load() {
		return nil
	}

	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	watcher := v.watcher
	v.watcher = nil
	v.mu.Unlock()

	if watcher != nil {
		watcher.Close()
	}

	done := make(chan struct{})
	go func() {
		v.wg.Wait()
		close(done)
	}()

	timeout := v.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	select {
	case <-done:
		v.metrics.IncrementStops()
		return nil
	case <-time.After(timeout):
		err := fmt.Errorf("shutdown timeout after %v: some goroutines did not stop", timeout)
		v.notifyError(NewCategorizedError(err, ErrorCategoryUnknown, SeverityCritical))
		return err
	}
}

// Restart stops, reloads the configuration and starts again.
func (v *viewerImpl) Restart() error {
	if err := v.Stop(); err != nil {
		wrappedErr := fmt.Errorf("stop failed: %w", err)
		v.notifyError(NewCategorizedError(wrappedErr, ErrorCategoryUnknown, SeverityError))
		return wrappedErr
	}

	cfg, err := v.configLoader()
	if err != nil {
		wrappedErr := fmt.Errorf("config reload failed: %w", err)
		v.notifyError(NewCategorizedError(wrappedErr, ErrorCategoryConfig, SeverityError))
		return wrappedErr
	}
	v.mu.Lock()
	v.cfg = cfg
	v.mu.Unlock()
	v.emitEvent(EventConfigReloaded, "Configuration reloaded")

	if err := v.Start(); err != nil {
		wrappedErr := fmt.Errorf("start failed: %w", err)
		v.notifyError(NewCategorizedError(wrappedErr, Categorize(err), SeverityError))
		return wrappedErr
	}

	v.metrics.IncrementRestarts()
	v.emitEvent(EventRestarted, "Viewer restarted")
	return nil
}

// ReloadConfig applies a freshly loaded configuration to the running viewer.
func (v *viewerImpl) ReloadConfig() error {
	if !v.running.Load() {
		return ErrNotRunning
	}

	newCfg, err := v.configLoader()
	if err != nil {
		wrappedErr := fmt.Errorf("config reload failed: %w", err)
		v.notifyError(NewCategorizedError(wrappedErr, ErrorCategoryConfig, SeverityError))
		return wrappedErr
	}

	v.mu.Lock()
	oldCfg := v.cfg
	v.cfg = newCfg
	session, window := v.session, v.window
	v.mu.Unlock()

	// The session replays under its own lock and may call back into
	// onWindowBounds, so v.mu must not be held here.
	if session != nil {
		session.Reconfigure(v.sessionOptions(newCfg))
	}
	if window != nil {
		window.apply(newCfg)
	}

	if feedChanged(oldCfg, newCfg) {
		v.stopFeed()
		v.mu.Lock()
		err := v.startFeedLocked(newCfg)
		v.mu.Unlock()
		if err != nil {
			wrappedErr := fmt.Errorf("feed restart failed: %w", err)
			v.notifyError(NewCategorizedError(wrappedErr, ErrorCategoryFeed, SeverityError))
			return wrappedErr
		}
		v.logger.Info("feed reconnected", "feed", newCfg.Feed.Kind.String())
	}

	v.metrics.IncrementConfigReloads()
	v.emitEvent(EventConfigReloaded, "Configuration reloaded in-place")
	return nil
}

// feedChanged reports whether the feed must be rebuilt. The script feed
// also depends on the canvas size it reports to the script.
func feedChanged(oldCfg, newCfg *config.Config) bool {
	if oldCfg.Feed != newCfg.Feed {
		return true
	}
	if newCfg.Feed.Kind == config.FeedScript {
		return oldCfg.Window.Width != newCfg.Window.Width || oldCfg.Window.Height != newCfg.Window.Height
	}
	return false
}

// IsRunning returns true if the viewer is currently running.
func (v *viewerImpl) IsRunning() bool {
	return v.running.Load()
}

// Status returns detailed status information about the viewer.
func (v *viewerImpl) Status() Status {
	v.mu.RLock()
	startTime := v.startTime
	configSource := v.configSource
	feedKind := v.cfg.Feed.Kind.String()
	session := v.session
	headless := v.opts.Headless || !windowSupported
	v.mu.RUnlock()

	var renderStatus string
	if session != nil {
		renderStatus = session.Status()
	}
	return Status{
		Running:      v.running.Load(),
		Headless:     headless,
		StartTime:    startTime,
		FrameCount:   v.frameCount.Load(),
		RenderStatus: renderStatus,
		Feed:         feedKind,
		LastError:    v.getError(),
		ConfigSource: configSource,
	}
}

// Submit queues a payload for rendering.
func (v *viewerImpl) Submit(env Envelope) error {
	if !v.running.Load() {
		return ErrNotRunning
	}
	v.mu.RLock()
	mb := v.mailbox
	v.mu.RUnlock()
	if mb == nil {
		return ErrNotRunning
	}
	mb.Put(env)
	return nil
}

// Resize changes the canvas size.
func (v *viewerImpl) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize %dx%d: %w", width, height, render.ErrInvalidSize)
	}
	if !v.running.Load() {
		return ErrNotRunning
	}

	v.mu.RLock()
	window, session := v.window, v.session
	v.mu.RUnlock()

	if window != nil {
		// The window's next layout resizes the session and calls resized.
		window.resize(width, height)
		return nil
	}
	if err := session.Resize(width, height); err != nil {
		return err
	}
	v.resized(width, height)
	return nil
}

// resized runs after the canvas took a new size.
func (v *viewerImpl) resized(width, height int) {
	v.metrics.IncrementResizes()
	v.mu.RLock()
	f := v.feed
	v.mu.RUnlock()
	if r, ok := f.(feed.Resizer); ok {
		r.Resize(width, height)
	}
	v.logger.Debug("canvas resized", "width", width, "height", height)
}

// Snapshot writes the current canvas as PNG. The headless canvas is
// encoded directly; the window canvas is re-rendered offscreen from the
// retained frame.
func (v *viewerImpl) Snapshot(w io.Writer) error {
	v.mu.RLock()
	session, rs := v.session, v.raster
	v.mu.RUnlock()
	if session == nil {
		return ErrNotRunning
	}

	var err error
	if rs != nil && v.running.Load() {
		session.Do(func(render.Surface) {
			err = rs.EncodePNG(w)
		})
	} else {
		var surf *raster.Surface
		surf, err = v.replayRaster(session)
		if err == nil {
			defer surf.Close()
			err = surf.EncodePNG(w)
		}
	}
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	v.metrics.IncrementSnapshots()
	return nil
}

// ExportFrame encodes the retained frame, which survives Stop.
func (v *viewerImpl) ExportFrame(w io.Writer) error {
	v.mu.RLock()
	session := v.session
	v.mu.RUnlock()
	if session == nil {
		return ErrNotRunning
	}

	data, err := command.Encode(session.Retained())
	if err != nil {
		return fmt.Errorf("export frame: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("export frame: %w", err)
	}
	return nil
}

// saveSnapshot writes the canvas to path after a frame.
func (v *viewerImpl) saveSnapshot(path string) {
	v.mu.RLock()
	session, rs := v.session, v.raster
	v.mu.RUnlock()

	var err error
	if rs != nil {
		session.Do(func(render.Surface) {
			err = rs.SavePNG(path)
		})
	} else {
		var surf *raster.Surface
		surf, err = v.replayRaster(session)
		if err == nil {
			err = surf.SavePNG(path)
			surf.Close()
		}
	}
	if err != nil {
		v.notifyError(NewCategorizedError(fmt.Errorf("save snapshot %s: %w", path, err), ErrorCategoryIO, SeverityError))
		return
	}
	v.metrics.IncrementSnapshots()
}

// replayRaster renders the session's retained frame onto a new raster
// of the session's current size.
func (v *viewerImpl) replayRaster(session *render.Session) (*raster.Surface, error) {
	v.mu.RLock()
	cfg, catalog := v.cfg, v.catalog
	v.mu.RUnlock()

	stats := session.Stats()
	width, height := stats.Width, stats.Height
	if width <= 0 || height <= 0 {
		width, height = cfg.Window.Width, cfg.Window.Height
	}
	surf, err := raster.New(width, height, catalog)
	if err != nil {
		return nil, err
	}
	replay := render.NewSession(surf, v.sessionOptions(cfg))
	replay.Render(&command.Frame{Commands: session.Retained()})
	return surf, nil
}

// SetErrorHandler registers a callback for runtime errors.
func (v *viewerImpl) SetErrorHandler(handler ErrorHandler) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errorHandler = handler
}

// SetEventHandler registers a callback for lifecycle events.
func (v *viewerImpl) SetEventHandler(handler EventHandler) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.eventHandler = handler
}

// initComponents builds the canvas, session and mailbox for one run.
// Callers hold v.mu.
func (v *viewerImpl) initComponents(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	v.catalog = render.NewFontCatalog()
	for name, path := range cfg.Render.FontFiles {
		family, style := render.SplitFontName(name)
		if err := v.catalog.LoadFile(family, style, path); err != nil {
			v.logger.Warn("font not loaded", "family", name, "path", path, "error", err)
			v.tracker.Record(NewCategorizedError(err, ErrorCategoryConfig, SeverityWarning).
				WithContext("font", name))
		}
	}

	v.mailbox = feed.NewMailbox()
	v.boundsMu.Lock()
	v.hasBounds = false
	v.boundsMu.Unlock()

	opts := v.sessionOptions(cfg)
	opts.OnWindowBounds = v.onWindowBounds

	if v.opts.Headless || !windowSupported {
		rs, err := raster.New(cfg.Window.Width, cfg.Window.Height, v.catalog)
		if err != nil {
			return err
		}
		v.raster = rs
		v.window = nil
		v.session = render.NewSession(rs, opts)
		return nil
	}

	window, err := newWindowRunner(v, cfg, opts)
	if err != nil {
		return err
	}
	v.window = window
	v.raster = nil
	v.session = window.session
	return nil
}

// sessionOptions maps the render settings of cfg onto session options.
func (v *viewerImpl) sessionOptions(cfg *config.Config) render.SessionOptions {
	opts := render.DefaultSessionOptions()
	opts.AutoScale = cfg.Render.AutoScale
	opts.ClipEnabled = cfg.Render.ClipEnabled
	opts.Background = cfg.Window.Background
	opts.FontFamily = cfg.Render.FontFamily
	opts.FontSize = cfg.Render.FontSize
	opts.Logger = v.logger
	return opts
}

// startFeedLocked builds and runs the configured feed. FeedNone leaves
// Submit as the only source. Callers hold v.mu.
func (v *viewerImpl) startFeedLocked(cfg *config.Config) error {
	f, err := feed.New(*cfg, feed.Options{
		Logger:    v.logger,
		Lua:       v.opts.luaConfig(),
		ScriptFS:  v.scriptFS,
		OnConnect: v.metrics.SetFeedConnected,
	})
	if errors.Is(err, feed.ErrNoFeed) {
		v.feed = nil
		return nil
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(v.ctx)
	done := make(chan struct{})
	v.feed, v.feedStop, v.feedDone = f, cancel, done
	mb := v.mailbox
	kind := cfg.Feed.Kind

	go func() {
		defer close(done)
		err := f.Run(ctx, mb)
		if err == nil || ctx.Err() != nil {
			return
		}
		category := Categorize(err)
		if category == ErrorCategoryUnknown {
			category = ErrorCategoryFeed
		}
		v.notifyError(NewCategorizedError(fmt.Errorf("%s feed: %w", kind, err), category, SeverityError).
			WithContext("feed", kind.String()))
	}()
	return nil
}

// stopFeed cancels the running feed and waits for it to return.
func (v *viewerImpl) stopFeed() {
	v.mu.Lock()
	stop, done := v.feedStop, v.feedDone
	v.feed, v.feedStop, v.feedDone = nil, nil, nil
	v.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	v.metrics.SetFeedConnected(false)
}

// cleanup releases the resources of one run.
func (v *viewerImpl) cleanup() {
	v.stopFeed()
	v.mu.Lock()
	v.releaseLocked()
	v.mu.Unlock()
}

// releaseLocked closes the headless canvas. The session is kept so that
// Status and Snapshot still report the last frame. Callers hold v.mu.
func (v *viewerImpl) releaseLocked() {
	if v.raster != nil {
		v.raster.Close()
		v.raster = nil
	}
	v.window = nil
}

// onFrame runs after every pass triggered by a payload.
func (v *viewerImpl) onFrame(stats render.Stats) {
	v.metrics.RecordFrame(stats.Commands, stats.TextCommands, stats.Unknown, stats.Errors, stats.Duration)
	n := v.frameCount.Add(1)

	v.mu.RLock()
	session := v.session
	path := v.cfg.Snapshot.Path
	v.mu.RUnlock()

	if stats.Errors > 0 && session != nil {
		err := fmt.Errorf("frame %d: %d of %d commands failed: %w", n, stats.Errors, stats.Commands, session.Err())
		v.tracker.Record(NewCategorizedError(err, ErrorCategoryRender, SeverityWarning))
		v.logger.Warn("frame had command errors", "frame", n, "errors", stats.Errors)
	}
	if path != "" {
		v.saveSnapshot(path)
	}
	v.emitEvent(EventFrameRendered, stats.StatusLine())
}

// payloadFailed reports a payload the session could not decode or draw.
func (v *viewerImpl) payloadFailed(name string, err error) {
	category := Categorize(err)
	if category == ErrorCategoryDecode {
		v.metrics.IncrementDecodeErrors()
	}
	ce := NewCategorizedError(err, category, SeverityWarning)
	if name != "" {
		ce.WithContext("stream", name)
	}
	v.notifyError(ce)
}

// onWindowBounds is called by the session during a pass.
func (v *viewerImpl) onWindowBounds(b render.WindowBounds) {
	v.boundsMu.Lock()
	changed := !v.hasBounds || v.bounds != b
	v.bounds, v.hasBounds = b, true
	v.boundsMu.Unlock()

	if changed {
		v.emitEvent(EventWindowChanged,
			fmt.Sprintf("setwindow %g %g %g %g", b.LLX, b.LLY, b.URX, b.URY))
	}
}

func (v *viewerImpl) getError() error {
	if p := v.lastError.Load(); p != nil {
		return *p
	}
	return nil
}

// notifyError records err, stores it for Status and invokes the error
// handler asynchronously.
func (v *viewerImpl) notifyError(err *CategorizedError) {
	var stored error = err
	v.lastError.Store(&stored)
	v.metrics.IncrementErrors()
	v.tracker.Record(err)

	v.mu.RLock()
	handler := v.errorHandler
	logger := v.logger
	v.mu.RUnlock()

	level := slog.LevelWarn
	if err.Severity >= SeverityError {
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, "viewer error",
		"category", err.Category.String(), "severity", err.Severity.String(), "error", err.Err)

	if handler != nil {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("error handler panicked", "panic", r, "original_error", err)
				}
			}()
			handler(err)
		}()
	}

	v.emitEvent(EventError, err.Error())
}

// emitEvent sends an event to the event handler if configured.
func (v *viewerImpl) emitEvent(eventType EventType, message string) {
	v.metrics.IncrementEventsEmitted()

	v.mu.RLock()
	handler := v.eventHandler
	id := v.correlationID
	v.mu.RUnlock()

	if handler == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				v.mu.RLock()
				errHandler := v.errorHandler
				v.mu.RUnlock()
				if errHandler != nil {
					if err, ok := r.(error); ok {
						errHandler(fmt.Errorf("panic in event handler: %w", err))
					} else {
						errHandler(fmt.Errorf("panic in event handler: %v", r))
					}
				}
			}
		}()

		handler(Event{
			Type:          eventType,
			Timestamp:     time.Now(),
			Message:       message,
			CorrelationID: id,
		})
	}()
}

// Health grades the viewer and its feed, renderer and error state.
func (v *viewerImpl) Health() HealthCheck {
	in := healthInputs{
		now:     time.Now(),
		running: v.running.Load(),
		frames:  v.frameCount.Load(),
		lastErr: v.getError(),
	}
	v.mu.RLock()
	in.started = v.startTime
	in.feed = v.feed
	in.kind = v.cfg.Feed.Kind
	in.session = v.session
	v.mu.RUnlock()
	return assessHealth(in)
}

// Metrics returns the metrics collector for this viewer.
func (v *viewerImpl) Metrics() *Metrics {
	return v.metrics
}
