package feed

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	rt "github.com/arnodel/golua/runtime"

	"github.com/opd-ai/go-gbuf/internal/command"
	"github.com/opd-ai/go-gbuf/internal/lua"
)

// ScriptOptions configures a Script feed.
type ScriptOptions struct {
	// Path is the Lua script.
	Path string
	// FS resolves Path when set. Nil reads from disk.
	FS fs.FS
	// Name is the envelope name. Empty uses the script's base name.
	Name string
	// Interval re-runs the frame every Interval. Zero produces one frame.
	Interval time.Duration
	// Width and Height seed gbuf.window.
	Width, Height int
	// Runtime sets the Lua resource limits. The zero value uses lua.DefaultConfig.
	Runtime lua.RuntimeConfig
	// Logger receives script output and errors. Nil discards them.
	Logger *slog.Logger
}

// Script produces frames from a Lua script. The script body runs once;
// if it defines gbuf_draw, every frame is what gbuf_draw emits,
// otherwise every frame is what the body emits. gbuf_startup,
// gbuf_resize(w, h) and gbuf_shutdown are called when defined.
type Script struct {
	opts   ScriptOptions
	logger *slog.Logger
	resize chan [2]int
}

// NewScript returns a Script feed for opts.
func NewScript(opts ScriptOptions) (*Script, error) {
	if opts.Path == "" {
		return nil, ErrNoPath
	}
	if opts.Name == "" {
		opts.Name = strings.TrimSuffix(filepath.Base(opts.Path), filepath.Ext(opts.Path))
	}
	if opts.Runtime == (lua.RuntimeConfig{}) {
		opts.Runtime = lua.DefaultConfig()
		opts.Runtime.Stdout = io.Discard
	}
	if opts.Runtime.Stdout == nil {
		opts.Runtime.Stdout = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Script{
		opts:   opts,
		logger: logger.With("feed", "script", "path", opts.Path),
		resize: make(chan [2]int, 1),
	}, nil
}

// Resize tells the script the canvas size changed. The latest size wins
// if Run has not consumed the previous one.
func (s *Script) Resize(width, height int) {
	for {
		select {
		case s.resize <- [2]int{width, height}:
			return
		default:
		}
		select {
		case <-s.resize:
		default:
		}
	}
}

// scriptState is the Lua side of one Run.
type scriptState struct {
	runtime *lua.Runtime
	hooks   *lua.HookManager
	body    *rt.Closure
}

// Run loads the script and delivers frames until ctx is cancelled, or
// after the first frame when no interval is set and the script defines
// no resize hook.
func (s *Script) Run(ctx context.Context, out *Mailbox) error {
	st, err := s.load()
	if err != nil {
		return err
	}
	defer st.runtime.Close()
	defer func() {
		if _, err := st.hooks.Call(lua.HookShutdown); err != nil {
			s.logger.Warn("shutdown hook failed", "error", err)
		}
	}()

	if _, err := st.hooks.Call(lua.HookStartup); err != nil {
		return fmt.Errorf("script %s: %w", s.opts.Path, err)
	}
	// The body already ran while loading; its commands form the first frame.
	first := true
	if err := s.frame(st, out, first); err != nil {
		s.logger.Warn("frame failed", "error", err)
	}
	first = false

	var tick <-chan time.Time
	if s.opts.Interval > 0 {
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	} else if !st.hooks.IsRegistered(lua.HookResize) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case size := <-s.resize:
			st.runtime.Module().UpdateWindowInfo(size[0], size[1])
			if _, err := st.hooks.Call(lua.HookResize, rt.IntValue(int64(size[0])), rt.IntValue(int64(size[1]))); err != nil {
				s.logger.Warn("resize hook failed", "error", err)
				continue
			}
			if err := s.frame(st, out, first); err != nil {
				s.logger.Warn("frame failed", "error", err)
			}
		case <-tick:
			if err := s.frame(st, out, first); err != nil {
				s.logger.Warn("frame failed", "error", err)
			}
		}
	}
}

func (s *Script) load() (*scriptState, error) {
	runtime, err := lua.New(s.opts.Runtime)
	if err != nil {
		return nil, fmt.Errorf("create Lua runtime: %w", err)
	}
	runtime.Module().UpdateWindowInfo(s.opts.Width, s.opts.Height)

	body, err := runtime.LoadScript(s.opts.FS, s.opts.Path)
	if err != nil {
		runtime.Close()
		return nil, err
	}
	found, err := runtime.Start(body)
	if err != nil {
		runtime.Close()
		return nil, fmt.Errorf("script %s: %w", s.opts.Path, err)
	}
	s.logger.Debug("script loaded", "hooks", len(found))

	return &scriptState{runtime: runtime, hooks: runtime.Hooks(), body: body}, nil
}

// frame collects one frame's commands and posts it. The first frame
// after loading reuses what the body emitted unless gbuf_draw exists.
func (s *Script) frame(st *scriptState, out *Mailbox, first bool) error {
	rec := st.runtime.Module().Recorder()
	switch {
	case st.hooks.IsRegistered(lua.HookDraw):
		rec.Reset()
		if _, err := st.hooks.Call(lua.HookDraw); err != nil {
			return err
		}
	case !first:
		rec.Reset()
		if _, err := st.runtime.Run(st.body); err != nil {
			return err
		}
	}
	s.flushOutput(st.runtime)

	cmds := rec.Take()
	out.Put(command.Envelope{Name: s.opts.Name, Data: &command.Frame{Name: s.opts.Name, Commands: cmds}})
	return nil
}

func (s *Script) flushOutput(runtime *lua.Runtime) {
	output := runtime.TakeOutput()
	if output == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		s.logger.Info("script output", "line", line)
	}
}
