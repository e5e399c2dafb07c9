package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/opd-ai/go-gbuf/internal/command"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// AutoScale maps the window declared by setwindow onto the surface.
	AutoScale bool
	// ClipEnabled turns on setclipregion.
	ClipEnabled bool
	// Background is the color each pass clears to. Zero means white.
	Background color.RGBA
	// FontFamily and FontSize are the font in effect before any setfont.
	// Empty and zero mean DefaultFontFamily and DefaultFontSize.
	FontFamily string
	FontSize   float64
	// Decoder decodes payloads. Nil means a default decoder.
	Decoder *command.Decoder
	// Dispatcher executes commands. Nil means NewDispatcher().
	Dispatcher *Dispatcher
	// Logger receives per-command failures at debug level and pass
	// summaries. Nil discards.
	Logger *slog.Logger
	// OnWindowBounds is called whenever a pass executes setwindow.
	OnWindowBounds func(WindowBounds)
	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// DefaultSessionOptions returns auto-scale on, clip off and a white background.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		AutoScale:  true,
		Background: White,
	}
}

// Stats summarizes the most recent pass.
type Stats struct {
	Commands     int
	TextCommands int
	Unknown      int
	Errors       int
	RenderedAt   time.Time
	Duration     time.Duration
	Width        int
	Height       int
}

// StatusLine formats the pass summary shown to users.
func (s Stats) StatusLine() string {
	line := fmt.Sprintf("Rendered %d commands (%d text) at %s [%d×%d]",
		s.Commands, s.TextCommands, s.RenderedAt.Format("15:04:05"), s.Width, s.Height)
	if s.Errors > 0 {
		line += fmt.Sprintf(", %d errors", s.Errors)
	}
	return line
}

// Session binds a Surface to a stream of frames. It retains the most recent
// decoded frame so a resize can replay it. Passes are serialized.
type Session struct {
	mu         sync.Mutex
	surface    Surface
	opts       SessionOptions
	decoder    *command.Decoder
	dispatcher *Dispatcher
	logger     *slog.Logger
	mapper     *Mapper

	last   []command.Command
	stats  Stats
	status string
	errs   []error
	passes uint64
}

// NewSession creates a session that owns surface.
func NewSession(surface Surface, opts SessionOptions) *Session {
	if opts.Background == (color.RGBA{}) {
		opts.Background = White
	}
	if opts.Decoder == nil {
		opts.Decoder = &command.Decoder{}
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = NewDispatcher()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w, h := surface.Size()
	s := &Session{
		surface:    surface,
		opts:       opts,
		decoder:    opts.Decoder,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
		mapper:     NewMapper(w, h, opts.AutoScale),
		status:     "Canvas ready, waiting for data...",
	}
	surface.ResetTransform()
	surface.Clear(opts.Background)
	return s
}

// HandlePayload decodes env and renders it. A decode failure sets the
// status, draws nothing and keeps the retained frame.
func (s *Session) HandlePayload(env command.Envelope) (Stats, error) {
	frame, err := s.decoder.Decode(env)
	if err != nil {
		s.mu.Lock()
		s.status = err.Error()
		s.mu.Unlock()
		s.logger.Warn("gbuf decode failed", "stream", env.Name, "error", err)
		return Stats{}, err
	}
	return s.Render(frame), nil
}

// Render executes frame as a full pass and retains its commands.
func (s *Session) Render(frame *command.Frame) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = frame.Commands
	if s.last == nil {
		s.last = []command.Command{}
	}
	return s.renderLocked(s.last)
}

// Replay re-runs the retained frame.
func (s *Session) Replay() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Stats{}, ErrNoFrame
	}
	return s.renderLocked(s.last), nil
}

// Reconfigure replaces the rendering options that can change while a
// session is live and replays the retained frame under them. Decoder,
// dispatcher, logger and clock are kept.
func (s *Session) Reconfigure(opts SessionOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if opts.Background == (color.RGBA{}) {
		opts.Background = White
	}
	s.opts.AutoScale = opts.AutoScale
	s.opts.ClipEnabled = opts.ClipEnabled
	s.opts.Background = opts.Background
	s.opts.FontFamily = opts.FontFamily
	s.opts.FontSize = opts.FontSize
	s.mapper.SetAutoScale(opts.AutoScale)
	if s.last != nil {
		s.renderLocked(s.last)
	}
}

// Resize changes the surface dimensions and replays the retained frame at
// the new size. With no retained frame the surface is just cleared.
func (s *Session) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize to %dx%d: %w", width, height, ErrInvalidSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.surface.Resize(width, height); err != nil {
		return fmt.Errorf("resize surface: %w", err)
	}
	s.mapper.SetSurfaceSize(width, height)
	if s.last == nil {
		s.surface.ResetTransform()
		s.surface.Clear(s.opts.Background)
		return nil
	}
	s.renderLocked(s.last)
	return nil
}

// renderLocked performs one pass. Callers hold s.mu.
func (s *Session) renderLocked(cmds []command.Command) Stats {
	start := s.opts.Now()
	w, h := s.surface.Size()

	s.surface.ResetTransform()
	s.surface.Clear(s.opts.Background)
	s.mapper.SetSurfaceSize(w, h)
	s.mapper.Reset()

	state := NewGraphicsState(s.opts.Background)
	if s.opts.FontFamily != "" {
		state.FontFamily = s.opts.FontFamily
	}
	if s.opts.FontSize > 0 {
		state.FontSize = s.opts.FontSize
	}
	s.surface.SetColor(state.Color)
	s.surface.SetLineWidth(state.LineWidth)
	s.surface.SetFont(state.FontFamily, state.FontSize)

	p := &Pass{
		Surface:     s.surface,
		State:       state,
		Stack:       &StateStack{},
		Mapper:      s.mapper,
		Images:      NewImageCache(),
		ClipEnabled: s.opts.ClipEnabled,
		OnWindow:    s.opts.OnWindowBounds,
	}

	stats := Stats{Width: w, Height: h}
	s.errs = s.errs[:0]
	for i, c := range cmds {
		stats.Commands++
		switch c.Op {
		case command.OpDrawText:
			stats.TextCommands++
		case command.OpUnknown:
			stats.Unknown++
		}
		if err := s.dispatcher.Execute(p, i, c); err != nil {
			stats.Errors++
			s.errs = append(s.errs, err)
			s.logger.Debug("gbuf command failed", "index", i, "cmd", c.Name, "error", err)
		}
	}

	stats.RenderedAt = s.opts.Now()
	stats.Duration = stats.RenderedAt.Sub(start)
	s.stats = stats
	s.status = stats.StatusLine()
	s.passes++
	s.logger.Debug("gbuf pass complete",
		"commands", stats.Commands, "text", stats.TextCommands,
		"errors", stats.Errors, "duration", stats.Duration)
	return stats
}

// Stats returns the statistics of the most recent pass.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Status returns the one-line status of the most recent payload.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Errors returns the command errors of the most recent pass.
func (s *Session) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}

// Err joins the command errors of the most recent pass, or returns nil.
func (s *Session) Err() error {
	return errors.Join(s.Errors()...)
}

// Passes returns how many passes have run.
func (s *Session) Passes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

// Scale returns the scale factors left by the most recent pass.
func (s *Session) Scale() ScaleFactors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapper.Scale()
}

// WindowBounds returns the window declared by the most recent pass.
func (s *Session) WindowBounds() (WindowBounds, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapper.Window()
}

// SourceDimensions returns the logical width and height of the declared
// window, or zeros when none was declared.
func (s *Session) SourceDimensions() (width, height float64) {
	b, ok := s.WindowBounds()
	if !ok {
		return 0, 0
	}
	return b.Width(), b.Height()
}

// Retained returns the retained command list.
func (s *Session) Retained() []command.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Surface returns the surface the session draws on.
func (s *Session) Surface() Surface {
	return s.surface
}

// Do runs fn while holding the session lock, so fn observes a surface
// that no pass is drawing into.
func (s *Session) Do(fn func(Surface)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.surface)
}
