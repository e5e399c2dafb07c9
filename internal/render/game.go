//go:build !noebiten

package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// ErrGameTerminated is returned when the game loop is terminated via context cancellation.
var ErrGameTerminated = errors.New("game terminated")

// ErrorHandler is a function type for handling errors during game updates.
type ErrorHandler func(err error)

// DefaultErrorHandler writes errors to stderr.
func DefaultErrorHandler(err error) {
	fmt.Fprintf(os.Stderr, "render error: %v\n", err)
}

// Game implements ebiten.Game. It pulls payloads from a FrameSource on
// each tick, renders them through a Session onto an EbitenSurface and
// blits that surface to the screen.
type Game struct {
	config       Config
	session      *Session
	surface      *EbitenSurface
	source       FrameSource
	errorHandler ErrorHandler
	onRender     func(Stats)
	onResize     func(width, height int)
	width        int
	height       int
	title        string
	mu           sync.RWMutex
	running      bool
	ctx          context.Context
}

// NewGame creates a Game that draws session's output. The session must
// have been created over surface.
func NewGame(config Config, session *Session, surface *EbitenSurface) *Game {
	w, h := surface.Size()
	return &Game{
		config:       config,
		session:      session,
		surface:      surface,
		errorHandler: DefaultErrorHandler,
		width:        w,
		height:       h,
	}
}

// SetErrorHandler sets a custom error handler for render errors.
// If nil is passed, errors will be silently ignored.
func (g *Game) SetErrorHandler(handler ErrorHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errorHandler = handler
}

// SetSource sets where the game pulls payloads from.
func (g *Game) SetSource(src FrameSource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.source = src
}

// SetRenderCallback registers fn to run after every successful pass
// triggered by the game loop.
func (g *Game) SetRenderCallback(fn func(Stats)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onRender = fn
}

// SetResizeCallback registers fn to run after the canvas follows a
// window size change.
func (g *Game) SetResizeCallback(fn func(width, height int)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onResize = fn
}

// SetContext sets a context for the game loop. When the context is cancelled,
// the game loop will terminate gracefully.
func (g *Game) SetContext(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctx = ctx
}

// Update implements ebiten.Game.Update.
func (g *Game) Update() error {
	g.mu.RLock()
	ctx, src, handler, onRender := g.ctx, g.source, g.errorHandler, g.onRender
	g.mu.RUnlock()

	if ctx != nil {
		select {
		case <-ctx.Done():
			return ErrGameTerminated
		default:
		}
	}

	if src != nil {
		if env, ok := src.Next(); ok {
			stats, err := g.session.HandlePayload(env)
			if err != nil {
				if handler != nil {
					handler(err)
				}
			} else if onRender != nil {
				onRender(stats)
			}
		}
	}

	g.updateTitle()
	return nil
}

func (g *Game) updateTitle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.config.StatusInTitle || !g.running {
		return
	}
	title := g.config.Title + " - " + g.session.Status()
	if title != g.title {
		g.title = title
		ebiten.SetWindowTitle(title)
	}
}

// Draw implements ebiten.Game.Draw.
func (g *Game) Draw(screen *ebiten.Image) {
	g.mu.RLock()
	bg := g.config.BackgroundColor
	g.mu.RUnlock()

	screen.Fill(bg)
	g.session.Do(func(Surface) {
		screen.DrawImage(g.surface.Canvas(), nil)
	})
}

// Layout implements ebiten.Game.Layout. The canvas follows the window
// size; a change replays the retained frame.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth <= 0 || outsideHeight <= 0 {
		g.mu.RLock()
		defer g.mu.RUnlock()
		return g.width, g.height
	}

	g.mu.Lock()
	changed := outsideWidth != g.width || outsideHeight != g.height
	g.width, g.height = outsideWidth, outsideHeight
	handler, onResize := g.errorHandler, g.onResize
	g.mu.Unlock()

	if changed {
		if err := g.session.Resize(outsideWidth, outsideHeight); err != nil {
			if handler != nil {
				handler(err)
			}
		} else if onResize != nil {
			onResize(outsideWidth, outsideHeight)
		}
	}
	return outsideWidth, outsideHeight
}

// Config returns the current configuration.
func (g *Game) Config() Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config
}

// SetConfig updates the game configuration in-place.
// Window size changes take effect on the next layout.
func (g *Game) SetConfig(config Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.config = config
	g.title = ""
}

// Run starts the Ebiten game loop.
// This function blocks until the window is closed.
func (g *Game) Run() error {
	g.mu.Lock()
	cfg := g.config
	g.running = true
	g.mu.Unlock()

	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowTitle(cfg.Title)
	if cfg.Resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	if cfg.TPS > 0 {
		ebiten.SetTPS(cfg.TPS)
	}

	err := ebiten.RunGame(g)

	g.mu.Lock()
	g.running = false
	g.mu.Unlock()

	if errors.Is(err, ErrGameTerminated) {
		return nil
	}
	return err
}

// IsRunning returns whether the game loop is currently running.
func (g *Game) IsRunning() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}
