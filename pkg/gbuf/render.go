//go:build !noebiten

package gbuf

import (
	"context"
	"errors"
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/opd-ai/go-gbuf/internal/config"
	"github.com/opd-ai/go-gbuf/internal/render"
)

// windowSupported reports whether this build can open a preview window.
const windowSupported = true

// windowRunner owns the Ebiten preview window of one run.
type windowRunner struct {
	game    *render.Game
	surface *render.EbitenSurface
	session *render.Session
}

// newWindowRunner builds the window canvas and its session and wires the
// game callbacks back into v.
func newWindowRunner(v *viewerImpl, cfg *config.Config, opts render.SessionOptions) (*windowRunner, error) {
	rc := renderConfig(cfg)
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	surface := render.NewEbitenSurface(cfg.Window.Width, cfg.Window.Height, render.NewFontManager(v.catalog))
	surface.SetAntialias(cfg.Render.Antialias)
	session := render.NewSession(surface, opts)

	game := render.NewGame(rc, session, surface)
	game.SetSource(v.mailbox)
	game.SetRenderCallback(v.onFrame)
	game.SetResizeCallback(v.resized)
	game.SetErrorHandler(func(err error) {
		v.payloadFailed("", err)
	})

	return &windowRunner{game: game, surface: surface, session: session}, nil
}

// renderConfig maps the window settings of cfg onto the game config.
func renderConfig(cfg *config.Config) render.Config {
	rc := render.DefaultConfig()
	rc.Width = cfg.Window.Width
	rc.Height = cfg.Window.Height
	rc.Title = cfg.Window.Title
	rc.TPS = cfg.Window.FPS
	rc.BackgroundColor = cfg.Window.Background
	return rc
}

// run blocks until the window is closed or ctx is cancelled.
func (wr *windowRunner) run(ctx context.Context) error {
	wr.game.SetContext(ctx)
	if err := wr.game.Run(); err != nil && !errors.Is(err, render.ErrGameTerminated) {
		return fmt.Errorf("render loop error: %w", err)
	}
	return nil
}

// apply updates the window after a configuration reload. A size change
// resizes the window; the next layout replays the frame at the new size.
func (wr *windowRunner) apply(cfg *config.Config) {
	current := wr.game.Config()
	next := renderConfig(cfg)
	wr.surface.SetAntialias(cfg.Render.Antialias)
	wr.game.SetConfig(next)
	if next.Width != current.Width || next.Height != current.Height {
		wr.resize(next.Width, next.Height)
	}
	if next.TPS != current.TPS && next.TPS > 0 {
		ebiten.SetTPS(next.TPS)
	}
}

// resize asks Ebiten for a new window size.
func (wr *windowRunner) resize(width, height int) {
	if wr.game.IsRunning() {
		ebiten.SetWindowSize(width, height)
	}
}
