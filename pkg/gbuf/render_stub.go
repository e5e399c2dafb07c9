//go:build noebiten

package gbuf

import (
	"context"
	"errors"

	"github.com/opd-ai/go-gbuf/internal/config"
	"github.com/opd-ai/go-gbuf/internal/render"
)

// windowSupported is false in noebiten builds; every viewer renders
// headless.
const windowSupported = false

var errNoWindow = errors.New("built without window support")

type windowRunner struct {
	session *render.Session
}

func newWindowRunner(*viewerImpl, *config.Config, render.SessionOptions) (*windowRunner, error) {
	return nil, errNoWindow
}

func (wr *windowRunner) run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (wr *windowRunner) apply(*config.Config) {}

func (wr *windowRunner) resize(int, int) {}
