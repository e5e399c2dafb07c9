//go:build !noebiten

package render

import (
	"bytes"
	"fmt"
	"sync"

	etext "github.com/hajimehoshi/ebiten/v2/text/v2"
)

// FontManager turns catalog entries into Ebiten text faces, parsing each
// font file once.
type FontManager struct {
	catalog *FontCatalog
	sources map[FontKey]*etext.GoTextFaceSource
	mu      sync.Mutex
}

// NewFontManager creates a FontManager over catalog. A nil catalog gets
// the default Go fonts.
func NewFontManager(catalog *FontCatalog) *FontManager {
	if catalog == nil {
		catalog = NewFontCatalog()
	}
	return &FontManager{
		catalog: catalog,
		sources: make(map[FontKey]*etext.GoTextFaceSource),
	}
}

// Catalog returns the underlying catalog.
func (fm *FontManager) Catalog() *FontCatalog {
	return fm.catalog
}

// Face returns a face for a gbuf font name at a pixel size.
func (fm *FontManager) Face(name string, size float64) (*etext.GoTextFace, error) {
	key, data := fm.catalog.Resolve(name)
	if data == nil {
		return nil, fmt.Errorf("no font available for %q", name)
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	src, ok := fm.sources[key]
	if !ok {
		var err error
		src, err = etext.NewGoTextFaceSource(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse font %s/%s: %w", key.Family, key.Style, err)
		}
		fm.sources[key] = src
	}
	return &etext.GoTextFace{Source: src, Size: size}, nil
}
