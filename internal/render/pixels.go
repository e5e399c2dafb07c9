package render

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"github.com/opd-ai/go-gbuf/internal/command"
)

// maxImagePixels bounds images carried inline in a frame.
const maxImagePixels = 4096 * 4096

// DecodeImageData converts inline drawimage pixels into an image.
// Depth 1 is gray, 3 is RGB and 4 is RGBA; any other depth is read as
// gray. Missing trailing bytes read as zero, and a missing alpha byte as
// opaque.
func DecodeImageData(d *command.ImageData) (image.Image, error) {
	if d == nil {
		return nil, fmt.Errorf("no image data")
	}
	if d.Width <= 0 || d.Height <= 0 || d.Width*d.Height > maxImagePixels {
		return nil, fmt.Errorf("invalid image size %dx%d", d.Width, d.Height)
	}
	raw, err := base64.StdEncoding.DecodeString(d.Data)
	if err != nil {
		return nil, fmt.Errorf("image data: %w", err)
	}

	at := func(i int, def uint8) uint8 {
		if i < len(raw) {
			return raw[i]
		}
		return def
	}

	img := image.NewNRGBA(image.Rect(0, 0, d.Width, d.Height))
	n := d.Width * d.Height
	for i := 0; i < n; i++ {
		var c color.NRGBA
		switch d.Depth {
		case 3:
			c = color.NRGBA{R: at(i*3, 0), G: at(i*3+1, 0), B: at(i*3+2, 0), A: 255}
		case 4:
			c = color.NRGBA{R: at(i*4, 0), G: at(i*4+1, 0), B: at(i*4+2, 0), A: at(i*4+3, 255)}
		default:
			g := at(i, 0)
			c = color.NRGBA{R: g, G: g, B: g, A: 255}
		}
		img.SetNRGBA(i%d.Width, i/d.Width, c)
	}
	return img, nil
}

// ImageCache holds decoded drawimage pixels by id for the duration of
// one pass, so a frame can reference the same image more than once.
type ImageCache struct {
	images map[string]image.Image
}

// NewImageCache returns an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{images: make(map[string]image.Image)}
}

// Get returns a cached image.
func (ic *ImageCache) Get(id string) (image.Image, bool) {
	img, ok := ic.images[id]
	return img, ok
}

// Put stores an image, replacing any previous one with the same id.
func (ic *ImageCache) Put(id string, img image.Image) {
	ic.images[id] = img
}

// Size returns the number of cached images.
func (ic *ImageCache) Size() int { return len(ic.images) }

// Clear empties the cache.
func (ic *ImageCache) Clear() {
	clear(ic.images)
}
