package raster

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"

	"github.com/opd-ai/go-gbuf/internal/render"
)

// paint is the part of the drawing state gg's own Push and Pop do not keep.
type paint struct {
	color     color.RGBA
	lineWidth float64
	family    string
	size      float64
}

// Surface is a render.Surface that rasterizes into memory with gg.
type Surface struct {
	mu      sync.Mutex
	dc      *gg.Context
	catalog *render.FontCatalog
	sources map[render.FontKey]*text.FontSource
	faces   map[faceKey]text.Face

	paint
	stack []paint
}

type faceKey struct {
	font render.FontKey
	size float64
}

// New creates a width×height surface. A nil catalog uses the built-in fonts.
func New(width, height int, catalog *render.FontCatalog) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("raster surface %dx%d: %w", width, height, render.ErrInvalidSize)
	}
	if catalog == nil {
		catalog = render.NewFontCatalog()
	}
	s := &Surface{
		dc:      gg.NewContext(width, height),
		catalog: catalog,
		sources: make(map[render.FontKey]*text.FontSource),
		faces:   make(map[faceKey]text.Face),
		paint: paint{
			color:     render.Black,
			lineWidth: render.DefaultLineWidth,
			family:    render.DefaultFontFamily,
			size:      render.DefaultFontSize,
		},
	}
	s.applyPaint()
	return s, nil
}

// Close releases the gg context and loaded fonts.
func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, src := range s.sources {
		_ = src.Close()
		delete(s.sources, k)
	}
	clear(s.faces)
	return s.dc.Close()
}

// Snapshot returns a copy of the current pixels.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.dc.Image()
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// EncodePNG writes the current pixels to w as PNG.
func (s *Surface) EncodePNG(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc.EncodePNG(w)
}

// SavePNG writes the current pixels to path. The file is written to a
// temporary name first and renamed into place.
func (s *Surface) SavePNG(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gbuf-*.png")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.EncodePNG(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}

// Size implements render.Surface.
func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc.Width(), s.dc.Height()
}

// Resize implements render.Surface.
func (s *Surface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return render.ErrInvalidSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc.Resize(width, height)
}

// Clear implements render.Surface.
func (s *Surface) Clear(c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.ClearWithColor(gg.FromColor(c))
}

// ResetTransform implements render.Surface.
func (s *Surface) ResetTransform() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range s.stack {
		s.dc.Pop()
	}
	s.stack = s.stack[:0]
	s.dc.Identity()
	s.dc.ResetClip()
	s.dc.ClearPath()
}

// SetColor implements render.Surface.
func (s *Surface) SetColor(c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.color = color.RGBAModel.Convert(c).(color.RGBA)
	s.dc.SetColor(s.color)
}

// SetLineWidth implements render.Surface.
func (s *Surface) SetLineWidth(w float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineWidth = w
	s.dc.SetLineWidth(w)
}

// SetFont implements render.Surface.
func (s *Surface) SetFont(family string, size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.family, s.size = family, size
}

// Line implements render.Surface.
func (s *Surface) Line(x0, y0, x1, y1 float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.DrawLine(x0, y0, x1, y1)
	return s.dc.Stroke()
}

// Circle implements render.Surface.
func (s *Surface) Circle(cx, cy, r float64, fill bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.DrawCircle(cx, cy, math.Abs(r))
	if fill {
		return s.dc.Fill()
	}
	return s.dc.Stroke()
}

// FillRect implements render.Surface.
func (s *Surface) FillRect(r render.Rect) error {
	if r.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	return s.dc.Fill()
}

// Polygon implements render.Surface.
func (s *Surface) Polygon(pts []render.Point, fill bool) error {
	if len(pts) < 2 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		s.dc.LineTo(p.X, p.Y)
	}
	s.dc.ClosePath()
	if fill {
		return s.dc.Fill()
	}
	return s.dc.Stroke()
}

// Text implements render.Surface.
func (s *Surface) Text(str string, x, y float64, align render.Justification, angle float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	face, err := s.face(s.family, s.size)
	if err != nil {
		return err
	}
	s.dc.SetFont(face)
	if angle != 0 {
		s.dc.Push()
		defer s.dc.Pop()
		s.dc.RotateAbout(angle*math.Pi/180, x, y)
	}
	s.dc.DrawStringAnchored(str, x, y, anchorX(align), 0.5)
	return nil
}

// Image implements render.Surface.
func (s *Surface) Image(img image.Image, dst render.Rect) error {
	if img.Bounds().Empty() || dst.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		X:         dst.X,
		Y:         dst.Y,
		DstWidth:  dst.W,
		DstHeight: dst.H,
	})
	return nil
}

// Save implements render.Surface.
func (s *Surface) Save() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.Push()
	s.stack = append(s.stack, s.paint)
}

// Restore implements render.Surface.
func (s *Surface) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return
	}
	s.dc.Pop()
	last := len(s.stack) - 1
	s.paint = s.stack[last]
	s.stack = s.stack[:last]
	s.applyPaint()
}

// Clip implements render.Surface.
func (s *Surface) Clip(r render.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.ClipRect(r.X, r.Y, r.W, r.H)
}

// applyPaint pushes the tracked paint into gg. Callers hold s.mu.
func (s *Surface) applyPaint() {
	s.dc.SetColor(s.color)
	s.dc.SetLineWidth(s.lineWidth)
	s.dc.SetLineCap(gg.LineCapButt)
	s.dc.SetLineJoin(gg.LineJoinMiter)
}

// face returns a cached face for family at size. Callers hold s.mu.
func (s *Surface) face(family string, size float64) (text.Face, error) {
	key, data := s.catalog.Resolve(family)
	fk := faceKey{font: key, size: size}
	if f, ok := s.faces[fk]; ok {
		return f, nil
	}
	src, ok := s.sources[key]
	if !ok {
		var err error
		src, err = text.NewFontSource(data)
		if err != nil {
			return nil, fmt.Errorf("load font %s: %w", family, err)
		}
		s.sources[key] = src
	}
	f := src.Face(size)
	s.faces[fk] = f
	return f, nil
}

func anchorX(j render.Justification) float64 {
	switch j {
	case render.JustifyCenter:
		return 0.5
	case render.JustifyRight:
		return 1
	default:
		return 0
	}
}
