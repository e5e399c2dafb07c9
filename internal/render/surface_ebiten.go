//go:build !noebiten

package render

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// whitePixel is the source image for vector fills; vertex colors tint it.
var whitePixel = func() *ebiten.Image {
	img := ebiten.NewImage(3, 3)
	img.Fill(color.White)
	return img.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
}()

// ebitenState is the native paint state kept by Save and Restore.
type ebitenState struct {
	color     color.RGBA
	lineWidth float64
	family    string
	size      float64
	clip      *Rect
}

// EbitenSurface is a Surface that draws into an offscreen Ebiten image.
// Strokes and fills are tessellated with the vector package and clipping
// is done by drawing into a sub-image.
type EbitenSurface struct {
	mu        sync.Mutex
	img       *ebiten.Image
	width     int
	height    int
	text      *TextRenderer
	antialias bool

	ebitenState
	stack []ebitenState
}

// NewEbitenSurface creates a surface of the given size.
func NewEbitenSurface(width, height int, fonts *FontManager) *EbitenSurface {
	return &EbitenSurface{
		img:       ebiten.NewImage(width, height),
		width:     width,
		height:    height,
		text:      NewTextRenderer(fonts),
		antialias: true,
		ebitenState: ebitenState{
			color:     Black,
			lineWidth: DefaultLineWidth,
			family:    DefaultFontFamily,
			size:      DefaultFontSize,
		},
	}
}

// SetAntialias toggles anti-aliased vector drawing.
func (s *EbitenSurface) SetAntialias(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.antialias = on
}

// Canvas returns the offscreen image. It is replaced by Resize.
func (s *EbitenSurface) Canvas() *ebiten.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img
}

// Size implements Surface.
func (s *EbitenSurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Resize implements Surface.
func (s *EbitenSurface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if width == s.width && height == s.height {
		return nil
	}
	old := s.img
	s.img = ebiten.NewImage(width, height)
	s.width, s.height = width, height
	old.Deallocate()
	return nil
}

// Clear implements Surface.
func (s *EbitenSurface) Clear(c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img.Fill(c)
}

// ResetTransform implements Surface.
func (s *EbitenSurface) ResetTransform() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clip = nil
	s.stack = s.stack[:0]
}

// SetColor implements Surface.
func (s *EbitenSurface) SetColor(c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.color = color.RGBAModel.Convert(c).(color.RGBA)
}

// SetLineWidth implements Surface.
func (s *EbitenSurface) SetLineWidth(w float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineWidth = w
}

// SetFont implements Surface.
func (s *EbitenSurface) SetFont(family string, size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.family, s.size = family, size
}

// Line implements Surface.
func (s *EbitenSurface) Line(x0, y0, x1, y1 float64) error {
	var p vector.Path
	p.MoveTo(float32(x0), float32(y0))
	p.LineTo(float32(x1), float32(y1))
	s.stroke(&p)
	return nil
}

// Circle implements Surface.
func (s *EbitenSurface) Circle(cx, cy, r float64, fill bool) error {
	var p vector.Path
	p.Arc(float32(cx), float32(cy), float32(math.Abs(r)), 0, 2*math.Pi, vector.Clockwise)
	p.Close()
	if fill {
		s.fill(&p)
	} else {
		s.stroke(&p)
	}
	return nil
}

// FillRect implements Surface.
func (s *EbitenSurface) FillRect(r Rect) error {
	if r.Empty() {
		return nil
	}
	var p vector.Path
	p.MoveTo(float32(r.X), float32(r.Y))
	p.LineTo(float32(r.X+r.W), float32(r.Y))
	p.LineTo(float32(r.X+r.W), float32(r.Y+r.H))
	p.LineTo(float32(r.X), float32(r.Y+r.H))
	p.Close()
	s.fill(&p)
	return nil
}

// Polygon implements Surface.
func (s *EbitenSurface) Polygon(pts []Point, fill bool) error {
	if len(pts) < 2 {
		return nil
	}
	var p vector.Path
	p.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, pt := range pts[1:] {
		p.LineTo(float32(pt.X), float32(pt.Y))
	}
	p.Close()
	if fill {
		s.fill(&p)
	} else {
		s.stroke(&p)
	}
	return nil
}

// Text implements Surface.
func (s *EbitenSurface) Text(str string, x, y float64, align Justification, angle float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.DrawText(s.target(), str, s.family, s.size, x, y, align, angle, s.color)
}

// Image implements Surface.
func (s *EbitenSurface) Image(img image.Image, dst Rect) error {
	b := img.Bounds()
	if b.Empty() || dst.Empty() {
		return nil
	}
	src := ebiten.NewImageFromImage(img)
	defer src.Deallocate()

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(dst.W/float64(b.Dx()), dst.H/float64(b.Dy()))
	op.GeoM.Translate(dst.X, dst.Y)
	op.Filter = ebiten.FilterLinear

	s.mu.Lock()
	defer s.mu.Unlock()
	s.target().DrawImage(src, op)
	return nil
}

// Save implements Surface.
func (s *EbitenSurface) Save() {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := s.ebitenState
	if s.clip != nil {
		c := *s.clip
		saved.clip = &c
	}
	s.stack = append(s.stack, saved)
}

// Restore implements Surface.
func (s *EbitenSurface) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return
	}
	last := len(s.stack) - 1
	s.ebitenState = s.stack[last]
	s.stack = s.stack[:last]
}

// Clip implements Surface.
func (s *EbitenSurface) Clip(r Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip != nil {
		r = s.clip.Intersect(r)
	}
	s.clip = &r
}

// target returns the image to draw on, narrowed to the clip. Sub-images
// share the parent's coordinate space. Callers hold s.mu.
func (s *EbitenSurface) target() *ebiten.Image {
	if s.clip == nil {
		return s.img
	}
	return s.img.SubImage(s.clip.Bounds()).(*ebiten.Image)
}

func (s *EbitenSurface) stroke(p *vector.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts := &vector.StrokeOptions{
		Width:    float32(s.lineWidth),
		LineCap:  vector.LineCapButt,
		LineJoin: vector.LineJoinMiter,
	}
	vertices, indices := p.AppendVerticesAndIndicesForStroke(nil, nil, opts)
	s.drawTriangles(vertices, indices, ebiten.FillRuleFillAll)
}

func (s *EbitenSurface) fill(p *vector.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vertices, indices := p.AppendVerticesAndIndicesForFilling(nil, nil)
	s.drawTriangles(vertices, indices, ebiten.FillRuleNonZero)
}

// drawTriangles paints tessellated geometry in the current color.
// Callers hold s.mu.
func (s *EbitenSurface) drawTriangles(vertices []ebiten.Vertex, indices []uint16, rule ebiten.FillRule) {
	if len(indices) == 0 {
		return
	}
	r := float32(s.color.R) / 255
	g := float32(s.color.G) / 255
	b := float32(s.color.B) / 255
	a := float32(s.color.A) / 255
	for i := range vertices {
		vertices[i].SrcX = 1
		vertices[i].SrcY = 1
		vertices[i].ColorR = r
		vertices[i].ColorG = g
		vertices[i].ColorB = b
		vertices[i].ColorA = a
	}
	s.target().DrawTriangles(vertices, indices, whitePixel, &ebiten.DrawTrianglesOptions{
		AntiAlias: s.antialias,
		FillRule:  rule,
	})
}
