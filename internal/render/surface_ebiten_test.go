//go:build !noebiten

package render

import (
	"image"
	"image/color"
	"testing"
)

func newTestEbitenSurface(w, h int) *EbitenSurface {
	return NewEbitenSurface(w, h, NewFontManager(NewFontCatalog()))
}

func TestEbitenSurfaceDefaults(t *testing.T) {
	s := newTestEbitenSurface(320, 200)
	w, h := s.Size()
	if w != 320 || h != 200 {
		t.Errorf("Size() = %dx%d, want 320x200", w, h)
	}
	if s.color != Black {
		t.Errorf("color = %v, want black", s.color)
	}
	if s.lineWidth != DefaultLineWidth {
		t.Errorf("lineWidth = %v, want %v", s.lineWidth, DefaultLineWidth)
	}
	if s.family != DefaultFontFamily || s.size != DefaultFontSize {
		t.Errorf("font = %s %v, want %s %v", s.family, s.size, DefaultFontFamily, DefaultFontSize)
	}
	if s.Canvas() == nil {
		t.Fatal("Canvas() returned nil")
	}
}

func TestEbitenSurfaceResize(t *testing.T) {
	s := newTestEbitenSurface(100, 100)
	before := s.Canvas()

	if err := s.Resize(100, 100); err != nil {
		t.Fatalf("Resize() same size error = %v", err)
	}
	if s.Canvas() != before {
		t.Error("Resize() to the same size replaced the image")
	}

	if err := s.Resize(200, 50); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if w, h := s.Size(); w != 200 || h != 50 {
		t.Errorf("Size() = %dx%d, want 200x50", w, h)
	}
	b := s.Canvas().Bounds()
	if b.Dx() != 200 || b.Dy() != 50 {
		t.Errorf("image bounds = %v, want 200x50", b)
	}

	for _, tc := range []struct{ w, h int }{{0, 10}, {10, 0}, {-1, 5}} {
		if err := s.Resize(tc.w, tc.h); err != ErrInvalidSize {
			t.Errorf("Resize(%d, %d) error = %v, want ErrInvalidSize", tc.w, tc.h, err)
		}
	}
}

func TestEbitenSurfaceSaveRestore(t *testing.T) {
	s := newTestEbitenSurface(100, 100)
	red := color.RGBA{R: 255, A: 255}

	s.SetColor(red)
	s.SetFont("Times", 20)
	s.Clip(Rect{X: 10, Y: 10, W: 50, H: 50})
	s.Save()

	s.SetColor(White)
	s.SetLineWidth(4)
	s.SetFont("Courier", 8)
	s.Clip(Rect{X: 30, Y: 30, W: 50, H: 50})
	if got := *s.clip; got != (Rect{X: 30, Y: 30, W: 30, H: 30}) {
		t.Errorf("nested clip = %+v, want intersection", got)
	}

	s.Restore()
	if s.color != red {
		t.Errorf("color after Restore = %v, want %v", s.color, red)
	}
	if s.family != "Times" || s.size != 20 {
		t.Errorf("font after Restore = %s %v", s.family, s.size)
	}
	if s.lineWidth != DefaultLineWidth {
		t.Errorf("lineWidth after Restore = %v", s.lineWidth)
	}
	if s.clip == nil || *s.clip != (Rect{X: 10, Y: 10, W: 50, H: 50}) {
		t.Errorf("clip after Restore = %v", s.clip)
	}

	// Restoring an empty stack is a no-op.
	s.Restore()
	if s.color != red {
		t.Error("Restore() on empty stack changed state")
	}
}

func TestEbitenSurfaceResetTransform(t *testing.T) {
	s := newTestEbitenSurface(100, 100)
	s.Clip(Rect{X: 0, Y: 0, W: 10, H: 10})
	s.Save()
	s.Save()
	s.ResetTransform()
	if s.clip != nil {
		t.Error("ResetTransform() kept clip")
	}
	if len(s.stack) != 0 {
		t.Errorf("ResetTransform() left %d saved states", len(s.stack))
	}
}

func TestEbitenSurfaceDraw(t *testing.T) {
	s := newTestEbitenSurface(120, 80)
	s.Clear(White)
	s.SetColor(color.RGBA{B: 255, A: 255})
	s.SetLineWidth(2)

	calls := []struct {
		name string
		fn   func() error
	}{
		{"line", func() error { return s.Line(0, 0, 100, 60) }},
		{"circle", func() error { return s.Circle(60, 40, 20, false) }},
		{"fcircle", func() error { return s.Circle(60, 40, 10, true) }},
		{"rect", func() error { return s.FillRect(Rect{X: 5, Y: 5, W: 20, H: 10}) }},
		{"empty rect", func() error { return s.FillRect(Rect{X: 5, Y: 5}) }},
		{"poly", func() error { return s.Polygon([]Point{{0, 0}, {10, 0}, {10, 10}}, false) }},
		{"fpoly", func() error { return s.Polygon([]Point{{0, 0}, {10, 0}, {10, 10}}, true) }},
		{"degenerate poly", func() error { return s.Polygon([]Point{{1, 1}}, true) }},
		{"text", func() error { return s.Text("hello", 60, 40, JustifyCenter, 0) }},
		{"rotated text", func() error { return s.Text("hello", 60, 40, JustifyLeft, 90) }},
		{"image", func() error {
			return s.Image(image.NewRGBA(image.Rect(0, 0, 4, 4)), Rect{X: 10, Y: 10, W: 8, H: 8})
		}},
	}
	for _, c := range calls {
		t.Run(c.name, func(t *testing.T) {
			if err := c.fn(); err != nil {
				t.Errorf("%s error = %v", c.name, err)
			}
		})
	}

	t.Run("clipped", func(t *testing.T) {
		s.Clip(Rect{X: 20, Y: 20, W: 40, H: 40})
		if err := s.FillRect(Rect{X: 0, Y: 0, W: 120, H: 80}); err != nil {
			t.Errorf("clipped FillRect error = %v", err)
		}
		if b := s.target().Bounds(); b != image.Rect(20, 20, 60, 60) {
			t.Errorf("clip target bounds = %v", b)
		}
	})
}

func TestEbitenSurfaceSession(t *testing.T) {
	s := newTestEbitenSurface(640, 480)
	sess := NewSession(s, DefaultSessionOptions())

	stats := sess.Render(mustDecode(t, `{"commands":[
		{"cmd":"setwindow","args":[0,0,100,75]},
		{"cmd":"setcolor","args":[4]},
		{"cmd":"frect","args":[10,10,50,50]},
		{"cmd":"setfont","args":["Helvetica-Bold",12]},
		{"cmd":"drawtext","args":["label"]}
	]}`))
	if stats.Errors != 0 {
		t.Fatalf("Errors = %d, errs = %v", stats.Errors, sess.Errors())
	}
	if stats.Commands != 5 || stats.TextCommands != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
