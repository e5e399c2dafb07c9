package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
)

// recordingSurface is a Surface that logs every call.
type recordingSurface struct {
	w, h      int
	calls     []string
	color     color.RGBA
	lineWidth float64
	family    string
	size      float64
	saves     int
	clips     []Rect
	ops       []recordedOp
	failOn    string
}

// recordedOp is a drawing call with its numeric arguments.
type recordedOp struct {
	name string
	args []float64
	text string
	fill bool
}

func newRecordingSurface(w, h int) *recordingSurface {
	return &recordingSurface{w: w, h: h}
}

func (r *recordingSurface) record(format string, args ...any) error {
	call := fmt.Sprintf(format, args...)
	r.calls = append(r.calls, call)
	if r.failOn != "" && strings.HasPrefix(call, r.failOn) {
		return errors.New("surface failure")
	}
	return nil
}

func (r *recordingSurface) Size() (int, int) { return r.w, r.h }

func (r *recordingSurface) Resize(w, h int) error {
	r.w, r.h = w, h
	return r.record("resize %d %d", w, h)
}

func (r *recordingSurface) Clear(c color.Color) {
	r.record("clear %s", ToHex(color.RGBAModel.Convert(c).(color.RGBA)))
}

func (r *recordingSurface) ResetTransform() {
	r.saves = 0
	r.clips = nil
	r.record("reset")
}

func (r *recordingSurface) SetColor(c color.Color) {
	r.color = color.RGBAModel.Convert(c).(color.RGBA)
	r.record("color %s", ToHex(r.color))
}

func (r *recordingSurface) SetLineWidth(w float64) {
	r.lineWidth = w
	r.record("lwidth %g", w)
}

func (r *recordingSurface) SetFont(family string, size float64) {
	r.family, r.size = family, size
	r.record("font %s %g", family, size)
}

func (r *recordingSurface) Line(x0, y0, x1, y1 float64) error {
	r.ops = append(r.ops, recordedOp{name: "line", args: []float64{x0, y0, x1, y1}})
	return r.record("line %g %g %g %g", x0, y0, x1, y1)
}

func (r *recordingSurface) Circle(cx, cy, rad float64, fill bool) error {
	r.ops = append(r.ops, recordedOp{name: "circle", args: []float64{cx, cy, rad}, fill: fill})
	return r.record("circle %g %g %g %v", cx, cy, rad, fill)
}

func (r *recordingSurface) FillRect(rect Rect) error {
	r.ops = append(r.ops, recordedOp{name: "rect", args: []float64{rect.X, rect.Y, rect.W, rect.H}, fill: true})
	return r.record("rect %g %g %g %g", rect.X, rect.Y, rect.W, rect.H)
}

func (r *recordingSurface) Polygon(pts []Point, fill bool) error {
	args := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		args = append(args, p.X, p.Y)
	}
	r.ops = append(r.ops, recordedOp{name: "poly", args: args, fill: fill})
	return r.record("poly %d %v", len(pts), fill)
}

func (r *recordingSurface) Text(s string, x, y float64, align Justification, angle float64) error {
	r.ops = append(r.ops, recordedOp{name: "text", args: []float64{x, y, float64(align), angle}, text: s})
	return r.record("text %q %g %g %s %g", s, x, y, align, angle)
}

func (r *recordingSurface) Image(img image.Image, dst Rect) error {
	b := img.Bounds()
	r.ops = append(r.ops, recordedOp{name: "image", args: []float64{dst.X, dst.Y, dst.W, dst.H}})
	return r.record("image %dx%d %g %g %g %g", b.Dx(), b.Dy(), dst.X, dst.Y, dst.W, dst.H)
}

func (r *recordingSurface) Save() {
	r.saves++
	r.record("save")
}

func (r *recordingSurface) Restore() {
	if r.saves > 0 {
		r.saves--
	}
	r.record("restore")
}

func (r *recordingSurface) Clip(rect Rect) {
	r.clips = append(r.clips, rect)
	r.record("clip %g %g %g %g", rect.X, rect.Y, rect.W, rect.H)
}

// drawCalls returns the calls that produce pixels, skipping the pass setup.
func (r *recordingSurface) drawCalls() []string {
	var out []string
	for _, c := range r.calls {
		for _, p := range []string{"line", "circle", "rect", "poly", "text", "image"} {
			if strings.HasPrefix(c, p+" ") {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (r *recordingSurface) reset() {
	r.calls = nil
	r.ops = nil
}

// opsNamed returns the recorded drawing ops with the given name.
func (r *recordingSurface) opsNamed(name string) []recordedOp {
	var out []recordedOp
	for _, op := range r.ops {
		if op.name == name {
			out = append(out, op)
		}
	}
	return out
}

// sameArgs compares op arguments with a small tolerance.
func sameArgs(got, want []float64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if !almostEqual(got[i], want[i]) {
			return false
		}
	}
	return true
}
