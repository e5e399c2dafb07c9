package render

import "math"

// ScaleFactors are the logical-to-device multipliers per axis.
type ScaleFactors struct {
	X, Y float64
}

// Uniform returns the smaller factor, used for font sizes and line widths
// so glyphs and strokes are never stretched along one axis.
func (s ScaleFactors) Uniform() float64 {
	return math.Min(s.X, s.Y)
}

// IdentityScale is the scale of a frame that has not declared a window.
var IdentityScale = ScaleFactors{X: 1, Y: 1}

// WindowBounds is the logical extent declared by setwindow.
type WindowBounds struct {
	LLX, LLY, URX, URY float64
}

// Width returns the logical width of the window.
func (w WindowBounds) Width() float64 { return w.URX - w.LLX }

// Height returns the logical height of the window.
func (w WindowBounds) Height() float64 { return w.URY - w.LLY }

// Mapper converts logical coordinates to device pixels. The y axis is
// always flipped; scaling applies only when auto-scale is enabled and a
// window has been declared.
type Mapper struct {
	width, height float64
	autoScale     bool
	scale         ScaleFactors
	window        *WindowBounds
}

// NewMapper returns a mapper for a surface of the given size.
func NewMapper(width, height int, autoScale bool) *Mapper {
	return &Mapper{
		width:     float64(width),
		height:    float64(height),
		autoScale: autoScale,
		scale:     IdentityScale,
	}
}

// Reset returns the mapper to identity scale with no window.
func (m *Mapper) Reset() {
	m.scale = IdentityScale
	m.window = nil
}

// SetAutoScale switches auto-scaling. It takes effect at the next setwindow.
func (m *Mapper) SetAutoScale(on bool) {
	m.autoScale = on
}

// SetSurfaceSize records new surface dimensions. The scale factors are left
// alone; they change only when a window is declared.
func (m *Mapper) SetSurfaceSize(width, height int) {
	m.width = float64(width)
	m.height = float64(height)
}

// SetWindow records window bounds and, with auto-scale on, recomputes the
// scale factors against the current surface size. A degenerate window
// leaves the scale at identity.
func (m *Mapper) SetWindow(b WindowBounds) {
	m.window = &b
	if !m.autoScale {
		m.scale = IdentityScale
		return
	}
	w, h := b.Width(), b.Height()
	if w == 0 || h == 0 || !finite(w) || !finite(h) {
		m.scale = IdentityScale
		return
	}
	m.scale = ScaleFactors{X: m.width / w, Y: m.height / h}
}

// Window returns the declared window bounds, if any.
func (m *Mapper) Window() (WindowBounds, bool) {
	if m.window == nil {
		return WindowBounds{}, false
	}
	return *m.window, true
}

// Scale returns the current scale factors.
func (m *Mapper) Scale() ScaleFactors { return m.scale }

// AutoScale reports whether auto-scaling is enabled.
func (m *Mapper) AutoScale() bool { return m.autoScale }

// X maps a logical x coordinate to device space.
func (m *Mapper) X(x float64) float64 { return x * m.scale.X }

// Y maps a logical y coordinate to device space, flipping the axis.
func (m *Mapper) Y(y float64) float64 { return m.height - y*m.scale.Y }

// Point maps a logical point.
func (m *Mapper) Point(x, y float64) Point { return Point{X: m.X(x), Y: m.Y(y)} }

// Length maps a horizontal logical length, such as a radius.
func (m *Mapper) Length(l float64) float64 { return l * m.scale.X }

// Uniform scales a size by the smaller factor.
func (m *Mapper) Uniform(v float64) float64 { return v * m.scale.Uniform() }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
