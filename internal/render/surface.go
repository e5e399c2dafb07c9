package render

import (
	"image"
	"image/color"
	"math"
)

// Point is a position in device pixels.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in device pixels.
type Rect struct {
	X, Y, W, H float64
}

// RectFromCorners returns the rectangle spanned by two opposite corners.
func RectFromCorners(x0, y0, x1, y1 float64) Rect {
	return Rect{
		X: min(x0, x1),
		Y: min(y0, y1),
		W: math.Abs(x1 - x0),
		H: math.Abs(y1 - y0),
	}
}

// Intersect returns the overlap of r and o; an empty rectangle when they
// do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.X+r.W, o.X+o.W)
	y1 := min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{X: x0, Y: y0}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Bounds converts r to an integer rectangle enclosing it.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(int(r.X), int(r.Y), int(math.Ceil(r.X+r.W)), int(math.Ceil(r.Y+r.H)))
}

// Surface is the drawing backend a Session renders into. All coordinates
// are device pixels with a top-left origin. Surfaces keep their own native
// save/restore stack; the session never relies on it to restore paint state.
type Surface interface {
	// Size returns the surface dimensions in pixels.
	Size() (width, height int)
	// Resize changes the surface dimensions, discarding its content.
	Resize(width, height int) error

	// Clear fills the whole surface with c, ignoring any clip.
	Clear(c color.Color)
	// ResetTransform drops any transform, clip and saved native state.
	ResetTransform()

	// SetColor sets both the stroke and the fill color.
	SetColor(c color.Color)
	// SetLineWidth sets the stroke width in pixels.
	SetLineWidth(w float64)
	// SetFont selects a font family and pixel size.
	SetFont(family string, size float64)

	// Line strokes a segment.
	Line(x0, y0, x1, y1 float64) error
	// Circle strokes or fills a full circle.
	Circle(cx, cy, r float64, fill bool) error
	// FillRect fills an axis-aligned rectangle.
	FillRect(r Rect) error
	// Polygon strokes or fills a closed polygon.
	Polygon(pts []Point, fill bool) error
	// Text draws s anchored at (x, y) with the given horizontal alignment,
	// vertically centered on the anchor, rotated clockwise by angle degrees
	// about the anchor.
	Text(s string, x, y float64, align Justification, angle float64) error
	// Image draws img scaled into dst.
	Image(img image.Image, dst Rect) error

	// Save pushes the native paint state, including the clip.
	Save()
	// Restore pops the native paint state. Restoring an empty stack is a no-op.
	Restore()
	// Clip intersects the current clip with r.
	Clip(r Rect)
}
