package render

import "image/color"

// Justification is the horizontal text alignment relative to the pen.
type Justification int

const (
	JustifyLeft Justification = iota
	JustifyCenter
	JustifyRight
)

// ParseJustification maps a setjust argument: -1 left, 0 center, 1 right.
// Any other value is center.
func ParseJustification(v float64) Justification {
	switch v {
	case -1:
		return JustifyLeft
	case 1:
		return JustifyRight
	default:
		return JustifyCenter
	}
}

// String returns the alignment name.
func (j Justification) String() string {
	switch j {
	case JustifyLeft:
		return "left"
	case JustifyRight:
		return "right"
	default:
		return "center"
	}
}

// Orientation is the clockwise text rotation in degrees.
type Orientation int

const (
	Orient0   Orientation = 0
	Orient90  Orientation = 90
	Orient180 Orientation = 180
	Orient270 Orientation = 270
)

// ParseOrientation maps a setorientation argument:
// 0 to 0°, 1 to 270°, 2 to 180°, 3 to 90°. Any other value is 0°.
func ParseOrientation(v float64) Orientation {
	switch v {
	case 1:
		return Orient270
	case 2:
		return Orient180
	case 3:
		return Orient90
	default:
		return Orient0
	}
}

// Degrees returns the rotation angle.
func (o Orientation) Degrees() float64 { return float64(o) }

const (
	// DefaultFontFamily is the family a pass starts with and the fallback
	// for setfont without a name.
	DefaultFontFamily = "Helvetica"
	// DefaultFontSize is the unscaled size a pass starts with.
	DefaultFontSize = 10.0
	// DefaultLineWidth is the stroke width a pass starts with.
	DefaultLineWidth = 1.0
)

// GraphicsState is the paint, text and geometry state of one pass.
// A new one is created for every pass.
type GraphicsState struct {
	Color       color.RGBA
	Background  color.RGBA
	Pen         Point
	FontFamily  string
	FontSize    float64
	Justify     Justification
	Orientation Orientation
	LineWidth   float64
	Clip        *Rect
	Window      *WindowBounds
}

// NewGraphicsState returns the documented pass defaults.
func NewGraphicsState(background color.RGBA) *GraphicsState {
	return &GraphicsState{
		Color:       Black,
		Background:  background,
		FontFamily:  DefaultFontFamily,
		FontSize:    DefaultFontSize,
		Justify:     JustifyLeft,
		Orientation: Orient0,
		LineWidth:   DefaultLineWidth,
	}
}

// StateSnapshot is what gsave preserves and grestore re-applies.
type StateSnapshot struct {
	Color      color.RGBA
	FontFamily string
	FontSize   float64
	LineWidth  float64
	Clip       *Rect
}

// Snapshot captures the saved subset of the state.
func (s *GraphicsState) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		Color:      s.Color,
		FontFamily: s.FontFamily,
		FontSize:   s.FontSize,
		LineWidth:  s.LineWidth,
	}
	if s.Clip != nil {
		c := *s.Clip
		snap.Clip = &c
	}
	return snap
}

// Apply restores a snapshot into the state.
func (s *GraphicsState) Apply(snap StateSnapshot) {
	s.Color = snap.Color
	s.FontFamily = snap.FontFamily
	s.FontSize = snap.FontSize
	s.LineWidth = snap.LineWidth
	s.Clip = snap.Clip
}

// StateStack is the explicit gsave/grestore stack of a pass.
type StateStack struct {
	items []StateSnapshot
}

// Push saves a snapshot.
func (st *StateStack) Push(s StateSnapshot) {
	st.items = append(st.items, s)
}

// Pop removes the most recent snapshot. ok is false when the stack is empty.
func (st *StateStack) Pop() (s StateSnapshot, ok bool) {
	if len(st.items) == 0 {
		return StateSnapshot{}, false
	}
	last := len(st.items) - 1
	s = st.items[last]
	st.items = st.items[:last]
	return s, true
}

// Len returns the stack depth.
func (st *StateStack) Len() int { return len(st.items) }

// Reset empties the stack.
func (st *StateStack) Reset() { st.items = st.items[:0] }
