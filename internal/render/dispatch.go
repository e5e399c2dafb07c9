package render

import (
	"fmt"

	"github.com/opd-ai/go-gbuf/internal/command"
)

// Pass is the execution context of one render pass. It is created by the
// Session for every frame and must not be shared between passes.
type Pass struct {
	Surface Surface
	State   *GraphicsState
	Stack   *StateStack
	Mapper  *Mapper
	Images  *ImageCache

	// ClipEnabled turns setclipregion on. It is off by default because an
	// unbracketed clip cannot be undone by grestore.
	ClipEnabled bool
	// OnWindow is called whenever setwindow executes.
	OnWindow func(WindowBounds)
}

// Handler executes one command against a pass.
type Handler func(p *Pass, c command.Command) error

// Dispatcher routes commands to their handlers.
type Dispatcher struct {
	handlers map[command.Opcode]Handler
}

// NewDispatcher returns a dispatcher with every gbuf opcode registered.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{handlers: make(map[command.Opcode]Handler)}
	d.Register(command.OpUnknown, execUnknown)
	d.Register(command.OpSetWindow, execSetWindow)
	d.Register(command.OpSetColor, execSetColor)
	d.Register(command.OpSetBackground, execSetBackground)
	d.Register(command.OpSetJust, execSetJust)
	d.Register(command.OpSetOrientation, execSetOrientation)
	d.Register(command.OpSetFont, execSetFont)
	d.Register(command.OpSetLineWidth, execSetLineWidth)
	d.Register(command.OpGSave, execGSave)
	d.Register(command.OpGRestore, execGRestore)
	d.Register(command.OpSetClipRegion, execSetClipRegion)
	d.Register(command.OpCircle, execCircle)
	d.Register(command.OpFCircle, execCircle)
	d.Register(command.OpLine, execLine)
	d.Register(command.OpMoveTo, execMoveTo)
	d.Register(command.OpLineTo, execLineTo)
	d.Register(command.OpFilledRect, execFilledRect)
	d.Register(command.OpPoly, execPoly)
	d.Register(command.OpFPoly, execPoly)
	d.Register(command.OpDrawText, execDrawText)
	d.Register(command.OpDrawImage, execDrawImage)
	return d
}

// Register installs or replaces the handler for op.
func (d *Dispatcher) Register(op command.Opcode, h Handler) {
	d.handlers[op] = h
}

// Execute runs one command. Handler errors and panics are returned as a
// *CommandExecutionError so the caller can record them and move on.
func (d *Dispatcher) Execute(p *Pass, index int, c command.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CommandExecutionError{Index: index, Name: c.Name, Op: c.Op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	h, ok := d.handlers[c.Op]
	if !ok {
		h = execUnknown
	}
	if herr := h(p, c); herr != nil {
		return &CommandExecutionError{Index: index, Name: c.Name, Op: c.Op, Err: herr}
	}
	return nil
}

// execUnknown leaves state and surface untouched so producers can add
// opcodes without breaking older viewers.
func execUnknown(*Pass, command.Command) error {
	return nil
}

func execSetWindow(p *Pass, c command.Command) error {
	v, err := c.Floats(4)
	if err != nil {
		return err
	}
	b := WindowBounds{LLX: v[0], LLY: v[1], URX: v[2], URY: v[3]}
	p.State.Window = &b
	p.Mapper.SetWindow(b)
	if p.OnWindow != nil {
		p.OnWindow(b)
	}
	return nil
}

func execSetColor(p *Pass, c command.Command) error {
	idx, err := c.Float(0)
	if err != nil {
		return err
	}
	p.State.Color = PaletteColor(idx)
	p.Surface.SetColor(p.State.Color)
	return nil
}

func execSetBackground(p *Pass, c command.Command) error {
	idx, err := c.Float(0)
	if err != nil {
		return err
	}
	bg := PaletteColor(idx)
	p.State.Background = bg
	w, h := p.Surface.Size()
	p.Surface.SetColor(bg)
	err = p.Surface.FillRect(Rect{W: float64(w), H: float64(h)})
	p.Surface.SetColor(p.State.Color)
	return err
}

func execSetJust(p *Pass, c command.Command) error {
	a, ok := c.Arg(0)
	if !ok {
		return fmt.Errorf("%s: missing argument 1", c.Name)
	}
	v, isNum := a.Float()
	if !isNum {
		p.State.Justify = JustifyCenter
		return nil
	}
	p.State.Justify = ParseJustification(v)
	return nil
}

func execSetOrientation(p *Pass, c command.Command) error {
	a, ok := c.Arg(0)
	if !ok {
		return fmt.Errorf("%s: missing argument 1", c.Name)
	}
	v, isNum := a.Float()
	if !isNum {
		p.State.Orientation = Orient0
		return nil
	}
	p.State.Orientation = ParseOrientation(v)
	return nil
}

func execSetFont(p *Pass, c command.Command) error {
	family := c.Text(0)
	if family == "" {
		family = DefaultFontFamily
	}
	size := DefaultFontSize
	if a, ok := c.Arg(1); ok && a.Truthy() {
		v, isNum := a.Float()
		if !isNum {
			return fmt.Errorf("%s: font size is not a number: %q", c.Name, a.Text())
		}
		size = v
	}
	p.State.FontFamily = family
	p.State.FontSize = p.Mapper.Uniform(size)
	p.Surface.SetFont(p.State.FontFamily, p.State.FontSize)
	return nil
}

func execSetLineWidth(p *Pass, c command.Command) error {
	w, err := c.Float(0)
	if err != nil {
		return err
	}
	p.State.LineWidth = max(1, p.Mapper.Uniform(w/100))
	p.Surface.SetLineWidth(p.State.LineWidth)
	return nil
}

func execGSave(p *Pass, _ command.Command) error {
	p.Stack.Push(p.State.Snapshot())
	p.Surface.Save()
	return nil
}

// execGRestore re-applies the popped color, font and line width after the
// native restore; the surface is not trusted to re-assert paint state itself.
func execGRestore(p *Pass, _ command.Command) error {
	snap, ok := p.Stack.Pop()
	if !ok {
		return nil
	}
	p.Surface.Restore()
	p.State.Apply(snap)
	p.Surface.SetColor(p.State.Color)
	p.Surface.SetFont(p.State.FontFamily, p.State.FontSize)
	p.Surface.SetLineWidth(p.State.LineWidth)
	return nil
}

func execSetClipRegion(p *Pass, c command.Command) error {
	if !p.ClipEnabled {
		return nil
	}
	v, err := c.Floats(4)
	if err != nil {
		return err
	}
	r := RectFromCorners(p.Mapper.X(v[0]), p.Mapper.Y(v[1]), p.Mapper.X(v[2]), p.Mapper.Y(v[3]))
	if p.State.Clip != nil {
		r = p.State.Clip.Intersect(r)
	}
	p.State.Clip = &r
	p.Surface.Clip(r)
	return nil
}

func execCircle(p *Pass, c command.Command) error {
	v, err := c.Floats(3)
	if err != nil {
		return err
	}
	fill := c.Op == command.OpFCircle
	if a, ok := c.Arg(3); ok && a.Truthy() {
		fill = true
	}
	return p.Surface.Circle(p.Mapper.X(v[0]), p.Mapper.Y(v[1]), p.Mapper.Length(v[2]), fill)
}

func execLine(p *Pass, c command.Command) error {
	v, err := c.Floats(4)
	if err != nil {
		return err
	}
	return p.Surface.Line(p.Mapper.X(v[0]), p.Mapper.Y(v[1]), p.Mapper.X(v[2]), p.Mapper.Y(v[3]))
}

func execMoveTo(p *Pass, c command.Command) error {
	v, err := c.Floats(2)
	if err != nil {
		return err
	}
	p.State.Pen = p.Mapper.Point(v[0], v[1])
	return nil
}

func execLineTo(p *Pass, c command.Command) error {
	v, err := c.Floats(2)
	if err != nil {
		return err
	}
	to := p.Mapper.Point(v[0], v[1])
	from := p.State.Pen
	p.State.Pen = to
	return p.Surface.Line(from.X, from.Y, to.X, to.Y)
}

func execFilledRect(p *Pass, c command.Command) error {
	v, err := c.Floats(4)
	if err != nil {
		return err
	}
	r := RectFromCorners(p.Mapper.X(v[0]), p.Mapper.Y(v[1]), p.Mapper.X(v[2]), p.Mapper.Y(v[3]))
	return p.Surface.FillRect(r)
}

func execPoly(p *Pass, c command.Command) error {
	n := len(c.Args)
	if n < 6 || n%2 != 0 {
		return fmt.Errorf("%s: need an even number of arguments >= 6, got %d", c.Name, n)
	}
	v, err := c.Floats(n)
	if err != nil {
		return err
	}
	pts := make([]Point, 0, n/2)
	for i := 0; i < n; i += 2 {
		pts = append(pts, p.Mapper.Point(v[i], v[i+1]))
	}
	return p.Surface.Polygon(pts, c.Op == command.OpFPoly)
}

func execDrawText(p *Pass, c command.Command) error {
	a, ok := c.Arg(0)
	if !ok || !a.Truthy() {
		return nil
	}
	return p.Surface.Text(a.Text(), p.State.Pen.X, p.State.Pen.Y, p.State.Justify, p.State.Orientation.Degrees())
}

func execDrawImage(p *Pass, c command.Command) error {
	if len(c.Args) < 5 {
		return fmt.Errorf("%s: need 5 arguments, got %d", c.Name, len(c.Args))
	}
	v, err := c.Floats(4)
	if err != nil {
		return err
	}
	id := c.Text(4)
	if _, cached := p.Images.Get(id); !cached && c.Image != nil {
		img, err := DecodeImageData(c.Image)
		if err != nil {
			return fmt.Errorf("%s %s: %w", c.Name, id, err)
		}
		p.Images.Put(id, img)
	}
	img, ok := p.Images.Get(id)
	if !ok {
		return fmt.Errorf("%s %s: %w", c.Name, id, ErrImageNotFound)
	}
	dst := RectFromCorners(p.Mapper.X(v[0]), p.Mapper.Y(v[1]), p.Mapper.X(v[2]), p.Mapper.Y(v[3]))
	return p.Surface.Image(img, dst)
}
