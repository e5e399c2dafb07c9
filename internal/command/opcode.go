package command

// Opcode identifies a gbuf drawing command.
// OpUnknown is a real variant: commands with unrecognized names decode to it
// and are executed as an explicit no-op.
type Opcode int

const (
	OpUnknown Opcode = iota
	OpSetWindow
	OpSetColor
	OpSetBackground
	OpSetJust
	OpSetOrientation
	OpSetFont
	OpSetLineWidth
	OpGSave
	OpGRestore
	OpSetClipRegion
	OpCircle
	OpFCircle
	OpLine
	OpMoveTo
	OpLineTo
	OpFilledRect
	OpPoly
	OpFPoly
	OpDrawText
	OpDrawImage
)

var opcodeNames = map[string]Opcode{
	"setwindow":      OpSetWindow,
	"setcolor":       OpSetColor,
	"setbackground":  OpSetBackground,
	"setjust":        OpSetJust,
	"setorientation": OpSetOrientation,
	"setfont":        OpSetFont,
	"setlwidth":      OpSetLineWidth,
	"gsave":          OpGSave,
	"grestore":       OpGRestore,
	"setclipregion":  OpSetClipRegion,
	"circle":         OpCircle,
	"fcircle":        OpFCircle,
	"line":           OpLine,
	"moveto":         OpMoveTo,
	"lineto":         OpLineTo,
	"filledrect":     OpFilledRect,
	"frect":          OpFilledRect,
	"poly":           OpPoly,
	"fpoly":          OpFPoly,
	"drawtext":       OpDrawText,
	"drawimage":      OpDrawImage,
}

// ParseOpcode maps a command name to its Opcode.
// Names are case sensitive; anything unrecognized yields OpUnknown.
func ParseOpcode(name string) Opcode {
	if op, ok := opcodeNames[name]; ok {
		return op
	}
	return OpUnknown
}

// String returns the canonical command name for the opcode.
func (o Opcode) String() string {
	switch o {
	case OpSetWindow:
		return "setwindow"
	case OpSetColor:
		return "setcolor"
	case OpSetBackground:
		return "setbackground"
	case OpSetJust:
		return "setjust"
	case OpSetOrientation:
		return "setorientation"
	case OpSetFont:
		return "setfont"
	case OpSetLineWidth:
		return "setlwidth"
	case OpGSave:
		return "gsave"
	case OpGRestore:
		return "grestore"
	case OpSetClipRegion:
		return "setclipregion"
	case OpCircle:
		return "circle"
	case OpFCircle:
		return "fcircle"
	case OpLine:
		return "line"
	case OpMoveTo:
		return "moveto"
	case OpLineTo:
		return "lineto"
	case OpFilledRect:
		return "filledrect"
	case OpPoly:
		return "poly"
	case OpFPoly:
		return "fpoly"
	case OpDrawText:
		return "drawtext"
	case OpDrawImage:
		return "drawimage"
	default:
		return "unknown"
	}
}

// Names returns every command name the decoder recognizes, aliases included.
func Names() []string {
	names := make([]string, 0, len(opcodeNames))
	for name := range opcodeNames {
		names = append(names, name)
	}
	return names
}
