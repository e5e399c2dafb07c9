package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// argKind tags the value held by an Arg.
type argKind uint8

const (
	argNull argKind = iota
	argNumber
	argString
	argBool
	argRaw
)

// Arg is a single command argument: a number, a string or a boolean.
// Objects and arrays are kept as raw JSON; they are not numbers, so any
// handler that needs one fails on them.
type Arg struct {
	kind argKind
	num  float64
	str  string
}

// Number returns a numeric argument.
func Number(v float64) Arg { return Arg{kind: argNumber, num: v} }

// String returns a string argument.
func String(s string) Arg { return Arg{kind: argString, str: s} }

// Bool returns a boolean argument.
func Bool(b bool) Arg {
	a := Arg{kind: argBool}
	if b {
		a.num = 1
	}
	return a
}

// IsNumber reports whether the argument was decoded from a JSON number.
func (a Arg) IsNumber() bool { return a.kind == argNumber }

// IsString reports whether the argument was decoded from a JSON string.
func (a Arg) IsString() bool { return a.kind == argString }

// IsRaw reports whether the argument is a JSON object or array.
func (a Arg) IsRaw() bool { return a.kind == argRaw }

// Float returns the numeric value of the argument. Strings holding a
// number are accepted since some producers quote every value.
func (a Arg) Float() (float64, bool) {
	switch a.kind {
	case argNumber, argBool:
		return a.num, true
	case argString:
		v, err := strconv.ParseFloat(strings.TrimSpace(a.str), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}

// Truthy follows the producer's notion of truth: non-zero numbers,
// true and non-empty strings.
func (a Arg) Truthy() bool {
	switch a.kind {
	case argNumber, argBool:
		return a.num != 0
	case argString:
		return a.str != ""
	case argRaw:
		return true
	default:
		return false
	}
}

// Text returns the argument rendered as text.
func (a Arg) Text() string {
	switch a.kind {
	case argString, argRaw:
		return a.str
	case argNumber:
		return strconv.FormatFloat(a.num, 'g', -1, 64)
	case argBool:
		return strconv.FormatBool(a.num != 0)
	default:
		return ""
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Arg) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*a = Arg{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = String(s)
	case bytes.Equal(data, []byte("true")):
		*a = Bool(true)
	case bytes.Equal(data, []byte("false")):
		*a = Bool(false)
	case data[0] == '{' || data[0] == '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*a = Arg{kind: argRaw, str: buf.String()}
	default:
		v, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid argument %s", data)
		}
		*a = Number(v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Arg) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case argNumber:
		return json.Marshal(a.num)
	case argString:
		return json.Marshal(a.str)
	case argBool:
		return json.Marshal(a.num != 0)
	case argRaw:
		return []byte(a.str), nil
	default:
		return []byte("null"), nil
	}
}

// ImageData carries the raw pixels attached to a drawimage command.
type ImageData struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	// Depth is the number of bytes per pixel: 1 gray, 3 RGB, 4 RGBA.
	Depth int `json:"depth"`
	// Data is base64 encoded, row-major, top row first.
	Data string `json:"data"`
}

// Command is one decoded drawing instruction. It is not modified after decoding.
type Command struct {
	Op    Opcode
	Name  string
	Args  []Arg
	Image *ImageData
}

// New builds a command from a name and arguments.
func New(name string, args ...Arg) Command {
	return Command{Op: ParseOpcode(name), Name: name, Args: args}
}

// Float returns argument i as a number.
func (c Command) Float(i int) (float64, error) {
	if i >= len(c.Args) {
		return 0, fmt.Errorf("%s: missing argument %d", c.Name, i+1)
	}
	v, ok := c.Args[i].Float()
	if !ok {
		return 0, fmt.Errorf("%s: argument %d is not a number: %q", c.Name, i+1, c.Args[i].Text())
	}
	return v, nil
}

// Floats returns the first n arguments as numbers.
func (c Command) Floats(n int) ([]float64, error) {
	vals := make([]float64, n)
	for i := range vals {
		v, err := c.Float(i)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// Text returns argument i as text, or "" when it is absent.
func (c Command) Text(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return c.Args[i].Text()
}

// Arg returns argument i and whether it is present.
func (c Command) Arg(i int) (Arg, bool) {
	if i >= len(c.Args) {
		return Arg{}, false
	}
	return c.Args[i], true
}

// String formats the command as a gbuf text dump line.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	for _, a := range c.Args {
		b.WriteByte(' ')
		if a.IsString() && strings.ContainsAny(a.str, " \t") {
			b.WriteString(strconv.Quote(a.str))
			continue
		}
		b.WriteString(a.Text())
	}
	return b.String()
}
