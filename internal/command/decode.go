package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Envelope is one datapoint delivered by a feed: the datapoint name and
// its payload. Data is a JSON string, raw JSON bytes or a structured value.
type Envelope struct {
	Name string
	Data any
}

// Frame is the decoded content of one gbuf payload.
type Frame struct {
	Name     string
	Commands []Command
	// Skipped counts entries whose cmd or args is missing, null, false,
	// zero or empty.
	Skipped int
}

// TextCommands returns how many drawtext commands the frame holds.
func (f *Frame) TextCommands() int {
	n := 0
	for _, c := range f.Commands {
		if c.Op == OpDrawText {
			n++
		}
	}
	return n
}

// DecodeErrorKind classifies decode failures.
type DecodeErrorKind int

const (
	// KindParse means the payload was not valid JSON or could not be decompressed.
	KindParse DecodeErrorKind = iota
	// KindFormat means the payload was neither text nor a structured value.
	KindFormat
	// KindNoCommands means the payload parsed but has no commands array.
	KindNoCommands
)

// String returns the kind name.
func (k DecodeErrorKind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindFormat:
		return "format"
	case KindNoCommands:
		return "no_commands"
	default:
		return "unknown"
	}
}

// DecodeError reports a payload that could not be turned into commands.
// Its message is suitable for display as a render status line.
type DecodeError struct {
	Kind DecodeErrorKind
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	switch e.Kind {
	case KindParse:
		if e.Err != nil {
			return "Parse error: " + e.Err.Error()
		}
		return "Parse error"
	case KindFormat:
		return "Unexpected data format"
	default:
		return "No commands found in gbuf data"
	}
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// DefaultMaxPayloadSize bounds the size of a decompressed payload.
const DefaultMaxPayloadSize = 64 << 20

// Decoder turns envelopes into frames.
// The zero value is ready to use with DefaultMaxPayloadSize.
type Decoder struct {
	// MaxPayloadSize caps decompressed payloads. Zero means DefaultMaxPayloadSize.
	MaxPayloadSize int64
}

var defaultDecoder Decoder

// Decode decodes env with the default Decoder.
func Decode(env Envelope) (*Frame, error) {
	return defaultDecoder.Decode(env)
}

// DecodeBytes decodes a raw payload with the default Decoder.
func DecodeBytes(data []byte) (*Frame, error) {
	return defaultDecoder.DecodeBytes(data)
}

// Decode decodes the payload carried by env.
func (d *Decoder) Decode(env Envelope) (*Frame, error) {
	var (
		frame *Frame
		err   error
	)
	switch v := env.Data.(type) {
	case string:
		frame, err = d.decodeString(v)
	case []byte:
		frame, err = d.DecodeBytes(v)
	case json.RawMessage:
		frame, err = d.DecodeBytes(v)
	case map[string]any:
		frame, err = decodeStructured(v)
	case *Frame:
		if v == nil {
			return nil, &DecodeError{Kind: KindFormat}
		}
		cp := *v
		frame = &cp
	default:
		return nil, &DecodeError{Kind: KindFormat, Err: fmt.Errorf("payload type %T", env.Data)}
	}
	if err != nil {
		return nil, err
	}
	frame.Name = env.Name
	return frame, nil
}

// DecodeBytes decodes a raw JSON payload, decompressing it first when it
// starts with a zstd or gzip header.
func (d *Decoder) DecodeBytes(data []byte) (*Frame, error) {
	data, err := d.decompress(data)
	if err != nil {
		return nil, &DecodeError{Kind: KindParse, Err: err}
	}
	return parseFrame(data)
}

func (d *Decoder) decodeString(s string) (*Frame, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed != "" && trimmed[0] != '{' && trimmed[0] != '[' {
		if raw, ok := unwrapBase64(trimmed); ok {
			return d.DecodeBytes(raw)
		}
	}
	return parseFrame([]byte(s))
}

func (d *Decoder) maxPayload() int64 {
	if d.MaxPayloadSize > 0 {
		return d.MaxPayloadSize
	}
	return DefaultMaxPayloadSize
}

// decodeStructured handles payloads that arrive already parsed, as the
// dserv client does for object-valued datapoints.
func decodeStructured(v map[string]any) (*Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &DecodeError{Kind: KindFormat, Err: err}
	}
	return parseFrame(data)
}

type wireCommand struct {
	Cmd       json.RawMessage `json:"cmd"`
	Args      json.RawMessage `json:"args"`
	ImageData json.RawMessage `json:"image_data"`
}

// present reports whether a raw field would count as set by the
// producer: anything but absent, null, false, 0 or "".
func present(raw json.RawMessage) bool {
	var a Arg
	if len(raw) == 0 || a.UnmarshalJSON(raw) != nil {
		return false
	}
	return a.Truthy()
}

// commandName returns cmd as a string. A non-string cmd keeps its JSON
// text and so decodes as an unknown opcode.
func commandName(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// commandArgs decodes args. An args value that is not an array counts as
// present but carries no arguments.
func commandArgs(raw json.RawMessage) []Arg {
	var args []Arg
	if err := json.Unmarshal(raw, &args); err != nil || args == nil {
		return []Arg{}
	}
	return args
}

func parseFrame(data []byte) (*Frame, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		if !json.Valid(data) {
			return nil, &DecodeError{Kind: KindParse, Err: err}
		}
		return nil, &DecodeError{Kind: KindNoCommands}
	}

	raw, ok := top["commands"]
	if !ok {
		return nil, &DecodeError{Kind: KindNoCommands}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, &DecodeError{Kind: KindNoCommands}
	}

	frame := &Frame{Commands: make([]Command, 0, len(entries))}
	for _, entry := range entries {
		var wc wireCommand
		if err := json.Unmarshal(entry, &wc); err != nil || !present(wc.Cmd) || !present(wc.Args) {
			frame.Skipped++
			continue
		}
		name := commandName(wc.Cmd)
		cmd := Command{
			Op:   ParseOpcode(name),
			Name: name,
			Args: commandArgs(wc.Args),
		}
		if len(wc.ImageData) > 0 {
			cmd.Image = parseImageData(wc.ImageData)
		}
		frame.Commands = append(frame.Commands, cmd)
	}
	return frame, nil
}

// parseImageData accepts width, height and depth as numbers or numeric
// strings. A malformed block is dropped rather than failing the command.
func parseImageData(raw json.RawMessage) *ImageData {
	var loose struct {
		Width  Arg    `json:"width"`
		Height Arg    `json:"height"`
		Depth  Arg    `json:"depth"`
		Data   string `json:"data"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil
	}
	toInt := func(a Arg) int {
		v, ok := a.Float()
		if !ok {
			return 0
		}
		return int(v)
	}
	img := &ImageData{
		Width:  toInt(loose.Width),
		Height: toInt(loose.Height),
		Depth:  toInt(loose.Depth),
		Data:   loose.Data,
	}
	if img.Width <= 0 || img.Height <= 0 || img.Data == "" {
		return nil
	}
	if img.Depth == 0 {
		img.Depth = 3
	}
	return img
}

// Encode renders commands back into the JSON frame format.
func Encode(cmds []Command) ([]byte, error) {
	type out struct {
		Cmd       string     `json:"cmd"`
		Args      []Arg      `json:"args"`
		ImageData *ImageData `json:"image_data,omitempty"`
	}
	list := make([]out, len(cmds))
	for i, c := range cmds {
		args := c.Args
		if args == nil {
			args = []Arg{}
		}
		list[i] = out{Cmd: c.Name, Args: args, ImageData: c.Image}
	}
	return json.Marshal(struct {
		Commands []out `json:"commands"`
	}{list})
}

