package lua

import (
	"fmt"
	"sync"

	rt "github.com/arnodel/golua/runtime"

	"github.com/opd-ai/go-gbuf/internal/command"
)

// Recorder accumulates the commands a script emits.
type Recorder struct {
	mu   sync.Mutex
	cmds []command.Command
}

// Add appends c.
func (r *Recorder) Add(c command.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, c)
}

// Len returns the number of recorded commands.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cmds)
}

// Take returns the recorded commands and starts a new list.
func (r *Recorder) Take() []command.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmds := r.cmds
	r.cmds = nil
	return cmds
}

// Reset drops the recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = nil
}

// GbufModule exposes the command set to Lua as the global gbuf table:
// one function per opcode, plus emit, clear and count, and a window
// table describing the canvas.
type GbufModule struct {
	runtime  *Runtime
	recorder *Recorder
}

// NewGbufModule registers the gbuf table in runtime. Commands go to rec.
func NewGbufModule(runtime *Runtime, rec *Recorder) (*GbufModule, error) {
	if runtime == nil {
		return nil, ErrNilRuntime
	}
	if rec == nil {
		rec = &Recorder{}
	}
	gm := &GbufModule{runtime: runtime, recorder: rec}
	gm.registerModule()
	return gm, nil
}

// Recorder returns the recorder commands are written to.
func (gm *GbufModule) Recorder() *Recorder {
	return gm.recorder
}

// UpdateWindowInfo sets gbuf.window to the current canvas size.
func (gm *GbufModule) UpdateWindowInfo(width, height int) {
	gbufVal := gm.runtime.Global("gbuf")
	gbufTable, ok := gbufVal.TryTable()
	if !ok {
		return
	}
	windowTable := rt.NewTable()
	windowTable.Set(rt.StringValue("width"), rt.IntValue(int64(width)))
	windowTable.Set(rt.StringValue("height"), rt.IntValue(int64(height)))

	gm.runtime.mu.Lock()
	defer gm.runtime.mu.Unlock()
	gbufTable.Set(rt.StringValue("window"), rt.TableValue(windowTable))
}

func (gm *GbufModule) registerModule() {
	table := rt.NewTable()

	for _, name := range command.Names() {
		if name == "drawimage" {
			continue
		}
		gm.setTableGoFunction(table, name, gm.opcodeFunc(name), 0, true)
	}
	gm.setTableGoFunction(table, "drawimage", gm.drawImage, 5, true)
	gm.setTableGoFunction(table, "emit", gm.emit, 1, true)
	gm.setTableGoFunction(table, "clear", gm.clear, 0, false)
	gm.setTableGoFunction(table, "count", gm.count, 0, false)

	table.Set(rt.StringValue("window"), rt.NilValue)
	gm.runtime.SetGlobal("gbuf", rt.TableValue(table))
}

func (gm *GbufModule) setTableGoFunction(table *rt.Table, name string, fn rt.GoFunctionFunc, nArgs int, variadic bool) {
	goFunc := rt.NewGoFunction(fn, name, nArgs, variadic)
	rt.SolemnlyDeclareCompliance(rt.ComplyMemSafe|rt.ComplyCpuSafe, goFunc)
	table.Set(rt.StringValue(name), rt.FunctionValue(goFunc))
}

// opcodeFunc returns a Lua function that records a name command with
// whatever arguments it is called with.
func (gm *GbufModule) opcodeFunc(name string) rt.GoFunctionFunc {
	return func(t *rt.Thread, c *rt.GoCont) (rt.Cont, error) {
		args, err := toArgs(getAllArgs(c))
		if err != nil {
			return nil, fmt.Errorf("gbuf.%s: %w", name, err)
		}
		gm.recorder.Add(command.New(name, args...))
		return c.Next(), nil
	}
}

// emit handles gbuf.emit(name, ...), which records any command name,
// including ones the renderer does not know.
func (gm *GbufModule) emit(t *rt.Thread, c *rt.GoCont) (rt.Cont, error) {
	all := getAllArgs(c)
	name, err := getStringArg(all, 0)
	if err != nil {
		return nil, fmt.Errorf("gbuf.emit: %w", err)
	}
	args, err := toArgs(all[1:])
	if err != nil {
		return nil, fmt.Errorf("gbuf.emit: %w", err)
	}
	gm.recorder.Add(command.New(name, args...))
	return c.Next(), nil
}

// drawImage handles gbuf.drawimage(x1, y1, x2, y2, id [, image]). The
// optional image table has width, height, depth and base64 data fields.
func (gm *GbufModule) drawImage(t *rt.Thread, c *rt.GoCont) (rt.Cont, error) {
	all := getAllArgs(c)
	n := len(all)
	var imgTable *rt.Table
	if n == 6 {
		tbl, ok := all[5].TryTable()
		if !ok {
			return nil, fmt.Errorf("gbuf.drawimage: argument 5 is not a table")
		}
		imgTable = tbl
		all = all[:5]
	}
	args, err := toArgs(all)
	if err != nil {
		return nil, fmt.Errorf("gbuf.drawimage: %w", err)
	}
	cmd := command.New("drawimage", args...)
	if imgTable != nil {
		cmd.Image = &command.ImageData{
			Width:  int(tableNumber(imgTable, "width")),
			Height: int(tableNumber(imgTable, "height")),
			Depth:  int(tableNumber(imgTable, "depth")),
		}
		if s, ok := imgTable.Get(rt.StringValue("data")).TryString(); ok {
			cmd.Image.Data = s
		}
		if cmd.Image.Depth == 0 {
			cmd.Image.Depth = 3
		}
	}
	gm.recorder.Add(cmd)
	return c.Next(), nil
}

func (gm *GbufModule) clear(t *rt.Thread, c *rt.GoCont) (rt.Cont, error) {
	gm.recorder.Reset()
	return c.Next(), nil
}

func (gm *GbufModule) count(t *rt.Thread, c *rt.GoCont) (rt.Cont, error) {
	return c.PushingNext1(t.Runtime, rt.IntValue(int64(gm.recorder.Len()))), nil
}

// getAllArgs combines Args() and Etc() to get all arguments including varargs
func getAllArgs(c *rt.GoCont) []rt.Value {
	return append(c.Args(), c.Etc()...)
}

// getStringArg gets a string argument from the combined args slice
func getStringArg(args []rt.Value, idx int) (string, error) {
	if idx >= len(args) {
		return "", fmt.Errorf("argument %d out of range (have %d)", idx, len(args))
	}
	if s, ok := args[idx].TryString(); ok {
		return s, nil
	}
	return "", fmt.Errorf("argument %d is not a string", idx)
}

// toArgs converts Lua values to command arguments. Nil becomes false so
// that positions are preserved.
func toArgs(vals []rt.Value) ([]command.Arg, error) {
	args := make([]command.Arg, 0, len(vals))
	for i, v := range vals {
		switch v.Type() {
		case rt.IntType:
			n, _ := v.TryInt()
			args = append(args, command.Number(float64(n)))
		case rt.FloatType:
			f, _ := v.TryFloat()
			args = append(args, command.Number(f))
		case rt.StringType:
			s, _ := v.TryString()
			args = append(args, command.String(s))
		case rt.BoolType:
			b, _ := v.TryBool()
			args = append(args, command.Bool(b))
		case rt.NilType:
			args = append(args, command.Bool(false))
		default:
			return nil, fmt.Errorf("argument %d: %w: %s", i+1, ErrBadArgument, v.TypeName())
		}
	}
	return args, nil
}

// tableNumber reads a numeric field, returning 0 when absent.
func tableNumber(t *rt.Table, key string) float64 {
	v := t.Get(rt.StringValue(key))
	if n, ok := v.TryInt(); ok {
		return float64(n)
	}
	if f, ok := v.TryFloat(); ok {
		return f
	}
	return 0
}
