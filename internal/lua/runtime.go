// Package lua runs gbuf drawing scripts in a sandboxed Golua runtime.
// Scripts build frames by calling gbuf.<opcode>(...) functions; the
// commands they emit are collected by a Recorder.
package lua

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/arnodel/golua/lib"
	rt "github.com/arnodel/golua/runtime"
)

// RuntimeConfig bounds a script. Zero limits are unlimited.
type RuntimeConfig struct {
	// CPULimit caps the instructions of one body run or hook call.
	CPULimit uint64
	// MemoryLimit caps the bytes one body run or hook call may allocate.
	MemoryLimit uint64
	// Stdout also receives print output. Nil keeps it in Output only.
	Stdout io.Writer
}

// DefaultConfig allows ten million instructions and 50 MiB per call.
func DefaultConfig() RuntimeConfig {
	return RuntimeConfig{
		CPULimit:    10_000_000,
		MemoryLimit: 50 << 20,
		Stdout:      os.Stdout,
	}
}

// Runtime is one script's Lua state: the standard library, the gbuf
// table and the hook table. All entry points serialize on mu.
type Runtime struct {
	mu      sync.RWMutex
	cfg     RuntimeConfig
	state   *rt.Runtime
	printed bytes.Buffer
	release func()

	module *GbufModule
	hooks  *HookManager
}

// New builds a runtime with the gbuf table installed. Commands emitted
// by the script collect in Module().Recorder().
func New(cfg RuntimeConfig) (*Runtime, error) {
	r := &Runtime{cfg: cfg}
	var out io.Writer = &r.printed
	if cfg.Stdout != nil {
		out = io.MultiWriter(cfg.Stdout, &r.printed)
	}
	r.state = rt.New(out)
	r.release = lib.LoadAll(r.state)

	module, err := NewGbufModule(r, &Recorder{})
	if err != nil {
		r.Close()
		return nil, err
	}
	hooks, err := NewHookManager(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.module, r.hooks = module, hooks
	return r, nil
}

// Module returns the gbuf table bound to this runtime.
func (r *Runtime) Module() *GbufModule { return r.module }

// Hooks returns the hook table bound to this runtime.
func (r *Runtime) Hooks() *HookManager { return r.hooks }

// Compile loads src as a chunk named name without running it.
func (r *Runtime) Compile(name string, src []byte) (*rt.Closure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk, err := r.state.CompileAndLoadLuaChunk(name, src, rt.TableValue(r.state.GlobalEnv()))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return chunk, nil
}

// LoadScript reads and compiles path from fsys, or from disk when fsys
// is nil.
func (r *Runtime) LoadScript(fsys fs.FS, path string) (*rt.Closure, error) {
	var (
		src []byte
		err error
	)
	if fsys != nil {
		src, err = fs.ReadFile(fsys, path)
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return r.Compile(path, src)
}

// Start runs the script body once and registers the hooks it defined.
func (r *Runtime) Start(body *rt.Closure) ([]HookType, error) {
	if _, err := r.Run(body); err != nil {
		return nil, err
	}
	return r.hooks.AutoRegisterHooks(), nil
}

// Run executes a compiled chunk under the configured limits. Hitting a
// limit returns an error wrapping ErrResourceLimit.
func (r *Runtime) Run(chunk *rt.Closure) (rt.Value, error) {
	return r.call("run", rt.FunctionValue(chunk))
}

// RunString compiles and runs code.
func (r *Runtime) RunString(name, code string) (rt.Value, error) {
	chunk, err := r.Compile(name, []byte(code))
	if err != nil {
		return rt.NilValue, err
	}
	return r.Run(chunk)
}

// Call invokes the global function name under the configured limits.
func (r *Runtime) Call(name string, args ...rt.Value) (rt.Value, error) {
	fn := r.Global(name)
	if fn == rt.NilValue {
		return rt.NilValue, fmt.Errorf("function %s not found", name)
	}
	return r.call(name, fn, args...)
}

func (r *Runtime) call(what string, fn rt.Value, args ...rt.Value) (result rt.Value, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if p := recover(); p != nil {
			result, err = rt.NilValue, fmt.Errorf("%w: %v", ErrResourceLimit, p)
		}
	}()

	r.state.PushContext(rt.RuntimeContextDef{
		HardLimits: rt.RuntimeResources{Cpu: r.cfg.CPULimit, Memory: r.cfg.MemoryLimit},
	})
	defer r.state.PopContext()

	result, err = rt.Call1(r.state.MainThread(), fn, args...)
	if err != nil {
		return rt.NilValue, fmt.Errorf("%s: %w", what, err)
	}
	return result, nil
}

// Global returns the global name, or rt.NilValue.
func (r *Runtime) Global(name string) rt.Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.GlobalEnv().Get(rt.StringValue(name))
}

// SetGlobal assigns the global name.
func (r *Runtime) SetGlobal(name string, v rt.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.GlobalEnv().Set(rt.StringValue(name), v)
}

// Output returns everything printed since the last TakeOutput.
func (r *Runtime) Output() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.printed.String()
}

// TakeOutput returns the printed text and empties the buffer.
func (r *Runtime) TakeOutput() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.printed.String()
	r.printed.Reset()
	return s
}

// Config returns the limits the runtime was built with.
func (r *Runtime) Config() RuntimeConfig { return r.cfg }

// Close releases the Lua state. It is safe to call more than once.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.release != nil {
		r.release()
		r.release = nil
	}
	return nil
}
