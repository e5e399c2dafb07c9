package lua

import (
	"fmt"
	"sync"

	rt "github.com/arnodel/golua/runtime"
)

// HookType identifies a script lifecycle hook.
type HookType int

const (
	HookInvalid HookType = iota

	// HookStartup is called once after the script body has run.
	HookStartup

	// HookDraw is called for every frame. The commands it emits form the frame.
	HookDraw

	// HookResize is called with the new width and height when the canvas changes size.
	HookResize

	// HookShutdown is called once before the script is unloaded.
	HookShutdown
)

var hookNames = map[HookType]string{
	HookInvalid:  "invalid",
	HookStartup:  "startup",
	HookDraw:     "draw",
	HookResize:   "resize",
	HookShutdown: "shutdown",
}

func (h HookType) String() string {
	if name, ok := hookNames[h]; ok {
		return name
	}
	return "unknown"
}

const hookPrefix = "gbuf_"

// LuaFunctionName is the global a script defines to handle h.
func (h HookType) LuaFunctionName() string {
	return hookPrefix + h.String()
}

// HookManager tracks which hooks a script defines and calls them.
type HookManager struct {
	runtime *Runtime
	mu      sync.RWMutex
	defined map[HookType]bool
}

// NewHookManager returns a HookManager with nothing registered.
func NewHookManager(runtime *Runtime) (*HookManager, error) {
	if runtime == nil {
		return nil, ErrNilRuntime
	}
	return &HookManager{runtime: runtime, defined: make(map[HookType]bool)}, nil
}

// AutoRegisterHooks registers every gbuf_<hook> function the script
// defined, replacing earlier registrations, and returns them in hook
// order.
func (hm *HookManager) AutoRegisterHooks() []HookType {
	var found []HookType
	for _, h := range []HookType{HookStartup, HookDraw, HookResize, HookShutdown} {
		if hm.runtime.Global(h.LuaFunctionName()).Type() == rt.FunctionType {
			found = append(found, h)
		}
	}

	defined := make(map[HookType]bool, len(found))
	for _, h := range found {
		defined[h] = true
	}
	hm.mu.Lock()
	hm.defined = defined
	hm.mu.Unlock()
	return found
}

// IsRegistered reports whether the script defines h.
func (hm *HookManager) IsRegistered(h HookType) bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	return hm.defined[h]
}

// Call runs hook h with args. An unregistered hook is a no-op returning
// rt.NilValue.
func (hm *HookManager) Call(h HookType, args ...rt.Value) (rt.Value, error) {
	if !hm.IsRegistered(h) {
		return rt.NilValue, nil
	}
	result, err := hm.runtime.Call(h.LuaFunctionName(), args...)
	if err != nil {
		return rt.NilValue, fmt.Errorf("hook %s: %w", h, err)
	}
	return result, nil
}
