package lua

import (
	"errors"
	"testing"

	rt "github.com/arnodel/golua/runtime"
)

func TestHookTypeString(t *testing.T) {
	tests := []struct {
		hookType HookType
		name     string
		luaName  string
	}{
		{HookStartup, "startup", "gbuf_startup"},
		{HookDraw, "draw", "gbuf_draw"},
		{HookResize, "resize", "gbuf_resize"},
		{HookShutdown, "shutdown", "gbuf_shutdown"},
		{HookInvalid, "invalid", "gbuf_invalid"},
		{HookType(99), "unknown", "gbuf_unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.hookType.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.hookType.LuaFunctionName(); got != tt.luaName {
				t.Errorf("LuaFunctionName() = %q, want %q", got, tt.luaName)
			}
		})
	}
}

func TestNewHookManagerWithNilRuntime(t *testing.T) {
	if _, err := NewHookManager(nil); !errors.Is(err, ErrNilRuntime) {
		t.Errorf("expected ErrNilRuntime, got %v", err)
	}
}

func newHookManager(t *testing.T, script string) *HookManager {
	t.Helper()
	runtime := newTestRuntime(t)
	if script != "" {
		if _, err := runtime.RunString("setup", script); err != nil {
			t.Fatalf("failed to define Lua functions: %v", err)
		}
	}
	hm, err := NewHookManager(runtime)
	if err != nil {
		t.Fatalf("failed to create hook manager: %v", err)
	}
	return hm
}

func TestCallHook(t *testing.T) {
	hm := newHookManager(t, `
		function gbuf_resize(w, h)
			return w * h
		end
	`)

	result, err := hm.Call(HookResize, rt.IntValue(4), rt.IntValue(3))
	if err != nil {
		t.Fatalf("Call before registration: %v", err)
	}
	if result != rt.NilValue {
		t.Errorf("unregistered hook returned %v", result)
	}

	hm.AutoRegisterHooks()
	result, err = hm.Call(HookResize, rt.IntValue(4), rt.IntValue(3))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got, ok := rt.ToInt(result); !ok || got != 12 {
		t.Errorf("gbuf_resize(4, 3) = %v, want 12", result)
	}
}

func TestCallHookError(t *testing.T) {
	hm := newHookManager(t, `
		function gbuf_draw()
			error("bad frame")
		end
	`)
	hm.AutoRegisterHooks()

	if _, err := hm.Call(HookDraw); err == nil {
		t.Error("failing hook should return an error")
	}
}

func TestAutoRegisterHooks(t *testing.T) {
	runtime := newTestRuntime(t)
	if _, err := runtime.RunString("setup", `
		function gbuf_startup() end
		function gbuf_draw() end
		gbuf_resize = "not a function"
	`); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	hm, err := NewHookManager(runtime)
	if err != nil {
		t.Fatalf("NewHookManager: %v", err)
	}

	found := hm.AutoRegisterHooks()
	if len(found) != 2 || found[0] != HookStartup || found[1] != HookDraw {
		t.Fatalf("found %v, want [startup draw]", found)
	}
	if hm.IsRegistered(HookResize) || hm.IsRegistered(HookShutdown) {
		t.Error("resize and shutdown should stay unregistered")
	}

	// A rescan after the script drops a hook forgets it.
	if _, err := runtime.RunString("drop", "gbuf_draw = nil"); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	hm.AutoRegisterHooks()
	if hm.IsRegistered(HookDraw) || !hm.IsRegistered(HookStartup) {
		t.Error("rescan did not track the script's hooks")
	}
}
