package lua

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"

	rt "github.com/arnodel/golua/runtime"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	runtime, err := New(RuntimeConfig{CPULimit: 1_000_000, MemoryLimit: 10 << 20, Stdout: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { runtime.Close() })
	return runtime
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.CPULimit != 10_000_000 {
		t.Errorf("CPULimit = %d", cfg.CPULimit)
	}
	if cfg.MemoryLimit != 50<<20 {
		t.Errorf("MemoryLimit = %d", cfg.MemoryLimit)
	}
	if cfg.Stdout != os.Stdout {
		t.Error("Stdout should default to os.Stdout")
	}
}

func TestNewInstallsGbufTable(t *testing.T) {
	runtime := newTestRuntime(t)

	if runtime.Module() == nil || runtime.Hooks() == nil {
		t.Fatal("New should bind the gbuf module and hook table")
	}
	if _, err := runtime.RunString("frame", "gbuf.frect(0, 0, 4, 4)"); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	cmds := runtime.Module().Recorder().Take()
	if len(cmds) != 1 || cmds[0].Name != "frect" {
		t.Errorf("recorded %+v, want one frect", cmds)
	}
}

func TestTakeOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	runtime, err := New(RuntimeConfig{Stdout: buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer runtime.Close()

	if _, err := runtime.RunString("print", `print("frame ready")`); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if buf.String() != "frame ready\n" {
		t.Errorf("stdout = %q", buf.String())
	}
	if got := runtime.Output(); got != "frame ready\n" {
		t.Errorf("Output() = %q", got)
	}
	if got := runtime.TakeOutput(); got != "frame ready\n" {
		t.Errorf("TakeOutput() = %q", got)
	}
	if got := runtime.Output(); got != "" {
		t.Errorf("Output() after take = %q", got)
	}
}

func TestCompile(t *testing.T) {
	runtime := newTestRuntime(t)

	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"return value", "return 42", false},
		{"hook definition", "function gbuf_draw() end", false},
		{"empty", "", false},
		{"syntax error", "gbuf.frect(0, 0,", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, err := runtime.Compile(tt.name, []byte(tt.code))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Compile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && chunk == nil {
				t.Error("Compile returned a nil chunk")
			}
		})
	}
}

func TestRunString(t *testing.T) {
	runtime := newTestRuntime(t)

	tests := []struct {
		name    string
		code    string
		want    string
		wantErr bool
	}{
		{"integer", "return 6 * 7", "42", false},
		{"string", `return "gbuf"`, "gbuf", false},
		{"command count", "gbuf.gsave(); gbuf.grestore(); return gbuf.count()", "2", false},
		{"runtime error", `error("boom")`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := runtime.RunString(tt.name, tt.code)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RunString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got, ok := result.TryString()
			if !ok {
				n, _ := result.TryInt()
				got = strconv.FormatInt(n, 10)
			}
			if got != tt.want {
				t.Errorf("result = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadScript(t *testing.T) {
	dir := t.TempDir()
	onDisk := filepath.Join(dir, "frame.lua")
	if err := os.WriteFile(onDisk, []byte(`return "disk"`), 0o644); err != nil {
		t.Fatal(err)
	}
	embedded := fstest.MapFS{
		"scripts/clock.lua": &fstest.MapFile{Data: []byte(`return "embedded"`)},
	}

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		path    string
		want    string
		wantErr bool
	}{
		{"disk", nil, onDisk, "disk", false},
		{"embedded", embedded, "scripts/clock.lua", "embedded", false},
		{"missing on disk", nil, filepath.Join(dir, "none.lua"), "", true},
		{"missing embedded", embedded, "scripts/none.lua", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime := newTestRuntime(t)
			var chunk *rt.Closure
			var err error
			if tt.fsys != nil {
				chunk, err = runtime.LoadScript(tt.fsys, tt.path)
			} else {
				chunk, err = runtime.LoadScript(nil, tt.path)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadScript() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			result, err := runtime.Run(chunk)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if s, _ := result.TryString(); s != tt.want {
				t.Errorf("result = %q, want %q", s, tt.want)
			}
		})
	}
}

func TestStartRegistersHooks(t *testing.T) {
	runtime := newTestRuntime(t)

	body, err := runtime.Compile("script", []byte(`
		gbuf.setcolor(1)
		function gbuf_draw() gbuf.frect(0, 0, 1, 1) end
		function gbuf_resize(w, h) end
	`))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	found, err := runtime.Start(body)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("found hooks %v, want draw and resize", found)
	}
	if !runtime.Hooks().IsRegistered(HookDraw) || runtime.Hooks().IsRegistered(HookStartup) {
		t.Error("hook registration does not match the script")
	}
	if n := runtime.Module().Recorder().Len(); n != 1 {
		t.Errorf("body recorded %d commands, want 1", n)
	}

	bad, err := runtime.Compile("bad", []byte(`error("no")`))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := runtime.Start(bad); err == nil {
		t.Error("Start should fail when the body raises")
	}
}

func TestGlobals(t *testing.T) {
	runtime := newTestRuntime(t)

	runtime.SetGlobal("width", rt.IntValue(640))
	if n, ok := runtime.Global("width").TryInt(); !ok || n != 640 {
		t.Errorf("Global(width) = %v", runtime.Global("width"))
	}
	result, err := runtime.RunString("read", "return width / 2")
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if f, ok := result.TryFloat(); !ok || f != 320 {
		t.Errorf("width / 2 = %v", result)
	}
	if runtime.Global("undefined") != rt.NilValue {
		t.Error("undefined global should be nil")
	}
}

func TestCall(t *testing.T) {
	runtime := newTestRuntime(t)

	if _, err := runtime.RunString("define", "function area(w, h) return w * h end"); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	result, err := runtime.Call("area", rt.IntValue(4), rt.IntValue(5))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if n, _ := result.TryInt(); n != 20 {
		t.Errorf("area(4, 5) = %v", result)
	}
	if _, err := runtime.Call("missing"); err == nil {
		t.Error("calling a missing function should fail")
	}
}

func TestConfig(t *testing.T) {
	if got := newTestRuntime(t).Config().CPULimit; got != 1_000_000 {
		t.Errorf("CPULimit = %d", got)
	}
}

func TestCloseTwice(t *testing.T) {
	runtime, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := runtime.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := runtime.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestResourceLimits(t *testing.T) {
	runtime, err := New(RuntimeConfig{CPULimit: 1000, Stdout: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer runtime.Close()

	_, err = runtime.RunString("spin", "local n = 0; while true do n = n + 1 end")
	if err == nil {
		t.Fatal("runaway script should fail")
	}
	if !errors.Is(err, ErrResourceLimit) && !strings.Contains(err.Error(), "limit") {
		t.Errorf("error = %v, want resource limit", err)
	}

	// The runtime stays usable after a limit is hit.
	result, err := runtime.RunString("after", "return 1")
	if err != nil {
		t.Fatalf("RunString after limit: %v", err)
	}
	if n, _ := result.TryInt(); n != 1 {
		t.Errorf("result = %v", result)
	}
}
