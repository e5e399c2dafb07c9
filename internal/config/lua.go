package config

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/arnodel/golua/lib"
	rt "github.com/arnodel/golua/runtime"

	"github.com/opd-ai/go-gbuf/internal/render"
)

// LuaConfigParser parses Lua configuration files. It runs the file in a
// Golua runtime and reads the gbuf.config table it leaves behind.
type LuaConfigParser struct {
	runtime *rt.Runtime
	cleanup func()
	mu      sync.Mutex
}

// NewLuaConfigParser creates a new LuaConfigParser with a fresh Lua runtime.
func NewLuaConfigParser() (*LuaConfigParser, error) {
	return NewLuaConfigParserWithOutput(io.Discard)
}

// NewLuaConfigParserWithOutput creates a LuaConfigParser with custom output.
func NewLuaConfigParserWithOutput(stdout io.Writer) (*LuaConfigParser, error) {
	if stdout == nil {
		stdout = os.Stdout
	}

	runtime := rt.New(stdout)
	cleanup := lib.LoadAll(runtime)

	return &LuaConfigParser{
		runtime: runtime,
		cleanup: cleanup,
	}, nil
}

// Parse parses a Lua configuration from content bytes.
// It executes the Lua code and extracts configuration from gbuf.config.
// A script that exceeds the CPU or memory limit fails with an error.
func (p *LuaConfigParser) Parse(content []byte) (cfg *Config, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			cfg, err = nil, fmt.Errorf("failed to execute Lua configuration: %v", r)
		}
	}()

	p.initGbufGlobal()

	closure, err := p.runtime.CompileAndLoadLuaChunk(
		"config",
		content,
		rt.TableValue(p.runtime.GlobalEnv()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile Lua configuration: %w", err)
	}

	// Execute with resource limits
	ctx := rt.RuntimeContextDef{
		HardLimits: rt.RuntimeResources{
			Cpu:    10_000_000,
			Memory: 50 * 1024 * 1024, // 50 MB
		},
	}
	p.runtime.PushContext(ctx)
	defer p.runtime.PopContext()

	thread := p.runtime.MainThread()
	_, err = rt.Call1(thread, rt.FunctionValue(closure))
	if err != nil {
		return nil, fmt.Errorf("failed to execute Lua configuration: %w", err)
	}

	return p.extractConfig()
}

// initGbufGlobal resets the gbuf global table before each parse.
func (p *LuaConfigParser) initGbufGlobal() {
	gbufTable := rt.NewTable()
	gbufTable.Set(rt.StringValue("config"), rt.TableValue(rt.NewTable()))
	p.runtime.GlobalEnv().Set(rt.StringValue("gbuf"), rt.TableValue(gbufTable))
}

// extractConfig extracts configuration values from the gbuf global table.
func (p *LuaConfigParser) extractConfig() (*Config, error) {
	cfg := DefaultConfig()

	gbufVal := p.runtime.GlobalEnv().Get(rt.StringValue("gbuf"))
	if gbufVal == rt.NilValue {
		return &cfg, nil
	}

	gbufTable, ok := gbufVal.TryTable()
	if !ok {
		return nil, fmt.Errorf("gbuf is not a table")
	}

	configVal := gbufTable.Get(rt.StringValue("config"))
	if configTable, ok := configVal.TryTable(); ok {
		if err := p.extractConfigTable(&cfg, configTable); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// extractConfigTable extracts configuration values from the gbuf.config table.
func (p *LuaConfigParser) extractConfigTable(cfg *Config, table *rt.Table) error {
	// Window
	if val := getTableInt(table, "width"); val != nil {
		cfg.Window.Width = *val
	}
	if val := getTableInt(table, "height"); val != nil {
		cfg.Window.Height = *val
	}
	if val := getTableString(table, "title"); val != nil {
		cfg.Window.Title = *val
	}
	if val := getTableInt(table, "fps"); val != nil {
		cfg.Window.FPS = *val
	}
	if err := extractBackground(cfg, table); err != nil {
		return err
	}

	// Render
	if val := getTableBool(table, "auto_scale"); val != nil {
		cfg.Render.AutoScale = *val
	}
	if val := getTableBool(table, "clip_enabled"); val != nil {
		cfg.Render.ClipEnabled = *val
	}
	if val := getTableBool(table, "antialias"); val != nil {
		cfg.Render.Antialias = *val
	}
	if val := getTableString(table, "font"); val != nil {
		cfg.Render.FontFamily = *val
	}
	if val := getTableFloat(table, "font_size"); val != nil {
		cfg.Render.FontSize = *val
	}
	if fonts, ok := table.Get(rt.StringValue("fonts")).TryTable(); ok {
		cfg.Render.FontFiles = getStringMap(fonts)
	}

	// Feed
	if val := getTableString(table, "feed"); val != nil {
		kind, err := ParseFeedKind(*val)
		if err != nil {
			return fmt.Errorf("invalid feed: %w", err)
		}
		cfg.Feed.Kind = kind
	}
	if val := getTableString(table, "url"); val != nil {
		cfg.Feed.URL = *val
	}
	if val := getTableString(table, "stream"); val != nil {
		cfg.Feed.Stream = *val
	}
	if val := getTableString(table, "match"); val != nil {
		cfg.Feed.Match = *val
	}
	if val := getTableInt(table, "every"); val != nil {
		cfg.Feed.Every = *val
	}
	if val := getTableString(table, "file"); val != nil {
		cfg.Feed.File = *val
	}
	if val := getTableString(table, "script"); val != nil {
		cfg.Feed.Script = *val
	}
	if val := getTableFloat(table, "interval"); val != nil {
		cfg.Feed.Interval = seconds(*val)
	}
	if val := getTableFloat(table, "reconnect_delay"); val != nil {
		cfg.Feed.ReconnectDelay = seconds(*val)
	}

	// Snapshot
	if val := getTableString(table, "snapshot"); val != nil {
		cfg.Snapshot.Path = *val
	}

	return nil
}

// extractBackground accepts a palette index or a color string.
func extractBackground(cfg *Config, table *rt.Table) error {
	val := table.Get(rt.StringValue("background"))
	if val == rt.NilValue {
		return nil
	}
	if n, ok := val.TryInt(); ok {
		cfg.Window.Background = render.PaletteColor(float64(n))
		return nil
	}
	if s, ok := val.TryString(); ok {
		c, err := render.ParseColor(s)
		if err != nil {
			return fmt.Errorf("invalid background: %w", err)
		}
		cfg.Window.Background = c
		return nil
	}
	return fmt.Errorf("invalid background: expected a palette index or color string")
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// Close releases resources associated with the parser's Lua runtime.
func (p *LuaConfigParser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cleanup != nil {
		p.cleanup()
		p.cleanup = nil
	}
	return nil
}

// getTableBool retrieves a boolean value from a Lua table.
// Returns nil if the key doesn't exist or is not a boolean.
func getTableBool(table *rt.Table, key string) *bool {
	val := table.Get(rt.StringValue(key))
	if val == rt.NilValue {
		return nil
	}

	// Handle actual booleans
	if b, ok := val.TryBool(); ok {
		return &b
	}

	// Handle string "true"/"false" for compatibility
	if s, ok := val.TryString(); ok {
		b := parseBool(s)
		return &b
	}

	return nil
}

// getTableString retrieves a string value from a Lua table.
// Returns nil if the key doesn't exist or is not a string.
func getTableString(table *rt.Table, key string) *string {
	val := table.Get(rt.StringValue(key))
	if val == rt.NilValue {
		return nil
	}

	if s, ok := val.TryString(); ok {
		return &s
	}

	return nil
}

// getTableFloat retrieves a float64 value from a Lua table.
// Returns nil if the key doesn't exist or is not a number.
func getTableFloat(table *rt.Table, key string) *float64 {
	val := table.Get(rt.StringValue(key))
	if val == rt.NilValue {
		return nil
	}

	if n, ok := val.TryFloat(); ok {
		return &n
	}

	// Try int conversion
	if n, ok := val.TryInt(); ok {
		f := float64(n)
		return &f
	}

	return nil
}

// getTableInt retrieves an int value from a Lua table.
// Returns nil if the key doesn't exist or is not a number.
func getTableInt(table *rt.Table, key string) *int {
	val := table.Get(rt.StringValue(key))
	if val == rt.NilValue {
		return nil
	}

	if n, ok := val.TryInt(); ok {
		i := int(n)
		return &i
	}

	// Try float conversion (truncate)
	if f, ok := val.TryFloat(); ok {
		i := int(f)
		return &i
	}

	return nil
}

// getStringMap collects the string-to-string pairs of a Lua table.
// Other pairs are ignored.
func getStringMap(table *rt.Table) map[string]string {
	out := make(map[string]string)
	k, v, ok := table.Next(rt.NilValue)
	for ok && k != rt.NilValue {
		ks, kok := k.TryString()
		vs, vok := v.TryString()
		if kok && vok {
			out[ks] = vs
		}
		k, v, ok = table.Next(k)
	}
	return out
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
