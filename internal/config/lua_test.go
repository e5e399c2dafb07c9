package config

import (
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/go-gbuf/internal/render"
)

func parseLua(t *testing.T, content string) *Config {
	t.Helper()
	p, err := NewLuaConfigParser()
	if err != nil {
		t.Fatalf("NewLuaConfigParser failed: %v", err)
	}
	defer p.Close()
	cfg, err := p.Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return cfg
}

func TestLuaParserFullConfig(t *testing.T) {
	cfg := parseLua(t, `
gbuf.config = {
    width = 800,
    height = 600,
    title = "Plots",
    fps = 60,
    background = "black",
    auto_scale = true,
    clip_enabled = true,
    antialias = false,
    font = "Courier",
    font_size = 12.5,
    fonts = { Mono = "/usr/share/fonts/mono.ttf" },
    feed = "dserv",
    url = "ws://example:2565/ws",
    stream = "graphics/left",
    match = "graphics/*",
    every = 2,
    reconnect_delay = 5,
    snapshot = "/tmp/out.png",
}
`)

	if cfg.Window.Width != 800 || cfg.Window.Height != 600 {
		t.Errorf("size = %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Window.Title != "Plots" || cfg.Window.FPS != 60 {
		t.Errorf("window = %+v", cfg.Window)
	}
	if cfg.Window.Background != render.Black {
		t.Errorf("background = %v, want black", cfg.Window.Background)
	}
	if !cfg.Render.AutoScale || !cfg.Render.ClipEnabled || cfg.Render.Antialias {
		t.Errorf("render flags = %+v", cfg.Render)
	}
	if cfg.Render.FontFamily != "Courier" || cfg.Render.FontSize != 12.5 {
		t.Errorf("font = %s %v", cfg.Render.FontFamily, cfg.Render.FontSize)
	}
	if cfg.Render.FontFiles["Mono"] != "/usr/share/fonts/mono.ttf" {
		t.Errorf("fonts = %v", cfg.Render.FontFiles)
	}
	if cfg.Feed.URL != "ws://example:2565/ws" || cfg.Feed.Stream != "graphics/left" {
		t.Errorf("feed = %+v", cfg.Feed)
	}
	if cfg.Feed.SubscribeMatch() != "graphics/*" || cfg.Feed.Every != 2 {
		t.Errorf("subscription = %q every %d", cfg.Feed.SubscribeMatch(), cfg.Feed.Every)
	}
	if cfg.Feed.ReconnectDelay != 5*time.Second {
		t.Errorf("reconnect_delay = %v", cfg.Feed.ReconnectDelay)
	}
	if cfg.Snapshot.Path != "/tmp/out.png" {
		t.Errorf("snapshot = %q", cfg.Snapshot.Path)
	}
}

func TestLuaParserDefaults(t *testing.T) {
	cfg := parseLua(t, `gbuf.config = {}`)
	want := DefaultConfig()
	if cfg.Window != want.Window {
		t.Errorf("window = %+v, want %+v", cfg.Window, want.Window)
	}
	if cfg.Feed != want.Feed {
		t.Errorf("feed = %+v, want %+v", cfg.Feed, want.Feed)
	}
}

func TestLuaParserComputedValues(t *testing.T) {
	cfg := parseLua(t, `
local base = 320
gbuf.config = {
    width = base * 2,
    height = base * 1.5,
    background = 4,
    feed = "script",
    script = "draw" .. ".lua",
    interval = 1 / 4,
}
`)
	if cfg.Window.Width != 640 || cfg.Window.Height != 480 {
		t.Errorf("size = %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Window.Background != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("background = %v, want palette red", cfg.Window.Background)
	}
	if cfg.Feed.Kind != FeedScript || cfg.Feed.Script != "draw.lua" {
		t.Errorf("feed = %+v", cfg.Feed)
	}
	if cfg.Feed.Interval != 250*time.Millisecond {
		t.Errorf("interval = %v", cfg.Feed.Interval)
	}
}

func TestLuaParserErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", `gbuf.config = {`, "compile"},
		{"runtime", `error("boom")`, "execute"},
		{"bad feed", `gbuf.config = { feed = "carrier-pigeon" }`, "invalid feed"},
		{"bad background", `gbuf.config = { background = "not-a-color" }`, "invalid background"},
		{"background table", `gbuf.config = { background = {} }`, "invalid background"},
		{"gbuf replaced", `gbuf = 5`, "not a table"},
		{"runaway", `while true do end`, "execute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLuaConfigParser()
			if err != nil {
				t.Fatal(err)
			}
			defer p.Close()
			_, err = p.Parse([]byte(tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLuaParserReuse(t *testing.T) {
	p, err := NewLuaConfigParser()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if _, err := p.Parse([]byte(`gbuf.config = { width = 100 }`)); err != nil {
		t.Fatal(err)
	}
	cfg, err := p.Parse([]byte(`gbuf.config = { height = 50 }`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Window.Width != DefaultWidth {
		t.Errorf("width leaked from previous parse: %d", cfg.Window.Width)
	}
}
