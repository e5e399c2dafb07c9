package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func hasField(list []ValidationError, field string) bool {
	for _, e := range list {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidateDefaults(t *testing.T) {
	cfg := DefaultConfig()
	result := NewValidator().Validate(&cfg)
	if !result.IsValid() {
		t.Errorf("default config invalid: %v", result.Error())
	}
	if len(result.Warnings) != 0 {
		t.Errorf("default config warnings: %v", result.Warnings)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero width", func(c *Config) { c.Window.Width = 0 }, "window.width"},
		{"negative height", func(c *Config) { c.Window.Height = -1 }, "window.height"},
		{"negative fps", func(c *Config) { c.Window.FPS = -1 }, "window.fps"},
		{"zero font size", func(c *Config) { c.Render.FontSize = 0 }, "render.font_size"},
		{"shell font", func(c *Config) { c.Render.FontFamily = "Sans; rm" }, "render.font"},
		{"empty font file", func(c *Config) { c.Render.FontFiles = map[string]string{"X": ""} }, "render.fonts.X"},
		{"missing url", func(c *Config) { c.Feed.URL = "" }, "feed.url"},
		{"bad scheme", func(c *Config) { c.Feed.URL = "ftp://host/ws" }, "feed.url"},
		{"missing host", func(c *Config) { c.Feed.URL = "ws:///ws" }, "feed.url"},
		{"missing stream", func(c *Config) { c.Feed.Stream = " " }, "feed.stream"},
		{"negative every", func(c *Config) { c.Feed.Every = -1 }, "feed.every"},
		{"file feed without file", func(c *Config) { c.Feed.Kind = FeedFile }, "feed.file"},
		{"script feed without script", func(c *Config) { c.Feed.Kind = FeedScript }, "feed.script"},
		{"unknown kind", func(c *Config) { c.Feed.Kind = FeedKind(42) }, "feed.kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			result := NewValidator().Validate(&cfg)
			if result.IsValid() {
				t.Fatal("expected validation errors")
			}
			if !hasField(result.Errors, tt.field) {
				t.Errorf("errors = %v, want field %s", result.Errors, tt.field)
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"huge width", func(c *Config) { c.Window.Width = 20000 }, "window.width"},
		{"fast fps", func(c *Config) { c.Window.FPS = 500 }, "window.fps"},
		{"transparent background", func(c *Config) { c.Window.Background.A = 0 }, "window.background"},
		{"huge font", func(c *Config) { c.Render.FontSize = 300 }, "render.font_size"},
		{"http url", func(c *Config) { c.Feed.URL = "http://localhost:2565/ws" }, "feed.url"},
		{"jpeg snapshot", func(c *Config) { c.Snapshot.Path = filepath.Join(os.TempDir(), "x.jpg") }, "snapshot.path"},
		{"missing font file", func(c *Config) {
			c.Render.FontFiles = map[string]string{"X": "/nonexistent/font.ttf"}
		}, "render.fonts.X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			result := NewValidator().Validate(&cfg)
			if !result.IsValid() {
				t.Fatalf("unexpected errors: %v", result.Error())
			}
			if !hasField(result.Warnings, tt.field) {
				t.Errorf("warnings = %v, want field %s", result.Warnings, tt.field)
			}
		})
	}
}

func TestValidateStrictMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Feed.Kind = FeedScript
	cfg.Feed.Script = filepath.Join(t.TempDir(), "missing.lua")

	if err := ValidateConfig(&cfg); err != nil {
		t.Errorf("lenient validation failed: %v", err)
	}
	err := ValidateConfigStrict(&cfg)
	if err == nil || !strings.Contains(err.Error(), "feed.script") {
		t.Errorf("strict validation error = %v, want feed.script", err)
	}
}

func TestValidateScriptInterval(t *testing.T) {
	script := filepath.Join(t.TempDir(), "draw.lua")
	if err := os.WriteFile(script, []byte("-- empty"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Feed.Kind = FeedScript
	cfg.Feed.Script = script

	cfg.Feed.Interval = -time.Second
	if ValidateConfig(&cfg) == nil {
		t.Error("negative interval accepted")
	}

	cfg.Feed.Interval = time.Millisecond
	result := NewValidator().Validate(&cfg)
	if !result.IsValid() || !hasField(result.Warnings, "feed.interval") {
		t.Errorf("fast interval: errors %v warnings %v", result.Errors, result.Warnings)
	}
}

func TestValidateNil(t *testing.T) {
	if ValidateConfig(nil) == nil {
		t.Error("ValidateConfig(nil) returned nil")
	}
	if ValidateConfigStrict(nil) == nil {
		t.Error("ValidateConfigStrict(nil) returned nil")
	}
}

func TestValidationResultMerge(t *testing.T) {
	a := &ValidationResult{}
	a.AddError("x", "bad")
	b := &ValidationResult{}
	b.AddWarning("y", "odd")
	b.AddError("z", "worse")
	a.Merge(b)
	a.Merge(nil)

	if len(a.Errors) != 2 || len(a.Warnings) != 1 {
		t.Errorf("merged = %+v", a)
	}
	if !strings.Contains(a.Error().Error(), "x: bad; z: worse") {
		t.Errorf("Error() = %v", a.Error())
	}
	if !errors.Is(a.Error(), ErrInvalid) {
		t.Errorf("Error() does not wrap ErrInvalid")
	}
}
