package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrateRoundTrip(t *testing.T) {
	legacy := `width 800
title Say "hi"
background red
clip_enabled yes
font_file Mono /fonts/mono.ttf
feed file
file /tmp/frame.json
interval 1.5
`
	lua, err := MigrateLegacyContent([]byte(legacy))
	if err != nil {
		t.Fatalf("MigrateLegacyContent failed: %v", err)
	}
	out := string(lua)
	if !strings.Contains(out, "gbuf.config = {") {
		t.Fatalf("missing table header:\n%s", out)
	}
	if strings.Contains(out, "height =") {
		t.Errorf("default height written without WithDefaults:\n%s", out)
	}

	p := newTestParser(t)
	got, err := p.Parse(lua)
	if err != nil {
		t.Fatalf("parsing migrated config failed: %v\n%s", err, out)
	}
	want, _ := NewLegacyParser().Parse([]byte(legacy))

	if got.Window != want.Window {
		t.Errorf("window = %+v, want %+v", got.Window, want.Window)
	}
	if got.Render.ClipEnabled != want.Render.ClipEnabled {
		t.Error("clip_enabled lost")
	}
	if got.Render.FontFiles["Mono"] != "/fonts/mono.ttf" {
		t.Errorf("fonts = %v", got.Render.FontFiles)
	}
	if got.Feed != want.Feed {
		t.Errorf("feed = %+v, want %+v", got.Feed, want.Feed)
	}
}

func TestMigratorOptions(t *testing.T) {
	cfg := DefaultConfig()

	bare, err := NewMigrator(WithComments(false)).MigrateToLua(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(bare), "--") {
		t.Errorf("comments written with WithComments(false):\n%s", bare)
	}
	if strings.Contains(string(bare), "width") {
		t.Errorf("defaults written:\n%s", bare)
	}

	full, err := NewMigrator(WithDefaults(true)).MigrateToLua(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"width = 640", "stream = \"graphics/main\"", "auto_scale = true"} {
		if !strings.Contains(string(full), key) {
			t.Errorf("missing %q:\n%s", key, full)
		}
	}

	if _, err := NewMigrator().MigrateToLua(nil); err == nil {
		t.Error("MigrateToLua(nil) succeeded")
	}
}

func TestMigrateLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.conf")
	if err := os.WriteFile(path, []byte("fps 12\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := MigrateLegacyFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "fps = 12") {
		t.Errorf("output:\n%s", out)
	}
	if _, err := MigrateLegacyFile(path + ".missing"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := MigrateLegacyContent([]byte("width x")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLuaQuote(t *testing.T) {
	if got := luaQuote("a\"b\\c\n"); got != `"a\"b\\c\n"` {
		t.Errorf("luaQuote = %s", got)
	}
}
