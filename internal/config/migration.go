package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opd-ai/go-gbuf/internal/render"
)

// Migrator converts legacy key-value configurations to the Lua format.
type Migrator struct {
	// includeComments adds explanatory comments to the output.
	includeComments bool
	// preserveDefaults includes settings even when they match defaults.
	preserveDefaults bool
}

// MigratorOption is a functional option for configuring a Migrator.
type MigratorOption func(*Migrator)

// WithComments enables adding explanatory comments to the Lua output.
func WithComments(include bool) MigratorOption {
	return func(m *Migrator) {
		m.includeComments = include
	}
}

// WithDefaults includes settings that match default values in the output.
func WithDefaults(preserve bool) MigratorOption {
	return func(m *Migrator) {
		m.preserveDefaults = preserve
	}
}

// NewMigrator creates a new Migrator with the given options.
func NewMigrator(opts ...MigratorOption) *Migrator {
	m := &Migrator{
		includeComments: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MigrateToLua renders cfg as a gbuf.config Lua table.
func (m *Migrator) MigrateToLua(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	var buf bytes.Buffer
	if m.includeComments {
		buf.WriteString("-- gbuf-view Lua configuration\n")
		buf.WriteString("-- Converted from the key-value format\n\n")
	}

	buf.WriteString("gbuf.config = {\n")
	m.writeConfigTable(&buf, cfg)
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// writeConfigTable writes the gbuf.config table contents.
func (m *Migrator) writeConfigTable(buf *bytes.Buffer, cfg *Config) {
	d := DefaultConfig()

	m.section(buf, "Window")
	m.writeInt(buf, "width", cfg.Window.Width, d.Window.Width)
	m.writeInt(buf, "height", cfg.Window.Height, d.Window.Height)
	m.writeString(buf, "title", cfg.Window.Title, d.Window.Title)
	m.writeInt(buf, "fps", cfg.Window.FPS, d.Window.FPS)
	m.writeString(buf, "background", render.ToHex(cfg.Window.Background), render.ToHex(d.Window.Background))

	m.section(buf, "Rendering")
	m.writeBool(buf, "auto_scale", cfg.Render.AutoScale, d.Render.AutoScale)
	m.writeBool(buf, "clip_enabled", cfg.Render.ClipEnabled, d.Render.ClipEnabled)
	m.writeBool(buf, "antialias", cfg.Render.Antialias, d.Render.Antialias)
	m.writeString(buf, "font", cfg.Render.FontFamily, d.Render.FontFamily)
	m.writeFloat(buf, "font_size", cfg.Render.FontSize, d.Render.FontSize)
	if len(cfg.Render.FontFiles) > 0 {
		buf.WriteString("    fonts = {\n")
		for _, family := range sortedKeys(cfg.Render.FontFiles) {
			fmt.Fprintf(buf, "        [%s] = %s,\n", luaQuote(family), luaQuote(cfg.Render.FontFiles[family]))
		}
		buf.WriteString("    },\n")
	}

	m.section(buf, "Feed")
	m.writeString(buf, "feed", cfg.Feed.Kind.String(), d.Feed.Kind.String())
	m.writeString(buf, "url", cfg.Feed.URL, d.Feed.URL)
	m.writeString(buf, "stream", cfg.Feed.Stream, d.Feed.Stream)
	m.writeString(buf, "match", cfg.Feed.Match, d.Feed.Match)
	m.writeInt(buf, "every", cfg.Feed.Every, d.Feed.Every)
	m.writeString(buf, "file", cfg.Feed.File, d.Feed.File)
	m.writeString(buf, "script", cfg.Feed.Script, d.Feed.Script)
	m.writeDuration(buf, "interval", cfg.Feed.Interval, d.Feed.Interval)
	m.writeDuration(buf, "reconnect_delay", cfg.Feed.ReconnectDelay, d.Feed.ReconnectDelay)

	m.section(buf, "Snapshot")
	m.writeString(buf, "snapshot", cfg.Snapshot.Path, d.Snapshot.Path)
}

func (m *Migrator) section(buf *bytes.Buffer, name string) {
	if m.includeComments {
		fmt.Fprintf(buf, "    -- %s\n", name)
	}
}

func (m *Migrator) writeBool(buf *bytes.Buffer, name string, value, def bool) {
	if value == def && !m.preserveDefaults {
		return
	}
	fmt.Fprintf(buf, "    %s = %t,\n", name, value)
}

func (m *Migrator) writeString(buf *bytes.Buffer, name, value, def string) {
	if value == def && !m.preserveDefaults {
		return
	}
	fmt.Fprintf(buf, "    %s = %s,\n", name, luaQuote(value))
}

func (m *Migrator) writeInt(buf *bytes.Buffer, name string, value, def int) {
	if value == def && !m.preserveDefaults {
		return
	}
	fmt.Fprintf(buf, "    %s = %d,\n", name, value)
}

func (m *Migrator) writeFloat(buf *bytes.Buffer, name string, value, def float64) {
	if value == def && !m.preserveDefaults {
		return
	}
	fmt.Fprintf(buf, "    %s = %s,\n", name, strconv.FormatFloat(value, 'g', -1, 64))
}

func (m *Migrator) writeDuration(buf *bytes.Buffer, name string, value, def time.Duration) {
	m.writeFloat(buf, name, value.Seconds(), def.Seconds())
}

// luaQuote returns s as a double-quoted Lua string literal.
func luaQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
	return `"` + r.Replace(s) + `"`
}

// MigrateLegacyFile reads a legacy file and returns its Lua equivalent.
func MigrateLegacyFile(path string, opts ...MigratorOption) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return MigrateLegacyContent(content, opts...)
}

// MigrateLegacyContent parses legacy content and returns its Lua equivalent.
func MigrateLegacyContent(content []byte, opts ...MigratorOption) ([]byte, error) {
	cfg, err := NewLegacyParser().Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse legacy config: %w", err)
	}
	return NewMigrator(opts...).MigrateToLua(cfg)
}
