package config

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/opd-ai/go-gbuf/internal/render"
)

// LegacyParser parses the plain "key value" configuration format.
// Lines starting with # are comments. Unknown keys are ignored.
type LegacyParser struct{}

// NewLegacyParser creates a new LegacyParser instance.
func NewLegacyParser() *LegacyParser {
	return &LegacyParser{}
}

// Parse parses a legacy configuration from content bytes.
func (p *LegacyParser) Parse(content []byte) (*Config, error) {
	cfg := DefaultConfig()
	scanner := bufio.NewScanner(bytes.NewReader(content))
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if err := p.parseDirective(&cfg, trimmed, lineNum); err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading configuration: %w", err)
	}
	return &cfg, nil
}

// parseDirective parses a single configuration directive line.
// Format: "key value" or "key" (for boolean flags).
func (p *LegacyParser) parseDirective(cfg *Config, line string, lineNum int) error {
	key, value, _ := strings.Cut(line, " ")
	key = strings.ToLower(key)
	value = strings.TrimSpace(value)

	switch key {
	// Window
	case "width":
		return setInt(&cfg.Window.Width, key, value, lineNum)
	case "height":
		return setInt(&cfg.Window.Height, key, value, lineNum)
	case "title":
		cfg.Window.Title = value
	case "fps":
		return setInt(&cfg.Window.FPS, key, value, lineNum)
	case "background":
		c, err := render.ParseColor(value)
		if err != nil {
			return fmt.Errorf("line %d: invalid background: %w", lineNum, err)
		}
		cfg.Window.Background = c

	// Render
	case "auto_scale":
		cfg.Render.AutoScale = parseFlag(value)
	case "clip_enabled":
		cfg.Render.ClipEnabled = parseFlag(value)
	case "antialias":
		cfg.Render.Antialias = parseFlag(value)
	case "font":
		cfg.Render.FontFamily = value
	case "font_size":
		size, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("line %d: invalid font_size: %w", lineNum, err)
		}
		cfg.Render.FontSize = size
	case "font_file":
		family, path, ok := strings.Cut(value, " ")
		if !ok {
			return fmt.Errorf("line %d: font_file needs a family and a path", lineNum)
		}
		if cfg.Render.FontFiles == nil {
			cfg.Render.FontFiles = make(map[string]string)
		}
		cfg.Render.FontFiles[family] = strings.TrimSpace(path)

	// Feed
	case "feed":
		kind, err := ParseFeedKind(value)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		cfg.Feed.Kind = kind
	case "url":
		cfg.Feed.URL = value
	case "stream":
		cfg.Feed.Stream = value
	case "match":
		cfg.Feed.Match = value
	case "every":
		return setInt(&cfg.Feed.Every, key, value, lineNum)
	case "file":
		cfg.Feed.File = value
	case "script":
		cfg.Feed.Script = value
	case "interval":
		v, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("line %d: invalid interval: %w", lineNum, err)
		}
		cfg.Feed.Interval = seconds(v)
	case "reconnect_delay":
		v, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("line %d: invalid reconnect_delay: %w", lineNum, err)
		}
		cfg.Feed.ReconnectDelay = seconds(v)

	// Snapshot
	case "snapshot":
		cfg.Snapshot.Path = value

	default:
		// Ignore unknown directives for forward compatibility
	}

	return nil
}

func setInt(dst *int, key, value string, lineNum int) error {
	n, err := parseInt(value)
	if err != nil {
		return fmt.Errorf("line %d: invalid %s: %w", lineNum, key, err)
	}
	*dst = n
	return nil
}

// parseFlag treats a bare key as true, like "clip_enabled" on its own line.
func parseFlag(s string) bool {
	if s == "" {
		return true
	}
	return parseBool(s)
}

// parseBool parses a boolean value from common string representations.
// Accepts: yes, no, true, false, 1, 0
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "yes", "true", "1", "on":
		return true
	default:
		return false
	}
}

// parseFloat parses a float64 from a string.
func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// parseInt parses an int from a string.
func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
