package config

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
)

// Parser provides a unified interface for parsing viewer configuration files.
// It automatically detects whether a file uses the legacy or the Lua format.
type Parser struct {
	legacyParser *LegacyParser
	luaParser    *LuaConfigParser
}

// NewParser creates a new Parser that can handle both legacy and Lua configurations.
func NewParser() (*Parser, error) {
	luaParser, err := NewLuaConfigParser()
	if err != nil {
		return nil, fmt.Errorf("failed to create Lua parser: %w", err)
	}

	return &Parser{
		legacyParser: NewLegacyParser(),
		luaParser:    luaParser,
	}, nil
}

// ParseFile reads and parses a configuration file, auto-detecting the format.
// Returns a Config on success or an error if parsing fails.
func (p *Parser) ParseFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return p.Parse(content)
}

// Parse parses configuration content, auto-detecting the format.
// It uses the presence of a "gbuf.config =" assignment to detect Lua format.
// Environment references in string values are expanded.
func (p *Parser) Parse(content []byte) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if isLuaConfig(content) {
		cfg, err = p.luaParser.Parse(content)
	} else {
		cfg, err = p.legacyParser.Parse(content)
	}
	if err != nil {
		return nil, err
	}
	ExpandEnvConfig(cfg)
	return cfg, nil
}

// luaConfigPattern matches "gbuf.config" followed by optional whitespace and "="
// at the start of a line, so comments mentioning it do not count.
var luaConfigPattern = regexp.MustCompile(`(?m)^\s*gbuf\.config\s*=`)

// isLuaConfig determines if the content is a Lua configuration.
func isLuaConfig(content []byte) bool {
	return luaConfigPattern.Match(content)
}

// ParseFromFS reads and parses a configuration file from an embedded filesystem.
func (p *Parser) ParseFromFS(fsys fs.FS, path string) (*Config, error) {
	content, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS %s: %w", path, err)
	}

	return p.Parse(content)
}

// ParseReader parses configuration from an io.Reader.
// The format parameter must be "legacy" or "lua".
func (p *Parser) ParseReader(r io.Reader, format string) (*Config, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg *Config
	switch format {
	case "lua":
		cfg, err = p.luaParser.Parse(content)
	case "legacy":
		cfg, err = p.legacyParser.Parse(content)
	default:
		return nil, fmt.Errorf("unknown format: %s (expected 'lua' or 'legacy')", format)
	}
	if err != nil {
		return nil, err
	}
	ExpandEnvConfig(cfg)
	return cfg, nil
}

// Close releases resources associated with the parser.
func (p *Parser) Close() error {
	if p.luaParser != nil {
		return p.luaParser.Close()
	}
	return nil
}

// Load parses the file at path and validates the result.
func Load(path string) (*Config, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	defer p.Close()

	cfg, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
