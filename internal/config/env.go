package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches environment variable references in configuration values.
// Supports formats:
//   - ${VAR_NAME} - standard shell-like format
//   - ${VAR_NAME:-default} - with default value if unset or empty
//   - $VAR_NAME - simple format (word characters only)
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([a-zA-Z_][a-zA-Z0-9_]*)`)

// ExpandEnv expands environment variable references in a string.
// Unknown or unset variables without defaults are replaced with empty string.
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") && strings.HasSuffix(match, "}") {
			inner := match[2 : len(match)-1]

			if name, def, ok := strings.Cut(inner, ":-"); ok {
				if val := os.Getenv(name); val != "" {
					return val
				}
				return def
			}
			return os.Getenv(inner)
		}
		return os.Getenv(match[1:])
	})
}

// ExpandEnvConfig expands environment variables in every string value that
// names an endpoint, a path or a label.
func ExpandEnvConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Window.Title = ExpandEnv(cfg.Window.Title)
	cfg.Render.FontFamily = ExpandEnv(cfg.Render.FontFamily)
	for family, path := range cfg.Render.FontFiles {
		cfg.Render.FontFiles[family] = ExpandEnv(path)
	}
	cfg.Feed.URL = ExpandEnv(cfg.Feed.URL)
	cfg.Feed.Stream = ExpandEnv(cfg.Feed.Stream)
	cfg.Feed.Match = ExpandEnv(cfg.Feed.Match)
	cfg.Feed.File = ExpandEnv(cfg.Feed.File)
	cfg.Feed.Script = ExpandEnv(cfg.Feed.Script)
	cfg.Snapshot.Path = ExpandEnv(cfg.Snapshot.Path)
}
