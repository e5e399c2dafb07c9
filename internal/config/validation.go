package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalid is wrapped by the error a failed validation returns.
var ErrInvalid = errors.New("validation failed")

// ValidationError represents a configuration validation error.
// It contains the field name and a description of the issue.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the results of a configuration validation.
type ValidationResult struct {
	// Errors contains all validation errors found.
	Errors []ValidationError
	// Warnings contains non-fatal issues (e.g., a missing font file).
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (vr *ValidationResult) IsValid() bool {
	return len(vr.Errors) == 0
}

// Error returns a combined error message if there are errors, nil otherwise.
func (vr *ValidationResult) Error() error {
	if len(vr.Errors) == 0 {
		return nil
	}

	messages := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		messages = append(messages, e.Error())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(messages, "; "))
}

// AddError adds a validation error.
func (vr *ValidationResult) AddError(field, message string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (vr *ValidationResult) AddWarning(field, message string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Message: message})
}

// Merge combines another ValidationResult into this one.
func (vr *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	vr.Errors = append(vr.Errors, other.Errors...)
	vr.Warnings = append(vr.Warnings, other.Warnings...)
}

// Validator provides comprehensive configuration validation.
type Validator struct {
	// strictMode turns warnings about the environment into errors.
	strictMode bool
}

// NewValidator creates a new Validator with default settings.
func NewValidator() *Validator {
	return &Validator{}
}

// WithStrictMode enables strict validation where environment problems,
// such as a missing font file, are errors.
func (v *Validator) WithStrictMode(strict bool) *Validator {
	v.strictMode = strict
	return v
}

// Validate performs comprehensive validation of a Config.
func (v *Validator) Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	v.validateWindow(&cfg.Window, result)
	v.validateRender(&cfg.Render, result)
	v.validateFeed(&cfg.Feed, result)
	v.validateSnapshot(&cfg.Snapshot, result)

	return result
}

// environmental reports a problem that depends on the host, not the file.
func (v *Validator) environmental(result *ValidationResult, field, message string) {
	if v.strictMode {
		result.AddError(field, message)
	} else {
		result.AddWarning(field, message)
	}
}

// validateWindow validates WindowConfig settings.
func (v *Validator) validateWindow(wc *WindowConfig, result *ValidationResult) {
	if wc.Width <= 0 {
		result.AddError("window.width", fmt.Sprintf("must be positive, got %d", wc.Width))
	}
	if wc.Height <= 0 {
		result.AddError("window.height", fmt.Sprintf("must be positive, got %d", wc.Height))
	}

	const maxDimension = 10000
	if wc.Width > maxDimension {
		result.AddWarning("window.width", fmt.Sprintf("unusually large value %d", wc.Width))
	}
	if wc.Height > maxDimension {
		result.AddWarning("window.height", fmt.Sprintf("unusually large value %d", wc.Height))
	}

	if wc.FPS < 0 {
		result.AddError("window.fps", fmt.Sprintf("must be non-negative, got %d", wc.FPS))
	}
	if wc.FPS > 240 {
		result.AddWarning("window.fps", fmt.Sprintf("very high rate %d may cause high CPU usage", wc.FPS))
	}
	if wc.Background.A == 0 {
		result.AddWarning("window.background", "fully transparent background")
	}
}

// validateRender validates RenderConfig settings.
func (v *Validator) validateRender(rc *RenderConfig, result *ValidationResult) {
	if rc.FontFamily != "" {
		v.validateFont(rc.FontFamily, result)
	}
	if rc.FontSize <= 0 {
		result.AddError("render.font_size",
			fmt.Sprintf("must be positive, got %g", rc.FontSize))
	}
	if rc.FontSize > 200 {
		result.AddWarning("render.font_size",
			fmt.Sprintf("unusually large font size: %g", rc.FontSize))
	}
	for _, family := range sortedKeys(rc.FontFiles) {
		path := rc.FontFiles[family]
		field := "render.fonts." + family
		if path == "" {
			result.AddError(field, "empty path")
			continue
		}
		if _, err := os.Stat(path); err != nil {
			v.environmental(result, field, fmt.Sprintf("font file not readable: %v", err))
		}
	}
}

// validateFont validates a font family name.
func (v *Validator) validateFont(font string, result *ValidationResult) {
	if strings.ContainsAny(font, "<>|&;$`") {
		result.AddError("render.font", "contains invalid characters")
		return
	}
	if len(font) > 256 {
		result.AddError("render.font", "font name too long")
		return
	}
	if font[0] >= '0' && font[0] <= '9' {
		result.AddWarning("render.font", "font name starts with a number")
	}
}

// validateFeed validates FeedConfig settings for the selected kind.
func (v *Validator) validateFeed(fc *FeedConfig, result *ValidationResult) {
	switch fc.Kind {
	case FeedDserv:
		v.validateURL(fc.URL, result)
		if strings.TrimSpace(fc.Stream) == "" {
			result.AddError("feed.stream", "required for the dserv feed")
		}
		if fc.Every < 0 {
			result.AddError("feed.every", fmt.Sprintf("must be non-negative, got %d", fc.Every))
		}
		if fc.ReconnectDelay < 0 {
			result.AddError("feed.reconnect_delay",
				fmt.Sprintf("must be non-negative, got %v", fc.ReconnectDelay))
		}
	case FeedFile:
		if fc.File == "" {
			result.AddError("feed.file", "required for the file feed")
		} else if _, err := os.Stat(fc.File); err != nil {
			v.environmental(result, "feed.file", fmt.Sprintf("not readable yet: %v", err))
		}
	case FeedScript:
		if fc.Script == "" {
			result.AddError("feed.script", "required for the script feed")
		} else if _, err := os.Stat(fc.Script); err != nil {
			v.environmental(result, "feed.script", fmt.Sprintf("not readable: %v", err))
		}
		if fc.Interval < 0 {
			result.AddError("feed.interval", fmt.Sprintf("must be non-negative, got %v", fc.Interval))
		}
		if fc.Interval > 0 && fc.Interval < 10*time.Millisecond {
			result.AddWarning("feed.interval",
				fmt.Sprintf("very fast interval %v may cause high CPU usage", fc.Interval))
		}
	case FeedNone:
	default:
		result.AddError("feed.kind", fmt.Sprintf("unknown feed kind: %d", fc.Kind))
	}
}

// validateURL checks that raw is a WebSocket URL.
func (v *Validator) validateURL(raw string, result *ValidationResult) {
	if raw == "" {
		result.AddError("feed.url", "required for the dserv feed")
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		result.AddError("feed.url", fmt.Sprintf("invalid URL: %v", err))
		return
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http", "https":
		result.AddWarning("feed.url", "http scheme will be upgraded to a WebSocket")
	default:
		result.AddError("feed.url", fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		result.AddError("feed.url", "missing host")
	}
}

// validateSnapshot validates SnapshotConfig settings.
func (v *Validator) validateSnapshot(sc *SnapshotConfig, result *ValidationResult) {
	if sc.Path == "" {
		return
	}
	if !strings.EqualFold(filepath.Ext(sc.Path), ".png") {
		result.AddWarning("snapshot.path", "snapshots are PNG encoded")
	}
	if _, err := os.Stat(filepath.Dir(sc.Path)); err != nil {
		v.environmental(result, "snapshot.path", fmt.Sprintf("directory not accessible: %v", err))
	}
}

// ValidateConfig validates cfg and returns an error if it is invalid.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	return NewValidator().Validate(cfg).Error()
}

// ValidateConfigStrict validates cfg in strict mode.
func ValidateConfigStrict(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	return NewValidator().WithStrictMode(true).Validate(cfg).Error()
}
