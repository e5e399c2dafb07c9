package gbuf

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-gbuf/internal/command"
	"github.com/opd-ai/go-gbuf/internal/config"
	"github.com/opd-ai/go-gbuf/internal/feed"
	"github.com/opd-ai/go-gbuf/internal/lua"
	"github.com/opd-ai/go-gbuf/internal/render"
)

// Errors returned by Viewer methods.
var (
	// ErrAlreadyRunning is returned by Start on a running viewer.
	ErrAlreadyRunning = errors.New("viewer already running")
	// ErrNotRunning is returned by operations that need a running viewer.
	ErrNotRunning = errors.New("viewer not running")
	// ErrInvalidFormat is returned by NewFromReader for an unknown format.
	ErrInvalidFormat = errors.New("invalid config format")
)

// ErrorCategory classifies where an error came from.
type ErrorCategory int

const (
	// ErrorCategoryUnknown matches nothing more specific.
	ErrorCategoryUnknown ErrorCategory = iota
	// ErrorCategoryDecode is for payloads that are not a gbuf command list.
	ErrorCategoryDecode
	// ErrorCategoryRender is for commands that failed to execute.
	ErrorCategoryRender
	// ErrorCategoryFeed is for dserv, file and script feed failures.
	ErrorCategoryFeed
	// ErrorCategoryConfig is for config files that fail to load or validate.
	ErrorCategoryConfig
	// ErrorCategoryLua is for drawing scripts that fail inside the interpreter.
	ErrorCategoryLua
	// ErrorCategoryIO is for snapshot writes and other filesystem failures.
	ErrorCategoryIO

	numErrorCategories
)

// String returns the lower-case category name used in logs.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryDecode:
		return "decode"
	case ErrorCategoryRender:
		return "render"
	case ErrorCategoryFeed:
		return "feed"
	case ErrorCategoryConfig:
		return "config"
	case ErrorCategoryLua:
		return "lua"
	case ErrorCategoryIO:
		return "io"
	default:
		return "unknown"
	}
}

// Categorize picks the category of err from the error types and sentinels
// of the packages that produce it.
func Categorize(err error) ErrorCategory {
	var (
		decodeErr *command.DecodeError
		execErr   *render.CommandExecutionError
		validErr  config.ValidationError
		pathErr   *fs.PathError
	)
	switch {
	case err == nil:
		return ErrorCategoryUnknown
	case errors.As(err, &decodeErr):
		return ErrorCategoryDecode
	case errors.As(err, &execErr):
		return ErrorCategoryRender
	case errors.Is(err, lua.ErrResourceLimit), errors.Is(err, lua.ErrBadArgument):
		return ErrorCategoryLua
	case errors.Is(err, feed.ErrCircuitOpen), errors.Is(err, feed.ErrBadChunk),
		errors.Is(err, feed.ErrNoURL), errors.Is(err, feed.ErrNoPath):
		return ErrorCategoryFeed
	case errors.Is(err, config.ErrInvalid), errors.As(err, &validErr):
		return ErrorCategoryConfig
	case errors.As(err, &pathErr):
		return ErrorCategoryIO
	default:
		return ErrorCategoryUnknown
	}
}

// ErrorSeverity orders errors from informational to critical.
type ErrorSeverity int

const (
	// SeverityInfo needs no action.
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is for non-critical issues such as a bad command in a frame.
	SeverityWarning
	// SeverityError means a feed or reload failed; rendering goes on.
	SeverityError
	// SeverityCritical means the viewer cannot render.
	SeverityCritical
)

// String returns the lower-case severity name.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// CategorizedError is an error tagged for the ErrorTracker and ErrorHandler.
type CategorizedError struct {
	Err       error
	Category  ErrorCategory
	Severity  ErrorSeverity
	Timestamp time.Time
	// Context provides additional key-value metadata such as the stream name.
	Context map[string]string
}

// Error prefixes the wrapped message with severity and category.
func (e *CategorizedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s/%s] (no error)", e.Severity, e.Category)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Severity, e.Category, e.Err.Error())
}

// Unwrap returns the wrapped error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorizedError tags err, timestamping it now.
func NewCategorizedError(err error, category ErrorCategory, severity ErrorSeverity) *CategorizedError {
	return &CategorizedError{
		Err:       err,
		Category:  category,
		Severity:  severity,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
	}
}

// WithContext sets a context key and returns e for chaining.
func (e *CategorizedError) WithContext(key, value string) *CategorizedError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// AlertCondition fires when Threshold matching errors land within Window.
type AlertCondition struct {
	// Category restricts the condition; ErrorCategoryUnknown matches any.
	Category ErrorCategory
	// MinSeverity ignores anything less severe.
	MinSeverity ErrorSeverity
	// Threshold is the matching error count that fires the alert.
	Threshold int
	// Window bounds how far back errors are counted.
	Window time.Duration
}

// AlertHandler receives fired conditions. It runs on the recording
// goroutine and must return quickly.
type AlertHandler func(condition AlertCondition, errorCount int, recentErrors []CategorizedError)

// ErrorTracker keeps a sliding window of recent errors, lifetime counts
// per category and the alert conditions checked on every Record.
// Thread-safe for concurrent use.
type ErrorTracker struct {
	mu            sync.RWMutex
	errors        []CategorizedError
	maxErrors     int
	retentionTime time.Duration
	conditions    []AlertCondition
	handlers      []AlertHandler
	lastAlert     map[int]time.Time
	alertCooldown time.Duration
	now           func() time.Time

	categoryCounters [numErrorCategories]atomic.Int64
}

// ErrorTrackerConfig bounds what an ErrorTracker retains.
type ErrorTrackerConfig struct {
	// MaxErrors caps the retained list. Zero means 1000.
	MaxErrors int
	// RetentionTime drops older errors. Zero means one hour.
	RetentionTime time.Duration
	// AlertCooldown spaces repeats of one condition. Zero means five minutes.
	AlertCooldown time.Duration
	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// DefaultErrorTrackerConfig keeps 1000 errors for an hour.
func DefaultErrorTrackerConfig() ErrorTrackerConfig {
	return ErrorTrackerConfig{
		MaxErrors:     1000,
		RetentionTime: time.Hour,
		AlertCooldown: 5 * time.Minute,
	}
}

// NewErrorTracker applies defaults for zero fields of cfg.
func NewErrorTracker(cfg ErrorTrackerConfig) *ErrorTracker {
	def := DefaultErrorTrackerConfig()
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = def.MaxErrors
	}
	if cfg.RetentionTime <= 0 {
		cfg.RetentionTime = def.RetentionTime
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = def.AlertCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &ErrorTracker{
		errors:        make([]CategorizedError, 0, cfg.MaxErrors),
		maxErrors:     cfg.MaxErrors,
		retentionTime: cfg.RetentionTime,
		lastAlert:     make(map[int]time.Time),
		alertCooldown: cfg.AlertCooldown,
		now:           cfg.Now,
	}
}

// AddCondition adds a condition checked on every Record.
func (t *ErrorTracker) AddCondition(cond AlertCondition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conditions = append(t.conditions, cond)
}

// SetAlertHandler adds a handler. Handlers accumulate.
func (t *ErrorTracker) SetAlertHandler(handler AlertHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, handler)
}

// Record stores err, bumps the lifetime counts and checks the conditions.
// A zero Timestamp is set to the tracker's current time.
func (t *ErrorTracker) Record(err *CategorizedError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = t.now()
	}

	if err.Category >= 0 && err.Category < numErrorCategories {
		t.categoryCounters[err.Category].Add(1)
	}

	t.mu.Lock()
	t.errors = append(t.errors, *err)
	if len(t.errors) > t.maxErrors {
		t.errors = t.errors[len(t.errors)-t.maxErrors:]
	}
	t.pruneExpired()

	conditions := make([]AlertCondition, len(t.conditions))
	copy(conditions, t.conditions)
	handlers := make([]AlertHandler, len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.Unlock()

	for i, cond := range conditions {
		t.checkCondition(i, cond, handlers)
	}
}

// pruneExpired drops errors past RetentionTime. mu must be held.
func (t *ErrorTracker) pruneExpired() {
	cutoff := t.now().Add(-t.retentionTime)
	start := 0
	for start < len(t.errors) && !t.errors[start].Timestamp.After(cutoff) {
		start++
	}
	if start > 0 {
		t.errors = t.errors[start:]
	}
}

func (t *ErrorTracker) checkCondition(index int, cond AlertCondition, handlers []AlertHandler) {
	now := t.now()

	t.mu.RLock()
	lastTime, exists := t.lastAlert[index]
	if exists && now.Sub(lastTime) < t.alertCooldown {
		t.mu.RUnlock()
		return
	}

	cutoff := now.Add(-cond.Window)
	var count int
	var matching []CategorizedError
	for _, err := range t.errors {
		if err.Timestamp.Before(cutoff) {
			continue
		}
		if cond.Category != ErrorCategoryUnknown && err.Category != cond.Category {
			continue
		}
		if err.Severity < cond.MinSeverity {
			continue
		}
		count++
		if len(matching) < 10 {
			matching = append(matching, err)
		}
	}
	t.mu.RUnlock()

	if count < cond.Threshold {
		return
	}

	t.mu.Lock()
	t.lastAlert[index] = now
	t.mu.Unlock()

	for _, handler := range handlers {
		go func(h AlertHandler) {
			defer func() {
				recover()
			}()
			h(cond, count, matching)
		}(handler)
	}
}

// ErrorRate returns retained errors per second over the last window.
func (t *ErrorTracker) ErrorRate(window time.Duration) float64 {
	return t.rate(window, func(CategorizedError) bool { return true })
}

// ErrorRateByCategory is ErrorRate for one category.
func (t *ErrorTracker) ErrorRateByCategory(category ErrorCategory, window time.Duration) float64 {
	return t.rate(window, func(e CategorizedError) bool { return e.Category == category })
}

func (t *ErrorTracker) rate(window time.Duration, match func(CategorizedError) bool) float64 {
	if window <= 0 {
		return 0
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.now().Add(-window)
	count := 0
	for _, err := range t.errors {
		if err.Timestamp.After(cutoff) && match(err) {
			count++
		}
	}
	return float64(count) / window.Seconds()
}

// Stats summarizes the retained errors and lifetime totals.
func (t *ErrorTracker) Stats() ErrorStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := ErrorStats{
		TotalErrors:      len(t.errors),
		ErrorsByCategory: make(map[ErrorCategory]int),
		ErrorsBySeverity: make(map[ErrorSeverity]int),
	}
	for _, err := range t.errors {
		stats.ErrorsByCategory[err.Category]++
		stats.ErrorsBySeverity[err.Severity]++
	}
	for i := range t.categoryCounters {
		stats.TotalByCategory = append(stats.TotalByCategory, CategoryCount{
			Category: ErrorCategory(i),
			Count:    t.categoryCounters[i].Load(),
		})
	}
	return stats
}

// RecentErrors returns up to limit errors, oldest first.
func (t *ErrorTracker) RecentErrors(limit int) []CategorizedError {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 || len(t.errors) == 0 {
		return nil
	}
	start := max(len(t.errors)-limit, 0)
	result := make([]CategorizedError, len(t.errors)-start)
	copy(result, t.errors[start:])
	return result
}

// Clear removes all tracked errors. Lifetime category counts are kept.
func (t *ErrorTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = t.errors[:0]
	t.lastAlert = make(map[int]time.Time)
}

// ErrorStats is returned by ErrorTracker.Stats.
type ErrorStats struct {
	// TotalErrors counts retained errors.
	TotalErrors int
	// ErrorsByCategory counts retained errors by category.
	ErrorsByCategory map[ErrorCategory]int
	// ErrorsBySeverity counts retained errors by severity.
	ErrorsBySeverity map[ErrorSeverity]int
	// TotalByCategory holds lifetime totals per category.
	TotalByCategory []CategoryCount
}

// CategoryCount is one lifetime total.
type CategoryCount struct {
	Category ErrorCategory
	Count    int64
}

var (
	defaultErrorTracker     *ErrorTracker
	defaultErrorTrackerOnce sync.Once
)

// DefaultErrorTracker returns the process-wide tracker viewers share
// when Options.ErrorTracker is nil.
func DefaultErrorTracker() *ErrorTracker {
	defaultErrorTrackerOnce.Do(func() {
		defaultErrorTracker = NewErrorTracker(DefaultErrorTrackerConfig())
	})
	return defaultErrorTracker
}
