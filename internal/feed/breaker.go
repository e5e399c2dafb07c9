package feed

import (
	"sync"
	"time"
)

// BreakerState is the state of a dial Breaker.
type BreakerState int

const (
	// BreakerClosed lets every dial through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects dials until the cooldown has passed.
	BreakerOpen
	// BreakerHalfOpen lets a single trial dial through.
	BreakerHalfOpen
)

// String returns the string representation of the breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failed dials that opens
	// the breaker. Default: 5
	FailureThreshold int
	// Cooldown is how long the breaker stays open. Default: 30 seconds
	Cooldown time.Duration
	// OnStateChange is called, on its own goroutine, after each transition.
	OnStateChange func(from, to BreakerState)
}

// DefaultBreakerConfig returns the configuration used by Client.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// Breaker stops a client from hammering an unreachable dserv. After
// FailureThreshold failed dials it rejects attempts for Cooldown, then
// allows one trial dial; its outcome closes or reopens it.
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	openedAt    time.Time
	probing     bool
	rejections  int64
	totalErrors int64
}

// NewBreaker creates a closed breaker, applying defaults for zero fields.
func NewBreaker(config BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	return &Breaker{config: config, now: time.Now}
}

// Do runs dial unless the breaker is open, in which case it returns
// ErrCircuitOpen without calling it.
func (b *Breaker) Do(dial func() error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}
	err := dial()
	b.record(err)
	return err
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Failures returns the current run of consecutive failures.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Rejections returns how many dials were refused while open.
func (b *Breaker) Rejections() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejections
}

// Reset closes the breaker and forgets past failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.transition(BreakerClosed)
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			b.rejections++
			return false
		}
		b.transition(BreakerHalfOpen)
		b.probing = true
		return true
	default:
		if b.probing {
			b.rejections++
			return false
		}
		b.probing = true
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil {
		b.failures = 0
		b.transition(BreakerClosed)
		return
	}

	b.totalErrors++
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.config.FailureThreshold {
		b.openedAt = b.now()
		b.transition(BreakerOpen)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(from, to)
	}
}
