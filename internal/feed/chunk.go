package feed

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultChunkTimeout is how long a partially received message is kept.
	DefaultChunkTimeout = 30 * time.Second

	// DefaultMaxChunks caps totalChunks in a chunk header. Slots are
	// allocated up front, so the header must not size them unchecked.
	DefaultMaxChunks = 4096

	// maxPendingMessages caps the incomplete messages held at once; the
	// oldest is dropped to make room.
	maxPendingMessages = 64
)

// Chunk is one piece of a message that dserv split because it exceeded
// the WebSocket frame size.
type Chunk struct {
	MessageID string
	Index     int
	Total     int
	Data      string
}

type partialMessage struct {
	parts    []string
	seen     []bool
	received int
	started  time.Time
}

// Assembler joins chunks back into whole messages.
type Assembler struct {
	timeout   time.Duration
	maxChunks int
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]*partialMessage
	expired int
}

// NewAssembler returns an assembler that discards incomplete messages
// older than timeout and rejects headers announcing more than maxChunks
// pieces. Non-positive values use DefaultChunkTimeout and DefaultMaxChunks.
func NewAssembler(timeout time.Duration, maxChunks int) *Assembler {
	if timeout <= 0 {
		timeout = DefaultChunkTimeout
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	return &Assembler{
		timeout:   timeout,
		maxChunks: maxChunks,
		now:       time.Now,
		pending:   make(map[string]*partialMessage),
	}
}

// Add stores c. When it completes its message, Add returns the joined
// data and true.
func (a *Assembler) Add(c Chunk) (string, bool, error) {
	if c.Total <= 0 || c.Index < 0 || c.Index >= c.Total {
		return "", false, fmt.Errorf("%w: chunk %d of %d", ErrBadChunk, c.Index, c.Total)
	}
	if c.Total > a.maxChunks {
		return "", false, fmt.Errorf("%w: %d chunks exceeds limit %d", ErrBadChunk, c.Total, a.maxChunks)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.sweepLocked(now)

	msg, ok := a.pending[c.MessageID]
	if !ok {
		if len(a.pending) >= maxPendingMessages {
			a.dropOldestLocked()
		}
		msg = &partialMessage{
			parts:   make([]string, c.Total),
			seen:    make([]bool, c.Total),
			started: now,
		}
		a.pending[c.MessageID] = msg
	}
	if len(msg.parts) != c.Total {
		delete(a.pending, c.MessageID)
		return "", false, fmt.Errorf("%w: message %s changed chunk count", ErrBadChunk, c.MessageID)
	}
	if !msg.seen[c.Index] {
		msg.seen[c.Index] = true
		msg.received++
	}
	msg.parts[c.Index] = c.Data

	if msg.received < c.Total {
		return "", false, nil
	}
	delete(a.pending, c.MessageID)
	return strings.Join(msg.parts, ""), true, nil
}

// Sweep discards incomplete messages that have outlived the timeout and
// returns how many were dropped.
func (a *Assembler) Sweep() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sweepLocked(a.now())
}

func (a *Assembler) sweepLocked(now time.Time) int {
	n := 0
	for id, msg := range a.pending {
		if now.Sub(msg.started) >= a.timeout {
			delete(a.pending, id)
			n++
		}
	}
	a.expired += n
	return n
}

func (a *Assembler) dropOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, msg := range a.pending {
		if oldestID == "" || msg.started.Before(oldest) {
			oldestID, oldest = id, msg.started
		}
	}
	delete(a.pending, oldestID)
	a.expired++
}

// Pending returns the number of incomplete messages held.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Expired returns the number of messages discarded as incomplete.
func (a *Assembler) Expired() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expired
}
