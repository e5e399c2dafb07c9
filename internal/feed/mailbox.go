package feed

import (
	"context"
	"sync"

	"github.com/opd-ai/go-gbuf/internal/command"
)

// Mailbox holds the most recent undelivered envelope. Put never blocks;
// a payload that arrives before the previous one was taken replaces it.
type Mailbox struct {
	mu      sync.Mutex
	env     command.Envelope
	full    bool
	dropped uint64
	ready   chan struct{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Put stores env, replacing any envelope not yet taken.
func (m *Mailbox) Put(env command.Envelope) {
	m.mu.Lock()
	if m.full {
		m.dropped++
	}
	m.env = env
	m.full = true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Next takes the pending envelope without blocking.
func (m *Mailbox) Next() (command.Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return command.Envelope{}, false
	}
	env := m.env
	m.env = command.Envelope{}
	m.full = false
	return env, true
}

// Wait blocks until an envelope is available or ctx is done.
func (m *Mailbox) Wait(ctx context.Context) (command.Envelope, error) {
	for {
		if env, ok := m.Next(); ok {
			return env, nil
		}
		select {
		case <-m.ready:
		case <-ctx.Done():
			return command.Envelope{}, ctx.Err()
		}
	}
}

// Ready is signalled after each Put.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Dropped returns how many envelopes were replaced before being taken.
func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
