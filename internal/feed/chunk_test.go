package feed

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAssemblerOutOfOrder(t *testing.T) {
	a := NewAssembler(0, 0)

	parts := []Chunk{
		{MessageID: "m1", Index: 2, Total: 3, Data: "baz"},
		{MessageID: "m1", Index: 0, Total: 3, Data: "foo"},
		{MessageID: "m1", Index: 1, Total: 3, Data: "bar"},
	}
	for i, c := range parts {
		whole, done, err := a.Add(c)
		if err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
		if i < 2 && done {
			t.Fatalf("message completed early at chunk %d", i)
		}
		if i == 2 {
			if !done || whole != "foobarbaz" {
				t.Errorf("whole = %q, done = %v", whole, done)
			}
		}
	}
	if a.Pending() != 0 {
		t.Errorf("Pending() = %d", a.Pending())
	}
}

func TestAssemblerDuplicateChunk(t *testing.T) {
	a := NewAssembler(0, 0)
	_, _, _ = a.Add(Chunk{MessageID: "m", Index: 0, Total: 2, Data: "a"})
	_, done, _ := a.Add(Chunk{MessageID: "m", Index: 0, Total: 2, Data: "a"})
	if done {
		t.Error("duplicate chunk completed the message")
	}
	whole, done, _ := a.Add(Chunk{MessageID: "m", Index: 1, Total: 2, Data: "b"})
	if !done || whole != "ab" {
		t.Errorf("whole = %q, done = %v", whole, done)
	}
}

func TestAssemblerInvalid(t *testing.T) {
	a := NewAssembler(0, 0)
	tests := []Chunk{
		{MessageID: "x", Index: 0, Total: 0},
		{MessageID: "x", Index: 3, Total: 2},
		{MessageID: "x", Index: -1, Total: 2},
	}
	for _, c := range tests {
		if _, _, err := a.Add(c); !errors.Is(err, ErrBadChunk) {
			t.Errorf("Add(%+v) error = %v, want ErrBadChunk", c, err)
		}
	}

	_, _, _ = a.Add(Chunk{MessageID: "y", Index: 0, Total: 2})
	if _, _, err := a.Add(Chunk{MessageID: "y", Index: 1, Total: 3}); !errors.Is(err, ErrBadChunk) {
		t.Errorf("changed total: error = %v", err)
	}
	if a.Pending() != 0 {
		t.Errorf("inconsistent message should be dropped, Pending() = %d", a.Pending())
	}
}

func TestAssemblerTimeout(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAssembler(30*time.Second, 0)
	a.now = func() time.Time { return now }

	_, _, _ = a.Add(Chunk{MessageID: "old", Index: 0, Total: 2, Data: "x"})
	now = now.Add(29 * time.Second)
	if n := a.Sweep(); n != 0 {
		t.Errorf("swept %d before timeout", n)
	}

	now = now.Add(time.Second)
	if n := a.Sweep(); n != 1 {
		t.Errorf("swept %d, want 1", n)
	}
	if a.Expired() != 1 || a.Pending() != 0 {
		t.Errorf("Expired() = %d Pending() = %d", a.Expired(), a.Pending())
	}

	// The late second half starts a fresh, incomplete message.
	if _, done, _ := a.Add(Chunk{MessageID: "old", Index: 1, Total: 2, Data: "y"}); done {
		t.Error("expired message should not complete")
	}
}

func TestAssemblerChunkLimit(t *testing.T) {
	a := NewAssembler(0, 0)
	if _, _, err := a.Add(Chunk{MessageID: "m", Index: 0, Total: 1 << 40, Data: "x"}); !errors.Is(err, ErrBadChunk) {
		t.Errorf("oversized total: error = %v, want ErrBadChunk", err)
	}
	if _, _, err := a.Add(Chunk{MessageID: "m", Index: 0, Total: DefaultMaxChunks + 1}); !errors.Is(err, ErrBadChunk) {
		t.Errorf("total above default limit: error = %v, want ErrBadChunk", err)
	}
	if a.Pending() != 0 {
		t.Errorf("rejected headers should not be held, Pending() = %d", a.Pending())
	}

	small := NewAssembler(0, 2)
	if _, _, err := small.Add(Chunk{MessageID: "m", Index: 0, Total: 3}); !errors.Is(err, ErrBadChunk) {
		t.Errorf("total above custom limit: error = %v", err)
	}
	if _, _, err := small.Add(Chunk{MessageID: "m", Index: 0, Total: 2, Data: "ok"}); err != nil {
		t.Errorf("total at limit: error = %v", err)
	}
}

func TestAssemblerPendingLimit(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAssembler(time.Hour, 0)
	a.now = func() time.Time { return now }

	for i := 0; i <= maxPendingMessages; i++ {
		now = now.Add(time.Millisecond)
		if _, _, err := a.Add(Chunk{MessageID: fmt.Sprintf("m%d", i), Index: 0, Total: 2}); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	if a.Pending() != maxPendingMessages {
		t.Errorf("Pending() = %d, want %d", a.Pending(), maxPendingMessages)
	}
	if a.Expired() != 1 {
		t.Errorf("Expired() = %d, want 1", a.Expired())
	}
	// m0 was the oldest and was dropped, so its second half starts over.
	if _, done, _ := a.Add(Chunk{MessageID: "m0", Index: 1, Total: 2, Data: "y"}); done {
		t.Error("dropped message should not complete")
	}
}
