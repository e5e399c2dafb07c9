package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewFileRequiresPath(t *testing.T) {
	if _, err := NewFile(FileOptions{}); !errors.Is(err, ErrNoPath) {
		t.Errorf("error = %v, want ErrNoPath", err)
	}
}

func TestFileDeliversAndWatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.json")
	first := `{"commands":[{"cmd":"gsave","args":[]}]}`
	if err := os.WriteFile(path, []byte(first), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := NewFile(FileOptions{Path: path, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	mb := NewMailbox()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, mb) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	env := waitEnvelope(t, mb)
	if env.Name != "frame.json" {
		t.Errorf("Name = %q", env.Name)
	}
	if b, ok := env.Data.([]byte); !ok || string(b) != first {
		t.Errorf("Data = %#v", env.Data)
	}

	second := `{"commands":[{"cmd":"grestore","args":[]}]}`
	if err := os.WriteFile(path, []byte(second), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		env = waitEnvelope(t, mb)
		if b, _ := env.Data.([]byte); string(b) == second {
			return
		}
	}
	t.Error("changed file was not delivered")
}

func TestFileCreatedLater(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.json")

	f, err := NewFile(FileOptions{Path: path, Name: "graphics/main", Debounce: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	mb := NewMailbox()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx, mb)

	time.Sleep(50 * time.Millisecond)
	if _, ok := mb.Next(); ok {
		t.Fatal("missing file should not deliver")
	}
	if err := os.WriteFile(path, []byte(`{"commands":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if env := waitEnvelope(t, mb); env.Name != "graphics/main" {
		t.Errorf("Name = %q", env.Name)
	}
}

func TestFileMissingDirectory(t *testing.T) {
	f, err := NewFile(FileOptions{Path: filepath.Join(t.TempDir(), "no", "such", "frame.json")})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := f.Run(context.Background(), NewMailbox()); err == nil {
		t.Error("expected error for missing directory")
	}
}
