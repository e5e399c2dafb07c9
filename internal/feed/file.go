package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opd-ai/go-gbuf/internal/command"
)

// DefaultFileDebounce is how long File waits for writes to settle.
const DefaultFileDebounce = 100 * time.Millisecond

// FileOptions configures a File feed.
type FileOptions struct {
	// Path is the gbuf JSON file.
	Path string
	// Name is the envelope name. Empty uses the file's base name.
	Name string
	// Debounce is the quiet period after a change before the file is re-read.
	Debounce time.Duration
	// Logger receives watch events. Nil discards them.
	Logger *slog.Logger
}

// File delivers the contents of a gbuf file, once at start and again
// every time the file is written or replaced.
type File struct {
	opts   FileOptions
	logger *slog.Logger
}

// NewFile returns a File feed for opts.
func NewFile(opts FileOptions) (*File, error) {
	if opts.Path == "" {
		return nil, ErrNoPath
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(opts.Path)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultFileDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &File{opts: opts, logger: logger.With("feed", "file", "path", opts.Path)}, nil
}

// Run delivers the file and then watches it until ctx is cancelled.
// A file that does not exist yet is delivered once it is created.
func (f *File) Run(ctx context.Context, out *Mailbox) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that save by rename are still seen.
	if err := watcher.Add(filepath.Dir(f.opts.Path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.opts.Path), err)
	}

	if err := f.deliver(out); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("initial read failed", "error", err)
	}

	absPath, _ := filepath.Abs(f.opts.Path)
	baseName := filepath.Base(f.opts.Path)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			eventAbs, _ := filepath.Abs(event.Name)
			if filepath.Base(event.Name) != baseName && eventAbs != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(f.opts.Debounce)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceTimer = nil
			debounceCh = nil
			if err := f.deliver(out); err != nil {
				f.logger.Warn("re-read failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("watch error", "error", err)
		}
	}
}

func (f *File) deliver(out *Mailbox) error {
	data, err := os.ReadFile(f.opts.Path)
	if err != nil {
		return err
	}
	out.Put(command.Envelope{Name: f.opts.Name, Data: data})
	f.logger.Debug("delivered", "bytes", len(data))
	return nil
}
