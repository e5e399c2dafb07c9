package gbuf

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is the default debounce interval for file watch events.
const DefaultWatchDebounce = 500 * time.Millisecond

// configWatcher calls onReload after the configuration file changes.
// It watches the parent directory so editors that save by renaming a
// temporary file over the original are seen too.
type configWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onReload func() error
	onError  func(error)
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func newConfigWatcher(path string, debounce time.Duration, onReload func() error, onError func(error)) (*configWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	cw := &configWatcher{
		watcher:  watcher,
		path:     path,
		debounce: debounce,
		onReload: onReload,
		onError:  onError,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go cw.loop()
	return cw, nil
}

// Close stops the watcher and waits for its goroutine.
func (cw *configWatcher) Close() {
	cw.once.Do(func() { close(cw.stop) })
	<-cw.done
}

func (cw *configWatcher) loop() {
	defer close(cw.done)
	defer cw.watcher.Close()

	absPath, _ := filepath.Abs(cw.path)
	baseName := filepath.Base(cw.path)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-cw.stop:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			eventAbs, _ := filepath.Abs(event.Name)
			if filepath.Base(event.Name) != baseName && eventAbs != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(cw.debounce)
			fire = timer.C

		case <-fire:
			timer, fire = nil, nil
			if err := cw.onReload(); err != nil && cw.onError != nil {
				cw.onError(err)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			if cw.onError != nil {
				cw.onError(err)
			}
		}
	}
}
