// internal/watch/watcher.go
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var skipDirs = map[string]bool{
	".git":         true,
	".changeview":  true,
	"node_modules": true,
	"vendor":       true,
}

// Watcher observes a working tree and invokes a callback once events
// settle, so a burst of filesystem activity triggers a single rebuild of
// the changes tree.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func()
	logger   *zap.Logger
	done     chan struct{}
}

// New starts watching every directory under root. onChange runs on the
// watcher goroutine after debounce of quiet time.
func New(root string, debounce time.Duration, onChange func(), logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		watcher:  fsw,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("adding directories to watcher: %w", err)
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			w.onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

// handleEvent keeps newly created directories under watch.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == 0 {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() || skipDirs[info.Name()] {
		return
	}
	if err := w.watcher.Add(event.Name); err != nil {
		w.logger.Error("adding new directory to watcher", zap.Error(err))
	}
}

// Close stops the watcher goroutine and releases the OS watches.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
