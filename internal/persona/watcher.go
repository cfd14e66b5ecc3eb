package persona

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"parley/internal/logging"
)

// Watcher reloads the registry's YAML persona directory when files change.
// Rapid saves are debounced so an editor writing in chunks triggers one
// reload, not several.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher

	mu          sync.Mutex
	pending     bool
	lastEvent   time.Time
	debounceDur time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for the registry's persona directory.
func NewWatcher(registry *Registry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		registry:    registry,
		watcher:     fsw,
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
// A missing directory is tolerated and retried on Start of a later run.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.registry.dir); err != nil {
		logging.Get(logging.CategorySession).Warn("persona watch failed (dir may not exist): %v", err)
	} else {
		logging.Session("watching persona directory %s", w.registry.dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isYAML(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = true
			w.lastEvent = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategorySession).Error("persona watcher: %v", err)

		case <-ticker.C:
			w.mu.Lock()
			settle := w.pending && time.Since(w.lastEvent) >= w.debounceDur
			if settle {
				w.pending = false
			}
			w.mu.Unlock()
			if settle {
				if err := w.registry.ReloadDir(); err != nil {
					logging.Get(logging.CategorySession).Error("persona reload failed: %v", err)
				}
			}
		}
	}
}
