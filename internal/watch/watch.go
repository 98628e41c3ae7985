// Package watch implements forge's source-update feed: an fsnotify-backed
// watcher that, once write/create events for a path settle, looks it up in a
// graph.Store and advances the timestamp of the matching source artifact,
// then notifies a caller-supplied rebuild callback.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"forge/internal/graph"
	"forge/internal/logging"
)

// Stats tracks watcher activity, useful for diagnostics and tests.
type Stats struct {
	EventsSeen     int
	SourcesUpdated int
	Errors         int
}

// Watcher watches a set of directories and feeds path-change events into a
// graph.Store's source artifacts, debouncing rapid-fire events per path and
// invoking OnChange once a batch settles.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	store    *graph.Store
	debounce time.Duration

	// OnChange is called with every path of a settled batch (debounce
	// window elapsed) when at least one source in it updated. May be nil.
	OnChange func(paths []string)

	pending map[string]time.Time
	stats   Stats

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New creates a Watcher over store with the given debounce window.
func New(store *graph.Store, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fsw,
		store:    store,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Add registers a directory to watch.
func (w *Watcher) Add(dir string) error {
	return w.watcher.Add(dir)
}

// Start begins watching in a background goroutine. It is non-blocking.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop halts the watcher and waits for its goroutine to exit.
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

// Stats returns a snapshot of the watcher's activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("watch error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	logging.WatchDebug("event %s for %s", ev.Op, ev.Name)

	w.mu.Lock()
	w.stats.EventsSeen++
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, seen := range w.pending {
		if now.Sub(seen) >= w.debounce {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	if len(settled) == 0 {
		return
	}

	entries := make(map[string]*time.Time, len(settled))
	for _, p := range settled {
		entries[p] = nil
	}
	changed, err := w.store.UpdateSources(entries)
	if err != nil {
		logging.Get(logging.CategoryWatch).Error("update sources: %v", err)
	}
	if changed {
		w.mu.Lock()
		w.stats.SourcesUpdated += len(settled)
		w.mu.Unlock()
		if w.OnChange != nil {
			w.OnChange(settled)
		}
	}
}
