package skills

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is the delay before reacting to store directory changes.
const watchDebounce = 500 * time.Millisecond

// WatchedStore is the slice of the file store the watcher needs.
type WatchedStore interface {
	Root() string
	BumpVersion()
}

// Watcher monitors the file store root for externally edited skill records
// and bumps the store version so cached listings notice the change.
type Watcher struct {
	store  WatchedStore
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
}

// NewWatcher creates a store directory watcher.
func NewWatcher(s WatchedStore) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{store: s, fsw: fsw}, nil
}

// Start begins watching the store root. A missing directory is fine; it will
// be picked up the next time Start is called after the first write.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.store.Root()); err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("skill watcher: cannot watch store root", "path", w.store.Root(), "error", err)
		}
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop halts the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.fsw.Close()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("skill watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Only .json records matter; ignore temp files from atomic writes.
	name := event.Name
	if !strings.HasSuffix(name, ".json") {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = true
	if w.timer == nil {
		w.timer = time.AfterFunc(watchDebounce, w.flush)
	} else {
		w.timer.Reset(watchDebounce)
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	changed := w.pending
	w.pending = false
	w.mu.Unlock()

	if changed {
		w.store.BumpVersion()
		slog.Debug("skill store changed on disk")
	}
}
