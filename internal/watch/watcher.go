package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"cellscript/internal/logging"
	"cellscript/internal/session"
	"cellscript/internal/store"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Applied reports one processed version of the workbook file.
type Applied struct {
	Names   []NameChange
	Changes []Change
	Err     error
}

// Watcher re-reads a workbook file whenever it changes on disk and applies
// the difference to a Workbook. All workbook calls happen on one goroutine.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	fs          afero.Fs
	wb          *session.Workbook
	path        string
	dir         string
	current     *store.Document
	debounceDur time.Duration
	onApplied   func(Applied)

	pending  time.Time
	dirty    bool
	running  bool
	stopCh   chan struct{}
	group    *errgroup.Group
	triggerC chan struct{}

	stats Stats
}

// Stats tracks watcher activity.
type Stats struct {
	Events   int
	Versions int
	Changes  int
	Errors   int
}

// Options tunes a Watcher.
type Options struct {
	Debounce  time.Duration
	OnApplied func(Applied)
}

// New creates a watcher for the workbook file at path. The file is read
// through fs; change notifications come from the OS.
func New(fs afero.Fs, path string, wb *session.Workbook, opts Options) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{
		watcher:     w,
		fs:          fs,
		wb:          wb,
		path:        abs,
		dir:         filepath.Dir(abs),
		current:     store.NewDocument(),
		debounceDur: opts.Debounce,
		onApplied:   opts.OnApplied,
		stopCh:      make(chan struct{}),
		triggerC:    make(chan struct{}, 1),
	}, nil
}

// Sync reads the file now and applies whatever changed since the last
// version. It must not be called while the watcher is running.
func (w *Watcher) Sync() Applied {
	next, err := store.ReadDocument(w.fs, w.path)
	if err != nil {
		logging.WatchError("failed to read %s: %v", w.path, err)
		w.count(func(s *Stats) { s.Errors++ })
		return Applied{Err: err}
	}

	applied := Applied{
		Names:   DiffNames(w.current, next),
		Changes: Diff(w.current, next),
	}
	w.current = next
	if len(applied.Names) == 0 && len(applied.Changes) == 0 {
		logging.WatchDebug("%s: no changes", w.path)
		return applied
	}

	logging.Watch("%s: applying %d cell changes, %d name changes", w.path, len(applied.Changes), len(applied.Names))
	applied.Err = Apply(w.wb, applied.Names, applied.Changes)
	if applied.Err != nil {
		logging.WatchError("%s: %v", w.path, applied.Err)
	}
	w.count(func(s *Stats) {
		s.Versions++
		s.Changes += len(applied.Changes)
		if applied.Err != nil {
			s.Errors++
		}
	})
	return applied
}

// Start applies the current file, then watches it until ctx is done or Stop
// is called. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Editors often replace the file, so watch its directory.
	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.watcher.Close()
		return err
	}
	logging.Watch("watching %s", w.path)

	w.report(w.Sync())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.events(gctx) })
	g.Go(func() error { return w.apply(gctx) })
	w.group = g
	return nil
}

// Stop ends the watch, waits for both loops to exit and releases the
// notifier. Call it even if Start was never called.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	err := w.group.Wait()
	if cerr := w.watcher.Close(); cerr != nil {
		logging.WatchError("error closing watcher: %v", cerr)
	}
	logging.Watch("stopped watching %s", w.path)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// events turns file notifications into debounced triggers.
func (w *Watcher) events(ctx context.Context) error {
	ticker := time.NewTicker(w.debounceDur / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logging.WatchDebug("%s event for %s", event.Op, event.Name)
			w.mu.Lock()
			w.stats.Events++
			w.pending = time.Now()
			w.dirty = true
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.WatchError("watcher error: %v", err)
			w.count(func(s *Stats) { s.Errors++ })

		case <-ticker.C:
			w.mu.Lock()
			settled := w.dirty && time.Since(w.pending) >= w.debounceDur
			if settled {
				w.dirty = false
			}
			w.mu.Unlock()
			if settled {
				select {
				case w.triggerC <- struct{}{}:
				default:
				}
			}
		}
	}
}

// apply is the only goroutine that touches the workbook while running.
func (w *Watcher) apply(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-w.triggerC:
			w.report(w.Sync())
		}
	}
}

func (w *Watcher) report(a Applied) {
	if w.onApplied != nil {
		w.onApplied(a)
	}
}

func (w *Watcher) count(update func(*Stats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	update(&w.stats)
}
