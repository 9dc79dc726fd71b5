// Package watcher emits debounced filesystem change batches for watch
// mode. Raw inotify events are noisy (editors write temp files, a save
// can be four events), so everything passes through a coalescing
// debouncer before it reaches the crawler.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Kind classifies a coalesced filesystem event.
type Kind int

const (
	Create Kind = iota
	Modify
	Delete
)

func (k Kind) String() string {
	switch k {
	case Create:
		return "create"
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is one coalesced change.
type Event struct {
	// Path is absolute.
	Path string
	Kind Kind
}

// Watcher watches a directory tree recursively and emits debounced
// event batches. Directories created while watching are added to the
// watch set as they appear.
type Watcher struct {
	root   string
	fsw    *fsnotify.Watcher
	deb    *debouncer
	logger *slog.Logger
}

// New creates a watcher over root. window is the debounce interval.
func New(root string, window time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	w := &Watcher{
		root:   root,
		fsw:    fsw,
		deb:    newDebouncer(window),
		logger: logger,
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start pumps raw events into the debouncer until the context ends.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Batches returns the channel of debounced event batches.
func (w *Watcher) Batches() <-chan []Event {
	return w.deb.output()
}

// Close stops watching and closes the batch channel.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	w.deb.stop()
	return err
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create):
		// New directories must join the watch set before anything
		// inside them changes.
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory",
					slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			return
		}
		w.deb.add(Event{Path: ev.Name, Kind: Create})
	case ev.Has(fsnotify.Write):
		w.deb.add(Event{Path: ev.Name, Kind: Modify})
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A rename looks like a remove at the old path; the create at
		// the new path arrives as its own event.
		w.deb.add(Event{Path: ev.Name, Kind: Delete})
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
