package watcher

import (
	"sync"
	"time"
)

// debouncer coalesces events per path within a window. Sequences for
// one path merge by these rules:
//
//	create + modify = create
//	create + delete = nothing (the file never really existed)
//	modify + delete = delete
//	delete + create = modify (the file was replaced)
type debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]Event
	timer   *time.Timer
	out     chan []Event
	stopped bool
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:  window,
		pending: make(map[string]Event),
		out:     make(chan []Event, 8),
	}
}

func (d *debouncer) add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if prior, ok := d.pending[ev.Path]; ok {
		merged, drop := coalesce(prior.Kind, ev.Kind)
		if drop {
			delete(d.pending, ev.Path)
		} else {
			d.pending[ev.Path] = Event{Path: ev.Path, Kind: merged}
		}
	} else {
		d.pending[ev.Path] = ev
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func coalesce(first, second Kind) (merged Kind, drop bool) {
	switch first {
	case Create:
		if second == Delete {
			return 0, true
		}
		return Create, false
	case Delete:
		if second == Create {
			return Modify, false
		}
		return second, false
	default:
		return second, false
	}
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(d.pending))
	for _, ev := range d.pending {
		batch = append(batch, ev)
	}
	d.pending = make(map[string]Event)

	select {
	case d.out <- batch:
	default:
		// The consumer is behind; the batch only triggers a rescan,
		// and one is already queued.
	}
}

func (d *debouncer) output() <-chan []Event {
	return d.out
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}
