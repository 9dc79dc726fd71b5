package bulk

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SubmitFunc sends one sealed batch to the destination. It owns the
// full submit cycle for the batch: encoding, transport, reconciliation
// and requeueing of retryable operations. Batches are submitted
// serially; a new batch is never dispatched while one is in flight.
type SubmitFunc func(ctx context.Context, ops []*Operation)

// Batcher accumulates operations into batches and hands sealed
// batches to a single sender goroutine. Add never blocks on the
// network: producers only touch the buffer under a mutex, while the
// run loop drains sealed batches in the background.
type Batcher struct {
	size     int
	interval time.Duration
	submit   SubmitFunc
	logger   *slog.Logger

	mu      sync.Mutex
	buf     []*Operation
	pending [][]*Operation

	wake   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewBatcher creates a batcher that seals a batch when it reaches
// size operations or when interval elapses with work buffered,
// whichever comes first. A size of zero disables the count threshold
// and an interval of zero disables the timer.
func NewBatcher(size int, interval time.Duration, submit SubmitFunc, logger *slog.Logger) *Batcher {
	return &Batcher{
		size:     size,
		interval: interval,
		submit:   submit,
		logger:   logger,
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sender loop. The context cancels in-flight
// submissions and stops the loop.
func (b *Batcher) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		go b.run(ctx)
	})
}

// Add appends operations to the current batch. Operations passed in a
// single call are kept in one batch so that ordered sequences for the
// same document id are never torn across two submissions; if they do
// not fit in the space left, the current buffer is sealed early.
func (b *Batcher) Add(ops ...*Operation) {
	if len(ops) == 0 {
		return
	}
	b.mu.Lock()
	if b.size > 0 && len(b.buf) > 0 && len(b.buf)+len(ops) > b.size {
		b.sealLocked()
	}
	b.buf = append(b.buf, ops...)
	for b.size > 0 && len(b.buf) >= b.size {
		rest := b.buf[b.size:]
		b.buf = b.buf[:b.size:b.size]
		b.sealLocked()
		b.buf = append(b.buf, rest...)
	}
	b.mu.Unlock()
}

// Flush seals whatever is buffered, if anything. An empty buffer is a
// no-op and produces no submission.
func (b *Batcher) Flush() {
	b.mu.Lock()
	b.sealLocked()
	b.mu.Unlock()
}

// Stop seals and drains all remaining work, including operations
// requeued by submissions that happen during the drain, then stops
// the sender loop. It blocks until the loop has exited.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.doneCh
}

// sealLocked moves the buffer onto the pending queue and signals the
// sender. Callers hold b.mu.
func (b *Batcher) sealLocked() {
	if len(b.buf) == 0 {
		return
	}
	b.pending = append(b.pending, b.buf)
	b.buf = nil
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Batcher) pop() []*Operation {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	batch := b.pending[0]
	b.pending = b.pending[1:]
	return batch
}

func (b *Batcher) run(ctx context.Context) {
	defer close(b.doneCh)

	var tick <-chan time.Time
	if b.interval > 0 {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			b.Flush()
			b.drain(ctx)
		case <-b.wake:
			b.drain(ctx)
		case <-b.stopCh:
			b.drainAll(ctx)
			return
		}
	}
}

// drain submits pending batches one at a time.
func (b *Batcher) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		batch := b.pop()
		if batch == nil {
			return
		}
		b.logger.Debug("submitting batch", slog.Int("operations", len(batch)))
		b.submit(ctx, batch)
	}
}

// drainAll repeats flush-and-drain until no work remains, so that
// retries requeued during the final submissions are themselves sent.
func (b *Batcher) drainAll(ctx context.Context) {
	for {
		b.Flush()
		b.mu.Lock()
		empty := len(b.pending) == 0
		b.mu.Unlock()
		if empty || ctx.Err() != nil {
			return
		}
		b.drain(ctx)
	}
}
