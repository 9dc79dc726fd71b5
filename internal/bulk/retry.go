package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fscrawl/fscrawl/internal/state"
)

// ErrDestinationUnreachable is returned when the destination refuses
// whole batches with connectivity-class errors repeatedly. Retrying
// further would only spin, so the run stops instead.
var ErrDestinationUnreachable = errors.New("bulk destination unreachable")

// ErrAuthRejected is returned when the destination rejects our
// credentials. No amount of retrying fixes that.
var ErrAuthRejected = errors.New("bulk destination rejected credentials")

// FailureClass splits item failures into those worth retrying and
// those that will fail the same way every time.
type FailureClass int

const (
	// Transient failures are load or connectivity conditions that a
	// later attempt may not hit.
	Transient FailureClass = iota
	// Permanent failures are data or mapping problems that resubmitting
	// the same payload cannot fix.
	Permanent
)

// TransportFailure classifies batch-level send errors, where no
// per-item results exist at all.
type TransportFailure int

const (
	// TransportConnection covers refused, reset or unresolvable
	// destinations. Outcomes are unknown; the whole batch is retried.
	TransportConnection TransportFailure = iota
	// TransportTimeout means the request may or may not have been
	// applied. The whole batch is treated as transiently failed.
	TransportTimeout
	// TransportAuth is a credential rejection.
	TransportAuth
	// TransportProtocol covers undecodable or structurally invalid
	// responses.
	TransportProtocol
)

var transientMarkers = []string{
	"timeout",
	"timed out",
	"rejected_execution",
	"es_rejected",
	"circuit_breaking",
	"too_many_requests",
	"connection refused",
	"connection reset",
	"no such host",
	"unavailable",
	"status 429",
	"status 502",
	"status 503",
}

// Classify maps a normalized failure reason to a retry class. Unknown
// reasons are treated as permanent so that bad documents do not cycle
// through the queue forever.
func Classify(reason string) FailureClass {
	lower := strings.ToLower(reason)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return Transient
		}
	}
	return Permanent
}

// Requeuer re-enqueues operations for a later batch.
type Requeuer func(ops ...*Operation)

// Stats is a snapshot of coordinator counters.
type Stats struct {
	Indexed   int
	Deleted   int
	Retried   int
	Failures  []Failure
	Protocol  int
	Unsettled int
}

// Coordinator settles batch outcomes: it commits acknowledged
// operations to crawl state, requeues transient failures within a
// retry budget, records permanent failures for the run report, and
// escalates when the destination looks unreachable.
type Coordinator struct {
	store      *state.Store
	rootID     string
	requeue    Requeuer
	maxRetries int
	logger     *slog.Logger
	now        func() time.Time

	mu          sync.Mutex
	stats       Stats
	unreachable int
}

// NewCoordinator wires a coordinator to the crawl state store and the
// batcher's requeue path. maxRetries bounds both per-operation retries
// and consecutive whole-batch connectivity failures.
func NewCoordinator(store *state.Store, rootID string, requeue Requeuer, maxRetries int, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:      store,
		rootID:     rootID,
		requeue:    requeue,
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
	}
}

// OnOutcome processes a reconciled batch. State is committed only for
// operations the destination acknowledged; everything else stays
// uncommitted so the next run revisits it. The returned error, when
// non-nil, is fatal for the run.
func (c *Coordinator) OnOutcome(ctx context.Context, out *Outcome) error {
	upserts := make([]*state.Entry, 0, len(out.Succeeded))
	deletes := make([]string, 0)
	for _, op := range out.Succeeded {
		switch op.Type {
		case OpIndex:
			upserts = append(upserts, &state.Entry{
				RootID:       c.rootID,
				RealPath:     op.RealPath,
				Checksum:     op.Checksum,
				LastModified: op.ModTime,
				IndexedAt:    c.now(),
			})
		case OpDelete:
			deletes = append(deletes, op.RealPath)
		}
	}
	// A response that already arrived settles even while the run is
	// being cancelled; acknowledged operations must not be lost.
	if err := c.store.Commit(context.WithoutCancel(ctx), c.rootID, upserts, deletes); err != nil {
		return fmt.Errorf("failed to commit crawl state: %w", err)
	}

	c.mu.Lock()
	c.stats.Indexed += len(upserts)
	c.stats.Deleted += len(deletes)
	if len(out.Succeeded) > 0 {
		c.unreachable = 0
	}
	c.mu.Unlock()

	if len(out.Failed) == 0 {
		return nil
	}
	c.logger.Warn("bulk batch partially failed", slog.String("summary", out.Summary()))

	var retry []*Operation
	allConnectivity := len(out.Succeeded) == 0
	for _, f := range out.Failed {
		if Classify(f.Reason) == Permanent {
			allConnectivity = false
			c.recordFailure(f)
			continue
		}
		if !isConnectivityReason(f.Reason) {
			allConnectivity = false
		}
		if f.Op.Attempts >= c.maxRetries {
			c.recordFailure(Failure{
				Op:     f.Op,
				Reason: fmt.Sprintf("retries exhausted after %d attempts: %s", f.Op.Attempts+1, f.Reason),
			})
			continue
		}
		f.Op.Attempts++
		retry = append(retry, f.Op)
	}

	if allConnectivity && len(out.Failed) > 0 {
		if err := c.noteUnreachable(); err != nil {
			return err
		}
	}

	if len(retry) > 0 {
		c.mu.Lock()
		c.stats.Retried += len(retry)
		c.mu.Unlock()
		c.requeue(retry...)
	}
	return nil
}

// OnTransportFailure handles errors where the batch never produced
// per-item results. ops is the batch as submitted.
func (c *Coordinator) OnTransportFailure(ops []*Operation, kind TransportFailure, cause error) error {
	switch kind {
	case TransportAuth:
		return fmt.Errorf("%w: %v", ErrAuthRejected, cause)

	case TransportProtocol:
		c.mu.Lock()
		c.stats.Protocol++
		exhausted := c.stats.Protocol > c.maxRetries
		c.mu.Unlock()
		if exhausted {
			return fmt.Errorf("bulk responses repeatedly malformed: %w", cause)
		}
		c.logger.Warn("malformed bulk response, retrying batch",
			slog.Int("operations", len(ops)), slog.String("error", cause.Error()))
		return c.requeueBatch(ops, cause)

	case TransportTimeout:
		// The request may have been applied. Resubmitting index and
		// delete operations is idempotent, so retry the whole batch
		// rather than guess at its fate.
		c.logger.Warn("bulk request timed out, retrying batch",
			slog.Int("operations", len(ops)))
		return c.requeueBatch(ops, cause)

	case TransportConnection:
		c.logger.Warn("bulk destination unreachable",
			slog.Int("operations", len(ops)), slog.String("error", cause.Error()))
		if err := c.noteUnreachable(); err != nil {
			c.markUnsettled(ops)
			return fmt.Errorf("%w: %v", err, cause)
		}
		return c.requeueBatch(ops, cause)
	}
	return fmt.Errorf("unhandled transport failure %d: %w", kind, cause)
}

// Stats returns a copy of the counters accumulated so far.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.stats
	snap.Failures = append([]Failure(nil), c.stats.Failures...)
	return snap
}

func (c *Coordinator) requeueBatch(ops []*Operation, cause error) error {
	var retry []*Operation
	for _, op := range ops {
		if op.Attempts >= c.maxRetries {
			c.recordFailure(Failure{
				Op:     op,
				Reason: fmt.Sprintf("retries exhausted after %d attempts: %v", op.Attempts+1, cause),
			})
			continue
		}
		op.Attempts++
		retry = append(retry, op)
	}
	if len(retry) > 0 {
		c.mu.Lock()
		c.stats.Retried += len(retry)
		c.mu.Unlock()
		c.requeue(retry...)
	}
	return nil
}

func (c *Coordinator) recordFailure(f Failure) {
	c.mu.Lock()
	c.stats.Failures = append(c.stats.Failures, f)
	c.mu.Unlock()
}

func (c *Coordinator) markUnsettled(ops []*Operation) {
	c.mu.Lock()
	c.stats.Unsettled += len(ops)
	c.mu.Unlock()
}

// noteUnreachable counts consecutive whole-batch connectivity
// failures and escalates once the budget is spent.
func (c *Coordinator) noteUnreachable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unreachable++
	if c.unreachable > c.maxRetries {
		return ErrDestinationUnreachable
	}
	return nil
}

func isConnectivityReason(reason string) bool {
	lower := strings.ToLower(reason)
	for _, marker := range []string{
		"connection refused", "connection reset", "no such host",
		"unavailable", "status 502", "status 503", "timeout", "timed out",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
