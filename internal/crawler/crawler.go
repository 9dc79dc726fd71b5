// Package crawler orchestrates a crawl run: walk the root, classify
// every file against recorded state, extract and build documents for
// the changed ones, batch them to the index store, and settle crawl
// state from the acknowledged outcomes.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fscrawl/fscrawl/internal/builder"
	"github.com/fscrawl/fscrawl/internal/bulk"
	"github.com/fscrawl/fscrawl/internal/client"
	"github.com/fscrawl/fscrawl/internal/config"
	"github.com/fscrawl/fscrawl/internal/detect"
	"github.com/fscrawl/fscrawl/internal/extract"
	"github.com/fscrawl/fscrawl/internal/scanner"
	"github.com/fscrawl/fscrawl/internal/state"
)

// Result summarizes one crawl run.
type Result struct {
	// Indexed and Deleted count operations acknowledged by the store.
	Indexed int
	Deleted int

	// Unchanged counts files skipped by change detection.
	Unchanged int

	// Skipped counts files that could not be read or extracted.
	Skipped int

	// Retried counts operation resubmissions.
	Retried int

	// Unsettled counts operations whose fate the run never learned,
	// typically because the destination went away mid-run. They stay
	// uncommitted and are revisited on the next run.
	Unsettled int

	// Failures lists operations the store permanently refused.
	Failures []bulk.Failure
}

// Crawler runs crawls of one configured job. Safe to reuse across
// runs; each Run builds its own pipeline.
type Crawler struct {
	cfg       *config.Config
	store     *state.Store
	client    *client.Client
	scanner   *scanner.Scanner
	extractor extract.Extractor
	builder   *builder.Builder
	logger    *slog.Logger
}

// New wires a crawler from its parts. The store and client are owned
// by the caller.
func New(cfg *config.Config, store *state.Store, cl *client.Client, logger *slog.Logger) (*Crawler, error) {
	digest, err := builder.NewDigest(cfg.FS.Checksum)
	if err != nil {
		return nil, err
	}
	sc, err := scanner.New()
	if err != nil {
		return nil, err
	}

	return &Crawler{
		cfg:     cfg,
		store:   store,
		client:  cl,
		scanner: sc,
		builder: builder.New(builder.Config{
			RootID:       cfg.Name,
			IndexedChars: cfg.FS.IndexedChars,
			Digest:       digest,
		}),
		extractor: extract.NewRouter(),
		logger:    logger,
	}, nil
}

// Run performs one full crawl. It returns the run summary together
// with the first fatal error, if any; the summary is valid either way
// and reflects what was settled before the run stopped.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	prior, err := c.store.Load(ctx, c.cfg.Name)
	if err != nil {
		return nil, err
	}

	run := newRun(c, prior)
	return run.execute(ctx)
}

// run is the per-execution pipeline state.
type run struct {
	c     *Crawler
	prior map[string]*state.Entry
	coord *bulk.Coordinator
	batch *bulk.Batcher

	mu        sync.Mutex
	seen      map[string]struct{}
	unchanged int
	skipped   int
	fatal     error

	cancel context.CancelFunc
}

func newRun(c *Crawler, prior map[string]*state.Entry) *run {
	r := &run{
		c:     c,
		prior: prior,
		seen:  make(map[string]struct{}),
	}
	r.batch = bulk.NewBatcher(c.cfg.Output.BulkSize, c.cfg.Output.FlushInterval.Std(), r.submit, c.logger)
	r.coord = bulk.NewCoordinator(c.store, c.cfg.Name, r.batch.Add, c.cfg.Output.MaxRetries, c.logger)
	return r
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.cancel = cancel

	r.batch.Start(ctx)

	results, err := r.c.scanner.Scan(ctx, &scanner.Options{
		RootDir:         r.c.cfg.FS.Root,
		IncludePatterns: r.c.cfg.FS.Includes,
		ExcludePatterns: r.c.cfg.FS.Excludes,
		MaxFileSize:     r.c.cfg.FS.MaxFileSize,
		FollowSymlinks:  r.c.cfg.FS.FollowSymlinks,
	})
	if err != nil {
		r.batch.Stop()
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for res := range results {
		if res.Error != nil {
			r.c.logger.Warn("walk error", slog.String("error", res.Error.Error()))
			r.markSkipped()
			continue
		}
		entry := res.Entry
		g.Go(func() error {
			r.processFile(gctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	// Everything recorded but not seen this walk is gone from disk.
	if ctx.Err() == nil {
		stale := detect.StalePaths(r.prior, r.snapshotSeen())
		for _, path := range stale {
			r.batch.Add(bulk.Delete(path))
		}
		if len(stale) > 0 {
			r.c.logger.Info("removing vanished files", slog.Int("count", len(stale)))
		}
	}

	r.batch.Stop()

	stats := r.coord.Stats()
	result := &Result{
		Indexed:   stats.Indexed,
		Deleted:   stats.Deleted,
		Unchanged: r.unchanged,
		Skipped:   r.skipped,
		Retried:   stats.Retried,
		Unsettled: stats.Unsettled,
		Failures:  stats.Failures,
	}

	// Caller cancellation is not a run failure; state already
	// reflects everything acknowledged before the stop.
	r.mu.Lock()
	fatal := r.fatal
	r.mu.Unlock()
	return result, fatal
}

// processFile classifies one file and enqueues an index operation if
// its content changed. Extraction failures are logged and skipped; a
// broken file must not abort the crawl.
func (r *run) processFile(ctx context.Context, entry *scanner.FileEntry) {
	if ctx.Err() != nil {
		return
	}
	r.markSeen(entry.RealPath)

	data, err := os.ReadFile(entry.RealPath)
	if err != nil {
		r.c.logger.Warn("failed to read file",
			slog.String("path", entry.RealPath), slog.String("error", err.Error()))
		r.markSkipped()
		return
	}

	checksum := r.c.builder.Checksum(data)
	if detect.Classify(entry.ModTime, checksum, r.prior[entry.RealPath]) == detect.Unchanged {
		r.markUnchanged()
		return
	}

	extracted, err := r.c.extractor.Extract(ctx, entry.RealPath, data)
	if err != nil {
		var xerr *extract.Error
		if errors.As(err, &xerr) {
			r.c.logger.Debug("file not extractable",
				slog.String("path", entry.RealPath), slog.String("reason", xerr.Reason))
		} else {
			r.c.logger.Warn("extraction failed",
				slog.String("path", entry.RealPath), slog.String("error", err.Error()))
		}
		r.markSkipped()
		return
	}

	doc := r.c.builder.Build(entry, data, extracted)
	r.batch.Add(bulk.Index(doc, checksum, entry.ModTime))
}

// submit runs the send cycle for one sealed batch: encode, transport,
// reconcile, settle. Fatal coordinator verdicts stop the whole run.
func (r *run) submit(ctx context.Context, ops []*bulk.Operation) {
	payload, err := bulk.EncodeBatch(r.c.cfg.Output.Index, ops)
	if err != nil {
		r.fail(fmt.Errorf("failed to encode batch: %w", err))
		return
	}

	raw, err := r.c.client.Bulk(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		kind := bulk.TransportConnection
		var terr *client.Error
		if errors.As(err, &terr) {
			kind = terr.Kind
		}
		if ferr := r.coord.OnTransportFailure(ops, kind, err); ferr != nil {
			r.fail(ferr)
		}
		return
	}

	out, err := bulk.Reconcile(r.c.logger, ops, raw)
	if err != nil {
		if ferr := r.coord.OnTransportFailure(ops, bulk.TransportProtocol, err); ferr != nil {
			r.fail(ferr)
		}
		return
	}

	if ferr := r.coord.OnOutcome(ctx, out); ferr != nil && ctx.Err() == nil {
		r.fail(ferr)
	}
}

// fail records the first fatal error and cancels the run.
func (r *run) fail(err error) {
	r.mu.Lock()
	if r.fatal == nil {
		r.fatal = err
	}
	r.mu.Unlock()
	r.c.logger.Error("crawl aborted", slog.String("error", err.Error()))
	r.cancel()
}

func (r *run) markSeen(path string) {
	r.mu.Lock()
	r.seen[path] = struct{}{}
	r.mu.Unlock()
}

func (r *run) markUnchanged() {
	r.mu.Lock()
	r.unchanged++
	r.mu.Unlock()
}

func (r *run) markSkipped() {
	r.mu.Lock()
	r.skipped++
	r.mu.Unlock()
}

func (r *run) snapshotSeen() map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(r.seen))
	for k := range r.seen {
		seen[k] = struct{}{}
	}
	return seen
}
