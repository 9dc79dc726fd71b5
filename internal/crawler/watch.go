package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/fscrawl/fscrawl/internal/watcher"
)

// watchDebounce coalesces editor event bursts before a rescan fires.
const watchDebounce = 2 * time.Second

// Watch runs an initial crawl and then keeps the index in sync:
// filesystem events trigger a rescan, and a full pass runs every
// update interval regardless, catching anything the event stream
// missed. Change detection makes repeat scans cheap, so a rescan of an
// unchanged tree submits nothing.
func (c *Crawler) Watch(ctx context.Context) error {
	if _, err := c.Run(ctx); err != nil {
		return err
	}

	w, err := watcher.New(c.cfg.FS.Root, watchDebounce, c.logger)
	if err != nil {
		return err
	}
	defer w.Close()
	w.Start(ctx)

	ticker := time.NewTicker(c.cfg.FS.UpdateRate.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Batches():
			if !ok {
				return nil
			}
			c.logger.Info("filesystem changes detected", slog.Int("events", len(batch)))
			if _, err := c.Run(ctx); err != nil {
				return err
			}
		case <-ticker.C:
			c.logger.Debug("periodic rescan")
			if _, err := c.Run(ctx); err != nil {
				return err
			}
		}
	}
}
