// Package detect classifies filesystem entries against previously
// recorded crawl state to decide what work a crawl actually has to do.
package detect

import (
	"time"

	"github.com/fscrawl/fscrawl/internal/state"
)

// Classification is the change-detection verdict for one file.
type Classification int

const (
	// New means no prior state exists for the file.
	New Classification = iota
	// Updated means the file content changed since the last commit.
	Updated
	// Unchanged means the file can be skipped entirely: no document
	// is built and no bulk operation is queued.
	Unchanged
)

// String returns a human-readable representation of the classification.
func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Classify compares a live file against its prior state.
//
// Checksum comparison takes precedence over modification time: a file
// touched without a content change must stay Unchanged, and clock skew
// must not trigger reprocessing. The mtime fallback applies only when
// checksums are unavailable on either side (checksumming disabled, or
// the prior entry predates it).
func Classify(modTime time.Time, checksum string, prior *state.Entry) Classification {
	if prior == nil {
		return New
	}

	if checksum != "" && prior.Checksum != "" {
		if checksum != prior.Checksum {
			return Updated
		}
		return Unchanged
	}

	if modTime.After(prior.LastModified) {
		return Updated
	}
	return Unchanged
}

// StalePaths returns the recorded real paths with no live counterpart,
// in other words the files deleted from disk since the last crawl.
// seen holds the real paths encountered during the walk.
func StalePaths(recorded map[string]*state.Entry, seen map[string]struct{}) []string {
	var stale []string
	for realPath := range recorded {
		if _, ok := seen[realPath]; !ok {
			stale = append(stale, realPath)
		}
	}
	return stale
}
