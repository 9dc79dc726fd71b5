// Package scanner discovers crawlable files under a crawl root.
// It streams entries as they are found, applying include/exclude
// patterns and size limits, and resolves ownership attributes.
package scanner

import "time"

// FileEntry describes one live file found under a crawl root.
type FileEntry struct {
	// RealPath is the absolute path on disk.
	RealPath string

	// RelPath is the path relative to the crawl root (the "virtual"
	// path of the resulting document).
	RelPath string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time.
	ModTime time.Time

	// Owner and Group are best-effort ownership names.
	Owner string
	Group string
}

// Options configures a scan.
type Options struct {
	// RootDir is the crawl root directory.
	RootDir string

	// IncludePatterns restricts the scan to matching files (empty = all).
	IncludePatterns []string

	// ExcludePatterns removes matching files and directories.
	ExcludePatterns []string

	// MaxFileSize skips files larger than this many bytes (0 = 100MB).
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links (default: false).
	FollowSymlinks bool
}

// Result is one item on the scan stream: an entry or a walk error.
type Result struct {
	Entry *FileEntry
	Error error
}

// DefaultMaxFileSize is the default file size cutoff (100MB).
const DefaultMaxFileSize int64 = 100 * 1024 * 1024
