package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ownerCacheSize bounds the uid/gid name lookup cache. Crawl roots
// rarely contain files from more than a handful of owners.
const ownerCacheSize = 256

// Scanner discovers crawlable files in a directory tree.
type Scanner struct {
	// ownerCache caches uid/gid -> name lookups; user.LookupId hits
	// NSS on every call and crawls touch the same few owners.
	ownerCache *lru.Cache[string, string]
}

// New creates a new Scanner instance.
func New() (*Scanner, error) {
	cache, err := lru.New[string, string](ownerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create owner cache: %w", err)
	}
	return &Scanner{ownerCache: cache}, nil
}

// Scan walks the crawl root and streams discovered files.
// The returned channel is closed when the walk completes.
func (s *Scanner) Scan(ctx context.Context, opts *Options) (<-chan Result, error) {
	if opts == nil {
		opts = &Options{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat crawl root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("crawl root is not a directory: %s", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	results := make(chan Result, 64)

	w := &walker{
		s:           s,
		absRoot:     absRoot,
		opts:        opts,
		maxFileSize: maxFileSize,
		results:     results,
		visited:     make(map[string]struct{}),
	}

	go func() {
		defer close(results)
		w.run(ctx)
	}()

	return results, nil
}

// walker holds the state of one traversal.
type walker struct {
	s           *Scanner
	absRoot     string
	opts        *Options
	maxFileSize int64
	results     chan<- Result

	// visited holds resolved directory paths so symlink cycles
	// terminate when links are followed.
	visited map[string]struct{}
}

func (w *walker) run(ctx context.Context) {
	if resolved, err := filepath.EvalSymlinks(w.absRoot); err == nil {
		w.visited[resolved] = struct{}{}
	}

	err := filepath.WalkDir(w.absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // Skip files we can't access
		}

		relPath, err := filepath.Rel(w.absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if matchesAny(relPath, w.opts.ExcludePatterns) {
				return filepath.SkipDir
			}
			// A link pointing back into a subtree this walk already
			// covers must not re-walk it.
			if resolved, rerr := filepath.EvalSymlinks(path); rerr == nil {
				w.visited[resolved] = struct{}{}
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !w.opts.FollowSymlinks {
				return nil
			}
			return w.followLink(ctx, path, relPath)
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		return w.emit(ctx, path, relPath, info)
	})

	if err != nil && err != context.Canceled {
		select {
		case w.results <- Result{Error: err}:
		case <-ctx.Done():
		}
	}
}

// followLink resolves one symlink. Size and mtime come from the
// target, not the link, and target directories are descended since
// WalkDir never steps through a link itself. Dangling links are
// skipped.
func (w *walker) followLink(ctx context.Context, path, relPath string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		return w.emit(ctx, path, relPath, info)
	}
	if matchesAny(relPath, w.opts.ExcludePatterns) {
		return nil
	}
	return w.followDir(ctx, path)
}

// followDir walks a symlinked directory by hand.
func (w *walker) followDir(ctx context.Context, dir string) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil
	}
	if _, seen := w.visited[resolved]; seen {
		return nil
	}
	w.visited[resolved] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, d := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		path := filepath.Join(dir, d.Name())
		relPath, rerr := filepath.Rel(w.absRoot, path)
		if rerr != nil {
			continue
		}

		switch {
		case d.IsDir():
			if matchesAny(relPath, w.opts.ExcludePatterns) {
				continue
			}
			if err := w.followDir(ctx, path); err != nil {
				return err
			}
		case d.Type()&fs.ModeSymlink != 0:
			if err := w.followLink(ctx, path, relPath); err != nil {
				return err
			}
		default:
			info, ierr := d.Info()
			if ierr != nil {
				continue
			}
			if err := w.emit(ctx, path, relPath, info); err != nil {
				return err
			}
		}
	}
	return nil
}

// emit applies the pattern and size filters and streams one entry.
func (w *walker) emit(ctx context.Context, path, relPath string, info fs.FileInfo) error {
	if matchesAny(relPath, w.opts.ExcludePatterns) {
		return nil
	}
	if len(w.opts.IncludePatterns) > 0 && !matchesAny(relPath, w.opts.IncludePatterns) {
		return nil
	}
	if info.Size() > w.maxFileSize {
		return nil
	}

	owner, group := w.s.lookupOwner(info)

	entry := &FileEntry{
		RealPath: path,
		RelPath:  relPath,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Owner:    owner,
		Group:    group,
	}

	select {
	case w.results <- Result{Entry: entry}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// matchesAny reports whether relPath matches any of the glob patterns.
// Supported forms: "**/name/**" (path component), "dir/**" (prefix),
// "*.ext" / "name*" (base name glob), and exact relative paths.
func matchesAny(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

func matchPattern(relPath, pattern string) bool {
	sep := string(filepath.Separator)

	// **/name or **/name/** matches any path component.
	if strings.HasPrefix(pattern, "**/") {
		component := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
		if strings.ContainsAny(component, "*?[") {
			// **/*.ext style: glob against the base name.
			matched, _ := filepath.Match(component, filepath.Base(relPath))
			return matched
		}
		for _, part := range strings.Split(relPath, sep) {
			if part == component {
				return true
			}
		}
		return false
	}

	// dir/** matches the directory itself and everything below it.
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+sep)
	}

	// Bare glob matches the base name.
	if strings.ContainsAny(pattern, "*?[") {
		matched, _ := filepath.Match(pattern, filepath.Base(relPath))
		return matched
	}

	// Exact relative path or base name.
	return relPath == pattern || filepath.Base(relPath) == pattern
}
