// Package builder materializes canonical documents from filesystem
// entries and extraction results.
package builder

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fscrawl/fscrawl/internal/document"
	"github.com/fscrawl/fscrawl/internal/extract"
	"github.com/fscrawl/fscrawl/internal/scanner"
)

// Config configures document construction for one crawl root.
type Config struct {
	// RootID identifies the crawl root in path.root.
	RootID string

	// IndexedChars caps how many characters of extracted content are
	// indexed. Content beyond the cap is truncated, never the whole
	// file dropped. Zero means unlimited.
	IndexedChars int

	// Digest computes file checksums.
	Digest Digest
}

// Builder combines filesystem attributes and extractor output into
// documents. Build is pure: identical inputs produce identical
// documents apart from the indexing date, which comes from the
// injected clock.
type Builder struct {
	cfg Config
	now func() time.Time
}

// New creates a Builder.
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg, now: time.Now}
}

// Checksum returns the content checksum for raw file bytes, or ""
// when checksumming is disabled.
func (b *Builder) Checksum(data []byte) string {
	return b.cfg.Digest.Sum(data)
}

// Build constructs the canonical document for a file.
// data is the raw file content; extracted is the extractor's output
// for the same bytes.
func (b *Builder) Build(entry *scanner.FileEntry, data []byte, extracted *extract.Result) *document.Document {
	content := extracted.Content
	if b.cfg.IndexedChars > 0 && len(content) > b.cfg.IndexedChars {
		// Back off to a rune boundary so the cap never ships a
		// split multi-byte character.
		cut := b.cfg.IndexedChars
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}
	indexed := len(content)

	filename := filepath.Base(entry.RealPath)
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")

	return &document.Document{
		Content: content,
		Meta:    extracted.Meta,
		File: document.File{
			ContentType:  extracted.ContentType,
			LastModified: entry.ModTime,
			IndexingDate: b.now().UTC(),
			Filesize:     entry.Size,
			IndexedChars: indexed,
			Filename:     filename,
			Extension:    ext,
			Checksum:     b.cfg.Digest.Sum(data),
			URL:          "file://" + entry.RealPath,
		},
		Path: document.Path{
			Root:    b.cfg.RootID,
			Real:    entry.RealPath,
			Virtual: filepath.ToSlash(entry.RelPath),
			Encoded: document.EncodePath(entry.RealPath),
		},
		Attributes: document.Attributes{
			Owner: entry.Owner,
			Group: entry.Group,
		},
	}
}
