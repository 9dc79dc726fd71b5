// Package extract mines text content and metadata from raw file bytes.
//
// The crawler only depends on the Extractor interface; the concrete
// extractors here cover plain text and HTML. Anything else (PDF, office
// formats, OCR) plugs in behind the same interface.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fscrawl/fscrawl/internal/document"
)

// Result is the outcome of a successful extraction.
type Result struct {
	// Content is the mined text, unbounded: the builder applies the
	// indexed-chars cap, not the extractor.
	Content string

	// ContentType is the detected MIME type.
	ContentType string

	// Meta carries extractor-sourced metadata (author, title, ...).
	Meta document.Meta
}

// Error reports a file the extractor could not parse. The crawler
// records such files as skipped-with-error so the next crawl retries
// them instead of silently dropping them.
type Error struct {
	Path   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Path, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Extractor mines content and metadata from raw file bytes.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, path string, data []byte) (*Result, error)
}

// Router dispatches to a concrete extractor based on file extension.
type Router struct{}

// NewRouter creates the default extractor covering text and HTML files.
func NewRouter() *Router {
	return &Router{}
}

// Extract implements Extractor.
func (r *Router) Extract(ctx context.Context, path string, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".html", ".htm", ".xhtml":
		return extractHTML(path, data)
	default:
		if isBinary(data) {
			return nil, &Error{Path: path, Reason: fmt.Sprintf("unsupported binary format %q", ext)}
		}
		return extractText(path, ext, data)
	}
}

// isBinary reports whether the data looks like a binary blob.
// Null bytes in the first 512 bytes are the tell.
func isBinary(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.IndexByte(head, 0) >= 0
}
