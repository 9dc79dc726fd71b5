// Package document defines the canonical shape of an indexed unit.
// A Document is pure data: the builder fills it, the bulk layer
// serializes it, and nothing here touches the filesystem or the wire.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// Meta holds extractor-sourced document metadata. All fields are
// optional; extractors that cannot mine a field leave it empty.
type Meta struct {
	Author   string   `json:"author,omitempty"`
	Title    string   `json:"title,omitempty"`
	Date     string   `json:"date,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// File holds filesystem-level attributes of the indexed file.
type File struct {
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
	IndexingDate time.Time `json:"indexing_date"`
	Filesize     int64     `json:"filesize"`
	IndexedChars int       `json:"indexed_chars"`
	Filename     string    `json:"filename"`
	Extension    string    `json:"extension,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	URL          string    `json:"url,omitempty"`
}

// Path holds the path variants of the indexed file.
// Encoded is the document identity: indexing and deletion both address
// the store by it, so it must be reproducible from Real alone.
type Path struct {
	Root    string `json:"root"`
	Real    string `json:"real"`
	Virtual string `json:"virtual"`
	Encoded string `json:"encoded"`
}

// Attributes holds best-effort ownership information. Platform
// dependent; empty on systems where lookup is unavailable.
type Attributes struct {
	Owner string `json:"owner,omitempty"`
	Group string `json:"group,omitempty"`
}

// Document is one indexed unit, matching the documented mapping schema
// (content, meta.*, file.*, path.*, attributes.*).
type Document struct {
	Content    string     `json:"content,omitempty"`
	Attachment string     `json:"attachment,omitempty"`
	Meta       Meta       `json:"meta"`
	File       File       `json:"file"`
	Path       Path       `json:"path"`
	Attributes Attributes `json:"attributes"`
}

// ID returns the document identity used against the store.
func (d *Document) ID() string {
	return d.Path.Encoded
}

// EncodePath derives the stable document id from the real (absolute)
// path. The id is a SHA-256 hex digest of the cleaned path, so
// re-crawling the same file always reproduces the same id and a delete
// issued from recorded state addresses the same document as the index
// that created it.
func EncodePath(real string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(real)))
	return hex.EncodeToString(sum[:])
}
