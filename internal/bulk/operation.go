// Package bulk implements the batching pipeline between change
// detection and the index store: operation accumulation, NDJSON batch
// encoding, per-item result reconciliation, and retry coordination.
package bulk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fscrawl/fscrawl/internal/document"
)

// OpType distinguishes the two bulk operation variants.
type OpType string

const (
	OpIndex  OpType = "index"
	OpDelete OpType = "delete"
)

// Operation is one pending unit of work against the store. Beyond the
// id and payload the batcher treats it as opaque; the state fields
// ride along so an acknowledged outcome can be committed without
// revisiting the filesystem.
type Operation struct {
	// Type is the operation variant.
	Type OpType

	// ID is the document identity (path.encoded).
	ID string

	// Doc is the document payload; nil for deletes.
	Doc *document.Document

	// RealPath keys the crawl state entry this operation settles.
	RealPath string

	// Checksum and ModTime are committed to crawl state when an index
	// operation is acknowledged.
	Checksum string
	ModTime  time.Time

	// Attempts counts how many times this operation has been
	// submitted. The retry coordinator uses it to demote operations
	// that keep failing transiently.
	Attempts int
}

// Index creates an index operation for a built document.
func Index(doc *document.Document, checksum string, modTime time.Time) *Operation {
	return &Operation{
		Type:     OpIndex,
		ID:       doc.ID(),
		Doc:      doc,
		RealPath: doc.Path.Real,
		Checksum: checksum,
		ModTime:  modTime,
	}
}

// Delete creates a delete operation for a previously indexed path.
func Delete(realPath string) *Operation {
	return &Operation{
		Type:     OpDelete,
		ID:       document.EncodePath(realPath),
		RealPath: realPath,
	}
}

// EncodeBatch serializes operations into the newline-delimited bulk
// wire format: one action line per operation, followed by the document
// line for index operations. Order mirrors the slice.
func EncodeBatch(indexName string, ops []*Operation) ([]byte, error) {
	var buf bytes.Buffer

	for _, op := range ops {
		action := map[string]map[string]string{
			string(op.Type): {"_index": indexName, "_id": op.ID},
		}
		line, err := json.Marshal(action)
		if err != nil {
			return nil, fmt.Errorf("failed to encode action line: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')

		if op.Type == OpIndex {
			if op.Doc == nil {
				return nil, fmt.Errorf("index operation %s has no document", op.ID)
			}
			doc, err := json.Marshal(op.Doc)
			if err != nil {
				return nil, fmt.Errorf("failed to encode document %s: %w", op.ID, err)
			}
			buf.Write(doc)
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes(), nil
}
