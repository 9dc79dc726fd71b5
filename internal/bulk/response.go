package bulk

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RawResponse is the decoded body of a bulk request. The top-level
// errors flag is carried for cross-checking only; callers decide
// success per item.
type RawResponse struct {
	Took   int           `json:"took"`
	Errors bool          `json:"errors"`
	Items  []ItemWrapper `json:"items"`
}

// ItemWrapper mirrors the wire shape where each item is keyed by the
// operation type that produced it. Exactly one of the fields is set.
type ItemWrapper struct {
	Index  *ItemResult `json:"index,omitempty"`
	Delete *ItemResult `json:"delete,omitempty"`
}

// Result returns whichever variant the wrapper carries, or nil when
// the server sent an item under an unknown key.
func (w *ItemWrapper) Result() *ItemResult {
	if w.Index != nil {
		return w.Index
	}
	return w.Delete
}

// ItemResult is the per-operation result inside a bulk response.
type ItemResult struct {
	ID     string          `json:"_id"`
	Idx    string          `json:"_index"`
	Status int             `json:"status"`
	Failed bool            `json:"failed"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// IsFailure reports whether the item represents a failed operation.
// Any of the failed flag, a non-null error payload, or an error-class
// status code marks the item failed.
func (r *ItemResult) IsFailure() bool {
	if r.Failed {
		return true
	}
	if len(r.Error) > 0 && string(r.Error) != "null" {
		return true
	}
	return r.Status >= 400
}

// FailureReason normalizes the error payload to a single string.
// Older servers send a plain string, newer ones a structured object
// with type and reason fields; both collapse to the same shape here.
func (r *ItemResult) FailureReason() string {
	raw := strings.TrimSpace(string(r.Error))
	if raw == "" || raw == "null" {
		if r.Status >= 400 {
			return fmt.Sprintf("status %d", r.Status)
		}
		if r.Failed {
			return "unknown failure"
		}
		return ""
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(r.Error, &s); err == nil {
			return s
		}
		return raw
	}

	var obj map[string]any
	if err := json.Unmarshal(r.Error, &obj); err != nil || len(obj) == 0 {
		return raw
	}

	typ, _ := obj["type"].(string)
	reason, _ := obj["reason"].(string)
	switch {
	case typ != "" && reason != "":
		return typ + ": " + reason
	case reason != "":
		return reason
	case typ != "":
		return typ
	}

	// Unknown object shape; render the fields deterministically so
	// logs stay comparable across runs.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, obj[k]))
	}
	return strings.Join(parts, ", ")
}
