package bulk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fscrawl/fscrawl/internal/document"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testDoc(path string) *document.Document {
	return &document.Document{
		Content: "hello",
		Path: document.Path{
			Real:    path,
			Encoded: document.EncodePath(path),
		},
	}
}

func indexOp(path string) *Operation {
	return Index(testDoc(path), "abc123", time.Unix(1700000000, 0))
}

func TestEncodeBatch(t *testing.T) {
	// Given one index and one delete operation
	ops := []*Operation{
		indexOp("/data/a.txt"),
		Delete("/data/b.txt"),
	}

	// When the batch is encoded
	payload, err := EncodeBatch("docs", ops)
	require.NoError(t, err)

	// Then it is newline-delimited: action, document, action
	lines := bytes.Split(bytes.TrimRight(payload, "\n"), []byte("\n"))
	require.Len(t, lines, 3)

	var action map[string]map[string]string
	require.NoError(t, json.Unmarshal(lines[0], &action))
	assert.Equal(t, "docs", action["index"]["_index"])
	assert.Equal(t, document.EncodePath("/data/a.txt"), action["index"]["_id"])

	var doc map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &doc))
	assert.Equal(t, "hello", doc["content"])

	require.NoError(t, json.Unmarshal(lines[2], &action))
	assert.Equal(t, document.EncodePath("/data/b.txt"), action["delete"]["_id"])
}

func TestEncodeBatchRejectsIndexWithoutDocument(t *testing.T) {
	_, err := EncodeBatch("docs", []*Operation{{Type: OpIndex, ID: "x"}})
	require.Error(t, err)
}

func TestFailureReasonNormalization(t *testing.T) {
	tests := []struct {
		name string
		item ItemResult
		want string
	}{
		{
			name: "string error",
			item: ItemResult{Error: json.RawMessage(`"mapper exception"`)},
			want: "mapper exception",
		},
		{
			name: "object error with type and reason",
			item: ItemResult{Error: json.RawMessage(`{"type":"mapper_parsing_exception","reason":"failed to parse field"}`)},
			want: "mapper_parsing_exception: failed to parse field",
		},
		{
			name: "object error with reason only",
			item: ItemResult{Error: json.RawMessage(`{"reason":"shard not available"}`)},
			want: "shard not available",
		},
		{
			name: "no error but failure status",
			item: ItemResult{Status: 429},
			want: "status 429",
		},
		{
			name: "failed flag without detail",
			item: ItemResult{Failed: true},
			want: "unknown failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.FailureReason())
		})
	}
}

func TestItemResultIsFailure(t *testing.T) {
	assert.False(t, (&ItemResult{Status: 201}).IsFailure())
	assert.False(t, (&ItemResult{Status: 200, Error: json.RawMessage(`null`)}).IsFailure())
	assert.True(t, (&ItemResult{Status: 200, Failed: true}).IsFailure())
	assert.True(t, (&ItemResult{Status: 400}).IsFailure())
	assert.True(t, (&ItemResult{Status: 200, Error: json.RawMessage(`"boom"`)}).IsFailure())
}

func TestReconcilePairsByPosition(t *testing.T) {
	// Given a batch of three operations
	ops := []*Operation{
		indexOp("/data/a.txt"),
		indexOp("/data/b.txt"),
		Delete("/data/c.txt"),
	}

	// When the middle item failed
	resp := &RawResponse{
		Errors: true,
		Items: []ItemWrapper{
			{Index: &ItemResult{ID: ops[0].ID, Status: 201}},
			{Index: &ItemResult{ID: ops[1].ID, Status: 400, Error: json.RawMessage(`"mapper exception"`)}},
			{Delete: &ItemResult{ID: ops[2].ID, Status: 200}},
		},
	}
	out, err := Reconcile(testLogger(), ops, resp)
	require.NoError(t, err)

	// Then only the failed operation is reported failed
	require.Len(t, out.Succeeded, 2)
	require.Len(t, out.Failed, 1)
	assert.Same(t, ops[1], out.Failed[0].Op)
	assert.Equal(t, "mapper exception", out.Failed[0].Reason)
	assert.Contains(t, out.Summary(), "1 failures")
	assert.Contains(t, out.Summary(), ops[1].ID)
}

func TestReconcileDistrustsStaleErrorsFlag(t *testing.T) {
	// Given a response whose top-level errors flag is set even though
	// every item succeeded
	ops := []*Operation{indexOp("/data/a.txt")}
	resp := &RawResponse{
		Errors: true,
		Items:  []ItemWrapper{{Index: &ItemResult{ID: ops[0].ID, Status: 201}}},
	}

	// When reconciled
	out, err := Reconcile(testLogger(), ops, resp)
	require.NoError(t, err)

	// Then the item scan wins and nothing is marked failed
	assert.Len(t, out.Succeeded, 1)
	assert.Empty(t, out.Failed)
}

func TestReconcileRejectsMismatchedResponses(t *testing.T) {
	ops := []*Operation{indexOp("/data/a.txt"), indexOp("/data/b.txt")}

	// Empty item list
	_, err := Reconcile(testLogger(), ops, &RawResponse{})
	require.Error(t, err)

	// Count mismatch
	_, err = Reconcile(testLogger(), ops, &RawResponse{
		Items: []ItemWrapper{{Index: &ItemResult{Status: 201}}},
	})
	require.Error(t, err)
}

func TestBatcherSealsAtThreshold(t *testing.T) {
	batches := make(chan []*Operation, 4)
	b := NewBatcher(2, 0, func(_ context.Context, ops []*Operation) { batches <- ops }, testLogger())
	b.Start(context.Background())

	// When three operations arrive with a threshold of two
	for i := 0; i < 3; i++ {
		b.Add(indexOp(fmt.Sprintf("/data/f%d.txt", i)))
	}
	b.Stop()
	close(batches)

	// Then the first batch holds exactly the threshold and the rest
	// flush on shutdown, in submission order
	var got [][]*Operation
	for batch := range batches {
		got = append(got, batch)
	}
	require.Len(t, got, 2)
	assert.Len(t, got[0], 2)
	assert.Len(t, got[1], 1)
	assert.Equal(t, document.EncodePath("/data/f0.txt"), got[0][0].ID)
	assert.Equal(t, document.EncodePath("/data/f2.txt"), got[1][0].ID)
}

func TestBatcherKeepsSameIDGroupTogether(t *testing.T) {
	batches := make(chan []*Operation, 4)
	b := NewBatcher(3, 0, func(_ context.Context, ops []*Operation) { batches <- ops }, testLogger())
	b.Start(context.Background())

	// Given two operations already buffered
	b.Add(indexOp("/data/a.txt"))
	b.Add(indexOp("/data/b.txt"))

	// When an update-then-delete pair for one path arrives together
	pair := []*Operation{indexOp("/data/c.txt"), Delete("/data/c.txt")}
	b.Add(pair...)
	b.Stop()
	close(batches)

	// Then the buffer is sealed early and the pair lands in a single
	// later batch, in order
	var got [][]*Operation
	for batch := range batches {
		got = append(got, batch)
	}
	require.Len(t, got, 2)
	assert.Len(t, got[0], 2)
	require.Len(t, got[1], 2)
	assert.Equal(t, OpIndex, got[1][0].Type)
	assert.Equal(t, OpDelete, got[1][1].Type)
	assert.Equal(t, got[1][0].ID, got[1][1].ID)
}

func TestBatcherFlushOnEmptyBufferIsNoOp(t *testing.T) {
	calls := make(chan []*Operation, 1)
	b := NewBatcher(10, 0, func(_ context.Context, ops []*Operation) { calls <- ops }, testLogger())
	b.Start(context.Background())

	b.Flush()
	b.Stop()

	select {
	case <-calls:
		t.Fatal("empty flush must not submit a batch")
	default:
	}
}

func TestBatcherTimerFlush(t *testing.T) {
	batches := make(chan []*Operation, 1)
	b := NewBatcher(100, 20*time.Millisecond, func(_ context.Context, ops []*Operation) { batches <- ops }, testLogger())
	b.Start(context.Background())
	defer b.Stop()

	// When a single operation sits below the count threshold
	b.Add(indexOp("/data/a.txt"))

	// Then the interval timer flushes it
	select {
	case batch := <-batches:
		assert.Len(t, batch, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("timer flush did not fire")
	}
}
