package builder

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fscrawl/fscrawl/internal/document"
	"github.com/fscrawl/fscrawl/internal/extract"
	"github.com/fscrawl/fscrawl/internal/scanner"
)

func testEntry() *scanner.FileEntry {
	return &scanner.FileEntry{
		RealPath: "/data/docs/report.txt",
		RelPath:  "docs/report.txt",
		Size:     1234,
		ModTime:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Owner:    "jane",
		Group:    "staff",
	}
}

func TestBuilder_Build(t *testing.T) {
	digest, err := NewDigest("sha256")
	require.NoError(t, err)

	b := New(Config{RootID: "root-1", IndexedChars: 100, Digest: digest})
	b.now = func() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) }

	data := []byte("report body")
	doc := b.Build(testEntry(), data, &extract.Result{
		Content:     "report body",
		ContentType: "text/plain",
		Meta:        document.Meta{Title: "report body", Author: "jane"},
	})

	assert.Equal(t, "report body", doc.Content)
	assert.Equal(t, "jane", doc.Meta.Author)

	assert.Equal(t, "text/plain", doc.File.ContentType)
	assert.Equal(t, int64(1234), doc.File.Filesize)
	assert.Equal(t, len("report body"), doc.File.IndexedChars)
	assert.Equal(t, "report.txt", doc.File.Filename)
	assert.Equal(t, "txt", doc.File.Extension)
	assert.Equal(t, digest.Sum(data), doc.File.Checksum)
	assert.Equal(t, "file:///data/docs/report.txt", doc.File.URL)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), doc.File.IndexingDate)

	assert.Equal(t, "root-1", doc.Path.Root)
	assert.Equal(t, "/data/docs/report.txt", doc.Path.Real)
	assert.Equal(t, "docs/report.txt", doc.Path.Virtual)
	assert.Equal(t, document.EncodePath("/data/docs/report.txt"), doc.Path.Encoded)

	assert.Equal(t, "jane", doc.Attributes.Owner)
	assert.Equal(t, "staff", doc.Attributes.Group)
}

func TestBuilder_TruncatesAtIndexedCharsCap(t *testing.T) {
	digest, err := NewDigest("md5")
	require.NoError(t, err)

	b := New(Config{RootID: "r", IndexedChars: 10, Digest: digest})

	long := strings.Repeat("x", 50)
	doc := b.Build(testEntry(), []byte(long), &extract.Result{Content: long})

	// Content beyond the cap is truncated, never the file dropped.
	assert.Equal(t, strings.Repeat("x", 10), doc.Content)
	assert.Equal(t, 10, doc.File.IndexedChars)
	assert.NotEmpty(t, doc.File.Checksum)
}

func TestBuilder_TruncationKeepsValidUTF8(t *testing.T) {
	b := New(Config{RootID: "r", IndexedChars: 4})

	// Nine bytes of three-byte runes; the cap lands inside the
	// second rune
	content := "日本語"
	doc := b.Build(testEntry(), []byte(content), &extract.Result{Content: content})

	assert.True(t, utf8.ValidString(doc.Content))
	assert.Equal(t, "日", doc.Content)
	assert.Equal(t, 3, doc.File.IndexedChars)
}

func TestBuilder_UnlimitedWhenCapZero(t *testing.T) {
	b := New(Config{RootID: "r"})

	long := strings.Repeat("y", 5000)
	doc := b.Build(testEntry(), []byte(long), &extract.Result{Content: long})

	assert.Len(t, doc.Content, 5000)
	assert.Equal(t, 5000, doc.File.IndexedChars)
}

func TestBuilder_ChecksumStableAcrossRuns(t *testing.T) {
	digest, err := NewDigest("sha1")
	require.NoError(t, err)
	b := New(Config{RootID: "r", Digest: digest})

	data := []byte("identical content")
	first := b.Build(testEntry(), data, &extract.Result{Content: "c"})
	second := b.Build(testEntry(), data, &extract.Result{Content: "c"})

	assert.Equal(t, first.File.Checksum, second.File.Checksum)
	assert.Equal(t, first.Path.Encoded, second.Path.Encoded)
}

func TestNewDigest_Algorithms(t *testing.T) {
	for _, algo := range []string{"md5", "sha1", "sha256"} {
		d, err := NewDigest(algo)
		require.NoError(t, err, algo)
		assert.True(t, d.Enabled(), algo)
		assert.NotEmpty(t, d.Sum([]byte("x")), algo)
	}

	disabled, err := NewDigest("none")
	require.NoError(t, err)
	assert.False(t, disabled.Enabled())
	assert.Empty(t, disabled.Sum([]byte("x")))

	_, err = NewDigest("crc32")
	assert.Error(t, err)
}

func TestDigest_DistinctContentDistinctSum(t *testing.T) {
	d, err := NewDigest("md5")
	require.NoError(t, err)
	assert.NotEqual(t, d.Sum([]byte("a")), d.Sum([]byte("b")))
}
