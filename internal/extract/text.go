package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/fscrawl/fscrawl/internal/document"
)

// contentTypeByExt maps well-known text extensions to MIME types.
// Unlisted extensions fall back to text/plain after the binary sniff.
var contentTypeByExt = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".csv":      "text/csv",
	".json":     "application/json",
	".xml":      "application/xml",
	".yaml":     "application/yaml",
	".yml":      "application/yaml",
}

// extractText handles plain text files: content passes through as-is,
// the title is a best-effort first line.
func extractText(path, ext string, data []byte) (*Result, error) {
	if !utf8.Valid(data) {
		return nil, &Error{Path: path, Reason: "not valid UTF-8 text"}
	}

	contentType, ok := contentTypeByExt[ext]
	if !ok {
		contentType = "text/plain"
	}

	content := string(data)
	return &Result{
		Content:     content,
		ContentType: contentType,
		Meta:        document.Meta{Title: firstLine(content)},
	}, nil
}

// firstLine returns the trimmed first non-empty line, capped at 200
// characters, for use as a fallback title.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 200 {
			line = line[:200]
		}
		return line
	}
	return ""
}
