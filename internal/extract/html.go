package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/fscrawl/fscrawl/internal/document"
)

// extractHTML extracts the visible text and head metadata from an HTML
// document. Script and style subtrees never contribute content.
func extractHTML(path string, data []byte) (*Result, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Path: path, Reason: "malformed HTML", Err: err}
	}

	meta := document.Meta{Title: findTitle(doc)}
	collectMetaTags(doc, &meta)

	var sb strings.Builder
	collectText(doc, &sb)

	return &Result{
		Content:     normalizeWhitespace(sb.String()),
		ContentType: "text/html",
		Meta:        meta,
	}, nil
}

// findTitle returns the first <title> text in the tree.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// collectMetaTags fills author/keywords/date from <meta name=...> tags.
func collectMetaTags(n *html.Node, meta *document.Meta) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Meta {
		var name, content string
		for _, a := range n.Attr {
			switch strings.ToLower(a.Key) {
			case "name":
				name = strings.ToLower(a.Val)
			case "content":
				content = a.Val
			}
		}
		if content != "" {
			switch name {
			case "author":
				meta.Author = content
			case "date":
				meta.Date = content
			case "keywords":
				for _, kw := range strings.Split(content, ",") {
					if kw = strings.TrimSpace(kw); kw != "" {
						meta.Keywords = append(meta.Keywords, kw)
					}
				}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectMetaTags(c, meta)
	}
}

// collectText appends all visible text nodes to sb.
func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Head:
			return
		}
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// normalizeWhitespace collapses runs of whitespace to single spaces.
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
