package extract

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var htmlTagRe = regexp.MustCompile(`(?i)<(?:html|body|div|p|br|ul|ol|li|h[1-6]|table|span|strong)\b[^>]*>`)

// LooksLikeHTML reports whether pasted text carries block-level markup, as
// happens when an itinerary is copied from a tour operator's page source.
func LooksLikeHTML(s string) bool {
	return len(htmlTagRe.FindAllStringIndex(s, 3)) >= 2
}

// FlattenHTML converts markup into plain text with one block per line. List
// items become bullet lines so the highlight extractor still sees them.
// Scripts, styles and navigation chrome are dropped.
func FlattenHTML(input []byte) string {
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return string(input)
	}
	root := findFirst(node, "body")
	if root == nil {
		root = node
	}
	var b strings.Builder
	collectText(&b, root)
	return tidyLines(b.String())
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findFirst(c, tag); res != nil {
			return res
		}
	}
	return nil
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "nav", "footer", "iframe", "head":
			return
		case "br", "hr":
			b.WriteString("\n")
		case "li":
			b.WriteString("\n• ")
		case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "ul", "ol", "section", "article":
			b.WriteString("\n")
		}
	}
	if n.Type == html.TextNode {
		data := strings.ReplaceAll(n.Data, "\t", " ")
		data = strings.ReplaceAll(data, "\r", " ")
		data = strings.ReplaceAll(data, "\n", " ")
		b.WriteString(data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr":
			b.WriteString("\n")
		}
	}
}

// tidyLines trims every line, collapses inner space runs and drops blank lines.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
