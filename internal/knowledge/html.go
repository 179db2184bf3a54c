package knowledge

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NormalizeHTML strips markup from an HTML fragment and returns plain text
// suitable for embedding. Script and style bodies are dropped, block elements
// are separated by newlines, and runs of whitespace collapse to single
// spaces.
func NormalizeHTML(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		blocks := body.Find("p, h1, h2, h3, h4, h5, h6, li, td, th, pre, blockquote")
		if blocks.Length() == 0 {
			b.WriteString(body.Text())
			return
		}
		blocks.Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				return
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(text)
		})
	})

	return collapseWhitespace(b.String()), nil
}

// collapseWhitespace reduces runs of spaces and tabs to single spaces while
// keeping line breaks.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}
