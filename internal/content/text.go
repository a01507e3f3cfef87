package content

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Version identifies a post's content for optimistic concurrency checks.
func Version(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

const blockElements = "p, div, li, h1, h2, h3, h4, h5, h6, blockquote, pre, tr"

// PlainText reduces seed HTML (or plain text) to paragraphs of text. Scripts
// and styles are dropped, whitespace inside a paragraph is collapsed and
// blank lines are squeezed.
func PlainText(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return collapse(input)
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return collapse(doc.Text())
}

func collapse(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
