// Package textutil turns raw feed markup into plain text suitable for
// hashing, scoring and posting.
package textutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Ellipsis is appended whenever Truncate shortens a text.
const Ellipsis = "…"

// Normalize strips markup from raw entry bodies: tags removed, entities
// decoded, runs of whitespace collapsed to single spaces. Malformed input is
// never an error; if the markup cannot be parsed the original text is
// returned as-is.
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	text := doc.Text()
	return strings.Join(strings.Fields(text), " ")
}

// Truncate cuts text to at most max runes. When the cut would land inside a
// sentence and a sentence terminator sits past 70% of max, the cut moves back
// to the terminator so the output ends on a full sentence. Shortened output
// always carries the ellipsis marker.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	cut := runes[:max]
	boundary := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == '.' || cut[i] == '!' || cut[i] == '?' {
			boundary = i
			break
		}
	}

	if boundary >= 0 && boundary+1 > max*7/10 {
		cut = cut[:boundary+1]
	}

	return strings.TrimRight(string(cut), " ") + Ellipsis
}
