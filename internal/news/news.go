// Package news builds scored, fingerprinted candidates out of raw feed
// entries and orders them for delivery.
package news

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nikizi1234-ship-it/Ai-Post/internal/feed"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/metrics"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/textutil"
)

const (
	// fingerprintBodyRunes is how much of the normalized body participates
	// in the content fingerprint. Long enough that distinct articles with
	// the same title still diverge.
	fingerprintBodyRunes = 500

	// titleMaxRunes bounds the candidate title for formatting.
	titleMaxRunes = 200

	// longBodyRunes is the body length above which the scorer adds a bonus
	// point: substantial text is a weak relevance signal of its own.
	longBodyRunes = 400
)

// Candidate is an immutable, fully derived entry: normalized text, stable
// content fingerprint and relevance score.
type Candidate struct {
	Title       string
	Body        string
	Link        string
	Source      string
	Tags        []string
	Fingerprint string
	Score       int
	Published   time.Time

	sourceIndex int
	order       int
}

// Keyword weights for the relevance model. Default weight is 1; terms that
// almost always mark a story worth posting carry 2. Matching is
// case-insensitive substring search, so over-matching inside longer words is
// possible and accepted.
var keywordWeights = map[string]int{
	"vulnerability": 2,
	"zero-day":      2,
	"golang":        2,
	"kubernetes":    2,
	"open source":   2,

	"compiler":         1,
	"rust":             1,
	"python":           1,
	"javascript":       1,
	"typescript":       1,
	"linux":            1,
	"kernel":           1,
	"database":         1,
	"docker":           1,
	"cloud":            1,
	"security":         1,
	"release":          1,
	"framework":        1,
	"library":          1,
	"protocol":         1,
	"benchmark":        1,
	"machine learning": 1,
	"neural network":   1,
}

// Code-hosting references are a strong signal that a story links to real
// software rather than commentary.
var codeHostDomains = []string{"github.com", "gitlab.com", "codeberg.org"}

// Fingerprint derives the stable content identity of an entry: a sha256 over
// the lowercased normalized title and the first fingerprintBodyRunes of the
// lowercased normalized body. Entry ids from the feeds are deliberately not
// used; providers churn them across mirrors while the content stays put.
func Fingerprint(title, body string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	b := strings.ToLower(strings.TrimSpace(body))

	if r := []rune(b); len(r) > fingerprintBodyRunes {
		b = string(r[:fingerprintBodyRunes])
	}

	h := sha256.Sum256([]byte(t + "\n" + b))
	return hex.EncodeToString(h[:])
}

// Score assigns the topical relevance of an entry. Pure and stateless:
// weighted keyword hits, plus a bonus for substantial body text and for a
// code-hosting reference.
func Score(title, body string) int {
	text := strings.ToLower(title + " " + body)

	score := 0
	for keyword, weight := range keywordWeights {
		if strings.Contains(text, keyword) {
			score += weight
		}
	}

	if utf8.RuneCountInString(body) >= longBodyRunes {
		score++
	}

	for _, domain := range codeHostDomains {
		if strings.Contains(text, domain) {
			score += 2
			break
		}
	}

	return score
}

// Build turns fetched entries into candidates: normalize, fingerprint,
// score. Entries that normalize to nothing are dropped.
func Build(entries []feed.Entry) []Candidate {
	candidates := make([]Candidate, 0, len(entries))

	for _, e := range entries {
		title := textutil.Normalize(e.Title)
		body := textutil.Normalize(e.Summary)
		if title == "" && body == "" {
			continue
		}

		candidates = append(candidates, Candidate{
			Title:       textutil.Truncate(title, titleMaxRunes),
			Body:        body,
			Link:        e.Link,
			Source:      e.Source.Name,
			Tags:        e.Source.Tags,
			Fingerprint: Fingerprint(title, body),
			Score:       Score(title, body),
			Published:   e.Published,
			sourceIndex: e.SourceIndex,
			order:       e.Order,
		})
	}

	metrics.Global.AddCandidatesBuilt(int64(len(candidates)))
	return candidates
}

// Sort orders candidates for selection: score descending, then published
// timestamp descending (entries without a parseable timestamp sort oldest),
// then source declaration order, then the original fetch order within the
// source.
func Sort(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if !candidates[i].Published.Equal(candidates[j].Published) {
			return candidates[i].Published.After(candidates[j].Published)
		}
		if candidates[i].sourceIndex != candidates[j].sourceIndex {
			return candidates[i].sourceIndex < candidates[j].sourceIndex
		}
		return candidates[i].order < candidates[j].order
	})
}
