// Package search implements menu lookups over a catalog: keyword, popularity
// and calorie filters, and a best-effort single item match.
package search

import (
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/xenking/menuchat/internal/domain/catalog"
)

// DefaultPopularLimit is the number of popular items returned when no
// explicit limit is given.
const DefaultPopularLimit = 6

const (
	fullQueryScore = 5
	wordScore      = 1

	bloomFPR = 0.01
)

type entry struct {
	item     catalog.Item
	haystack string
}

// Searcher answers menu queries. It is read-only after New and safe for
// concurrent use.
type Searcher struct {
	entries []entry
	// substrings holds every substring of every haystack word. A keyword
	// without spaces can only match inside a single word, so a negative
	// answer means no item contains it.
	substrings *bloom.BloomFilter
}

// New indexes every item of cat.
func New(cat *catalog.Catalog) *Searcher {
	items := cat.Items()
	s := &Searcher{entries: make([]entry, len(items))}

	var words []string
	n := 0
	for i, item := range items {
		hay := Haystack(item)
		s.entries[i] = entry{item: item, haystack: hay}
		for _, w := range strings.Fields(hay) {
			words = append(words, w)
			n += len(w) * (len(w) + 1) / 2
		}
	}

	s.substrings = bloom.NewWithEstimates(uint(max(n, 1)), bloomFPR)
	for _, w := range words {
		for i := range len(w) {
			for j := i + 1; j <= len(w); j++ {
				s.substrings.AddString(w[i:j])
			}
		}
	}
	return s
}

// Haystack returns the normalized name and tags of item, the text all
// lookups match against.
func Haystack(item catalog.Item) string {
	return Normalize(item.Name + " " + strings.Join(item.Tags, " "))
}

// FindByKeywords returns every item whose haystack contains all keywords as
// substrings, in catalog order. No keywords matches everything.
func (s *Searcher) FindByKeywords(keywords []string) []catalog.Item {
	for _, k := range keywords {
		if !s.mayContain(k) {
			return nil
		}
	}

	var out []catalog.Item
	for _, e := range s.entries {
		if containsAll(e.haystack, keywords) {
			out = append(out, e.item)
		}
	}
	return out
}

// Popular returns up to limit popular items in catalog order. A non-positive
// limit uses DefaultPopularLimit.
func (s *Searcher) Popular(limit int) []catalog.Item {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	var out []catalog.Item
	for _, e := range s.entries {
		if len(out) == limit {
			break
		}
		if e.item.Popular {
			out = append(out, e.item)
		}
	}
	return out
}

// UnderCalories returns every item with at most maxCalories, in catalog order.
func (s *Searcher) UnderCalories(maxCalories int) []catalog.Item {
	var out []catalog.Item
	for _, e := range s.entries {
		if e.item.Calories <= maxCalories {
			out = append(out, e.item)
		}
	}
	return out
}

// FuzzyFind returns the item that best matches query. An item scores 5 if
// its haystack contains the whole normalized query and 1 for every query
// word it contains. The first item with the highest score wins; a best score
// of zero is no match.
func (s *Searcher) FuzzyFind(query string) (catalog.Item, bool) {
	q := Normalize(query)
	words := strings.Split(q, " ")

	var (
		best      catalog.Item
		bestScore int
	)
	for _, e := range s.entries {
		score := 0
		if strings.Contains(e.haystack, q) {
			score += fullQueryScore
		}
		for _, w := range words {
			if strings.Contains(e.haystack, w) {
				score += wordScore
			}
		}
		if score > bestScore {
			best, bestScore = e.item, score
		}
	}
	return best, bestScore > 0
}

func (s *Searcher) mayContain(keyword string) bool {
	if keyword == "" || strings.ContainsFunc(keyword, isSpace) {
		return true
	}
	return s.substrings.TestString(keyword)
}

func containsAll(haystack string, keywords []string) bool {
	for _, k := range keywords {
		if !strings.Contains(haystack, k) {
			return false
		}
	}
	return true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
