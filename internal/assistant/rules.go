package assistant

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xenking/menuchat/internal/domain/catalog"
	"github.com/xenking/menuchat/internal/search"
)

const (
	popularHint = `Say things like "add Big Mac" or "what's under 500 calories".`
	searchHint  = `You can say "add <item name>" to add to cart.`

	kidsLimit   = 6
	minTokenLen = 3
)

var (
	popularRe   = regexp.MustCompile(`\b(popular|recommend|suggest|best|famous)\b`)
	caloriesRe  = regexp.MustCompile(`(under|below|less than)\s+(\d{2,4})\s*(?:cal|calories)?`)
	breakfastRe = regexp.MustCompile(`\b(breakfast|morning|coffee)\b`)
	kidsRe      = regexp.MustCompile(`\b(kid|happy meal|kids)\b`)
)

// rule is one entry of the intent table. handle reports false when the rule
// does not apply to the text.
type rule struct {
	intent Intent
	handle func(s *search.Searcher, text string) (string, bool)
}

// defaultRules returns the intent table in priority order. The keyword
// search is last since it would match most of what the others do.
func defaultRules() []rule {
	return []rule{
		{intent: IntentPopular, handle: popularRule},
		{intent: IntentCalories, handle: caloriesRule},
		{intent: IntentBreakfast, handle: breakfastRule},
		{intent: IntentKids, handle: kidsRule},
		{intent: IntentSearch, handle: keywordRule},
	}
}

func popularRule(s *search.Searcher, text string) (string, bool) {
	if !popularRe.MatchString(text) {
		return "", false
	}
	items := s.Popular(search.DefaultPopularLimit)
	return "Here are some popular picks:\n" + bulleted(items) + "\n\n" + popularHint, true
}

func caloriesRule(s *search.Searcher, text string) (string, bool) {
	m := caloriesRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	limit, err := strconv.Atoi(m[2])
	if err != nil {
		return "", false
	}
	items := truncate(s.UnderCalories(limit), maxListed)
	return "Options under " + strconv.Itoa(limit) + " calories:\n" + bulleted(items), true
}

func breakfastRule(s *search.Searcher, text string) (string, bool) {
	if !breakfastRe.MatchString(text) {
		return "", false
	}
	var items []catalog.Item
	items = append(items, s.FindByKeywords([]string{"breakfast"})...)
	items = append(items, s.FindByKeywords([]string{"coffee"})...)
	return "Breakfast ideas:\n" + bulleted(truncate(items, maxListed)), true
}

func kidsRule(s *search.Searcher, text string) (string, bool) {
	if !kidsRe.MatchString(text) {
		return "", false
	}
	items := truncate(s.FindByKeywords([]string{"kids"}), kidsLimit)
	return "Kids options:\n" + bulleted(items), true
}

func keywordRule(s *search.Searcher, text string) (string, bool) {
	var keywords []string
	for _, w := range strings.Split(text, " ") {
		if len(w) >= minTokenLen {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) == 0 {
		return "", false
	}
	matches := s.FindByKeywords(keywords)
	if len(matches) == 0 {
		return "", false
	}
	return "Here is what I found:\n" + bulleted(truncate(matches, maxListed)) + "\n\n" + searchHint, true
}
