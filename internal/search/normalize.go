package search

import (
	"strings"
	"unicode"
)

// Normalize lowercases text, replaces every character other than ASCII
// letters, digits and whitespace with a space, collapses whitespace runs and
// trims the result.
func Normalize(text string) string {
	mapped := strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		switch {
		case 'a' <= r && r <= 'z', '0' <= r && r <= '9':
			return r
		default:
			return ' '
		}
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}
