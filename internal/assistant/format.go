package assistant

import (
	"fmt"
	"strings"

	"github.com/xenking/menuchat/internal/domain/catalog"
)

const (
	maxListed  = 8
	noMatchRow = "- No matching items found."
)

// bulleted renders at most maxListed items as "- <name> – $<price> (<cal> cal)"
// lines.
func bulleted(items []catalog.Item) string {
	if len(items) == 0 {
		return noMatchRow
	}
	items = truncate(items, maxListed)

	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s – $%s (%d cal)", item.Name, item.Price.StringFixed(2), item.Calories)
	}
	return b.String()
}

func truncate(items []catalog.Item, n int) []catalog.Item {
	if len(items) > n {
		return items[:n]
	}
	return items
}
