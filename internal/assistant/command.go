package assistant

import (
	"regexp"
	"strconv"
)

// Op is a cart operation requested explicitly by the user.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Command is an explicit "add" or "remove" directive.
type Command struct {
	Op       Op
	Quantity int
	Query    string
}

var commandRe = regexp.MustCompile(`^(?:please\s+)?(add|remove)\s+(\d+)?\s*(.+)$`)

// ParseCommand recognizes "[please] add|remove [N] <item>" at the start of
// normalized text. The quantity defaults to 1, and 0 is read as 1. Text
// without an item after the verb is not a command.
func ParseCommand(text string) (Command, bool) {
	m := commandRe.FindStringSubmatch(text)
	if m == nil {
		return Command{}, false
	}

	qty := 1
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return Command{}, false
		}
		if n > 0 {
			qty = n
		}
	}
	return Command{Op: Op(m[1]), Quantity: qty, Query: m[3]}, true
}
