// Package assistant turns a chat transcript and a cart into a reply and an
// updated cart using keyword rules over the menu.
package assistant

import (
	"fmt"

	"github.com/xenking/menuchat/internal/domain/cart"
	"github.com/xenking/menuchat/internal/search"
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single chat message.
type Turn struct {
	Role    Role
	Content string
}

// Intent names the rule that produced a reply.
type Intent string

const (
	IntentAdd       Intent = "add"
	IntentRemove    Intent = "remove"
	IntentNotFound  Intent = "not_found"
	IntentNotInCart Intent = "not_in_cart"
	IntentPopular   Intent = "popular"
	IntentCalories  Intent = "calories"
	IntentBreakfast Intent = "breakfast"
	IntentKids      Intent = "kids"
	IntentSearch    Intent = "search"
	IntentHelp      Intent = "help"
)

// Request is the input of a single dispatch.
type Request struct {
	Transcript []Turn
	Cart       cart.Cart
}

// Result is the output of a single dispatch. Reply is never empty.
type Result struct {
	Reply  string
	Cart   cart.Cart
	Intent Intent
}

const helpReply = "I can help with menu suggestions, nutrition filters, and ordering. " +
	"Try: 'popular burgers', 'under 500 calories', or 'add Big Mac'."

// Assistant answers chat requests against a fixed menu. It holds no
// per-conversation state and is safe for concurrent use.
type Assistant struct {
	search *search.Searcher
	rules  []rule
}

// New creates an Assistant backed by s.
func New(s *search.Searcher) *Assistant {
	return &Assistant{search: s, rules: defaultRules()}
}

// Respond dispatches the last message of the transcript. Only the last turn
// is considered; an empty transcript gets the help reply.
func (a *Assistant) Respond(req Request) Result {
	var last string
	if n := len(req.Transcript); n > 0 {
		last = req.Transcript[n-1].Content
	}
	text := search.Normalize(last)

	if cmd, ok := ParseCommand(text); ok {
		return a.apply(cmd, req.Cart)
	}
	for _, r := range a.rules {
		if reply, ok := r.handle(a.search, text); ok {
			return Result{Reply: reply, Cart: req.Cart, Intent: r.intent}
		}
	}
	return Result{Reply: helpReply, Cart: req.Cart, Intent: IntentHelp}
}

func (a *Assistant) apply(cmd Command, c cart.Cart) Result {
	item, ok := a.search.FuzzyFind(cmd.Query)
	if !ok {
		return Result{
			Reply:  fmt.Sprintf("I couldn't find an item like %q. Try being more specific.", cmd.Query),
			Cart:   c,
			Intent: IntentNotFound,
		}
	}

	switch cmd.Op {
	case OpRemove:
		next, ok := c.Remove(item.ID, cmd.Quantity)
		if !ok {
			return Result{
				Reply:  fmt.Sprintf("%s isn't in your cart.", item.Name),
				Cart:   c,
				Intent: IntentNotInCart,
			}
		}
		return Result{
			Reply:  fmt.Sprintf("Removed %d × %s.", cmd.Quantity, item.Name),
			Cart:   next,
			Intent: IntentRemove,
		}
	default:
		qty := min(cmd.Quantity, cart.MaxQuantity)
		return Result{
			Reply:  fmt.Sprintf("Added %d × %s to your order.", qty, item.Name),
			Cart:   c.Add(item, qty),
			Intent: IntentAdd,
		}
	}
}
