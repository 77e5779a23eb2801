package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrDuplicateID is returned when two items in a catalog share an identifier.
var ErrDuplicateID = errors.New("duplicate item id")

// InvalidItemError indicates an item that cannot be served to customers.
type InvalidItemError struct {
	ItemID string
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("item %q: %s", e.ItemID, e.Reason)
}

// Item represents a single menu entry available for purchase.
type Item struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Calories int
	Popular  bool
	Tags     []string
	// Category is the name of the category the item is listed under.
	Category string
}

// Category groups menu items under a display name.
type Category struct {
	Name  string
	Items []Item
}

// Source loads menu categories from a backing store.
type Source interface {
	Load(ctx context.Context) ([]Category, error)
}

// Catalog is an immutable, ordered menu. It is safe for concurrent use.
type Catalog struct {
	categories []Category
	items      []Item
	byID       map[string]int
}

// New validates categories and builds a Catalog from a deep copy of them.
func New(categories []Category) (*Catalog, error) {
	c := &Catalog{
		categories: make([]Category, 0, len(categories)),
		byID:       make(map[string]int),
	}
	for _, cat := range categories {
		copied := Category{Name: cat.Name, Items: make([]Item, 0, len(cat.Items))}
		for _, item := range cat.Items {
			if err := validate(item); err != nil {
				return nil, err
			}
			if _, ok := c.byID[item.ID]; ok {
				return nil, errors.Wrapf(ErrDuplicateID, "item %q", item.ID)
			}
			item.Category = cat.Name
			item.Tags = append([]string(nil), item.Tags...)

			c.byID[item.ID] = len(c.items)
			c.items = append(c.items, item)
			copied.Items = append(copied.Items, item)
		}
		c.categories = append(c.categories, copied)
	}
	return c, nil
}

// Load reads categories from src and builds a Catalog.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	categories, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load categories")
	}
	return New(categories)
}

func validate(item Item) error {
	switch {
	case item.ID == "":
		return &InvalidItemError{ItemID: item.Name, Reason: "empty id"}
	case item.Name == "":
		return &InvalidItemError{ItemID: item.ID, Reason: "empty name"}
	case item.Price.IsNegative():
		return &InvalidItemError{ItemID: item.ID, Reason: "negative price"}
	case item.Calories < 0:
		return &InvalidItemError{ItemID: item.ID, Reason: "negative calories"}
	}
	return nil
}

// Categories returns the menu categories in catalog order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Category{Name: cat.Name, Items: append([]Item(nil), cat.Items...)}
	}
	return out
}

// Items returns every item flattened across categories: category order, then
// item order within the category.
func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

// Get returns the item with the given id.
func (c *Catalog) Get(id string) (Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Len returns the number of items in the catalog.
func (c *Catalog) Len() int {
	return len(c.items)
}
