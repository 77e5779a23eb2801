package handler

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/menuchat/internal/assistant"
	"github.com/xenking/menuchat/internal/domain/cart"
	"github.com/xenking/menuchat/internal/domain/catalog"
	"github.com/xenking/menuchat/internal/storage/menufile"
)

var (
	// errInvalidJSON is returned for bodies that are not a single JSON value.
	errInvalidJSON = errors.New("invalid JSON")
	// errNullBody is returned for a body that is the JSON literal null.
	errNullBody = errors.New("request body is null")
)

// decodeChatRequest decodes a chat body leniently. Malformed JSON and a null
// body are errors. Wrongly typed fields are coerced to their zero value.
// Cart elements of the wrong type are skipped, while a message of the wrong
// type becomes an empty turn so it still counts as the last one. Any other
// non-object body is an empty request.
func decodeChatRequest(data []byte) (assistant.Request, error) {
	if !jx.Valid(data) {
		return assistant.Request{}, errInvalidJSON
	}

	var req assistant.Request
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Object:
	case jx.Null:
		return assistant.Request{}, errNullBody
	default:
		return req, nil
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "messages":
			turns, err := decodeTurns(d)
			req.Transcript = turns
			return err
		case "cart":
			lines, err := decodeLines(d)
			req.Cart = lines
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return assistant.Request{}, errors.Wrap(err, "decode chat request")
	}
	req.Cart = req.Cart.Normalize()
	return req, nil
}

func decodeTurns(d *jx.Decoder) ([]assistant.Turn, error) {
	if d.Next() != jx.Array {
		return nil, d.Skip()
	}
	var turns []assistant.Turn
	err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			turns = append(turns, assistant.Turn{})
			return d.Skip()
		}
		var t assistant.Turn
		err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "role":
				v, err := lenientStr(d)
				t.Role = assistant.Role(v)
				return err
			case "content":
				v, err := lenientStr(d)
				t.Content = v
				return err
			default:
				return d.Skip()
			}
		})
		turns = append(turns, t)
		return err
	})
	return turns, err
}

func decodeLines(d *jx.Decoder) (cart.Cart, error) {
	if d.Next() != jx.Array {
		return nil, d.Skip()
	}
	var lines cart.Cart
	err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return d.Skip()
		}
		var l cart.Line
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				l.ID, err = lenientStr(d)
			case "name":
				l.Name, err = lenientStr(d)
			case "price":
				l.Price, err = lenientDecimal(d)
			case "quantity":
				l.Quantity, err = lenientQuantity(d)
			default:
				err = d.Skip()
			}
			return err
		})
		lines = append(lines, l)
		return err
	})
	return lines, err
}

// lenientStr reads a string, or skips any other value and returns "".
func lenientStr(d *jx.Decoder) (string, error) {
	if d.Next() != jx.String {
		return "", d.Skip()
	}
	return d.Str()
}

// lenientQuantity reads a quantity written as any integral JSON number,
// such as 2, 2.0 or 1e1. Values above cart.MaxQuantity are clamped. Fractions,
// negative numbers and non-numbers yield zero, which drops the line.
func lenientQuantity(d *jx.Decoder) (int, error) {
	if d.Next() != jx.Number {
		return 0, d.Skip()
	}
	raw, err := d.Raw()
	if err != nil {
		return 0, err
	}
	v, err := decimal.NewFromString(string(raw))
	if err != nil || !v.IsInteger() || !v.IsPositive() {
		return 0, nil
	}
	if v.GreaterThan(decimal.NewFromInt(cart.MaxQuantity)) {
		return cart.MaxQuantity, nil
	}
	return int(v.IntPart()), nil
}

// lenientDecimal reads a number or numeric string. Anything else yields zero.
func lenientDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number, jx.String:
		v, err := menufile.DecodeDecimal(d)
		if err != nil {
			// The value was consumed; an unparsable one is a zero price.
			return decimal.Zero, nil
		}
		return v, nil
	default:
		return decimal.Zero, d.Skip()
	}
}

func encodeChatResponse(e *jx.Encoder, res assistant.Result) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("reply", func(e *jx.Encoder) { e.Str(res.Reply) })
		e.Field("cart", func(e *jx.Encoder) { encodeLines(e, res.Cart) })
		e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, res.Cart.Subtotal()) })
	})
}

func encodeLines(e *jx.Encoder, lines cart.Cart) {
	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(l.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
				e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, l.Price) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
			})
		}
	})
}

// encodeFallback writes the body returned when a request cannot be served.
func encodeFallback(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("reply", func(e *jx.Encoder) { e.Str(fallbackReply) })
		e.Field("cart", func(e *jx.Encoder) { e.ArrEmpty() })
	})
}

func encodeMenu(e *jx.Encoder, categories []catalog.Category) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("categories", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, c := range categories {
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
						e.Field("items", func(e *jx.Encoder) {
							e.Arr(func(e *jx.Encoder) {
								for _, item := range c.Items {
									encodeItem(e, item)
								}
							})
						})
					})
				}
			})
		})
	})
}

func encodeItem(e *jx.Encoder, item catalog.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(item.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(item.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, item.Price) })
		e.Field("calories", func(e *jx.Encoder) { e.Int(item.Calories) })
		e.Field("popular", func(e *jx.Encoder) { e.Bool(item.Popular) })
		e.Field("tags", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, tag := range item.Tags {
					e.Str(tag)
				}
			})
		})
	})
}

// encodeDecimal writes v as a JSON number with its exact decimal text.
func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.String()))
}
