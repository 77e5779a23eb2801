// Package menufile reads menus in the JSON menu format, either embedded in
// the binary or from disk. Files ending in ".gz" are gzip-compressed.
package menufile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/menuchat/internal/domain/catalog"
)

// ErrEmptyMenu is returned when a menu document contains no categories.
var ErrEmptyMenu = errors.New("menu has no categories")

var (
	_ catalog.Source = (*Bytes)(nil)
	_ catalog.Source = (*File)(nil)
)

// Bytes is a catalog.Source over an in-memory menu document.
type Bytes struct {
	data []byte
}

// NewBytes returns a source that decodes data on every Load.
func NewBytes(data []byte) *Bytes {
	return &Bytes{data: data}
}

// Load decodes the menu document.
func (b *Bytes) Load(_ context.Context) ([]catalog.Category, error) {
	return Decode(b.data)
}

// File is a catalog.Source reading a menu document from disk.
type File struct {
	path string
}

// NewFile returns a source for the menu file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load opens, optionally decompresses, and decodes the menu file.
func (f *File) Load(_ context.Context) ([]catalog.Category, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, errors.Wrap(err, "open menu file")
	}
	defer func() { _ = file.Close() }()

	var r io.Reader = file
	if strings.EqualFold(filepath.Ext(f.path), ".gz") {
		zr, err := pgzip.NewReader(file)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", f.path)
	}
	categories, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", f.path)
	}
	return categories, nil
}

// Decode reads a menu document:
//
//	{"categories":[{"name":"...","items":[{"id":"...","name":"...","price":1.99,
//	  "calories":100,"popular":true,"tags":["..."]}]}]}
//
// Unknown fields are ignored.
func Decode(data []byte) ([]catalog.Category, error) {
	var categories []catalog.Category
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "categories" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			c, err := decodeCategory(d)
			if err != nil {
				return err
			}
			categories = append(categories, c)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode menu")
	}
	if len(categories) == 0 {
		return nil, ErrEmptyMenu
	}
	return categories, nil
}

func decodeCategory(d *jx.Decoder) (catalog.Category, error) {
	var c catalog.Category
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := d.Str()
			c.Name = v
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d)
				if err != nil {
					return err
				}
				c.Items = append(c.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return c, err
}

func decodeItem(d *jx.Decoder) (catalog.Item, error) {
	var item catalog.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			item.ID, err = d.Str()
		case "name":
			item.Name, err = d.Str()
		case "price":
			item.Price, err = DecodeDecimal(d)
		case "calories":
			item.Calories, err = d.Int()
		case "popular":
			item.Popular, err = d.Bool()
		case "tags":
			err = d.Arr(func(d *jx.Decoder) error {
				tag, err := d.Str()
				item.Tags = append(item.Tags, tag)
				return err
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	return item, err
}

// DecodeDecimal reads a JSON number, or a string holding one, without going
// through float64.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	raw, err := d.Raw()
	if err != nil {
		return decimal.Decimal{}, err
	}
	var v decimal.Decimal
	if err := v.UnmarshalJSON(raw); err != nil {
		return decimal.Decimal{}, err
	}
	return v, nil
}
