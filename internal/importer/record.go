// Package importer loads catalog records into the catalog service. It backs
// the seed and bulk import commands.
package importer

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Attribute is a named characteristic value of a record.
type Attribute struct {
	Name  string
	Value string
}

// Record is one product line of an import file:
//
//	{"name": "...", "sku": "...", "description": "...", "price": "9.99",
//	 "category": "...", "category_description": "...",
//	 "characteristics": {"Rope length": "3m"}, "stock": 10}
//
// Categories and characteristics are referenced by name and created when
// missing.
type Record struct {
	Name                string
	SKU                 string
	Description         string
	Price               decimal.Decimal
	Category            string
	CategoryDescription string
	Characteristics     []Attribute
	Stock               int
}

// Validate checks the fields the catalog cannot default.
func (r *Record) Validate() error {
	switch {
	case r.SKU == "":
		return errors.New("sku is required")
	case r.Name == "":
		return errors.Errorf("name is required for sku %q", r.SKU)
	case r.Category == "":
		return errors.Errorf("category is required for sku %q", r.SKU)
	case r.Stock < 0:
		return errors.Errorf("stock of sku %q is negative", r.SKU)
	}
	return nil
}

// DecodeRecord parses one JSON line. Unknown fields are ignored.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			r.Name, err = d.Str()
		case "sku":
			r.SKU, err = d.Str()
		case "description":
			r.Description, err = d.Str()
		case "price":
			r.Price, err = decodePrice(d)
		case "category":
			r.Category, err = d.Str()
		case "category_description":
			r.CategoryDescription, err = d.Str()
		case "characteristics":
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				v, err := d.Str()
				if err != nil {
					return err
				}
				r.Characteristics = append(r.Characteristics, Attribute{Name: string(key), Value: v})
				return nil
			})
		case "stock":
			r.Stock, err = d.Int()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return Record{}, errors.Wrap(err, "decode record")
	}
	return r, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(string(n))
}
