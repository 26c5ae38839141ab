package redis

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
)

func encodeProduct(p *catalog.Product) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("sku", func(e *jx.Encoder) { e.Str(p.SKU) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("price", func(e *jx.Encoder) { e.Str(p.Price.String()) })
		e.Field("category", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Int64(p.Category.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(p.Category.Name) })
				e.Field("description", func(e *jx.Encoder) { e.Str(p.Category.Description) })
			})
		})
		e.Field("characteristics", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, c := range p.Characteristics {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Int64(c.Characteristic.ID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(c.Characteristic.Name) })
						e.Field("value", func(e *jx.Encoder) { e.Str(c.Value) })
					})
				}
			})
		})
	})
	return e.Bytes()
}

func decodeProduct(data []byte) (*catalog.Product, error) {
	var p catalog.Product
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Int64()
		case "name":
			p.Name, err = d.Str()
		case "sku":
			p.SKU, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "price":
			var s string
			if s, err = d.Str(); err == nil {
				p.Price, err = decimal.NewFromString(s)
			}
		case "category":
			err = decodeCategory(d, &p.Category)
		case "characteristics":
			err = d.Arr(func(d *jx.Decoder) error {
				var pc catalog.ProductCharacteristic
				if err := decodeCharacteristic(d, &pc); err != nil {
					return err
				}
				p.Characteristics = append(p.Characteristics, pc)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode product")
	}
	return &p, nil
}

func decodeCategory(d *jx.Decoder, c *catalog.Category) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			c.ID, err = d.Int64()
		case "name":
			c.Name, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeCharacteristic(d *jx.Decoder, pc *catalog.ProductCharacteristic) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			pc.Characteristic.ID, err = d.Int64()
		case "name":
			pc.Characteristic.Name, err = d.Str()
		case "value":
			pc.Value, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}
