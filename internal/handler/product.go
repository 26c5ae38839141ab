package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
)

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=4096"`
}

func (r *categoryRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			r.Name, err = d.Str()
		case "description":
			r.Description, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type characteristicRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (r *characteristicRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "name" {
			return d.Skip()
		}
		var err error
		r.Name, err = d.Str()
		return err
	})
}

type characteristicValueRequest struct {
	CharacteristicID int64  `json:"characteristic_id" validate:"required,gt=0"`
	Value            string `json:"characteristic_value" validate:"required,max=255"`
}

// productRequest carries no price rule: a non-positive price is a conflict
// reported by the catalog service.
type productRequest struct {
	Name            string                       `json:"name" validate:"required,max=255"`
	SKU             string                       `json:"sku" validate:"required,max=64"`
	Description     string                       `json:"description" validate:"max=4096"`
	Price           decimal.Decimal              `json:"price"`
	CategoryID      int64                        `json:"category_id" validate:"required,gt=0"`
	Characteristics []characteristicValueRequest `json:"characteristics" validate:"dive"`
}

func (r *productRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			r.Name, err = d.Str()
		case "sku":
			r.SKU, err = d.Str()
		case "description":
			r.Description, err = d.Str()
		case "price":
			r.Price, err = decodeDecimal(d)
		case "category_id":
			r.CategoryID, err = d.Int64()
		case "characteristics":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				var c characteristicValueRequest
				if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					var err error
					switch string(key) {
					case "characteristic_id":
						c.CharacteristicID, err = d.Int64()
					case "characteristic_value":
						c.Value, err = d.Str()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				r.Characteristics = append(r.Characteristics, c)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
}

func (r *productRequest) toDomain() catalog.NewProduct {
	p := catalog.NewProduct{
		Name:        r.Name,
		SKU:         r.SKU,
		Description: r.Description,
		Price:       r.Price,
		CategoryID:  r.CategoryID,
	}
	for _, c := range r.Characteristics {
		p.Characteristics = append(p.Characteristics, catalog.CharacteristicValue{
			CharacteristicID: c.CharacteristicID,
			Value:            c.Value,
		})
	}
	return p
}

func encodeCategory(e *jx.Encoder, c *catalog.Category) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
	})
}

func encodeCharacteristic(e *jx.Encoder, c *catalog.Characteristic) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
	})
}

func encodeProduct(e *jx.Encoder, p *catalog.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("sku", func(e *jx.Encoder) { e.Str(p.SKU) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
		e.Field("category", func(e *jx.Encoder) { encodeCategory(e, &p.Category) })
		e.Field("characteristics", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range p.Characteristics {
					c := &p.Characteristics[i]
					e.Obj(func(e *jx.Encoder) {
						e.Field("characteristic_value", func(e *jx.Encoder) { e.Str(c.Value) })
						e.Field("characteristic", func(e *jx.Encoder) { encodeCharacteristic(e, &c.Characteristic) })
					})
				}
			})
		})
	})
}

func encodeProductPage(e *jx.Encoder, p *catalog.ProductPage) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range p.Items {
					encodeProduct(e, &p.Items[i])
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { e.Int(p.Total) })
		e.Field("page", func(e *jx.Encoder) { e.Int(p.Page) })
		e.Field("size", func(e *jx.Encoder) { e.Int(p.Size) })
		e.Field("pages", func(e *jx.Encoder) { e.Int(p.Pages()) })
	})
}

func encodeInventory(e *jx.Encoder, inv *catalog.Inventory) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(inv.ID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(inv.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(inv.Quantity) })
	})
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := h.decodeAndValidate(r, &req, req.decode); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	c, err := h.catalog.AddCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCategory(e, c) })
}

func (h *Handler) createCharacteristic(w http.ResponseWriter, r *http.Request) {
	var req characteristicRequest
	if err := h.decodeAndValidate(r, &req, req.decode); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	c, err := h.catalog.AddCharacteristic(r.Context(), req.Name)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCharacteristic(e, c) })
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := h.decodeAndValidate(r, &req, req.decode); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	p, err := h.catalog.AddProduct(r.Context(), req.toDomain())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, p) })
}

// listProducts serves GET /api/products. Page and size outside their ranges
// are clamped; values that are not integers are rejected.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filters{
		Name:         q.Get("filter_by_name"),
		CategoryName: q.Get("filter_by_category_name"),
	}
	var page catalog.PageRequest

	var err error
	if v := q.Get("sort_by_price"); v != "" {
		if f.SortByPrice, err = strconv.ParseBool(v); err != nil {
			writeError(r.Context(), w, &paramError{Name: "sort_by_price", Value: v})
			return
		}
	}
	if v := q.Get("page"); v != "" {
		if page.Page, err = strconv.Atoi(v); err != nil {
			writeError(r.Context(), w, &paramError{Name: "page", Value: v})
			return
		}
	}
	if v := q.Get("size"); v != "" {
		if page.Size, err = strconv.Atoi(v); err != nil {
			writeError(r.Context(), w, &paramError{Name: "size", Value: v})
			return
		}
	}

	res, err := h.catalog.ListProducts(r.Context(), f, page)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProductPage(e, res) })
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) increaseInventory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	raw := r.URL.Query().Get("inc_value")
	inc, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		writeError(r.Context(), w, &paramError{Name: "inc_value", Value: raw})
		return
	}
	inv, err := h.catalog.IncreaseInventory(r.Context(), id, int(inc))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeInventory(e, inv) })
}

// decodeAndValidate reads the body into req and checks its field rules.
func (h *Handler) decodeAndValidate(r *http.Request, req any, decode func(d *jx.Decoder) error) error {
	if err := readBody(r, decode); err != nil {
		return err
	}
	return h.validate.StructCtx(r.Context(), req)
}
