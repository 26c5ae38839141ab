package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

type userRequest struct {
	Login           string  `json:"login" validate:"required,email,max=255"`
	FirstName       string  `json:"first_name" validate:"required,max=255"`
	SecondName      *string `json:"second_name" validate:"omitempty,max=255"`
	LastName        string  `json:"last_name" validate:"required,max=255"`
	TelephoneNumber *string `json:"telephone_number" validate:"omitempty,max=32"`
}

func (r *userRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "login":
			r.Login, err = d.Str()
		case "first_name":
			r.FirstName, err = d.Str()
		case "second_name":
			r.SecondName, err = decodeOptionalStr(d)
		case "last_name":
			r.LastName, err = d.Str()
		case "telephone_number":
			r.TelephoneNumber, err = decodeOptionalStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

type addressRequest struct {
	Country   string  `json:"country" validate:"required,max=255"`
	City      string  `json:"city" validate:"required,max=255"`
	Postcode  string  `json:"postcode" validate:"required,max=32"`
	Address   string  `json:"address" validate:"required,max=255"`
	Apartment *string `json:"apartment" validate:"omitempty,max=32"`
}

func (r *addressRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "country":
			r.Country, err = d.Str()
		case "city":
			r.City, err = d.Str()
		case "postcode":
			r.Postcode, err = d.Str()
		case "address":
			r.Address, err = d.Str()
		case "apartment":
			r.Apartment, err = decodeOptionalStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

type productRef struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

// orderItemRequest leaves quantity unchecked: the order workflow rejects
// non-positive quantities with a product-specific error.
type orderItemRequest struct {
	Product      productRef      `json:"product"`
	Quantity     int             `json:"quantity"`
	PricePerItem decimal.Decimal `json:"price_per_item" validate:"gte=0"`
}

func (r *orderItemRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "product":
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "id" {
					return d.Skip()
				}
				var err error
				r.Product.ID, err = d.Int64()
				return err
			})
		case "quantity":
			r.Quantity, err = d.Int()
		case "price_per_item":
			r.PricePerItem, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

type orderRequest struct {
	Total           decimal.Decimal    `json:"total" validate:"gte=0"`
	User            userRequest        `json:"user"`
	ShippingAddress addressRequest     `json:"shipping_address"`
	Items           []orderItemRequest `json:"items" validate:"dive"`
}

func (r *orderRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "total":
			r.Total, err = decodeDecimal(d)
		case "user":
			err = r.User.decode(d)
		case "shipping_address":
			err = r.ShippingAddress.decode(d)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var item orderItemRequest
				if err := item.decode(d); err != nil {
					return err
				}
				r.Items = append(r.Items, item)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
}

func (r *orderRequest) toDomain() order.CreateRequest {
	req := order.CreateRequest{
		Total: r.Total,
		User: order.User{
			Login:           r.User.Login,
			FirstName:       r.User.FirstName,
			SecondName:      r.User.SecondName,
			LastName:        r.User.LastName,
			TelephoneNumber: r.User.TelephoneNumber,
		},
		ShippingAddress: order.ShippingAddress{
			Country:   r.ShippingAddress.Country,
			City:      r.ShippingAddress.City,
			Postcode:  r.ShippingAddress.Postcode,
			Address:   r.ShippingAddress.Address,
			Apartment: r.ShippingAddress.Apartment,
		},
		Items: make([]order.Item, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		req.Items = append(req.Items, order.Item{
			ProductID:    item.Product.ID,
			Quantity:     item.Quantity,
			PricePerItem: item.PricePerItem,
		})
	}
	return req
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, o.Total) })
		e.Field("is_paid", func(e *jx.Encoder) { e.Bool(o.IsPaid) })
		e.Field("is_processed", func(e *jx.Encoder) { e.Bool(o.IsProcessed) })
		e.Field("state", func(e *jx.Encoder) { e.Str(string(o.State())) })
		e.Field("creation_date", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
		e.Field("user", func(e *jx.Encoder) {
			u := o.User
			e.Obj(func(e *jx.Encoder) {
				e.Field("login", func(e *jx.Encoder) { e.Str(u.Login) })
				e.Field("first_name", func(e *jx.Encoder) { e.Str(u.FirstName) })
				e.Field("second_name", func(e *jx.Encoder) { encodeOptionalStr(e, u.SecondName) })
				e.Field("last_name", func(e *jx.Encoder) { e.Str(u.LastName) })
				e.Field("telephone_number", func(e *jx.Encoder) { encodeOptionalStr(e, u.TelephoneNumber) })
			})
		})
		e.Field("shipping_address", func(e *jx.Encoder) {
			a := o.ShippingAddress
			e.Obj(func(e *jx.Encoder) {
				e.Field("country", func(e *jx.Encoder) { e.Str(a.Country) })
				e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
				e.Field("postcode", func(e *jx.Encoder) { e.Str(a.Postcode) })
				e.Field("address", func(e *jx.Encoder) { e.Str(a.Address) })
				e.Field("apartment", func(e *jx.Encoder) { encodeOptionalStr(e, a.Apartment) })
			})
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product", func(e *jx.Encoder) {
							e.Obj(func(e *jx.Encoder) {
								e.Field("id", func(e *jx.Encoder) { e.Int64(item.ProductID) })
							})
						})
						e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
						e.Field("price_per_item", func(e *jx.Encoder) { encodeDecimal(e, item.PricePerItem) })
					})
				}
			})
		})
	})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := h.decodeAndValidate(r, &req, req.decode); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.orders.Create(r.Context(), req.toDomain())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.orders.Complete(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}
