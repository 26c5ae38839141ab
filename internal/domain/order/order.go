package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for the order workflow.
var (
	ErrEmptyItems            = errors.New("items required")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderAlreadyCompleted = errors.New("order is already completed")
	ErrOrderNotPaid          = errors.New("order is not paid yet")
	ErrUserNotFound          = errors.New("user not found")
	ErrAmountOutOfRange      = errors.New("amount must be below 10^12")
)

// ProductNotFoundError indicates an order item references a missing product.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InsufficientStockError indicates the inventory cannot cover an order item.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough items in stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// User is the customer placing orders. Login is an email address.
type User struct {
	ID              int64
	Login           string
	FirstName       string
	SecondName      *string
	LastName        string
	TelephoneNumber *string
}

// SameContact reports whether u and other carry identical contact fields.
func (u User) SameContact(other User) bool {
	return u.Login == other.Login &&
		u.FirstName == other.FirstName &&
		u.LastName == other.LastName &&
		equalOptional(u.SecondName, other.SecondName) &&
		equalOptional(u.TelephoneNumber, other.TelephoneNumber)
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ShippingAddress is where an order is delivered.
type ShippingAddress struct {
	ID        int64
	Country   string
	City      string
	Postcode  string
	Address   string
	Apartment *string
}

// MoneyPlaces is the scale money is stored with. Amounts with more places
// are rounded half away from zero, as the database does.
const MoneyPlaces = 2

// MaxAmount is the exclusive upper bound of a stored amount, NUMERIC(14, 2).
var MaxAmount = decimal.New(1, 12)

// Item is a single order line. PricePerItem is a snapshot taken when the
// order was placed and does not follow later product price changes.
type Item struct {
	ID           int64
	ProductID    int64
	Quantity     int
	PricePerItem decimal.Decimal
}

// State is the fulfillment state of an order.
type State string

// Order states.
const (
	StateUnpaid    State = "unpaid"
	StatePaid      State = "paid"
	StateProcessed State = "processed"
)

// Order is the aggregate root of the workflow.
type Order struct {
	ID              int64
	Total           decimal.Decimal
	IsPaid          bool
	IsProcessed     bool
	CreatedAt       time.Time
	User            User
	ShippingAddress ShippingAddress
	Items           []Item
}

// State derives the fulfillment state from the paid and processed flags.
func (o *Order) State() State {
	switch {
	case o.IsProcessed:
		return StateProcessed
	case o.IsPaid:
		return StatePaid
	default:
		return StateUnpaid
	}
}

// Complete moves a paid order to the processed state. Completion is not
// idempotent: a processed order yields ErrOrderAlreadyCompleted.
func (o *Order) Complete() error {
	if o.IsProcessed {
		return ErrOrderAlreadyCompleted
	}
	if !o.IsPaid {
		return ErrOrderNotPaid
	}
	o.IsProcessed = true
	return nil
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	Total           decimal.Decimal
	User            User
	ShippingAddress ShippingAddress
	Items           []Item
}

// Store opens transactions over order persistence.
type Store interface {
	// InTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Get loads an order with its user, address and items.
	Get(ctx context.Context, id int64) (*Order, error)
}

// Tx is the set of operations available inside a Store transaction.
type Tx interface {
	UserByLogin(ctx context.Context, login string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error

	CreateShippingAddress(ctx context.Context, a *ShippingAddress) error

	CreateOrder(ctx context.Context, o *Order) error
	AddItem(ctx context.Context, orderID int64, item *Item) error

	// LockStock locks the product's inventory row until the transaction
	// ends and returns the quantity on hand.
	LockStock(ctx context.Context, productID int64) (int, error)
	DecreaseStock(ctx context.Context, productID int64, qty int) error

	// LockOrder loads an order and locks it until the transaction ends.
	LockOrder(ctx context.Context, id int64) (*Order, error)
	MarkProcessed(ctx context.Context, id int64) error
}
