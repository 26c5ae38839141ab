package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog operations.
var (
	ErrCategoryNotFound        = errors.New("category not found")
	ErrCategoryExists          = errors.New("category already registered")
	ErrCharacteristicNotFound  = errors.New("characteristic not found")
	ErrCharacteristicExists    = errors.New("characteristic already registered")
	ErrDuplicateCharacteristic = errors.New("characteristic stated several times")
	ErrProductNotFound         = errors.New("product not found")
	ErrSKUExists               = errors.New("sku already registered")
	ErrInvalidPrice            = errors.New("price must be positive and below 10^12")
	ErrInvalidQuantity         = errors.New("inventory quantity must stay within 0 and 2147483647")
)

// MaxPrice is the exclusive upper bound of a price stored as NUMERIC(14, 2).
var MaxPrice = decimal.New(1, 12)

// Category groups products in the catalog.
type Category struct {
	ID          int64
	Name        string
	Description string
}

// Characteristic is a named product property such as color or length.
type Characteristic struct {
	ID   int64
	Name string
}

// ProductCharacteristic is a characteristic value attached to a product.
type ProductCharacteristic struct {
	Characteristic Characteristic
	Value          string
}

// Product is a catalog item identified by a unique SKU.
type Product struct {
	ID              int64
	Name            string
	SKU             string
	Description     string
	Price           decimal.Decimal
	Category        Category
	Characteristics []ProductCharacteristic
}

// Inventory is the quantity-on-hand counter owned by a product.
type Inventory struct {
	ID        int64
	ProductID int64
	Quantity  int
}

// CharacteristicValue references an existing characteristic by id.
type CharacteristicValue struct {
	CharacteristicID int64
	Value            string
}

// NewProduct holds the input for registering a product.
type NewProduct struct {
	Name            string
	SKU             string
	Description     string
	Price           decimal.Decimal
	CategoryID      int64
	Characteristics []CharacteristicValue
}

// Filters narrows a product listing. Zero values mean "no constraint".
type Filters struct {
	// Name matches products whose name contains the value.
	Name string
	// CategoryName matches the category name exactly.
	CategoryName string
	// SortByPrice orders the result by price, most expensive first.
	SortByPrice bool
}

// Pagination defaults.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// PageRequest selects a 1-based page of results.
type PageRequest struct {
	Page int
	Size int
}

// Normalize fills in defaults and clamps the page size.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of rows preceding the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Size
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Items []Product
	Total int
	Page  int
	Size  int
}

// Pages returns the number of pages needed to hold Total items.
func (p ProductPage) Pages() int {
	if p.Size <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// Repository defines persistence operations for the catalog.
type Repository interface {
	CategoryByID(ctx context.Context, id int64) (*Category, error)
	CategoryByName(ctx context.Context, name string) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) error

	CharacteristicByID(ctx context.Context, id int64) (*Characteristic, error)
	CharacteristicByName(ctx context.Context, name string) (*Characteristic, error)
	CreateCharacteristic(ctx context.Context, c *Characteristic) error

	ProductByID(ctx context.Context, id int64) (*Product, error)
	ProductBySKU(ctx context.Context, sku string) (*Product, error)
	// CreateProduct stores the product, its zero inventory row and its
	// characteristic values atomically.
	CreateProduct(ctx context.Context, p NewProduct) (*Product, error)
	ListProducts(ctx context.Context, f Filters, page PageRequest) (*ProductPage, error)

	IncreaseInventory(ctx context.Context, productID int64, inc int) (*Inventory, error)
}
