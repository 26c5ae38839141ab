package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
)

// Compile-time checks ensuring the domain services satisfy the handler ports.
var (
	_ Catalog = (*catalog.Service)(nil)
	_ Orders  = (*order.Service)(nil)
)

// Catalog is the catalog service used by the product endpoints.
type Catalog interface {
	AddCategory(ctx context.Context, name, description string) (*catalog.Category, error)
	AddCharacteristic(ctx context.Context, name string) (*catalog.Characteristic, error)
	AddProduct(ctx context.Context, p catalog.NewProduct) (*catalog.Product, error)
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
	ListProducts(ctx context.Context, f catalog.Filters, page catalog.PageRequest) (*catalog.ProductPage, error)
	IncreaseInventory(ctx context.Context, productID int64, inc int) (*catalog.Inventory, error)
}

// Orders is the order workflow used by the order endpoints.
type Orders interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	Complete(ctx context.Context, id int64) (*order.Order, error)
	Get(ctx context.Context, id int64) (*order.Order, error)
}

// Handler serves the JSON API, delegating business logic to the catalog and
// order services.
type Handler struct {
	catalog  Catalog
	orders   Orders
	validate *validator.Validate
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(catalog Catalog, orders Orders) *Handler {
	return &Handler{
		catalog:  catalog,
		orders:   orders,
		validate: newValidator(),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/products/categories", h.createCategory)
	mux.HandleFunc("POST /api/products/characteristic", h.createCharacteristic)
	mux.HandleFunc("POST /api/products", h.createProduct)
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("PATCH /api/products/{id}/inventory", h.increaseInventory)

	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("PATCH /api/orders/{id}", h.completeOrder)
}
