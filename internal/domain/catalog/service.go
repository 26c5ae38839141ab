package catalog

import (
	"context"
	"fmt"
	"math"

	"github.com/go-faster/errors"
)

// Service encapsulates catalog business rules on top of a Repository.
type Service struct {
	repo Repository
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AddCategory registers a category with a unique name.
func (s *Service) AddCategory(ctx context.Context, name, description string) (*Category, error) {
	_, err := s.repo.CategoryByName(ctx, name)
	switch {
	case err == nil:
		return nil, ErrCategoryExists
	case !errors.Is(err, ErrCategoryNotFound):
		return nil, fmt.Errorf("get category %q: %w", name, err)
	}

	c := &Category{Name: name, Description: description}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// AddCharacteristic registers a characteristic with a unique name.
func (s *Service) AddCharacteristic(ctx context.Context, name string) (*Characteristic, error) {
	_, err := s.repo.CharacteristicByName(ctx, name)
	switch {
	case err == nil:
		return nil, ErrCharacteristicExists
	case !errors.Is(err, ErrCharacteristicNotFound):
		return nil, fmt.Errorf("get characteristic %q: %w", name, err)
	}

	c := &Characteristic{Name: name}
	if err := s.repo.CreateCharacteristic(ctx, c); err != nil {
		return nil, fmt.Errorf("create characteristic: %w", err)
	}
	return c, nil
}

// AddProduct checks the category, SKU, price and characteristics of p and
// stores it together with an empty inventory.
func (s *Service) AddProduct(ctx context.Context, p NewProduct) (*Product, error) {
	if _, err := s.repo.CategoryByID(ctx, p.CategoryID); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get category %d: %w", p.CategoryID, err)
	}

	_, err := s.repo.ProductBySKU(ctx, p.SKU)
	switch {
	case err == nil:
		return nil, ErrSKUExists
	case !errors.Is(err, ErrProductNotFound):
		return nil, fmt.Errorf("get product by sku %q: %w", p.SKU, err)
	}

	if !p.Price.IsPositive() || p.Price.Round(2).GreaterThanOrEqual(MaxPrice) {
		return nil, ErrInvalidPrice
	}

	seen := make(map[int64]struct{}, len(p.Characteristics))
	for _, c := range p.Characteristics {
		if _, ok := seen[c.CharacteristicID]; ok {
			return nil, ErrDuplicateCharacteristic
		}
		seen[c.CharacteristicID] = struct{}{}

		if _, err := s.repo.CharacteristicByID(ctx, c.CharacteristicID); err != nil {
			if errors.Is(err, ErrCharacteristicNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("get characteristic %d: %w", c.CharacteristicID, err)
		}
	}

	created, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

// GetProduct returns a product with its category and characteristics.
func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := s.repo.ProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// ListProducts returns one page of products matching f.
func (s *Service) ListProducts(ctx context.Context, f Filters, page PageRequest) (*ProductPage, error) {
	res, err := s.repo.ListProducts(ctx, f, page.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return res, nil
}

// IncreaseInventory adds inc to the product's stock. A negative inc is
// accepted as long as the stock does not drop below zero.
func (s *Service) IncreaseInventory(ctx context.Context, productID int64, inc int) (*Inventory, error) {
	if inc < math.MinInt32 || inc > math.MaxInt32 {
		return nil, ErrInvalidQuantity
	}
	inv, err := s.repo.IncreaseInventory(ctx, productID, inc)
	if err != nil {
		return nil, fmt.Errorf("increase inventory of product %d: %w", productID, err)
	}
	return inv, nil
}
