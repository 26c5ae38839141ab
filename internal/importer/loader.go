package importer

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// Catalog is the subset of the catalog service used to write records.
type Catalog interface {
	AddCategory(ctx context.Context, name, description string) (*catalog.Category, error)
	AddCharacteristic(ctx context.Context, name string) (*catalog.Characteristic, error)
	AddProduct(ctx context.Context, p catalog.NewProduct) (*catalog.Product, error)
	IncreaseInventory(ctx context.Context, productID int64, inc int) (*catalog.Inventory, error)
}

// Lookup resolves existing categories and characteristics by name.
type Lookup interface {
	CategoryByName(ctx context.Context, name string) (*catalog.Category, error)
	CharacteristicByName(ctx context.Context, name string) (*catalog.Characteristic, error)
}

var (
	_ Catalog = (*catalog.Service)(nil)
	_ Lookup  = (catalog.Repository)(nil)
)

// Loader writes records through the catalog service. It is safe for
// concurrent use; resolved category and characteristic ids are memoized.
type Loader struct {
	catalog Catalog
	lookup  Lookup

	mu              sync.Mutex
	categories      map[string]int64
	characteristics map[string]int64
}

// NewLoader creates a Loader.
func NewLoader(c Catalog, l Lookup) *Loader {
	return &Loader{
		catalog:         c,
		lookup:          l,
		categories:      make(map[string]int64),
		characteristics: make(map[string]int64),
	}
}

// Load stores rec as a new product and sets its stock. A product whose SKU is
// already registered yields catalog.ErrSKUExists and is left untouched.
func (l *Loader) Load(ctx context.Context, rec Record) (*catalog.Product, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	categoryID, err := l.categoryID(ctx, rec.Category, rec.CategoryDescription)
	if err != nil {
		return nil, err
	}

	np := catalog.NewProduct{
		Name:        rec.Name,
		SKU:         rec.SKU,
		Description: rec.Description,
		Price:       rec.Price,
		CategoryID:  categoryID,
	}
	for _, a := range rec.Characteristics {
		id, err := l.characteristicID(ctx, a.Name)
		if err != nil {
			return nil, err
		}
		np.Characteristics = append(np.Characteristics, catalog.CharacteristicValue{
			CharacteristicID: id,
			Value:            a.Value,
		})
	}

	p, err := l.catalog.AddProduct(ctx, np)
	if err != nil {
		return nil, fmt.Errorf("add product %q: %w", rec.SKU, err)
	}
	if rec.Stock > 0 {
		if _, err := l.catalog.IncreaseInventory(ctx, p.ID, rec.Stock); err != nil {
			return nil, fmt.Errorf("stock product %q: %w", rec.SKU, err)
		}
	}
	return p, nil
}

func (l *Loader) categoryID(ctx context.Context, name, description string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.categories[name]; ok {
		return id, nil
	}

	c, err := l.catalog.AddCategory(ctx, name, description)
	if errors.Is(err, catalog.ErrCategoryExists) {
		c, err = l.lookup.CategoryByName(ctx, name)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve category %q: %w", name, err)
	}
	l.categories[name] = c.ID
	return c.ID, nil
}

func (l *Loader) characteristicID(ctx context.Context, name string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.characteristics[name]; ok {
		return id, nil
	}

	c, err := l.catalog.AddCharacteristic(ctx, name)
	if errors.Is(err, catalog.ErrCharacteristicExists) {
		c, err = l.lookup.CharacteristicByName(ctx, name)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve characteristic %q: %w", name, err)
	}
	l.characteristics[name] = c.ID
	return c.ID, nil
}
