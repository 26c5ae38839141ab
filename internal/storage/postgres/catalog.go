package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	getCategoryByIDSQL   = `SELECT id, name, description FROM product_categories WHERE id = $1`
	getCategoryByNameSQL = `SELECT id, name, description FROM product_categories WHERE name = $1`
	createCategorySQL    = `INSERT INTO product_categories (name, description) VALUES ($1, $2) RETURNING id`

	getCharacteristicByIDSQL   = `SELECT id, name FROM characteristics WHERE id = $1`
	getCharacteristicByNameSQL = `SELECT id, name FROM characteristics WHERE name = $1`
	createCharacteristicSQL    = `INSERT INTO characteristics (name) VALUES ($1) RETURNING id`

	selectProductSQL = `SELECT p.id, p.name, p.sku, p.description, p.price, c.id, c.name, c.description
		FROM products p
		JOIN product_categories c ON c.id = p.category_id`

	getProductByIDSQL  = selectProductSQL + ` WHERE p.id = $1`
	getProductBySKUSQL = selectProductSQL + ` WHERE p.sku = $1`

	// Empty filter arguments disable the matching condition.
	productFilterSQL = ` WHERE ($1 = '' OR strpos(p.name, $1) > 0) AND ($2 = '' OR c.name = $2)`

	listProductsSQL        = selectProductSQL + productFilterSQL + ` ORDER BY p.id LIMIT $3 OFFSET $4`
	listProductsByPriceSQL = selectProductSQL + productFilterSQL + ` ORDER BY p.price DESC, p.id LIMIT $3 OFFSET $4`
	countProductsSQL       = `SELECT count(*) FROM products p
		JOIN product_categories c ON c.id = p.category_id` + productFilterSQL

	getProductCharacteristicsSQL = `SELECT pc.product_id, ch.id, ch.name, pc.characteristic_value
		FROM product_characteristics pc
		JOIN characteristics ch ON ch.id = pc.characteristic_id
		WHERE pc.product_id = ANY($1)
		ORDER BY pc.id`

	createProductSQL = `INSERT INTO products (name, sku, description, price, category_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	createInventorySQL             = `INSERT INTO product_inventory (product_id) VALUES ($1)`
	createProductCharacteristicSQL = `INSERT INTO product_characteristics (product_id, characteristic_id, characteristic_value)
		VALUES ($1, $2, $3)`

	increaseInventorySQL = `UPDATE product_inventory SET quantity = quantity + $2
		WHERE product_id = $1
		RETURNING id, product_id, quantity`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) CategoryByID(ctx context.Context, id int64) (*catalog.Category, error) {
	return r.category(ctx, getCategoryByIDSQL, id)
}

func (r *CatalogRepository) CategoryByName(ctx context.Context, name string) (*catalog.Category, error) {
	return r.category(ctx, getCategoryByNameSQL, name)
}

func (r *CatalogRepository) category(ctx context.Context, sql string, arg any) (*catalog.Category, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting category %v: %w", arg, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("getting category %v: %w", arg, err)
	}
	return &c, nil
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, c *catalog.Category) error {
	if err := r.pool.QueryRow(ctx, createCategorySQL, c.Name, c.Description).Scan(&c.ID); err != nil {
		return catalogError(fmt.Errorf("creating category %q: %w", c.Name, err))
	}
	return nil
}

func (r *CatalogRepository) CharacteristicByID(ctx context.Context, id int64) (*catalog.Characteristic, error) {
	return r.characteristic(ctx, getCharacteristicByIDSQL, id)
}

func (r *CatalogRepository) CharacteristicByName(ctx context.Context, name string) (*catalog.Characteristic, error) {
	return r.characteristic(ctx, getCharacteristicByNameSQL, name)
}

func (r *CatalogRepository) characteristic(ctx context.Context, sql string, arg any) (*catalog.Characteristic, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting characteristic %v: %w", arg, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCharacteristic)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCharacteristicNotFound
		}
		return nil, fmt.Errorf("getting characteristic %v: %w", arg, err)
	}
	return &c, nil
}

func (r *CatalogRepository) CreateCharacteristic(ctx context.Context, c *catalog.Characteristic) error {
	if err := r.pool.QueryRow(ctx, createCharacteristicSQL, c.Name).Scan(&c.ID); err != nil {
		return catalogError(fmt.Errorf("creating characteristic %q: %w", c.Name, err))
	}
	return nil
}

func (r *CatalogRepository) ProductByID(ctx context.Context, id int64) (*catalog.Product, error) {
	return productBy(ctx, r.pool, getProductByIDSQL, id)
}

func (r *CatalogRepository) ProductBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	return productBy(ctx, r.pool, getProductBySKUSQL, sku)
}

// CreateProduct inserts the product, its empty inventory row and its
// characteristic values in one transaction.
func (r *CatalogRepository) CreateProduct(ctx context.Context, np catalog.NewProduct) (*catalog.Product, error) {
	var created *catalog.Product
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, createProductSQL,
			np.Name, np.SKU, np.Description, np.Price, np.CategoryID,
		).Scan(&id)
		if isOutOfRange(err) {
			return catalog.ErrInvalidPrice
		}
		if err != nil {
			return catalogError(fmt.Errorf("inserting product: %w", err))
		}

		if _, err := tx.Exec(ctx, createInventorySQL, id); err != nil {
			return fmt.Errorf("inserting inventory: %w", err)
		}

		if len(np.Characteristics) > 0 {
			batch := &pgx.Batch{}
			for _, c := range np.Characteristics {
				batch.Queue(createProductCharacteristicSQL, id, c.CharacteristicID, c.Value)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return catalogError(fmt.Errorf("inserting characteristics: %w", err))
			}
		}

		created, err = productBy(ctx, tx, getProductByIDSQL, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListProducts returns one page of products along with the total match count.
func (r *CatalogRepository) ListProducts(ctx context.Context, f catalog.Filters, page catalog.PageRequest) (*catalog.ProductPage, error) {
	res := &catalog.ProductPage{Page: page.Page, Size: page.Size}
	if err := r.pool.QueryRow(ctx, countProductsSQL, f.Name, f.CategoryName).Scan(&res.Total); err != nil {
		return nil, fmt.Errorf("counting products: %w", err)
	}

	sql := listProductsSQL
	if f.SortByPrice {
		sql = listProductsByPriceSQL
	}
	rows, err := r.pool.Query(ctx, sql, f.Name, f.CategoryName, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	if err := loadCharacteristics(ctx, r.pool, items); err != nil {
		return nil, err
	}
	res.Items = items
	return res, nil
}

// IncreaseInventory adds inc to the product's stock.
func (r *CatalogRepository) IncreaseInventory(ctx context.Context, productID int64, inc int) (*catalog.Inventory, error) {
	var inv catalog.Inventory
	err := r.pool.QueryRow(ctx, increaseInventorySQL, productID, inc).Scan(&inv.ID, &inv.ProductID, &inv.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		if isOutOfRange(err) {
			return nil, catalog.ErrInvalidQuantity
		}
		return nil, catalogError(fmt.Errorf("updating inventory of product %d: %w", productID, err))
	}
	return &inv, nil
}

func productBy(ctx context.Context, q querier, sql string, arg any) (*catalog.Product, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting product %v: %w", arg, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product %v: %w", arg, err)
	}

	items := []catalog.Product{p}
	if err := loadCharacteristics(ctx, q, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// loadCharacteristics fills in the characteristic values of products with a
// single query.
func loadCharacteristics(ctx context.Context, q querier, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}
	index := make(map[int64]int, len(products))
	ids := make([]int64, len(products))
	for i, p := range products {
		index[p.ID] = i
		ids[i] = p.ID
	}

	rows, err := q.Query(ctx, getProductCharacteristicsSQL, ids)
	if err != nil {
		return fmt.Errorf("getting product characteristics: %w", err)
	}
	var (
		productID int64
		pc        catalog.ProductCharacteristic
	)
	_, err = pgx.ForEachRow(rows, []any{&productID, &pc.Characteristic.ID, &pc.Characteristic.Name, &pc.Value}, func() error {
		i := index[productID]
		products[i].Characteristics = append(products[i].Characteristics, pc)
		return nil
	})
	if err != nil {
		return fmt.Errorf("getting product characteristics: %w", err)
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description)
	return c, err
}

func scanCharacteristic(row pgx.CollectableRow) (catalog.Characteristic, error) {
	var c catalog.Characteristic
	err := row.Scan(&c.ID, &c.Name)
	return c, err
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price,
		&p.Category.ID, &p.Category.Name, &p.Category.Description,
	)
	return p, err
}
