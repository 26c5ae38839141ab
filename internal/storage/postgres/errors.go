package postgres

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// Constraint names from db/migrations.
const (
	constraintCategoryName          = "product_categories_name_key"
	constraintCharacteristicName    = "characteristics_name_key"
	constraintSKU                   = "products_sku_key"
	constraintPrice                 = "products_price_check"
	constraintProductCategory       = "products_category_id_fkey"
	constraintInventoryQuantity     = "product_inventory_quantity_check"
	constraintInventoryProduct      = "product_inventory_product_id_fkey"
	constraintProductCharacteristic = "product_characteristics_product_characteristic_key"
	constraintCharacteristicRef     = "product_characteristics_characteristic_id_fkey"
	constraintOrderItemProduct      = "order_items_product_id_fkey"
)

// pgError returns the PostgreSQL error wrapped in err, if any.
func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// isIntegrityViolation reports whether err is a constraint violation
// (SQLSTATE class 23).
func isIntegrityViolation(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code)
}

// isOutOfRange reports whether err is a numeric overflow, e.g. a stock sum
// beyond INTEGER or an amount beyond NUMERIC(14, 2).
func isOutOfRange(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == pgerrcode.NumericValueOutOfRange
}

// catalogError translates constraint violations raised by catalog writes into
// catalog errors. Other errors are returned unchanged.
func catalogError(err error) error {
	pgErr, ok := pgError(err)
	if !ok {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case constraintCategoryName:
			return catalog.ErrCategoryExists
		case constraintCharacteristicName:
			return catalog.ErrCharacteristicExists
		case constraintSKU:
			return catalog.ErrSKUExists
		case constraintProductCharacteristic:
			return catalog.ErrDuplicateCharacteristic
		}
	case pgerrcode.CheckViolation:
		switch pgErr.ConstraintName {
		case constraintPrice:
			return catalog.ErrInvalidPrice
		case constraintInventoryQuantity:
			return catalog.ErrInvalidQuantity
		}
	case pgerrcode.ForeignKeyViolation:
		switch pgErr.ConstraintName {
		case constraintProductCategory:
			return catalog.ErrCategoryNotFound
		case constraintCharacteristicRef:
			return catalog.ErrCharacteristicNotFound
		case constraintInventoryProduct:
			return catalog.ErrProductNotFound
		}
	}
	return err
}
