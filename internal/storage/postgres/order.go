package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	getUserByLoginSQL = `SELECT id, login, first_name, second_name, last_name, telephone_number
		FROM users WHERE login = $1`
	createUserSQL = `INSERT INTO users (login, first_name, second_name, last_name, telephone_number)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	updateUserSQL = `UPDATE users
		SET first_name = $2, second_name = $3, last_name = $4, telephone_number = $5
		WHERE id = $1`

	createShippingAddressSQL = `INSERT INTO shipping_addresses (country, city, postcode, address, apartment)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	createOrderSQL = `INSERT INTO orders (total, is_paid, user_id, shipping_address_id)
		VALUES ($1, $2, $3, $4) RETURNING id, total, creation_date, is_processed`
	createOrderItemSQL = `INSERT INTO order_items (quantity, price_per_item, order_id, product_id)
		VALUES ($1, $2, $3, $4) RETURNING id, price_per_item`

	lockStockSQL     = `SELECT quantity FROM product_inventory WHERE product_id = $1 FOR UPDATE`
	decreaseStockSQL = `UPDATE product_inventory SET quantity = quantity - $2 WHERE product_id = $1`

	selectOrderSQL = `SELECT o.id, o.total, o.is_paid, o.is_processed, o.creation_date,
			u.id, u.login, u.first_name, u.second_name, u.last_name, u.telephone_number,
			a.id, a.country, a.city, a.postcode, a.address, a.apartment
		FROM orders o
		JOIN users u ON u.id = o.user_id
		JOIN shipping_addresses a ON a.id = o.shipping_address_id
		WHERE o.id = $1`
	lockOrderSQL = selectOrderSQL + ` FOR UPDATE OF o`

	getOrderItemsSQL = `SELECT id, product_id, quantity, price_per_item
		FROM order_items WHERE order_id = $1 ORDER BY id`

	markOrderProcessedSQL = `UPDATE orders SET is_processed = TRUE WHERE id = $1`
)

var (
	_ order.Store = (*OrderStore)(nil)
	_ order.Tx    = (*orderTx)(nil)
)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// InTx runs fn in a read-committed transaction.
func (s *OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

// Get loads an order with its user, shipping address and items.
func (s *OrderStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	return loadOrder(ctx, s.pool, selectOrderSQL, id)
}

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) UserByLogin(ctx context.Context, login string) (*order.User, error) {
	rows, err := t.tx.Query(ctx, getUserByLoginSQL, login)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", login, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", login, err)
	}
	return &u, nil
}

func (t *orderTx) CreateUser(ctx context.Context, u *order.User) error {
	err := t.tx.QueryRow(ctx, createUserSQL,
		u.Login, u.FirstName, u.SecondName, u.LastName, u.TelephoneNumber,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("inserting user %q: %w", u.Login, err)
	}
	return nil
}

func (t *orderTx) UpdateUser(ctx context.Context, u *order.User) error {
	_, err := t.tx.Exec(ctx, updateUserSQL, u.ID, u.FirstName, u.SecondName, u.LastName, u.TelephoneNumber)
	if err != nil {
		return fmt.Errorf("updating user %d: %w", u.ID, err)
	}
	return nil
}

func (t *orderTx) CreateShippingAddress(ctx context.Context, a *order.ShippingAddress) error {
	err := t.tx.QueryRow(ctx, createShippingAddressSQL,
		a.Country, a.City, a.Postcode, a.Address, a.Apartment,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("inserting shipping address: %w", err)
	}
	return nil
}

func (t *orderTx) CreateOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, createOrderSQL,
		o.Total, o.IsPaid, o.User.ID, o.ShippingAddress.ID,
	).Scan(&o.ID, &o.Total, &o.CreatedAt, &o.IsProcessed)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func (t *orderTx) AddItem(ctx context.Context, orderID int64, item *order.Item) error {
	err := t.tx.QueryRow(ctx, createOrderItemSQL,
		item.Quantity, item.PricePerItem, orderID, item.ProductID,
	).Scan(&item.ID, &item.PricePerItem)
	if err != nil {
		if pgErr, ok := pgError(err); ok && pgErr.ConstraintName == constraintOrderItemProduct {
			return &order.ProductNotFoundError{ProductID: item.ProductID}
		}
		return fmt.Errorf("inserting order item: %w", err)
	}
	return nil
}

func (t *orderTx) LockStock(ctx context.Context, productID int64) (int, error) {
	var qty int
	if err := t.tx.QueryRow(ctx, lockStockSQL, productID).Scan(&qty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &order.ProductNotFoundError{ProductID: productID}
		}
		return 0, fmt.Errorf("locking stock of product %d: %w", productID, err)
	}
	return qty, nil
}

// DecreaseStock subtracts qty from the product's stock. The quantity check
// constraint backs up the LockStock comparison.
func (t *orderTx) DecreaseStock(ctx context.Context, productID int64, qty int) error {
	tag, err := t.tx.Exec(ctx, decreaseStockSQL, productID, qty)
	if err != nil {
		if pgErr, ok := pgError(err); ok && pgErr.Code == pgerrcode.CheckViolation &&
			pgErr.ConstraintName == constraintInventoryQuantity {
			return &order.InsufficientStockError{ProductID: productID, Requested: qty}
		}
		return fmt.Errorf("decreasing stock of product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return &order.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

func (t *orderTx) LockOrder(ctx context.Context, id int64) (*order.Order, error) {
	return loadOrder(ctx, t.tx, lockOrderSQL, id)
}

func (t *orderTx) MarkProcessed(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, markOrderProcessedSQL, id)
	if err != nil {
		return fmt.Errorf("marking order %d processed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func loadOrder(ctx context.Context, q querier, sql string, id int64) (*order.Order, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	rows, err = q.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %d: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %d: %w", id, err)
	}
	return &o, nil
}

func scanUser(row pgx.CollectableRow) (order.User, error) {
	var u order.User
	err := row.Scan(&u.ID, &u.Login, &u.FirstName, &u.SecondName, &u.LastName, &u.TelephoneNumber)
	return u, err
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o order.Order
		u = &o.User
		a = &o.ShippingAddress
	)
	err := row.Scan(
		&o.ID, &o.Total, &o.IsPaid, &o.IsProcessed, &o.CreatedAt,
		&u.ID, &u.Login, &u.FirstName, &u.SecondName, &u.LastName, &u.TelephoneNumber,
		&a.ID, &a.Country, &a.City, &a.Postcode, &a.Address, &a.Apartment,
	)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.PricePerItem)
	return it, err
}
