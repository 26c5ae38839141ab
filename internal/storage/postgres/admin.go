package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/admin"
)

var _ admin.Store = (*AdminStore)(nil)

// AdminStore implements admin.Store by generating SQL from resource
// descriptors. Table and column names come from the descriptors and are
// quoted as identifiers; values are always passed as arguments.
type AdminStore struct {
	pool *pgxpool.Pool
}

// NewAdminStore returns an AdminStore that uses the given pool.
func NewAdminStore(pool *pgxpool.Pool) *AdminStore {
	return &AdminStore{pool: pool}
}

func (s *AdminStore) List(ctx context.Context, r *admin.Resource, page, size int) (*admin.Page, error) {
	table := ident(r.Table)
	res := &admin.Page{Page: page, Size: size}
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&res.Total); err != nil {
		return nil, fmt.Errorf("counting %s: %w", r.Table, err)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s ORDER BY id LIMIT $1 OFFSET $2", selectList(r), table)
	rows, err := s.pool.Query(ctx, sql, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.Table, err)
	}
	res.Rows, err = pgx.CollectRows(rows, rowScanner(r))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.Table, err)
	}
	return res, nil
}

func (s *AdminStore) Get(ctx context.Context, r *admin.Resource, id int64) (*admin.Row, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selectList(r), ident(r.Table))
	rows, err := s.pool.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting %s %d: %w", r.Table, id, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, rowScanner(r))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, admin.ErrNotFound
		}
		return nil, fmt.Errorf("getting %s %d: %w", r.Table, id, err)
	}
	return &row, nil
}

// Insert adds a row and runs the resource's AfterInsert statement in the
// same transaction.
func (s *AdminStore) Insert(ctx context.Context, r *admin.Resource, values map[string]any) (int64, error) {
	cols, args := columnArgs(r, values)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		ident(r.Table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	var id int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
			return adminError(fmt.Errorf("inserting into %s: %w", r.Table, err))
		}
		if r.AfterInsert == "" {
			return nil
		}
		if _, err := tx.Exec(ctx, r.AfterInsert, id); err != nil {
			return adminError(fmt.Errorf("after insert into %s: %w", r.Table, err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *AdminStore) Update(ctx context.Context, r *admin.Resource, id int64, values map[string]any) error {
	cols, args := columnArgs(r, values)
	if len(cols) == 0 {
		return nil
	}
	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		ident(r.Table), strings.Join(set, ", "), len(cols)+1)

	tag, err := s.pool.Exec(ctx, sql, append(args, id)...)
	if err != nil {
		return adminError(fmt.Errorf("updating %s %d: %w", r.Table, id, err))
	}
	if tag.RowsAffected() == 0 {
		return admin.ErrNotFound
	}
	return nil
}

// columnArgs returns the quoted editable columns present in values along
// with their arguments, in descriptor order.
func columnArgs(r *admin.Resource, values map[string]any) ([]string, []any) {
	var (
		cols []string
		args []any
	)
	for _, f := range r.EditableFields() {
		v, ok := values[f.Column]
		if !ok {
			continue
		}
		cols = append(cols, ident(f.Column))
		args = append(args, v)
	}
	return cols, args
}

func selectList(r *admin.Resource) string {
	cols := make([]string, 0, len(r.Fields)+1)
	cols = append(cols, "id")
	for _, c := range r.Columns() {
		cols = append(cols, ident(c))
	}
	return strings.Join(cols, ", ")
}

func rowScanner(r *admin.Resource) pgx.RowToFunc[admin.Row] {
	columns := r.Columns()
	return func(row pgx.CollectableRow) (admin.Row, error) {
		vals, err := row.Values()
		if err != nil {
			return admin.Row{}, err
		}
		out := admin.Row{Values: make(map[string]any, len(columns))}
		id, ok := vals[0].(int64)
		if !ok {
			return admin.Row{}, errors.Errorf("unexpected id type %T", vals[0])
		}
		out.ID = id
		for i, c := range columns {
			out.Values[c] = vals[i+1]
		}
		return out, nil
	}
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// adminError wraps integrity violations in admin.ErrConflict.
func adminError(err error) error {
	if isOutOfRange(err) {
		pgErr, _ := pgError(err)
		return &admin.FieldError{Column: "value", Reason: pgErr.Message}
	}
	if !isIntegrityViolation(err) {
		return err
	}
	pgErr, _ := pgError(err)
	return fmt.Errorf("%w: %s", admin.ErrConflict, pgErr.Message)
}
