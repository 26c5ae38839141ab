// Package admin serves a form-based data editing panel over the storefront
// tables. Every table is described by a Resource; the handlers and the SQL
// are generated from these descriptors.
package admin

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Errors returned by a Store.
var (
	ErrNotFound = errors.New("row not found")
	ErrConflict = errors.New("constraint violation")
)

// Kind is the value type of a column.
type Kind int

// Column kinds.
const (
	KindText Kind = iota
	KindOptionalText
	KindInt
	KindDecimal
	KindBool
	KindTime
	// KindCount is a 32-bit integer column such as a stock quantity.
	KindCount
)

// maxAmount bounds decimal columns, which are stored as NUMERIC(14, 2).
var maxAmount = decimal.New(1, 12)

// Field describes one column of a resource.
type Field struct {
	Column string
	Label  string
	Kind   Kind
	// Editable columns are accepted from forms on create and update.
	Editable bool
}

// Resource describes a table exposed in the panel.
type Resource struct {
	Name   string // URL segment
	Title  string
	Table  string
	Fields []Field

	CanCreate bool
	CanEdit   bool
	CanDelete bool

	// AfterInsert runs in the insert transaction with the new row id as $1.
	AfterInsert string
}

// Columns returns every column name except id.
func (r *Resource) Columns() []string {
	cols := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		cols[i] = f.Column
	}
	return cols
}

// EditableFields returns the columns accepted from forms.
func (r *Resource) EditableFields() []Field {
	var out []Field
	for _, f := range r.Fields {
		if f.Editable {
			out = append(out, f)
		}
	}
	return out
}

// FieldError reports an unparsable form value.
type FieldError struct {
	Column string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Column + ": " + e.Reason
}

// ParseValue converts a raw form value into the Go type stored for f.Kind.
func ParseValue(f Field, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch f.Kind {
	case KindText:
		return raw, nil
	case KindOptionalText:
		if raw == "" {
			return nil, nil
		}
		return raw, nil
	case KindInt, KindCount:
		if raw == "" {
			return nil, &FieldError{Column: f.Column, Reason: "is required"}
		}
		bits := 64
		if f.Kind == KindCount {
			bits = 32
		}
		v, err := strconv.ParseInt(raw, 10, bits)
		if errors.Is(err, strconv.ErrRange) {
			return nil, &FieldError{Column: f.Column, Reason: "is out of range"}
		}
		if err != nil {
			return nil, &FieldError{Column: f.Column, Reason: "must be an integer"}
		}
		return v, nil
	case KindDecimal:
		if raw == "" {
			return nil, &FieldError{Column: f.Column, Reason: "is required"}
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, &FieldError{Column: f.Column, Reason: "must be a number"}
		}
		if v.Abs().Round(2).GreaterThanOrEqual(maxAmount) {
			return nil, &FieldError{Column: f.Column, Reason: "is out of range"}
		}
		return v, nil
	case KindBool:
		switch strings.ToLower(raw) {
		case "", "0", "false", "off":
			return false, nil
		case "1", "true", "on":
			return true, nil
		}
		return nil, &FieldError{Column: f.Column, Reason: "must be a boolean"}
	default:
		return nil, &FieldError{Column: f.Column, Reason: "is read-only"}
	}
}

// Row is a single table row keyed by column.
type Row struct {
	ID     int64
	Values map[string]any
}

// Page is one page of rows of a resource.
type Page struct {
	Rows  []Row
	Total int
	Page  int
	Size  int
}

// Pages returns the number of pages needed to hold Total rows.
func (p Page) Pages() int {
	if p.Size <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// Store reads and writes resource rows.
type Store interface {
	List(ctx context.Context, r *Resource, page, size int) (*Page, error)
	Get(ctx context.Context, r *Resource, id int64) (*Row, error)
	Insert(ctx context.Context, r *Resource, values map[string]any) (int64, error)
	Update(ctx context.Context, r *Resource, id int64, values map[string]any) error
}
