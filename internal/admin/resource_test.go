package admin

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		raw     string
		want    any
		wantErr string
	}{
		{name: "text", kind: KindText, raw: "  Books ", want: "Books"},
		{name: "empty text", kind: KindText, raw: "", want: ""},
		{name: "optional text", kind: KindOptionalText, raw: "5B", want: "5B"},
		{name: "optional text empty", kind: KindOptionalText, raw: " ", want: nil},
		{name: "int", kind: KindInt, raw: "42", want: int64(42)},
		{name: "int empty", kind: KindInt, raw: "", wantErr: "col: is required"},
		{name: "int invalid", kind: KindInt, raw: "4.2", wantErr: "col: must be an integer"},
		{name: "count", kind: KindCount, raw: "2147483647", want: int64(2147483647)},
		{name: "count overflow", kind: KindCount, raw: "2147483648", wantErr: "col: is out of range"},
		{name: "int overflow", kind: KindInt, raw: "9223372036854775808", wantErr: "col: is out of range"},
		{name: "decimal", kind: KindDecimal, raw: "9.99", want: decimal.RequireFromString("9.99")},
		{name: "decimal invalid", kind: KindDecimal, raw: "cheap", wantErr: "col: must be a number"},
		{name: "decimal largest", kind: KindDecimal, raw: "999999999999.99", want: decimal.RequireFromString("999999999999.99")},
		{name: "decimal too large", kind: KindDecimal, raw: "1000000000000", wantErr: "col: is out of range"},
		{name: "decimal rounds past bound", kind: KindDecimal, raw: "-999999999999.995", wantErr: "col: is out of range"},
		{name: "bool on", kind: KindBool, raw: "on", want: true},
		{name: "bool true", kind: KindBool, raw: "TRUE", want: true},
		{name: "bool missing", kind: KindBool, raw: "", want: false},
		{name: "bool invalid", kind: KindBool, raw: "maybe", wantErr: "col: must be a boolean"},
		{name: "time", kind: KindTime, raw: "2024-01-01", wantErr: "col: is read-only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(Field{Column: "col", Kind: tt.kind}, tt.raw)
			if tt.wantErr != "" {
				var fieldErr *FieldError
				require.ErrorAs(t, err, &fieldErr)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			if d, ok := tt.want.(decimal.Decimal); ok {
				assert.True(t, d.Equal(got.(decimal.Decimal)))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPagePages(t *testing.T) {
	assert.Equal(t, 0, Page{Total: 10}.Pages())
	assert.Equal(t, 0, Page{Total: 0, Size: 10}.Pages())
	assert.Equal(t, 1, Page{Total: 10, Size: 10}.Pages())
	assert.Equal(t, 2, Page{Total: 11, Size: 10}.Pages())
}

func TestResources(t *testing.T) {
	byName := make(map[string]*Resource)
	for _, r := range Resources() {
		require.NotContains(t, byName, r.Name, "duplicate resource %s", r.Name)
		byName[r.Name] = r
		assert.False(t, r.CanDelete, "%s must not be deletable", r.Name)
		assert.NotEmpty(t, r.Table)
		for _, f := range r.Fields {
			assert.NotEqual(t, "id", f.Column, "id is implicit in %s", r.Name)
			if f.Editable {
				assert.NotEqual(t, KindTime, f.Kind, "%s.%s cannot be edited", r.Name, f.Column)
			}
		}
	}

	tests := []struct {
		name      string
		canCreate bool
		canEdit   bool
		editable  []string
	}{
		{name: "users", canEdit: true, editable: []string{"login", "first_name", "second_name", "last_name", "telephone_number", "is_registered"}},
		{name: "shipping-addresses", canEdit: true, editable: []string{"country", "city", "postcode", "address", "apartment"}},
		{name: "categories", canCreate: true, canEdit: true, editable: []string{"name", "description"}},
		{name: "characteristics", canCreate: true, canEdit: true, editable: []string{"name"}},
		{name: "products", canCreate: true, canEdit: true, editable: []string{"name", "sku", "description", "price", "category_id"}},
		{name: "orders"},
		{name: "order-items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := byName[tt.name]
			require.True(t, ok)
			assert.Equal(t, tt.canCreate, r.CanCreate)
			assert.Equal(t, tt.canEdit, r.CanEdit)

			var editable []string
			for _, f := range r.EditableFields() {
				editable = append(editable, f.Column)
			}
			assert.Equal(t, tt.editable, editable)
		})
	}

	assert.NotEmpty(t, byName["products"].AfterInsert, "products need an inventory row")
}
