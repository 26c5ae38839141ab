package importer

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// --- Mock implementations ---

type mockCatalog struct {
	mu              sync.Mutex
	categories      map[string]*catalog.Category
	characteristics map[string]*catalog.Characteristic
	skus            map[string]bool
	products        []catalog.NewProduct
	stock           map[int64]int
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		categories:      make(map[string]*catalog.Category),
		characteristics: make(map[string]*catalog.Characteristic),
		skus:            make(map[string]bool),
		stock:           make(map[int64]int),
	}
}

func (m *mockCatalog) AddCategory(_ context.Context, name, description string) (*catalog.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[name]; ok {
		return nil, catalog.ErrCategoryExists
	}
	c := &catalog.Category{ID: int64(len(m.categories) + 1), Name: name, Description: description}
	m.categories[name] = c
	return c, nil
}

func (m *mockCatalog) AddCharacteristic(_ context.Context, name string) (*catalog.Characteristic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.characteristics[name]; ok {
		return nil, catalog.ErrCharacteristicExists
	}
	c := &catalog.Characteristic{ID: int64(len(m.characteristics) + 1), Name: name}
	m.characteristics[name] = c
	return c, nil
}

func (m *mockCatalog) AddProduct(_ context.Context, p catalog.NewProduct) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skus[p.SKU] {
		return nil, catalog.ErrSKUExists
	}
	m.skus[p.SKU] = true
	m.products = append(m.products, p)
	return &catalog.Product{ID: int64(len(m.products)), SKU: p.SKU, Name: p.Name}, nil
}

func (m *mockCatalog) IncreaseInventory(_ context.Context, productID int64, inc int) (*catalog.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] += inc
	return &catalog.Inventory{ProductID: productID, Quantity: m.stock[productID]}, nil
}

func (m *mockCatalog) CategoryByName(_ context.Context, name string) (*catalog.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.categories[name]; ok {
		return c, nil
	}
	return nil, catalog.ErrCategoryNotFound
}

func (m *mockCatalog) CharacteristicByName(_ context.Context, name string) (*catalog.Characteristic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.characteristics[name]; ok {
		return c, nil
	}
	return nil, catalog.ErrCharacteristicNotFound
}

// --- Helpers ---

func gzipLines(t *testing.T, lines ...string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := pgzip.NewWriter(&buf)
	for _, l := range lines {
		_, err := fmt.Fprintln(w, l)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf
}

// --- Tests ---

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{
		"name": "Beaded rope", "sku": "JR-1", "description": "Best rope",
		"price": 12.5, "category": "Jump ropes", "category_description": "Ropes",
		"characteristics": {"Rope length": "3m", "Handle": "wood"},
		"stock": 4, "unknown": [1, {"a": null}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Beaded rope", rec.Name)
	assert.Equal(t, "JR-1", rec.SKU)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "Jump ropes", rec.Category)
	assert.Equal(t, "Ropes", rec.CategoryDescription)
	assert.Equal(t, []Attribute{{Name: "Rope length", Value: "3m"}, {Name: "Handle", Value: "wood"}}, rec.Characteristics)
	assert.Equal(t, 4, rec.Stock)

	rec, err = DecodeRecord([]byte(`{"sku": "JR-2", "price": "0.10"}`))
	require.NoError(t, err)
	assert.Equal(t, "0.1", rec.Price.String())
}

func TestDecodeRecord_ValidLineDecodesEveryField(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"name":"Rope","sku":"JR-1","price":"9.99","category":"Jump ropes","stock":3}`))
	require.NoError(t, err)
	require.NoError(t, rec.Validate())
	assert.Equal(t, "Rope", rec.Name)
	assert.Equal(t, "JR-1", rec.SKU)
	assert.Equal(t, "Jump ropes", rec.Category)
	assert.Equal(t, "9.99", rec.Price.String())
	assert.Equal(t, 3, rec.Stock)
}

func TestDecodeRecord_ErrorNamesField(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"sku":"JR-1","stock":"many"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "stock"`)
}

func TestDecodeRecord_Invalid(t *testing.T) {
	for _, input := range []string{
		`not json`,
		`{"price": "cheap"}`,
		`{"stock": "many"}`,
		`{"characteristics": {"a": 1}}`,
	} {
		t.Run(input, func(t *testing.T) {
			_, err := DecodeRecord([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestRecordValidate(t *testing.T) {
	valid := Record{Name: "Rope", SKU: "JR-1", Category: "Jump ropes"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *Record)
	}{
		{name: "missing sku", mutate: func(r *Record) { r.SKU = "" }},
		{name: "missing name", mutate: func(r *Record) { r.Name = "" }},
		{name: "missing category", mutate: func(r *Record) { r.Category = "" }},
		{name: "negative stock", mutate: func(r *Record) { r.Stock = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()
	mc := newMockCatalog()
	l := NewLoader(mc, mc)

	rec := Record{
		Name:            "Beaded rope",
		SKU:             "JR-1",
		Price:           decimal.RequireFromString("12.5"),
		Category:        "Jump ropes",
		Characteristics: []Attribute{{Name: "Rope length", Value: "3m"}},
		Stock:           4,
	}
	p, err := l.Load(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 4, mc.stock[p.ID])

	rec2 := rec
	rec2.SKU = "JR-2"
	rec2.Stock = 0
	p2, err := l.Load(ctx, rec2)
	require.NoError(t, err)
	assert.Zero(t, mc.stock[p2.ID])

	// Category and characteristic are created once and reused.
	assert.Len(t, mc.categories, 1)
	assert.Len(t, mc.characteristics, 1)
	require.Len(t, mc.products, 2)
	assert.Equal(t, mc.products[0].CategoryID, mc.products[1].CategoryID)
	assert.Equal(t, []catalog.CharacteristicValue{{CharacteristicID: 1, Value: "3m"}}, mc.products[1].Characteristics)

	_, err = l.Load(ctx, rec)
	require.ErrorIs(t, err, catalog.ErrSKUExists)
}

func TestLoader_ReusesExistingCategory(t *testing.T) {
	ctx := context.Background()
	mc := newMockCatalog()
	existing, err := mc.AddCategory(ctx, "Jump ropes", "Ropes")
	require.NoError(t, err)
	_, err = mc.AddCharacteristic(ctx, "Rope length")
	require.NoError(t, err)

	l := NewLoader(mc, mc)
	_, err = l.Load(ctx, Record{
		Name:            "Rope",
		SKU:             "JR-1",
		Price:           decimal.NewFromInt(3),
		Category:        "Jump ropes",
		Characteristics: []Attribute{{Name: "Rope length", Value: "2m"}},
	})
	require.NoError(t, err)
	require.Len(t, mc.products, 1)
	assert.Equal(t, existing.ID, mc.products[0].CategoryID)
}

func TestLoader_Concurrent(t *testing.T) {
	ctx := context.Background()
	mc := newMockCatalog()
	l := NewLoader(mc, mc)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Load(ctx, Record{
				Name:     "Rope",
				SKU:      fmt.Sprintf("JR-%d", i),
				Price:    decimal.NewFromInt(1),
				Category: fmt.Sprintf("Category %d", i%3),
				Stock:    1,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, mc.categories, 3)
	assert.Len(t, mc.products, 20)
}

func TestRead(t *testing.T) {
	buf := gzipLines(t,
		`{"name": "Rope", "sku": "JR-1", "price": 1, "category": "Jump ropes"}`,
		``,
		`{"name": "Rope", "sku": "JR-2", "price": 2`,
		`{"name": "Rope", "price": 2, "category": "Jump ropes"}`,
		`{"name": "Rope", "sku": "JR-3", "price": 3, "category": "Jump ropes", "stock": 7}`,
	)

	var (
		got []string
		bad []int
	)
	err := Read(context.Background(), "catalog.jsonl.gz", buf,
		func(r Record) { got = append(got, r.SKU) },
		func(e *LineError) { bad = append(bad, e.Line) },
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"JR-1", "JR-3"}, got)
	assert.Equal(t, []int{3, 4}, bad)
}

func TestRead_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := gzipLines(t, `{"name": "Rope", "sku": "JR-1", "price": 1, "category": "Jump ropes"}`)
	err := Read(ctx, "catalog.jsonl.gz", buf, func(Record) {}, func(*LineError) {})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRead_NotGzip(t *testing.T) {
	err := Read(context.Background(), "plain.jsonl", bytes.NewBufferString(`{"sku": "x"}`), func(Record) {}, func(*LineError) {})
	require.Error(t, err)
}

func TestLineError(t *testing.T) {
	cause := errors.New("boom")
	err := error(&LineError{Path: "a.gz", Line: 3, Err: cause})
	assert.Equal(t, "a.gz:3: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestSKUSet(t *testing.T) {
	s := NewSKUSet(1000, 0.01)
	assert.True(t, s.Add("JR-1"))
	assert.True(t, s.Add("JR-2"))
	assert.False(t, s.Add("JR-1"))
	assert.Equal(t, 2, s.Len())

	// A tiny filter saturates and reports hits for unseen SKUs; the exact
	// set must still accept them.
	tiny := NewSKUSet(1, 0.5)
	for i := range 200 {
		assert.True(t, tiny.Add(fmt.Sprintf("SKU-%d", i)))
	}
	assert.Equal(t, 200, tiny.Len())
}
