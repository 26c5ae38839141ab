//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestAdmin_Index(t *testing.T) {
	resp := do(t, http.MethodGet, adminURL+"/admin/", nil)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type: got %q", ct)
	}
}

func TestAdmin_NotOnPublicPort(t *testing.T) {
	resp := doGet(t, "/admin/")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)
}

func TestAdmin_CreateCategory(t *testing.T) {
	name := unique("admin-category")
	resp := doAdminForm(t, "/admin/categories", url.Values{
		"name":        {name},
		"description": {"from admin"},
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusSeeOther)

	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/admin/categories/") {
		t.Fatalf("location: got %q", loc)
	}

	// The category is visible through the public API.
	dup := doPost(t, "/api/products/categories", map[string]string{"name": name})
	defer dup.Body.Close()
	expectStatus(t, dup, http.StatusConflict)
}

func TestAdmin_UpdateProductVisibleInAPI(t *testing.T) {
	p := createProduct(t, 10, 0)

	// Prime the product cache.
	resp := doGet(t, "/api/products/"+itoa(p.ID))
	resp.Body.Close()

	form := url.Values{
		"name":        {"Renamed by admin"},
		"sku":         {p.SKU},
		"description": {p.Description},
		"price":       {"11.00"},
		"category_id": {itoa(p.Category.ID)},
	}
	upd := doAdminForm(t, "/admin/products/"+itoa(p.ID), form)
	defer upd.Body.Close()
	expectStatus(t, upd, http.StatusSeeOther)

	resp = doGet(t, "/api/products/"+itoa(p.ID))
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	got := decodeJSON[productResponse](t, resp)
	if got.Name != "Renamed by admin" || got.Price != 11 {
		t.Errorf("product after admin update: %+v", got)
	}
}

func TestAdmin_OrdersReadOnly(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, adminURL+"/admin/orders/new", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusMethodNotAllowed)
}
