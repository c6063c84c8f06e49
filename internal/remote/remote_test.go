package remote_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmon-data/harmon/internal/remote"
)

// testOpts keeps the rate limiter out of the way.
var testOpts = remote.Options{RequestsPerSecond: 1000, Burst: 1000}

func newAdapter(t *testing.T, cfg remote.Config) remote.Adapter {
	t.Helper()
	a, err := remote.New(cfg, testOpts)
	require.NoError(t, err)
	return a
}

func TestNew_UnsupportedPlatform(t *testing.T) {
	_, err := remote.New(remote.Config{Platform: "magento"}, testOpts)
	assert.Error(t, err)
}

func TestWooCommerce_FetchProducts(t *testing.T) {
	var gotPath, gotQuery string
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUser, gotPass, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"id": 101,
			"name": "Mouse Gamer",
			"permalink": "https://tienda.example.com/producto/mouse-gamer",
			"sku": "MG-1",
			"global_unique_id": "7791234567890",
			"price": "100",
			"regular_price": "120",
			"stock_quantity": 5,
			"status": "publish",
			"attributes": [{"name": "Marca", "options": ["Logitech"]}]
		}]`))
	}))
	defer srv.Close()

	a := newAdapter(t, remote.Config{
		Platform:  remote.PlatformWooCommerce,
		BaseURL:   srv.URL,
		APIKey:    "ck_key",
		APISecret: "cs_secret",
	})

	products, err := a.FetchProducts(context.Background(), 2, 25)
	require.NoError(t, err)

	assert.Equal(t, "/wp-json/wc/v3/products", gotPath)
	assert.Contains(t, gotQuery, "page=2")
	assert.Contains(t, gotQuery, "per_page=25")
	assert.Contains(t, gotQuery, "status=any")
	assert.Equal(t, "ck_key", gotUser)
	assert.Equal(t, "cs_secret", gotPass)

	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "101", p.RemoteID)
	assert.Equal(t, "Mouse Gamer", p.Name)
	assert.Equal(t, "https://tienda.example.com/producto/mouse-gamer", p.CanonicalURL)
	assert.Equal(t, "MG-1", p.SKU)
	assert.Equal(t, "7791234567890", p.Barcode)
	assert.Equal(t, "100", p.Price)
	assert.Equal(t, "120", p.CompareAtPrice)
	assert.Equal(t, "5", p.Stock)
	assert.Equal(t, "publish", p.Status)
	assert.Equal(t, "Logitech", p.Brand)
	assert.NotEmpty(t, p.Raw)
}

func TestWooCommerce_FetchProductByID_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"woocommerce_rest_product_invalid_id"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	a := newAdapter(t, remote.Config{Platform: remote.PlatformWooCommerce, BaseURL: srv.URL})

	p, err := a.FetchProductByID(context.Background(), "999")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestWooCommerce_PushProductUpdate(t *testing.T) {
	var gotMethod, gotPath string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a := newAdapter(t, remote.Config{Platform: remote.PlatformWooCommerce, BaseURL: srv.URL})

	pushed, err := a.PushProductUpdate(context.Background(), "101", map[string]string{
		"price": "150",
		"stock": "9",
	})
	require.NoError(t, err)
	assert.True(t, pushed)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/wp-json/wc/v3/products/101", gotPath)
	assert.Equal(t, "150", payload["regular_price"])
	assert.Equal(t, "9", payload["stock_quantity"])
	assert.Equal(t, true, payload["manage_stock"])
}

func TestWooCommerce_PushProductUpdate_NoMappableFields(t *testing.T) {
	// No request must be made at all.
	a := newAdapter(t, remote.Config{Platform: remote.PlatformWooCommerce, BaseURL: "http://127.0.0.1:1"})

	pushed, err := a.PushProductUpdate(context.Background(), "101", map[string]string{"weight": "2"})
	require.NoError(t, err)
	assert.False(t, pushed)
}

func TestShopify_FetchProducts_FlattensFirstVariant(t *testing.T) {
	var gotToken, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Shopify-Access-Token")
		gotPath = r.URL.Path
		w.Write([]byte(`{"products": [{
			"id": 7001,
			"title": "Teclado Mecanico",
			"handle": "teclado-mecanico",
			"status": "active",
			"vendor": "Redragon",
			"tags": "gamer, teclado",
			"variants": [
				{"id": 9001, "sku": "TM-1", "barcode": "779", "price": "200", "inventory_quantity": 3},
				{"id": 9002, "sku": "TM-2", "price": "210", "inventory_quantity": 1}
			]
		}]}`))
	}))
	defer srv.Close()

	a := newAdapter(t, remote.Config{
		Platform:    remote.PlatformShopify,
		BaseURL:     srv.URL,
		AccessToken: "shpat_token",
	})

	products, err := a.FetchProducts(context.Background(), 1, 50)
	require.NoError(t, err)

	assert.Equal(t, "shpat_token", gotToken)
	assert.Equal(t, "/admin/api/2024-01/products.json", gotPath)

	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "7001", p.RemoteID)
	assert.Equal(t, srv.URL+"/products/teclado-mecanico", p.CanonicalURL)
	assert.Equal(t, "TM-1", p.SKU)
	assert.Equal(t, "779", p.Barcode)
	assert.Equal(t, "200", p.Price)
	assert.Equal(t, "3", p.Stock)
	assert.Equal(t, "Redragon", p.Brand)
	assert.Equal(t, []string{"gamer", "teclado"}, p.Tags)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, "9002", p.Variants[1].ID)
}

func TestShopify_FetchProducts_LogsIgnoredPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The cursor API has no page parameter; every request serves page one.
		assert.NotContains(t, r.URL.RawQuery, "page")
		w.Write([]byte(`{"products": []}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	opts := testOpts
	opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a, err := remote.New(remote.Config{Platform: remote.PlatformShopify, BaseURL: srv.URL}, opts)
	require.NoError(t, err)

	_, err = a.FetchProducts(context.Background(), 2, 50)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "requested_page=2")

	buf.Reset()
	_, err = a.FetchProducts(context.Background(), 1, 50)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestShopify_FetchProductCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/products/count.json", r.URL.Path)
		w.Write([]byte(`{"count": 42}`))
	}))
	defer srv.Close()

	a := newAdapter(t, remote.Config{Platform: remote.PlatformShopify, BaseURL: srv.URL})

	count, err := a.FetchProductCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestBsale_FetchProducts(t *testing.T) {
	var gotToken, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("access_token")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"items": [{
			"id": 55,
			"name": "Parlante Bluetooth",
			"urlSlug": "parlante-bluetooth",
			"state": 0,
			"variants": {"items": [{"code": "PB-1", "barCode": "780", "finalPrice": 19990}]}
		}]}`))
	}))
	defer srv.Close()

	a := newAdapter(t, remote.Config{
		Platform:    remote.PlatformBsale,
		BaseURL:     srv.URL,
		AccessToken: "bsale_token",
	})

	products, err := a.FetchProducts(context.Background(), 2, 10)
	require.NoError(t, err)

	assert.Equal(t, "bsale_token", gotToken)
	assert.Contains(t, gotQuery, "offset=10")
	assert.Contains(t, gotQuery, "limit=10")

	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "55", p.RemoteID)
	assert.Equal(t, "Parlante Bluetooth", p.Name)
	assert.Equal(t, "active", p.Status)
	assert.Equal(t, "PB-1", p.SKU)
	assert.Equal(t, "780", p.Barcode)
	assert.Equal(t, "19990", p.Price)
}

func TestCustom_FieldMapAndWrappedList(t *testing.T) {
	var gotHeader, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Tenant")
		gotAPIKey = r.Header.Get("X-API-Key")
		assert.Equal(t, "/api/catalog", r.URL.Path)
		w.Write([]byte(`{"items": [{
			"id": 9,
			"title": "Cable HDMI",
			"permalink": "https://acme.example.com/p/cable-hdmi",
			"quantity": 12,
			"price": 10.5
		}]}`))
	}))
	defer srv.Close()

	a := newAdapter(t, remote.Config{
		Platform: remote.PlatformCustom,
		BaseURL:  srv.URL,
		APIKey:   "k123",
		CustomHeaders: `{
			"headers": {"X-Tenant": "acme"},
			"products_endpoint": "/api/catalog",
			"field_map": {"name": "title", "url": "permalink", "stock": "quantity"}
		}`,
	})

	products, err := a.FetchProducts(context.Background(), 1, 50)
	require.NoError(t, err)

	assert.Equal(t, "acme", gotHeader)
	assert.Equal(t, "k123", gotAPIKey)

	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "9", p.RemoteID)
	assert.Equal(t, "Cable HDMI", p.Name)
	assert.Equal(t, "https://acme.example.com/p/cable-hdmi", p.CanonicalURL)
	assert.Equal(t, "12", p.Stock)
	assert.Equal(t, "10.5", p.Price)
}

func TestCustom_BareArrayAndURLFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "abc", "name": "Sin URL"}]`))
	}))
	defer srv.Close()

	a := newAdapter(t, remote.Config{Platform: remote.PlatformCustom, BaseURL: srv.URL})

	products, err := a.FetchProducts(context.Background(), 1, 50)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, srv.URL+"/product/abc", products[0].CanonicalURL)
}

func TestCustom_MalformedSettings(t *testing.T) {
	_, err := remote.New(remote.Config{
		Platform:      remote.PlatformCustom,
		BaseURL:       "https://x.example.com",
		CustomHeaders: `{not json`,
	}, testOpts)
	assert.Error(t, err)
}

func TestClient_StatusErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := newAdapter(t, remote.Config{Platform: remote.PlatformWooCommerce, BaseURL: srv.URL})

	_, err := a.FetchProducts(context.Background(), 1, 50)
	require.Error(t, err)

	var re *remote.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, remote.KindStatus, re.Kind)
	assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
	assert.Contains(t, re.Body, "rate limited")
}

func TestClient_ConnectErrorClassification(t *testing.T) {
	// Nothing listens on port 1.
	a := newAdapter(t, remote.Config{Platform: remote.PlatformWooCommerce, BaseURL: "http://127.0.0.1:1"})

	_, err := a.FetchProducts(context.Background(), 1, 50)
	require.Error(t, err)

	var re *remote.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, remote.KindConnect, re.Kind)
}

func TestTestConnection_FailureIsNotAnError(t *testing.T) {
	a := newAdapter(t, remote.Config{Platform: remote.PlatformShopify, BaseURL: "http://127.0.0.1:1"})

	res := a.TestConnection(context.Background())
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
}
