// Package remote talks to external store platforms.
//
// Each platform (WooCommerce, Shopify, Bsale, custom REST) gets an Adapter
// that normalizes its product payloads into the shared Product shape. All
// adapters share one HTTP client wrapper that enforces a request timeout,
// a per-adapter rate limit, and a uniform error taxonomy: every failure
// crossing the package boundary is a *Error with a Kind of connect,
// timeout, or status.
//
// Adapters never touch local storage. The reconciliation engine owns the
// mapping between remote products and catalog records; this package only
// fetches and pushes.
package remote

import (
	"context"
	"encoding/json"
)

// Product is the normalized representation of a product on a remote
// platform. String fields are "" when the platform does not supply them.
type Product struct {
	RemoteID       string          `json:"remote_id"`
	Name           string          `json:"name"`
	CanonicalURL   string          `json:"canonical_url"`
	SKU            string          `json:"sku"`
	Barcode        string          `json:"barcode"`
	Price          string          `json:"price"`
	CompareAtPrice string          `json:"compare_at_price"`
	Stock          string          `json:"stock"`
	Status         string          `json:"status"`
	Description    string          `json:"description"`
	ShortDesc      string          `json:"short_description"`
	Brand          string          `json:"brand"`
	Category       string          `json:"category"`
	Tags           []string        `json:"tags"`
	Images         []string        `json:"images"`
	Weight         string          `json:"weight"`
	Dimensions     string          `json:"dimensions"`
	Variants       []Variant       `json:"variants"`
	Raw            json.RawMessage `json:"-"`
}

// Variant is one sellable variation of a remote product.
type Variant struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	SKU     string `json:"sku"`
	Barcode string `json:"barcode,omitempty"`
	Price   string `json:"price"`
	Stock   string `json:"stock"`
}

// TestResult reports a connection probe. A failed probe is a valid
// result, not an error: Success is false and Message carries the cause.
type TestResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	StoreName    string `json:"store_name,omitempty"`
	ProductCount int    `json:"product_count,omitempty"`
	APIVersion   string `json:"api_version,omitempty"`
}

// Adapter is the contract every platform integration implements.
type Adapter interface {
	// TestConnection probes the remote API with the configured
	// credentials. Failures are folded into the result.
	TestConnection(ctx context.Context) TestResult

	// FetchProducts returns one page of products. Pages start at 1.
	FetchProducts(ctx context.Context, page, perPage int) ([]Product, error)

	// FetchProductByID returns a single product, or nil when the remote
	// store does not have it.
	FetchProductByID(ctx context.Context, remoteID string) (*Product, error)

	// FetchProductCount returns the total product count on the store.
	FetchProductCount(ctx context.Context) (int, error)

	// PushProductUpdate writes field updates to a remote product.
	// Updates are keyed by the normalized field names of Product; each
	// adapter translates to its platform's payload and ignores fields
	// the platform cannot update.
	PushProductUpdate(ctx context.Context, remoteID string, updates map[string]string) (bool, error)
}
