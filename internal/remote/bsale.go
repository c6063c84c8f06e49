package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// bsale targets the Bsale v1 API, authenticated with an access_token
// header. Bsale paginates with limit/offset; the page number is
// translated to an offset. State 0 means an active product.
type bsale struct {
	c       *client
	baseURL string
}

func newBsale(cfg Config, opts Options) *bsale {
	base := strings.TrimRight(cfg.BaseURL, "/")
	apiBase := base
	if !strings.Contains(apiBase, "/v1") {
		apiBase += "/v1"
	}
	c := newClient(apiBase, opts)
	c.headers["access_token"] = cfg.AccessToken
	return &bsale{c: c, baseURL: base}
}

type bsaleProduct struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URLSlug     string `json:"urlSlug"`
	State       int    `json:"state"`
	ProductType struct {
		Name string `json:"name"`
	} `json:"product_type"`
	Variants struct {
		Items []struct {
			ID         int64       `json:"id"`
			Code       string      `json:"code"`
			BarCode    string      `json:"barCode"`
			FinalPrice json.Number `json:"finalPrice"`
		} `json:"items"`
	} `json:"variants"`
}

func (b *bsale) parse(raw json.RawMessage) (Product, error) {
	var p bsaleProduct
	if err := json.Unmarshal(raw, &p); err != nil {
		return Product{}, fmt.Errorf("decode bsale product: %w", err)
	}

	variants := make([]Variant, 0, len(p.Variants.Items))
	for _, v := range p.Variants.Items {
		variants = append(variants, Variant{
			ID:      strconv.FormatInt(v.ID, 10),
			SKU:     v.Code,
			Barcode: v.BarCode,
			Price:   v.FinalPrice.String(),
		})
	}
	var first Variant
	if len(variants) > 0 {
		first = variants[0]
	}

	status := "inactive"
	if p.State == 0 {
		status = "active"
	}
	canonical := p.URLSlug
	if canonical == "" {
		canonical = fmt.Sprintf("%s/product/%d", b.baseURL, p.ID)
	}

	return Product{
		RemoteID:     strconv.FormatInt(p.ID, 10),
		Name:         p.Name,
		CanonicalURL: canonical,
		SKU:          first.SKU,
		Barcode:      first.Barcode,
		Price:        first.Price,
		Status:       status,
		Description:  p.Description,
		Category:     p.ProductType.Name,
		Variants:     variants,
		Raw:          raw,
	}, nil
}

func (b *bsale) TestConnection(ctx context.Context) TestResult {
	var resp struct {
		Count int `json:"count"`
	}
	if err := b.c.getJSON(ctx, "products.json", url.Values{"limit": {"1"}}, &resp); err != nil {
		return TestResult{Success: false, Message: err.Error()}
	}
	return TestResult{
		Success:      true,
		Message:      "Connected successfully to Bsale",
		StoreName:    "Bsale Store",
		ProductCount: resp.Count,
		APIVersion:   "Bsale v1",
	}
}

func (b *bsale) FetchProducts(ctx context.Context, page, perPage int) ([]Product, error) {
	offset := (page - 1) * perPage
	query := url.Values{
		"limit":  {strconv.Itoa(perPage)},
		"offset": {strconv.Itoa(offset)},
		"expand": {"[variants]"},
	}
	var resp struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := b.c.getJSON(ctx, "products.json", query, &resp); err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(resp.Items))
	for _, raw := range resp.Items {
		p, err := b.parse(raw)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (b *bsale) FetchProductByID(ctx context.Context, remoteID string) (*Product, error) {
	var raw json.RawMessage
	query := url.Values{"expand": {"[variants]"}}
	if err := b.c.getJSON(ctx, "products/"+remoteID+".json", query, &raw); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	p, err := b.parse(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *bsale) FetchProductCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := b.c.getJSON(ctx, "products.json", url.Values{"limit": {"1"}}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (b *bsale) PushProductUpdate(ctx context.Context, remoteID string, updates map[string]string) (bool, error) {
	payload := map[string]any{}
	if v, ok := updates["name"]; ok {
		payload["name"] = v
	}
	if v, ok := updates["description"]; ok {
		payload["description"] = v
	}
	if len(payload) == 0 {
		return false, nil
	}
	if err := b.c.putJSON(ctx, "products/"+remoteID+".json", payload); err != nil {
		return false, err
	}
	return true, nil
}
