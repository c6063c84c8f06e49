package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

// shopifyAPIVersion pins the Admin REST API version all requests target.
const shopifyAPIVersion = "2024-01"

// shopify targets the Shopify Admin REST API, authenticated with an
// access token header. Product-level fields are flattened from the first
// variant, matching how single-variant catalogs use Shopify.
//
// The Admin API paginates with cursors, which a page number cannot
// address; FetchProducts serves the first page only and page > 1 returns
// the same data.
type shopify struct {
	c       *client
	baseURL string
	log     *slog.Logger
}

func newShopify(cfg Config, opts Options) *shopify {
	base := strings.TrimRight(cfg.BaseURL, "/")
	c := newClient(base+"/admin/api/"+shopifyAPIVersion, opts)
	c.headers["X-Shopify-Access-Token"] = cfg.AccessToken
	return &shopify{c: c, baseURL: base, log: opts.logger()}
}

type shopifyVariant struct {
	ID                int64       `json:"id"`
	Title             string      `json:"title"`
	SKU               string      `json:"sku"`
	Barcode           string      `json:"barcode"`
	Price             string      `json:"price"`
	CompareAtPrice    string      `json:"compare_at_price"`
	InventoryQuantity *int        `json:"inventory_quantity"`
	Weight            json.Number `json:"weight"`
}

type shopifyProduct struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Handle      string           `json:"handle"`
	Status      string           `json:"status"`
	BodyHTML    string           `json:"body_html"`
	Vendor      string           `json:"vendor"`
	ProductType string           `json:"product_type"`
	Tags        string           `json:"tags"`
	Images      []struct {
		Src string `json:"src"`
	} `json:"images"`
	Variants []shopifyVariant `json:"variants"`
}

func (s *shopify) parse(raw json.RawMessage) (Product, error) {
	var p shopifyProduct
	if err := json.Unmarshal(raw, &p); err != nil {
		return Product{}, fmt.Errorf("decode shopify product: %w", err)
	}

	images := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		if img.Src != "" {
			images = append(images, img.Src)
		}
	}
	var tags []string
	for _, t := range strings.Split(p.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	variants := make([]Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		stock := ""
		if v.InventoryQuantity != nil {
			stock = strconv.Itoa(*v.InventoryQuantity)
		}
		variants = append(variants, Variant{
			ID:      strconv.FormatInt(v.ID, 10),
			Title:   v.Title,
			SKU:     v.SKU,
			Barcode: v.Barcode,
			Price:   v.Price,
			Stock:   stock,
		})
	}

	var first shopifyVariant
	if len(p.Variants) > 0 {
		first = p.Variants[0]
	}
	stock := ""
	if first.InventoryQuantity != nil {
		stock = strconv.Itoa(*first.InventoryQuantity)
	}
	canonical := ""
	if p.Handle != "" {
		canonical = s.baseURL + "/products/" + p.Handle
	}

	return Product{
		RemoteID:       strconv.FormatInt(p.ID, 10),
		Name:           p.Title,
		CanonicalURL:   canonical,
		SKU:            first.SKU,
		Barcode:        first.Barcode,
		Price:          first.Price,
		CompareAtPrice: first.CompareAtPrice,
		Stock:          stock,
		Status:         p.Status,
		Description:    p.BodyHTML,
		Brand:          p.Vendor,
		Category:       p.ProductType,
		Tags:           tags,
		Images:         images,
		Weight:         first.Weight.String(),
		Variants:       variants,
		Raw:            raw,
	}, nil
}

func (s *shopify) TestConnection(ctx context.Context) TestResult {
	var shop struct {
		Shop struct {
			Name string `json:"name"`
		} `json:"shop"`
	}
	if err := s.c.getJSON(ctx, "shop.json", nil, &shop); err != nil {
		return TestResult{Success: false, Message: err.Error()}
	}
	name := shop.Shop.Name
	if name == "" {
		name = s.baseURL
	}
	return TestResult{
		Success:    true,
		Message:    "Connected successfully to Shopify",
		StoreName:  name,
		APIVersion: "Shopify " + shopifyAPIVersion,
	}
}

func (s *shopify) FetchProducts(ctx context.Context, page, perPage int) ([]Product, error) {
	if page > 1 {
		s.log.Debug("shopify paginates with cursors; serving the first page",
			"requested_page", page)
	}
	query := url.Values{"limit": {strconv.Itoa(perPage)}}
	var resp struct {
		Products []json.RawMessage `json:"products"`
	}
	if err := s.c.getJSON(ctx, "products.json", query, &resp); err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(resp.Products))
	for _, raw := range resp.Products {
		p, err := s.parse(raw)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *shopify) FetchProductByID(ctx context.Context, remoteID string) (*Product, error) {
	var resp struct {
		Product json.RawMessage `json:"product"`
	}
	if err := s.c.getJSON(ctx, "products/"+remoteID+".json", nil, &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	p, err := s.parse(resp.Product)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *shopify) FetchProductCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := s.c.getJSON(ctx, "products/count.json", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (s *shopify) PushProductUpdate(ctx context.Context, remoteID string, updates map[string]string) (bool, error) {
	product := map[string]any{}
	if v, ok := updates["name"]; ok {
		product["title"] = v
	}
	if v, ok := updates["description"]; ok {
		product["body_html"] = v
	}
	if v, ok := updates["status"]; ok {
		product["status"] = v
	}
	if v, ok := updates["brand"]; ok {
		product["vendor"] = v
	}
	if v, ok := updates["category"]; ok {
		product["product_type"] = v
	}
	if v, ok := updates["tags"]; ok {
		product["tags"] = v
	}

	variant := map[string]any{}
	if v, ok := updates["sku"]; ok {
		variant["sku"] = v
	}
	if v, ok := updates["price"]; ok {
		variant["price"] = v
	}
	if v, ok := updates["barcode"]; ok {
		variant["barcode"] = v
	}

	if len(product) == 0 && len(variant) == 0 {
		return false, nil
	}

	if len(product) > 0 {
		if err := s.c.putJSON(ctx, "products/"+remoteID+".json", map[string]any{"product": product}); err != nil {
			return false, err
		}
	}
	if len(variant) > 0 {
		// Variant fields live on the first variant.
		current, err := s.FetchProductByID(ctx, remoteID)
		if err != nil {
			return false, err
		}
		if current == nil || len(current.Variants) == 0 {
			return false, fmt.Errorf("product %s has no variants to update", remoteID)
		}
		variantID := current.Variants[0].ID
		if err := s.c.putJSON(ctx, "variants/"+variantID+".json", map[string]any{"variant": variant}); err != nil {
			return false, err
		}
	}
	return true, nil
}
