package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// wooCommerce targets the WooCommerce REST API v3 under /wp-json/wc/v3,
// authenticated with consumer key/secret basic auth.
type wooCommerce struct {
	c       *client
	baseURL string
}

func newWooCommerce(cfg Config, opts Options) *wooCommerce {
	base := strings.TrimRight(cfg.BaseURL, "/")
	c := newClient(base+"/wp-json/wc/v3", opts)
	c.setBasicAuth(cfg.APIKey, cfg.APISecret)
	return &wooCommerce{c: c, baseURL: base}
}

type wcProduct struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Permalink      string `json:"permalink"`
	SKU            string `json:"sku"`
	GlobalUniqueID string `json:"global_unique_id"`
	Price          string `json:"price"`
	RegularPrice   string `json:"regular_price"`
	StockQuantity  *int   `json:"stock_quantity"`
	Status         string `json:"status"`
	Description    string `json:"description"`
	ShortDesc      string `json:"short_description"`
	Weight         string `json:"weight"`
	Dimensions     struct {
		Length string `json:"length"`
		Width  string `json:"width"`
		Height string `json:"height"`
	} `json:"dimensions"`
	Images []struct {
		Src string `json:"src"`
	} `json:"images"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
	Attributes []struct {
		Name    string   `json:"name"`
		Options []string `json:"options"`
	} `json:"attributes"`
	Variations []int64 `json:"variations"`
}

func (w *wooCommerce) parse(raw json.RawMessage) (Product, error) {
	var p wcProduct
	if err := json.Unmarshal(raw, &p); err != nil {
		return Product{}, fmt.Errorf("decode woocommerce product: %w", err)
	}

	images := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		if img.Src != "" {
			images = append(images, img.Src)
		}
	}
	tags := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, t.Name)
	}
	categories := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		categories = append(categories, c.Name)
	}
	variants := make([]Variant, 0, len(p.Variations))
	for _, id := range p.Variations {
		variants = append(variants, Variant{ID: strconv.FormatInt(id, 10)})
	}

	var brand string
	for _, attr := range p.Attributes {
		name := strings.ToLower(attr.Name)
		if (name == "marca" || name == "brand") && len(attr.Options) > 0 {
			brand = attr.Options[0]
			break
		}
	}

	canonical := p.Permalink
	if canonical == "" {
		canonical = fmt.Sprintf("%s/?p=%d", w.baseURL, p.ID)
	}
	stock := ""
	if p.StockQuantity != nil {
		stock = strconv.Itoa(*p.StockQuantity)
	}

	return Product{
		RemoteID:       strconv.FormatInt(p.ID, 10),
		Name:           p.Name,
		CanonicalURL:   canonical,
		SKU:            p.SKU,
		Barcode:        p.GlobalUniqueID,
		Price:          p.Price,
		CompareAtPrice: p.RegularPrice,
		Stock:          stock,
		Status:         p.Status,
		Description:    p.Description,
		ShortDesc:      p.ShortDesc,
		Brand:          brand,
		Category:       strings.Join(categories, ", "),
		Tags:           tags,
		Images:         images,
		Weight:         p.Weight,
		Dimensions:     fmt.Sprintf("%sx%sx%s", p.Dimensions.Length, p.Dimensions.Width, p.Dimensions.Height),
		Variants:       variants,
		Raw:            raw,
	}, nil
}

func (w *wooCommerce) TestConnection(ctx context.Context) TestResult {
	var status struct {
		Environment struct {
			SiteTitle string `json:"site_title"`
		} `json:"environment"`
		Settings struct {
			Version string `json:"version"`
		} `json:"settings"`
	}
	if err := w.c.getJSON(ctx, "system_status", nil, &status); err != nil {
		return TestResult{Success: false, Message: err.Error()}
	}
	name := status.Environment.SiteTitle
	if name == "" {
		name = w.baseURL
	}
	version := status.Settings.Version
	if version == "" {
		version = "unknown"
	}
	return TestResult{
		Success:    true,
		Message:    "Connected successfully to WooCommerce",
		StoreName:  name,
		APIVersion: "WC " + version,
	}
}

func (w *wooCommerce) FetchProducts(ctx context.Context, page, perPage int) ([]Product, error) {
	query := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
		"status":   {"any"},
	}
	var raws []json.RawMessage
	if err := w.c.getJSON(ctx, "products", query, &raws); err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(raws))
	for _, raw := range raws {
		p, err := w.parse(raw)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (w *wooCommerce) FetchProductByID(ctx context.Context, remoteID string) (*Product, error) {
	var raw json.RawMessage
	if err := w.c.getJSON(ctx, "products/"+remoteID, nil, &raw); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	p, err := w.parse(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (w *wooCommerce) FetchProductCount(ctx context.Context) (int, error) {
	var totals []struct {
		Total int `json:"total"`
	}
	if err := w.c.getJSON(ctx, "reports/products/totals", nil, &totals); err != nil {
		return 0, err
	}
	count := 0
	for _, t := range totals {
		count += t.Total
	}
	return count, nil
}

func (w *wooCommerce) PushProductUpdate(ctx context.Context, remoteID string, updates map[string]string) (bool, error) {
	fieldMap := map[string]string{
		"name":              "name",
		"sku":               "sku",
		"price":             "regular_price",
		"description":       "description",
		"short_description": "short_description",
		"status":            "status",
		"stock":             "stock_quantity",
	}
	payload := map[string]any{}
	for local, wc := range fieldMap {
		if v, ok := updates[local]; ok {
			payload[wc] = v
		}
	}
	if _, ok := updates["stock"]; ok {
		payload["manage_stock"] = true
	}
	if len(payload) == 0 {
		return false, nil
	}
	if err := w.c.putJSON(ctx, "products/"+remoteID, payload); err != nil {
		return false, err
	}
	return true, nil
}
