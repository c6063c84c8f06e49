package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// customAPI targets arbitrary REST backends that serve JSON product lists.
// The CustomHeaders config blob tunes it:
//
//	{
//	  "headers": {"Authorization": "Bearer <token>"},
//	  "products_endpoint": "/api/products",
//	  "field_map": {"name": "title", "url": "permalink", "stock": "quantity"}
//	}
//
// field_map translates the normalized field names to the remote payload's
// keys; unmapped fields use their own name. List responses may be a bare
// array or wrapped under items, products, data, or results.
type customAPI struct {
	c        *client
	baseURL  string
	endpoint string
	fieldMap map[string]string
}

type customSettings struct {
	Headers          map[string]string `json:"headers"`
	ProductsEndpoint string            `json:"products_endpoint"`
	FieldMap         map[string]string `json:"field_map"`
}

func newCustom(cfg Config, opts Options) (*customAPI, error) {
	settings := customSettings{}
	if cfg.CustomHeaders != "" {
		if err := json.Unmarshal([]byte(cfg.CustomHeaders), &settings); err != nil {
			return nil, fmt.Errorf("parse custom adapter settings: %w", err)
		}
	}
	if settings.ProductsEndpoint == "" {
		settings.ProductsEndpoint = "/products"
	}
	if settings.FieldMap == nil {
		settings.FieldMap = map[string]string{}
	}

	c := newClient(cfg.BaseURL, opts)
	if cfg.APIKey != "" {
		c.headers["X-API-Key"] = cfg.APIKey
	}
	if cfg.AccessToken != "" {
		c.headers["Authorization"] = "Bearer " + cfg.AccessToken
	}
	for k, v := range settings.Headers {
		c.headers[k] = v
	}
	return &customAPI{
		c:        c,
		baseURL:  c.baseURL,
		endpoint: settings.ProductsEndpoint,
		fieldMap: settings.FieldMap,
	}, nil
}

// field reads one normalized field from a raw payload through the map.
func (a *customAPI) field(data map[string]any, key string) string {
	mapped, ok := a.fieldMap[key]
	if !ok {
		mapped = key
	}
	return stringify(data[mapped])
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (a *customAPI) parse(raw json.RawMessage) (Product, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return Product{}, fmt.Errorf("decode custom product: %w", err)
	}
	id := a.field(data, "id")
	canonical := a.field(data, "url")
	if canonical == "" && id != "" {
		canonical = a.baseURL + "/product/" + id
	}
	return Product{
		RemoteID:       id,
		Name:           a.field(data, "name"),
		CanonicalURL:   canonical,
		SKU:            a.field(data, "sku"),
		Barcode:        a.field(data, "barcode"),
		Price:          a.field(data, "price"),
		CompareAtPrice: a.field(data, "compare_at_price"),
		Stock:          a.field(data, "stock"),
		Status:         a.field(data, "status"),
		Description:    a.field(data, "description"),
		ShortDesc:      a.field(data, "short_description"),
		Brand:          a.field(data, "brand"),
		Category:       a.field(data, "category"),
		Raw:            raw,
	}, nil
}

// listItems unwraps the supported list response shapes.
func listItems(data []byte) ([]json.RawMessage, error) {
	var bare []json.RawMessage
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode product list: %w", err)
	}
	for _, key := range []string{"items", "products", "data", "results"} {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode product list under %q: %w", key, err)
		}
		return items, nil
	}
	return nil, nil
}

func (a *customAPI) TestConnection(ctx context.Context) TestResult {
	query := url.Values{"limit": {"1"}, "per_page": {"1"}}
	data, err := a.c.do(ctx, "GET", a.endpoint, query, nil)
	if err != nil {
		return TestResult{Success: false, Message: err.Error()}
	}

	count := 0
	var wrapped struct {
		Total int `json:"total"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		count = wrapped.Total
		if count == 0 {
			count = wrapped.Count
		}
	}
	if count == 0 {
		if items, err := listItems(data); err == nil {
			count = len(items)
		}
	}
	return TestResult{
		Success:      true,
		Message:      "Connected successfully to custom API",
		StoreName:    a.baseURL,
		ProductCount: count,
		APIVersion:   "Custom REST",
	}
}

func (a *customAPI) FetchProducts(ctx context.Context, page, perPage int) ([]Product, error) {
	query := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
		"limit":    {strconv.Itoa(perPage)},
	}
	data, err := a.c.do(ctx, "GET", a.endpoint, query, nil)
	if err != nil {
		return nil, err
	}
	items, err := listItems(data)
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(items))
	for _, raw := range items {
		p, err := a.parse(raw)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (a *customAPI) FetchProductByID(ctx context.Context, remoteID string) (*Product, error) {
	data, err := a.c.do(ctx, "GET", a.endpoint+"/"+remoteID, nil, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	// Single-product responses may be bare or wrapped under product/item.
	var wrapped map[string]json.RawMessage
	raw := json.RawMessage(data)
	if err := json.Unmarshal(data, &wrapped); err == nil {
		for _, key := range []string{"product", "item"} {
			if inner, ok := wrapped[key]; ok {
				raw = inner
				break
			}
		}
	}
	p, err := a.parse(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *customAPI) FetchProductCount(ctx context.Context) (int, error) {
	query := url.Values{"limit": {"1"}, "per_page": {"1"}}
	var wrapped struct {
		Total int `json:"total"`
		Count int `json:"count"`
	}
	if err := a.c.getJSON(ctx, a.endpoint, query, &wrapped); err != nil {
		return 0, err
	}
	if wrapped.Total > 0 {
		return wrapped.Total, nil
	}
	return wrapped.Count, nil
}

func (a *customAPI) PushProductUpdate(ctx context.Context, remoteID string, updates map[string]string) (bool, error) {
	payload := map[string]any{}
	for field, value := range updates {
		mapped, ok := a.fieldMap[field]
		if !ok {
			mapped = field
		}
		payload[mapped] = value
	}
	if len(payload) == 0 {
		return false, nil
	}
	if err := a.c.putJSON(ctx, a.endpoint+"/"+remoteID, payload); err != nil {
		return false, err
	}
	return true, nil
}
