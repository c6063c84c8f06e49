package remote

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Supported platform identifiers.
const (
	PlatformWooCommerce = "woocommerce"
	PlatformShopify     = "shopify"
	PlatformBsale       = "bsale"
	PlatformCustom      = "custom"
)

// Platforms lists the supported platform identifiers in display order.
var Platforms = []string{PlatformWooCommerce, PlatformShopify, PlatformBsale, PlatformCustom}

// Config holds one store connection's credentials. Which fields matter
// depends on the platform: WooCommerce uses APIKey/APISecret as basic
// auth, Shopify and Bsale use AccessToken, the custom adapter reads
// CustomHeaders as a JSON blob of extra settings.
type Config struct {
	Platform      string
	BaseURL       string
	APIKey        string
	APISecret     string
	AccessToken   string
	CustomHeaders string
}

// Options bounds every adapter's outbound traffic.
type Options struct {
	// Timeout caps each HTTP request. Zero means DefaultTimeout.
	Timeout time.Duration

	// RequestsPerSecond limits the adapter's sustained call rate.
	// Zero means DefaultRequestsPerSecond.
	RequestsPerSecond float64

	// Burst is the limiter's burst budget. Zero means DefaultBurst.
	Burst int

	// Logger receives adapter diagnostics. Nil discards them.
	Logger *slog.Logger
}

const (
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 4.0
	DefaultBurst             = 8
)

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o Options) limit() rate.Limit {
	if o.RequestsPerSecond <= 0 {
		return rate.Limit(DefaultRequestsPerSecond)
	}
	return rate.Limit(o.RequestsPerSecond)
}

func (o Options) burst() int {
	if o.Burst <= 0 {
		return DefaultBurst
	}
	return o.Burst
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// New builds the adapter for a platform.
func New(cfg Config, opts Options) (Adapter, error) {
	switch cfg.Platform {
	case PlatformWooCommerce:
		return newWooCommerce(cfg, opts), nil
	case PlatformShopify:
		return newShopify(cfg, opts), nil
	case PlatformBsale:
		return newBsale(cfg, opts), nil
	case PlatformCustom:
		return newCustom(cfg, opts)
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
	}
}
