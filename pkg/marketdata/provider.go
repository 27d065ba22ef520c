package marketdata

import (
	"context"
	"sort"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// Provider supplies indicator-annotated tables and latest prices.
// A short or empty table is the normal way to report missing data; errors are reserved
// for I/O failures.
type Provider interface {
	Fetch(ctx context.Context, instrument string, timeframe types.Timeframe) (Table, error)
	GetLatestPrice(ctx context.Context, instrument string) (float64, error)
}

// BarSource supplies raw OHLCV bars, oldest first.
type BarSource interface {
	Bars(ctx context.Context, instrument string, timeframe types.Timeframe, limit int) ([]types.MarketData, error)
	LatestPrice(ctx context.Context, instrument string) (float64, error)
}

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
	ProviderStatic  ProviderType = "static"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
}

var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderPolygon: {
		Name:         string(ProviderPolygon),
		DisplayName:  "Polygon.io",
		Description:  "US stock market aggregates",
		RequiresAuth: true,
	},
	ProviderBinance: {
		Name:         string(ProviderBinance),
		DisplayName:  "Binance",
		Description:  "Cryptocurrency klines and ticker prices",
		RequiresAuth: false,
	},
	ProviderStatic: {
		Name:         string(ProviderStatic),
		DisplayName:  "Static",
		Description:  "In-memory bars loaded at startup, for dry runs and tests",
		RequiresAuth: false,
	},
}

// GetSupportedProviders returns the names of all supported providers in sorted order.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	sort.Strings(providers)

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}

	return info, nil
}

// SourceConfig selects and configures a bar source.
type SourceConfig struct {
	Type   ProviderType
	APIKey string
}

// NewBarSource creates the bar source for the given configuration.
func NewBarSource(cfg SourceConfig) (BarSource, error) {
	switch cfg.Type {
	case ProviderBinance:
		return NewBinanceSource(), nil
	case ProviderPolygon:
		return NewPolygonSource(cfg.APIKey)
	case ProviderStatic:
		return NewStaticSource(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", cfg.Type)
	}
}
