package marketdata

import (
	"context"

	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"go.uber.org/zap"
)

// DefaultLookback is the number of bars requested per fetch. It covers EMA(200) warm-up.
const DefaultLookback = 250

// Enrich runs every indicator in the registry over the table bars and returns a copy
// with the resulting columns. Indicators without enough bars are skipped, leaving their
// columns absent so strategies see the gap as missing data.
func Enrich(table Table, registry indicator.IndicatorRegistry) (Table, error) {
	cols := map[string][]float64{}

	for _, name := range registry.ListIndicators() {
		ind, err := registry.GetIndicator(name)
		if err != nil {
			return table, err
		}

		values, err := ind.Compute(table.Bars)
		if err != nil {
			if errors.IsInsufficientDataError(err) {
				continue
			}

			return table, errors.Wrapf(errors.ErrCodeIndicatorCalculation, err, "failed to compute %s for %s %s", name, table.Instrument, table.Timeframe)
		}

		for k, v := range values {
			cols[k] = v
		}
	}

	return table.WithColumns(cols), nil
}

// IndicatorProvider is a Provider that reads bars from a BarSource and annotates them
// with the indicator columns of its registry.
type IndicatorProvider struct {
	source   BarSource
	registry indicator.IndicatorRegistry
	lookback int
	log      *logger.Logger
}

// NewIndicatorProvider wires a bar source to an indicator registry.
func NewIndicatorProvider(source BarSource, registry indicator.IndicatorRegistry, lookback int, log *logger.Logger) *IndicatorProvider {
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	return &IndicatorProvider{
		source:   source,
		registry: registry,
		lookback: lookback,
		log:      log,
	}
}

// Fetch returns the latest lookback bars with indicator columns.
func (p *IndicatorProvider) Fetch(ctx context.Context, instrument string, timeframe types.Timeframe) (Table, error) {
	bars, err := p.source.Bars(ctx, instrument, timeframe, p.lookback)
	if err != nil {
		return Table{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch %s %s bars", instrument, timeframe)
	}

	table := NewTable(instrument, timeframe, bars)
	if table.Empty() {
		p.log.Debug("No bars returned",
			zap.String("instrument", instrument),
			zap.String("timeframe", string(timeframe)),
		)

		return table, nil
	}

	return Enrich(table, p.registry)
}

// GetLatestPrice returns the latest traded price.
func (p *IndicatorProvider) GetLatestPrice(ctx context.Context, instrument string) (float64, error) {
	price, err := p.source.LatestPrice(ctx, instrument)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch latest price for %s", instrument)
	}

	return price, nil
}

// Bars exposes the raw bars of the underlying source, used for ATR computation.
func (p *IndicatorProvider) Bars(ctx context.Context, instrument string, timeframe types.Timeframe, limit int) ([]types.MarketData, error) {
	return p.source.Bars(ctx, instrument, timeframe, limit)
}
