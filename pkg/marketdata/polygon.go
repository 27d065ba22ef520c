package marketdata

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// PolygonSource reads aggregates from Polygon.io.
type PolygonSource struct {
	client *polygon.Client
	now    func() time.Time
}

// NewPolygonSource creates a Polygon source. An API key is required.
func NewPolygonSource(apiKey string) (*PolygonSource, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon provider requires an API key")
	}

	return &PolygonSource{
		client: polygon.New(apiKey),
		now:    time.Now,
	}, nil
}

// Bars returns the aggregates covering the last limit bars of timeframe, oldest first.
func (s *PolygonSource) Bars(ctx context.Context, instrument string, timeframe types.Timeframe, limit int) ([]types.MarketData, error) {
	multiplier, timespan, err := PolygonTimespan(timeframe)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultLookback
	}

	end := s.now()
	// markets close overnight and on weekends, so request a wider window and trim
	start := end.Add(-3 * time.Duration(limit) * timeframe.Duration())

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     instrument,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(50000)

	iter := s.client.ListAggs(ctx, params)

	bars := make([]types.MarketData, 0, limit)

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.MarketData{
			Symbol: instrument,
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if iter.Err() != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "error iterating polygon aggregates", iter.Err())
	}

	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}

	return bars, nil
}

// LatestPrice returns the close of the most recent one-minute aggregate.
func (s *PolygonSource) LatestPrice(ctx context.Context, instrument string) (float64, error) {
	bars, err := s.Bars(ctx, instrument, types.Timeframe1m, 5)
	if err != nil {
		return 0, err
	}

	if len(bars) == 0 {
		return 0, errors.Newf(errors.ErrCodeNoDataFound, "no recent aggregates for %s", instrument)
	}

	return bars[len(bars)-1].Close, nil
}

// PolygonTimespan converts a timeframe to the Polygon multiplier and timespan pair.
func PolygonTimespan(timeframe types.Timeframe) (int, models.Timespan, error) {
	switch timeframe {
	case types.Timeframe1m:
		return 1, models.Minute, nil
	case types.Timeframe5m:
		return 5, models.Minute, nil
	case types.Timeframe15m:
		return 15, models.Minute, nil
	case types.Timeframe30m:
		return 30, models.Minute, nil
	case types.Timeframe1h:
		return 1, models.Hour, nil
	case types.Timeframe4h:
		return 4, models.Hour, nil
	case types.Timeframe1d:
		return 1, models.Day, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidTimespan, "unsupported timeframe for Polygon: %s", timeframe)
	}
}
