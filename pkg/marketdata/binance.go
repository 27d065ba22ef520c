package marketdata

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// binanceMaxKlines is the largest page the klines endpoint returns.
const binanceMaxKlines = 1000

// BinanceMarketAPI is the subset of the Binance REST API used for market data.
type BinanceMarketAPI interface {
	Klines(ctx context.Context, symbol string, interval string, limit int) ([]*binance.Kline, error)
	Prices(ctx context.Context, symbol string) ([]*binance.SymbolPrice, error)
}

type realBinanceMarketAPI struct {
	client *binance.Client
}

func (r *realBinanceMarketAPI) Klines(ctx context.Context, symbol string, interval string, limit int) ([]*binance.Kline, error) {
	return r.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
}

func (r *realBinanceMarketAPI) Prices(ctx context.Context, symbol string) ([]*binance.SymbolPrice, error) {
	return r.client.NewListPricesService().Symbol(symbol).Do(ctx)
}

// BinanceSource reads public klines and ticker prices from Binance.
type BinanceSource struct {
	api BinanceMarketAPI
}

// NewBinanceSource creates a source on the public Binance API. Market data needs no keys.
func NewBinanceSource() *BinanceSource {
	return &BinanceSource{
		api: &realBinanceMarketAPI{client: binance.NewClient("", "")},
	}
}

// NewBinanceSourceWithAPI creates a source on a custom API implementation.
func NewBinanceSourceWithAPI(api BinanceMarketAPI) *BinanceSource {
	return &BinanceSource{api: api}
}

// Bars returns up to limit of the most recent klines, oldest first.
func (s *BinanceSource) Bars(ctx context.Context, instrument string, timeframe types.Timeframe, limit int) ([]types.MarketData, error) {
	if timeframe.Duration() == 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidTimespan, "unsupported timeframe for Binance: %s", timeframe)
	}

	if limit <= 0 || limit > binanceMaxKlines {
		limit = binanceMaxKlines
	}

	klines, err := s.api.Klines(ctx, instrument, string(timeframe), limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch klines from Binance", err)
	}

	return convertKlines(instrument, klines)
}

// LatestPrice returns the last ticker price.
func (s *BinanceSource) LatestPrice(ctx context.Context, instrument string) (float64, error) {
	prices, err := s.api.Prices(ctx, instrument)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch ticker price from Binance", err)
	}

	for _, p := range prices {
		if p.Symbol != instrument {
			continue
		}

		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			return 0, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid price %q for %s", p.Price, instrument)
		}

		return price, nil
	}

	return 0, errors.Newf(errors.ErrCodeNoDataFound, "no ticker price returned for %s", instrument)
}

// convertKlines converts Binance kline data to our internal MarketData format.
func convertKlines(instrument string, klines []*binance.Kline) ([]types.MarketData, error) {
	bars := make([]types.MarketData, 0, len(klines))

	for _, k := range klines {
		fields := [5]string{k.Open, k.High, k.Low, k.Close, k.Volume}

		var values [5]float64

		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid kline value %q for %s", f, instrument)
			}

			values[i] = v
		}

		bars = append(bars, types.MarketData{
			Symbol: instrument,
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}

	return bars, nil
}
