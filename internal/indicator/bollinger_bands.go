package indicator

import (
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// BollingerBands represents the Bollinger Bands indicator.
type BollingerBands struct {
	period int
	stdDev float64 // Number of standard deviations
}

// NewBollingerBands creates a new Bollinger Bands indicator with default configuration.
func NewBollingerBands() Indicator {
	return &BollingerBands{
		period: 20,
		stdDev: 2.0,
	}
}

// Name returns the name of the indicator.
func (bb *BollingerBands) Name() types.IndicatorType {
	return types.IndicatorTypeBollingerBands
}

// Config configures the Bollinger Bands indicator. Expected parameters: period (int), stdDev (float64).
func (bb *BollingerBands) Config(params ...any) error {
	if len(params) != 2 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 2 parameters: period (int), stdDev (float64)")
	}

	period, ok := params[0].(int)
	if !ok {
		return errors.New(errors.ErrCodeInvalidType, "invalid type for period parameter, expected int")
	}

	if period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	stdDev, ok := params[1].(float64)
	if !ok {
		return errors.New(errors.ErrCodeInvalidType, "invalid type for stdDev parameter, expected float64")
	}

	if stdDev <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "stdDev must be positive, got %f", stdDev)
	}

	bb.period = period
	bb.stdDev = stdDev

	return nil
}

func (bb *BollingerBands) Columns() []string {
	return []string{ColumnBBUpper, ColumnBBMiddle, ColumnBBLower}
}

func (bb *BollingerBands) MinBars() int {
	return bb.period
}

// Compute calculates middle = SMA(period) and upper/lower = middle ± stdDev * σ.
func (bb *BollingerBands) Compute(bars []types.MarketData) (map[string][]float64, error) {
	if len(bars) < bb.period {
		return nil, errors.NewInsufficientDataErrorf(bb.period, len(bars), symbolOf(bars), "insufficient data points for Bollinger Bands: required %d, got %d", bb.period, len(bars))
	}

	values := closes(bars)
	middle := SMASeries(values, bb.period)
	sigma := StdDevSeries(values, bb.period)
	upper := nanSeries(len(values))
	lower := nanSeries(len(values))

	for i := range values {
		m, okM := At(middle, i)
		s, okS := At(sigma, i)

		if okM && okS {
			upper[i] = m + bb.stdDev*s
			lower[i] = m - bb.stdDev*s
		}
	}

	return map[string][]float64{
		ColumnBBUpper:  upper,
		ColumnBBMiddle: middle,
		ColumnBBLower:  lower,
	}, nil
}
