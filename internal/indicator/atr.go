package indicator

import (
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// ATR represents the Average True Range indicator.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator with default configuration.
func NewATR() Indicator {
	return &ATR{
		period: 14,
	}
}

// Name returns the name of the indicator.
func (a *ATR) Name() types.IndicatorType {
	return types.IndicatorTypeATR
}

// Config configures the ATR indicator. Expected parameters: period (int).
func (a *ATR) Config(params ...any) error {
	if len(params) != 1 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 1 parameter: period (int)")
	}

	period, ok := params[0].(int)
	if !ok {
		return errors.New(errors.ErrCodeInvalidType, "invalid type for period parameter, expected int")
	}

	if period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	a.period = period

	return nil
}

func (a *ATR) Columns() []string {
	return []string{ColumnATR}
}

func (a *ATR) MinBars() int {
	return a.period
}

// Compute smooths the true range with an EMA of the configured period.
func (a *ATR) Compute(bars []types.MarketData) (map[string][]float64, error) {
	if len(bars) < a.period {
		return nil, errors.NewInsufficientDataErrorf(a.period, len(bars), symbolOf(bars), "insufficient data points for ATR: required %d, got %d", a.period, len(bars))
	}

	high := make([]float64, len(bars))
	low := make([]float64, len(bars))

	for i, b := range bars {
		high[i] = b.High
		low[i] = b.Low
	}

	tr := TrueRangeSeries(high, low, closes(bars))

	return map[string][]float64{ColumnATR: EMASeries(tr, a.period)}, nil
}

// ATRValue returns the latest ATR of bars, or an error when it cannot be computed.
func ATRValue(bars []types.MarketData, period int) (float64, error) {
	atr := &ATR{period: period}

	cols, err := atr.Compute(bars)
	if err != nil {
		return 0, err
	}

	value, ok := Last(cols[ColumnATR])
	if !ok || value <= 0 {
		return 0, errors.New(errors.ErrCodeIndicatorCalculation, "ATR is undefined for the given bars")
	}

	return value, nil
}
