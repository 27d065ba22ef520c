package indicator

import (
	"slices"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// RSI represents the Relative Strength Index indicator.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator with default configuration.
func NewRSI() Indicator {
	return &RSI{
		period: 14,
	}
}

// Name returns the name of the indicator.
func (r *RSI) Name() types.IndicatorType {
	return types.IndicatorTypeRSI
}

// Config configures the RSI indicator. Expected parameters: period (int).
func (r *RSI) Config(params ...any) error {
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

	r.period = period

	return nil
}

// Columns returns rsi and rsi_<period>.
func (r *RSI) Columns() []string {
	return []string{ColumnRSI, RSIColumn(r.period)}
}

// MinBars is period+1 since RSI works on price changes.
func (r *RSI) MinBars() int {
	return r.period + 1
}

// Compute calculates RSI with Wilder's smoothing.
func (r *RSI) Compute(bars []types.MarketData) (map[string][]float64, error) {
	if len(bars) < r.MinBars() {
		return nil, errors.NewInsufficientDataErrorf(r.MinBars(), len(bars), symbolOf(bars), "insufficient data points for RSI: required %d, got %d", r.MinBars(), len(bars))
	}

	series := RSISeries(closes(bars), r.period)

	return map[string][]float64{
		ColumnRSI:           series,
		RSIColumn(r.period): slices.Clone(series),
	}, nil
}
