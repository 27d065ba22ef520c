package indicator

import (
	"slices"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// EMA indicator implements Exponential Moving Average calculation for one or more periods.
type EMA struct {
	periods []int
}

// NewEMA creates a new EMA indicator with the default periods 9, 15, 20, 21, 50 and 200.
func NewEMA() Indicator {
	return &EMA{
		periods: []int{9, 15, 20, 21, 50, 200},
	}
}

// Name returns the name of the indicator.
func (e *EMA) Name() types.IndicatorType {
	return types.IndicatorTypeEMA
}

// Config configures the EMA indicator. Expected parameters: one or more periods (int).
func (e *EMA) Config(params ...any) error {
	if len(params) == 0 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects at least 1 parameter: period (int)")
	}

	periods := make([]int, 0, len(params))

	for _, p := range params {
		period, ok := p.(int)
		if !ok {
			return errors.New(errors.ErrCodeInvalidType, "invalid type for period parameter, expected int")
		}

		if period <= 0 {
			return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
		}

		if !slices.Contains(periods, period) {
			periods = append(periods, period)
		}
	}

	slices.Sort(periods)
	e.periods = periods

	return nil
}

// Columns returns ema_<period> for every configured period.
func (e *EMA) Columns() []string {
	cols := make([]string, len(e.periods))
	for i, p := range e.periods {
		cols[i] = EMAColumn(p)
	}

	return cols
}

// MinBars returns the shortest configured period. Longer periods stay NaN until they have enough bars.
func (e *EMA) MinBars() int {
	return slices.Min(e.periods)
}

// Compute calculates every configured EMA.
func (e *EMA) Compute(bars []types.MarketData) (map[string][]float64, error) {
	if len(bars) < e.MinBars() {
		return nil, errors.NewInsufficientDataErrorf(e.MinBars(), len(bars), symbolOf(bars), "insufficient data points for EMA: required %d, got %d", e.MinBars(), len(bars))
	}

	values := closes(bars)
	out := make(map[string][]float64, len(e.periods))

	for _, p := range e.periods {
		out[EMAColumn(p)] = EMASeries(values, p)
	}

	return out, nil
}

func symbolOf(bars []types.MarketData) string {
	if len(bars) == 0 {
		return ""
	}

	return bars[0].Symbol
}
