package indicator

import (
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// MA indicator implements a simple moving average.
type MA struct {
	period int
}

// NewMA creates a new MA indicator with default configuration.
func NewMA() Indicator {
	return &MA{
		period: 20,
	}
}

// Name returns the name of the indicator.
func (m *MA) Name() types.IndicatorType {
	return types.IndicatorTypeMA
}

// Config configures the MA indicator. Expected parameters: period (int).
func (m *MA) Config(params ...any) error {
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

	m.period = period

	return nil
}

func (m *MA) Columns() []string {
	return []string{SMAColumn(m.period)}
}

func (m *MA) MinBars() int {
	return m.period
}

// Compute calculates the rolling average of closes.
func (m *MA) Compute(bars []types.MarketData) (map[string][]float64, error) {
	if len(bars) < m.period {
		return nil, errors.NewInsufficientDataErrorf(m.period, len(bars), symbolOf(bars), "insufficient data points for MA: required %d, got %d", m.period, len(bars))
	}

	return map[string][]float64{SMAColumn(m.period): SMASeries(closes(bars), m.period)}, nil
}
