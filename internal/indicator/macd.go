package indicator

import (
	"slices"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// MACD represents the Moving Average Convergence Divergence indicator.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator with default configuration.
func NewMACD() Indicator {
	return &MACD{
		fastPeriod:   12,
		slowPeriod:   26,
		signalPeriod: 9,
	}
}

// Name returns the name of the indicator.
func (m *MACD) Name() types.IndicatorType {
	return types.IndicatorTypeMACD
}

// Config configures the MACD indicator. Expected parameters: fastPeriod (int), slowPeriod (int), signalPeriod (int).
func (m *MACD) Config(params ...any) error {
	if len(params) != 3 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 3 parameters: fastPeriod (int), slowPeriod (int), signalPeriod (int)")
	}

	periods := make([]int, 3)

	for i, p := range params {
		v, ok := p.(int)
		if !ok {
			return errors.Newf(errors.ErrCodeInvalidType, "invalid type for parameter %d, expected int", i)
		}

		if v <= 0 {
			return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", v)
		}

		periods[i] = v
	}

	if periods[0] >= periods[1] {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "fast period (%d) must be shorter than slow period (%d)", periods[0], periods[1])
	}

	m.fastPeriod, m.slowPeriod, m.signalPeriod = periods[0], periods[1], periods[2]

	return nil
}

// Columns returns the plain macd columns followed by the ones named after the periods.
func (m *MACD) Columns() []string {
	line, signal, histogram := MACDColumns(m.fastPeriod, m.slowPeriod, m.signalPeriod)

	return []string{ColumnMACD, ColumnMACDSignal, ColumnMACDHistogram, line, signal, histogram}
}

// MinBars is the slow period plus the signal warm-up.
func (m *MACD) MinBars() int {
	return m.slowPeriod + m.signalPeriod - 1
}

// Compute calculates the MACD line (fast EMA - slow EMA), its signal EMA and the histogram.
func (m *MACD) Compute(bars []types.MarketData) (map[string][]float64, error) {
	if len(bars) < m.MinBars() {
		return nil, errors.NewInsufficientDataErrorf(m.MinBars(), len(bars), symbolOf(bars), "insufficient data points for MACD: required %d, got %d", m.MinBars(), len(bars))
	}

	values := closes(bars)
	fast := EMASeries(values, m.fastPeriod)
	slow := EMASeries(values, m.slowPeriod)

	line := nanSeries(len(values))
	for i := range values {
		f, okF := At(fast, i)
		s, okS := At(slow, i)

		if okF && okS {
			line[i] = f - s
		}
	}

	signal := EMASeries(line, m.signalPeriod)

	histogram := nanSeries(len(values))
	for i := range values {
		l, okL := At(line, i)
		s, okS := At(signal, i)

		if okL && okS {
			histogram[i] = l - s
		}
	}

	lineCol, signalCol, histogramCol := MACDColumns(m.fastPeriod, m.slowPeriod, m.signalPeriod)

	return map[string][]float64{
		ColumnMACD:          line,
		ColumnMACDSignal:    signal,
		ColumnMACDHistogram: histogram,
		lineCol:             slices.Clone(line),
		signalCol:           slices.Clone(signal),
		histogramCol:        slices.Clone(histogram),
	}, nil
}
