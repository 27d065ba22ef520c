// Package marketdata supplies per-instrument, per-timeframe bar tables annotated with
// indicator columns, and the providers that build them.
package marketdata

import (
	"maps"

	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/types"
)

// Table is a time-ordered series of bars plus indicator columns aligned with the bars.
// Tables are read-only once returned by a Provider.
type Table struct {
	Instrument string
	Timeframe  types.Timeframe
	Bars       []types.MarketData
	Columns    map[string][]float64
}

// NewTable builds a table from bars with no indicator columns.
func NewTable(instrument string, timeframe types.Timeframe, bars []types.MarketData) Table {
	return Table{
		Instrument: instrument,
		Timeframe:  timeframe,
		Bars:       bars,
		Columns:    map[string][]float64{},
	}
}

// Len returns the number of bars.
func (t Table) Len() int {
	return len(t.Bars)
}

// Empty reports whether the table has no bars.
func (t Table) Empty() bool {
	return len(t.Bars) == 0
}

// Column returns a named column. OHLCV fields are available as open, high, low, close and volume.
func (t Table) Column(name string) ([]float64, bool) {
	if col, ok := t.Columns[name]; ok {
		return col, len(col) == len(t.Bars)
	}

	var pick func(types.MarketData) float64

	switch name {
	case "open":
		pick = func(b types.MarketData) float64 { return b.Open }
	case "high":
		pick = func(b types.MarketData) float64 { return b.High }
	case "low":
		pick = func(b types.MarketData) float64 { return b.Low }
	case "close":
		pick = func(b types.MarketData) float64 { return b.Close }
	case "volume":
		pick = func(b types.MarketData) float64 { return b.Volume }
	default:
		return nil, false
	}

	out := make([]float64, len(t.Bars))
	for i, b := range t.Bars {
		out[i] = pick(b)
	}

	return out, true
}

// HasColumns reports whether every named column is present.
func (t Table) HasColumns(names ...string) bool {
	for _, name := range names {
		if _, ok := t.Column(name); !ok {
			return false
		}
	}

	return true
}

// Value returns the column value ago bars before the last one (0 is the last bar).
// The second result is false when the column is missing or the value is undefined.
func (t Table) Value(name string, ago int) (float64, bool) {
	col, ok := t.Column(name)
	if !ok {
		return 0, false
	}

	return indicator.At(col, len(col)-1-ago)
}

// Values reads every named column ago bars back from the end.
// ok is false when any column is missing or its value is undefined.
func (t Table) Values(ago int, names ...string) ([]float64, bool) {
	out := make([]float64, len(names))

	for i, name := range names {
		v, ok := t.Value(name, ago)
		if !ok {
			return nil, false
		}

		out[i] = v
	}

	return out, true
}

// LastClose returns the close of the last bar.
func (t Table) LastClose() (float64, bool) {
	if t.Empty() {
		return 0, false
	}

	return t.Bars[len(t.Bars)-1].Close, true
}

// WithColumns returns a copy of the table with cols merged over existing columns.
func (t Table) WithColumns(cols map[string][]float64) Table {
	out := t
	out.Columns = maps.Clone(t.Columns)

	if out.Columns == nil {
		out.Columns = map[string][]float64{}
	}

	maps.Copy(out.Columns, cols)

	return out
}

// Frames is the market data handed to a strategy, keyed by timeframe.
type Frames map[types.Timeframe]Table

// Get returns the table for tf and whether it holds any bars.
func (f Frames) Get(tf types.Timeframe) (Table, bool) {
	t, ok := f[tf]

	return t, ok && !t.Empty()
}
