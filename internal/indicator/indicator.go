package indicator

import (
	"fmt"
	"math"

	"github.com/rxtech-lab/argo-bot/internal/types"
)

// Indicator interface defines methods that any technical indicator must implement.
// An indicator turns a bar series into one or more columns aligned with the bars.
type Indicator interface {
	// Name returns the name of the indicator
	Name() types.IndicatorType
	// Config replaces the indicator parameters
	Config(params ...any) error
	// Columns lists the column names produced by Compute
	Columns() []string
	// MinBars is the number of bars needed before the last value is defined
	MinBars() int
	// Compute returns one value per bar for every column. Values before the
	// warm-up period are NaN. Fewer than MinBars bars yields an InsufficientDataError.
	Compute(bars []types.MarketData) (map[string][]float64, error)
}

// EMAColumn is the column name used for an EMA of the given period.
func EMAColumn(period int) string {
	return fmt.Sprintf("ema_%d", period)
}

// SMAColumn is the column name used for a simple moving average of the given period.
func SMAColumn(period int) string {
	return fmt.Sprintf("sma_%d", period)
}

// RSIColumn names the RSI of the given period. The RSI indicator writes it next to the plain rsi column.
func RSIColumn(period int) string {
	return fmt.Sprintf("%s_%d", ColumnRSI, period)
}

// MACDColumns names the line, signal and histogram columns of one MACD parameter set.
// The MACD indicator writes them next to the plain macd columns.
func MACDColumns(fast, slow, signal int) (line, signalLine, histogram string) {
	suffix := fmt.Sprintf("_%d_%d_%d", fast, slow, signal)

	return ColumnMACD + suffix, ColumnMACDSignal + suffix, ColumnMACDHistogram + suffix
}

const (
	ColumnMACD          = "macd"
	ColumnMACDSignal    = "macd_signal"
	ColumnMACDHistogram = "macd_histogram"
	ColumnRSI           = "rsi"
	ColumnATR           = "atr"
	ColumnBBUpper       = "bb_upper"
	ColumnBBMiddle      = "bb_middle"
	ColumnBBLower       = "bb_lower"
)

func closes(bars []types.MarketData) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}

	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}
