package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/types"
)

// BarGenerator produces synthetic OHLCV bars for tests.
type BarGenerator struct {
	rng *rand.Rand
}

// NewBarGenerator creates a generator. A fixed seed gives reproducible bars.
func NewBarGenerator(seed int64) *BarGenerator {
	return &BarGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// BarConfig configures a generated series.
type BarConfig struct {
	Instrument string
	Timeframe  types.Timeframe
	// End is the open time of the last bar
	End   time.Time
	Count int
	// StartPrice is the open of the first bar
	StartPrice float64
	// Volatility is the per-bar standard deviation as a fraction of price
	Volatility float64
	// Drift is the per-bar return added to every bar
	Drift      float64
	VolumeBase float64
}

func DefaultBarConfig() BarConfig {
	return BarConfig{
		Instrument: "BTCUSDT",
		Timeframe:  types.Timeframe1h,
		End:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Count:      250,
		StartPrice: 50000,
		Volatility: 0.002,
		Drift:      0,
		VolumeBase: 100,
	}
}

// Generate walks a geometric Brownian motion, oldest bar first.
func (g *BarGenerator) Generate(config BarConfig) []types.MarketData {
	bars := make([]types.MarketData, config.Count)
	step := config.Timeframe.Duration()
	start := config.End.Add(-step * time.Duration(config.Count-1))
	price := config.StartPrice

	for i := range bars {
		open := price

		// Box-Muller
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(1-u1)) * math.Cos(2*math.Pi*u2)

		closePrice := open * (1 + config.Volatility*z + config.Drift)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		wick := config.Volatility * open * 0.5
		high := math.Max(open, closePrice) + g.rng.Float64()*wick
		low := math.Min(open, closePrice) - g.rng.Float64()*wick

		if low <= 0 {
			low = math.Min(open, closePrice) * 0.99
		}

		bars[i] = types.MarketData{
			Symbol: config.Instrument,
			Time:   start.Add(step * time.Duration(i)),
			Open:   round(open, 4),
			High:   round(high, 4),
			Low:    round(low, 4),
			Close:  round(closePrice, 4),
			Volume: round(config.VolumeBase*(0.7+g.rng.Float64()*0.6), 2),
		}

		price = closePrice
	}

	return bars
}

// Ramp returns count bars whose closes move linearly from first to last with no noise.
// Each bar opens at the previous close and has a wick of 0.1% on both sides.
func Ramp(instrument string, timeframe types.Timeframe, end time.Time, count int, first, last float64) []types.MarketData {
	bars := make([]types.MarketData, count)
	step := timeframe.Duration()
	start := end.Add(-step * time.Duration(count-1))

	delta := 0.0
	if count > 1 {
		delta = (last - first) / float64(count-1)
	}

	prev := first

	for i := range bars {
		closePrice := first + delta*float64(i)

		bars[i] = types.MarketData{
			Symbol: instrument,
			Time:   start.Add(step * time.Duration(i)),
			Open:   prev,
			High:   math.Max(prev, closePrice) * 1.001,
			Low:    math.Min(prev, closePrice) * 0.999,
			Close:  closePrice,
			Volume: 100,
		}

		prev = closePrice
	}

	return bars
}

func round(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
