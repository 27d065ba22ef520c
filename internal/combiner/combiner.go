// Package combiner implements the default multi-timeframe signal: each timeframe is scored
// on trend, momentum and RSI, and the scores are blended with fixed horizon weights.
package combiner

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
)

// ID is the descriptor id the combiner reports when used as a strategy.
const ID = "signal_combiner"

// Point allocation per timeframe.
const (
	trendPoints    = 0.2
	anchorPoints   = 0.2
	crossPoints    = 0.3
	macdSidePoints = 0.2
	rsiRangePoints = 0.3
	rsiZonePoints  = 0.2
)

// DecisionThreshold is the blended score a side must exceed to produce a signal.
const DecisionThreshold = 0.5

const weightTolerance = 1e-9

// Config describes which timeframe serves each horizon and how much it weighs.
type Config struct {
	Horizons map[types.Horizon]types.Timeframe
	Weights  map[types.Horizon]float64
	// TrendPeriods are EMA periods that must be strictly ordered for a trend, fastest first
	TrendPeriods []int
	// AnchorPeriod is the EMA price must sit beyond for the full trend score. Zero disables it.
	AnchorPeriod int
	Oversold     float64
	Overbought   float64
}

// DefaultConfig weighs 4h 40%, 1h 30% and 5m 30%.
func DefaultConfig() Config {
	return Config{
		Horizons: map[types.Horizon]types.Timeframe{
			types.HorizonShort:  types.Timeframe5m,
			types.HorizonMedium: types.Timeframe1h,
			types.HorizonLong:   types.Timeframe4h,
		},
		Weights: map[types.Horizon]float64{
			types.HorizonShort:  0.3,
			types.HorizonMedium: 0.3,
			types.HorizonLong:   0.4,
		},
		TrendPeriods: []int{9, 21},
		AnchorPeriod: 200,
		Oversold:     30,
		Overbought:   70,
	}
}

// Combiner blends per-timeframe scores. It satisfies the strategy contract so it can be
// registered as an account's default strategy.
type Combiner struct {
	config     Config
	timeframes []types.Timeframe
	weights    map[types.Timeframe]float64
}

// New validates the configuration. Weights must cover only mapped horizons and sum to 1.
func New(config Config) (*Combiner, error) {
	if len(config.Weights) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidWeights, "combiner weights are empty")
	}

	if len(config.TrendPeriods) < 2 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "combiner needs at least two trend periods")
	}

	if config.Oversold >= config.Overbought {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "oversold %.1f must be below overbought %.1f", config.Oversold, config.Overbought)
	}

	sum := 0.0
	weights := make(map[types.Timeframe]float64, len(config.Weights))

	for horizon, w := range config.Weights {
		if w < 0 || math.IsNaN(w) {
			return nil, errors.Newf(errors.ErrCodeInvalidWeights, "weight for %s must be a non-negative number", horizon)
		}

		tf, ok := config.Horizons[horizon]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidWeights, "weight for %s has no timeframe", horizon)
		}

		if _, err := types.ParseTimeframe(string(tf)); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidWeights, err, "horizon %s", horizon)
		}

		weights[tf] += w
		sum += w
	}

	if math.Abs(sum-1) > weightTolerance {
		return nil, errors.Newf(errors.ErrCodeInvalidWeights, "combiner weights sum to %v, want 1", sum)
	}

	timeframes := slices.SortedFunc(maps.Keys(weights), func(a, b types.Timeframe) int {
		return cmp.Compare(a.Duration(), b.Duration())
	})

	return &Combiner{config: config, timeframes: timeframes, weights: weights}, nil
}

// Decide applies the decision rule to blended scores. Ties are flat.
func Decide(bullish, bearish float64) (types.Action, float64) {
	switch {
	case bullish > DecisionThreshold && bullish > bearish:
		return types.ActionLong, bullish
	case bearish > DecisionThreshold && bearish > bullish:
		return types.ActionShort, bearish
	default:
		return types.ActionFlat, 0
	}
}

// Decide is the method form of the package-level rule.
func (c *Combiner) Decide(bullish, bearish float64) (types.Action, float64) {
	return Decide(bullish, bearish)
}

// Score is the outcome for one timeframe. At most one of Bullish and Bearish is non-zero.
type Score struct {
	Timeframe types.Timeframe
	Trend     types.Action
	Bullish   float64
	Bearish   float64
	Reasons   []string
}

// ScoreTimeframe classifies trend, momentum and RSI on one table.
// A table without the needed columns scores zero on both sides.
func (c *Combiner) ScoreTimeframe(table marketdata.Table) Score {
	score := Score{Timeframe: table.Timeframe, Trend: types.ActionFlat}

	trend, ok := c.trend(table)
	if !ok {
		score.Reasons = append(score.Reasons, fmt.Sprintf("%s: trend columns unavailable", table.Timeframe))

		return score
	}

	score.Trend = trend
	if trend == types.ActionFlat {
		score.Reasons = append(score.Reasons, fmt.Sprintf("%s: no moving-average alignment", table.Timeframe))

		return score
	}

	points := trendPoints
	score.Reasons = append(score.Reasons, fmt.Sprintf("%s: %s moving-average alignment", table.Timeframe, trend))

	if c.config.AnchorPeriod > 0 {
		if v, ok := table.Values(0, "close", indicator.EMAColumn(c.config.AnchorPeriod)); ok {
			if (trend == types.ActionLong && v[0] > v[1]) || (trend == types.ActionShort && v[0] < v[1]) {
				points += anchorPoints
			}
		}
	}

	points += c.momentum(table, trend, &score)
	points += c.oscillator(table, trend, &score)
	points = min(points, 1)

	if trend == types.ActionLong {
		score.Bullish = points
	} else {
		score.Bearish = points
	}

	return score
}

func (c *Combiner) trend(table marketdata.Table) (types.Action, bool) {
	cols := make([]string, len(c.config.TrendPeriods))
	for i, p := range c.config.TrendPeriods {
		cols[i] = indicator.EMAColumn(p)
	}

	v, ok := table.Values(0, cols...)
	if !ok {
		return types.ActionFlat, false
	}

	up, down := true, true

	for i := 1; i < len(v); i++ {
		up = up && v[i-1] > v[i]
		down = down && v[i-1] < v[i]
	}

	switch {
	case up:
		return types.ActionLong, true
	case down:
		return types.ActionShort, true
	default:
		return types.ActionFlat, true
	}
}

func (c *Combiner) momentum(table marketdata.Table, trend types.Action, score *Score) float64 {
	now, ok := table.Values(0, indicator.ColumnMACD, indicator.ColumnMACDSignal)
	if !ok {
		return 0
	}

	macd, signalLine := now[0], now[1]

	if prev, ok := table.Values(1, indicator.ColumnMACD, indicator.ColumnMACDSignal); ok {
		crossUp := prev[0] <= prev[1] && macd > signalLine
		crossDown := prev[0] >= prev[1] && macd < signalLine

		if (trend == types.ActionLong && crossUp) || (trend == types.ActionShort && crossDown) {
			score.Reasons = append(score.Reasons, fmt.Sprintf("%s: MACD crossover confirms", table.Timeframe))

			return crossPoints
		}
	}

	if (trend == types.ActionLong && macd > signalLine) || (trend == types.ActionShort && macd < signalLine) {
		score.Reasons = append(score.Reasons, fmt.Sprintf("%s: MACD on trend side", table.Timeframe))

		return macdSidePoints
	}

	return 0
}

func (c *Combiner) oscillator(table marketdata.Table, trend types.Action, score *Score) float64 {
	rsi, ok := table.Value(indicator.ColumnRSI, 0)
	if !ok {
		return 0
	}

	switch {
	case rsi > c.config.Oversold && rsi < c.config.Overbought:
		score.Reasons = append(score.Reasons, fmt.Sprintf("%s: RSI %.1f has room", table.Timeframe, rsi))

		return rsiRangePoints
	case trend == types.ActionLong && rsi <= c.config.Oversold:
		score.Reasons = append(score.Reasons, fmt.Sprintf("%s: RSI %.1f oversold in uptrend", table.Timeframe, rsi))

		return rsiZonePoints
	case trend == types.ActionShort && rsi >= c.config.Overbought:
		score.Reasons = append(score.Reasons, fmt.Sprintf("%s: RSI %.1f overbought in downtrend", table.Timeframe, rsi))

		return rsiZonePoints
	}

	return 0
}

// Totals blends the per-timeframe scores with the configured weights.
func (c *Combiner) Totals(data marketdata.Frames) (bullish, bearish float64, scores []Score) {
	for _, tf := range c.timeframes {
		table, ok := data.Get(tf)
		if !ok {
			continue
		}

		score := c.ScoreTimeframe(table)
		scores = append(scores, score)
		bullish += c.weights[tf] * score.Bullish
		bearish += c.weights[tf] * score.Bearish
	}

	return bullish, bearish, scores
}

func (c *Combiner) Descriptor() types.StrategyDescriptor {
	weights := map[string]any{}
	for tf, w := range c.weights {
		weights[string(tf)] = w
	}

	return types.StrategyDescriptor{
		ID:          ID,
		Name:        "Signal Combiner",
		Description: "Weighted multi-timeframe blend of trend, MACD and RSI scores",
		Version:     "1.0.0",
		Timeframes:  c.RequiredTimeframes(),
		Indicators:  c.RequiredIndicators(),
		Parameters: map[string]any{
			"weights":       weights,
			"trend_periods": slices.Clone(c.config.TrendPeriods),
			"anchor_period": c.config.AnchorPeriod,
		},
	}
}

func (c *Combiner) RequiredTimeframes() []types.Timeframe {
	return slices.Clone(c.timeframes)
}

func (c *Combiner) RequiredIndicators() []types.IndicatorType {
	return []types.IndicatorType{types.IndicatorTypeEMA, types.IndicatorTypeMACD, types.IndicatorTypeRSI}
}

// Analyze scores every configured timeframe and applies Decide.
func (c *Combiner) Analyze(data marketdata.Frames, currentPrice float64) types.Signal {
	bullish, bearish, scores := c.Totals(data)
	if len(scores) == 0 {
		signal := types.NewFlatSignal("insufficient data: no configured timeframe available")
		signal.Metadata["strategy"] = ID

		return signal
	}

	action, strength := Decide(bullish, bearish)

	reasons := []string{fmt.Sprintf("bullish %.2f, bearish %.2f", bullish, bearish)}
	trends := map[string]any{}

	for _, s := range scores {
		reasons = append(reasons, s.Reasons...)
		trends[string(s.Timeframe)] = string(s.Trend)
	}

	signal := types.NewSignal(action, strength, reasons, map[string]float64{
		"bullish_score": bullish,
		"bearish_score": bearish,
		"current_price": currentPrice,
	})
	signal.Metadata["strategy"] = ID
	signal.Metadata["timeframe_trends"] = trends

	return signal
}
