package strategy

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
)

const CombinedID = "combined"

// CombinedParams configures the combined multi-indicator strategy.
type CombinedParams struct {
	MinStrength float64            `json:"min_signal_strength" jsonschema:"default=0.7,minimum=0,maximum=1" validate:"gte=0,lte=1"`
	Weights     map[string]float64 `json:"weights" jsonschema:"description=Per-timeframe vote weight" validate:"required,min=1"`
}

func DefaultCombinedParams() CombinedParams {
	return CombinedParams{
		MinStrength: 0.7,
		Weights:     map[string]float64{"4h": 3, "1h": 2, "5m": 1},
	}
}

const combinedVoteThreshold = 0.5

// Combined votes EMA ordering, MACD side and RSI zone on every timeframe,
// then aggregates the per-timeframe trends with weights.
type Combined struct {
	params     CombinedParams
	weights    map[types.Timeframe]float64
	timeframes []types.Timeframe
}

func NewCombined(params Params) (Strategy, error) {
	p, err := decodeParams(CombinedID, params, DefaultCombinedParams())
	if err != nil {
		return nil, err
	}

	weights, err := timeframeWeights(p.Weights)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStrategyConfigError, "combined: invalid weights", err)
	}

	timeframes := make([]types.Timeframe, 0, len(weights))

	for tf, w := range weights {
		if w > 0 {
			timeframes = append(timeframes, tf)
		}
	}

	if len(timeframes) == 0 {
		return nil, errors.New(errors.ErrCodeStrategyConfigError, "combined: at least one timeframe needs a positive weight")
	}

	slices.SortFunc(timeframes, func(a, b types.Timeframe) int {
		return cmp.Compare(a.Duration(), b.Duration())
	})

	return &Combined{params: p, weights: weights, timeframes: timeframes}, nil
}

func (s *Combined) Descriptor() types.StrategyDescriptor {
	return types.StrategyDescriptor{
		ID:          CombinedID,
		Name:        "Combined Multi-Indicator",
		Description: "Combines EMA, MACD and RSI signals across multiple timeframes",
		Version:     "1.0.0",
		Timeframes:  s.RequiredTimeframes(),
		Indicators:  s.RequiredIndicators(),
		Parameters:  paramsMap(s.params),
	}
}

func (s *Combined) RequiredTimeframes() []types.Timeframe {
	return slices.Clone(s.timeframes)
}

func (s *Combined) RequiredIndicators() []types.IndicatorType {
	return []types.IndicatorType{types.IndicatorTypeEMA, types.IndicatorTypeMACD, types.IndicatorTypeRSI}
}

func (s *Combined) RequiredColumns() []string {
	return []string{columnFast, columnSlow, indicator.ColumnMACD, indicator.ColumnMACDSignal, indicator.ColumnMACDHistogram, indicator.ColumnRSI}
}

type timeframeTrend struct {
	action   types.Action
	strength float64
	rsi      float64
	emaBull  bool
	macdBull bool
}

func (s *Combined) Analyze(data marketdata.Frames, currentPrice float64) types.Signal {
	if reason, missing := missingFrames(data, s.timeframes); missing {
		return flat(CombinedID, reason)
	}

	var bull, bear, total float64

	reasons := []string{}
	trends := map[string]any{}

	for _, tf := range s.timeframes {
		table, _ := data.Get(tf)

		trend, ok := analyzeTimeframe(table, currentPrice)
		if !ok {
			continue
		}

		weight := s.weights[tf]
		total += weight
		trends[string(tf)] = string(trend.action)

		switch trend.action {
		case types.ActionLong:
			bull += trend.strength * weight
		case types.ActionShort:
			bear += trend.strength * weight
		default:
			continue
		}

		reasons = append(reasons, fmt.Sprintf("%s: %s (EMA %s, MACD %s, RSI %.1f)",
			tf, trend.action, bullishWord(trend.emaBull), bullishWord(trend.macdBull), trend.rsi))
	}

	if total == 0 {
		return flat(CombinedID, "no valid timeframe data")
	}

	bull /= total
	bear /= total

	action, strength := types.ActionFlat, max(bull, bear)

	switch {
	case bull > bear && bull > combinedVoteThreshold:
		action = types.ActionLong
		reasons = slices.Insert(reasons, 0, fmt.Sprintf("overall bullish (strength %.2f)", bull))
	case bear > bull && bear > combinedVoteThreshold:
		action = types.ActionShort
		reasons = slices.Insert(reasons, 0, fmt.Sprintf("overall bearish (strength %.2f)", bear))
	default:
		reasons = slices.Insert(reasons, 0, "no strong trend detected")
	}

	action, reasons = belowThreshold(action, strength, s.params.MinStrength, reasons)

	indicators := map[string]float64{"current_price": currentPrice}
	if primary, ok := data.Get(s.timeframes[0]); ok {
		for _, col := range []string{columnFast, columnSlow, indicator.ColumnMACD, indicator.ColumnMACDSignal, indicator.ColumnRSI} {
			if v, ok := primary.Value(col, 0); ok {
				indicators[col] = v
			}
		}
	}

	return finish(CombinedID, action, strength, reasons, indicators, map[string]any{"timeframe_trends": trends})
}

// analyzeTimeframe needs two of three agreeing indicators to call a trend.
func analyzeTimeframe(table marketdata.Table, price float64) (timeframeTrend, bool) {
	v, ok := table.Values(0, columnFast, columnSlow, indicator.ColumnMACD, indicator.ColumnMACDSignal, indicator.ColumnMACDHistogram, indicator.ColumnRSI)
	if !ok {
		return timeframeTrend{}, false
	}

	fast, slow, macd, signalLine, hist, rsi := v[0], v[1], v[2], v[3], v[4], v[5]

	emaBull := fast > slow
	emaBear := fast < slow
	macdBull := macd > signalLine && hist > 0
	macdBear := macd < signalLine && hist < 0
	rsiBull := rsi < 30 || (rsi < 50 && emaBull)
	rsiBear := rsi > 70 || (rsi > 50 && emaBear)

	bullVotes := countTrue(emaBull, macdBull, rsiBull)
	bearVotes := countTrue(emaBear, macdBear, rsiBear)
	emaStrength := trendStrength(fast, slow, price)

	out := timeframeTrend{action: types.ActionFlat, rsi: rsi, emaBull: emaBull, macdBull: macdBull}

	switch {
	case bullVotes >= 2:
		out.action = types.ActionLong
		out.strength = min(float64(bullVotes)/3*(1+emaStrength)/2, 1)
	case bearVotes >= 2:
		out.action = types.ActionShort
		out.strength = min(float64(bearVotes)/3*(1+emaStrength)/2, 1)
	}

	return out, true
}

func countTrue(flags ...bool) int {
	n := 0

	for _, f := range flags {
		if f {
			n++
		}
	}

	return n
}

func bullishWord(b bool) string {
	if b {
		return "bullish"
	}

	return "bearish"
}
