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

const EMACrossoverID = "ema_crossover"

// EMACrossoverParams configures the EMA crossover strategy.
type EMACrossoverParams struct {
	FastPeriod  int                `json:"fast_period" jsonschema:"default=9,minimum=1" validate:"gte=1"`
	SlowPeriod  int                `json:"slow_period" jsonschema:"default=21,minimum=2" validate:"gtfield=FastPeriod"`
	MinStrength float64            `json:"min_strength" jsonschema:"default=0.6,minimum=0,maximum=1" validate:"gte=0,lte=1"`
	Weights     map[string]float64 `json:"weights" jsonschema:"description=Per-timeframe vote weight" validate:"required,min=1"`
}

// DefaultEMACrossoverParams returns the built-in defaults.
func DefaultEMACrossoverParams() EMACrossoverParams {
	return EMACrossoverParams{
		FastPeriod:  9,
		SlowPeriod:  21,
		MinStrength: 0.6,
		Weights:     map[string]float64{"4h": 3, "1h": 2, "5m": 1},
	}
}

// emaVoteThreshold is the normalized score a side needs before it can win the vote.
const emaVoteThreshold = 0.3

// EMACrossover follows fast/slow EMA crossovers across several timeframes.
// Longer timeframes carry more weight in the vote.
type EMACrossover struct {
	params     EMACrossoverParams
	weights    map[types.Timeframe]float64
	timeframes []types.Timeframe
	fastCol    string
	slowCol    string
}

// NewEMACrossover builds the strategy from params merged over the defaults.
func NewEMACrossover(params Params) (Strategy, error) {
	p, err := decodeParams(EMACrossoverID, params, DefaultEMACrossoverParams())
	if err != nil {
		return nil, err
	}

	weights, err := timeframeWeights(p.Weights)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStrategyConfigError, "ema_crossover: invalid weights", err)
	}

	timeframes := make([]types.Timeframe, 0, len(weights))
	for tf, w := range weights {
		if w > 0 {
			timeframes = append(timeframes, tf)
		}
	}

	if len(timeframes) == 0 {
		return nil, errors.New(errors.ErrCodeStrategyConfigError, "ema_crossover: at least one timeframe needs a positive weight")
	}

	slices.SortFunc(timeframes, func(a, b types.Timeframe) int {
		return cmp.Compare(a.Duration(), b.Duration())
	})

	return &EMACrossover{
		params:     p,
		weights:    weights,
		timeframes: timeframes,
		fastCol:    indicator.EMAColumn(p.FastPeriod),
		slowCol:    indicator.EMAColumn(p.SlowPeriod),
	}, nil
}

func (s *EMACrossover) Descriptor() types.StrategyDescriptor {
	return types.StrategyDescriptor{
		ID:          EMACrossoverID,
		Name:        "EMA Crossover",
		Description: "Trend following on fast/slow EMA crossovers with a weighted multi-timeframe vote",
		Version:     "1.0.0",
		Timeframes:  s.RequiredTimeframes(),
		Indicators:  s.RequiredIndicators(),
		Parameters:  paramsMap(s.params),
	}
}

func (s *EMACrossover) RequiredTimeframes() []types.Timeframe {
	return slices.Clone(s.timeframes)
}

func (s *EMACrossover) RequiredIndicators() []types.IndicatorType {
	return []types.IndicatorType{types.IndicatorTypeEMA}
}

func (s *EMACrossover) RequiredColumns() []string {
	return []string{s.fastCol, s.slowCol}
}

func (s *EMACrossover) Analyze(data marketdata.Frames, currentPrice float64) types.Signal {
	if reason, missing := missingFrames(data, s.timeframes); missing {
		return flat(EMACrossoverID, reason)
	}

	var bull, bear, total float64

	reasons := []string{}
	votes := map[string]any{}

	for _, tf := range s.timeframes {
		table, _ := data.Get(tf)

		now, ok := table.Values(0, s.fastCol, s.slowCol)
		if !ok {
			continue
		}

		prev, ok := table.Values(1, s.fastCol, s.slowCol)
		if !ok {
			continue
		}

		fast, slow := now[0], now[1]
		strength := trendStrength(fast, slow, currentPrice)
		weight := s.weights[tf]
		total += weight

		switch {
		case fast > slow && prev[0] <= prev[1]:
			strength = min(strength+0.3, 1)
			bull += strength * weight
			reasons = append(reasons, fmt.Sprintf("%s: bullish EMA crossover (EMA%d crossed above EMA%d)", tf, s.params.FastPeriod, s.params.SlowPeriod))
			votes[string(tf)] = string(types.ActionLong)
		case fast < slow && prev[0] >= prev[1]:
			strength = min(strength+0.3, 1)
			bear += strength * weight
			reasons = append(reasons, fmt.Sprintf("%s: bearish EMA crossover (EMA%d crossed below EMA%d)", tf, s.params.FastPeriod, s.params.SlowPeriod))
			votes[string(tf)] = string(types.ActionShort)
		case fast > slow:
			bull += strength * weight
			reasons = append(reasons, fmt.Sprintf("%s: bullish trend (strength %.2f)", tf, strength))
			votes[string(tf)] = string(types.ActionLong)
		case fast < slow:
			bear += strength * weight
			reasons = append(reasons, fmt.Sprintf("%s: bearish trend (strength %.2f)", tf, strength))
			votes[string(tf)] = string(types.ActionShort)
		default:
			votes[string(tf)] = string(types.ActionFlat)
		}
	}

	if total == 0 {
		return flat(EMACrossoverID, fmt.Sprintf("insufficient data: %s/%s not available", s.fastCol, s.slowCol))
	}

	bull /= total
	bear /= total

	action, strength := types.ActionFlat, max(bull, bear)

	switch {
	case bull > bear && bull > emaVoteThreshold:
		action = types.ActionLong
	case bear > bull && bear > emaVoteThreshold:
		action = types.ActionShort
	}

	action, reasons = belowThreshold(action, strength, s.params.MinStrength, reasons)

	indicators := map[string]float64{"current_price": currentPrice, "bullish_score": bull, "bearish_score": bear}
	if primary, ok := data.Get(s.timeframes[0]); ok {
		if v, ok := primary.Value(s.fastCol, 0); ok {
			indicators["ema_fast"] = v
		}

		if v, ok := primary.Value(s.slowCol, 0); ok {
			indicators["ema_slow"] = v
		}
	}

	return finish(EMACrossoverID, action, strength, reasons, indicators, map[string]any{"timeframe_votes": votes})
}
