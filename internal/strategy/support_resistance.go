package strategy

import (
	"fmt"
	"math"
	"slices"

	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
)

const SupportResistanceID = "support_resistance"

// SupportResistanceParams configures the long-only support/resistance strategy.
type SupportResistanceParams struct {
	SupportProximityPct    float64 `json:"support_proximity_pct" jsonschema:"default=1" validate:"gt=0"`
	ResistanceProximityPct float64 `json:"resistance_proximity_pct" jsonschema:"default=1" validate:"gt=0"`
	ATRMultiplier          float64 `json:"atr_multiplier" jsonschema:"default=2" validate:"gt=0"`
	ATRPeriod              int     `json:"atr_period" jsonschema:"default=14" validate:"gte=1"`
	LookbackPeriod         int     `json:"lookback_period" jsonschema:"default=50" validate:"gte=5"`
	NumLevels              int     `json:"num_levels" jsonschema:"default=3" validate:"gte=1"`
	MinStrength            float64 `json:"min_strength" jsonschema:"default=0.6,minimum=0,maximum=1" validate:"gte=0,lte=1"`
	ClusterTolerance       float64 `json:"cluster_tolerance" jsonschema:"default=0.005" validate:"gt=0,lt=1"`
}

func DefaultSupportResistanceParams() SupportResistanceParams {
	return SupportResistanceParams{
		SupportProximityPct:    1,
		ResistanceProximityPct: 1,
		ATRMultiplier:          2,
		ATRPeriod:              14,
		LookbackPeriod:         50,
		NumLevels:              3,
		MinStrength:            0.6,
		ClusterTolerance:       0.005,
	}
}

// SupportResistance buys near clustered 1h pivot lows and stays out near pivot highs.
// It never proposes a short. 4h and 5m tables are used for confirmation when present.
type SupportResistance struct {
	params SupportResistanceParams
}

func NewSupportResistance(params Params) (Strategy, error) {
	p, err := decodeParams(SupportResistanceID, params, DefaultSupportResistanceParams())
	if err != nil {
		return nil, err
	}

	return &SupportResistance{params: p}, nil
}

func (s *SupportResistance) Descriptor() types.StrategyDescriptor {
	return types.StrategyDescriptor{
		ID:          SupportResistanceID,
		Name:        "Support/Resistance Long Only",
		Description: "Buys near support, stays out near resistance, ATR based stop distance",
		Version:     "1.0.0",
		Timeframes:  s.RequiredTimeframes(),
		Indicators:  s.RequiredIndicators(),
		Parameters:  paramsMap(s.params),
	}
}

func (s *SupportResistance) RequiredTimeframes() []types.Timeframe {
	return []types.Timeframe{types.Timeframe1h}
}

func (s *SupportResistance) RequiredIndicators() []types.IndicatorType {
	return []types.IndicatorType{types.IndicatorTypeATR}
}

// Levels are sorted nearest first.
type Levels struct {
	Support    []float64
	Resistance []float64
}

func (s *SupportResistance) Analyze(data marketdata.Frames, currentPrice float64) types.Signal {
	if reason, missing := missingFrames(data, s.RequiredTimeframes()); missing {
		return flat(SupportResistanceID, reason)
	}

	hourly, _ := data.Get(types.Timeframe1h)
	if hourly.Len() < s.params.LookbackPeriod {
		return flat(SupportResistanceID, fmt.Sprintf("insufficient data: need %d 1h bars, have %d", s.params.LookbackPeriod, hourly.Len()))
	}

	levels := s.levels(hourly)
	atr := s.atr(hourly)
	stopDistance := atr * s.params.ATRMultiplier

	support, supportStrength, nearSupport := s.nearSupport(currentPrice, levels.Support)
	resistance, nearResistance := s.nearResistance(currentPrice, levels.Resistance)

	action := types.ActionFlat
	strength := 0.0
	reasons := []string{}

	switch {
	case nearSupport && !nearResistance:
		action = types.ActionLong
		strength = supportStrength
		reasons = append(reasons, fmt.Sprintf("price %.2f near support %.2f", currentPrice, support))

		if trendBullish(data) {
			strength = min(strength+0.15, 1)
			reasons = append(reasons, "4h trend is bullish")
		} else {
			reasons = append(reasons, "4h trend not bullish")
		}

		if fast, ok := data.Get(types.Timeframe5m); ok && fast.Len() >= s.params.LookbackPeriod {
			if s.hasNearbySupport(currentPrice, s.levels(fast).Support) {
				strength = min(strength+0.1, 1)
				reasons = append(reasons, "5m also shows nearby support")
			}
		}
	case nearResistance:
		reasons = append(reasons,
			fmt.Sprintf("price %.2f near resistance %.2f", currentPrice, resistance),
			"avoiding long entry near resistance")
	default:
		reasons = append(reasons, fmt.Sprintf("price %.2f not near key levels", currentPrice))
	}

	action, reasons = belowThreshold(action, strength, s.params.MinStrength, reasons)

	takeProfit := currentPrice * 1.03
	if len(levels.Resistance) > 0 {
		takeProfit = levels.Resistance[0]
	}

	indicators := map[string]float64{
		"current_price":      currentPrice,
		"atr":                atr,
		"stop_loss_distance": stopDistance,
		"stop_loss_price":    currentPrice - stopDistance,
		"take_profit_price":  takeProfit,
	}

	if len(levels.Support) > 0 {
		indicators["nearest_support"] = levels.Support[0]
	}

	if len(levels.Resistance) > 0 {
		indicators["nearest_resistance"] = levels.Resistance[0]
	}

	return finish(SupportResistanceID, action, strength, reasons, indicators, map[string]any{
		"position_type":     "long_only",
		"support_levels":    levels.Support,
		"resistance_levels": levels.Resistance,
	})
}

// levels finds pivot highs and lows over the lookback window, clusters them and pads
// each side to NumLevels with 2% steps away from the last close.
func (s *SupportResistance) levels(table marketdata.Table) Levels {
	p := s.params
	bars := table.Bars[len(table.Bars)-p.LookbackPeriod:]
	last := bars[len(bars)-1].Close

	var highs, lows []float64

	for i := 2; i < len(bars)-2; i++ {
		h := bars[i].High
		if h > bars[i-1].High && h > bars[i-2].High && h > bars[i+1].High && h > bars[i+2].High {
			highs = append(highs, h)
		}

		l := bars[i].Low
		if l < bars[i-1].Low && l < bars[i-2].Low && l < bars[i+1].Low && l < bars[i+2].Low {
			lows = append(lows, l)
		}
	}

	resistance := []float64{}

	for _, r := range cluster(highs, p.ClusterTolerance) {
		if r > last {
			resistance = append(resistance, r)
		}
	}

	slices.Sort(resistance)

	support := []float64{}

	for _, l := range cluster(lows, p.ClusterTolerance) {
		if l < last {
			support = append(support, l)
		}
	}

	slices.Sort(support)
	slices.Reverse(support)

	resistance = resistance[:min(len(resistance), p.NumLevels)]
	support = support[:min(len(support), p.NumLevels)]

	for len(resistance) < p.NumLevels {
		resistance = append(resistance, last*(1+0.02*float64(len(resistance)+1)))
	}

	for len(support) < p.NumLevels {
		support = append(support, last*(1-0.02*float64(len(support)+1)))
	}

	return Levels{Support: roundAll(support), Resistance: roundAll(resistance)}
}

// cluster merges sorted neighbours closer than tolerance (relative) into their mean.
func cluster(levels []float64, tolerance float64) []float64 {
	if len(levels) == 0 {
		return nil
	}

	sorted := slices.Clone(levels)
	slices.Sort(sorted)

	var out []float64

	group := []float64{sorted[0]}

	for _, level := range sorted[1:] {
		prev := group[len(group)-1]
		if math.Abs(level-prev)/prev < tolerance {
			group = append(group, level)

			continue
		}

		out = append(out, mean(group))
		group = []float64{level}
	}

	return append(out, mean(group))
}

func (s *SupportResistance) atr(table marketdata.Table) float64 {
	if v, ok := table.Value(indicator.ColumnATR, 0); ok {
		return v
	}

	v, err := indicator.ATRValue(table.Bars, s.params.ATRPeriod)
	if err != nil {
		return 0
	}

	return v
}

func (s *SupportResistance) nearSupport(price float64, support []float64) (float64, float64, bool) {
	proximity := s.params.SupportProximityPct

	for _, level := range support {
		distance := (price - level) / level * 100
		if distance >= 0 && distance <= proximity {
			return level, min(0.7+0.3*(1-distance/proximity), 1), true
		}
	}

	return 0, 0, false
}

func (s *SupportResistance) nearResistance(price float64, resistance []float64) (float64, bool) {
	proximity := s.params.ResistanceProximityPct

	for _, level := range resistance {
		distance := (level - price) / price * 100
		if distance >= 0 && distance <= proximity {
			return level, true
		}
	}

	return 0, false
}

func (s *SupportResistance) hasNearbySupport(price float64, support []float64) bool {
	for _, level := range support {
		if math.Abs((price-level)/level)*100 <= s.params.SupportProximityPct*1.5 {
			return true
		}
	}

	return false
}

// trendBullish reports close > EMA21 > EMA50 on the 4h table, falling back to
// a higher low over the last ten bars.
func trendBullish(data marketdata.Frames) bool {
	table, ok := data.Get(types.Timeframe4h)
	if !ok {
		return false
	}

	if v, ok := table.Values(0, "close", indicator.EMAColumn(21), indicator.EMAColumn(50)); ok {
		return v[0] > v[1] && v[1] > v[2]
	}

	if table.Len() < 10 {
		return false
	}

	first, _ := table.Value("low", 9)
	last, _ := table.Value("low", 0)

	return last > first
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, v := range xs {
		sum += v
	}

	return sum / float64(len(xs))
}

func roundAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = math.Round(v*100) / 100
	}

	return out
}
