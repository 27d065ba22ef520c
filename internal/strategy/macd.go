package strategy

import (
	"slices"

	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
)

const MACDMomentumID = "macd_momentum"

// MACDMomentumParams configures the MACD momentum strategy.
// The periods select which MACD columns are read; the indicator layer must be configured to produce them.
type MACDMomentumParams struct {
	FastPeriod       int     `json:"fast_period" jsonschema:"default=12" validate:"gte=1"`
	SlowPeriod       int     `json:"slow_period" jsonschema:"default=26" validate:"gtfield=FastPeriod"`
	SignalPeriod     int     `json:"signal_period" jsonschema:"default=9" validate:"gte=1"`
	MinStrength      float64 `json:"min_strength" jsonschema:"default=0.65,minimum=0,maximum=1" validate:"gte=0,lte=1"`
	ConfirmWithTrend bool    `json:"confirm_with_trend" jsonschema:"default=true"`
}

func DefaultMACDMomentumParams() MACDMomentumParams {
	return MACDMomentumParams{
		FastPeriod:       12,
		SlowPeriod:       26,
		SignalPeriod:     9,
		MinStrength:      0.65,
		ConfirmWithTrend: true,
	}
}

// MACDMomentum trades MACD crossovers and histogram momentum on 5m bars,
// confirmed or discounted by the 1h trend.
type MACDMomentum struct {
	params  MACDMomentumParams
	columns []string
}

func NewMACDMomentum(params Params) (Strategy, error) {
	p, err := decodeParams(MACDMomentumID, params, DefaultMACDMomentumParams())
	if err != nil {
		return nil, err
	}

	line, signal, histogram := indicator.MACDColumns(p.FastPeriod, p.SlowPeriod, p.SignalPeriod)

	return &MACDMomentum{params: p, columns: []string{line, signal, histogram}}, nil
}

func (s *MACDMomentum) Descriptor() types.StrategyDescriptor {
	return types.StrategyDescriptor{
		ID:          MACDMomentumID,
		Name:        "MACD Momentum",
		Description: "Trades MACD crossovers and histogram strength with 1h trend confirmation",
		Version:     "1.0.0",
		Timeframes:  s.RequiredTimeframes(),
		Indicators:  s.RequiredIndicators(),
		Parameters:  paramsMap(s.params),
	}
}

func (s *MACDMomentum) RequiredTimeframes() []types.Timeframe {
	return []types.Timeframe{types.Timeframe5m, types.Timeframe1h}
}

func (s *MACDMomentum) RequiredIndicators() []types.IndicatorType {
	return []types.IndicatorType{types.IndicatorTypeMACD, types.IndicatorTypeEMA}
}

// RequiredColumns lists the MACD columns of the configured periods, plus the 1h trend EMAs when
// trend confirmation is on.
func (s *MACDMomentum) RequiredColumns() []string {
	cols := slices.Clone(s.columns)
	if s.params.ConfirmWithTrend {
		cols = append(cols, columnFast, columnSlow)
	}

	return cols
}

func (s *MACDMomentum) Analyze(data marketdata.Frames, currentPrice float64) types.Signal {
	if reason, missing := missingFrames(data, s.RequiredTimeframes()); missing {
		return flat(MACDMomentumID, reason)
	}

	primary, _ := data.Get(types.Timeframe5m)

	now, ok := primary.Values(0, s.columns...)
	if !ok {
		return flat(MACDMomentumID, "insufficient data: 5m MACD not available")
	}

	prev, ok := primary.Values(1, s.columns...)
	if !ok {
		return flat(MACDMomentumID, "insufficient data: need two 5m MACD values")
	}

	macd, signalLine, hist := now[0], now[1], now[2]
	prevMACD, prevSignal, prevHist := prev[0], prev[1], prev[2]

	growing := hist > prevHist
	action := types.ActionFlat
	strength := 0.0
	reasons := []string{}

	switch {
	case macd > signalLine && prevMACD <= prevSignal:
		action, strength = types.ActionLong, 0.8
		reasons = append(reasons, "5m: MACD bullish crossover")
	case hist > 0 && growing:
		action, strength = types.ActionLong, 0.6
		reasons = append(reasons, "5m: MACD histogram positive and growing")
	case macd > signalLine && hist > 0:
		action, strength = types.ActionLong, 0.5
		reasons = append(reasons, "5m: MACD above signal with positive histogram")
	}

	// bearish readings take precedence when both sides match
	switch {
	case macd < signalLine && prevMACD >= prevSignal:
		action, strength = types.ActionShort, 0.8
		reasons = append(reasons, "5m: MACD bearish crossover")
	case hist < 0 && !growing:
		action, strength = types.ActionShort, 0.6
		reasons = append(reasons, "5m: MACD histogram negative and falling")
	case macd < signalLine && hist < 0:
		action, strength = types.ActionShort, 0.5
		reasons = append(reasons, "5m: MACD below signal with negative histogram")
	}

	if s.params.ConfirmWithTrend && action != types.ActionFlat {
		strength, reasons = s.confirm(data, action, strength, reasons)
	}

	strength = min(strength, 1)
	action, reasons = belowThreshold(action, strength, s.params.MinStrength, reasons)

	indicators := map[string]float64{
		"macd":           macd,
		"macd_signal":    signalLine,
		"macd_histogram": hist,
		"current_price":  currentPrice,
	}

	return finish(MACDMomentumID, action, strength, reasons, indicators, map[string]any{"histogram_growing": growing})
}

func (s *MACDMomentum) confirm(data marketdata.Frames, action types.Action, strength float64, reasons []string) (float64, []string) {
	trend, ok := data.Get(types.Timeframe1h)
	if !ok {
		return strength, reasons
	}

	v, ok := trend.Values(0, columnFast, columnSlow, s.columns[0], s.columns[1])
	if !ok {
		return strength, append(reasons, "1h: trend confirmation unavailable")
	}

	bullish := v[0] > v[1] && v[2] > v[3]
	bearish := v[0] < v[1] && v[2] < v[3]

	switch {
	case action == types.ActionLong && bullish:
		return strength + 0.2, append(reasons, "1h: trend confirmation (bullish)")
	case action == types.ActionShort && bearish:
		return strength + 0.2, append(reasons, "1h: trend confirmation (bearish)")
	case action == types.ActionLong && bearish:
		return strength * 0.5, append(reasons, "1h: bearish trend conflicts")
	case action == types.ActionShort && bullish:
		return strength * 0.5, append(reasons, "1h: bullish trend conflicts")
	}

	return strength, reasons
}
