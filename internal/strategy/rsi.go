package strategy

import (
	"fmt"
	"sync"

	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
)

const RSIReversionID = "rsi_reversion"

// RSIReversionParams configures the RSI mean reversion strategy.
type RSIReversionParams struct {
	Period            int     `json:"period" jsonschema:"default=14" validate:"gte=2"`
	OversoldLevel     float64 `json:"oversold_level" jsonschema:"default=30" validate:"gt=0,ltfield=OverboughtLevel"`
	OverboughtLevel   float64 `json:"overbought_level" jsonschema:"default=70" validate:"lt=100"`
	ExtremeOversold   float64 `json:"extreme_oversold" jsonschema:"default=20" validate:"gte=0,ltefield=OversoldLevel"`
	ExtremeOverbought float64 `json:"extreme_overbought" jsonschema:"default=80" validate:"lte=100,gtefield=OverboughtLevel"`
	MinStrength       float64 `json:"min_strength" jsonschema:"default=0.6,minimum=0,maximum=1" validate:"gte=0,lte=1"`
	UseDivergence     bool    `json:"use_divergence" jsonschema:"default=false"`
	// Hysteresis keeps a signal alive until RSI moves this far back out of its zone
	Hysteresis float64 `json:"hysteresis" jsonschema:"default=5,minimum=0" validate:"gte=0,lt=50"`
}

func DefaultRSIReversionParams() RSIReversionParams {
	return RSIReversionParams{
		Period:            14,
		OversoldLevel:     30,
		OverboughtLevel:   70,
		ExtremeOversold:   20,
		ExtremeOverbought: 80,
		MinStrength:       0.6,
		UseDivergence:     false,
		Hysteresis:        5,
	}
}

const divergenceWindow = 10

// RSIReversion fades oversold and overbought RSI readings.
// It remembers the last zone it signalled so RSI hovering at a threshold does not flap the signal.
type RSIReversion struct {
	params RSIReversionParams
	column string

	mu   sync.Mutex
	last types.Action
}

func NewRSIReversion(params Params) (Strategy, error) {
	p, err := decodeParams(RSIReversionID, params, DefaultRSIReversionParams())
	if err != nil {
		return nil, err
	}

	return &RSIReversion{params: p, column: indicator.RSIColumn(p.Period), last: types.ActionFlat}, nil
}

func (s *RSIReversion) Descriptor() types.StrategyDescriptor {
	return types.StrategyDescriptor{
		ID:          RSIReversionID,
		Name:        "RSI Mean Reversion",
		Description: "Trades RSI oversold/overbought conditions with 1h confirmation",
		Version:     "1.0.0",
		Timeframes:  s.RequiredTimeframes(),
		Indicators:  s.RequiredIndicators(),
		Parameters:  paramsMap(s.params),
		Stateful:    true,
	}
}

func (s *RSIReversion) RequiredTimeframes() []types.Timeframe {
	return []types.Timeframe{types.Timeframe5m, types.Timeframe1h}
}

func (s *RSIReversion) RequiredIndicators() []types.IndicatorType {
	return []types.IndicatorType{types.IndicatorTypeRSI}
}

// RequiredColumns is the RSI of the configured period.
func (s *RSIReversion) RequiredColumns() []string {
	return []string{s.column}
}

// Reset forgets the remembered zone.
func (s *RSIReversion) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = types.ActionFlat
}

// zone returns the side implied by rsi, taking the remembered zone into account.
func (s *RSIReversion) zone(rsi float64, last types.Action) types.Action {
	p := s.params

	switch {
	case rsi <= p.OversoldLevel:
		return types.ActionLong
	case rsi >= p.OverboughtLevel:
		return types.ActionShort
	case last == types.ActionLong && rsi < p.OversoldLevel+p.Hysteresis:
		return types.ActionLong
	case last == types.ActionShort && rsi > p.OverboughtLevel-p.Hysteresis:
		return types.ActionShort
	default:
		return types.ActionFlat
	}
}

func (s *RSIReversion) Analyze(data marketdata.Frames, currentPrice float64) types.Signal {
	if reason, missing := missingFrames(data, s.RequiredTimeframes()); missing {
		return flat(RSIReversionID, reason)
	}

	fast, _ := data.Get(types.Timeframe5m)
	slow, _ := data.Get(types.Timeframe1h)

	rsi5m, ok := fast.Value(s.column, 0)
	if !ok {
		return flat(RSIReversionID, fmt.Sprintf("insufficient data: 5m %s not available", s.column))
	}

	rsi1h, ok := slow.Value(s.column, 0)
	if !ok {
		return flat(RSIReversionID, fmt.Sprintf("insufficient data: 1h %s not available", s.column))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.params
	action := s.zone(rsi5m, s.last)
	strength := 0.0
	reasons := []string{}

	switch action {
	case types.ActionLong:
		strength = 0.7
		switch {
		case rsi5m <= p.ExtremeOversold:
			strength = 0.9
			reasons = append(reasons, fmt.Sprintf("5m: extreme oversold (RSI %.1f)", rsi5m))
		case rsi5m <= p.OversoldLevel:
			reasons = append(reasons, fmt.Sprintf("5m: oversold (RSI %.1f)", rsi5m))
		default:
			reasons = append(reasons, fmt.Sprintf("5m: still recovering from oversold (RSI %.1f)", rsi5m))
		}

		if rsi1h <= p.OversoldLevel {
			strength = min(strength+0.2, 1)
			reasons = append(reasons, fmt.Sprintf("1h: also oversold (RSI %.1f)", rsi1h))
		} else if rsi1h > 50 {
			reasons = append(reasons, fmt.Sprintf("1h: RSI %.1f, mixed signal", rsi1h))
		}
	case types.ActionShort:
		strength = 0.7
		switch {
		case rsi5m >= p.ExtremeOverbought:
			strength = 0.9
			reasons = append(reasons, fmt.Sprintf("5m: extreme overbought (RSI %.1f)", rsi5m))
		case rsi5m >= p.OverboughtLevel:
			reasons = append(reasons, fmt.Sprintf("5m: overbought (RSI %.1f)", rsi5m))
		default:
			reasons = append(reasons, fmt.Sprintf("5m: still cooling from overbought (RSI %.1f)", rsi5m))
		}

		if rsi1h >= p.OverboughtLevel {
			strength = min(strength+0.2, 1)
			reasons = append(reasons, fmt.Sprintf("1h: also overbought (RSI %.1f)", rsi1h))
		} else if rsi1h < 50 {
			reasons = append(reasons, fmt.Sprintf("1h: RSI %.1f, mixed signal", rsi1h))
		}
	default:
		reasons = append(reasons, fmt.Sprintf("5m: RSI neutral (%.1f)", rsi5m), fmt.Sprintf("1h: RSI %.1f", rsi1h))
	}

	if p.UseDivergence && action != types.ActionFlat {
		if div, ok := divergence(fast, s.column); ok && div == action {
			strength = min(strength+0.15, 1)
			reasons = append(reasons, fmt.Sprintf("%s divergence detected", div))
		}
	}

	action, reasons = belowThreshold(action, strength, p.MinStrength, reasons)
	s.last = action

	indicators := map[string]float64{
		"rsi_5m":           rsi5m,
		"rsi_1h":           rsi1h,
		"oversold_level":   p.OversoldLevel,
		"overbought_level": p.OverboughtLevel,
		"current_price":    currentPrice,
	}

	return finish(RSIReversionID, action, strength, reasons, indicators, map[string]any{"rsi_zone": s.zoneName(rsi5m)})
}

// divergence compares price and RSI over the last few bars.
// Price making a lower low while RSI rises is bullish; the mirror is bearish.
func divergence(table marketdata.Table, column string) (types.Action, bool) {
	if table.Len() < divergenceWindow {
		return types.ActionFlat, false
	}

	ago := divergenceWindow - 1

	v, ok := table.Values(0, "close", column)
	if !ok {
		return types.ActionFlat, false
	}

	first, ok := table.Values(ago, "close", column)
	if !ok {
		return types.ActionFlat, false
	}

	switch {
	case v[0] < first[0] && v[1] > first[1] && v[1] < 40:
		return types.ActionLong, true
	case v[0] > first[0] && v[1] < first[1] && v[1] > 60:
		return types.ActionShort, true
	}

	return types.ActionFlat, false
}

func (s *RSIReversion) zoneName(rsi float64) string {
	p := s.params

	switch {
	case rsi <= p.ExtremeOversold:
		return "extreme_oversold"
	case rsi <= p.OversoldLevel:
		return "oversold"
	case rsi >= p.ExtremeOverbought:
		return "extreme_overbought"
	case rsi >= p.OverboughtLevel:
		return "overbought"
	default:
		return "neutral"
	}
}
