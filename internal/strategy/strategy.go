// Package strategy defines the Strategy contract, the built-in strategies, the shared
// catalog of strategy factories and the per-account registry that selects the active one.
package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
)

// Strategy turns multi-timeframe indicator tables into a directional signal.
//
// Analyze never fails: missing or short data yields a flat signal whose reasons say what was missing.
// Unless the strategy also implements Stateful, Analyze is a pure function of its inputs.
type Strategy interface {
	// Descriptor returns a copy of the strategy's descriptor with the effective parameters
	Descriptor() types.StrategyDescriptor
	// RequiredTimeframes lists the timeframes Analyze reads
	RequiredTimeframes() []types.Timeframe
	// RequiredIndicators lists the indicator families Analyze reads
	RequiredIndicators() []types.IndicatorType
	// Analyze evaluates the market data at currentPrice
	Analyze(data marketdata.Frames, currentPrice float64) types.Signal
}

// Stateful is implemented by strategies that keep bounded history between evaluations.
type Stateful interface {
	Strategy
	// Reset forgets all retained history
	Reset()
}

// ColumnReader is implemented by strategies that need specific indicator columns, such as ema_12 or
// rsi_7. Configuration is checked against it so a strategy never waits on a column nobody computes.
type ColumnReader interface {
	// RequiredColumns lists the indicator columns Analyze cannot do without. Bar fields are not listed.
	RequiredColumns() []string
}

// Params holds user supplied parameters. They are merged over a strategy's defaults at construction.
type Params map[string]any

// Factory builds a fresh strategy instance from params.
type Factory func(params Params) (Strategy, error)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeParams merges params over defaults and validates the result.
// Unknown parameter names are rejected.
func decodeParams[T any](id string, params Params, defaults T) (T, error) {
	out := defaults

	if len(params) == 0 {
		return out, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return defaults, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "strategy %s: invalid parameters", id)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&out); err != nil {
		return defaults, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "strategy %s: invalid parameters", id)
	}

	if err := validate.Struct(out); err != nil {
		return defaults, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "strategy %s: invalid parameters", id)
	}

	return out, nil
}

// paramsMap renders a typed parameter struct as the map stored in descriptors.
func paramsMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}

	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}

	return out
}

// trendStrength scores how decisively the fast average leads the slow one.
// It is non-zero only when price sits on the same side of the slow average as the fast one.
func trendStrength(fast, slow, price float64) float64 {
	if fast == 0 || slow == 0 {
		return 0
	}

	distance := math.Abs(fast-slow) / slow
	aligned := (price > slow && fast > slow) || (price <= slow && fast < slow)

	if !aligned {
		return 0
	}

	return math.Min(distance*10, 1)
}

// missingFrames returns a reason when any required timeframe is absent or empty.
func missingFrames(data marketdata.Frames, timeframes []types.Timeframe) (string, bool) {
	for _, tf := range timeframes {
		if _, ok := data.Get(tf); !ok {
			return fmt.Sprintf("insufficient data: no %s bars", tf), true
		}
	}

	return "", false
}

// belowThreshold flattens a directional signal that does not reach minStrength.
func belowThreshold(action types.Action, strength, minStrength float64, reasons []string) (types.Action, []string) {
	if strength >= minStrength {
		return action, reasons
	}

	if action != types.ActionFlat {
		reasons = append(reasons, fmt.Sprintf("signal too weak (%.2f < %.2f)", strength, minStrength))
	}

	return types.ActionFlat, reasons
}

// finish builds the normalized signal and stamps strategy metadata.
func finish(id string, action types.Action, strength float64, reasons []string, indicators map[string]float64, metadata map[string]any) types.Signal {
	signal := types.NewSignal(action, strength, reasons, indicators)

	for k, v := range metadata {
		signal.Metadata[k] = v
	}

	signal.Metadata["strategy"] = id

	return signal
}

// flat is the insufficient-data path shared by the built-ins.
func flat(id, reason string) types.Signal {
	signal := types.NewFlatSignal(reason)
	signal.Metadata["strategy"] = id

	return signal
}

// timeframeWeights converts a "tf -> weight" map into typed keys.
func timeframeWeights(in map[string]float64) (map[types.Timeframe]float64, error) {
	out := make(map[types.Timeframe]float64, len(in))

	for k, w := range in {
		tf, err := types.ParseTimeframe(k)
		if err != nil {
			return nil, err
		}

		if w < 0 {
			return nil, errors.Newf(errors.ErrCodeStrategyConfigError, "weight for %s must not be negative", k)
		}

		out[tf] = w
	}

	return out, nil
}

var (
	columnFast = indicator.EMAColumn(9)
	columnSlow = indicator.EMAColumn(21)
)
