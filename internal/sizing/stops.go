package sizing

import (
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mode is how stop and target distances are derived.
type Mode string

const (
	ModePercentage Mode = "percentage"
	ModeATR        Mode = "atr"
)

// StopConfig configures the protective levels. Percentages are fractions (0.02 is 2%).
type StopConfig struct {
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct" validate:"gt=0,lt=1"`
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct" validate:"gt=0,lt=1"`
	UseATR        bool    `json:"use_atr" yaml:"use_atr"`
	// ATRStopMultiplier and ATRTargetMultiplier scale the ATR in ATR mode
	ATRStopMultiplier   float64 `json:"atr_stop_multiplier" yaml:"atr_stop_multiplier" validate:"required_if=UseATR true,gte=0"`
	ATRTargetMultiplier float64 `json:"atr_target_multiplier" yaml:"atr_target_multiplier" validate:"required_if=UseATR true,gte=0"`
}

// Levels is the outcome of a stop calculation.
type Levels struct {
	Stop   float64
	Target float64
	Mode   Mode
	// FellBack is set when ATR mode was requested but percentage mode was used
	FellBack bool
	Reason   string
}

type StopCalculator struct {
	config StopConfig
	logger *logger.Logger
}

func NewStopCalculator(config StopConfig, log *logger.Logger) (*StopCalculator, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid stop config", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &StopCalculator{config: config, logger: log}, nil
}

// Levels returns stop and target prices for an entry. ATR mode is used when enabled and atr holds a
// positive value that keeps both levels positive; anything else falls back to percentage mode.
func (c *StopCalculator) Levels(side types.Side, entry float64, atr optional.Option[float64]) (Levels, error) {
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return Levels{}, errors.Newf(errors.ErrCodeInvalidParameter, "entry price must be positive, got %v", entry)
	}

	if side != types.SideLong && side != types.SideShort {
		return Levels{}, errors.Newf(errors.ErrCodeInvalidParameter, "unknown side %q", side)
	}

	if !c.config.UseATR {
		return c.percentage(side, entry), nil
	}

	reason := ""

	switch {
	case atr.IsNone():
		reason = "atr unavailable"
	case atr.Unwrap() <= 0 || math.IsNaN(atr.Unwrap()):
		reason = "atr is not positive"
	default:
		levels := c.atr(side, entry, atr.Unwrap())
		if levels.Stop > 0 && levels.Target > 0 {
			return levels, nil
		}

		reason = "atr distance exceeds entry price"
	}

	c.logger.Warn("Falling back to percentage stops",
		zap.String("side", string(side)),
		zap.Float64("entry", entry),
		zap.String("reason", reason),
	)

	levels := c.percentage(side, entry)
	levels.FellBack = true
	levels.Reason = reason

	return levels, nil
}

func (c *StopCalculator) percentage(side types.Side, entry float64) Levels {
	e := decimal.NewFromFloat(entry)
	one := decimal.NewFromInt(1)
	stopPct := decimal.NewFromFloat(c.config.StopLossPct)
	targetPct := decimal.NewFromFloat(c.config.TakeProfitPct)

	if side == types.SideLong {
		return Levels{
			Stop:   e.Mul(one.Sub(stopPct)).InexactFloat64(),
			Target: e.Mul(one.Add(targetPct)).InexactFloat64(),
			Mode:   ModePercentage,
		}
	}

	return Levels{
		Stop:   e.Mul(one.Add(stopPct)).InexactFloat64(),
		Target: e.Mul(one.Sub(targetPct)).InexactFloat64(),
		Mode:   ModePercentage,
	}
}

func (c *StopCalculator) atr(side types.Side, entry, atr float64) Levels {
	e := decimal.NewFromFloat(entry)
	a := decimal.NewFromFloat(atr)
	stopDist := a.Mul(decimal.NewFromFloat(c.config.ATRStopMultiplier))
	targetDist := a.Mul(decimal.NewFromFloat(c.config.ATRTargetMultiplier))

	if side == types.SideLong {
		return Levels{
			Stop:   e.Sub(stopDist).InexactFloat64(),
			Target: e.Add(targetDist).InexactFloat64(),
			Mode:   ModeATR,
		}
	}

	return Levels{
		Stop:   e.Add(stopDist).InexactFloat64(),
		Target: e.Sub(targetDist).InexactFloat64(),
		Mode:   ModeATR,
	}
}
