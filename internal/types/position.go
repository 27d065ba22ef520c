package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/shopspring/decimal"
)

// Side is the direction of an open position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}

	return SideLong
}

// PositionState is the lifecycle state of a position.
type PositionState string

const (
	// PositionStateOpen is the state right after the entry order fills
	PositionStateOpen PositionState = "OPEN"
	// PositionStateMonitoring is re-entered on every poll while the position is held
	PositionStateMonitoring PositionState = "MONITORING"
	// PositionStateClosed is terminal
	PositionStateClosed PositionState = "CLOSED"
)

// Position is an open leveraged position on one instrument.
type Position struct {
	ID               string        `json:"id" yaml:"id" validate:"required"`
	Instrument       string        `json:"instrument" yaml:"instrument" validate:"required"`
	Side             Side          `json:"side" yaml:"side" validate:"required,oneof=long short"`
	EntryPrice       float64       `json:"entry_price" yaml:"entry_price" validate:"gt=0"`
	Size             float64       `json:"size" yaml:"size" validate:"gt=0"`
	Leverage         float64       `json:"leverage" yaml:"leverage" validate:"gte=1"`
	Margin           float64       `json:"margin" yaml:"margin" validate:"gte=0"`
	StopPrice        float64       `json:"stop_price" yaml:"stop_price" validate:"gt=0"`
	TargetPrice      float64       `json:"target_price" yaml:"target_price" validate:"gt=0"`
	TrailingEnabled  bool          `json:"trailing_enabled" yaml:"trailing_enabled"`
	TrailingDistance float64       `json:"trailing_distance" yaml:"trailing_distance" validate:"gte=0,lt=1"`
	OpenedAt         time.Time     `json:"opened_at" yaml:"opened_at"`
	State            PositionState `json:"state" yaml:"state"`
	CurrentPrice     float64       `json:"current_price" yaml:"current_price"`
	Strategy         string        `json:"strategy" yaml:"strategy"`
}

// Validate checks field ranges and that the protective levels bracket the entry price.
func (p *Position) Validate() error {
	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid position", err)
	}

	switch p.Side {
	case SideLong:
		if !(p.StopPrice < p.EntryPrice && p.EntryPrice < p.TargetPrice) {
			return errors.Newf(errors.ErrCodeInvalidStopLoss, "long position requires stop < entry < target, got %.8f / %.8f / %.8f", p.StopPrice, p.EntryPrice, p.TargetPrice)
		}
	case SideShort:
		if !(p.TargetPrice < p.EntryPrice && p.EntryPrice < p.StopPrice) {
			return errors.Newf(errors.ErrCodeInvalidStopLoss, "short position requires target < entry < stop, got %.8f / %.8f / %.8f", p.TargetPrice, p.EntryPrice, p.StopPrice)
		}
	}

	return nil
}

// PnLAt returns the leveraged profit or loss if the position were closed at price.
func (p *Position) PnLAt(price float64) decimal.Decimal {
	entry := decimal.NewFromFloat(p.EntryPrice)
	exit := decimal.NewFromFloat(price)

	diff := exit.Sub(entry)
	if p.Side == SideShort {
		diff = entry.Sub(exit)
	}

	return diff.Mul(decimal.NewFromFloat(p.Size)).Mul(decimal.NewFromFloat(p.Leverage))
}

// IsProfitableAt reports whether price is on the winning side of the entry.
func (p *Position) IsProfitableAt(price float64) bool {
	if p.Side == SideLong {
		return price > p.EntryPrice
	}

	return price < p.EntryPrice
}
