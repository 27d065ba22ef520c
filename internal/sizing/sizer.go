// Package sizing turns an accepted signal into an order quantity and protective price levels.
package sizing

import (
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/shopspring/decimal"
)

// Config holds the leverage and exposure limits for one account.
type Config struct {
	Leverage float64 `json:"leverage" yaml:"leverage" validate:"gte=1,lte=125"`
	// MaxPositionPct is the share of the balance a single full-strength signal may commit, in (0, 1]
	MaxPositionPct float64 `json:"max_position_pct" yaml:"max_position_pct" validate:"gt=0,lte=1"`
	// SizePrecision is the number of decimals the quantity is floored to
	SizePrecision int32 `json:"size_precision" yaml:"size_precision" validate:"gte=0,lte=12"`
}

// Order is a sized entry. When Decision is blocked the numeric fields are zero.
type Order struct {
	Side     types.Side
	Size     float64
	Margin   float64
	Notional float64
	Decision types.Decision
}

type Sizer struct {
	config Config
}

func NewSizer(config Config) (*Sizer, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid sizing config", err)
	}

	return &Sizer{config: config}, nil
}

// Size computes balance × leverage × max_position_pct × strength / price.
// The balance used is the account total; the resulting margin must fit into the available funds,
// otherwise the order is blocked as insufficient_balance. Partial fills are never proposed.
func (s *Sizer) Size(signal types.Signal, balance types.Balance, price float64) Order {
	side, ok := signal.Action.Side()
	if !ok || signal.Strength <= 0 {
		return Order{Decision: types.Block(types.BlockReasonFlatSignal, "signal %s has no direction to size", signal.Action)}
	}

	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return Order{Decision: types.Block(types.BlockReasonInvalidSize, "price %v is not tradable", price)}
	}

	equity := balance.Total
	if equity <= 0 {
		equity = balance.Available
	}

	if equity <= 0 {
		return Order{Decision: types.Block(types.BlockReasonInsufficientBalance, "no funds available")}
	}

	leverage := decimal.NewFromFloat(s.config.Leverage)
	priceDec := decimal.NewFromFloat(price)

	size := decimal.NewFromFloat(equity).
		Mul(leverage).
		Mul(decimal.NewFromFloat(s.config.MaxPositionPct)).
		Mul(decimal.NewFromFloat(min(signal.Strength, 1))).
		Div(priceDec).
		RoundFloor(s.config.SizePrecision)

	if !size.IsPositive() {
		return Order{Decision: types.Block(types.BlockReasonInvalidSize, "size rounds to zero at %d decimals", s.config.SizePrecision)}
	}

	notional := size.Mul(priceDec)
	margin := notional.Div(leverage)

	if margin.GreaterThan(decimal.NewFromFloat(balance.Available)) {
		return Order{Decision: types.Block(types.BlockReasonInsufficientBalance,
			"margin %s exceeds available balance %.2f", margin.StringFixed(2), balance.Available)}
	}

	return Order{
		Side:     side,
		Size:     size.InexactFloat64(),
		Margin:   margin.InexactFloat64(),
		Notional: notional.InexactFloat64(),
		Decision: types.Allow(),
	}
}

// Leverage returns the configured leverage.
func (s *Sizer) Leverage() float64 {
	return s.config.Leverage
}
