package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

type OrderSide string

type OrderType string

type OrderStatus string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeStop       OrderType = "STOP"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
)

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// EntrySide is the order side that opens a position on side.
func EntrySide(side Side) OrderSide {
	if side == SideShort {
		return OrderSideSell
	}

	return OrderSideBuy
}

// ExitSide is the order side that closes a position on side.
func ExitSide(side Side) OrderSide {
	if side == SideShort {
		return OrderSideBuy
	}

	return OrderSideSell
}

// OrderRequest is what the engine sends to an exchange client.
type OrderRequest struct {
	Instrument string    `json:"instrument" yaml:"instrument" validate:"required"`
	Side       OrderSide `json:"side" yaml:"side" validate:"required,oneof=BUY SELL"`
	Type       OrderType `json:"type" yaml:"type" validate:"required,oneof=MARKET STOP TAKE_PROFIT"`
	Size       float64   `json:"size" yaml:"size" validate:"gt=0"`
	// TriggerPrice is required for STOP and TAKE_PROFIT orders
	TriggerPrice float64 `json:"trigger_price" yaml:"trigger_price" validate:"required_unless=Type MARKET,gte=0"`
	// ReduceOnly marks protective orders that may only shrink a position
	ReduceOnly bool `json:"reduce_only" yaml:"reduce_only"`
}

// Validate validates the OrderRequest struct.
func (o *OrderRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid order request", err)
	}

	return nil
}

// OrderResult is the exchange's answer to an OrderRequest.
type OrderResult struct {
	OrderID   string      `json:"order_id" yaml:"order_id"`
	FillPrice float64     `json:"fill_price" yaml:"fill_price"`
	FilledQty float64     `json:"filled_qty" yaml:"filled_qty"`
	Status    OrderStatus `json:"status" yaml:"status"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
}
