// Package exchange places orders and reads balances and positions, either on Binance futures or on the
// local paper ledger.
package exchange

import (
	"context"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// Client is the order interface one account trades through.
//
// Failures carry ErrCodeExchangeTransient, ErrCodeExchangeTerminal or ErrCodeExchangeAuth.
type Client interface {
	GetBalance(ctx context.Context) (types.Balance, error)
	PlaceMarketOrder(ctx context.Context, instrument string, side types.OrderSide, size float64) (types.OrderResult, error)
	// PlaceStopOrder places a reduce-only stop-market order triggered at stopPrice.
	PlaceStopOrder(ctx context.Context, instrument string, side types.OrderSide, size, stopPrice float64) (types.OrderResult, error)
	// PlaceTargetOrder places a reduce-only take-profit-market order triggered at targetPrice.
	PlaceTargetOrder(ctx context.Context, instrument string, side types.OrderSide, size, targetPrice float64) (types.OrderResult, error)
	ListOpenPositions(ctx context.Context) ([]types.Position, error)
}

// Journal is implemented by clients that keep their own books, such as the paper exchange.
// The scheduler reports position changes to it after the orders went through.
type Journal interface {
	RecordOpen(p types.Position) error
	RecordUpdate(p types.Position) error
	RecordClose(record types.TradeRecord) error
}

// OrderCanceller is implemented by clients that leave protective orders resting after a close.
type OrderCanceller interface {
	CancelOpenOrders(ctx context.Context, instrument string) error
}

// PositionCloser is implemented by clients that can close what is left of a position without ever
// opening the opposite side. ClosePosition fails with ErrCodePositionNotFound when the exchange no
// longer holds the position, for instance because a resting stop or target already filled.
type PositionCloser interface {
	ClosePosition(ctx context.Context, instrument string, side types.Side, size float64) (types.OrderResult, error)
}

// IsTransient reports whether err is worth retrying on a later cycle.
func IsTransient(err error) bool {
	return errors.HasCode(err, errors.ErrCodeExchangeTransient)
}

// IsAuth reports whether err was caused by rejected credentials.
func IsAuth(err error) bool {
	return errors.HasCode(err, errors.ErrCodeExchangeAuth)
}

// IsPositionGone reports whether a close found nothing left to close.
func IsPositionGone(err error) bool {
	return errors.HasCode(err, errors.ErrCodePositionNotFound)
}

func validateOrder(instrument string, side types.OrderSide, orderType types.OrderType, size, trigger float64) error {
	return validateRequest(types.OrderRequest{
		Instrument:   instrument,
		Side:         side,
		Type:         orderType,
		Size:         size,
		TriggerPrice: trigger,
		ReduceOnly:   orderType != types.OrderTypeMarket,
	})
}

func validateRequest(req types.OrderRequest) error {
	if err := req.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeExchangeTerminal, "order rejected before submission", err)
	}

	return nil
}
