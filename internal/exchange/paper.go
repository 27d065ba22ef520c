package exchange

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-bot/internal/ledger"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"go.uber.org/zap"
)

// PriceSource returns the price a paper market order fills at.
type PriceSource interface {
	GetLatestPrice(ctx context.Context, instrument string) (float64, error)
}

// PaperClient simulates an exchange on top of a ledger. Market orders fill immediately at the latest
// price and protective orders are accepted without resting anywhere, since the position manager
// watches stops and targets itself.
type PaperClient struct {
	ledger *ledger.Ledger
	prices PriceSource
	logger *logger.Logger
	now    func() time.Time
}

func NewPaperClient(l *ledger.Ledger, prices PriceSource, log *logger.Logger) *PaperClient {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &PaperClient{
		ledger: l,
		prices: prices,
		logger: log,
		now:    time.Now,
	}
}

// Ledger exposes the books behind the client.
func (c *PaperClient) Ledger() *ledger.Ledger {
	return c.ledger
}

func (c *PaperClient) GetBalance(_ context.Context) (types.Balance, error) {
	return c.ledger.Balance(), nil
}

func (c *PaperClient) PlaceMarketOrder(ctx context.Context, instrument string, side types.OrderSide, size float64) (types.OrderResult, error) {
	if err := validateOrder(instrument, side, types.OrderTypeMarket, size, 0); err != nil {
		return types.OrderResult{}, err
	}

	price, err := c.prices.GetLatestPrice(ctx, instrument)
	if err != nil {
		return types.OrderResult{}, errors.Wrapf(errors.ErrCodeExchangeTransient, err, "no fill price for %s", instrument)
	}

	if price <= 0 {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeExchangeTransient, "invalid fill price %v for %s", price, instrument)
	}

	result := types.OrderResult{
		OrderID:   uuid.New().String(),
		FillPrice: price,
		FilledQty: size,
		Status:    types.OrderStatusFilled,
		Timestamp: c.now().UTC(),
	}

	c.logger.Debug("Paper market order filled",
		zap.String("instrument", instrument),
		zap.String("side", string(side)),
		zap.Float64("size", size),
		zap.Float64("price", price),
	)

	return result, nil
}

func (c *PaperClient) PlaceStopOrder(_ context.Context, instrument string, side types.OrderSide, size, stopPrice float64) (types.OrderResult, error) {
	return c.protective(instrument, side, types.OrderTypeStop, size, stopPrice)
}

func (c *PaperClient) PlaceTargetOrder(_ context.Context, instrument string, side types.OrderSide, size, targetPrice float64) (types.OrderResult, error) {
	return c.protective(instrument, side, types.OrderTypeTakeProfit, size, targetPrice)
}

// ClosePosition fills a market order against the booked position. A position the ledger does not hold
// is reported as gone.
func (c *PaperClient) ClosePosition(ctx context.Context, instrument string, side types.Side, size float64) (types.OrderResult, error) {
	held := 0.0

	for _, p := range c.ledger.Positions() {
		if p.Instrument == instrument && p.Side == side {
			held += p.Size
		}
	}

	if held == 0 {
		return types.OrderResult{}, errors.Newf(errors.ErrCodePositionNotFound, "no %s position on %s in the paper ledger", side, instrument)
	}

	return c.PlaceMarketOrder(ctx, instrument, types.ExitSide(side), min(size, held))
}

func (c *PaperClient) ListOpenPositions(_ context.Context) ([]types.Position, error) {
	return c.ledger.Positions(), nil
}

func (c *PaperClient) RecordOpen(p types.Position) error {
	return c.ledger.OpenPosition(p)
}

func (c *PaperClient) RecordUpdate(p types.Position) error {
	return c.ledger.UpdatePosition(p)
}

func (c *PaperClient) RecordClose(record types.TradeRecord) error {
	return c.ledger.ClosePosition(record)
}

func (c *PaperClient) protective(instrument string, side types.OrderSide, orderType types.OrderType, size, trigger float64) (types.OrderResult, error) {
	if err := validateOrder(instrument, side, orderType, size, trigger); err != nil {
		return types.OrderResult{}, err
	}

	return types.OrderResult{
		OrderID:   uuid.New().String(),
		FilledQty: 0,
		Status:    types.OrderStatusPending,
		Timestamp: c.now().UTC(),
	}, nil
}
