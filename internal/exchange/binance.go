package exchange

import (
	"context"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/internal/utils"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"go.uber.org/zap"
)

// Service interfaces for mocking the Binance futures API

// CreateOrderService interface for creating futures orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side futures.SideType) CreateOrderService
	Type(orderType futures.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	StopPrice(stopPrice string) CreateOrderService
	ReduceOnly(reduceOnly bool) CreateOrderService
	NewOrderResponseType(respType futures.NewOrderRespType) CreateOrderService
	Do(ctx context.Context) (*futures.CreateOrderResponse, error)
}

// GetBalanceService interface for reading wallet balances.
type GetBalanceService interface {
	Do(ctx context.Context) ([]*futures.Balance, error)
}

// GetPositionRiskService interface for listing positions.
type GetPositionRiskService interface {
	Do(ctx context.Context) ([]*futures.PositionRisk, error)
}

// CancelAllOpenOrdersService interface for cancelling every open order of a symbol.
type CancelAllOpenOrdersService interface {
	Symbol(symbol string) CancelAllOpenOrdersService
	Do(ctx context.Context) error
}

// ChangeLeverageService interface for setting a symbol's leverage.
type ChangeLeverageService interface {
	Symbol(symbol string) ChangeLeverageService
	Leverage(leverage int) ChangeLeverageService
	Do(ctx context.Context) (*futures.SymbolLeverage, error)
}

// BinanceClient abstracts the Binance futures client for testing.
type BinanceClient interface {
	NewCreateOrderService() CreateOrderService
	NewGetBalanceService() GetBalanceService
	NewGetPositionRiskService() GetPositionRiskService
	NewCancelAllOpenOrdersService() CancelAllOpenOrdersService
	NewChangeLeverageService() ChangeLeverageService
}

type realBinanceClient struct {
	client *futures.Client
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewGetBalanceService() GetBalanceService {
	return &realGetBalanceService{service: r.client.NewGetBalanceService()}
}

func (r *realBinanceClient) NewGetPositionRiskService() GetPositionRiskService {
	return &realGetPositionRiskService{service: r.client.NewGetPositionRiskService()}
}

func (r *realBinanceClient) NewCancelAllOpenOrdersService() CancelAllOpenOrdersService {
	return &realCancelAllOpenOrdersService{service: r.client.NewCancelAllOpenOrdersService()}
}

func (r *realBinanceClient) NewChangeLeverageService() ChangeLeverageService {
	return &realChangeLeverageService{service: r.client.NewChangeLeverageService()}
}

type realCreateOrderService struct {
	service *futures.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side futures.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType futures.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) StopPrice(stopPrice string) CreateOrderService {
	s.service = s.service.StopPrice(stopPrice)

	return s
}

func (s *realCreateOrderService) ReduceOnly(reduceOnly bool) CreateOrderService {
	s.service = s.service.ReduceOnly(reduceOnly)

	return s
}

func (s *realCreateOrderService) NewOrderResponseType(respType futures.NewOrderRespType) CreateOrderService {
	s.service = s.service.NewOrderResponseType(respType)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*futures.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realGetBalanceService struct {
	service *futures.GetBalanceService
}

func (s *realGetBalanceService) Do(ctx context.Context) ([]*futures.Balance, error) {
	return s.service.Do(ctx)
}

type realGetPositionRiskService struct {
	service *futures.GetPositionRiskService
}

func (s *realGetPositionRiskService) Do(ctx context.Context) ([]*futures.PositionRisk, error) {
	return s.service.Do(ctx)
}

type realCancelAllOpenOrdersService struct {
	service *futures.CancelAllOpenOrdersService
}

func (s *realCancelAllOpenOrdersService) Symbol(symbol string) CancelAllOpenOrdersService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelAllOpenOrdersService) Do(ctx context.Context) error {
	return s.service.Do(ctx)
}

type realChangeLeverageService struct {
	service *futures.ChangeLeverageService
}

func (s *realChangeLeverageService) Symbol(symbol string) ChangeLeverageService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realChangeLeverageService) Leverage(leverage int) ChangeLeverageService {
	s.service = s.service.Leverage(leverage)

	return s
}

func (s *realChangeLeverageService) Do(ctx context.Context) (*futures.SymbolLeverage, error) {
	return s.service.Do(ctx)
}

// BinanceConfig holds the credentials and trading parameters of one futures account.
type BinanceConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key" validate:"required"`
	SecretKey string `yaml:"secret_key" json:"secret_key" validate:"required"`
	// BaseURL overrides the endpoint, taking precedence over Testnet
	BaseURL string `yaml:"base_url" json:"base_url" validate:"omitempty,url"`
	Testnet bool   `yaml:"testnet" json:"testnet"`
	// QuoteAsset is the margin asset whose wallet is reported as the account balance
	QuoteAsset        string  `yaml:"quote_asset" json:"quote_asset" validate:"required"`
	Leverage          float64 `yaml:"leverage" json:"leverage" validate:"gte=1,lte=125"`
	QuantityPrecision int32   `yaml:"quantity_precision" json:"quantity_precision" validate:"gte=0,lte=8"`
	PricePrecision    int32   `yaml:"price_precision" json:"price_precision" validate:"gte=0,lte=8"`
}

// Binance trades USDⓈ-M perpetual futures in one-way position mode.
type Binance struct {
	client    BinanceClient
	config    BinanceConfig
	logger    *logger.Logger
	mu        sync.Mutex
	leveraged map[string]bool
}

// NewBinance creates a client on the live (or testnet) futures API.
func NewBinance(config BinanceConfig, log *logger.Logger) (*Binance, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid Binance configuration", err)
	}

	if config.Testnet {
		futures.UseTestnet = true
	}

	client := binance.NewFuturesClient(config.APIKey, config.SecretKey)
	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}

	return NewBinanceWithClient(&realBinanceClient{client: client}, config, log), nil
}

// NewBinanceWithClient creates a client on a custom API implementation.
func NewBinanceWithClient(client BinanceClient, config BinanceConfig, log *logger.Logger) *Binance {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if config.QuoteAsset == "" {
		config.QuoteAsset = "USDT"
	}

	if config.Leverage < 1 {
		config.Leverage = 1
	}

	return &Binance{
		client:    client,
		config:    config,
		logger:    log,
		leveraged: map[string]bool{},
	}
}

func (b *Binance) GetBalance(ctx context.Context) (types.Balance, error) {
	balances, err := b.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return types.Balance{}, classify(err, "failed to get futures balance")
	}

	for _, bal := range balances {
		if bal.Asset != b.config.QuoteAsset {
			continue
		}

		total, err := utils.ParseDecimal(bal.Balance)
		if err != nil {
			return types.Balance{}, errors.Wrapf(errors.ErrCodeExchangeTerminal, err, "invalid %s balance %q", bal.Asset, bal.Balance)
		}

		available, err := utils.ParseDecimal(bal.AvailableBalance)
		if err != nil {
			return types.Balance{}, errors.Wrapf(errors.ErrCodeExchangeTerminal, err, "invalid %s available balance %q", bal.Asset, bal.AvailableBalance)
		}

		return types.Balance{
			Total:     total,
			Available: available,
			Locked:    math.Max(total-available, 0),
		}, nil
	}

	return types.Balance{}, nil
}

func (b *Binance) PlaceMarketOrder(ctx context.Context, instrument string, side types.OrderSide, size float64) (types.OrderResult, error) {
	if err := validateOrder(instrument, side, types.OrderTypeMarket, size, 0); err != nil {
		return types.OrderResult{}, err
	}

	if err := b.ensureLeverage(ctx, instrument); err != nil {
		return types.OrderResult{}, err
	}

	return b.placeOrder(ctx, instrument, side, futures.OrderTypeMarket, size, 0, false)
}

func (b *Binance) PlaceStopOrder(ctx context.Context, instrument string, side types.OrderSide, size, stopPrice float64) (types.OrderResult, error) {
	if err := validateOrder(instrument, side, types.OrderTypeStop, size, stopPrice); err != nil {
		return types.OrderResult{}, err
	}

	return b.placeOrder(ctx, instrument, side, futures.OrderTypeStopMarket, size, stopPrice, true)
}

func (b *Binance) PlaceTargetOrder(ctx context.Context, instrument string, side types.OrderSide, size, targetPrice float64) (types.OrderResult, error) {
	if err := validateOrder(instrument, side, types.OrderTypeTakeProfit, size, targetPrice); err != nil {
		return types.OrderResult{}, err
	}

	return b.placeOrder(ctx, instrument, side, futures.OrderTypeTakeProfitMarket, size, targetPrice, true)
}

// ListOpenPositions returns every non-flat position. Stops and targets are not known to the exchange
// listing, so they come back as zero.
func (b *Binance) ListOpenPositions(ctx context.Context) ([]types.Position, error) {
	risks, err := b.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, classify(err, "failed to list futures positions")
	}

	positions := make([]types.Position, 0, len(risks))

	for _, risk := range risks {
		amount, err := utils.ParseDecimal(risk.PositionAmt)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeExchangeTerminal, err, "invalid position amount %q for %s", risk.PositionAmt, risk.Symbol)
		}

		if amount == 0 {
			continue
		}

		entry, err := utils.ParseDecimal(risk.EntryPrice)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeExchangeTerminal, err, "invalid entry price %q for %s", risk.EntryPrice, risk.Symbol)
		}

		mark, err := utils.ParseDecimal(risk.MarkPrice)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeExchangeTerminal, err, "invalid mark price %q for %s", risk.MarkPrice, risk.Symbol)
		}

		side := types.SideLong
		if amount < 0 {
			side = types.SideShort
		}

		size := math.Abs(amount)

		positions = append(positions, types.Position{
			ID:           uuid.NewSHA1(uuid.NameSpaceOID, []byte(risk.Symbol+string(side))).String(),
			Instrument:   risk.Symbol,
			Side:         side,
			EntryPrice:   entry,
			Size:         size,
			Leverage:     b.config.Leverage,
			Margin:       size * entry / b.config.Leverage,
			State:        types.PositionStateMonitoring,
			CurrentPrice: mark,
		})
	}

	return positions, nil
}

// ClosePosition sends a reduce-only market order for the part of the position the exchange still holds.
// The exchange is read first so a position a resting stop or target already closed is reported as gone
// instead of being traded into the opposite side.
func (b *Binance) ClosePosition(ctx context.Context, instrument string, side types.Side, size float64) (types.OrderResult, error) {
	positions, err := b.ListOpenPositions(ctx)
	if err != nil {
		return types.OrderResult{}, err
	}

	held := 0.0

	for _, p := range positions {
		if p.Instrument == instrument && p.Side == side {
			held = p.Size
		}
	}

	if held == 0 {
		return types.OrderResult{}, errors.Newf(errors.ErrCodePositionNotFound, "no %s position on %s left to close", side, instrument)
	}

	qty := math.Min(size, held)
	exit := types.ExitSide(side)

	err = validateRequest(types.OrderRequest{
		Instrument: instrument,
		Side:       exit,
		Type:       types.OrderTypeMarket,
		Size:       qty,
		ReduceOnly: true,
	})
	if err != nil {
		return types.OrderResult{}, err
	}

	if qty < size {
		b.logger.Warn("Closing less than the tracked size",
			zap.String("instrument", instrument),
			zap.Float64("tracked", size),
			zap.Float64("held", held),
		)
	}

	return b.placeOrder(ctx, instrument, exit, futures.OrderTypeMarket, qty, 0, true)
}

// CancelOpenOrders removes resting stop and target orders after a position closed.
func (b *Binance) CancelOpenOrders(ctx context.Context, instrument string) error {
	if err := b.client.NewCancelAllOpenOrdersService().Symbol(instrument).Do(ctx); err != nil {
		return classify(err, "failed to cancel open orders")
	}

	return nil
}

func (b *Binance) ensureLeverage(ctx context.Context, instrument string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.leveraged[instrument] {
		return nil
	}

	_, err := b.client.NewChangeLeverageService().
		Symbol(instrument).
		Leverage(int(b.config.Leverage)).
		Do(ctx)
	if err != nil {
		return classify(err, "failed to set leverage")
	}

	b.leveraged[instrument] = true

	return nil
}

func (b *Binance) placeOrder(
	ctx context.Context,
	instrument string,
	side types.OrderSide,
	orderType futures.OrderType,
	size, trigger float64,
	reduceOnly bool,
) (types.OrderResult, error) {
	quantity := utils.RoundToDecimalPrecision(size, b.config.QuantityPrecision)
	if quantity <= 0 {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeExchangeTerminal,
			"order quantity %v is too small after rounding to %d decimal places", size, b.config.QuantityPrecision)
	}

	futuresSide := futures.SideTypeBuy
	if side == types.OrderSideSell {
		futuresSide = futures.SideTypeSell
	}

	service := b.client.NewCreateOrderService().
		Symbol(instrument).
		Side(futuresSide).
		Type(orderType).
		Quantity(utils.FormatDecimal(quantity, b.config.QuantityPrecision)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)

	if trigger > 0 {
		service = service.StopPrice(utils.FormatDecimal(trigger, b.config.PricePrecision))
	}

	if reduceOnly {
		service = service.ReduceOnly(true)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return types.OrderResult{}, classify(err, "failed to place order on Binance")
	}

	fill, _ := utils.ParseDecimal(resp.AvgPrice)
	filled, _ := utils.ParseDecimal(resp.ExecutedQuantity)

	b.logger.Info("Binance order placed",
		zap.String("instrument", instrument),
		zap.String("side", string(side)),
		zap.String("type", string(orderType)),
		zap.Int64("order_id", resp.OrderID),
		zap.Float64("fill_price", fill),
	)

	return types.OrderResult{
		OrderID:   formatOrderID(resp.OrderID),
		FillPrice: fill,
		FilledQty: filled,
		Status:    mapOrderStatus(resp.Status),
		Timestamp: time.UnixMilli(resp.UpdateTime).UTC(),
	}, nil
}

func formatOrderID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func mapOrderStatus(status futures.OrderStatusType) types.OrderStatus {
	switch status {
	case futures.OrderStatusTypeFilled:
		return types.OrderStatusFilled
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return types.OrderStatusCancelled
	case futures.OrderStatusTypeRejected:
		return types.OrderStatusRejected
	default:
		return types.OrderStatusPending
	}
}

// Binance API error codes that mean the request may succeed later, or that the credentials were refused.
var (
	transientCodes = map[int64]bool{
		-1000: true, // unknown
		-1001: true, // disconnected
		-1003: true, // too many requests
		-1006: true, // unexpected response
		-1007: true, // timeout
		-1008: true, // server busy
		-1015: true, // too many orders
	}
	authCodes = map[int64]bool{
		-1022: true, // invalid signature
		-2014: true, // bad api key format
		-2015: true, // rejected api key, ip or permissions
	}
)

// classify maps an error from the Binance SDK to an exchange error code.
func classify(err error, message string) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch {
		case authCodes[apiErr.Code]:
			return errors.Wrap(errors.ErrCodeExchangeAuth, message, err)
		case transientCodes[apiErr.Code]:
			return errors.Wrap(errors.ErrCodeExchangeTransient, message, err)
		default:
			return errors.Wrap(errors.ErrCodeExchangeTerminal, message, err)
		}
	}

	// network failures, timeouts and anything the SDK could not decode
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodeExchangeTransient, message, err)
	}

	if errors.Is(err, context.Canceled) {
		return errors.Wrap(errors.ErrCodeExchangeTerminal, message, err)
	}

	return errors.Wrap(errors.ErrCodeExchangeTransient, message, err)
}
