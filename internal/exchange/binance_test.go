package exchange

import (
	"context"
	stderrors "errors"
	"net"
	"testing"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// fakeBinanceClient implements BinanceClient for testing
type fakeBinanceClient struct {
	orders    []*fakeCreateOrderService
	response  *futures.CreateOrderResponse
	orderErr  error
	balances  []*futures.Balance
	risks     []*futures.PositionRisk
	readErr   error
	cancelled []string
	leverage  map[string]int
}

func newFakeBinanceClient() *fakeBinanceClient {
	return &fakeBinanceClient{
		response: &futures.CreateOrderResponse{
			OrderID:          42,
			AvgPrice:         "50000.10",
			ExecutedQuantity: "0.008",
			Status:           futures.OrderStatusTypeFilled,
			UpdateTime:       1717243200000,
		},
		leverage: map[string]int{},
	}
}

func (f *fakeBinanceClient) NewCreateOrderService() CreateOrderService {
	svc := &fakeCreateOrderService{parent: f}
	f.orders = append(f.orders, svc)

	return svc
}

func (f *fakeBinanceClient) NewGetBalanceService() GetBalanceService {
	return &fakeGetBalanceService{parent: f}
}

func (f *fakeBinanceClient) NewGetPositionRiskService() GetPositionRiskService {
	return &fakeGetPositionRiskService{parent: f}
}

func (f *fakeBinanceClient) NewCancelAllOpenOrdersService() CancelAllOpenOrdersService {
	return &fakeCancelAllOpenOrdersService{parent: f}
}

func (f *fakeBinanceClient) NewChangeLeverageService() ChangeLeverageService {
	return &fakeChangeLeverageService{parent: f}
}

type fakeCreateOrderService struct {
	parent     *fakeBinanceClient
	symbol     string
	side       futures.SideType
	orderType  futures.OrderType
	quantity   string
	stopPrice  string
	reduceOnly bool
	respType   futures.NewOrderRespType
}

func (s *fakeCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.symbol = symbol

	return s
}

func (s *fakeCreateOrderService) Side(side futures.SideType) CreateOrderService {
	s.side = side

	return s
}

func (s *fakeCreateOrderService) Type(orderType futures.OrderType) CreateOrderService {
	s.orderType = orderType

	return s
}

func (s *fakeCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.quantity = quantity

	return s
}

func (s *fakeCreateOrderService) StopPrice(stopPrice string) CreateOrderService {
	s.stopPrice = stopPrice

	return s
}

func (s *fakeCreateOrderService) ReduceOnly(reduceOnly bool) CreateOrderService {
	s.reduceOnly = reduceOnly

	return s
}

func (s *fakeCreateOrderService) NewOrderResponseType(respType futures.NewOrderRespType) CreateOrderService {
	s.respType = respType

	return s
}

func (s *fakeCreateOrderService) Do(_ context.Context) (*futures.CreateOrderResponse, error) {
	if s.parent.orderErr != nil {
		return nil, s.parent.orderErr
	}

	return s.parent.response, nil
}

type fakeGetBalanceService struct {
	parent *fakeBinanceClient
}

func (s *fakeGetBalanceService) Do(_ context.Context) ([]*futures.Balance, error) {
	return s.parent.balances, s.parent.readErr
}

type fakeGetPositionRiskService struct {
	parent *fakeBinanceClient
}

func (s *fakeGetPositionRiskService) Do(_ context.Context) ([]*futures.PositionRisk, error) {
	return s.parent.risks, s.parent.readErr
}

type fakeCancelAllOpenOrdersService struct {
	parent *fakeBinanceClient
	symbol string
}

func (s *fakeCancelAllOpenOrdersService) Symbol(symbol string) CancelAllOpenOrdersService {
	s.symbol = symbol

	return s
}

func (s *fakeCancelAllOpenOrdersService) Do(_ context.Context) error {
	s.parent.cancelled = append(s.parent.cancelled, s.symbol)

	return nil
}

type fakeChangeLeverageService struct {
	parent   *fakeBinanceClient
	symbol   string
	leverage int
}

func (s *fakeChangeLeverageService) Symbol(symbol string) ChangeLeverageService {
	s.symbol = symbol

	return s
}

func (s *fakeChangeLeverageService) Leverage(leverage int) ChangeLeverageService {
	s.leverage = leverage

	return s
}

func (s *fakeChangeLeverageService) Do(_ context.Context) (*futures.SymbolLeverage, error) {
	s.parent.leverage[s.symbol] = s.leverage

	return &futures.SymbolLeverage{Symbol: s.symbol, Leverage: s.leverage}, nil
}

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }

func (timeoutError) Timeout() bool { return true }

func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

type BinanceTestSuite struct {
	suite.Suite
	api    *fakeBinanceClient
	client *Binance
}

func TestBinanceSuite(t *testing.T) {
	suite.Run(t, new(BinanceTestSuite))
}

func (suite *BinanceTestSuite) SetupTest() {
	suite.api = newFakeBinanceClient()
	suite.client = NewBinanceWithClient(suite.api, BinanceConfig{
		APIKey:            "key",
		SecretKey:         "secret",
		QuoteAsset:        "USDT",
		Leverage:          5,
		QuantityPrecision: 3,
		PricePrecision:    2,
	}, nil)
}

func (suite *BinanceTestSuite) TestNewBinanceValidatesConfig() {
	_, err := NewBinance(BinanceConfig{QuoteAsset: "USDT", Leverage: 5}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = NewBinance(BinanceConfig{APIKey: "k", SecretKey: "s", QuoteAsset: "USDT", Leverage: 500}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *BinanceTestSuite) TestMarketOrder() {
	result, err := suite.client.PlaceMarketOrder(context.Background(), "BTCUSDT", types.OrderSideBuy, 0.0089)
	suite.Require().NoError(err)

	suite.Require().Len(suite.api.orders, 1)
	order := suite.api.orders[0]
	suite.Equal("BTCUSDT", order.symbol)
	suite.Equal(futures.SideTypeBuy, order.side)
	suite.Equal(futures.OrderTypeMarket, order.orderType)
	suite.Equal("0.008", order.quantity)
	suite.False(order.reduceOnly)
	suite.Empty(order.stopPrice)
	suite.Equal(futures.NewOrderRespTypeRESULT, order.respType)

	suite.Equal("42", result.OrderID)
	suite.Equal(50000.1, result.FillPrice)
	suite.Equal(0.008, result.FilledQty)
	suite.Equal(types.OrderStatusFilled, result.Status)
	suite.Equal(int64(1717243200000), result.Timestamp.UnixMilli())

	suite.Equal(map[string]int{"BTCUSDT": 5}, suite.api.leverage)
}

func (suite *BinanceTestSuite) TestLeverageSetOncePerInstrument() {
	for range 3 {
		_, err := suite.client.PlaceMarketOrder(context.Background(), "ETHUSDT", types.OrderSideSell, 1)
		suite.Require().NoError(err)
	}

	suite.Len(suite.api.orders, 3)
	suite.Equal(map[string]int{"ETHUSDT": 5}, suite.api.leverage)
}

func (suite *BinanceTestSuite) TestProtectiveOrders() {
	_, err := suite.client.PlaceStopOrder(context.Background(), "BTCUSDT", types.OrderSideSell, 0.008, 49625.129)
	suite.Require().NoError(err)

	_, err = suite.client.PlaceTargetOrder(context.Background(), "BTCUSDT", types.OrderSideSell, 0.008, 50750)
	suite.Require().NoError(err)

	suite.Require().Len(suite.api.orders, 2)

	stop := suite.api.orders[0]
	suite.Equal(futures.OrderTypeStopMarket, stop.orderType)
	suite.Equal(futures.SideTypeSell, stop.side)
	suite.Equal("49625.12", stop.stopPrice)
	suite.True(stop.reduceOnly)

	target := suite.api.orders[1]
	suite.Equal(futures.OrderTypeTakeProfitMarket, target.orderType)
	suite.Equal("50750.00", target.stopPrice)
	suite.True(target.reduceOnly)

	suite.Empty(suite.api.leverage, "protective orders do not touch leverage")
}

func (suite *BinanceTestSuite) TestQuantityTooSmall() {
	_, err := suite.client.PlaceMarketOrder(context.Background(), "BTCUSDT", types.OrderSideBuy, 0.0004)
	suite.True(errors.HasCode(err, errors.ErrCodeExchangeTerminal))
	suite.Empty(suite.api.orders)
}

func (suite *BinanceTestSuite) TestErrorClassification() {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{name: "rate limited", err: &common.APIError{Code: -1003, Message: "too many requests"}, code: errors.ErrCodeExchangeTransient},
		{name: "timeout code", err: &common.APIError{Code: -1007, Message: "timeout"}, code: errors.ErrCodeExchangeTransient},
		{name: "bad signature", err: &common.APIError{Code: -1022, Message: "signature"}, code: errors.ErrCodeExchangeAuth},
		{name: "rejected key", err: &common.APIError{Code: -2015, Message: "invalid key"}, code: errors.ErrCodeExchangeAuth},
		{name: "insufficient margin", err: &common.APIError{Code: -2019, Message: "margin is insufficient"}, code: errors.ErrCodeExchangeTerminal},
		{name: "network timeout", err: timeoutError{}, code: errors.ErrCodeExchangeTransient},
		{name: "deadline", err: context.DeadlineExceeded, code: errors.ErrCodeExchangeTransient},
		{name: "cancelled", err: context.Canceled, code: errors.ErrCodeExchangeTerminal},
		{name: "unknown", err: stderrors.New("unexpected EOF"), code: errors.ErrCodeExchangeTransient},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.api.orderErr = tc.err
			_, err := suite.client.PlaceStopOrder(context.Background(), "BTCUSDT", types.OrderSideSell, 1, 100)
			suite.Equal(tc.code, errors.GetCode(err))
			suite.Equal(tc.code == errors.ErrCodeExchangeTransient, IsTransient(err))
			suite.Equal(tc.code == errors.ErrCodeExchangeAuth, IsAuth(err))
		})
	}
}

func (suite *BinanceTestSuite) TestGetBalance() {
	suite.api.balances = []*futures.Balance{
		{Asset: "BNB", Balance: "3", AvailableBalance: "3"},
		{Asset: "USDT", Balance: "1000.50", AvailableBalance: "800.25"},
	}

	balance, err := suite.client.GetBalance(context.Background())
	suite.Require().NoError(err)
	suite.Equal(1000.5, balance.Total)
	suite.Equal(800.25, balance.Available)
	suite.InDelta(200.25, balance.Locked, 1e-9)

	suite.api.balances = []*futures.Balance{{Asset: "USDT", Balance: "x"}}
	_, err = suite.client.GetBalance(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeExchangeTerminal))

	suite.api.readErr = &common.APIError{Code: -2014, Message: "bad key"}
	_, err = suite.client.GetBalance(context.Background())
	suite.True(IsAuth(err))
}

func (suite *BinanceTestSuite) TestListOpenPositions() {
	suite.api.risks = []*futures.PositionRisk{
		{Symbol: "BTCUSDT", PositionAmt: "0.010", EntryPrice: "50000", MarkPrice: "50500"},
		{Symbol: "ETHUSDT", PositionAmt: "0", EntryPrice: "0", MarkPrice: "3000"},
		{Symbol: "SOLUSDT", PositionAmt: "-2", EntryPrice: "150", MarkPrice: "140"},
	}

	positions, err := suite.client.ListOpenPositions(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(positions, 2)

	btc := positions[0]
	suite.Equal("BTCUSDT", btc.Instrument)
	suite.Equal(types.SideLong, btc.Side)
	suite.Equal(0.01, btc.Size)
	suite.Equal(100.0, btc.Margin)
	suite.Equal(50500.0, btc.CurrentPrice)
	suite.Equal(types.PositionStateMonitoring, btc.State)

	sol := positions[1]
	suite.Equal(types.SideShort, sol.Side)
	suite.Equal(2.0, sol.Size)
	suite.Equal(60.0, sol.Margin)

	again, err := suite.client.ListOpenPositions(context.Background())
	suite.NoError(err)
	suite.Equal(btc.ID, again[0].ID, "ids are stable across listings")
}

func (suite *BinanceTestSuite) TestCancelOpenOrders() {
	var client Client = suite.client

	canceller, ok := client.(OrderCanceller)
	suite.Require().True(ok)
	suite.NoError(canceller.CancelOpenOrders(context.Background(), "BTCUSDT"))
	suite.Equal([]string{"BTCUSDT"}, suite.api.cancelled)

	_, isJournal := client.(Journal)
	suite.False(isJournal)
}

func (suite *BinanceTestSuite) TestClosePositionIsReduceOnly() {
	suite.api.risks = []*futures.PositionRisk{
		{Symbol: "BTCUSDT", PositionAmt: "0.006", EntryPrice: "50000", MarkPrice: "49000"},
	}

	var client Client = suite.client

	closer, ok := client.(PositionCloser)
	suite.Require().True(ok)

	_, err := closer.ClosePosition(context.Background(), "BTCUSDT", types.SideLong, 0.008)
	suite.Require().NoError(err)

	suite.Require().Len(suite.api.orders, 1)
	order := suite.api.orders[0]
	suite.Equal(futures.OrderTypeMarket, order.orderType)
	suite.Equal(futures.SideTypeSell, order.side)
	suite.True(order.reduceOnly)
	suite.Empty(order.stopPrice)
	suite.Equal("0.006", order.quantity, "never more than the exchange still holds")
}

func (suite *BinanceTestSuite) TestClosePositionAlreadyFlat() {
	suite.api.risks = []*futures.PositionRisk{
		{Symbol: "BTCUSDT", PositionAmt: "0", EntryPrice: "0", MarkPrice: "48000"},
		{Symbol: "ETHUSDT", PositionAmt: "-1", EntryPrice: "3000", MarkPrice: "3000"},
	}

	_, err := suite.client.ClosePosition(context.Background(), "BTCUSDT", types.SideLong, 0.008)
	suite.True(IsPositionGone(err))

	_, err = suite.client.ClosePosition(context.Background(), "ETHUSDT", types.SideLong, 1)
	suite.True(IsPositionGone(err), "a short is not closed by a long exit")
	suite.Empty(suite.api.orders)

	suite.api.readErr = &common.APIError{Code: -1008, Message: "busy"}
	_, err = suite.client.ClosePosition(context.Background(), "ETHUSDT", types.SideShort, 1)
	suite.True(IsTransient(err))
	suite.Empty(suite.api.orders)
}
