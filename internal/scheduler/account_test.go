package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rxtech-lab/argo-bot/internal/combiner"
	"github.com/rxtech-lab/argo-bot/internal/events"
	"github.com/rxtech-lab/argo-bot/internal/exchange"
	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/ledger"
	"github.com/rxtech-lab/argo-bot/internal/position"
	"github.com/rxtech-lab/argo-bot/internal/sizing"
	"github.com/rxtech-lab/argo-bot/internal/strategy"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/mocks"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const (
	testStrategyID = "scripted"
	btc            = "BTCUSDT"
	eth            = "ETHUSDT"
)

// market is the scripted state the mocks read from. It is shared by the loops of the isolation test.
type market struct {
	mu       sync.Mutex
	prices   map[string]float64
	signals  map[string]types.Signal
	fetchErr map[string]error
	atr      map[string]float64
}

func newMarket() *market {
	return &market{
		prices:   map[string]float64{btc: 50000, eth: 2500},
		signals:  map[string]types.Signal{},
		fetchErr: map[string]error{},
		atr:      map[string]float64{},
	}
}

func (m *market) setPrice(instrument string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prices[instrument] = price
}

func (m *market) setSignal(instrument string, action types.Action, strength float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if action == types.ActionFlat {
		m.signals[instrument] = types.NewFlatSignal("scripted flat")

		return
	}

	m.signals[instrument] = types.NewSignal(action, strength, []string{"scripted"}, nil)
}

func (m *market) price(instrument string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.prices[instrument]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeMarketDataFetchFailed, "no price for %s", instrument)
	}

	return price, nil
}

func (m *market) table(instrument string, tf types.Timeframe) (marketdata.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fetchErr[instrument]; err != nil {
		return marketdata.Table{}, err
	}

	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	price := m.prices[instrument]
	table := marketdata.NewTable(instrument, tf, mocks.Ramp(instrument, tf, end, 3, price*0.99, price))

	if atr, ok := m.atr[instrument]; ok {
		table = table.WithColumns(map[string][]float64{indicator.ColumnATR: {atr, atr, atr}})
	}

	return table, nil
}

func (m *market) signal(data marketdata.Frames) types.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := data[types.Timeframe1h]
	if s, ok := m.signals[table.Instrument]; ok {
		return s
	}

	return types.NewFlatSignal("no script for " + table.Instrument)
}

// provider returns a mock provider backed by m.
func (m *market) provider(ctrl *gomock.Controller) *mocks.MockProvider {
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, instrument string, tf types.Timeframe) (marketdata.Table, error) {
			return m.table(instrument, tf)
		}).AnyTimes()
	provider.EXPECT().GetLatestPrice(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, instrument string) (float64, error) {
			return m.price(instrument)
		}).AnyTimes()

	return provider
}

func scriptedDescriptor(id string) types.StrategyDescriptor {
	return types.StrategyDescriptor{
		ID:         id,
		Name:       "Scripted",
		Version:    "1.0.0",
		Timeframes: []types.Timeframe{types.Timeframe1h},
		Indicators: []types.IndicatorType{types.IndicatorTypeEMA},
		Parameters: map[string]any{},
	}
}

// catalog registers a mock strategy under id that answers from m.
func scriptedCatalog(ctrl *gomock.Controller, ms map[string]*market) *strategy.Catalog {
	catalog := strategy.NewCatalog()

	for id, m := range ms {
		err := catalog.Register(scriptedDescriptor(id), func(strategy.Params) (strategy.Strategy, error) {
			s := mocks.NewMockStrategy(ctrl)
			s.EXPECT().Descriptor().Return(scriptedDescriptor(id)).AnyTimes()
			s.EXPECT().RequiredTimeframes().Return([]types.Timeframe{types.Timeframe1h}).AnyTimes()
			s.EXPECT().RequiredIndicators().Return([]types.IndicatorType{types.IndicatorTypeEMA}).AnyTimes()
			s.EXPECT().Analyze(gomock.Any(), gomock.Any()).DoAndReturn(
				func(data marketdata.Frames, _ float64) types.Signal {
					return m.signal(data)
				}).AnyTimes()

			return s, nil
		})
		if err != nil {
			panic(err)
		}
	}

	return catalog
}

func testAccountConfig(id string) AccountConfig {
	return AccountConfig{
		ID:       id,
		Strategy: testStrategyID,
		Trading: TradingConfig{
			Instruments:      []string{btc, eth},
			MinStrength:      0.5,
			ScanInterval:     time.Minute,
			MaxOpenPositions: 1,
			EnableLong:       true,
			EnableShort:      true,
			ATRTimeframe:     types.Timeframe1h,
		},
		Sizing: sizing.Config{Leverage: 5, MaxPositionPct: 0.1, SizePrecision: 3},
		Stops: sizing.StopConfig{
			StopLossPct:         0.02,
			TakeProfitPct:       0.04,
			ATRStopMultiplier:   1.5,
			ATRTargetMultiplier: 3,
		},
		Position: position.Config{
			TrailingEnabled:   true,
			TrailingPct:       0.015,
			ReversalEnabled:   true,
			ReversalThreshold: 0.7,
		},
		Combiner: combiner.DefaultConfig(),
	}
}

type recordingHistory struct {
	mu      sync.Mutex
	records map[string][]types.TradeRecord
}

func (h *recordingHistory) Insert(account string, record types.TradeRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.records == nil {
		h.records = map[string][]types.TradeRecord{}
	}

	h.records[account] = append(h.records[account], record)

	return nil
}

type AccountTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	market    *market
	provider  *mocks.MockProvider
	publisher *mocks.MockPublisher
	events    []events.Event
	history   *recordingHistory
	recorder  *Recorder
	ledger    *ledger.Ledger
	paper     *exchange.PaperClient
	config    AccountConfig
}

func TestAccountSuite(t *testing.T) {
	suite.Run(t, new(AccountTestSuite))
}

func (suite *AccountTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.market = newMarket()
	suite.provider = suite.market.provider(suite.ctrl)
	suite.events = nil
	suite.publisher = mocks.NewMockPublisher(suite.ctrl)
	suite.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event events.Event) error {
			suite.events = append(suite.events, event)

			return nil
		}).AnyTimes()
	suite.history = &recordingHistory{}
	suite.recorder = NewRecorder(prometheus.NewRegistry())
	suite.ledger = ledger.New(10000)
	suite.paper = exchange.NewPaperClient(suite.ledger, suite.provider, nil)
	suite.config = testAccountConfig("alice")
}

func (suite *AccountTestSuite) newAccount(client exchange.Client) *AccountContext {
	account, err := NewAccount(suite.config, Dependencies{
		Catalog:   scriptedCatalog(suite.ctrl, map[string]*market{testStrategyID: suite.market}),
		Provider:  suite.provider,
		Exchange:  client,
		History:   suite.history,
		Publisher: suite.publisher,
		Recorder:  suite.recorder,
	})
	suite.Require().NoError(err)

	return account
}

func (suite *AccountTestSuite) kinds() []events.Kind {
	out := make([]events.Kind, 0, len(suite.events))
	for _, e := range suite.events {
		out = append(out, e.Kind)
	}

	return out
}

func (suite *AccountTestSuite) TestNewAccountDefaultsToCombiner() {
	suite.config.Strategy = ""
	account, err := NewAccount(suite.config, Dependencies{Provider: suite.provider, Exchange: suite.paper})
	suite.Require().NoError(err)

	suite.Equal(combiner.ID, account.Registry().ActiveID())
	suite.Equal([]string{combiner.ID}, account.Registry().Strategies())
}

func (suite *AccountTestSuite) TestNewAccountRejectsBadConfig() {
	config := suite.config
	config.ID = ""
	_, err := NewAccount(config, Dependencies{Provider: suite.provider, Exchange: suite.paper})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	config = suite.config
	config.Trading.MaxOpenPositions = 0
	_, err = NewAccount(config, Dependencies{Provider: suite.provider, Exchange: suite.paper})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = NewAccount(suite.config, Dependencies{Exchange: suite.paper})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	config = suite.config
	config.Strategy = "missing"
	_, err = NewAccount(config, Dependencies{
		Catalog:  strategy.DefaultCatalog(),
		Provider: suite.provider,
		Exchange: suite.paper,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyNotFound))

	config = suite.config
	config.Combiner = combiner.DefaultConfig()
	config.Combiner.Weights = map[types.Horizon]float64{types.HorizonLong: 0.9}
	_, err = NewAccount(config, Dependencies{Provider: suite.provider, Exchange: suite.paper})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidWeights))
}

func (suite *AccountTestSuite) TestSetStrategyKeepsInstancesPerAccount() {
	suite.config.Strategy = ""
	account, err := NewAccount(suite.config, Dependencies{
		Catalog:  strategy.DefaultCatalog(),
		Provider: suite.provider,
		Exchange: suite.paper,
	})
	suite.Require().NoError(err)

	suite.Require().NoError(account.SetStrategy(strategy.EMACrossoverID, nil))
	suite.Equal(strategy.EMACrossoverID, account.Registry().ActiveID())

	suite.Require().NoError(account.SetStrategy(combiner.ID, nil))
	suite.Require().NoError(account.SetStrategy(strategy.EMACrossoverID, nil))
	suite.Equal([]string{strategy.EMACrossoverID, combiner.ID}, account.Registry().Strategies())

	err = account.SetStrategy("missing", nil)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyNotFound))
	suite.Equal(strategy.EMACrossoverID, account.Registry().ActiveID())
}

func (suite *AccountTestSuite) TestSetStrategyRebuildsWithNewParams() {
	suite.config.Strategy = ""
	account, err := NewAccount(suite.config, Dependencies{
		Catalog:  strategy.DefaultCatalog(),
		Provider: suite.provider,
		Exchange: suite.paper,
	})
	suite.Require().NoError(err)

	fastPeriod := func() any {
		s, ok := account.Registry().Active()
		suite.Require().True(ok)

		return s.Descriptor().Parameters["fast_period"]
	}

	suite.Require().NoError(account.SetStrategy(strategy.EMACrossoverID, nil))
	suite.Equal(float64(9), fastPeriod())

	suite.Require().NoError(account.SetStrategy(strategy.EMACrossoverID, strategy.Params{"fast_period": 5, "slow_period": 20}))
	suite.Equal(strategy.EMACrossoverID, account.Registry().ActiveID())
	suite.Equal(float64(5), fastPeriod())

	// nil params reactivate what is there
	suite.Require().NoError(account.SetStrategy(strategy.EMACrossoverID, nil))
	suite.Equal(float64(5), fastPeriod())

	err = account.SetStrategy(strategy.EMACrossoverID, strategy.Params{"fast_period": 30, "slow_period": 20})
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyConfigError))
	suite.Equal(float64(5), fastPeriod())

	err = account.SetStrategy(combiner.ID, strategy.Params{"fast_period": 5})
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyConfigError))
	suite.Equal(strategy.EMACrossoverID, account.Registry().ActiveID())
}

func (suite *AccountTestSuite) TestOpensStrongestSignalFirst() {
	suite.market.setSignal(btc, types.ActionLong, 0.8)
	suite.market.setSignal(eth, types.ActionLong, 0.6)

	account := suite.newAccount(suite.paper)
	report := account.RunCycle(context.Background())

	suite.False(report.Skipped)
	suite.Zero(report.Errors)
	suite.Equal(types.HealthHealthy, report.Health.Status)
	suite.Require().Len(report.Opened, 1)

	opened := report.Opened[0]
	suite.Equal(btc, opened.Instrument)
	suite.Equal(types.SideLong, opened.Side)
	suite.Equal(50000.0, opened.EntryPrice)
	suite.Equal(0.08, opened.Size)
	suite.Equal(800.0, opened.Margin)
	suite.Equal(49000.0, opened.StopPrice)
	suite.Equal(52000.0, opened.TargetPrice)
	suite.Equal(testStrategyID, opened.Strategy)
	suite.Equal(types.PositionStateOpen, opened.State)

	suite.Equal(types.Allow(), report.Decisions[btc])
	suite.Equal(types.BlockReasonMaxPositions, report.Decisions[eth].Reason)

	suite.Equal(types.Balance{Total: 10000, Available: 9200, Locked: 800}, suite.ledger.Balance())
	suite.Equal([]events.Kind{events.KindPositionOpened}, suite.kinds())
	suite.Equal(0.8, suite.events[0].Signal.Strength)

	suite.Equal(1.0, testutil.ToFloat64(suite.recorder.opened.WithLabelValues("alice", "long")))
	suite.Equal(1.0, testutil.ToFloat64(suite.recorder.blocked.WithLabelValues("alice", "max_positions")))
	suite.Equal(1.0, testutil.ToFloat64(suite.recorder.openPositions.WithLabelValues("alice")))
}

func (suite *AccountTestSuite) TestWeakAndFlatSignalsDoNotOpen() {
	suite.market.setSignal(btc, types.ActionFlat, 0)
	suite.market.setSignal(eth, types.ActionShort, 0.3)

	account := suite.newAccount(suite.paper)
	report := account.RunCycle(context.Background())

	suite.Empty(report.Opened)
	suite.NotContains(report.Decisions, btc)
	suite.Equal(types.BlockReasonBelowMinStrength, report.Decisions[eth].Reason)
	suite.Equal(types.Balance{Total: 10000, Available: 10000, Locked: 0}, suite.ledger.Balance())
	suite.Empty(suite.events)
	suite.Equal(1.0, testutil.ToFloat64(suite.recorder.signals.WithLabelValues("alice", "flat")))
	suite.Equal(1.0, testutil.ToFloat64(suite.recorder.signals.WithLabelValues("alice", "short")))
}

func (suite *AccountTestSuite) TestATRStops() {
	suite.config.Stops.UseATR = true
	suite.market.atr[btc] = 250
	suite.market.setSignal(btc, types.ActionLong, 0.8)

	report := suite.newAccount(suite.paper).RunCycle(context.Background())

	suite.Require().Len(report.Opened, 1)
	suite.Equal(49625.0, report.Opened[0].StopPrice)
	suite.Equal(50750.0, report.Opened[0].TargetPrice)
}

func (suite *AccountTestSuite) TestStopLossClosesAndBooksTrade() {
	suite.market.setSignal(btc, types.ActionLong, 0.8)

	account := suite.newAccount(suite.paper)
	suite.Require().Len(account.RunCycle(context.Background()).Opened, 1)

	suite.market.setSignal(btc, types.ActionFlat, 0)
	suite.market.setPrice(btc, 48900)

	report := account.RunCycle(context.Background())
	suite.Zero(report.Errors)
	suite.Require().Len(report.Closed, 1)

	record := report.Closed[0]
	suite.Equal(types.CloseReasonStopLoss, record.CloseReason)
	suite.Equal(48900.0, record.ExitPrice)
	suite.Equal(-440.0, record.RealizedPnL)

	suite.Zero(account.Positions().Count())
	suite.Equal(types.Balance{Total: 9560, Available: 9560, Locked: 0}, suite.ledger.Balance())
	suite.Equal(9560.0, report.Health.Balance.Total)
	suite.Equal([]types.TradeRecord{record}, suite.history.records["alice"])
	suite.Equal([]events.Kind{events.KindPositionOpened, events.KindPositionClosed}, suite.kinds())

	stats := account.Stats()
	suite.Equal(1, stats.TradeResult.NumberOfTrades)
	suite.Equal(1, stats.TradeResult.NumberOfLosingTrades)
	suite.Equal(-440.0, stats.TradePnl.RealizedPnL)
	suite.Equal(testStrategyID, stats.Strategy.ID)

	suite.Equal(1.0, testutil.ToFloat64(suite.recorder.closed.WithLabelValues("alice", "stop_loss")))
	suite.Equal(440.0, testutil.ToFloat64(suite.recorder.realized.WithLabelValues("alice", "loss")))
	suite.Equal(2.0, testutil.ToFloat64(suite.recorder.cycles.WithLabelValues("alice")))
}

func (suite *AccountTestSuite) TestTrailingStopIsBooked() {
	suite.market.setSignal(btc, types.ActionLong, 0.8)

	account := suite.newAccount(suite.paper)
	opened := account.RunCycle(context.Background()).Opened
	suite.Require().Len(opened, 1)

	suite.market.setPrice(btc, 51000)

	report := account.RunCycle(context.Background())
	suite.Empty(report.Closed)
	suite.Require().Len(report.Evaluations, 1)
	suite.True(report.Evaluations[0].StopUpdated)
	suite.Equal(50235.0, report.Evaluations[0].Stop)

	booked, ok := suite.ledger.Position(opened[0].ID)
	suite.Require().True(ok)
	suite.Equal(50235.0, booked.StopPrice)
	suite.Equal(types.PositionStateMonitoring, booked.State)

	suite.Equal([]events.Kind{events.KindPositionOpened, events.KindStopTrailed}, suite.kinds())
	suite.Equal(50235.0, suite.events[1].Position.StopPrice)

	suite.market.setPrice(btc, 50500)

	report = account.RunCycle(context.Background())
	suite.False(report.Evaluations[0].StopUpdated)
	suite.Equal(50235.0, report.Evaluations[0].Stop)
}

func (suite *AccountTestSuite) TestReversalClosesAndFlips() {
	suite.config.Trading.MaxOpenPositions = 2
	suite.market.setSignal(btc, types.ActionLong, 0.8)

	account := suite.newAccount(suite.paper)
	suite.Require().Len(account.RunCycle(context.Background()).Opened, 1)

	suite.market.setSignal(btc, types.ActionShort, 0.9)
	suite.market.setPrice(btc, 50100)

	report := account.RunCycle(context.Background())
	suite.Zero(report.Errors)
	suite.Require().Len(report.Closed, 1)
	suite.Equal(types.CloseReasonReversal, report.Closed[0].CloseReason)
	suite.Equal(40.0, report.Closed[0].RealizedPnL)

	suite.Require().Len(report.Opened, 1)
	short := report.Opened[0]
	suite.Equal(types.SideShort, short.Side)
	suite.Equal(0.09, short.Size)
	suite.Equal(51102.0, short.StopPrice)
	suite.Equal(48096.0, short.TargetPrice)
	suite.Equal(1, account.Positions().Count())
}

func (suite *AccountTestSuite) TestMarketDataFailureSkipsOnlyThatInstrument() {
	suite.config.Trading.MaxOpenPositions = 2
	suite.market.setSignal(btc, types.ActionLong, 0.8)
	suite.market.setSignal(eth, types.ActionLong, 0.9)
	suite.market.fetchErr[eth] = errors.New(errors.ErrCodeMarketDataFetchFailed, "klines unavailable")

	report := suite.newAccount(suite.paper).RunCycle(context.Background())

	suite.Equal(1, report.Errors)
	suite.Require().Len(report.Opened, 1)
	suite.Equal(btc, report.Opened[0].Instrument)
	suite.Equal(1.0, testutil.ToFloat64(suite.recorder.errors.WithLabelValues("alice", ErrorKindMarketData)))
}

func (suite *AccountTestSuite) TestBalanceFailureSkipsCycle() {
	client := mocks.NewMockClient(suite.ctrl)
	client.EXPECT().GetBalance(gomock.Any()).
		Return(types.Balance{}, errors.New(errors.ErrCodeExchangeTransient, "timeout"))

	report := suite.newAccount(client).RunCycle(context.Background())

	suite.True(report.Skipped)
	suite.Equal(1, report.Errors)
	suite.Equal(1.0, testutil.ToFloat64(suite.recorder.errors.WithLabelValues("alice", ErrorKindBalance)))
	suite.Equal(1.0, testutil.ToFloat64(suite.recorder.cycles.WithLabelValues("alice")))
}

func (suite *AccountTestSuite) TestCriticalAccountOnlyMonitors() {
	suite.market.setSignal(btc, types.ActionLong, 0.9)

	client := mocks.NewMockClient(suite.ctrl)
	client.EXPECT().GetBalance(gomock.Any()).
		Return(types.Balance{Total: 1000, Available: 100, Locked: 900}, nil)

	report := suite.newAccount(client).RunCycle(context.Background())

	suite.False(report.Skipped)
	suite.Equal(types.HealthCritical, report.Health.Status)
	suite.Empty(report.Opened)
	suite.Empty(report.Decisions)
	suite.Equal(0.9, testutil.ToFloat64(suite.recorder.utilization.WithLabelValues("alice")))
}

func (suite *AccountTestSuite) TestFailedCloseIsRetried() {
	suite.market.setSignal(btc, types.ActionLong, 0.8)

	client := mocks.NewMockClient(suite.ctrl)
	client.EXPECT().GetBalance(gomock.Any()).Return(types.Balance{Total: 10000, Available: 10000}, nil).AnyTimes()
	client.EXPECT().PlaceMarketOrder(gomock.Any(), btc, types.OrderSideBuy, 0.08).
		Return(types.OrderResult{OrderID: "1", FillPrice: 50000, FilledQty: 0.08, Status: types.OrderStatusFilled}, nil)
	client.EXPECT().PlaceStopOrder(gomock.Any(), btc, types.OrderSideSell, 0.08, 49000.0).
		Return(types.OrderResult{OrderID: "2", Status: types.OrderStatusPending}, nil)
	client.EXPECT().PlaceTargetOrder(gomock.Any(), btc, types.OrderSideSell, 0.08, 52000.0).
		Return(types.OrderResult{OrderID: "3", Status: types.OrderStatusPending}, nil)

	account := suite.newAccount(client)
	suite.Require().Len(account.RunCycle(context.Background()).Opened, 1)

	suite.market.setSignal(btc, types.ActionFlat, 0)
	suite.market.setPrice(btc, 48000)

	gomock.InOrder(
		client.EXPECT().PlaceMarketOrder(gomock.Any(), btc, types.OrderSideSell, 0.08).
			Return(types.OrderResult{}, errors.New(errors.ErrCodeExchangeTransient, "busy")),
		client.EXPECT().PlaceMarketOrder(gomock.Any(), btc, types.OrderSideSell, 0.08).
			Return(types.OrderResult{OrderID: "4", FillPrice: 47990, FilledQty: 0.08, Status: types.OrderStatusFilled}, nil),
	)

	report := account.RunCycle(context.Background())
	suite.Empty(report.Closed)
	suite.Equal(1, report.Errors)
	suite.Equal(1, account.Positions().Count())

	report = account.RunCycle(context.Background())
	suite.Require().Len(report.Closed, 1)
	suite.Equal(47990.0, report.Closed[0].ExitPrice)
	suite.Zero(account.Positions().Count())
}

// closingClient adds reduce-only closes to the mock client.
type closingClient struct {
	*mocks.MockClient
	result types.OrderResult
	err    error
	closes []float64
}

func (c *closingClient) ClosePosition(_ context.Context, _ string, _ types.Side, size float64) (types.OrderResult, error) {
	c.closes = append(c.closes, size)

	return c.result, c.err
}

func (suite *AccountTestSuite) expectLongEntry(client *mocks.MockClient) {
	client.EXPECT().GetBalance(gomock.Any()).Return(types.Balance{Total: 10000, Available: 10000}, nil).AnyTimes()
	client.EXPECT().PlaceMarketOrder(gomock.Any(), btc, types.OrderSideBuy, 0.08).
		Return(types.OrderResult{OrderID: "1", FillPrice: 50000, FilledQty: 0.08, Status: types.OrderStatusFilled}, nil)
	client.EXPECT().PlaceStopOrder(gomock.Any(), btc, types.OrderSideSell, 0.08, 49000.0).
		Return(types.OrderResult{OrderID: "2", Status: types.OrderStatusPending}, nil)
	client.EXPECT().PlaceTargetOrder(gomock.Any(), btc, types.OrderSideSell, 0.08, 52000.0).
		Return(types.OrderResult{OrderID: "3", Status: types.OrderStatusPending}, nil)
}

func (suite *AccountTestSuite) TestExitClosesReduceOnly() {
	suite.market.setSignal(btc, types.ActionLong, 0.8)

	client := &closingClient{
		MockClient: mocks.NewMockClient(suite.ctrl),
		result:     types.OrderResult{OrderID: "4", FillPrice: 52010, FilledQty: 0.08, Status: types.OrderStatusFilled},
	}
	suite.expectLongEntry(client.MockClient)

	account := suite.newAccount(client)
	suite.Require().Len(account.RunCycle(context.Background()).Opened, 1)

	suite.market.setSignal(btc, types.ActionFlat, 0)
	suite.market.setPrice(btc, 52100)

	// no exit market order is expected on the mock
	report := account.RunCycle(context.Background())
	suite.Zero(report.Errors)
	suite.Require().Len(report.Closed, 1)
	suite.Equal(types.CloseReasonTakeProfit, report.Closed[0].CloseReason)
	suite.Equal(52010.0, report.Closed[0].ExitPrice)
	suite.Equal([]float64{0.08}, client.closes)
}

func (suite *AccountTestSuite) TestExitBooksPositionTheExchangeAlreadyClosed() {
	suite.market.setSignal(btc, types.ActionLong, 0.8)

	client := &closingClient{
		MockClient: mocks.NewMockClient(suite.ctrl),
		err:        errors.New(errors.ErrCodePositionNotFound, "no long position on BTCUSDT"),
	}
	suite.expectLongEntry(client.MockClient)

	account := suite.newAccount(client)
	suite.Require().Len(account.RunCycle(context.Background()).Opened, 1)

	// the resting stop filled between polls
	suite.market.setSignal(btc, types.ActionFlat, 0)
	suite.market.setPrice(btc, 48000)

	report := account.RunCycle(context.Background())
	suite.Zero(report.Errors)
	suite.Require().Len(report.Closed, 1)

	record := report.Closed[0]
	suite.Equal(types.CloseReasonStopLoss, record.CloseReason)
	suite.Equal(49000.0, record.ExitPrice)
	suite.Equal(-400.0, record.RealizedPnL)
	suite.Zero(account.Positions().Count())
	suite.Equal([]types.TradeRecord{record}, suite.history.records["alice"])

	// a failure other than a missing position is retried
	suite.market.setSignal(btc, types.ActionLong, 0.8)
	suite.market.setPrice(btc, 50000)
	suite.expectLongEntry(client.MockClient)
	suite.Require().Len(account.RunCycle(context.Background()).Opened, 1)

	client.err = errors.New(errors.ErrCodeExchangeTransient, "busy")
	suite.market.setSignal(btc, types.ActionFlat, 0)
	suite.market.setPrice(btc, 48000)

	report = account.RunCycle(context.Background())
	suite.Empty(report.Closed)
	suite.Equal(1, report.Errors)
	suite.Equal(1, account.Positions().Count())
}

// flakyJournal is a paper client whose books refuse new positions while reject is set.
type flakyJournal struct {
	*exchange.PaperClient
	reject bool
}

func (j *flakyJournal) RecordOpen(p types.Position) error {
	if j.reject {
		return errors.New(errors.ErrCodeInsufficientBalance, "ledger refused the position")
	}

	return j.PaperClient.RecordOpen(p)
}

func (suite *AccountTestSuite) TestUnbookedEntryIsDropped() {
	suite.market.setSignal(btc, types.ActionLong, 0.8)

	client := &flakyJournal{PaperClient: suite.paper, reject: true}
	account := suite.newAccount(client)

	report := account.RunCycle(context.Background())
	suite.Empty(report.Opened)
	suite.Equal(1, report.Errors)
	suite.Equal(types.BlockReasonInvalidSize, report.Decisions[btc].Reason)
	suite.Zero(account.Positions().Count())
	suite.Empty(suite.ledger.Positions())
	suite.Equal(types.Balance{Total: 10000, Available: 10000, Locked: 0}, suite.ledger.Balance())
	suite.Empty(suite.events)

	client.reject = false

	report = account.RunCycle(context.Background())
	suite.Zero(report.Errors)
	suite.Require().Len(report.Opened, 1)
	suite.Equal(1, account.Positions().Count())
	suite.Len(suite.ledger.Positions(), 1)
	suite.Equal(types.Balance{Total: 10000, Available: 9200, Locked: 800}, suite.ledger.Balance())
}

func (suite *AccountTestSuite) TestRestoreDerivesMissingLevels() {
	client := mocks.NewMockClient(suite.ctrl)
	client.EXPECT().ListOpenPositions(gomock.Any()).Return([]types.Position{{
		ID:         "restored",
		Instrument: btc,
		Side:       types.SideLong,
		EntryPrice: 50000,
		Size:       0.08,
		Leverage:   5,
		Margin:     800,
		State:      types.PositionStateMonitoring,
	}}, nil)

	account := suite.newAccount(client)
	suite.Require().NoError(account.Restore(context.Background()))

	p, ok := account.Positions().Get("restored")
	suite.Require().True(ok)
	suite.Equal(49000.0, p.StopPrice)
	suite.Equal(52000.0, p.TargetPrice)
	suite.True(p.TrailingEnabled)
	suite.Equal(0.015, p.TrailingDistance)
	suite.Equal(testStrategyID, p.Strategy)
}

func (suite *AccountTestSuite) TestGateOrder() {
	account := suite.newAccount(suite.paper)
	healthy := AssessHealth(types.Balance{Total: 10000, Available: 10000})
	critical := AssessHealth(types.Balance{Total: 10000, Available: 1000, Locked: 9000})

	long := types.NewSignal(types.ActionLong, 0.8, nil, nil)
	short := types.NewSignal(types.ActionShort, 0.8, nil, nil)

	suite.Equal(types.BlockReasonFlatSignal, account.gate(btc, types.NewFlatSignal("none"), healthy).Reason)
	suite.Equal(types.BlockReasonBelowMinStrength, account.gate(btc, types.NewSignal(types.ActionLong, 0.49, nil, nil), critical).Reason)
	suite.Equal(types.BlockReasonAccountCritical, account.gate(btc, long, critical).Reason)
	suite.Equal(types.Allow(), account.gate(btc, long, healthy))

	account.config.Trading.EnableShort = false
	suite.Equal(types.BlockReasonSideDisabled, account.gate(btc, short, critical).Reason)

	_, err := account.Positions().Open(types.Position{
		Instrument:  btc,
		Side:        types.SideLong,
		EntryPrice:  50000,
		Size:        0.08,
		Leverage:    5,
		Margin:      800,
		StopPrice:   49000,
		TargetPrice: 52000,
	})
	suite.Require().NoError(err)

	suite.Equal(types.BlockReasonDuplicatePosition, account.gate(btc, long, critical).Reason)
	suite.Equal(types.BlockReasonMaxPositions, account.gate(eth, long, critical).Reason)
}

func (suite *AccountTestSuite) TestAssessHealth() {
	tests := []struct {
		balance types.Balance
		status  types.HealthStatus
	}{
		{types.Balance{}, types.HealthHealthy},
		{types.Balance{Total: 100, Available: 40, Locked: 60}, types.HealthHealthy},
		{types.Balance{Total: 100, Available: 30, Locked: 70}, types.HealthWarning},
		{types.Balance{Total: 100, Available: 20, Locked: 80}, types.HealthWarning},
		{types.Balance{Total: 100, Available: 19, Locked: 81}, types.HealthCritical},
	}

	for _, tt := range tests {
		health := AssessHealth(tt.balance)
		suite.Equal(tt.status, health.Status, "balance %+v", tt.balance)
		suite.Equal(tt.balance, health.Balance)
		suite.Equal(tt.status != types.HealthCritical, health.CanOpen())
	}
}
