package position

import (
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ManagerTestSuite struct {
	suite.Suite
	manager *Manager
	clock   time.Time
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (suite *ManagerTestSuite) SetupTest() {
	suite.manager = suite.newManager(Config{
		TrailingEnabled:   true,
		TrailingPct:       0.015,
		ReversalEnabled:   true,
		ReversalThreshold: 0.7,
	})
}

func (suite *ManagerTestSuite) newManager(config Config) *Manager {
	m, err := NewManager(config, nil)
	suite.Require().NoError(err)

	suite.clock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return suite.clock }

	return m
}

func longAt100() types.Position {
	return types.Position{
		Instrument:  "BTCUSDT",
		Side:        types.SideLong,
		EntryPrice:  100,
		Size:        2,
		Leverage:    5,
		Margin:      40,
		StopPrice:   98,
		TargetPrice: 106,
	}
}

func shortAt100() types.Position {
	return types.Position{
		Instrument:  "ETHUSDT",
		Side:        types.SideShort,
		EntryPrice:  100,
		Size:        1,
		Leverage:    2,
		Margin:      50,
		StopPrice:   102,
		TargetPrice: 94,
	}
}

func (suite *ManagerTestSuite) hold() optional.Option[types.Signal] {
	return optional.None[types.Signal]()
}

func (suite *ManagerTestSuite) TestOpen() {
	p, err := suite.manager.Open(longAt100())
	suite.Require().NoError(err)

	suite.NotEmpty(p.ID)
	suite.Equal(types.PositionStateOpen, p.State)
	suite.Equal(suite.clock, p.OpenedAt)
	suite.True(p.TrailingEnabled)
	suite.Equal(0.015, p.TrailingDistance)
	suite.Equal(1, suite.manager.Count())
	suite.True(suite.manager.HasInstrument("BTCUSDT"))

	_, err = suite.manager.Evaluate(p.ID, 100, suite.hold())
	suite.NoError(err)

	got, ok := suite.manager.Get(p.ID)
	suite.True(ok)
	suite.Equal(types.PositionStateMonitoring, got.State)
}

func (suite *ManagerTestSuite) TestOpenRejectsBadLevels() {
	p := longAt100()
	p.StopPrice = 101

	_, err := suite.manager.Open(p)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidStopLoss))

	s := shortAt100()
	s.TargetPrice = 101

	_, err = suite.manager.Open(s)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidStopLoss))
	suite.Zero(suite.manager.Count())
}

func (suite *ManagerTestSuite) TestOneOpenPositionPerInstrument() {
	_, err := suite.manager.Open(longAt100())
	suite.Require().NoError(err)

	_, err = suite.manager.Open(longAt100())
	suite.True(errors.HasCode(err, errors.ErrCodeDuplicatePosition))

	_, err = suite.manager.Open(shortAt100())
	suite.NoError(err)
	suite.Equal(2, suite.manager.Count())
}

func (suite *ManagerTestSuite) TestTrailingScenario() {
	p, err := suite.manager.Open(longAt100())
	suite.Require().NoError(err)

	eval, err := suite.manager.Evaluate(p.ID, 100, suite.hold())
	suite.NoError(err)
	suite.False(eval.Close)
	suite.False(eval.StopUpdated, "not profitable at entry")
	suite.Equal(98.0, eval.Stop)

	eval, err = suite.manager.Evaluate(p.ID, 103, suite.hold())
	suite.NoError(err)
	suite.False(eval.Close)
	suite.True(eval.StopUpdated)
	// 103 × (1 − 0.015)
	suite.InDelta(101.455, eval.Stop, 1e-9)

	eval, err = suite.manager.Evaluate(p.ID, 102, suite.hold())
	suite.NoError(err)
	suite.False(eval.Close)
	suite.False(eval.StopUpdated, "102 would trail to 100.47, below the current stop")
	suite.InDelta(101.455, eval.Stop, 1e-9)

	eval, err = suite.manager.Evaluate(p.ID, 107, suite.hold())
	suite.NoError(err)
	suite.True(eval.Close)
	suite.Equal(types.CloseReasonTakeProfit, eval.Reason)

	record, err := suite.manager.Close(p.ID, 107, eval.Reason)
	suite.NoError(err)
	suite.Equal(70.0, record.RealizedPnL)
	suite.Equal(175.0, record.PnLPercent)
	suite.Zero(suite.manager.Count())
}

func (suite *ManagerTestSuite) TestPullbackBelowTrailedStopCloses() {
	p, err := suite.manager.Open(longAt100())
	suite.Require().NoError(err)

	for _, price := range []float64{100, 103} {
		_, err := suite.manager.Evaluate(p.ID, price, suite.hold())
		suite.Require().NoError(err)
	}

	// 101 sits below the trailed stop of 101.455: the stop holds and fires
	eval, err := suite.manager.Evaluate(p.ID, 101, suite.hold())
	suite.NoError(err)
	suite.True(eval.Close)
	suite.Equal(types.CloseReasonStopLoss, eval.Reason)
	suite.InDelta(101.455, eval.Stop, 1e-9)

	record, err := suite.manager.Close(p.ID, 101, eval.Reason)
	suite.NoError(err)
	suite.Greater(record.RealizedPnL, 0.0, "trailed stop locked in profit")
}

func (suite *ManagerTestSuite) TestTrailingIsMonotonic() {
	long, err := suite.manager.Open(longAt100())
	suite.Require().NoError(err)
	short, err := suite.manager.Open(shortAt100())
	suite.Require().NoError(err)

	lastLong, lastShort := long.StopPrice, short.StopPrice

	for _, price := range []float64{100.5, 104, 103, 105.5, 104.2, 105.9} {
		eval, err := suite.manager.Evaluate(long.ID, price, suite.hold())
		suite.Require().NoError(err)
		suite.Require().False(eval.Close, "price %v", price)
		suite.GreaterOrEqual(eval.Stop, lastLong)
		lastLong = eval.Stop
	}

	for _, price := range []float64{99.5, 96, 97, 95.2, 96.1, 94.5} {
		eval, err := suite.manager.Evaluate(short.ID, price, suite.hold())
		suite.Require().NoError(err)
		suite.Require().False(eval.Close, "price %v", price)
		suite.LessOrEqual(eval.Stop, lastShort)
		lastShort = eval.Stop
	}

	suite.InDelta(105.9*0.985, lastLong, 1e-9)
	suite.InDelta(94.5*1.015, lastShort, 1e-9)
}

func (suite *ManagerTestSuite) TestTrailingDisabled() {
	m := suite.newManager(Config{})

	p, err := m.Open(longAt100())
	suite.Require().NoError(err)
	suite.False(p.TrailingEnabled)

	eval, err := m.Evaluate(p.ID, 105, suite.hold())
	suite.NoError(err)
	suite.False(eval.StopUpdated)
	suite.Equal(98.0, eval.Stop)
}

func (suite *ManagerTestSuite) TestPositionTrailingOverridesAccount() {
	off := longAt100()
	off.TrailingDistance = 0.02
	off.TrailingEnabled = false

	p, err := suite.manager.Open(off)
	suite.Require().NoError(err)
	suite.False(p.TrailingEnabled)
	suite.Equal(0.02, p.TrailingDistance)

	eval, err := suite.manager.Evaluate(p.ID, 105, suite.hold())
	suite.NoError(err)
	suite.False(eval.StopUpdated)
	suite.Equal(98.0, eval.Stop)

	wide := shortAt100()
	wide.TrailingDistance = 0.03
	wide.TrailingEnabled = true

	s, err := suite.manager.Open(wide)
	suite.Require().NoError(err)
	suite.True(s.TrailingEnabled)
	suite.Equal(0.03, s.TrailingDistance)
}

func (suite *ManagerTestSuite) TestDiscard() {
	p, err := suite.manager.Open(longAt100())
	suite.Require().NoError(err)

	suite.True(suite.manager.Discard(p.ID))
	suite.False(suite.manager.HasInstrument("BTCUSDT"))
	suite.False(suite.manager.Discard(p.ID))

	_, err = suite.manager.Close(p.ID, 101, types.CloseReasonManual)
	suite.True(errors.HasCode(err, errors.ErrCodePositionClosed))
}

func (suite *ManagerTestSuite) TestShortExits() {
	p, err := suite.manager.Open(shortAt100())
	suite.Require().NoError(err)

	eval, err := suite.manager.Evaluate(p.ID, 102, suite.hold())
	suite.NoError(err)
	suite.True(eval.Close)
	suite.Equal(types.CloseReasonStopLoss, eval.Reason)

	record, err := suite.manager.Close(p.ID, 102, eval.Reason)
	suite.NoError(err)
	// (100 − 102) × 1 × 2
	suite.Equal(-4.0, record.RealizedPnL)
	suite.Equal(-8.0, record.PnLPercent)
	suite.Equal(types.SideShort, record.Side)

	p, err = suite.manager.Open(shortAt100())
	suite.Require().NoError(err)

	eval, err = suite.manager.Evaluate(p.ID, 93, suite.hold())
	suite.NoError(err)
	suite.Equal(types.CloseReasonTakeProfit, eval.Reason)
}

func (suite *ManagerTestSuite) TestPriority() {
	strongShort := optional.Some(types.NewSignal(types.ActionShort, 0.9, []string{"reversal"}, nil))

	tests := []struct {
		name   string
		price  float64
		reason types.CloseReason
	}{
		{"stop beats reversal", 97, types.CloseReasonStopLoss},
		{"target beats reversal", 106, types.CloseReasonTakeProfit},
		{"reversal inside the range", 101, types.CloseReasonReversal},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			m := suite.newManager(Config{ReversalEnabled: true, ReversalThreshold: 0.7})
			p, err := m.Open(longAt100())
			suite.Require().NoError(err)

			eval, err := m.Evaluate(p.ID, tt.price, strongShort)
			suite.NoError(err)
			suite.True(eval.Close)
			suite.Equal(tt.reason, eval.Reason)
		})
	}
}

func (suite *ManagerTestSuite) TestReversalThreshold() {
	p, err := suite.manager.Open(longAt100())
	suite.Require().NoError(err)

	tests := []struct {
		name   string
		signal types.Signal
	}{
		{"weak opposing", types.NewSignal(types.ActionShort, 0.7, nil, nil)},
		{"same side", types.NewSignal(types.ActionLong, 0.95, nil, nil)},
		{"flat", types.NewFlatSignal("quiet")},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			eval, err := suite.manager.Evaluate(p.ID, 101, optional.Some(tt.signal))
			suite.NoError(err)
			suite.False(eval.Close)
		})
	}

	m := suite.newManager(Config{})
	q, err := m.Open(longAt100())
	suite.Require().NoError(err)

	eval, err := m.Evaluate(q.ID, 101, optional.Some(types.NewSignal(types.ActionShort, 1, nil, nil)))
	suite.NoError(err)
	suite.False(eval.Close, "reversal disabled")
}

func (suite *ManagerTestSuite) TestCloseExactlyOnce() {
	p, err := suite.manager.Open(longAt100())
	suite.Require().NoError(err)

	suite.clock = suite.clock.Add(90 * time.Minute)

	record, err := suite.manager.Close(p.ID, 99, types.CloseReasonManual)
	suite.NoError(err)
	suite.Equal(p.ID, record.PositionID)
	suite.NotEmpty(record.ID)
	suite.Equal(-10.0, record.RealizedPnL)
	suite.Equal(90*time.Minute, record.HoldingTime())

	_, err = suite.manager.Close(p.ID, 99, types.CloseReasonManual)
	suite.True(errors.HasCode(err, errors.ErrCodePositionClosed))

	_, err = suite.manager.Evaluate(p.ID, 99, suite.hold())
	suite.True(errors.HasCode(err, errors.ErrCodePositionNotFound))
}

func (suite *ManagerTestSuite) TestInvalidPrices() {
	p, err := suite.manager.Open(longAt100())
	suite.Require().NoError(err)

	_, err = suite.manager.Evaluate(p.ID, 0, suite.hold())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = suite.manager.Close(p.ID, -1, types.CloseReasonManual)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
	suite.Equal(1, suite.manager.Count())
}

func (suite *ManagerTestSuite) TestRestoreAndListing() {
	older := longAt100()
	older.ID = "older"
	older.OpenedAt = suite.clock.Add(-time.Hour)

	newer := shortAt100()
	newer.ID = "newer"
	newer.OpenedAt = suite.clock
	newer.CurrentPrice = 99

	suite.NoError(suite.manager.Restore([]types.Position{newer, older}))
	suite.NoError(suite.manager.Restore([]types.Position{older}), "already tracked positions are skipped")

	positions := suite.manager.Positions()
	suite.Require().Len(positions, 2)
	suite.Equal("older", positions[0].ID)
	suite.Equal(types.PositionStateMonitoring, positions[1].State)

	// long at 100 marked at entry, short marked at 99: (100 − 99) × 1 × 2
	suite.Equal(2.0, suite.manager.UnrealizedPnL())

	bad := longAt100()
	bad.ID = "bad"
	bad.TargetPrice = 90
	suite.Error(suite.manager.Restore([]types.Position{bad}))
}

func (suite *ManagerTestSuite) TestConcurrentReaders() {
	p, err := suite.manager.Open(longAt100())
	suite.Require().NoError(err)

	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				_ = suite.manager.Positions()
				_ = suite.manager.UnrealizedPnL()
			}
		}()
	}

	for _, price := range []float64{100.5, 101, 102, 103} {
		_, err := suite.manager.Evaluate(p.ID, price, suite.hold())
		suite.NoError(err)
	}

	wg.Wait()
}

func (suite *ManagerTestSuite) TestNewManagerValidates() {
	_, err := NewManager(Config{TrailingPct: 1.5}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
