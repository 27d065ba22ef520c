package ledger

import (
	"slices"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"go.uber.org/zap"
)

// accumulator holds running statistics for closed trades.
type accumulator struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	RealizedPnL   float64
	UnrealizedPnL float64
	GrossWin      float64
	GrossLoss     float64
	MaxProfit     float64
	MaxLoss       float64
	MaxDrawdown   float64
	PeakPnL       float64
	HoldingTimes  []int // in seconds
}

func newAccumulator() *accumulator {
	return &accumulator{HoldingTimes: make([]int, 0)}
}

func (acc *accumulator) add(trade types.TradeRecord) {
	acc.TotalTrades++
	acc.RealizedPnL += trade.RealizedPnL

	switch {
	case trade.RealizedPnL > 0:
		acc.WinningTrades++
		acc.GrossWin += trade.RealizedPnL
	case trade.RealizedPnL < 0:
		acc.LosingTrades++
		acc.GrossLoss += trade.RealizedPnL
	}

	acc.MaxProfit = max(acc.MaxProfit, trade.RealizedPnL)
	acc.MaxLoss = min(acc.MaxLoss, trade.RealizedPnL)

	acc.PeakPnL = max(acc.PeakPnL, acc.RealizedPnL)
	acc.MaxDrawdown = max(acc.MaxDrawdown, acc.PeakPnL-acc.RealizedPnL)

	if seconds := int(trade.HoldingTime().Seconds()); seconds > 0 {
		acc.HoldingTimes = append(acc.HoldingTimes, seconds)
	}
}

// Tracker keeps daily and cumulative statistics for one account.
type Tracker struct {
	mu          sync.Mutex
	account     string
	strategy    types.StrategyInfo
	instruments []string
	currentDate string
	daily       *accumulator
	cumulative  *accumulator
	logger      *logger.Logger
	now         func() time.Time
}

func NewTracker(account string, log *logger.Logger) *Tracker {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Tracker{
		account:    account,
		daily:      newAccumulator(),
		cumulative: newAccumulator(),
		logger:     log,
		now:        time.Now,
	}
}

// SetStrategy records which strategy the stats belong to.
func (t *Tracker) SetStrategy(info types.StrategyInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.strategy = info
}

// RecordTrade adds a closed trade to both the daily and the cumulative accumulators.
// The daily accumulator resets when the trade closes on a new UTC date.
func (t *Tracker) RecordTrade(trade types.TradeRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	closedAt := trade.ClosedAt
	if closedAt.IsZero() {
		closedAt = t.now()
	}

	date := closedAt.UTC().Format(time.DateOnly)
	if t.currentDate != "" && date != t.currentDate {
		t.logger.Info("Date boundary crossed, daily stats reset",
			zap.String("account", t.account),
			zap.String("old_date", t.currentDate),
			zap.String("new_date", date),
		)

		t.daily = newAccumulator()
	}

	t.currentDate = date

	if !slices.Contains(t.instruments, trade.Instrument) {
		t.instruments = append(t.instruments, trade.Instrument)
		slices.Sort(t.instruments)
	}

	t.daily.add(trade)
	t.cumulative.add(trade)

	t.logger.Debug("Trade recorded",
		zap.String("account", t.account),
		zap.String("position", trade.PositionID),
		zap.Float64("pnl", trade.RealizedPnL),
		zap.Int("total_trades", t.cumulative.TotalTrades),
	)
}

// SetUnrealizedPnL updates the mark of the open positions.
func (t *Tracker) SetUnrealizedPnL(pnl float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.daily.UnrealizedPnL = pnl
	t.cumulative.UnrealizedPnL = pnl
}

// Daily returns the statistics of the current UTC date.
func (t *Tracker) Daily() types.TradeStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.build(t.daily)
}

// Cumulative returns the statistics since the tracker was created.
func (t *Tracker) Cumulative() types.TradeStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.build(t.cumulative)
}

func (t *Tracker) build(acc *accumulator) types.TradeStats {
	winRate := 0.0
	if acc.TotalTrades > 0 {
		winRate = float64(acc.WinningTrades) / float64(acc.TotalTrades)
	}

	avgWin, avgLoss := 0.0, 0.0
	if acc.WinningTrades > 0 {
		avgWin = acc.GrossWin / float64(acc.WinningTrades)
	}

	if acc.LosingTrades > 0 {
		avgLoss = acc.GrossLoss / float64(acc.LosingTrades)
	}

	holding := types.TradeHoldingTime{}
	if len(acc.HoldingTimes) > 0 {
		total := 0
		for _, s := range acc.HoldingTimes {
			total += s
		}

		holding.Min = slices.Min(acc.HoldingTimes)
		holding.Max = slices.Max(acc.HoldingTimes)
		holding.Avg = total / len(acc.HoldingTimes)
	}

	return types.TradeStats{
		Account:     t.account,
		LastUpdated: t.now(),
		Instruments: slices.Clone(t.instruments),
		TradeResult: types.TradeResult{
			NumberOfTrades:        acc.TotalTrades,
			NumberOfWinningTrades: acc.WinningTrades,
			NumberOfLosingTrades:  acc.LosingTrades,
			WinRate:               winRate,
			MaxDrawdown:           acc.MaxDrawdown,
		},
		TradeHoldingTime: holding,
		TradePnl: types.TradePnl{
			RealizedPnL:   acc.RealizedPnL,
			UnrealizedPnL: acc.UnrealizedPnL,
			TotalPnL:      acc.RealizedPnL + acc.UnrealizedPnL,
			MaximumLoss:   acc.MaxLoss,
			MaximumProfit: acc.MaxProfit,
			AverageWin:    avgWin,
			AverageLoss:   avgLoss,
		},
		Strategy: t.strategy,
	}
}

// Stats replays the ledger's trade history into a fresh tracker.
func (l *Ledger) Stats(account string) types.TradeStats {
	tracker := NewTracker(account, nil)
	for _, trade := range l.Trades() {
		tracker.RecordTrade(trade)
	}

	return tracker.Cumulative()
}
