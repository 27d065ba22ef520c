package scheduler

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/events"
	"github.com/rxtech-lab/argo-bot/internal/exchange"
	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/position"
	"github.com/rxtech-lab/argo-bot/internal/sizing"
	"github.com/rxtech-lab/argo-bot/internal/strategy"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Utilization thresholds of the health phase.
const (
	WarningUtilization  = 0.6
	CriticalUtilization = 0.8
)

// Report summarizes one cycle of one account.
type Report struct {
	Health types.AccountHealth
	// Skipped is set when the balance could not be read and nothing else ran
	Skipped     bool
	Evaluations []position.Evaluation
	Opened      []types.Position
	Closed      []types.TradeRecord
	// Signals holds the signal scanned for each instrument this cycle
	Signals map[string]types.Signal
	// Decisions holds the gate outcome of every directional signal scanned this cycle, by instrument
	Decisions map[string]types.Decision
	Errors    int
}

// AssessHealth classifies a balance by utilization.
func AssessHealth(balance types.Balance) types.AccountHealth {
	utilization := balance.Utilization()
	health := types.AccountHealth{
		Status:      types.HealthHealthy,
		Balance:     balance,
		Utilization: utilization,
		Message:     fmt.Sprintf("utilization %.1f%%", utilization*100),
	}

	switch {
	case utilization > CriticalUtilization:
		health.Status = types.HealthCritical
		health.Message += ", monitoring only"
	case utilization > WarningUtilization:
		health.Status = types.HealthWarning
	}

	return health
}

// snapshot is what one instrument looked like during the current cycle.
type snapshot struct {
	instrument string
	price      float64
	frames     marketdata.Frames
	signal     types.Signal
}

// RunCycle runs the health, manage, scan and open phases once.
// Recoverable failures are logged, counted and skipped; they never abort the other instruments.
func (a *AccountContext) RunCycle(ctx context.Context) Report {
	started := a.now()
	report := Report{Signals: map[string]types.Signal{}, Decisions: map[string]types.Decision{}}

	defer func() {
		a.tracker.SetUnrealizedPnL(a.positions.UnrealizedPnL())
		a.recorder.Cycle(a.id, a.now().Sub(started), a.positions.Count())
	}()

	health, err := a.Health(ctx)
	if err != nil {
		a.fail(&report, ErrorKindBalance, "Failed to read balance, skipping cycle", err)
		report.Skipped = true

		return report
	}

	report.Health = health
	cache := map[string]snapshot{}

	a.manage(ctx, cache, &report)

	if len(report.Closed) > 0 {
		if refreshed, err := a.Health(ctx); err == nil {
			health = refreshed
			report.Health = refreshed
		}
	}

	if !health.CanOpen() {
		a.logger.Warn("Account critical, monitoring only",
			zap.Float64("utilization", health.Utilization),
			zap.Int("open_positions", a.positions.Count()),
		)

		return report
	}

	if a.positions.Count() >= a.config.Trading.MaxOpenPositions {
		a.logger.Debug("Max positions reached, not scanning", zap.Int("open_positions", a.positions.Count()))

		return report
	}

	candidates := a.scan(ctx, cache, &report)
	a.open(ctx, candidates, health, &report)

	return report
}

// Health reads the balance and classifies it.
func (a *AccountContext) Health(ctx context.Context) (types.AccountHealth, error) {
	balance, err := a.exchange.GetBalance(ctx)
	if err != nil {
		return types.AccountHealth{}, err
	}

	health := AssessHealth(balance)
	a.recorder.Health(a.id, health)

	if health.Status != types.HealthHealthy {
		a.logger.Warn("Account health degraded",
			zap.String("status", string(health.Status)),
			zap.Float64("utilization", health.Utilization),
		)
	}

	return health, nil
}

// snapshot evaluates the active strategy for one instrument, at most once per cycle.
func (a *AccountContext) snapshot(ctx context.Context, instrument string, cache map[string]snapshot) (snapshot, error) {
	if s, ok := cache[instrument]; ok {
		return s, nil
	}

	active, ok := a.registry.Active()
	if !ok {
		return snapshot{}, errors.New(errors.ErrCodeNoActiveStrategy, "no active strategy")
	}

	frames := marketdata.Frames{}
	for _, tf := range a.timeframes(active.RequiredTimeframes()) {
		table, err := a.provider.Fetch(ctx, instrument, tf)
		if err != nil {
			return snapshot{}, err
		}

		frames[tf] = table
	}

	price, err := a.provider.GetLatestPrice(ctx, instrument)
	if err != nil {
		return snapshot{}, err
	}

	signal, err := a.registry.Evaluate(frames, price)
	if err != nil {
		return snapshot{}, err
	}

	signal.Time = a.now()

	s := snapshot{instrument: instrument, price: price, frames: frames, signal: signal}
	cache[instrument] = s

	return s, nil
}

// timeframes adds the ATR timeframe to what the strategy reads.
func (a *AccountContext) timeframes(required []types.Timeframe) []types.Timeframe {
	out := slices.Clone(required)

	if tf := a.config.Trading.ATRTimeframe; tf != "" && !slices.Contains(out, tf) {
		out = append(out, tf)
	}

	return out
}

// atr reads the latest ATR for stop placement. Missing or unusable values return None.
func (a *AccountContext) atr(frames marketdata.Frames) optional.Option[float64] {
	tf := a.config.Trading.ATRTimeframe
	if tf == "" {
		shortest := time.Duration(math.MaxInt64)
		for candidate := range frames {
			if d := candidate.Duration(); d > 0 && d < shortest {
				shortest = d
				tf = candidate
			}
		}
	}

	table, ok := frames.Get(tf)
	if !ok {
		return optional.None[float64]()
	}

	value, ok := table.Value(indicator.ColumnATR, 0)
	if !ok || math.IsNaN(value) || value <= 0 {
		return optional.None[float64]()
	}

	return optional.Some(value)
}

// manage polls every open position once.
func (a *AccountContext) manage(ctx context.Context, cache map[string]snapshot, report *Report) {
	for _, p := range a.positions.Positions() {
		price, err := a.provider.GetLatestPrice(ctx, p.Instrument)
		if err != nil {
			a.fail(report, ErrorKindMarketData, "Failed to read price for open position", err, zap.String("instrument", p.Instrument))

			continue
		}

		opposing := optional.None[types.Signal]()

		if a.config.Position.ReversalEnabled {
			s, err := a.snapshot(ctx, p.Instrument, cache)
			if err != nil {
				a.fail(report, ErrorKindStrategy, "Failed to evaluate open position, reversal skipped", err, zap.String("instrument", p.Instrument))
			} else if s.signal.Opposes(p.Side) {
				opposing = optional.Some(s.signal)
			}
		}

		evaluation, err := a.positions.Evaluate(p.ID, price, opposing)
		if err != nil {
			a.fail(report, ErrorKindBooks, "Failed to evaluate position", err, zap.String("position_id", p.ID))

			continue
		}

		report.Evaluations = append(report.Evaluations, evaluation)

		switch {
		case evaluation.Close:
			if record, ok := a.exit(ctx, p, price, evaluation.Reason, report); ok {
				report.Closed = append(report.Closed, record)
			}
		case evaluation.StopUpdated:
			a.trail(ctx, p.ID, report)
		}
	}
}

// exit flattens a position on the exchange and books the trade. A failed close order leaves the
// position monitored so the next cycle retries. When a resting stop or target already closed the
// position on the exchange, the trade is booked at that order's level without trading again.
func (a *AccountContext) exit(ctx context.Context, p types.Position, price float64, reason types.CloseReason, report *Report) (types.TradeRecord, bool) {
	exitPrice := price

	result, err := a.flatten(ctx, p.Instrument, p.Side, p.Size)

	switch {
	case exchange.IsPositionGone(err):
		exitPrice = restingFill(p, reason, price)

		a.logger.Info("Position already closed on the exchange",
			zap.String("position_id", p.ID),
			zap.String("reason", string(reason)),
			zap.Float64("exit_price", exitPrice),
		)
	case err != nil:
		a.fail(report, ErrorKindOrder, "Failed to place close order", err,
			zap.String("position_id", p.ID),
			zap.String("reason", string(reason)),
		)

		return types.TradeRecord{}, false
	case result.FillPrice > 0:
		exitPrice = result.FillPrice
	}

	record, err := a.positions.Close(p.ID, exitPrice, reason)
	if err != nil {
		a.fail(report, ErrorKindBooks, "Failed to close position", err, zap.String("position_id", p.ID))

		return types.TradeRecord{}, false
	}

	if journal, ok := a.exchange.(exchange.Journal); ok {
		if err := journal.RecordClose(record); err != nil {
			a.fail(report, ErrorKindBooks, "Failed to book closed trade", err, zap.String("trade_id", record.ID))
		}
	}

	if canceller, ok := a.exchange.(exchange.OrderCanceller); ok {
		if err := canceller.CancelOpenOrders(ctx, p.Instrument); err != nil {
			a.fail(report, ErrorKindOrder, "Failed to cancel protective orders", err, zap.String("instrument", p.Instrument))
		}
	}

	if a.history != nil {
		if err := a.history.Insert(a.id, record); err != nil {
			a.fail(report, ErrorKindBooks, "Failed to store trade history", err, zap.String("trade_id", record.ID))
		}
	}

	a.tracker.RecordTrade(record)
	a.recorder.Closed(a.id, record)
	a.publish(ctx, report, events.PositionClosed(a.id, record))

	a.logger.Debug("Exit booked",
		zap.String("instrument", record.Instrument),
		zap.String("side", string(record.Side)),
		zap.String("reason", string(record.CloseReason)),
		zap.Float64("exit_price", record.ExitPrice),
		zap.Float64("pnl", record.RealizedPnL),
	)

	return record, true
}

// flatten takes size off the exchange, reduce-only where the client supports it.
func (a *AccountContext) flatten(ctx context.Context, instrument string, side types.Side, size float64) (types.OrderResult, error) {
	if closer, ok := a.exchange.(exchange.PositionCloser); ok {
		return closer.ClosePosition(ctx, instrument, side, size)
	}

	return a.exchange.PlaceMarketOrder(ctx, instrument, types.ExitSide(side), size)
}

// restingFill is the price a resting protective order closed the position at.
func restingFill(p types.Position, reason types.CloseReason, price float64) float64 {
	switch {
	case reason == types.CloseReasonStopLoss && p.StopPrice > 0:
		return p.StopPrice
	case reason == types.CloseReasonTakeProfit && p.TargetPrice > 0:
		return p.TargetPrice
	default:
		return price
	}
}

// trail moves the resting protective orders to the ratcheted stop.
func (a *AccountContext) trail(ctx context.Context, id string, report *Report) {
	p, ok := a.positions.Get(id)
	if !ok {
		return
	}

	if journal, ok := a.exchange.(exchange.Journal); ok {
		if err := journal.RecordUpdate(p); err != nil {
			a.fail(report, ErrorKindBooks, "Failed to book trailed stop", err, zap.String("position_id", p.ID))
		}
	}

	if canceller, ok := a.exchange.(exchange.OrderCanceller); ok {
		if err := canceller.CancelOpenOrders(ctx, p.Instrument); err != nil {
			a.fail(report, ErrorKindOrder, "Failed to cancel protective orders before trailing", err, zap.String("instrument", p.Instrument))
		} else {
			a.protect(ctx, p, report)
		}
	}

	a.publish(ctx, report, events.StopTrailed(a.id, p, a.now()))
}

// scan evaluates every instrument without an open position and returns the directional signals,
// strongest first.
func (a *AccountContext) scan(ctx context.Context, cache map[string]snapshot, report *Report) []snapshot {
	var candidates []snapshot

	for _, instrument := range a.config.Trading.Instruments {
		if a.positions.HasInstrument(instrument) {
			continue
		}

		s, err := a.snapshot(ctx, instrument, cache)
		if err != nil {
			kind := ErrorKindMarketData
			if errors.InCategory(err, errors.ErrCodeStrategyNotFound) {
				kind = ErrorKindStrategy
			}

			a.fail(report, kind, "Failed to evaluate instrument", err, zap.String("instrument", instrument))

			continue
		}

		report.Signals[instrument] = s.signal
		a.recorder.Signal(a.id, s.signal.Action)

		if s.signal.IsFlat() {
			a.logger.Debug("Flat signal",
				zap.String("instrument", instrument),
				zap.String("reasons", strings.Join(s.signal.Reasons, "; ")),
			)

			continue
		}

		candidates = append(candidates, s)
	}

	slices.SortStableFunc(candidates, func(x, y snapshot) int {
		switch {
		case x.signal.Strength > y.signal.Strength:
			return -1
		case x.signal.Strength < y.signal.Strength:
			return 1
		default:
			return strings.Compare(x.instrument, y.instrument)
		}
	})

	return candidates
}

// gate applies the entry rules in order. The first failing rule decides.
func (a *AccountContext) gate(instrument string, signal types.Signal, health types.AccountHealth) types.Decision {
	trading := a.config.Trading

	side, ok := signal.Action.Side()
	if !ok {
		return types.Block(types.BlockReasonFlatSignal, "flat signal for %s", instrument)
	}

	if signal.Strength < trading.MinStrength {
		return types.Block(types.BlockReasonBelowMinStrength, "strength %.2f below minimum %.2f", signal.Strength, trading.MinStrength)
	}

	if (side == types.SideLong && !trading.EnableLong) || (side == types.SideShort && !trading.EnableShort) {
		return types.Block(types.BlockReasonSideDisabled, "%s entries are disabled", side)
	}

	if a.positions.HasInstrument(instrument) {
		return types.Block(types.BlockReasonDuplicatePosition, "%s already has an open position", instrument)
	}

	if count := a.positions.Count(); count >= trading.MaxOpenPositions {
		return types.Block(types.BlockReasonMaxPositions, "%d of %d positions open", count, trading.MaxOpenPositions)
	}

	if !health.CanOpen() {
		return types.Block(types.BlockReasonAccountCritical, "account utilization %.1f%%", health.Utilization*100)
	}

	return types.Allow()
}

// open sizes and enters the candidates. Margin committed in this cycle is deducted locally so later
// candidates see the reduced balance and the raised utilization.
func (a *AccountContext) open(ctx context.Context, candidates []snapshot, health types.AccountHealth, report *Report) {
	for _, c := range candidates {
		decision := a.gate(c.instrument, c.signal, health)

		var order sizing.Order
		if !decision.Blocked {
			order = a.sizer.Size(c.signal, health.Balance, c.price)
			decision = order.Decision
		}

		report.Decisions[c.instrument] = decision

		if decision.Blocked {
			a.recorder.Blocked(a.id, decision.Reason)
			a.logger.Info("Signal blocked",
				zap.String("instrument", c.instrument),
				zap.String("action", string(c.signal.Action)),
				zap.Float64("strength", c.signal.Strength),
				zap.String("reason", string(decision.Reason)),
				zap.String("message", decision.Message),
			)

			continue
		}

		p, err := a.enter(ctx, c, order, report)
		if err != nil {
			report.Decisions[c.instrument] = types.Block(types.BlockReasonInvalidSize, "entry failed: %v", err)
			a.fail(report, ErrorKindOrder, "Failed to open position", err, zap.String("instrument", c.instrument))

			continue
		}

		report.Opened = append(report.Opened, p)

		balance := health.Balance
		balance.Available -= p.Margin
		balance.Locked += p.Margin
		health = AssessHealth(balance)
	}
}

// enter places the entry order and then the protective orders. If the levels cannot be derived or the
// position cannot be tracked or booked, the fill is flattened again.
func (a *AccountContext) enter(ctx context.Context, c snapshot, order sizing.Order, report *Report) (types.Position, error) {
	result, err := a.exchange.PlaceMarketOrder(ctx, c.instrument, types.EntrySide(order.Side), order.Size)
	if err != nil {
		return types.Position{}, err
	}

	entry := c.price
	if result.FillPrice > 0 {
		entry = result.FillPrice
	}

	size := order.Size
	if result.FilledQty > 0 {
		size = result.FilledQty
	}

	levels, err := a.stops.Levels(order.Side, entry, a.atr(c.frames))
	if err == nil {
		var p types.Position

		p, err = a.positions.Open(types.Position{
			Instrument:  c.instrument,
			Side:        order.Side,
			EntryPrice:  entry,
			Size:        size,
			Leverage:    a.sizer.Leverage(),
			Margin:      margin(size, entry, a.sizer.Leverage()),
			StopPrice:   levels.Stop,
			TargetPrice: levels.Target,
			Strategy:    producedBy(c.signal, a.registry.ActiveID()),
		})
		if err == nil {
			if err = a.book(p); err == nil {
				a.opened(ctx, p, c.signal, report)

				return p, nil
			}

			a.positions.Discard(p.ID)
		}
	}

	if _, flattenErr := a.flatten(ctx, c.instrument, order.Side, size); flattenErr != nil && !exchange.IsPositionGone(flattenErr) {
		a.logger.Error("Failed to flatten untracked fill",
			zap.String("instrument", c.instrument),
			zap.Float64("size", size),
			zap.Error(flattenErr),
		)
	}

	return types.Position{}, err
}

// producedBy is the strategy that emitted signal, so a swap mid-cycle does not relabel the entry.
func producedBy(signal types.Signal, active string) string {
	if id := strategy.SignalStrategy(signal); id != "" {
		return id
	}

	return active
}

func margin(size, entry, leverage float64) float64 {
	return decimal.NewFromFloat(size).
		Mul(decimal.NewFromFloat(entry)).
		Div(decimal.NewFromFloat(leverage)).
		InexactFloat64()
}

// book records the position in the client's own books, when it keeps any.
func (a *AccountContext) book(p types.Position) error {
	journal, ok := a.exchange.(exchange.Journal)
	if !ok {
		return nil
	}

	if err := journal.RecordOpen(p); err != nil {
		return errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to book position %s", p.ID)
	}

	return nil
}

func (a *AccountContext) opened(ctx context.Context, p types.Position, signal types.Signal, report *Report) {
	a.protect(ctx, p, report)
	a.recorder.Opened(a.id, p.Side)
	a.publish(ctx, report, events.PositionOpened(a.id, p, signal))

	a.logger.Debug("Entry booked",
		zap.String("instrument", p.Instrument),
		zap.String("side", string(p.Side)),
		zap.Float64("entry_price", p.EntryPrice),
		zap.Float64("size", p.Size),
		zap.Float64("stop", p.StopPrice),
		zap.Float64("target", p.TargetPrice),
		zap.Float64("strength", signal.Strength),
	)
}

// protect places the resting stop and target orders. The position manager keeps watching the levels
// even when the exchange refuses them.
func (a *AccountContext) protect(ctx context.Context, p types.Position, report *Report) {
	side := types.ExitSide(p.Side)

	if _, err := a.exchange.PlaceStopOrder(ctx, p.Instrument, side, p.Size, p.StopPrice); err != nil {
		a.fail(report, ErrorKindOrder, "Failed to place stop order", err, zap.String("position_id", p.ID))
	}

	if _, err := a.exchange.PlaceTargetOrder(ctx, p.Instrument, side, p.Size, p.TargetPrice); err != nil {
		a.fail(report, ErrorKindOrder, "Failed to place target order", err, zap.String("position_id", p.ID))
	}
}

func (a *AccountContext) publish(ctx context.Context, report *Report, event events.Event) {
	if err := a.publisher.Publish(ctx, event); err != nil {
		a.fail(report, ErrorKindEvents, "Failed to publish event", err, zap.String("kind", string(event.Kind)))
	}
}

func (a *AccountContext) fail(report *Report, kind, msg string, err error, fields ...zap.Field) {
	report.Errors++
	a.recorder.Error(a.id, kind)

	fields = append(fields, zap.String("kind", kind), zap.Error(err))

	if exchange.IsTransient(err) || errors.InCategory(err, errors.ErrCodeMarketDataFetchFailed) {
		a.logger.Warn(msg, fields...)

		return
	}

	a.logger.Error(msg, fields...)
}
