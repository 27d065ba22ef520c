// Package position tracks the open positions of one account and decides when they close.
package position

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config controls the optional exit policies. TrailingPct is a fraction (0.015 is 1.5%).
type Config struct {
	TrailingEnabled bool    `json:"trailing_enabled" yaml:"trailing_enabled"`
	TrailingPct     float64 `json:"trailing_pct" yaml:"trailing_pct" validate:"gte=0,lt=1"`
	ReversalEnabled bool    `json:"reversal_enabled" yaml:"reversal_enabled"`
	// ReversalThreshold is the strength an opposing signal must exceed to force a close
	ReversalThreshold float64 `json:"reversal_threshold" yaml:"reversal_threshold" validate:"gte=0,lte=1"`
}

// Evaluation is the result of one poll of one position. At most one close fires per poll.
type Evaluation struct {
	PositionID string
	Price      float64
	Close      bool
	Reason     types.CloseReason
	// StopUpdated is set when the trailing stop ratcheted this poll
	StopUpdated  bool
	PreviousStop float64
	Stop         float64
	Message      string
}

// Manager owns the open set of one account. It is not shared across accounts.
type Manager struct {
	mu        sync.RWMutex
	config    Config
	positions map[string]*types.Position
	logger    *logger.Logger
	now       func() time.Time
}

// NewManager validates the config and returns an empty manager.
func NewManager(config Config, log *logger.Logger) (*Manager, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid position config", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Manager{
		config:    config,
		positions: make(map[string]*types.Position),
		logger:    log,
		now:       time.Now,
	}, nil
}

// Open adds a freshly filled position in state OPEN. A missing id is generated.
// Only one position per instrument may be open.
//
// A position that arrives with its own TrailingDistance keeps its TrailingEnabled as given.
// Otherwise the account's trailing config applies.
func (m *Manager) Open(p types.Position) (types.Position, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	if p.OpenedAt.IsZero() {
		p.OpenedAt = m.now()
	}

	if p.TrailingDistance == 0 && (p.TrailingEnabled || m.config.TrailingEnabled) {
		p.TrailingEnabled = true
		p.TrailingDistance = m.config.TrailingPct
	}

	p.State = types.PositionStateOpen
	p.CurrentPrice = p.EntryPrice

	if err := p.Validate(); err != nil {
		return types.Position{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.positions[p.ID]; ok {
		return types.Position{}, errors.Newf(errors.ErrCodeDuplicatePosition, "position %s already exists", p.ID)
	}

	if existing := m.byInstrument(p.Instrument); existing != nil {
		return types.Position{}, errors.Newf(errors.ErrCodeDuplicatePosition,
			"instrument %s already has open position %s", p.Instrument, existing.ID)
	}

	m.positions[p.ID] = &p

	m.logger.Info("Position opened",
		zap.String("position", p.ID),
		zap.String("instrument", p.Instrument),
		zap.String("side", string(p.Side)),
		zap.Float64("entry", p.EntryPrice),
		zap.Float64("size", p.Size),
		zap.Float64("stop", p.StopPrice),
		zap.Float64("target", p.TargetPrice),
	)

	return p, nil
}

// Restore adopts positions reported by the exchange on startup. They enter MONITORING directly.
// Positions already tracked are skipped.
func (m *Manager) Restore(positions []types.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range positions {
		if _, ok := m.positions[p.ID]; ok {
			continue
		}

		if err := p.Validate(); err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "cannot restore position %s", p.ID)
		}

		p.State = types.PositionStateMonitoring
		if p.CurrentPrice == 0 {
			p.CurrentPrice = p.EntryPrice
		}

		m.positions[p.ID] = &p
	}

	return nil
}

// Evaluate applies the exit checks to one position at price, in priority order:
// stop-hit, target-hit, trailing ratchet (profitable only, never loosens), then reversal.
// It does not close the position; the caller exits on the exchange and then calls Close.
func (m *Manager) Evaluate(id string, price float64, opposing optional.Option[types.Signal]) (Evaluation, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return Evaluation{}, errors.Newf(errors.ErrCodeInvalidParameter, "price must be positive, got %v", price)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[id]
	if !ok {
		return Evaluation{}, errors.Newf(errors.ErrCodePositionNotFound, "position %s not found", id)
	}

	p.State = types.PositionStateMonitoring
	p.CurrentPrice = price

	eval := Evaluation{PositionID: id, Price: price, PreviousStop: p.StopPrice, Stop: p.StopPrice}

	if stopHit(p, price) {
		eval.Close = true
		eval.Reason = types.CloseReasonStopLoss
		eval.Message = fmt.Sprintf("price %v crossed stop %v", price, p.StopPrice)

		return eval, nil
	}

	if targetHit(p, price) {
		eval.Close = true
		eval.Reason = types.CloseReasonTakeProfit
		eval.Message = fmt.Sprintf("price %v reached target %v", price, p.TargetPrice)

		return eval, nil
	}

	if p.TrailingEnabled && p.TrailingDistance > 0 && p.IsProfitableAt(price) {
		if next, moved := ratchet(p, price); moved {
			m.logger.Debug("Trailing stop ratcheted",
				zap.String("position", p.ID),
				zap.Float64("from", p.StopPrice),
				zap.Float64("to", next),
				zap.Float64("price", price),
			)

			p.StopPrice = next
			eval.StopUpdated = true
			eval.Stop = next
		}
	}

	if m.config.ReversalEnabled && opposing.IsSome() {
		signal := opposing.Unwrap()
		if side, ok := signal.Action.Side(); ok && side == p.Side.Opposite() && signal.Strength > m.config.ReversalThreshold {
			eval.Close = true
			eval.Reason = types.CloseReasonReversal
			eval.Message = fmt.Sprintf("opposing %s signal at strength %.2f", signal.Action, signal.Strength)
		}
	}

	return eval, nil
}

// Close removes the position and returns its terminal trade record.
// A position can be closed exactly once.
func (m *Manager) Close(id string, exitPrice float64, reason types.CloseReason) (types.TradeRecord, error) {
	if exitPrice <= 0 || math.IsNaN(exitPrice) || math.IsInf(exitPrice, 0) {
		return types.TradeRecord{}, errors.Newf(errors.ErrCodeInvalidParameter, "exit price must be positive, got %v", exitPrice)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[id]
	if !ok {
		return types.TradeRecord{}, errors.Newf(errors.ErrCodePositionClosed, "position %s is not open", id)
	}

	delete(m.positions, id)
	p.State = types.PositionStateClosed

	record := NewTradeRecord(*p, exitPrice, reason, m.now())

	m.logger.Info("Position closed",
		zap.String("position", p.ID),
		zap.String("instrument", p.Instrument),
		zap.String("reason", string(reason)),
		zap.Float64("exit", exitPrice),
		zap.Float64("pnl", record.RealizedPnL),
	)

	return record, nil
}

// Discard drops a position without booking a trade. It is used when the books behind the exchange
// refused the position and the fill was flattened again.
func (m *Manager) Discard(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.positions[id]; !ok {
		return false
	}

	delete(m.positions, id)

	return true
}

// NewTradeRecord computes realized P&L = (exit - entry) × size × leverage, inverted for shorts.
func NewTradeRecord(p types.Position, exitPrice float64, reason types.CloseReason, closedAt time.Time) types.TradeRecord {
	pnl := p.PnLAt(exitPrice)

	pct := decimal.Zero
	if p.Margin > 0 {
		pct = pnl.Div(decimal.NewFromFloat(p.Margin)).Mul(decimal.NewFromInt(100))
	}

	return types.TradeRecord{
		ID:          uuid.New().String(),
		PositionID:  p.ID,
		Instrument:  p.Instrument,
		Side:        p.Side,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   exitPrice,
		Size:        p.Size,
		Leverage:    p.Leverage,
		Margin:      p.Margin,
		RealizedPnL: pnl.InexactFloat64(),
		PnLPercent:  pct.InexactFloat64(),
		CloseReason: reason,
		OpenedAt:    p.OpenedAt,
		ClosedAt:    closedAt,
		Strategy:    p.Strategy,
	}
}

// Get returns a copy of an open position.
func (m *Manager) Get(id string) (types.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.positions[id]
	if !ok {
		return types.Position{}, false
	}

	return *p, true
}

// Positions returns copies of the open set, oldest first.
func (m *Manager) Positions() []types.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Position, 0, len(m.positions))
	for _, id := range slices.Sorted(maps.Keys(m.positions)) {
		out = append(out, *m.positions[id])
	}

	slices.SortStableFunc(out, func(a, b types.Position) int {
		return a.OpenedAt.Compare(b.OpenedAt)
	})

	return out
}

// Count returns the number of open positions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.positions)
}

// HasInstrument reports whether a position is open on instrument.
func (m *Manager) HasInstrument(instrument string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.byInstrument(instrument) != nil
}

// UnrealizedPnL sums the P&L of the open set at the last polled prices.
func (m *Manager) UnrealizedPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, p := range m.positions {
		total = total.Add(p.PnLAt(cmp.Or(p.CurrentPrice, p.EntryPrice)))
	}

	return total.InexactFloat64()
}

func (m *Manager) byInstrument(instrument string) *types.Position {
	for _, p := range m.positions {
		if p.Instrument == instrument {
			return p
		}
	}

	return nil
}

func stopHit(p *types.Position, price float64) bool {
	if p.Side == types.SideLong {
		return price <= p.StopPrice
	}

	return price >= p.StopPrice
}

func targetHit(p *types.Position, price float64) bool {
	if p.Side == types.SideLong {
		return price >= p.TargetPrice
	}

	return price <= p.TargetPrice
}

// ratchet returns the trailed stop and whether it tightened.
func ratchet(p *types.Position, price float64) (float64, bool) {
	distance := decimal.NewFromFloat(p.TrailingDistance)
	one := decimal.NewFromInt(1)
	at := decimal.NewFromFloat(price)

	if p.Side == types.SideLong {
		candidate := at.Mul(one.Sub(distance)).InexactFloat64()
		if candidate > p.StopPrice {
			return candidate, true
		}

		return p.StopPrice, false
	}

	candidate := at.Mul(one.Add(distance)).InexactFloat64()
	if candidate < p.StopPrice {
		return candidate, true
	}

	return p.StopPrice, false
}
