// Package ledger is the persisted simulation ledger: balances, open positions and the trade history of
// one dry-run account. It is the single source of truth for the paper exchange.
package ledger

import (
	"cmp"
	"encoding/json"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/shopspring/decimal"
)

// Document is the on-disk JSON shape.
type Document struct {
	InitialBalance   float64                   `json:"initial_balance"`
	AvailableBalance float64                   `json:"available_balance"`
	LockedBalance    float64                   `json:"locked_balance"`
	TotalPnL         float64                   `json:"total_pnl"`
	Positions        map[string]types.Position `json:"positions"`
	Trades           []types.TradeRecord       `json:"trades"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// Ledger guards a Document and writes it back to path after every mutation.
// An empty path keeps the ledger in memory.
type Ledger struct {
	mu   sync.RWMutex
	path string
	doc  Document
	now  func() time.Time
}

// New returns an in-memory ledger funded with initial.
func New(initial float64) *Ledger {
	return &Ledger{
		doc: Document{
			InitialBalance:   initial,
			AvailableBalance: initial,
			LockedBalance:    0,
			TotalPnL:         0,
			Positions:        map[string]types.Position{},
			Trades:           []types.TradeRecord{},
			UpdatedAt:        time.Time{},
		},
		now: time.Now,
	}
}

// Open loads the ledger at path, or creates and saves a new one funded with initial.
func Open(path string, initial float64) (*Ledger, error) {
	l, err := Load(path)
	if err == nil {
		return l, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	l = New(initial)
	l.path = path

	if err := l.Save(); err != nil {
		return nil, err
	}

	return l, nil
}

// Load reads a ledger document from path.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeLedgerRead, err, "failed to read ledger %s", path)
	}

	l, err := Decode(data)
	if err != nil {
		return nil, err
	}

	l.path = path

	return l, nil
}

// Decode parses a ledger document.
func Decode(data []byte) (*Ledger, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerRead, "failed to decode ledger", err)
	}

	if doc.Positions == nil {
		doc.Positions = map[string]types.Position{}
	}

	if doc.Trades == nil {
		doc.Trades = []types.TradeRecord{}
	}

	return &Ledger{doc: doc, now: time.Now}, nil
}

// Encode returns the indented JSON document.
func (l *Ledger) Encode() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.encode()
}

func (l *Ledger) encode() ([]byte, error) {
	data, err := json.MarshalIndent(l.doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerWrite, "failed to encode ledger", err)
	}

	return data, nil
}

// Save writes the document to its path through a temporary file and rename.
func (l *Ledger) Save() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.save()
}

func (l *Ledger) save() error {
	if l.path == "" {
		return nil
	}

	data, err := l.encode()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWrite, err, "failed to create ledger directory for %s", l.path)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWrite, err, "failed to write ledger %s", tmp)
	}

	if err := os.Rename(tmp, l.path); err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWrite, err, "failed to replace ledger %s", l.path)
	}

	return nil
}

// Path returns where the ledger is persisted, or "" when in memory.
func (l *Ledger) Path() string {
	return l.path
}

// Document returns a deep copy of the current state.
func (l *Ledger) Document() Document {
	l.mu.RLock()
	defer l.mu.RUnlock()

	doc := l.doc
	doc.Positions = maps.Clone(l.doc.Positions)
	doc.Trades = slices.Clone(l.doc.Trades)

	return doc
}

// Balance returns the current funds.
func (l *Ledger) Balance() types.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	available := decimal.NewFromFloat(l.doc.AvailableBalance)
	locked := decimal.NewFromFloat(l.doc.LockedBalance)

	return types.Balance{
		Total:     available.Add(locked).InexactFloat64(),
		Available: l.doc.AvailableBalance,
		Locked:    l.doc.LockedBalance,
	}
}

// Positions returns the open positions ordered by open time.
func (l *Ledger) Positions() []types.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := slices.Collect(maps.Values(l.doc.Positions))
	slices.SortFunc(out, func(a, b types.Position) int {
		return cmp.Or(a.OpenedAt.Compare(b.OpenedAt), cmp.Compare(a.ID, b.ID))
	})

	return out
}

// Position returns one open position.
func (l *Ledger) Position(id string) (types.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.doc.Positions[id]

	return p, ok
}

// Trades returns the closed trades in close order.
func (l *Ledger) Trades() []types.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return slices.Clone(l.doc.Trades)
}

// OpenPosition moves the position's margin from available to locked and records it.
func (l *Ledger) OpenPosition(p types.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.doc.Positions[p.ID]; ok {
		return errors.Newf(errors.ErrCodeDuplicatePosition, "position %s already in ledger", p.ID)
	}

	margin := decimal.NewFromFloat(p.Margin)
	available := decimal.NewFromFloat(l.doc.AvailableBalance)

	if margin.GreaterThan(available) {
		return errors.Newf(errors.ErrCodeInsufficientBalance,
			"margin %s exceeds available balance %s", margin.StringFixed(2), available.StringFixed(2))
	}

	l.doc.AvailableBalance = available.Sub(margin).InexactFloat64()
	l.doc.LockedBalance = decimal.NewFromFloat(l.doc.LockedBalance).Add(margin).InexactFloat64()
	l.doc.Positions[p.ID] = p
	l.doc.UpdatedAt = l.now().UTC()

	return l.save()
}

// UpdatePosition replaces a tracked position, for example after its stop trailed.
func (l *Ledger) UpdatePosition(p types.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.doc.Positions[p.ID]; !ok {
		return errors.Newf(errors.ErrCodePositionNotFound, "position %s not in ledger", p.ID)
	}

	l.doc.Positions[p.ID] = p
	l.doc.UpdatedAt = l.now().UTC()

	return l.save()
}

// ClosePosition releases the margin, books the realized P&L and appends the trade.
func (l *Ledger) ClosePosition(record types.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.doc.Positions[record.PositionID]
	if !ok {
		return errors.Newf(errors.ErrCodePositionNotFound, "position %s not in ledger", record.PositionID)
	}

	margin := decimal.NewFromFloat(p.Margin)
	pnl := decimal.NewFromFloat(record.RealizedPnL)

	l.doc.LockedBalance = decimal.NewFromFloat(l.doc.LockedBalance).Sub(margin).InexactFloat64()
	l.doc.AvailableBalance = decimal.NewFromFloat(l.doc.AvailableBalance).Add(margin).Add(pnl).InexactFloat64()
	l.doc.TotalPnL = decimal.NewFromFloat(l.doc.TotalPnL).Add(pnl).InexactFloat64()

	delete(l.doc.Positions, record.PositionID)
	l.doc.Trades = append(l.doc.Trades, record)
	l.doc.UpdatedAt = l.now().UTC()

	return l.save()
}
