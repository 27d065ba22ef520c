// Package history keeps every closed trade of every account in DuckDB and mirrors it to parquet.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"go.uber.org/zap"
)

const table = "trades"

var columns = []string{
	"account", "trade_id", "position_id", "instrument", "side",
	"entry_price", "exit_price", "size", "leverage", "margin",
	"realized_pnl", "pnl_percent", "close_reason", "strategy",
	"opened_at", "closed_at",
}

// Store is safe for concurrent use by all account loops.
type Store struct {
	db         *sql.DB
	sq         squirrel.StatementBuilderType
	outputPath string
	mu         sync.Mutex
	logger     *logger.Logger
}

// Query filters Trades. Zero fields match everything.
type Query struct {
	Account    string
	Instrument string
	Since      time.Time
	Limit      uint64
}

// Totals aggregates one account's closed trades.
type Totals struct {
	Account     string  `json:"account" yaml:"account"`
	Trades      int     `json:"trades" yaml:"trades"`
	Wins        int     `json:"wins" yaml:"wins"`
	Losses      int     `json:"losses" yaml:"losses"`
	RealizedPnL float64 `json:"realized_pnl" yaml:"realized_pnl"`
	MaxProfit   float64 `json:"max_profit" yaml:"max_profit"`
	MaxLoss     float64 `json:"max_loss" yaml:"max_loss"`
}

// NewStore opens an in-memory DuckDB database. When outputPath is set, existing trades are loaded from
// that parquet file and every insert is exported back to it.
func NewStore(outputPath string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoryWrite, "failed to open DuckDB connection", err)
	}

	s := &Store{
		db:         db,
		sq:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		outputPath: outputPath,
		logger:     log,
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			account TEXT,
			trade_id TEXT,
			position_id TEXT,
			instrument TEXT,
			side TEXT,
			entry_price DOUBLE,
			exit_price DOUBLE,
			size DOUBLE,
			leverage DOUBLE,
			margin DOUBLE,
			realized_pnl DOUBLE,
			pnl_percent DOUBLE,
			close_reason TEXT,
			strategy TEXT,
			opened_at TIMESTAMP,
			closed_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeHistoryWrite, "failed to create trades table", err)
	}

	if outputPath == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeHistoryWrite, "failed to create history directory", err)
	}

	if _, err := os.Stat(outputPath); err == nil {
		_, err = db.Exec(fmt.Sprintf(`INSERT INTO trades SELECT * FROM read_parquet('%s')`, quote(outputPath)))
		if err != nil {
			log.Warn("Failed to load trade history, starting empty", zap.String("path", outputPath), zap.Error(err))
		}
	}

	return s, nil
}

// Insert stores a closed trade for account and refreshes the parquet export.
func (s *Store) Insert(account string, record types.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return errors.New(errors.ErrCodeHistoryWrite, "history store is closed")
	}

	_, err := s.sq.
		Insert(table).
		Columns(columns...).
		Values(
			account, record.ID, record.PositionID, record.Instrument, string(record.Side),
			record.EntryPrice, record.ExitPrice, record.Size, record.Leverage, record.Margin,
			record.RealizedPnL, record.PnLPercent, string(record.CloseReason), record.Strategy,
			record.OpenedAt.UTC(), record.ClosedAt.UTC(),
		).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeHistoryWrite, err, "failed to insert trade %s", record.ID)
	}

	return s.export()
}

// Trades returns matching trades ordered by close time.
func (s *Store) Trades(q Query) ([]types.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, errors.New(errors.ErrCodeHistoryWrite, "history store is closed")
	}

	query := s.sq.
		Select(columns[1:]...).
		From(table).
		OrderBy("closed_at ASC", "trade_id ASC")

	if q.Account != "" {
		query = query.Where(squirrel.Eq{"account": q.Account})
	}

	if q.Instrument != "" {
		query = query.Where(squirrel.Eq{"instrument": q.Instrument})
	}

	if !q.Since.IsZero() {
		query = query.Where(squirrel.GtOrEq{"closed_at": q.Since.UTC()})
	}

	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	rows, err := query.RunWith(s.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoryWrite, "failed to query trades", err)
	}
	defer rows.Close()

	var out []types.TradeRecord

	for rows.Next() {
		var (
			r      types.TradeRecord
			side   string
			reason string
		)

		err := rows.Scan(
			&r.ID, &r.PositionID, &r.Instrument, &side,
			&r.EntryPrice, &r.ExitPrice, &r.Size, &r.Leverage, &r.Margin,
			&r.RealizedPnL, &r.PnLPercent, &reason, &r.Strategy,
			&r.OpenedAt, &r.ClosedAt,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeHistoryWrite, "failed to scan trade", err)
		}

		r.Side = types.Side(side)
		r.CloseReason = types.CloseReason(reason)
		r.OpenedAt = r.OpenedAt.UTC()
		r.ClosedAt = r.ClosedAt.UTC()
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoryWrite, "failed to iterate trades", err)
	}

	return out, nil
}

// Totals aggregates the trades of one account.
func (s *Store) Totals(account string) (Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return Totals{}, errors.New(errors.ErrCodeHistoryWrite, "history store is closed")
	}

	totals := Totals{Account: account}

	err := s.sq.
		Select(
			"COUNT(*)",
			"COUNT(*) FILTER (WHERE realized_pnl > 0)",
			"COUNT(*) FILTER (WHERE realized_pnl < 0)",
			"COALESCE(SUM(realized_pnl), 0)",
			"COALESCE(MAX(realized_pnl), 0)",
			"COALESCE(MIN(realized_pnl), 0)",
		).
		From(table).
		Where(squirrel.Eq{"account": account}).
		RunWith(s.db).
		QueryRow().
		Scan(&totals.Trades, &totals.Wins, &totals.Losses, &totals.RealizedPnL, &totals.MaxProfit, &totals.MaxLoss)
	if err != nil {
		return Totals{}, errors.Wrapf(errors.ErrCodeHistoryWrite, err, "failed to total trades for %s", account)
	}

	// an account with only losing trades has no profit
	totals.MaxProfit = max(totals.MaxProfit, 0)
	totals.MaxLoss = min(totals.MaxLoss, 0)

	return totals, nil
}

// Accounts lists every account that has closed trades.
func (s *Store) Accounts() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, errors.New(errors.ErrCodeHistoryWrite, "history store is closed")
	}

	rows, err := s.sq.
		Select("DISTINCT account").
		From(table).
		OrderBy("account").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoryWrite, "failed to list accounts", err)
	}
	defer rows.Close()

	var accounts []string

	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, errors.Wrap(errors.ErrCodeHistoryWrite, "failed to scan account", err)
		}

		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// OutputPath returns the parquet file path, or "" when not exporting.
func (s *Store) OutputPath() string {
	return s.outputPath
}

// Close releases database resources.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	if err != nil {
		return errors.Wrap(errors.ErrCodeHistoryWrite, "failed to close history database", err)
	}

	return nil
}

func (s *Store) export() error {
	if s.outputPath == "" {
		return nil
	}

	_, err := s.db.Exec(fmt.Sprintf(`
		COPY (SELECT * FROM trades ORDER BY closed_at ASC)
		TO '%s' (FORMAT PARQUET)
	`, quote(s.outputPath)))
	if err != nil {
		return errors.Wrapf(errors.ErrCodeHistoryWrite, err, "failed to export trades to %s", s.outputPath)
	}

	return nil
}

func quote(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}
