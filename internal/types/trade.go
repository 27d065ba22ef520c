package types

import "time"

// CloseReason explains why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "stop_loss"
	CloseReasonTakeProfit CloseReason = "take_profit"
	CloseReasonReversal   CloseReason = "reversal"
	CloseReasonManual     CloseReason = "manual"
)

// TradeRecord is the terminal, append-only record of a closed position.
type TradeRecord struct {
	ID          string      `json:"id" yaml:"id"`
	PositionID  string      `json:"position_id" yaml:"position_id"`
	Instrument  string      `json:"instrument" yaml:"instrument"`
	Side        Side        `json:"side" yaml:"side"`
	EntryPrice  float64     `json:"entry_price" yaml:"entry_price"`
	ExitPrice   float64     `json:"exit_price" yaml:"exit_price"`
	Size        float64     `json:"size" yaml:"size"`
	Leverage    float64     `json:"leverage" yaml:"leverage"`
	Margin      float64     `json:"margin" yaml:"margin"`
	RealizedPnL float64     `json:"realized_pnl" yaml:"realized_pnl"`
	// PnLPercent is realized P&L relative to the margin committed, in percent
	PnLPercent  float64     `json:"pnl_percent" yaml:"pnl_percent"`
	CloseReason CloseReason `json:"close_reason" yaml:"close_reason"`
	OpenedAt    time.Time   `json:"opened_at" yaml:"opened_at"`
	ClosedAt    time.Time   `json:"closed_at" yaml:"closed_at"`
	Strategy    string      `json:"strategy" yaml:"strategy"`
}

// HoldingTime returns how long the position was held.
func (t TradeRecord) HoldingTime() time.Duration {
	return t.ClosedAt.Sub(t.OpenedAt)
}
