package types

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

type TradeHoldingTime struct {
	// Minimum holding time of a trade in seconds
	Min int `yaml:"min" json:"min"`
	// Maximum holding time of a trade in seconds
	Max int `yaml:"max" json:"max"`
	// Average holding time of a trade in seconds
	Avg int `yaml:"avg" json:"avg"`
}

type TradePnl struct {
	// Realized PnL summed over closed trades.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`
	// Unrealized PnL of open positions at the last mark.
	UnrealizedPnL float64 `yaml:"unrealized_pnl" json:"unrealized_pnl"`
	// Total PnL. RealizedPnL plus UnrealizedPnL.
	TotalPnL float64 `yaml:"total_pnl" json:"total_pnl"`
	// Largest single loss (negative or zero).
	MaximumLoss float64 `yaml:"maximum_loss" json:"maximum_loss"`
	// Largest single profit.
	MaximumProfit float64 `yaml:"maximum_profit" json:"maximum_profit"`
	// Average profit of winning trades.
	AverageWin float64 `yaml:"average_win" json:"average_win"`
	// Average loss of losing trades (negative or zero).
	AverageLoss float64 `yaml:"average_loss" json:"average_loss"`
}

type TradeResult struct {
	NumberOfTrades        int     `yaml:"number_of_trades" json:"number_of_trades"`
	NumberOfWinningTrades int     `yaml:"number_of_winning_trades" json:"number_of_winning_trades"`
	NumberOfLosingTrades  int     `yaml:"number_of_losing_trades" json:"number_of_losing_trades"`
	WinRate               float64 `yaml:"win_rate" json:"win_rate"`
	MaxDrawdown           float64 `yaml:"max_drawdown" json:"max_drawdown"`
}

// StrategyInfo identifies the strategy that generated stats.
type StrategyInfo struct {
	ID      string `yaml:"id" json:"id"`
	Version string `yaml:"version" json:"version"`
	Name    string `yaml:"name" json:"name"`
}

// TradeStats summarizes one account's closed trades.
type TradeStats struct {
	Account          string           `yaml:"account" json:"account"`
	LastUpdated      time.Time        `yaml:"last_updated" json:"last_updated"`
	Instruments      []string         `yaml:"instruments" json:"instruments"`
	TradeResult      TradeResult      `yaml:"trade_result" json:"trade_result"`
	TradeHoldingTime TradeHoldingTime `yaml:"trade_holding_time" json:"trade_holding_time"`
	TradePnl         TradePnl         `yaml:"trade_pnl" json:"trade_pnl"`
	Strategy         StrategyInfo     `yaml:"strategy" json:"strategy"`
}

// WriteTradeStats writes stats as YAML.
func WriteTradeStats(w io.Writer, stats ...TradeStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal trade stats to YAML: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write trade stats: %w", err)
	}

	return nil
}
