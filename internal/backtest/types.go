package backtest

import (
	"time"

	"github.com/stockshastri/shastri/internal/core"
)

// Result holds the outcome of replaying a classifier over a holdout table
type Result struct {
	StartDate time.Time
	EndDate   time.Time
	// Predictions and Labels are aligned with the holdout rows.
	Predictions []int
	Labels      []int
	Trades      []Trade
	Stats       Stats
}

// Trade is a one-day long position opened on an UP prediction
type Trade struct {
	Ticker     string
	Date       time.Time
	Direction  core.Direction
	Confidence float64
	Return     float64 // next-day return, fraction
	Closed     bool    // false when the next close is not in the holdout
}

// Stats holds performance statistics
type Stats struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`     // Percentage of profitable trades
	TradingDays   int     `json:"trading_days"` // Dates with at least one closed trade
	TotalReturn   float64 `json:"total_return"` // Compounded daily book return, percentage
	MaxDrawdown   float64 `json:"max_drawdown"` // Largest peak-to-trough decline of the daily book
	SharpeRatio   float64 `json:"sharpe_ratio"` // Annualized over daily book returns

	PerTicker map[string]TickerStats `json:"per_ticker,omitempty"`
}

// TickerStats summarizes one instrument's one-day trades
type TickerStats struct {
	Trades      int     `json:"trades"`
	WinRate     float64 `json:"win_rate"`
	MeanReturn  float64 `json:"mean_return"`  // Percentage per trade
	SharpeRatio float64 `json:"sharpe_ratio"` // Annualized over the instrument's trade returns
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Return > 0
}

// IsClosed returns true if the trade has an exit
func (t Trade) IsClosed() bool {
	return t.Closed
}
