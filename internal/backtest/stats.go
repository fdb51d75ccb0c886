package backtest

import (
	"math"
	"sort"
	"time"
)

// tradingDays annualizes daily Sharpe ratios.
const tradingDays = 252

// CalculateStats computes performance statistics from one-day trades.
// Trades sharing a date form an equal-weight book whose mean return is that
// day's portfolio return; total return, drawdown and Sharpe follow the
// compounded daily book. Each instrument also gets a Sharpe over its own
// trade returns.
func CalculateStats(trades []Trade) Stats {
	if len(trades) == 0 {
		return Stats{}
	}

	var winning, losing int
	byDay := make(map[time.Time][]float64)
	byTicker := make(map[string][]float64)

	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		byDay[t.Date] = append(byDay[t.Date], t.Return)
		byTicker[t.Ticker] = append(byTicker[t.Ticker], t.Return)
		if t.IsWin() {
			winning++
		} else {
			losing++
		}
	}

	closedTrades := winning + losing
	if closedTrades == 0 {
		return Stats{}
	}

	daily := dailyReturns(byDay)
	equity := 1.0
	for _, r := range daily {
		equity *= 1 + r
	}

	stats := Stats{
		TotalTrades:   closedTrades,
		WinningTrades: winning,
		LosingTrades:  losing,
		WinRate:       float64(winning) / float64(closedTrades) * 100,
		TradingDays:   len(daily),
		TotalReturn:   (equity - 1) * 100, // Convert to percentage
		MaxDrawdown:   calculateMaxDrawdown(daily) * 100,
		SharpeRatio:   calculateSharpeRatio(daily),
		PerTicker:     make(map[string]TickerStats, len(byTicker)),
	}
	for ticker, returns := range byTicker {
		ts := TickerStats{Trades: len(returns), SharpeRatio: calculateSharpeRatio(returns)}
		for _, r := range returns {
			ts.MeanReturn += r
			if r > 0 {
				ts.WinRate++
			}
		}
		ts.MeanReturn = ts.MeanReturn / float64(len(returns)) * 100
		ts.WinRate = ts.WinRate / float64(len(returns)) * 100
		stats.PerTicker[ticker] = ts
	}
	return stats
}

// dailyReturns averages each day's trade returns, in date order.
func dailyReturns(byDay map[time.Time][]float64) []float64 {
	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]float64, len(days))
	for i, d := range days {
		var sum float64
		for _, r := range byDay[d] {
			sum += r
		}
		out[i] = sum / float64(len(byDay[d]))
	}
	return out
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of the
// compounded return series.
func calculateMaxDrawdown(returns []float64) float64 {
	var maxDD float64
	peak := 1.0
	cumulative := 1.0

	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > peak {
			peak = cumulative
		}
		if dd := (peak - cumulative) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// calculateSharpeRatio annualizes the mean over the sample deviation of
// daily returns with a zero risk-free rate.
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))
	if stdDev < 1e-12 {
		return 0
	}
	return mean / stdDev * math.Sqrt(tradingDays)
}
