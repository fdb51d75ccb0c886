package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stockshastri/shastri/internal/calendar"
	"github.com/stockshastri/shastri/internal/core"
	"github.com/stockshastri/shastri/internal/events"
	"go.uber.org/zap"
)

// Drop reasons reported by the assembler.
const (
	DropDuplicate = "duplicate"
	DropInvalid   = "invalid_close"
	DropUnlabeled = "unlabeled"
)

// Input is everything the assembler joins.
type Input struct {
	Prices    []core.PriceObservation
	Macro     []core.MacroObservation
	Sentiment []core.SentimentObservation
	Events    []core.EventRecord
}

// Report summarizes one assembly run.
type Report struct {
	InputRows      int            `json:"input_rows"`
	Emitted        int            `json:"emitted"`
	Dropped        map[string]int `json:"dropped"`
	MacroDefaulted bool           `json:"macro_defaulted"`
}

// TotalDropped returns the number of price rows that produced no output row.
func (r Report) TotalDropped() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// Assembler builds the labeled feature table.
type Assembler struct {
	logger *zap.Logger
}

// NewAssembler creates an assembler. A nil logger discards output.
func NewAssembler(logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{logger: logger}
}

type sentimentKey struct {
	ticker string
	date   time.Time
}

// Assemble joins prices with macro, sentiment and event features and labels
// each row with the direction of the instrument's next close. Returns and
// labels are computed per instrument only. The last row of each instrument
// has no label and is dropped.
func (a *Assembler) Assemble(in Input) (*Table, Report, error) {
	report := Report{InputRows: len(in.Prices), Dropped: map[string]int{}}

	byTicker, err := a.group(in.Prices, &report)
	if err != nil {
		return nil, report, err
	}

	first, last := span(byTicker)
	macroFrame, err := a.alignMacro(in.Macro, first, last, &report)
	if err != nil {
		return nil, report, err
	}

	enc := events.Encode(in.Events, calendar.Days(first, last))

	sentiment := make(map[sentimentKey]float64, len(in.Sentiment))
	for _, s := range in.Sentiment {
		k := sentimentKey{core.NormalizeTicker(s.Ticker), core.Day(s.Date)}
		if _, dup := sentiment[k]; !dup {
			sentiment[k] = s.Score
		}
	}

	table := &Table{FlagColumns: enc.FlagColumns}
	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		prices := byTicker[ticker]
		for i, p := range prices {
			if i == len(prices)-1 {
				report.Dropped[DropUnlabeled]++
				continue
			}

			row := Row{
				Ticker: ticker,
				Date:   p.Date,
				Open:   p.Open,
				High:   p.High,
				Low:    p.Low,
				Close:  p.Close,
				Volume: p.Volume,
			}
			if i > 0 {
				row.Return1 = p.Close/prices[i-1].Close - 1
			}
			if prices[i+1].Close > p.Close {
				row.ReturnDirection = 1
			}

			row.SentimentScore = sentiment[sentimentKey{ticker, p.Date}]
			if macroFrame != nil {
				row.USDINRRate, _ = macroFrame.Value(ColUSDINRRate, p.Date)
				row.InterestRate, _ = macroFrame.Value(ColInterestRate, p.Date)
				row.UnemploymentRate, _ = macroFrame.Value(ColUnemploymentRate, p.Date)
			}

			ev := enc.At(p.Date)
			row.Flags = make(map[string]int, len(enc.FlagColumns))
			for _, col := range enc.FlagColumns {
				row.Flags[col] = ev.Flag(col)
			}
			row.IsEventWindow = ev.IsEventWindow
			row.EventImpactScore = ev.ImpactScore
			row.DaysToNextEvent = ev.DaysToNextEvent
			row.DaysSinceLastEvent = ev.DaysSinceLastEvent

			table.Rows = append(table.Rows, row)
		}
	}

	report.Emitted = len(table.Rows)
	if err := table.Validate(); err != nil {
		return nil, report, err
	}

	a.logger.Info("feature table assembled",
		zap.Int("input_rows", report.InputRows),
		zap.Int("rows", report.Emitted),
		zap.Int("dropped", report.TotalDropped()),
		zap.Strings("flag_columns", table.FlagColumns),
		zap.Bool("macro_defaulted", report.MacroDefaulted),
	)
	return table, report, nil
}

// group normalizes tickers, drops invalid and duplicate rows, and sorts each
// instrument's bars by date.
func (a *Assembler) group(prices []core.PriceObservation, report *Report) (map[string][]core.PriceObservation, error) {
	if len(prices) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no price observations"))
	}

	byTicker := make(map[string][]core.PriceObservation)
	seen := make(map[sentimentKey]struct{}, len(prices))
	for _, p := range prices {
		p.Ticker = core.NormalizeTicker(p.Ticker)
		p.Date = core.Day(p.Date)
		if !p.IsValid() || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			report.Dropped[DropInvalid]++
			continue
		}
		k := sentimentKey{p.Ticker, p.Date}
		if _, dup := seen[k]; dup {
			report.Dropped[DropDuplicate]++
			a.logger.Debug("duplicate price row dropped",
				zap.String("ticker", p.Ticker), zap.String("date", p.Date.Format(core.DateLayout)))
			continue
		}
		seen[k] = struct{}{}
		byTicker[p.Ticker] = append(byTicker[p.Ticker], p)
	}

	if len(byTicker) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no valid price observations"))
	}
	for _, rows := range byTicker {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	}
	return byTicker, nil
}

// alignMacro fills the macro indicators onto one daily grid covering both
// the price dates and the macro observations. Without any macro data the
// indicators default to zero; an indicator never observed in otherwise
// present macro data fails with core.ErrDataGap.
func (a *Assembler) alignMacro(obs []core.MacroObservation, first, last time.Time, report *Report) (*calendar.Frame, error) {
	if len(obs) == 0 {
		report.MacroDefaulted = true
		a.logger.Warn("no macro observations, indicators default to 0")
		return nil, nil
	}

	start, end := first, last
	fx := calendar.Series{Name: ColUSDINRRate}
	rate := calendar.Series{Name: ColInterestRate}
	unemp := calendar.Series{Name: ColUnemploymentRate}
	for _, m := range obs {
		d := core.Day(m.Date)
		if d.Before(start) {
			start = d
		}
		if d.After(end) {
			end = d
		}
		fx.Points = appendObserved(fx.Points, d, m.USDINRRate)
		rate.Points = appendObserved(rate.Points, d, m.InterestRate)
		unemp.Points = appendObserved(unemp.Points, d, m.UnemploymentRate)
	}
	return calendar.Align(start, end, fx, rate, unemp)
}

// appendObserved adds a point only for an observed value so blanks are
// filled from neighbouring days.
func appendObserved(points []calendar.Point, d time.Time, v *float64) []calendar.Point {
	if v == nil {
		return points
	}
	return append(points, calendar.Point{Date: d, Value: *v})
}

func span(byTicker map[string][]core.PriceObservation) (first, last time.Time) {
	for _, rows := range byTicker {
		if first.IsZero() || rows[0].Date.Before(first) {
			first = rows[0].Date
		}
		if end := rows[len(rows)-1].Date; end.After(last) {
			last = end
		}
	}
	return first, last
}
