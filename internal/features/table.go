// Package features assembles the supervised-learning table from prices,
// macro indicators, sentiment and event features.
package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stockshastri/shastri/internal/core"
)

// Column names of the feature table.
const (
	ColTicker             = "ticker"
	ColDate               = "date"
	ColOpenPrice          = "open_price"
	ColHighPrice          = "high_price"
	ColLowPrice           = "low_price"
	ColClosePrice         = "close_price"
	ColVolume             = "volume"
	ColSentimentScore     = "sentiment_score"
	ColUSDINRRate         = "usd_inr_rate"
	ColInterestRate       = "interest_rate"
	ColUnemploymentRate   = "unemployment_rate"
	ColDaysToNextEvent    = "days_to_next_event"
	ColDaysSinceLastEvent = "days_since_last_event"
	ColIsEventWindow      = "is_event_window"
	ColEventImpactScore   = "event_impact_score"
	ColReturn1            = "return_1"
	ColReturnDirection    = "return_direction"
)

// BaseFeatures is the fixed leading order of the model's feature vector.
// Event-type flag columns follow in sorted order.
var BaseFeatures = []string{
	ColClosePrice,
	ColSentimentScore,
	ColUSDINRRate,
	ColInterestRate,
	ColUnemploymentRate,
	ColDaysToNextEvent,
	ColDaysSinceLastEvent,
	ColIsEventWindow,
	ColEventImpactScore,
}

// Row is one labeled (instrument, date) record.
type Row struct {
	Ticker string
	Date   time.Time

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64

	SentimentScore   float64
	USDINRRate       float64
	InterestRate     float64
	UnemploymentRate float64

	Flags              map[string]int
	IsEventWindow      int
	EventImpactScore   float64
	DaysToNextEvent    int
	DaysSinceLastEvent int

	Return1         float64
	ReturnDirection int
}

// Value returns a numeric column by name.
func (r Row) Value(column string) (float64, bool) {
	switch column {
	case ColOpenPrice:
		return r.Open, true
	case ColHighPrice:
		return r.High, true
	case ColLowPrice:
		return r.Low, true
	case ColClosePrice:
		return r.Close, true
	case ColVolume:
		return float64(r.Volume), true
	case ColSentimentScore:
		return r.SentimentScore, true
	case ColUSDINRRate:
		return r.USDINRRate, true
	case ColInterestRate:
		return r.InterestRate, true
	case ColUnemploymentRate:
		return r.UnemploymentRate, true
	case ColDaysToNextEvent:
		return float64(r.DaysToNextEvent), true
	case ColDaysSinceLastEvent:
		return float64(r.DaysSinceLastEvent), true
	case ColIsEventWindow:
		return float64(r.IsEventWindow), true
	case ColEventImpactScore:
		return r.EventImpactScore, true
	case ColReturn1:
		return r.Return1, true
	case ColReturnDirection:
		return float64(r.ReturnDirection), true
	}
	if v, ok := r.Flags[column]; ok {
		return float64(v), true
	}
	return 0, false
}

// Vector returns the row's values in the given column order.
func (r Row) Vector(names []string) ([]float64, error) {
	x := make([]float64, len(names))
	for i, name := range names {
		v, ok := r.Value(name)
		if !ok {
			return nil, core.WrapError(core.ErrStaleArtifact, fmt.Errorf("feature %q not in table", name))
		}
		x[i] = v
	}
	return x, nil
}

// Table is the assembled feature table.
type Table struct {
	FlagColumns []string
	Rows        []Row
}

// FeatureNames returns the model input columns in their fixed order.
func (t *Table) FeatureNames() []string {
	names := make([]string, 0, len(BaseFeatures)+len(t.FlagColumns))
	names = append(names, BaseFeatures...)
	return append(names, t.FlagColumns...)
}

// Validate checks the terminal invariant: every feature and label is present and finite.
func (t *Table) Validate() error {
	names := append(t.FeatureNames(), ColReturn1)
	for _, r := range t.Rows {
		if r.Ticker == "" || r.Date.IsZero() {
			return core.WrapError(core.ErrInvalidTable, fmt.Errorf("row without ticker or date"))
		}
		for _, name := range names {
			v, ok := r.Value(name)
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				return core.WrapError(core.ErrInvalidTable, fmt.Errorf("%s %s: column %s missing",
					r.Ticker, r.Date.Format(core.DateLayout), name))
			}
		}
		if r.ReturnDirection != 0 && r.ReturnDirection != 1 {
			return core.WrapError(core.ErrInvalidTable, fmt.Errorf("%s %s: label %d",
				r.Ticker, r.Date.Format(core.DateLayout), r.ReturnDirection))
		}
	}
	return nil
}

// Tickers returns the distinct instruments in the table, sorted.
func (t *Table) Tickers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.Rows {
		if _, ok := seen[r.Ticker]; !ok {
			seen[r.Ticker] = struct{}{}
			out = append(out, r.Ticker)
		}
	}
	sort.Strings(out)
	return out
}

// Latest returns the most recent row of ticker.
func (t *Table) Latest(ticker string) (Row, bool) {
	ticker = core.NormalizeTicker(ticker)
	var latest Row
	found := false
	for _, r := range t.Rows {
		if r.Ticker != ticker {
			continue
		}
		if !found || r.Date.After(latest.Date) {
			latest = r
			found = true
		}
	}
	return latest, found
}

// Matrix returns the feature matrix in names order and the label vector.
func (t *Table) Matrix(names []string) ([][]float64, []int, error) {
	X := make([][]float64, len(t.Rows))
	y := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		x, err := r.Vector(names)
		if err != nil {
			return nil, nil, err
		}
		X[i] = x
		y[i] = r.ReturnDirection
	}
	return X, y, nil
}

// SplitByDate orders rows by (date, ticker) and returns about the earliest
// fraction as the training set and the remainder as the holdout. The cut
// falls on a date boundary so every date lands wholly on one side; it moves
// to the nearer boundary, avoiding an empty side when the table spans more
// than one date.
func (t *Table) SplitByDate(fraction float64) (train, test *Table) {
	rows := make([]Row, len(t.Rows))
	copy(rows, t.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Ticker < rows[j].Ticker
	})

	fraction = math.Max(0, math.Min(1, fraction))
	cut := dateBoundary(rows, int(float64(len(rows))*fraction))
	train = &Table{FlagColumns: t.FlagColumns, Rows: rows[:cut]}
	test = &Table{FlagColumns: t.FlagColumns, Rows: rows[cut:]}
	return train, test
}

// dateBoundary moves cut off a date so rows[cut-1] and rows[cut] differ.
func dateBoundary(rows []Row, cut int) int {
	if cut <= 0 || cut >= len(rows) {
		return cut
	}
	sameDay := func(i int) bool { return rows[i-1].Date.Equal(rows[i].Date) }

	lo, hi := cut, cut
	for lo > 0 && sameDay(lo) {
		lo--
	}
	for hi < len(rows) && sameDay(hi) {
		hi++
	}
	switch {
	case lo == cut:
		return cut
	case lo == 0:
		return hi
	case hi == len(rows):
		return lo
	case cut-lo <= hi-cut:
		return lo
	default:
		return hi
	}
}
