// Package events turns sparse market-event windows into per-day features.
package events

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/stockshastri/shastri/internal/core"
)

// NoEventDays is the distance reported when no event lies on that side of a date.
const NoEventDays = 365

// Features are the event-derived columns of one day.
type Features struct {
	Flags              map[string]int
	IsEventWindow      int
	ImpactScore        float64
	DaysToNextEvent    int
	DaysSinceLastEvent int
}

// Flag returns the value of a flag column, 0 when absent.
func (f Features) Flag(column string) int {
	return f.Flags[column]
}

// Encoding holds the event features over a date grid.
type Encoding struct {
	FlagColumns []string
	events      []core.EventRecord
	byDate      map[time.Time]Features
}

// FlagColumn names the indicator column of an event type, e.g. "BUDGET" -> "budget_flag".
func FlagColumn(eventType string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(eventType)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String() + "_flag"
}

// Encode computes features for every date of the grid. One flag column is
// produced per distinct event type, sorted by name.
func Encode(records []core.EventRecord, grid []time.Time) *Encoding {
	enc := &Encoding{
		events: make([]core.EventRecord, 0, len(records)),
		byDate: make(map[time.Time]Features, len(grid)),
	}

	seen := make(map[string]struct{})
	for _, e := range records {
		if e.Type == "" || e.WindowEnd.Before(e.WindowStart) {
			continue
		}
		e.WindowStart, e.WindowEnd = core.Day(e.WindowStart), core.Day(e.WindowEnd)
		enc.events = append(enc.events, e)

		col := FlagColumn(e.Type)
		if _, ok := seen[col]; !ok {
			seen[col] = struct{}{}
			enc.FlagColumns = append(enc.FlagColumns, col)
		}
	}
	sort.Strings(enc.FlagColumns)

	for _, d := range grid {
		d = core.Day(d)
		enc.byDate[d] = enc.compute(d)
	}
	return enc
}

// At returns the features of date. Dates off the grid are computed on demand.
func (enc *Encoding) At(date time.Time) Features {
	d := core.Day(date)
	if f, ok := enc.byDate[d]; ok {
		return f
	}
	return enc.compute(d)
}

// compute derives one day's features. Distances are the true minimum over
// all events and fall back to NoEventDays only when no event lies on that
// side of d. The impact score is the active score largest in magnitude.
func (enc *Encoding) compute(d time.Time) Features {
	f := Features{Flags: make(map[string]int, len(enc.FlagColumns))}
	for _, col := range enc.FlagColumns {
		f.Flags[col] = 0
	}

	next, last := -1, -1
	for _, e := range enc.events {
		if e.Active(d) {
			f.Flags[FlagColumn(e.Type)] = 1
			f.IsEventWindow = 1
			if math.Abs(e.ImpactScore) > math.Abs(f.ImpactScore) {
				f.ImpactScore = e.ImpactScore
			}
		}

		// minimum over all events, regardless of type
		if toStart := core.DaysBetween(d, e.WindowStart); toStart >= 0 && (next < 0 || toStart < next) {
			next = toStart
		}
		if sinceEnd := core.DaysBetween(e.WindowEnd, d); sinceEnd >= 0 && (last < 0 || sinceEnd < last) {
			last = sinceEnd
		}
	}

	f.DaysToNextEvent, f.DaysSinceLastEvent = NoEventDays, NoEventDays
	if next >= 0 {
		f.DaysToNextEvent = next
	}
	if last >= 0 {
		f.DaysSinceLastEvent = last
	}
	return f
}
