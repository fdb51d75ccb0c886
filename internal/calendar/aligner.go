// Package calendar builds complete daily grids and fills slow-moving series onto them.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/stockshastri/shastri/internal/core"
)

// Point is one dated observation of a series.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is a sparse, named daily series.
type Series struct {
	Name   string
	Points []Point
}

// Frame is a set of series aligned on one daily grid.
type Frame struct {
	Dates   []time.Time
	Columns map[string][]float64
	index   map[time.Time]int
}

// Days returns every calendar day from start to end inclusive.
func Days(start, end time.Time) []time.Time {
	start, end = core.Day(start), core.Day(end)
	if end.Before(start) {
		return nil
	}
	days := make([]time.Time, 0, core.DaysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Align left-joins each series onto the daily grid [start, end] and fills
// gaps by carrying the last earlier value forward, then the first later
// value backward for a leading gap. Observations outside the range are
// ignored. A series without any observation in range cannot be filled and
// yields core.ErrDataGap.
func Align(start, end time.Time, series ...Series) (*Frame, error) {
	dates := Days(start, end)
	if len(dates) == 0 {
		return nil, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("end %s before start %s", end.Format(core.DateLayout), start.Format(core.DateLayout)))
	}

	f := &Frame{
		Dates:   dates,
		Columns: make(map[string][]float64, len(series)),
		index:   make(map[time.Time]int, len(dates)),
	}
	for i, d := range dates {
		f.index[d] = i
	}

	for _, s := range series {
		values := make([]float64, len(dates))
		present := make([]bool, len(dates))
		observed := 0

		for _, p := range s.Points {
			i, ok := f.index[core.Day(p.Date)]
			if !ok {
				continue
			}
			// last observation for a date wins
			values[i] = p.Value
			if !present[i] {
				observed++
			}
			present[i] = true
		}

		if observed == 0 {
			return nil, core.WrapError(core.ErrDataGap, fmt.Errorf("series %q between %s and %s",
				s.Name, dates[0].Format(core.DateLayout), dates[len(dates)-1].Format(core.DateLayout)))
		}

		fill(values, present)
		f.Columns[s.Name] = values
	}

	return f, nil
}

// fill forward-fills then backward-fills values in place.
func fill(values []float64, present []bool) {
	last := -1
	for i := range values {
		if present[i] {
			last = i
			continue
		}
		if last >= 0 {
			values[i] = values[last]
			present[i] = true
		}
	}

	next := -1
	for i := len(values) - 1; i >= 0; i-- {
		if present[i] {
			next = i
			continue
		}
		if next >= 0 {
			values[i] = values[next]
		}
	}
}

// Index returns the grid position of date.
func (f *Frame) Index(date time.Time) (int, bool) {
	i, ok := f.index[core.Day(date)]
	return i, ok
}

// Value returns the filled value of column at date.
func (f *Frame) Value(column string, date time.Time) (float64, bool) {
	values, ok := f.Columns[column]
	if !ok {
		return 0, false
	}
	i, ok := f.Index(date)
	if !ok {
		return 0, false
	}
	return values[i], true
}

// SortPoints orders points by date; Align does not require it but callers
// that persist series do.
func SortPoints(points []Point) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
}
