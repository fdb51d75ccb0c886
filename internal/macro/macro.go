// Package macro builds the daily macro-indicator table.
package macro

import (
	"time"

	"github.com/stockshastri/shastri/internal/calendar"
	"github.com/stockshastri/shastri/internal/core"
	"github.com/stockshastri/shastri/internal/events"
)

const (
	seriesFX           = "usd_inr_rate"
	seriesInterestRate = "interest_rate"
	seriesUnemployment = "unemployment_rate"
)

// Day is one macro row with the event features of that date.
type Day struct {
	core.MacroObservation
	Events events.Features
}

// Build aligns the three raw indicator series onto every day of
// [start, end]. An indicator without any observation in the window fails
// with core.ErrDataGap.
func Build(start, end time.Time, fx, interestRate, unemployment calendar.Series) ([]core.MacroObservation, error) {
	fx.Name = seriesFX
	interestRate.Name = seriesInterestRate
	unemployment.Name = seriesUnemployment

	frame, err := calendar.Align(start, end, fx, interestRate, unemployment)
	if err != nil {
		return nil, err
	}

	out := make([]core.MacroObservation, len(frame.Dates))
	for i, d := range frame.Dates {
		out[i] = core.MacroObservation{
			Date:             d,
			USDINRRate:       core.Float(frame.Columns[seriesFX][i]),
			InterestRate:     core.Float(frame.Columns[seriesInterestRate][i]),
			UnemploymentRate: core.Float(frame.Columns[seriesUnemployment][i]),
		}
	}
	return out, nil
}

// Complete joins each macro day with its event features. Returns the rows
// and the sorted flag columns present.
func Complete(obs []core.MacroObservation, records []core.EventRecord) ([]Day, []string) {
	grid := make([]time.Time, len(obs))
	for i, m := range obs {
		grid[i] = m.Date
	}
	enc := events.Encode(records, grid)

	out := make([]Day, len(obs))
	for i, m := range obs {
		out[i] = Day{MacroObservation: m, Events: enc.At(m.Date)}
	}
	return out, enc.FlagColumns
}
