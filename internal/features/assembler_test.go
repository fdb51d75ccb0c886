package features

import (
	"errors"
	"testing"
	"time"

	"github.com/stockshastri/shastri/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, _ := time.Parse(core.DateLayout, s)
	return d
}

func bar(ticker, date string, close float64) core.PriceObservation {
	return core.PriceObservation{Ticker: ticker, Date: day(date), Open: close, High: close, Low: close, Close: close, Volume: 1000}
}

func TestAssemble_LabelsNextDayDirection(t *testing.T) {
	in := Input{Prices: []core.PriceObservation{
		bar("A", "2023-01-01", 100),
		bar("A", "2023-01-02", 105),
		bar("A", "2023-01-03", 102),
	}}

	table, report, err := NewAssembler(nil).Assemble(in)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, day("2023-01-01"), table.Rows[0].Date)
	assert.Equal(t, 1, table.Rows[0].ReturnDirection)
	assert.Equal(t, 0.0, table.Rows[0].Return1)

	assert.Equal(t, day("2023-01-02"), table.Rows[1].Date)
	assert.Equal(t, 0, table.Rows[1].ReturnDirection)
	assert.InDelta(t, 0.05, table.Rows[1].Return1, 1e-12)

	assert.Equal(t, 1, report.Dropped[DropUnlabeled])
	assert.True(t, report.MacroDefaulted)
	assert.Equal(t, 2, report.Emitted)
}

func TestAssemble_Defaults(t *testing.T) {
	in := Input{Prices: []core.PriceObservation{
		bar("A", "2023-01-01", 100),
		bar("A", "2023-01-02", 101),
	}}

	table, _, err := NewAssembler(nil).Assemble(in)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	r := table.Rows[0]
	assert.Equal(t, 0.0, r.SentimentScore)
	assert.Equal(t, 0.0, r.USDINRRate)
	assert.Equal(t, 365, r.DaysToNextEvent)
	assert.Equal(t, 365, r.DaysSinceLastEvent)
	assert.Equal(t, 0, r.IsEventWindow)
	assert.Empty(t, table.FlagColumns)
}

func TestAssemble_BudgetEvent(t *testing.T) {
	var prices []core.PriceObservation
	for d := day("2023-01-27"); !d.After(day("2023-02-06")); d = d.AddDate(0, 0, 1) {
		prices = append(prices, core.PriceObservation{Ticker: "A", Date: d, Close: 100, Volume: 1})
	}
	in := Input{
		Prices: prices,
		Events: []core.EventRecord{{
			Type:        "BUDGET",
			Name:        "Union Budget",
			EventDate:   day("2023-02-01"),
			WindowStart: day("2023-02-01"),
			WindowEnd:   day("2023-02-03"),
			ImpactScore: 0.8,
		}},
	}

	table, _, err := NewAssembler(nil).Assemble(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"budget_flag"}, table.FlagColumns)

	active := map[string]bool{"2023-02-01": true, "2023-02-02": true, "2023-02-03": true}
	for _, r := range table.Rows {
		ds := r.Date.Format(core.DateLayout)
		if active[ds] {
			assert.Equal(t, 1, r.Flags["budget_flag"], ds)
			assert.Equal(t, 1, r.IsEventWindow, ds)
			assert.Equal(t, 0.8, r.EventImpactScore, ds)
		} else {
			assert.Equal(t, 0, r.Flags["budget_flag"], ds)
		}
		if ds == "2023-01-28" {
			assert.Equal(t, 4, r.DaysToNextEvent)
		}
	}
}

func TestAssemble_NoLeakageAcrossInstruments(t *testing.T) {
	in := Input{Prices: []core.PriceObservation{
		bar("A", "2023-01-01", 100),
		bar("A", "2023-01-02", 90),
		bar("B", "2023-01-02", 10),
		bar("B", "2023-01-03", 20),
		bar("B", "2023-01-04", 15),
	}}

	table, report, err := NewAssembler(nil).Assemble(in)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, 2, report.Dropped[DropUnlabeled])

	a := table.Rows[0]
	assert.Equal(t, "A", a.Ticker)
	assert.Equal(t, 0, a.ReturnDirection)

	b0, b1 := table.Rows[1], table.Rows[2]
	assert.Equal(t, "B", b0.Ticker)
	assert.Equal(t, 0.0, b0.Return1, "first B row must not use A's close")
	assert.Equal(t, 1, b0.ReturnDirection)
	assert.InDelta(t, 1.0, b1.Return1, 1e-12)
	assert.Equal(t, 0, b1.ReturnDirection)
}

func TestAssemble_NormalizesAndDropsDuplicates(t *testing.T) {
	in := Input{Prices: []core.PriceObservation{
		bar("tcs.ns", "2023-01-02", 100),
		bar("TCS", "2023-01-01", 90),
		bar("TCS.NS", "2023-01-01", 95),
		bar("TCS", "2023-01-03", 0),
	}}

	table, report, err := NewAssembler(nil).Assemble(in)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	assert.Equal(t, "TCS", table.Rows[0].Ticker)
	assert.Equal(t, 90.0, table.Rows[0].Close, "first duplicate is kept")
	assert.Equal(t, 1, report.Dropped[DropDuplicate])
	assert.Equal(t, 1, report.Dropped[DropInvalid])
	assert.Equal(t, 1, report.Dropped[DropUnlabeled])
	assert.Equal(t, 3, report.TotalDropped())
}

func TestAssemble_SingleObservationInstrumentDropped(t *testing.T) {
	in := Input{Prices: []core.PriceObservation{
		bar("A", "2023-01-01", 100),
		bar("A", "2023-01-02", 101),
		bar("B", "2023-01-01", 5),
	}}

	table, report, err := NewAssembler(nil).Assemble(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, table.Tickers())
	assert.Equal(t, 2, report.Dropped[DropUnlabeled])
}

func TestAssemble_MacroAndSentimentJoined(t *testing.T) {
	in := Input{
		Prices: []core.PriceObservation{
			bar("A", "2023-01-02", 100),
			bar("A", "2023-01-03", 101),
			bar("A", "2023-01-04", 102),
		},
		Macro: []core.MacroObservation{
			{Date: day("2023-01-01"), USDINRRate: core.Float(82.5), InterestRate: core.Float(6.25), UnemploymentRate: core.Float(4.1)},
			{Date: day("2023-01-03"), USDINRRate: core.Float(83.0), InterestRate: core.Float(6.5), UnemploymentRate: core.Float(4.1)},
		},
		Sentiment: []core.SentimentObservation{
			{Ticker: "A.NS", Date: day("2023-01-03"), Score: 0.4},
		},
	}

	table, report, err := NewAssembler(nil).Assemble(in)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.False(t, report.MacroDefaulted)

	assert.Equal(t, 82.5, table.Rows[0].USDINRRate, "forward filled from 2023-01-01")
	assert.Equal(t, 0.0, table.Rows[0].SentimentScore)
	assert.Equal(t, 83.0, table.Rows[1].USDINRRate)
	assert.Equal(t, 6.5, table.Rows[1].InterestRate)
	assert.Equal(t, 0.4, table.Rows[1].SentimentScore)
}

func TestAssemble_MacroBackfilledBeforeFirstObservation(t *testing.T) {
	in := Input{
		Prices: []core.PriceObservation{
			bar("A", "2023-01-01", 100),
			bar("A", "2023-01-02", 101),
		},
		Macro: []core.MacroObservation{
			{Date: day("2023-01-05"), USDINRRate: core.Float(81), InterestRate: core.Float(6), UnemploymentRate: core.Float(3.2)},
		},
	}

	table, _, err := NewAssembler(nil).Assemble(in)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 81.0, table.Rows[0].USDINRRate)
	assert.Equal(t, 3.2, table.Rows[0].UnemploymentRate)
}

func TestAssemble_BlankMacroCellsForwardFilled(t *testing.T) {
	in := Input{
		Prices: []core.PriceObservation{
			bar("A", "2023-01-01", 100),
			bar("A", "2023-01-02", 101),
			bar("A", "2023-01-03", 102),
		},
		Macro: []core.MacroObservation{
			{Date: day("2023-01-01"), USDINRRate: core.Float(82.1), InterestRate: core.Float(6.25), UnemploymentRate: core.Float(7.3)},
			{Date: day("2023-01-02"), USDINRRate: core.Float(82.2)},
		},
	}

	table, report, err := NewAssembler(nil).Assemble(in)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.False(t, report.MacroDefaulted)

	r := table.Rows[1]
	assert.Equal(t, day("2023-01-02"), r.Date)
	assert.Equal(t, 82.2, r.USDINRRate)
	assert.Equal(t, 6.25, r.InterestRate, "blank carried forward, not zeroed")
	assert.Equal(t, 7.3, r.UnemploymentRate, "blank carried forward, not zeroed")
}

func TestAssemble_MacroColumnNeverObserved(t *testing.T) {
	in := Input{
		Prices: []core.PriceObservation{
			bar("A", "2023-01-01", 100),
			bar("A", "2023-01-02", 101),
		},
		Macro: []core.MacroObservation{
			{Date: day("2023-01-01"), USDINRRate: core.Float(82.1), InterestRate: core.Float(6.25)},
			{Date: day("2023-01-02"), USDINRRate: core.Float(82.2), InterestRate: core.Float(6.25)},
		},
	}

	_, _, err := NewAssembler(nil).Assemble(in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDataGap))
	assert.Contains(t, err.Error(), ColUnemploymentRate)
}

func TestAssemble_NoPrices(t *testing.T) {
	_, _, err := NewAssembler(nil).Assemble(Input{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNoData))

	_, _, err = NewAssembler(nil).Assemble(Input{Prices: []core.PriceObservation{bar("A", "2023-01-01", -1)}})
	assert.True(t, errors.Is(err, core.ErrNoData))
}
