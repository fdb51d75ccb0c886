package loader

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/stockshastri/shastri/internal/calendar"
	"github.com/stockshastri/shastri/internal/core"
	"github.com/stockshastri/shastri/internal/macro"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatOptional writes an unobserved value as an empty cell.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WritePrices writes bars in the stock table layout.
func WritePrices(w io.Writer, prices []core.PriceObservation) error {
	rows := make([][]string, 0, len(prices))
	for _, p := range prices {
		rows = append(rows, []string{
			p.Date.Format(core.DateLayout),
			p.Ticker,
			formatFloat(p.Open),
			formatFloat(p.High),
			formatFloat(p.Low),
			formatFloat(p.Close),
			strconv.FormatInt(p.Volume, 10),
		})
	}
	return writeAll(w, []string{"date", "ticker", "open_price", "high_price", "low_price", "close_price", "volume"}, rows)
}

// WriteSeries writes a dated series as date,<name>.
func WriteSeries(w io.Writer, s calendar.Series) error {
	rows := make([][]string, 0, len(s.Points))
	for _, p := range s.Points {
		rows = append(rows, []string{p.Date.Format(core.DateLayout), formatFloat(p.Value)})
	}
	return writeAll(w, []string{"date", s.Name}, rows)
}

// WriteMacro writes the daily macro table.
func WriteMacro(w io.Writer, obs []core.MacroObservation) error {
	rows := make([][]string, 0, len(obs))
	for _, m := range obs {
		rows = append(rows, []string{
			m.Date.Format(core.DateLayout),
			formatOptional(m.USDINRRate),
			formatOptional(m.InterestRate),
			formatOptional(m.UnemploymentRate),
		})
	}
	return writeAll(w, []string{"date", "usd_inr_rate", "interest_rate", "unemployment_rate"}, rows)
}

// WriteMacroComplete writes macro rows joined with their event features.
func WriteMacroComplete(w io.Writer, flagColumns []string, days []macro.Day) error {
	header := []string{"date", "usd_inr_rate", "interest_rate", "unemployment_rate"}
	header = append(header, flagColumns...)
	header = append(header, "is_event_window", "event_impact_score", "days_to_next_event", "days_since_last_event")

	rows := make([][]string, 0, len(days))
	for _, d := range days {
		row := []string{
			d.Date.Format(core.DateLayout),
			formatOptional(d.USDINRRate),
			formatOptional(d.InterestRate),
			formatOptional(d.UnemploymentRate),
		}
		for _, col := range flagColumns {
			row = append(row, strconv.Itoa(d.Events.Flag(col)))
		}
		row = append(row,
			strconv.Itoa(d.Events.IsEventWindow),
			formatFloat(d.Events.ImpactScore),
			strconv.Itoa(d.Events.DaysToNextEvent),
			strconv.Itoa(d.Events.DaysSinceLastEvent),
		)
		rows = append(rows, row)
	}
	return writeAll(w, header, rows)
}

// WriteSentiment writes aggregated sentiment rows.
func WriteSentiment(w io.Writer, obs []core.SentimentObservation) error {
	rows := make([][]string, 0, len(obs))
	for _, s := range obs {
		rows = append(rows, []string{
			s.Date.Format(core.DateLayout),
			s.Ticker,
			formatFloat(s.Score),
			strconv.Itoa(s.HeadlineCount),
			strconv.FormatBool(s.Fallback),
		})
	}
	return writeAll(w, []string{"date", "ticker", "sentiment_score", "headline_count", "fallback"}, rows)
}

// WriteEvents writes market events in the layout ReadEvents accepts.
func WriteEvents(w io.Writer, evs []core.EventRecord) error {
	rows := make([][]string, 0, len(evs))
	for _, e := range evs {
		rows = append(rows, []string{
			e.Type,
			e.Name,
			e.EventDate.Format(core.DateLayout),
			e.WindowStart.Format(core.DateLayout),
			e.WindowEnd.Format(core.DateLayout),
			formatFloat(e.ImpactScore),
		})
	}
	return writeAll(w, []string{"event_type", "event_name", "event_date", "impact_window_start", "impact_window_end", "impact_score"}, rows)
}
