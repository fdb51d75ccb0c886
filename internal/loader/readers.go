package loader

import (
	"fmt"
	"io"
	"strings"

	"github.com/stockshastri/shastri/internal/calendar"
	"github.com/stockshastri/shastri/internal/core"
)

// ReadPrices parses daily bars. Accepts the stock table columns
// (date, ticker, open_price, ..., close_price, volume) or the Yahoo export
// names (Date, Open, ..., Close, Volume). Rows with an unparseable date or
// close are skipped.
func ReadPrices(r io.Reader, path string) ([]core.PriceObservation, error) {
	s, err := readSheet(r, path)
	if err != nil {
		return nil, err
	}
	dateCol, err := s.require("date")
	if err != nil {
		return nil, err
	}
	tickerCol, err := s.require("ticker", "symbol")
	if err != nil {
		return nil, err
	}
	closeCol, err := s.require("close_price", "close", "adj close")
	if err != nil {
		return nil, err
	}
	openCol, hasOpen := s.find("open_price", "open")
	highCol, hasHigh := s.find("high_price", "high")
	lowCol, hasLow := s.find("low_price", "low")
	volCol, hasVol := s.find("volume")

	optional := func(rec []string, i int, ok bool) float64 {
		if !ok {
			return 0
		}
		v, err := ParseNumber(cell(rec, i))
		if err != nil {
			return 0
		}
		return v
	}

	out := make([]core.PriceObservation, 0, len(s.records))
	for _, rec := range s.records {
		d, err := ParseDate(cell(rec, dateCol))
		if err != nil {
			continue
		}
		closePrice, err := ParseNumber(cell(rec, closeCol))
		if err != nil {
			continue
		}
		out = append(out, core.PriceObservation{
			Ticker: core.NormalizeTicker(cell(rec, tickerCol)),
			Date:   d,
			Open:   optional(rec, openCol, hasOpen),
			High:   optional(rec, highCol, hasHigh),
			Low:    optional(rec, lowCol, hasLow),
			Close:  closePrice,
			Volume: int64(optional(rec, volCol, hasVol)),
		})
	}
	return out, nil
}

// ReadSeries parses a two-column dated series. The first matching column
// name is used for each side. Rows whose date or value does not parse are
// dropped.
func ReadSeries(r io.Reader, path, name string, dateCols, valueCols []string) (calendar.Series, error) {
	series := calendar.Series{Name: name}
	s, err := readSheet(r, path)
	if err != nil {
		return series, err
	}
	dateCol, err := s.require(dateCols...)
	if err != nil {
		return series, err
	}
	valueCol, err := s.require(valueCols...)
	if err != nil {
		return series, err
	}

	for _, rec := range s.records {
		d, err := ParseDate(cell(rec, dateCol))
		if err != nil {
			continue
		}
		v, err := ParseNumber(cell(rec, valueCol))
		if err != nil {
			continue
		}
		series.Points = append(series.Points, calendar.Point{Date: d, Value: v})
	}
	calendar.SortPoints(series.Points)
	return series, nil
}

// ReadFX parses USD/INR quotes, raw (Date, Price) or cleaned (date, usd_inr_rate).
func ReadFX(r io.Reader, path string) (calendar.Series, error) {
	return ReadSeries(r, path, "usd_inr_rate", []string{"date"}, []string{"usd_inr_rate", "price", "close"})
}

// ReadRepoRate parses the policy repo rate; values may carry a percent sign.
func ReadRepoRate(r io.Reader, path string) (calendar.Series, error) {
	return ReadSeries(r, path, "interest_rate", []string{"date"}, []string{"interest_rate", "repo_rate", "rate"})
}

// ReadUnemployment parses the unemployment rate series.
func ReadUnemployment(r io.Reader, path string) (calendar.Series, error) {
	return ReadSeries(r, path, "unemployment_rate", []string{"date"}, []string{"unemployment_rate", "value"})
}

// ReadMacro parses the daily macro table. Missing indicator cells read as 0.
func ReadMacro(r io.Reader, path string) ([]core.MacroObservation, error) {
	s, err := readSheet(r, path)
	if err != nil {
		return nil, err
	}
	dateCol, err := s.require("date")
	if err != nil {
		return nil, err
	}
	fxCol, hasFX := s.find("usd_inr_rate")
	rateCol, hasRate := s.find("interest_rate")
	unempCol, hasUnemp := s.find("unemployment_rate")
	if !hasFX && !hasRate && !hasUnemp {
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("%s: no macro indicator columns", path))
	}

	out := make([]core.MacroObservation, 0, len(s.records))
	for line, rec := range s.records {
		d, err := ParseDate(cell(rec, dateCol))
		if err != nil {
			continue
		}
		m := core.MacroObservation{Date: d}
		for _, f := range []struct {
			col  int
			ok   bool
			name string
			dst  **float64
		}{
			{fxCol, hasFX, "usd_inr_rate", &m.USDINRRate},
			{rateCol, hasRate, "interest_rate", &m.InterestRate},
			{unempCol, hasUnemp, "unemployment_rate", &m.UnemploymentRate},
		} {
			if !f.ok || IsBlank(cell(rec, f.col)) {
				continue
			}
			v, err := ParseNumber(cell(rec, f.col))
			if err != nil {
				return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("%s row %d %s: %w", path, line+2, f.name, err))
			}
			*f.dst = core.Float(v)
		}
		out = append(out, m)
	}
	return out, nil
}

// ReadEvents parses market events. The window columns are required; event
// date defaults to the window start and impact score to 0.
func ReadEvents(r io.Reader, path string) ([]core.EventRecord, error) {
	s, err := readSheet(r, path)
	if err != nil {
		return nil, err
	}
	typeCol, err := s.require("event_type", "type")
	if err != nil {
		return nil, err
	}
	startCol, err := s.require("impact_window_start", "window_start", "start")
	if err != nil {
		return nil, err
	}
	endCol, err := s.require("impact_window_end", "window_end", "end")
	if err != nil {
		return nil, err
	}
	nameCol, hasName := s.find("event_name", "name")
	dateCol, hasDate := s.find("event_date")
	impactCol, hasImpact := s.find("impact_score", "event_impact_score")

	out := make([]core.EventRecord, 0, len(s.records))
	for n, rec := range s.records {
		start, err := ParseDate(cell(rec, startCol))
		if err != nil {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("%s line %d: %w", path, n+2, err))
		}
		end, err := ParseDate(cell(rec, endCol))
		if err != nil {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("%s line %d: %w", path, n+2, err))
		}
		e := core.EventRecord{
			Type:        strings.TrimSpace(cell(rec, typeCol)),
			WindowStart: start,
			WindowEnd:   end,
			EventDate:   start,
		}
		if hasName {
			e.Name = cell(rec, nameCol)
		}
		if hasDate {
			if d, err := ParseDate(cell(rec, dateCol)); err == nil {
				e.EventDate = d
			}
		}
		if hasImpact {
			e.ImpactScore, _ = ParseNumber(cell(rec, impactCol))
		}
		out = append(out, e)
	}
	return out, nil
}

// ReadHeadlines parses a news file. The title column is the first whose
// name contains "title" or "headline"; Ticker and Source are optional.
func ReadHeadlines(r io.Reader, path string) ([]core.Headline, error) {
	s, err := readSheet(r, path)
	if err != nil {
		return nil, err
	}
	dateCol, err := s.require("date", "published", "published_at")
	if err != nil {
		return nil, err
	}
	titleCol, ok := s.findContaining("title", "headline")
	if !ok {
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("%s: no headline column", path))
	}
	tickerCol, hasTicker := s.find("ticker", "symbol")
	sourceCol, hasSource := s.find("source")

	out := make([]core.Headline, 0, len(s.records))
	for _, rec := range s.records {
		d, err := ParseDate(cell(rec, dateCol))
		if err != nil {
			continue
		}
		title := cell(rec, titleCol)
		if title == "" {
			continue
		}
		h := core.Headline{Date: d, Title: title}
		if hasTicker {
			h.Ticker = core.NormalizeTicker(cell(rec, tickerCol))
		}
		if hasSource {
			h.Source = cell(rec, sourceCol)
		}
		out = append(out, h)
	}
	return out, nil
}

// ReadSentiment parses aggregated sentiment rows.
func ReadSentiment(r io.Reader, path string) ([]core.SentimentObservation, error) {
	s, err := readSheet(r, path)
	if err != nil {
		return nil, err
	}
	dateCol, err := s.require("date")
	if err != nil {
		return nil, err
	}
	tickerCol, err := s.require("ticker")
	if err != nil {
		return nil, err
	}
	scoreCol, err := s.require("sentiment_score", "sentimentscore", "score")
	if err != nil {
		return nil, err
	}
	countCol, hasCount := s.find("headline_count")
	fallbackCol, hasFallback := s.find("fallback")

	out := make([]core.SentimentObservation, 0, len(s.records))
	for _, rec := range s.records {
		d, err := ParseDate(cell(rec, dateCol))
		if err != nil {
			continue
		}
		score, err := ParseNumber(cell(rec, scoreCol))
		if err != nil {
			continue
		}
		obs := core.SentimentObservation{
			Ticker: core.NormalizeTicker(cell(rec, tickerCol)),
			Date:   d,
			Score:  score,
		}
		if hasCount {
			n, _ := ParseNumber(cell(rec, countCol))
			obs.HeadlineCount = int(n)
		}
		if hasFallback {
			v := strings.ToLower(cell(rec, fallbackCol))
			obs.Fallback = v == "true" || v == "1"
		}
		out = append(out, obs)
	}
	return out, nil
}
