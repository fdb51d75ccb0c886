package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/stockshastri/shastri/internal/core"
)

// Header returns the CSV column order for a table with the given flag columns.
func Header(flagColumns []string) []string {
	h := []string{
		ColTicker, ColDate,
		ColOpenPrice, ColHighPrice, ColLowPrice, ColClosePrice, ColVolume,
		ColSentimentScore, ColUSDINRRate, ColInterestRate, ColUnemploymentRate,
	}
	h = append(h, flagColumns...)
	return append(h,
		ColIsEventWindow, ColEventImpactScore, ColDaysToNextEvent, ColDaysSinceLastEvent,
		ColReturn1, ColReturnDirection,
	)
}

// WriteCSV writes the table with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := Header(t.FlagColumns)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for _, r := range t.Rows {
		for i, col := range header {
			switch col {
			case ColTicker:
				record[i] = r.Ticker
			case ColDate:
				record[i] = r.Date.Format(core.DateLayout)
			case ColVolume, ColIsEventWindow, ColDaysToNextEvent, ColDaysSinceLastEvent, ColReturnDirection:
				v, _ := r.Value(col)
				record[i] = strconv.FormatInt(int64(v), 10)
			default:
				v, _ := r.Value(col)
				if strings.HasSuffix(col, "_flag") {
					record[i] = strconv.Itoa(int(v))
				} else {
					record[i] = strconv.FormatFloat(v, 'f', -1, 64)
				}
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV. Any column ending in "_flag"
// is taken as an event flag.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("read header: %w", err))
	}

	pos := make(map[string]int, len(header))
	t := &Table{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		pos[h] = i
		if strings.HasSuffix(h, "_flag") {
			t.FlagColumns = append(t.FlagColumns, h)
		}
	}
	sort.Strings(t.FlagColumns)
	for _, col := range append([]string{ColTicker, ColDate, ColReturnDirection}, BaseFeatures...) {
		if _, ok := pos[col]; !ok {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("missing column %q", col))
		}
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("line %d: %w", line, err))
		}

		row, err := parseRow(rec, pos, t.FlagColumns)
		if err != nil {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("line %d: %w", line, err))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func parseRow(rec []string, pos map[string]int, flags []string) (Row, error) {
	get := func(col string) (string, bool) {
		i, ok := pos[col]
		if !ok || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}
	// num reads a numeric cell. Columns absent from the header read as 0;
	// a present cell must hold a finite number.
	num := func(col string) (float64, error) {
		if _, ok := pos[col]; !ok {
			return 0, nil
		}
		s, _ := get(col)
		if s == "" {
			return 0, fmt.Errorf("column %s: blank cell", col)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", col, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("column %s: non-finite value %q", col, s)
		}
		return v, nil
	}

	var row Row
	ticker, _ := get(ColTicker)
	row.Ticker = core.NormalizeTicker(ticker)
	date, _ := get(ColDate)
	d, err := core.ParseDay(date)
	if err != nil {
		return row, err
	}
	row.Date = d

	floats := map[string]*float64{
		ColOpenPrice:        &row.Open,
		ColHighPrice:        &row.High,
		ColLowPrice:         &row.Low,
		ColClosePrice:       &row.Close,
		ColSentimentScore:   &row.SentimentScore,
		ColUSDINRRate:       &row.USDINRRate,
		ColInterestRate:     &row.InterestRate,
		ColUnemploymentRate: &row.UnemploymentRate,
		ColEventImpactScore: &row.EventImpactScore,
		ColReturn1:          &row.Return1,
	}
	for col, dst := range floats {
		if *dst, err = num(col); err != nil {
			return row, err
		}
	}

	ints := map[string]*int{
		ColIsEventWindow:      &row.IsEventWindow,
		ColReturnDirection:    &row.ReturnDirection,
		ColDaysToNextEvent:    &row.DaysToNextEvent,
		ColDaysSinceLastEvent: &row.DaysSinceLastEvent,
	}
	for col, dst := range ints {
		v, err := num(col)
		if err != nil {
			return row, err
		}
		*dst = int(v)
	}
	vol, err := num(ColVolume)
	if err != nil {
		return row, err
	}
	row.Volume = int64(vol)

	row.Flags = make(map[string]int, len(flags))
	for _, col := range flags {
		v, err := num(col)
		if err != nil {
			return row, err
		}
		row.Flags[col] = int(v)
	}
	return row, nil
}
