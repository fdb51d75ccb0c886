// Package loader reads and writes the pipeline's flat files and normalizes
// raw quotes into core types.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockshastri/shastri/internal/core"
)

// dateLayouts are tried in order. Month-first is preferred for slashed dates.
var dateLayouts = []string{
	core.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"Jan 02, 2006",
	"Jan 2, 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"January 2, 2006",
}

// ParseDate accepts the date layouts seen in downloaded quote files and
// returns the UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// IsBlank reports whether a cell holds no value: empty, a dash, or the
// NaN/null markers dataframe exports write for missing cells.
func IsBlank(s string) bool {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'`)) {
	case "", "-", "nan", "null", "na", "n/a", "none":
		return true
	}
	return false
}

// ParseNumber parses a quoted number, tolerating thousands separators,
// a trailing percent sign and surrounding quotes.
func ParseNumber(s string) (float64, error) {
	clean := strings.TrimSpace(s)
	clean = strings.Trim(clean, `"'`)
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.TrimSpace(strings.TrimSuffix(clean, "%"))
	if clean == "" || clean == "-" {
		return 0, fmt.Errorf("empty number %q", s)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// sheet is a CSV file with a case-insensitive header index.
type sheet struct {
	path    string
	columns map[string]int
	header  []string
	records [][]string
}

func readSheet(r io.Reader, path string) (*sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("%s: empty file", path))
		}
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("%s: %w", path, err))
	}

	s := &sheet{path: path, columns: make(map[string]int, len(header)), header: header}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := s.columns[h]; !dup {
			s.columns[h] = i
		}
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("%s: %w", path, err))
	}
	s.records = records
	return s, nil
}

// find returns the index of the first present column among names.
func (s *sheet) find(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := s.columns[strings.ToLower(n)]; ok {
			return i, true
		}
	}
	return 0, false
}

// require is find that fails with the file path when no column matches.
func (s *sheet) require(names ...string) (int, error) {
	if i, ok := s.find(names...); ok {
		return i, nil
	}
	return 0, core.WrapError(core.ErrLoadFailed, fmt.Errorf("%s: missing column %s", s.path, strings.Join(names, "/")))
}

// findContaining returns the first column whose name contains any of subs.
func (s *sheet) findContaining(subs ...string) (int, bool) {
	for i, h := range s.header {
		h = strings.ToLower(h)
		for _, sub := range subs {
			if strings.Contains(h, sub) {
				return i, true
			}
		}
	}
	return 0, false
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
