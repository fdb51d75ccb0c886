package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical day format used in files, queries and responses.
const DateLayout = "2006-01-02"

// PriceObservation is one daily bar for an instrument. Unique per (Ticker, Date).
type PriceObservation struct {
	Ticker string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// IsValid checks if the observation has the fields the pipeline needs
func (p PriceObservation) IsValid() bool {
	return p.Ticker != "" && !p.Date.IsZero() && p.Close > 0
}

// MacroObservation holds the instrument-independent indicators for one day.
// A nil rate was not observed that day.
type MacroObservation struct {
	Date             time.Time
	USDINRRate       *float64
	InterestRate     *float64
	UnemploymentRate *float64
}

// Float returns a pointer to v, for optional observation fields.
func Float(v float64) *float64 {
	return &v
}

// SentimentObservation is the aggregated headline sentiment of one instrument on one day.
type SentimentObservation struct {
	Ticker        string
	Date          time.Time
	Score         float64 // -1 to 1
	HeadlineCount int
	// Fallback is set when the score comes from the general headline pool
	// rather than headlines matching the instrument.
	Fallback bool
}

// EventRecord is a market-wide event with an inclusive impact window.
type EventRecord struct {
	Type        string
	Name        string
	EventDate   time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	ImpactScore float64
}

// Active reports whether d falls inside the event's impact window.
func (e EventRecord) Active(d time.Time) bool {
	d = Day(d)
	return !d.Before(Day(e.WindowStart)) && !d.After(Day(e.WindowEnd))
}

// Headline is a dated news title. Ticker is set when the source already
// attributed it to an instrument.
type Headline struct {
	Date   time.Time
	Title  string
	Source string
	Ticker string
}

// Direction is the predicted next-day move.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// DirectionOf maps a class label to a direction.
func DirectionOf(class int) Direction {
	if class == 1 {
		return DirectionUp
	}
	return DirectionDown
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// DaysBetween returns the whole number of days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
