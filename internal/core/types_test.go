package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceObservation_IsValid(t *testing.T) {
	p := PriceObservation{Ticker: "TCS", Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Close: 3300}
	assert.True(t, p.IsValid())

	assert.False(t, PriceObservation{Ticker: "", Close: 1}.IsValid())
	assert.False(t, PriceObservation{Ticker: "TCS", Date: p.Date, Close: 0}.IsValid())
}

func TestDay_TruncatesToUTCMidnight(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	in := time.Date(2023, 2, 1, 15, 30, 0, 0, ist)

	got := Day(in)
	assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay(" 2023-01-13 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 13, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDay("13/01/2023")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2023, 1, 28, 0, 0, 0, 0, time.UTC)
	b := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 4, DaysBetween(a, b))
	assert.Equal(t, -4, DaysBetween(b, a))
}

func TestEventRecord_Active(t *testing.T) {
	e := EventRecord{
		Type:        "BUDGET",
		WindowStart: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2023, 2, 3, 0, 0, 0, 0, time.UTC),
	}

	assert.False(t, e.Active(time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.True(t, e.Active(time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, e.Active(time.Date(2023, 2, 3, 23, 0, 0, 0, time.UTC)))
	assert.False(t, e.Active(time.Date(2023, 2, 4, 0, 0, 0, 0, time.UTC)))
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, DirectionUp, DirectionOf(1))
	assert.Equal(t, DirectionDown, DirectionOf(0))
}
