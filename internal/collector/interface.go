package collector

import (
	"context"
	"time"

	"github.com/stockshastri/shastri/internal/calendar"
	"github.com/stockshastri/shastri/internal/core"
)

// Config holds collector configuration
type Config struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Collector is anything the registry can hold
type Collector interface {
	Name() string
}

// PriceCollector downloads daily bars for one instrument
type PriceCollector interface {
	Collector
	FetchHistory(ctx context.Context, ticker string, start, end time.Time) ([]core.PriceObservation, error)
}

// IndicatorCollector downloads one macro series
type IndicatorCollector interface {
	Collector
	FetchSeries(ctx context.Context, start, end time.Time) (calendar.Series, error)
}
