// Package worldbank downloads annual indicators from the World Bank API.
package worldbank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stockshastri/shastri/internal/calendar"
	"github.com/stockshastri/shastri/internal/collector"
	"github.com/stockshastri/shastri/internal/core"
	"go.uber.org/zap"
)

const (
	baseURL = "https://api.worldbank.org/v2"

	// DefaultCountry and DefaultIndicator select India's total unemployment
	// as a percent of the labor force.
	DefaultCountry   = "IN"
	DefaultIndicator = "SL.UEM.TOTL.ZS"

	SeriesName = "unemployment_rate"
)

// FallbackUnemployment holds approximate annual values used only when the
// download fails and the fallback is enabled.
var FallbackUnemployment = map[int]float64{
	2019: 2.55,
	2020: 4.84,
	2021: 4.66,
	2022: 4.10,
	2023: 3.25,
}

// Config selects the series and the failure policy
type Config struct {
	collector.Config `mapstructure:",squash"`
	Country          string `mapstructure:"country"`
	Indicator        string `mapstructure:"indicator"`
	Fallback         bool   `mapstructure:"fallback"`
}

// WorldBank implements collector.IndicatorCollector
type WorldBank struct {
	client  *http.Client
	cfg     Config
	baseURL string
	logger  *zap.Logger
}

// New creates a World Bank collector
func New(cfg Config, logger *zap.Logger) *WorldBank {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Country == "" {
		cfg.Country = DefaultCountry
	}
	if cfg.Indicator == "" {
		cfg.Indicator = DefaultIndicator
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	url := cfg.BaseURL
	if url == "" {
		url = baseURL
	}
	return &WorldBank{
		client:  &http.Client{Timeout: timeout},
		cfg:     cfg,
		baseURL: url,
		logger:  logger,
	}
}

func (w *WorldBank) Name() string {
	return "worldbank"
}

// FetchSeries returns one point per year in [start, end], dated January 1.
// Years the API reports as null are omitted.
func (w *WorldBank) FetchSeries(ctx context.Context, start, end time.Time) (calendar.Series, error) {
	series, err := w.fetch(ctx, start.Year(), end.Year())
	if err == nil {
		return series, nil
	}
	if !w.cfg.Fallback {
		return calendar.Series{}, err
	}

	w.logger.Warn("world bank download failed, using fallback values",
		zap.String("indicator", w.cfg.Indicator),
		zap.Error(err))
	return fallbackSeries(start.Year(), end.Year()), nil
}

func (w *WorldBank) fetch(ctx context.Context, fromYear, toYear int) (calendar.Series, error) {
	url := fmt.Sprintf("%s/country/%s/indicator/%s?format=json&date=%d:%d&per_page=1000",
		w.baseURL, w.cfg.Country, w.cfg.Indicator, fromYear, toYear)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return calendar.Series{}, core.WrapError(core.ErrCollectorFailed, err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return calendar.Series{}, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching %s: %w", w.cfg.Indicator, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return calendar.Series{}, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching %s: unexpected status %d", w.cfg.Indicator, resp.StatusCode))
	}

	// The API answers [page, rows] on success and [{"message": ...}] on error.
	var payload []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return calendar.Series{}, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding %s: %w", w.cfg.Indicator, err))
	}
	if len(payload) < 2 {
		msg := "empty response"
		if len(payload) == 1 {
			msg = string(payload[0])
		}
		return calendar.Series{}, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("world bank error for %s: %s", w.cfg.Indicator, msg))
	}

	var rows []observation
	if err := json.Unmarshal(payload[1], &rows); err != nil {
		return calendar.Series{}, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding %s rows: %w", w.cfg.Indicator, err))
	}

	series := calendar.Series{Name: SeriesName}
	for _, row := range rows {
		if row.Value == nil {
			continue
		}
		year, err := strconv.Atoi(row.Date)
		if err != nil {
			continue
		}
		series.Points = append(series.Points, calendar.Point{
			Date:  time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			Value: *row.Value,
		})
	}
	if len(series.Points) == 0 {
		return calendar.Series{}, core.WrapError(core.ErrNoData, fmt.Errorf("%s: no values for %d-%d", w.cfg.Indicator, fromYear, toYear))
	}
	calendar.SortPoints(series.Points)

	w.logger.Info("fetched indicator",
		zap.String("indicator", w.cfg.Indicator),
		zap.String("country", w.cfg.Country),
		zap.Int("rows", len(series.Points)))
	return series, nil
}

func fallbackSeries(fromYear, toYear int) calendar.Series {
	series := calendar.Series{Name: SeriesName}
	for year := fromYear; year <= toYear; year++ {
		v, ok := FallbackUnemployment[year]
		if !ok {
			continue
		}
		series.Points = append(series.Points, calendar.Point{
			Date:  time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			Value: v,
		})
	}
	return series
}

type observation struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}
