package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/stockshastri/shastri/internal/collector"
	"github.com/stockshastri/shastri/internal/core"
	"go.uber.org/zap"
)

const (
	baseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
)

// validSymbol matches NSE symbols like TCS.NS or BAJFINANCE.NS
var validSymbol = regexp.MustCompile(`^[A-Z0-9&-]{1,20}\.NS$`)

func validateSymbol(symbol string) error {
	if symbol == "" || symbol == ".NS" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo downloads daily history from the Yahoo Finance chart API
type Yahoo struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// New creates a Yahoo collector. Zero config values fall back to defaults.
func New(cfg collector.Config, logger *zap.Logger) *Yahoo {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	url := cfg.BaseURL
	if url == "" {
		url = baseURL
	}
	return &Yahoo{
		client:  &http.Client{Timeout: timeout},
		baseURL: url,
		logger:  logger,
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// FetchHistory fetches daily bars for [start, end] and returns them under
// the normalized ticker. Days with a missing close are skipped.
func (y *Yahoo) FetchHistory(ctx context.Context, ticker string, start, end time.Time) ([]core.PriceObservation, error) {
	ticker = core.NormalizeTicker(ticker)
	symbol := core.ExchangeSymbol(ticker)
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrInvalidInput, err)
	}

	// period2 is exclusive on Yahoo's side
	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d",
		y.baseURL, symbol, core.Day(start).Unix(), core.Day(end).AddDate(0, 0, 1).Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (shastri)")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching %s: %w", symbol, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching %s: unexpected status %d", symbol, resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding %s: %w", symbol, err))
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("yahoo error for %s: %s", symbol, result.Chart.Error.Description))
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", symbol))
	}

	r := result.Chart.Result[0]
	quotes := r.Indicators.Quote[0]
	loc := exchangeLocation(r.Meta.ExchangeTimezoneName)

	data := make([]core.PriceObservation, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closePrice := at(quotes.Close, i)
		if closePrice <= 0 {
			continue
		}
		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = *quotes.Volume[i]
		}
		data = append(data, core.PriceObservation{
			Ticker: ticker,
			Date:   core.Day(time.Unix(ts, 0).In(loc)),
			Open:   at(quotes.Open, i),
			High:   at(quotes.High, i),
			Low:    at(quotes.Low, i),
			Close:  closePrice,
			Volume: volume,
		})
	}

	y.logger.Info("fetched price history",
		zap.String("ticker", ticker),
		zap.Int("rows", len(data)),
		zap.Int("skipped", len(r.Timestamp)-len(data)))
	return data, nil
}

func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

// exchangeLocation resolves the trading-day timezone; bars are stamped at
// the session open, so UTC would shift IST dates back a day.
func exchangeLocation(name string) *time.Location {
	if name == "" {
		name = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol               string `json:"symbol"`
	Currency             string `json:"currency"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
