package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stockshastri/shastri/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, _ := time.Parse(core.DateLayout, s)
	return d
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func TestEnsureSchema(t *testing.T) {
	mock, repo := newMock(t)
	for _, table := range Tables {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).
			WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	}

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_Error(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS stocks").WillReturnError(assert.AnError)

	err := repo.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStoreFailed))
	assert.Contains(t, err.Error(), "stocks")
}

func TestUpsertPrices(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO stocks").
		WithArgs("TCS", day("2023-01-02"), 3300.0, 3350.0, 3290.0, 3321.25, int64(120000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := repo.UpsertPrices(context.Background(), []core.PriceObservation{
		{Ticker: "TCS.NS", Date: day("2023-01-02"), Open: 3300, High: 3350, Low: 3290, Close: 3321.25, Volume: 120000},
		{Ticker: "TCS", Date: day("2023-01-03")}, // no close, skipped
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPrices_RollsBackOnError(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO stocks").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.UpsertPrices(context.Background(), []core.PriceObservation{
		{Ticker: "TCS", Date: day("2023-01-02"), Close: 1},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStoreFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrices(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("SELECT ticker, date").
		WillReturnRows(pgxmock.NewRows([]string{"ticker", "date", "open_price", "high_price", "low_price", "close_price", "volume"}).
			AddRow("INFY", day("2023-01-02"), 1500.0, 1510.0, 1490.0, 1505.5, int64(5000)).
			AddRow("TCS", day("2023-01-02"), 0.0, 0.0, 0.0, 3321.25, int64(0)))

	prices, err := repo.Prices(context.Background())
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, core.PriceObservation{
		Ticker: "INFY", Date: day("2023-01-02"), Open: 1500, High: 1510, Low: 1490, Close: 1505.5, Volume: 5000,
	}, prices[0])
	assert.Equal(t, 3321.25, prices[1].Close)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrices_QueryError(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("SELECT ticker, date").WillReturnError(assert.AnError)

	_, err := repo.Prices(context.Background())
	assert.True(t, errors.Is(err, core.ErrLoadFailed))
}

func TestSentiment_UpsertAndRead(t *testing.T) {
	mock, repo := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO sentiment_data").
		WithArgs("VBL", day("2023-01-02"), 0.25, 3, false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	require.NoError(t, repo.UpsertSentiment(ctx, []core.SentimentObservation{
		{Ticker: "vbl.ns", Date: day("2023-01-02"), Score: 0.25, HeadlineCount: 3},
	}))

	mock.ExpectQuery("SELECT ticker, date, sentiment_score").
		WillReturnRows(pgxmock.NewRows([]string{"ticker", "date", "sentiment_score", "news_count", "fallback"}).
			AddRow("VBL", day("2023-01-02"), 0.25, 3, true))
	obs, err := repo.Sentiment(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.SentimentObservation{
		{Ticker: "VBL", Date: day("2023-01-02"), Score: 0.25, HeadlineCount: 3, Fallback: true},
	}, obs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceMacro(t *testing.T) {
	mock, repo := newMock(t)
	obs := []core.MacroObservation{
		{Date: day("2023-01-02"), USDINRRate: core.Float(82.8), InterestRate: core.Float(6.25), UnemploymentRate: core.Float(3.25)},
		{Date: day("2023-01-01"), USDINRRate: core.Float(82.7), InterestRate: core.Float(6.25)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM macro_indicators").
		WithArgs(day("2023-01-01"), day("2023-01-02")).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	for _, m := range obs {
		mock.ExpectExec("INSERT INTO macro_indicators").
			WithArgs(m.Date, m.USDINRRate, m.InterestRate, m.UnemploymentRate).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceMacro(context.Background(), obs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceMacro_Empty(t *testing.T) {
	mock, repo := newMock(t)
	require.NoError(t, repo.ReplaceMacro(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMacro(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("SELECT date").
		WillReturnRows(pgxmock.NewRows([]string{"date", "usd_inr_rate", "interest_rate", "unemployment_rate"}).
			AddRow(day("2023-01-01"), 82.7, 6.25, 3.25).
			AddRow(day("2023-01-02"), 82.8, nil, nil))

	obs, err := repo.Macro(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.MacroObservation{
		{Date: day("2023-01-01"), USDINRRate: core.Float(82.7), InterestRate: core.Float(6.25), UnemploymentRate: core.Float(3.25)},
		{Date: day("2023-01-02"), USDINRRate: core.Float(82.8)},
	}, obs, "NULL indicators stay unobserved")
}

func TestEvents_InsertAndRead(t *testing.T) {
	mock, repo := newMock(t)
	ctx := context.Background()
	ev := core.EventRecord{
		Type: "BUDGET", Name: "Union Budget", EventDate: day("2023-02-01"),
		WindowStart: day("2023-02-01"), WindowEnd: day("2023-02-03"), ImpactScore: 0.9,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO market_events").
		WithArgs(ev.EventDate, ev.Type, ev.Name, ev.WindowStart, ev.WindowEnd, ev.ImpactScore).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	require.NoError(t, repo.InsertEvents(ctx, []core.EventRecord{ev}))

	mock.ExpectQuery("SELECT event_type").
		WillReturnRows(pgxmock.NewRows([]string{"event_type", "event_name", "event_date", "impact_window_start", "impact_window_end", "impact_score"}).
			AddRow(ev.Type, ev.Name, ev.EventDate, ev.WindowStart, ev.WindowEnd, ev.ImpactScore))
	evs, err := repo.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.EventRecord{ev}, evs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	mock, repo := newMock(t)
	counts := map[string]int{"stocks": 10, "sentiment_data": 4, "macro_indicators": 30, "market_events": 2}
	for _, table := range Tables {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ` + table).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(counts[table]))
	}
	mock.ExpectQuery("SELECT s.ticker").
		WillReturnRows(pgxmock.NewRows([]string{"ticker", "count", "min", "max", "sentiment"}).
			AddRow("TCS", 10, day("2023-01-01"), day("2023-01-10"), 4))

	st, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, counts, st.Counts)
	require.Len(t, st.Tickers, 1)
	assert.Equal(t, TickerCoverage{
		Ticker: "TCS", Rows: 10, First: day("2023-01-01"), Last: day("2023-01-10"), SentimentRows: 4,
	}, st.Tickers[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
