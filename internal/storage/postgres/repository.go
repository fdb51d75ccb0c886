package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stockshastri/shastri/internal/core"
)

const upsertPrice = `
	INSERT INTO stocks (ticker, date, open_price, high_price, low_price, close_price, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (ticker, date) DO UPDATE SET
		open_price = EXCLUDED.open_price,
		high_price = EXCLUDED.high_price,
		low_price = EXCLUDED.low_price,
		close_price = EXCLUDED.close_price,
		volume = EXCLUDED.volume`

// UpsertPrices inserts or replaces bars by (ticker, date).
func (r *Repository) UpsertPrices(ctx context.Context, prices []core.PriceObservation) (int, error) {
	n := 0
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		for _, p := range prices {
			if !p.IsValid() {
				continue
			}
			_, err := tx.Exec(ctx, upsertPrice,
				core.NormalizeTicker(p.Ticker), core.Day(p.Date), p.Open, p.High, p.Low, p.Close, p.Volume)
			if err != nil {
				return fmt.Errorf("upserting %s %s: %w", p.Ticker, p.Date.Format(core.DateLayout), err)
			}
			n++
		}
		return nil
	})
	return n, err
}

// Prices returns every stored bar ordered by ticker and date.
func (r *Repository) Prices(ctx context.Context) ([]core.PriceObservation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ticker, date, COALESCE(open_price, 0), COALESCE(high_price, 0),
			COALESCE(low_price, 0), close_price, COALESCE(volume, 0)
		FROM stocks
		ORDER BY ticker, date`)
	if err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("querying stocks: %w", err))
	}
	defer rows.Close()

	var out []core.PriceObservation
	for rows.Next() {
		var p core.PriceObservation
		if err := rows.Scan(&p.Ticker, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("scanning stocks: %w", err))
		}
		p.Date = core.Day(p.Date)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, err)
	}
	return out, nil
}

const upsertSentiment = `
	INSERT INTO sentiment_data (ticker, date, sentiment_score, news_count, fallback)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (ticker, date) DO UPDATE SET
		sentiment_score = EXCLUDED.sentiment_score,
		news_count = EXCLUDED.news_count,
		fallback = EXCLUDED.fallback`

// UpsertSentiment inserts or replaces sentiment by (ticker, date).
func (r *Repository) UpsertSentiment(ctx context.Context, obs []core.SentimentObservation) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, s := range obs {
			_, err := tx.Exec(ctx, upsertSentiment,
				core.NormalizeTicker(s.Ticker), core.Day(s.Date), s.Score, s.HeadlineCount, s.Fallback)
			if err != nil {
				return fmt.Errorf("upserting sentiment %s %s: %w", s.Ticker, s.Date.Format(core.DateLayout), err)
			}
		}
		return nil
	})
}

// Sentiment returns every stored sentiment row.
func (r *Repository) Sentiment(ctx context.Context) ([]core.SentimentObservation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ticker, date, sentiment_score, news_count, fallback
		FROM sentiment_data
		ORDER BY ticker, date`)
	if err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("querying sentiment_data: %w", err))
	}
	defer rows.Close()

	var out []core.SentimentObservation
	for rows.Next() {
		var s core.SentimentObservation
		if err := rows.Scan(&s.Ticker, &s.Date, &s.Score, &s.HeadlineCount, &s.Fallback); err != nil {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("scanning sentiment_data: %w", err))
		}
		s.Date = core.Day(s.Date)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, err)
	}
	return out, nil
}

const insertMacro = `
	INSERT INTO macro_indicators (date, usd_inr_rate, interest_rate, unemployment_rate)
	VALUES ($1, $2, $3, $4)`

// ReplaceMacro deletes the stored rows in the span of obs and inserts obs.
func (r *Repository) ReplaceMacro(ctx context.Context, obs []core.MacroObservation) error {
	if len(obs) == 0 {
		return nil
	}
	first, last := core.Day(obs[0].Date), core.Day(obs[0].Date)
	for _, m := range obs {
		d := core.Day(m.Date)
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM macro_indicators WHERE date BETWEEN $1 AND $2`, first, last); err != nil {
			return fmt.Errorf("clearing macro_indicators: %w", err)
		}
		for _, m := range obs {
			if _, err := tx.Exec(ctx, insertMacro, core.Day(m.Date), m.USDINRRate, m.InterestRate, m.UnemploymentRate); err != nil {
				return fmt.Errorf("inserting macro %s: %w", m.Date.Format(core.DateLayout), err)
			}
		}
		return nil
	})
}

func nullable(v pgtype.Float8) *float64 {
	if !v.Valid {
		return nil
	}
	return core.Float(v.Float64)
}

// Macro returns the stored macro rows ordered by date. NULL indicators read as nil.
func (r *Repository) Macro(ctx context.Context) ([]core.MacroObservation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT date, usd_inr_rate, interest_rate, unemployment_rate
		FROM macro_indicators
		ORDER BY date`)
	if err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("querying macro_indicators: %w", err))
	}
	defer rows.Close()

	var out []core.MacroObservation
	for rows.Next() {
		var (
			m               core.MacroObservation
			fx, rate, unemp pgtype.Float8
		)
		if err := rows.Scan(&m.Date, &fx, &rate, &unemp); err != nil {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("scanning macro_indicators: %w", err))
		}
		m.Date = core.Day(m.Date)
		m.USDINRRate = nullable(fx)
		m.InterestRate = nullable(rate)
		m.UnemploymentRate = nullable(unemp)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, err)
	}
	return out, nil
}

const insertEvent = `
	INSERT INTO market_events (event_date, event_type, event_name, impact_window_start, impact_window_end, impact_score)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (event_type, event_name, impact_window_start) DO UPDATE SET
		event_date = EXCLUDED.event_date,
		impact_window_end = EXCLUDED.impact_window_end,
		impact_score = EXCLUDED.impact_score`

// InsertEvents stores events, updating ones already present.
func (r *Repository) InsertEvents(ctx context.Context, evs []core.EventRecord) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, e := range evs {
			_, err := tx.Exec(ctx, insertEvent,
				core.Day(e.EventDate), e.Type, e.Name, core.Day(e.WindowStart), core.Day(e.WindowEnd), e.ImpactScore)
			if err != nil {
				return fmt.Errorf("inserting event %s %q: %w", e.Type, e.Name, err)
			}
		}
		return nil
	})
}

// Events returns every stored market event ordered by window start.
func (r *Repository) Events(ctx context.Context) ([]core.EventRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT event_type, event_name, event_date, impact_window_start, impact_window_end, impact_score
		FROM market_events
		ORDER BY impact_window_start, event_type`)
	if err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("querying market_events: %w", err))
	}
	defer rows.Close()

	var out []core.EventRecord
	for rows.Next() {
		var e core.EventRecord
		if err := rows.Scan(&e.Type, &e.Name, &e.EventDate, &e.WindowStart, &e.WindowEnd, &e.ImpactScore); err != nil {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("scanning market_events: %w", err))
		}
		e.EventDate, e.WindowStart, e.WindowEnd = core.Day(e.EventDate), core.Day(e.WindowStart), core.Day(e.WindowEnd)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, err)
	}
	return out, nil
}

// TickerCoverage is the stored price range of one instrument.
type TickerCoverage struct {
	Ticker        string    `json:"ticker"`
	Rows          int       `json:"rows"`
	First         time.Time `json:"first"`
	Last          time.Time `json:"last"`
	SentimentRows int       `json:"sentiment_rows"`
}

// Status summarizes table contents.
type Status struct {
	Counts  map[string]int   `json:"counts"`
	Tickers []TickerCoverage `json:"tickers"`
}

// Stats returns row counts per table and per-ticker coverage.
func (r *Repository) Stats(ctx context.Context) (*Status, error) {
	st := &Status{Counts: make(map[string]int, len(Tables))}
	for _, table := range Tables {
		var n int
		if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("counting %s: %w", table, err))
		}
		st.Counts[table] = n
	}

	rows, err := r.db.Query(ctx, `
		SELECT s.ticker, COUNT(*), MIN(s.date), MAX(s.date),
			(SELECT COUNT(*) FROM sentiment_data d WHERE d.ticker = s.ticker)
		FROM stocks s
		GROUP BY s.ticker
		ORDER BY s.ticker`)
	if err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("querying coverage: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var c TickerCoverage
		if err := rows.Scan(&c.Ticker, &c.Rows, &c.First, &c.Last, &c.SentimentRows); err != nil {
			return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("scanning coverage: %w", err))
		}
		st.Tickers = append(st.Tickers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, err)
	}
	return st, nil
}
