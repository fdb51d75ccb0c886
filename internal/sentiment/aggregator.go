// Package sentiment scores news headlines and aggregates them per instrument per day.
package sentiment

import (
	"sort"
	"strings"
	"time"

	"github.com/stockshastri/shastri/internal/core"
)

// Config controls headline selection.
type Config struct {
	// WindowDays is the ±N-day window around the target date; 0 is exact-day.
	WindowDays int
	// FallbackWeight scales the general-pool score when nothing matches the instrument.
	FallbackWeight float64
	// FallbackLimit caps the general headlines used; 0 disables the fallback.
	FallbackLimit int
}

// DefaultConfig matches the flexible collector: ±3 days, up to 10 general
// headlines at half weight.
func DefaultConfig() Config {
	return Config{WindowDays: 3, FallbackWeight: 0.5, FallbackLimit: 10}
}

// Aggregator selects and scores headlines for (instrument, date) pairs.
// It memoizes headline scores and is not safe for concurrent use.
type Aggregator struct {
	cfg      Config
	scorer   Scorer
	universe core.Universe
	pool     []core.Headline
	scores   map[string]float64
}

// NewAggregator creates an aggregator over a headline pool.
func NewAggregator(headlines []core.Headline, universe core.Universe, scorer Scorer, cfg Config) *Aggregator {
	if scorer == nil {
		scorer = NewVader()
	}
	if cfg.WindowDays < 0 {
		cfg.WindowDays = 0
	}

	pool := make([]core.Headline, 0, len(headlines))
	for _, h := range headlines {
		if strings.TrimSpace(h.Title) == "" || h.Date.IsZero() {
			continue
		}
		h.Date = core.Day(h.Date)
		pool = append(pool, h)
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Date.Before(pool[j].Date) })

	return &Aggregator{
		cfg:      cfg,
		scorer:   scorer,
		universe: universe,
		pool:     pool,
		scores:   make(map[string]float64),
	}
}

// Aggregate returns the daily sentiment of ticker at date. The second result
// is false when no headline at all falls in the window; callers default such
// days to neutral downstream.
func (a *Aggregator) Aggregate(ticker string, date time.Time) (core.SentimentObservation, bool) {
	ticker = core.NormalizeTicker(ticker)
	date = core.Day(date)
	obs := core.SentimentObservation{Ticker: ticker, Date: date}

	window := a.window(date)
	if len(window) == 0 {
		return obs, false
	}

	terms := a.terms(ticker)
	var relevant []string
	seen := make(map[string]struct{})
	for _, h := range window {
		if _, dup := seen[h.Title]; dup {
			continue
		}
		if matchesAny(h.Title, terms) {
			seen[h.Title] = struct{}{}
			relevant = append(relevant, h.Title)
		}
	}

	if len(relevant) > 0 {
		obs.Score = a.mean(relevant)
		obs.HeadlineCount = len(relevant)
		return obs, true
	}

	if a.cfg.FallbackLimit <= 0 {
		return obs, false
	}

	var general []string
	for _, h := range window {
		if len(general) == a.cfg.FallbackLimit {
			break
		}
		if _, dup := seen[h.Title]; dup {
			continue
		}
		seen[h.Title] = struct{}{}
		general = append(general, h.Title)
	}

	obs.Score = a.mean(general) * a.cfg.FallbackWeight
	obs.HeadlineCount = len(general)
	obs.Fallback = true
	return obs, true
}

// Collect aggregates every date for ticker, skipping days without headlines.
func (a *Aggregator) Collect(ticker string, dates []time.Time) []core.SentimentObservation {
	out := make([]core.SentimentObservation, 0, len(dates))
	for _, d := range dates {
		if obs, ok := a.Aggregate(ticker, d); ok {
			out = append(out, obs)
		}
	}
	return out
}

// window returns the headlines dated within ±WindowDays of date.
func (a *Aggregator) window(date time.Time) []core.Headline {
	from := date.AddDate(0, 0, -a.cfg.WindowDays)
	to := date.AddDate(0, 0, a.cfg.WindowDays)

	lo := sort.Search(len(a.pool), func(i int) bool { return !a.pool[i].Date.Before(from) })
	hi := sort.Search(len(a.pool), func(i int) bool { return a.pool[i].Date.After(to) })
	return a.pool[lo:hi]
}

func (a *Aggregator) terms(ticker string) []string {
	if inst, ok := a.universe.Lookup(ticker); ok {
		return inst.Terms
	}
	return []string{ticker}
}

func (a *Aggregator) mean(titles []string) float64 {
	if len(titles) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range titles {
		s, ok := a.scores[t]
		if !ok {
			s = a.scorer.Score(t)
			a.scores[t] = s
		}
		sum += s
	}
	return sum / float64(len(titles))
}

func matchesAny(title string, terms []string) bool {
	lower := strings.ToLower(title)
	for _, term := range terms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
