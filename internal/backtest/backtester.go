package backtest

import (
	"context"
	"fmt"
	"sort"

	"github.com/stockshastri/shastri/internal/core"
	"github.com/stockshastri/shastri/internal/features"
)

// Classifier returns class probabilities for one feature vector
type Classifier interface {
	PredictProba(x []float64) ([2]float64, error)
}

// Backtester replays a classifier over held-out feature rows
type Backtester struct {
	clf   Classifier
	names []string
}

// New creates a Backtester that builds vectors in the given feature order
func New(clf Classifier, featureNames []string) *Backtester {
	return &Backtester{
		clf:   clf,
		names: featureNames,
	}
}

// Run predicts every holdout row and simulates holding each instrument for
// one day whenever the prediction is UP. The trade return is the next
// holdout row's return of the same instrument.
func (b *Backtester) Run(ctx context.Context, holdout *features.Table) (*Result, error) {
	if len(holdout.Rows) == 0 {
		return nil, core.WrapError(core.ErrTrainingFailed, fmt.Errorf("empty holdout"))
	}

	res := &Result{
		Predictions: make([]int, len(holdout.Rows)),
		Labels:      make([]int, len(holdout.Rows)),
		StartDate:   holdout.Rows[0].Date,
		EndDate:     holdout.Rows[0].Date,
	}

	confidence := make([]float64, len(holdout.Rows))
	byTicker := make(map[string][]int)
	for i, row := range holdout.Rows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		x, err := row.Vector(b.names)
		if err != nil {
			return nil, err
		}
		p, err := b.clf.PredictProba(x)
		if err != nil {
			return nil, err
		}
		if p[1] > p[0] {
			res.Predictions[i] = 1
		}
		confidence[i] = p[1]
		res.Labels[i] = row.ReturnDirection
		byTicker[row.Ticker] = append(byTicker[row.Ticker], i)

		if row.Date.Before(res.StartDate) {
			res.StartDate = row.Date
		}
		if row.Date.After(res.EndDate) {
			res.EndDate = row.Date
		}
	}

	res.Trades = predictionsToTrades(holdout.Rows, res.Predictions, confidence, byTicker)
	res.Stats = CalculateStats(res.Trades)
	return res, nil
}

// predictionsToTrades opens a one-day trade for each UP prediction and
// returns trades ordered by date.
func predictionsToTrades(rows []features.Row, preds []int, confidence []float64, byTicker map[string][]int) []Trade {
	var trades []Trade
	for _, idx := range byTicker {
		sort.SliceStable(idx, func(i, j int) bool { return rows[idx[i]].Date.Before(rows[idx[j]].Date) })
		for k, i := range idx {
			if preds[i] != 1 {
				continue
			}
			t := Trade{
				Ticker:     rows[i].Ticker,
				Date:       rows[i].Date,
				Direction:  core.DirectionUp,
				Confidence: confidence[i],
			}
			if k+1 < len(idx) {
				t.Return = rows[idx[k+1]].Return1
				t.Closed = true
			}
			trades = append(trades, t)
		}
	}

	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].Date.Equal(trades[j].Date) {
			return trades[i].Date.Before(trades[j].Date)
		}
		return trades[i].Ticker < trades[j].Ticker
	})
	return trades
}
