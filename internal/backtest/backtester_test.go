package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stockshastri/shastri/internal/core"
	"github.com/stockshastri/shastri/internal/features"
)

// thresholdClassifier predicts UP when the first feature exceeds cut
type thresholdClassifier struct {
	cut float64
	err error
}

func (c *thresholdClassifier) PredictProba(x []float64) ([2]float64, error) {
	if c.err != nil {
		return [2]float64{}, c.err
	}
	if x[0] > c.cut {
		return [2]float64{0.2, 0.8}, nil
	}
	return [2]float64{0.7, 0.3}, nil
}

func day(s string) time.Time {
	d, _ := time.Parse(core.DateLayout, s)
	return d
}

func holdout() *features.Table {
	row := func(ticker, date string, sentiment, ret float64, label int) features.Row {
		return features.Row{
			Ticker: ticker, Date: day(date), Close: 100,
			SentimentScore: sentiment, Return1: ret, ReturnDirection: label,
			Flags: map[string]int{},
		}
	}
	return &features.Table{Rows: []features.Row{
		row("TCS", "2023-01-02", 0.5, 0.00, 1),
		row("TCS", "2023-01-03", -0.5, 0.02, 0),
		row("TCS", "2023-01-04", 0.5, -0.01, 1),
		row("INFY", "2023-01-02", 0.5, 0.00, 0),
		row("INFY", "2023-01-03", 0.1, -0.03, 1),
	}}
}

func TestBacktester_Run(t *testing.T) {
	bt := New(&thresholdClassifier{cut: 0.4}, []string{features.ColSentimentScore})

	res, err := bt.Run(context.Background(), holdout())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantPred := []int{1, 0, 1, 1, 0}
	wantLabel := []int{1, 0, 1, 0, 1}
	for i := range wantPred {
		if res.Predictions[i] != wantPred[i] {
			t.Errorf("Predictions[%d] = %d, want %d", i, res.Predictions[i], wantPred[i])
		}
		if res.Labels[i] != wantLabel[i] {
			t.Errorf("Labels[%d] = %d, want %d", i, res.Labels[i], wantLabel[i])
		}
	}

	if len(res.Trades) != 3 {
		t.Fatalf("got %d trades, want 3", len(res.Trades))
	}
	// ordered by date then ticker
	if res.Trades[0].Ticker != "INFY" || res.Trades[0].Return != -0.03 || !res.Trades[0].Closed {
		t.Errorf("unexpected first trade %+v", res.Trades[0])
	}
	if res.Trades[1].Ticker != "TCS" || res.Trades[1].Return != 0.02 {
		t.Errorf("unexpected second trade %+v", res.Trades[1])
	}
	if res.Trades[2].Closed {
		t.Error("last TCS trade has no next close and should stay open")
	}
	if res.Trades[0].Confidence != 0.8 {
		t.Errorf("Confidence = %f, want 0.8", res.Trades[0].Confidence)
	}

	if res.Stats.TotalTrades != 2 || res.Stats.WinningTrades != 1 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
	if !res.StartDate.Equal(day("2023-01-02")) || !res.EndDate.Equal(day("2023-01-04")) {
		t.Errorf("range = %s..%s", res.StartDate, res.EndDate)
	}
}

func TestBacktester_EmptyHoldout(t *testing.T) {
	bt := New(&thresholdClassifier{}, []string{features.ColSentimentScore})
	_, err := bt.Run(context.Background(), &features.Table{})
	if !errors.Is(err, core.ErrTrainingFailed) {
		t.Errorf("expected ErrTrainingFailed, got %v", err)
	}
}

func TestBacktester_ClassifierError(t *testing.T) {
	boom := errors.New("boom")
	bt := New(&thresholdClassifier{err: boom}, []string{features.ColSentimentScore})
	_, err := bt.Run(context.Background(), holdout())
	if !errors.Is(err, boom) {
		t.Errorf("expected classifier error, got %v", err)
	}
}

func TestBacktester_UnknownFeature(t *testing.T) {
	bt := New(&thresholdClassifier{}, []string{"election_flag"})
	_, err := bt.Run(context.Background(), holdout())
	if !errors.Is(err, core.ErrStaleArtifact) {
		t.Errorf("expected ErrStaleArtifact, got %v", err)
	}
}

func TestBacktester_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bt := New(&thresholdClassifier{}, []string{features.ColSentimentScore})
	if _, err := bt.Run(ctx, holdout()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
