package model

import "github.com/stockshastri/shastri/internal/backtest"

// Metrics are the holdout classification scores, with class 1 (UP) as positive.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
	// Confusion is [[tn, fp], [fn, tp]].
	Confusion [2][2]int      `json:"confusion"`
	Strategy  backtest.Stats `json:"strategy"`
}

// Evaluate scores predictions against labels. Ratios with an empty
// denominator are 0.
func Evaluate(pred, actual []int) Metrics {
	var m Metrics
	n := min(len(pred), len(actual))
	for i := 0; i < n; i++ {
		p, a := pred[i], actual[i]
		if p != 0 {
			p = 1
		}
		if a != 0 {
			a = 1
		}
		m.Confusion[a][p]++
	}

	tn, fp := m.Confusion[0][0], m.Confusion[0][1]
	fn, tp := m.Confusion[1][0], m.Confusion[1][1]
	m.TestRows = n
	m.Accuracy = ratio(tp+tn, n)
	m.Precision = ratio(tp, tp+fp)
	m.Recall = ratio(tp, tp+fn)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
