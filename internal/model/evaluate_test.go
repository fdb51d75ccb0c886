package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	pred := []int{1, 1, 0, 0, 1, 0}
	actual := []int{1, 0, 0, 1, 1, 0}

	m := Evaluate(pred, actual)
	assert.Equal(t, [2][2]int{{2, 1}, {1, 2}}, m.Confusion)
	assert.InDelta(t, 4.0/6.0, m.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.F1, 1e-12)
	assert.Equal(t, 6, m.TestRows)
}

func TestEvaluate_NoPositivePredictions(t *testing.T) {
	m := Evaluate([]int{0, 0}, []int{1, 0})
	assert.Equal(t, 0.0, m.Precision)
	assert.Equal(t, 0.0, m.Recall)
	assert.Equal(t, 0.0, m.F1)
	assert.Equal(t, 0.5, m.Accuracy)
}

func TestEvaluate_Empty(t *testing.T) {
	m := Evaluate(nil, nil)
	assert.Equal(t, Metrics{}, m)
}
