package sentiment

import (
	"math"
	"strings"

	"github.com/jonreiter/govader"
)

// Scorer rates a piece of text with a compound sentiment score in [-1, 1].
type Scorer interface {
	Score(text string) float64
}

// Vader scores text with the VADER lexicon and rules.
type Vader struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVader returns a scorer over the stock VADER lexicon.
func NewVader() *Vader {
	return &Vader{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score implements Scorer. Blank text scores 0.
func (v *Vader) Score(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	c := v.analyzer.PolarityScores(text).Compound
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(-1, math.Min(1, c))
}
