// Package predictor serves next-day direction predictions from the loaded
// model and the latest feature row of each instrument.
package predictor

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockshastri/shastri/internal/core"
	"github.com/stockshastri/shastri/internal/features"
	"github.com/stockshastri/shastri/internal/model"
)

// Prediction is the answer for one instrument.
type Prediction struct {
	Ticker     string         `json:"ticker"`
	Prediction int            `json:"prediction"`
	Confidence float64        `json:"confidence"`
	Direction  core.Direction `json:"direction"`
	AsOf       string         `json:"as_of"`
	ModelID    string         `json:"model_id"`
}

// snapshot is an immutable model and feature-table pairing.
type snapshot struct {
	artifact *model.Artifact
	latest   map[string]features.Row
	mean     []float64
	std      []float64
	loadedAt time.Time
}

// Predictor answers prediction requests. Swap replaces the model and table
// together; concurrent readers see either the old or the new pair.
type Predictor struct {
	universe core.Universe
	current  atomic.Pointer[snapshot]
}

// New creates a predictor with no model loaded.
func New(universe core.Universe) *Predictor {
	return &Predictor{universe: universe}
}

// Swap installs a new artifact and feature table. The table must pass
// Validate and its feature columns must match the artifact exactly or
// core.ErrStaleArtifact is returned. On error the previous pair stays in
// place.
func (p *Predictor) Swap(a *model.Artifact, t *features.Table) error {
	if a == nil || a.Forest == nil {
		return core.WrapError(core.ErrModelNotLoaded, fmt.Errorf("nil artifact"))
	}
	if err := t.Validate(); err != nil {
		return err
	}
	names := t.FeatureNames()
	if err := a.CheckFeatures(names); err != nil {
		return err
	}

	s := &snapshot{
		artifact: a,
		latest:   make(map[string]features.Row),
		loadedAt: time.Now().UTC(),
	}
	for _, r := range t.Rows {
		if cur, ok := s.latest[r.Ticker]; !ok || r.Date.After(cur.Date) {
			s.latest[r.Ticker] = r
		}
	}

	var err error
	s.mean, s.std, err = moments(t, names)
	if err != nil {
		return err
	}

	p.current.Store(s)
	return nil
}

// Loaded reports whether a model is installed.
func (p *Predictor) Loaded() bool {
	return p.current.Load() != nil
}

// ModelID returns the installed artifact ID, empty when none.
func (p *Predictor) ModelID() string {
	if s := p.current.Load(); s != nil {
		return s.artifact.ID
	}
	return ""
}

// Artifact returns the installed artifact.
func (p *Predictor) Artifact() (*model.Artifact, bool) {
	s := p.current.Load()
	if s == nil {
		return nil, false
	}
	return s.artifact, true
}

func (p *Predictor) lookup(raw string) (*snapshot, features.Row, error) {
	s := p.current.Load()
	if s == nil {
		return nil, features.Row{}, core.ErrModelNotLoaded
	}

	ticker := core.NormalizeTicker(raw)
	if ticker == "" {
		return nil, features.Row{}, core.WrapError(core.ErrUnknownInstrument, fmt.Errorf("empty ticker"))
	}
	row, ok := s.latest[ticker]
	if !ok {
		if _, known := p.universe.Lookup(ticker); known {
			return nil, features.Row{}, core.WrapError(core.ErrNoData, fmt.Errorf("%s has no feature rows", ticker))
		}
		return nil, features.Row{}, core.WrapError(core.ErrUnknownInstrument, fmt.Errorf("%q", raw))
	}
	return s, row, nil
}

// Predict classifies the instrument's most recent feature row. Confidence is
// the probability of the predicted class rounded to 4 decimals.
func (p *Predictor) Predict(raw string) (Prediction, error) {
	s, row, err := p.lookup(raw)
	if err != nil {
		return Prediction{}, err
	}

	x, err := row.Vector(s.artifact.FeatureNames)
	if err != nil {
		return Prediction{}, err
	}
	proba, err := s.artifact.Forest.PredictProba(x)
	if err != nil {
		return Prediction{}, err
	}

	class := 0
	if proba[1] > proba[0] {
		class = 1
	}
	conf, _ := decimal.NewFromFloat(proba[class]).Round(4).Float64()

	return Prediction{
		Ticker:     row.Ticker,
		Prediction: class,
		Confidence: conf,
		Direction:  core.DirectionOf(class),
		AsOf:       row.Date.Format(core.DateLayout),
		ModelID:    s.artifact.ID,
	}, nil
}

// Importances returns the global feature importances, or for a ticker the
// global importances weighted by how far the instrument's latest values sit
// from the table mean in standard deviations, renormalized.
func (p *Predictor) Importances(raw string) ([]model.FeatureImportance, error) {
	if raw == "" {
		s := p.current.Load()
		if s == nil {
			return nil, core.ErrModelNotLoaded
		}
		return s.artifact.Importances(), nil
	}

	s, row, err := p.lookup(raw)
	if err != nil {
		return nil, err
	}
	x, err := row.Vector(s.artifact.FeatureNames)
	if err != nil {
		return nil, err
	}

	global := s.artifact.Forest.Importance
	out := make([]model.FeatureImportance, len(x))
	var total float64
	for i, v := range x {
		z := 0.0
		if s.std[i] > 0 {
			z = math.Abs(v-s.mean[i]) / s.std[i]
		}
		w := global[i] * z
		out[i] = model.FeatureImportance{Feature: s.artifact.FeatureNames[i], Importance: w}
		total += w
	}
	if total == 0 {
		return s.artifact.Importances(), nil
	}
	for i := range out {
		out[i].Importance /= total
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out, nil
}

func moments(t *features.Table, names []string) (mean, std []float64, err error) {
	mean = make([]float64, len(names))
	std = make([]float64, len(names))
	if len(t.Rows) == 0 {
		return mean, std, nil
	}

	n := float64(len(t.Rows))
	for _, r := range t.Rows {
		x, err := r.Vector(names)
		if err != nil {
			return nil, nil, err
		}
		for i, v := range x {
			mean[i] += v / n
		}
	}
	for _, r := range t.Rows {
		x, _ := r.Vector(names)
		for i, v := range x {
			std[i] += (v - mean[i]) * (v - mean[i]) / n
		}
	}
	for i := range std {
		std[i] = math.Sqrt(std[i])
	}
	return mean, std, nil
}
