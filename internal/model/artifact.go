package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stockshastri/shastri/internal/core"
	"github.com/stockshastri/shastri/internal/storage/archive"
)

// DefaultArtifactKey is where the trained model is stored.
const DefaultArtifactKey = "models/stock_predictor.json"

// Artifact is a trained forest together with the feature order it expects.
type Artifact struct {
	ID           string    `json:"id"`
	TrainedAt    time.Time `json:"trained_at"`
	FeatureNames []string  `json:"feature_names"`
	Metrics      Metrics   `json:"metrics"`
	Forest       *Forest   `json:"forest"`
}

// FeatureImportance pairs a feature with its normalized importance.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// NewArtifact wraps a trained forest.
func NewArtifact(forest *Forest, featureNames []string, metrics Metrics) *Artifact {
	names := make([]string, len(featureNames))
	copy(names, featureNames)
	return &Artifact{
		ID:           uuid.NewString(),
		TrainedAt:    time.Now().UTC(),
		FeatureNames: names,
		Metrics:      metrics,
		Forest:       forest,
	}
}

// CheckFeatures fails with core.ErrStaleArtifact unless names matches the
// artifact's feature set and order exactly.
func (a *Artifact) CheckFeatures(names []string) error {
	if len(names) != len(a.FeatureNames) {
		return core.WrapError(core.ErrStaleArtifact,
			fmt.Errorf("model has %d features, table has %d", len(a.FeatureNames), len(names)))
	}
	for i, n := range names {
		if n != a.FeatureNames[i] {
			return core.WrapError(core.ErrStaleArtifact,
				fmt.Errorf("feature %d is %q in the table but %q in the model", i, n, a.FeatureNames[i]))
		}
	}
	return nil
}

// Importances returns the per-feature importances, highest first.
func (a *Artifact) Importances() []FeatureImportance {
	out := make([]FeatureImportance, 0, len(a.FeatureNames))
	for i, name := range a.FeatureNames {
		var v float64
		if a.Forest != nil && i < len(a.Forest.Importance) {
			v = a.Forest.Importance[i]
		}
		out = append(out, FeatureImportance{Feature: name, Importance: v})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}

func (a *Artifact) validate() error {
	if a.Forest == nil || len(a.Forest.Trees) == 0 {
		return fmt.Errorf("artifact %s has no trees", a.ID)
	}
	if a.Forest.NFeatures != len(a.FeatureNames) {
		return fmt.Errorf("artifact %s: forest has %d features, %d names", a.ID, a.Forest.NFeatures, len(a.FeatureNames))
	}
	return nil
}

// Save writes the artifact as JSON.
func Save(ctx context.Context, store archive.Storage, key string, a *Artifact) error {
	if err := a.validate(); err != nil {
		return core.WrapError(core.ErrStoreFailed, err)
	}
	data, err := json.Marshal(a)
	if err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("encoding artifact: %w", err))
	}
	if err := store.Write(ctx, key, data); err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("%s: %w", key, err))
	}
	return nil
}

// Load reads an artifact. A missing artifact yields core.ErrModelNotLoaded.
func Load(ctx context.Context, store archive.Storage, key string) (*Artifact, error) {
	data, err := store.Read(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.WrapError(core.ErrModelNotLoaded, fmt.Errorf("no model at %s", key))
		}
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("%s: %w", key, err))
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("decoding %s: %w", key, err))
	}
	if err := a.validate(); err != nil {
		return nil, core.WrapError(core.ErrLoadFailed, err)
	}
	return &a, nil
}
