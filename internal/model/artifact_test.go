package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stockshastri/shastri/internal/core"
	"github.com/stockshastri/shastri/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedArtifact(t *testing.T) *Artifact {
	t.Helper()
	X, y := separable(80)
	f, err := Train(context.Background(), X, y, smallParams())
	require.NoError(t, err)
	return NewArtifact(f, []string{"close_price", "sentiment_score"}, Metrics{Accuracy: 0.9, TrainRows: 56, TestRows: 24})
}

func TestArtifact_SaveLoad(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	a := trainedArtifact(t)
	require.NoError(t, Save(ctx, store, DefaultArtifactKey, a))

	got, err := Load(ctx, store, DefaultArtifactKey)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.True(t, a.TrainedAt.Equal(got.TrainedAt))
	assert.Equal(t, a.FeatureNames, got.FeatureNames)
	assert.Equal(t, a.Metrics, got.Metrics)

	x := []float64{0.9, 0.1}
	want, _ := a.Forest.PredictProba(x)
	have, err := got.Forest.PredictProba(x)
	require.NoError(t, err)
	assert.Equal(t, want, have)
}

func TestLoad_Missing(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	_, err = Load(context.Background(), store, DefaultArtifactKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrModelNotLoaded))
}

func TestLoad_Corrupt(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "m.json", []byte(`{"id":"x","forest":{"trees":[]}}`)))

	_, err = Load(ctx, store, "m.json")
	assert.True(t, errors.Is(err, core.ErrLoadFailed))

	require.NoError(t, store.Write(ctx, "m.json", []byte(`not json`)))
	_, err = Load(ctx, store, "m.json")
	assert.True(t, errors.Is(err, core.ErrLoadFailed))
}

func TestSave_RejectsEmptyForest(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	err = Save(context.Background(), store, "m.json", &Artifact{ID: "x"})
	assert.True(t, errors.Is(err, core.ErrStoreFailed))
}

func TestArtifact_CheckFeatures(t *testing.T) {
	a := trainedArtifact(t)
	assert.NoError(t, a.CheckFeatures([]string{"close_price", "sentiment_score"}))

	err := a.CheckFeatures([]string{"sentiment_score", "close_price"})
	assert.True(t, errors.Is(err, core.ErrStaleArtifact))

	err = a.CheckFeatures([]string{"close_price", "sentiment_score", "budget_flag"})
	assert.True(t, errors.Is(err, core.ErrStaleArtifact))
}

func TestArtifact_Importances(t *testing.T) {
	a := trainedArtifact(t)
	imp := a.Importances()
	require.Len(t, imp, 2)
	assert.Equal(t, "close_price", imp[0].Feature)
	assert.GreaterOrEqual(t, imp[0].Importance, imp[1].Importance)
	assert.NotEmpty(t, a.ID)
}
