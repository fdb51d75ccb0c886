// internal/api/handler/api/predict.go
package api

import (
	"net/http"

	"github.com/stockshastri/shastri/internal/api/response"
	"github.com/stockshastri/shastri/internal/model"
	"github.com/stockshastri/shastri/internal/predictor"
)

// PredictionApp defines the interface needed from app.App.
type PredictionApp interface {
	Predict(ticker string) (predictor.Prediction, error)
	Importances(ticker string) ([]model.FeatureImportance, error)
	FeatureNames() []string
}

// PredictHandler serves predictions and feature importances.
type PredictHandler struct {
	app PredictionApp
}

// NewPredictHandler creates a new prediction handler.
func NewPredictHandler(app PredictionApp) *PredictHandler {
	return &PredictHandler{app: app}
}

// ImportancesResponse lists importances both in model feature order, for
// positional charts, and ranked.
type ImportancesResponse struct {
	Ticker      string                    `json:"ticker,omitempty"`
	Features    []string                  `json:"features"`
	Importances []float64                 `json:"importances"`
	Ranked      []model.FeatureImportance `json:"ranked"`
}

// Predict handles GET /predict/{ticker}.
func (h *PredictHandler) Predict(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Predict(r.PathValue("ticker"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}

// Importances handles GET /feature_importances and
// GET /feature_importances/{ticker}.
func (h *PredictHandler) Importances(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	ranked, err := h.app.Importances(ticker)
	if err != nil {
		response.Error(w, err)
		return
	}

	byName := make(map[string]float64, len(ranked))
	for _, fi := range ranked {
		byName[fi.Feature] = fi.Importance
	}
	names := h.app.FeatureNames()
	values := make([]float64, len(names))
	for i, n := range names {
		values[i] = byName[n]
	}

	response.JSON(w, http.StatusOK, ImportancesResponse{
		Ticker:      ticker,
		Features:    names,
		Importances: values,
		Ranked:      ranked,
	})
}
