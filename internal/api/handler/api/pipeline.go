// internal/api/handler/api/pipeline.go
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/stockshastri/shastri/internal/api/job"
	"github.com/stockshastri/shastri/internal/api/response"
	"github.com/stockshastri/shastri/internal/app"
	"github.com/stockshastri/shastri/internal/core"
)

// PipelineApp defines the interface needed from app.App.
type PipelineApp interface {
	Train(ctx context.Context) (*app.TrainResult, error)
	UpdateMacro(ctx context.Context) (*app.MacroResult, error)
}

// PipelineHandler triggers retraining and macro refreshes.
type PipelineHandler struct {
	app  PipelineApp
	jobs *job.Store
}

// NewPipelineHandler creates a new pipeline handler. jobs may be nil, in
// which case every run is synchronous.
func NewPipelineHandler(app PipelineApp, jobs *job.Store) *PipelineHandler {
	return &PipelineHandler{app: app, jobs: jobs}
}

// Train handles POST /train. Training runs synchronously and the new model
// serves subsequent requests. With ?async=true the run is queued and a job
// is returned with 202.
func (h *PipelineHandler) Train(w http.ResponseWriter, r *http.Request) {
	if h.async(r) {
		j := h.jobs.Start(r.Context(), "train", func(ctx context.Context) (any, error) {
			return h.app.Train(ctx)
		})
		response.JSON(w, http.StatusAccepted, j)
		return
	}

	res, err := h.app.Train(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.StatusResponse{Status: "model retrained", Result: res})
}

// UpdateMacro handles POST /update_macro.
func (h *PipelineHandler) UpdateMacro(w http.ResponseWriter, r *http.Request) {
	if h.async(r) {
		j := h.jobs.Start(r.Context(), "update_macro", func(ctx context.Context) (any, error) {
			return h.app.UpdateMacro(ctx)
		})
		response.JSON(w, http.StatusAccepted, j)
		return
	}

	res, err := h.app.UpdateMacro(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.StatusResponse{Status: "macro updated", Result: res})
}

// Job handles GET /jobs/{id}.
func (h *PipelineHandler) Job(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		response.Error(w, core.ErrJobNotFound)
		return
	}
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}

func (h *PipelineHandler) async(r *http.Request) bool {
	if h.jobs == nil {
		return false
	}
	v, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	return v
}
