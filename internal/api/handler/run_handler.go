package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"hospital-kpi-pipeline/internal/endpoint"
	"hospital-kpi-pipeline/internal/model"
	"hospital-kpi-pipeline/internal/pipeline"
	"hospital-kpi-pipeline/internal/store"

	"github.com/google/uuid"
)

// runBudget bounds one full refresh, comfortably above the worst-case sum of
// per-endpoint timeout budgets.
const runBudget = 10 * time.Minute

// RunHandler serves the dashboard run API.
type RunHandler struct {
	pipeline *pipeline.Pipeline
}

func NewRunHandler(p *pipeline.Pipeline) *RunHandler {
	return &RunHandler{pipeline: p}
}

// CreateRun starts a new dashboard refresh
// @Summary Start a dashboard refresh
// @Description Create a run that fetches the requested analytics endpoints concurrently and assembles KPI cards
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.RunRequest true "Run request"
// @Success 200 {object} map[string]interface{} "Run created"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	// An empty body means "refresh everything with defaults".
	var req model.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	runID := uuid.New().String()
	if err := store.SaveRun(runID, req); err != nil {
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	go h.execute(runID, req)

	resp := map[string]interface{}{
		"message":   "Run created successfully!",
		"runID":     runID,
		"status":    "pending",
		"createdAt": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *RunHandler) execute(runID string, req model.RunRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), runBudget)
	defer cancel()

	store.UpdateRunStatus(runID, "running")

	result, err := h.pipeline.Run(ctx, req)
	if err != nil {
		store.SaveRunError(runID, model.EndpointResult{
			EndpointID: "pipeline",
			Kind:       model.ErrServer,
			Message:    err.Error(),
		})
		store.UpdateRunStatus(runID, "failed")
		return
	}

	for _, res := range result.Results {
		if !res.Success {
			store.SaveRunError(runID, res)
		}
	}
	store.SaveRunCards(runID, result.Cards)
	store.SaveRunOverrides(runID, result.Overrides)
	store.UpdateRunStatus(runID, "completed")
}

// ListRuns lists all runs
// @Summary List runs
// @Description Get all runs with their current status, newest first
// @Tags runs
// @Produce json
// @Success 200 {array} map[string]interface{} "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// GetRun retrieves one run
// @Summary Get run
// @Description Retrieve the request and status of a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path)
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	run, err := store.GetRun(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// GetRunCards retrieves the KPI cards of a run
// @Summary Get run cards
// @Description Retrieve the assembled KPI cards of a completed run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run cards"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/cards [get]
func (h *RunHandler) GetRunCards(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path)
	if _, err := store.GetRun(runID); err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	cards, err := store.GetRunCards(runID)
	if err != nil {
		http.Error(w, "Failed to fetch cards", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id": runID,
		"cards":  cards,
		"count":  len(cards),
	})
}

// GetRunErrors retrieves the endpoint failures of a run
// @Summary Get run errors
// @Description Retrieve the classified endpoint failures recorded for a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/errors [get]
func (h *RunHandler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path)
	if _, err := store.GetRun(runID); err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	errs, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to fetch errors", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id": runID,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetRunOverrides retrieves the defaults applied during a run
// @Summary Get run overrides
// @Description Retrieve the parameter defaults the resolver injected during a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run overrides"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/overrides [get]
func (h *RunHandler) GetRunOverrides(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path)
	if _, err := store.GetRun(runID); err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	overrides, err := store.GetRunOverrides(runID)
	if err != nil {
		http.Error(w, "Failed to fetch overrides", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id":    runID,
		"overrides": overrides,
		"count":     len(overrides),
	})
}

// ListEndpoints lists the known analytics endpoints
// @Summary List endpoints
// @Description Get the registry of upstream analytics endpoints
// @Tags endpoints
// @Produce json
// @Success 200 {array} map[string]interface{} "List of endpoints"
// @Router /endpoints [get]
func (h *RunHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]interface{}, 0, len(endpoint.AllIDs))
	for _, id := range endpoint.AllIDs {
		ep := endpoint.Registry[id]
		out = append(out, map[string]interface{}{
			"id":   ep.ID,
			"name": ep.Name,
			"path": ep.Path,
			"slow": ep.Slow,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// runIDFromPath extracts the run ID segment from /api/v1/runs/{id}[/...].
func runIDFromPath(path string) string {
	const prefix = "/api/v1/runs/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
