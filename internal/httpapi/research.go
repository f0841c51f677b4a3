// Package httpapi exposes the research orchestrator over HTTP: submit a
// query, wait for the report, and poll run status while it executes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"github.com/scholarflow/orchestrator/internal/constants"
	"github.com/scholarflow/orchestrator/internal/db"
	"github.com/scholarflow/orchestrator/internal/metrics"
	"github.com/scholarflow/orchestrator/internal/models"
	"github.com/scholarflow/orchestrator/internal/workflows"
)

// WorkflowClient is the slice of the Temporal client the handler needs.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// RunHistory lists recently recorded research runs. Implemented by the
// Postgres client; nil disables the endpoint.
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]db.RunRecord, error)
}

// ResearchHandler serves the research API.
type ResearchHandler struct {
	tclient WorkflowClient
	runs    RunHistory
	logger  *zap.Logger
	timeout time.Duration
}

// NewResearchHandler builds the handler. timeout bounds how long a
// synchronous request waits for the workflow result.
func NewResearchHandler(tc WorkflowClient, runs RunHistory, logger *zap.Logger, timeout time.Duration) *ResearchHandler {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &ResearchHandler{tclient: tc, runs: runs, logger: logger, timeout: timeout}
}

// RegisterRoutes attaches the research endpoints.
func (h *ResearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/research", h.handleResearch)
	mux.HandleFunc("/api/v1/research/", h.handleStatus)
	mux.HandleFunc("/api/v1/runs", h.handleRuns)
}

type researchRequest struct {
	Query            string `json:"query"`
	ChunkedReporting bool   `json:"chunked_reporting"`
}

type researchResponse struct {
	WorkflowID string                 `json:"workflow_id"`
	Report     string                 `json:"report"`
	Success    bool                   `json:"success"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// handleResearch: POST /api/v1/research
// Starts a research run and blocks until the report is ready.
func (h *ResearchHandler) handleResearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "research", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "research", http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, "research", http.StatusBadRequest, "query is required")
		return
	}

	workflowID := "research-" + uuid.New().String()
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	metrics.WorkflowsStarted.WithLabelValues("research").Inc()
	started := time.Now()

	run, err := h.tclient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: constants.ResearchTaskQueue,
	}, workflows.ResearchWorkflow, workflows.ResearchInput{
		Query:            req.Query,
		ChunkedReporting: req.ChunkedReporting,
	})
	if err != nil {
		h.logger.Error("Failed to start research workflow",
			zap.String("workflow_id", workflowID), zap.Error(err))
		writeError(w, "research", http.StatusInternalServerError, "failed to start research")
		return
	}

	h.logger.Info("Research workflow started",
		zap.String("workflow_id", workflowID),
		zap.Bool("chunked_reporting", req.ChunkedReporting))

	var result workflows.ResearchResult
	if err := run.Get(ctx, &result); err != nil {
		metrics.WorkflowsCompleted.WithLabelValues("research", "failed").Inc()
		h.logger.Error("Research workflow failed",
			zap.String("workflow_id", workflowID), zap.Error(err))
		writeError(w, "research", http.StatusInternalServerError, "research run failed")
		return
	}
	status := "success"
	if !result.Success {
		status = "degraded"
	}
	metrics.WorkflowsCompleted.WithLabelValues("research", status).Inc()
	metrics.WorkflowDuration.WithLabelValues("research").Observe(time.Since(started).Seconds())

	writeJSON(w, "research", http.StatusOK, researchResponse{
		WorkflowID: workflowID,
		Report:     result.Report,
		Success:    result.Success,
		Metadata:   result.Metadata,
	})
}

// handleStatus: GET /api/v1/research/{workflow_id}
// Returns the live state snapshot via the workflow status query.
func (h *ResearchHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "research_status", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	workflowID := strings.TrimPrefix(r.URL.Path, "/api/v1/research/")
	if workflowID == "" || strings.Contains(workflowID, "/") {
		writeError(w, "research_status", http.StatusBadRequest, "workflow id required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	val, err := h.tclient.QueryWorkflow(ctx, workflowID, "", constants.ResearchStatusQuery)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			writeError(w, "research_status", http.StatusNotFound, "workflow not found")
			return
		}
		h.logger.Error("Status query failed",
			zap.String("workflow_id", workflowID), zap.Error(err))
		writeError(w, "research_status", http.StatusInternalServerError, "status query failed")
		return
	}

	var snap models.Snapshot
	if err := val.Get(&snap); err != nil {
		h.logger.Error("Failed to decode status snapshot",
			zap.String("workflow_id", workflowID), zap.Error(err))
		writeError(w, "research_status", http.StatusInternalServerError, "failed to decode status")
		return
	}

	writeJSON(w, "research_status", http.StatusOK, snap)
}

// handleRuns: GET /api/v1/runs?limit=20
// Lists recent run history rows. 404 when no history store is configured.
func (h *ResearchHandler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "runs", http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.runs == nil {
		writeError(w, "runs", http.StatusNotFound, "run history not configured")
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			writeError(w, "runs", http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	runs, err := h.runs.RecentRuns(ctx, limit)
	if err != nil {
		h.logger.Error("Failed to list run history", zap.Error(err))
		writeError(w, "runs", http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, "runs", http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, route string, status int, body interface{}) {
	metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers already sent; nothing more to do.
		return
	}
}

func writeError(w http.ResponseWriter, route string, status int, msg string) {
	metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}
