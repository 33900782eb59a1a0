package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solhaga/threatlens/internal/adapter/exporter"
	"github.com/solhaga/threatlens/internal/adapter/telemetry"
	"github.com/solhaga/threatlens/internal/core/domain"
	"github.com/solhaga/threatlens/internal/core/ports"
	"github.com/solhaga/threatlens/internal/core/simulation"
)

// maxTrials caps a single simulation request so one caller cannot pin a CPU
// core for minutes.
const maxTrials = 10_000_000

type RestHandler struct {
	catalog    *domain.Catalog
	tree       domain.Node
	repo       ports.AssessmentRepository
	logger     *zap.Logger
	csvExport  *exporter.CSVExporter
	mdExport   *exporter.MarkdownExporter
	simWorkers int
}

// NewRestHandler builds the API handler. tree may be nil when no attack tree
// is configured; repo may be nil when assessment history is disabled.
func NewRestHandler(catalog *domain.Catalog, tree domain.Node, repo ports.AssessmentRepository, logger *zap.Logger, simWorkers int) *RestHandler {
	if simWorkers < 1 {
		simWorkers = 1
	}
	return &RestHandler{
		catalog:    catalog,
		tree:       tree,
		repo:       repo,
		logger:     logger,
		csvExport:  exporter.NewCSVExporter(),
		mdExport:   exporter.NewMarkdownExporter(),
		simWorkers: simWorkers,
	}
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "threatlens-api",
		"threats":   h.catalog.Len(),
		"tree":      h.tree != nil,
	}
	h.writeJSON(w, http.StatusOK, response)
}

// RankedThreats returns the scored catalog in ranked order.
func (h *RestHandler) RankedThreats(w http.ResponseWriter, r *http.Request) {
	ranked, err := domain.ScoreAndRank(h.catalog)
	if err != nil {
		h.logger.Error("scoring failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type rankedThreat struct {
		Rank        int      `json:"rank"`
		ID          string   `json:"id"`
		Score       float64  `json:"score"`
		Severity    string   `json:"severity"`
		Stride      []string `json:"stride"`
		Location    string   `json:"location"`
		Description string   `json:"description"`
		Mitigations []string `json:"mitigations"`
		Probability float64  `json:"probability"`
	}

	out := make([]rankedThreat, len(ranked))
	for i, t := range ranked {
		stride := make([]string, len(t.Stride))
		for j, s := range t.Stride {
			stride[j] = string(s)
		}
		out[i] = rankedThreat{
			Rank:        i + 1,
			ID:          t.ID,
			Score:       t.DreadScore,
			Severity:    string(t.Tier),
			Stride:      stride,
			Location:    t.Location,
			Description: t.Description,
			Mitigations: t.Mitigations,
			Probability: t.Probability,
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(out),
		"threats": out,
	})
}

// ExportThreats streams the ranked threat table as CSV or Markdown.
func (h *RestHandler) ExportThreats(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")

	ranked, err := domain.ScoreAndRank(h.catalog)
	if err != nil {
		h.logger.Error("scoring failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch format {
	case "csv", "":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := h.csvExport.Export(w, ranked); err != nil {
			h.logger.Error("CSV export failed", zap.Error(err))
		}
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := h.mdExport.Export(w, ranked); err != nil {
			h.logger.Error("Markdown export failed", zap.Error(err))
		}
	default:
		h.writeError(w, http.StatusBadRequest, "unsupported format (use 'csv' or 'markdown')")
	}
}

// EvaluateTree runs the analytic evaluator against the configured tree.
func (h *RestHandler) EvaluateTree(w http.ResponseWriter, r *http.Request) {
	if h.tree == nil {
		h.writeError(w, http.StatusNotFound, "no attack tree configured")
		return
	}

	timer := telemetry.StartTimer("analytic")
	result, err := domain.EvaluateTree(h.tree, h.catalog)
	timer.ObserveDuration()
	if err != nil {
		telemetry.RecordEvaluation("analytic", "error")
		h.logger.Error("analytic evaluation failed", zap.Error(err))
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	telemetry.RecordEvaluation("analytic", "success")
	telemetry.RecordRootProbability(result.Root)

	assessment := domain.Assessment{
		ID:              uuid.New().String(),
		Kind:            domain.AssessmentAnalytic,
		RootProbability: result.Root,
		IntervalLow:     result.Root,
		IntervalHigh:    result.Root,
		CreatedAt:       time.Now().UTC(),
	}
	h.persist(r.Context(), assessment)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessment_id":    assessment.ID,
		"kind":             assessment.Kind,
		"root_probability": result.Root,
		"nodes_evaluated":  result.Nodes(),
	})
}

// SimulateTree runs a Monte Carlo estimate against the configured tree.
func (h *RestHandler) SimulateTree(w http.ResponseWriter, r *http.Request) {
	if h.tree == nil {
		h.writeError(w, http.StatusNotFound, "no attack tree configured")
		return
	}

	trials, err := strconv.Atoi(r.URL.Query().Get("trials"))
	if err != nil || trials <= 0 {
		h.writeError(w, http.StatusBadRequest, "missing or invalid 'trials' parameter (positive integer required)")
		return
	}
	if trials > maxTrials {
		h.writeError(w, http.StatusBadRequest, "'trials' exceeds the per-request limit")
		return
	}

	seed := time.Now().UnixNano()
	if raw := r.URL.Query().Get("seed"); raw != "" {
		seed, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid 'seed' parameter")
			return
		}
	}

	timer := telemetry.StartTimer("simulation")
	result, err := simulation.Run(r.Context(), h.tree, h.catalog, simulation.Options{
		Trials:  trials,
		Seed:    seed,
		Workers: h.simWorkers,
	})
	timer.ObserveDuration()
	if err != nil {
		telemetry.RecordEvaluation("simulation", "error")
		h.logger.Error("simulation failed", zap.Error(err))
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	telemetry.RecordEvaluation("simulation", "success")
	telemetry.RecordTrials(result.Trials)
	telemetry.RecordRootProbability(result.Estimate)

	assessment := domain.Assessment{
		ID:              uuid.New().String(),
		Kind:            domain.AssessmentSimulation,
		RootProbability: result.Estimate,
		Trials:          result.Trials,
		Seed:            seed,
		IntervalLow:     result.IntervalLow,
		IntervalHigh:    result.IntervalHigh,
		CreatedAt:       time.Now().UTC(),
	}
	h.persist(r.Context(), assessment)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessment_id": assessment.ID,
		"kind":          assessment.Kind,
		"estimate":      result.Estimate,
		"trials":        result.Trials,
		"successes":     result.Successes,
		"seed":          seed,
		"interval_low":  result.IntervalLow,
		"interval_high": result.IntervalHigh,
	})
}

// ListAssessments returns recent persisted assessment runs.
func (h *RestHandler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, http.StatusNotFound, "assessment history is not configured")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			h.writeError(w, http.StatusBadRequest, "invalid 'limit' parameter (1-1000)")
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	assessments, err := h.repo.ListRecent(ctx, limit)
	if err != nil {
		h.logger.Error("failed to list assessments", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to query assessments")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(assessments),
		"assessments": assessments,
	})
}

// persist saves an assessment when history is configured. Persistence failures
// are logged, not surfaced: the computed result is still valid for the caller.
func (h *RestHandler) persist(ctx context.Context, a domain.Assessment) {
	if h.repo == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.repo.Save(saveCtx, a); err != nil {
		h.logger.Warn("failed to persist assessment", zap.String("id", a.ID), zap.Error(err))
	}
}

func (h *RestHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (h *RestHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps domain error types to HTTP statuses for callers that
// surface load-time validation over the API.
func statusForError(err error) int {
	var ve *domain.ValidationError
	var de *domain.DanglingReferenceError
	var ee *domain.EmptyNodeError
	var ce *domain.CycleError
	if errors.As(err, &ve) || errors.As(err, &de) || errors.As(err, &ee) || errors.As(err, &ce) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
