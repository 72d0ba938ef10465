package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/veridia/newstrust/internal/analysis"
	"github.com/veridia/newstrust/internal/article"
	"github.com/veridia/newstrust/internal/middleware"
	"github.com/veridia/newstrust/internal/pipeline"
	"github.com/veridia/newstrust/internal/quota"
)

// AnalyzeArticleRequest is the optional request body for a single
// analysis. An empty body means "no mode preference".
type AnalyzeArticleRequest struct {
	Mode string `json:"mode,omitempty"`
}

// BatchAnalyzeRequest is the request body for a batch run.
type BatchAnalyzeRequest struct {
	Limit int `json:"limit"`
}

// AnalysisHandlers holds dependencies for analysis HTTP handlers.
type AnalysisHandlers struct {
	orchestrator *pipeline.Orchestrator
	batch        *pipeline.BatchRunner
	users        article.UserStore
	logger       *slog.Logger
}

// NewAnalysisHandlers creates a new AnalysisHandlers instance. users may
// be nil, in which case authenticated requests fall back to the plan
// carried in the token with zero recorded usage.
func NewAnalysisHandlers(orchestrator *pipeline.Orchestrator, batch *pipeline.BatchRunner, users article.UserStore, logger *slog.Logger) *AnalysisHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandlers{
		orchestrator: orchestrator,
		batch:        batch,
		users:        users,
		logger:       logger,
	}
}

// requestUser resolves the quota identity for the request. Anonymous
// requests return nil, which the pipeline treats as an internal caller.
func (h *AnalysisHandlers) requestUser(r *http.Request) *quota.User {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return nil
	}

	if h.users != nil {
		u, err := h.users.FindByID(r.Context(), userID)
		if err != nil {
			h.logger.Warn("user lookup failed, falling back to token plan",
				"user_id", userID, "error", err)
		} else if u != nil {
			return u
		}
	}

	// Unknown to the store: trust the plan claim, no recorded usage yet.
	plan := quota.Plan(middleware.GetUserPlan(r.Context()))
	if plan == "" {
		plan = quota.PlanFree
	}
	return &quota.User{ID: userID, Plan: plan}
}

// AnalyzeArticle handles POST /v1/articles/{id}/analysis.
// Runs the full pipeline for one article and returns the calibrated result.
func (h *AnalysisHandlers) AnalyzeArticle(w http.ResponseWriter, r *http.Request) {
	articleID := r.PathValue("id")

	var req AnalyzeArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	result, err := h.orchestrator.Analyze(r.Context(), pipeline.AnalyzeRequest{
		ArticleID: articleID,
		User:      h.requestUser(r),
		Mode:      analysis.Mode(req.Mode),
	})
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// BatchAnalyze handles POST /v1/analysis/batch.
// Analyzes up to limit pending articles and returns the per-article outcomes.
func (h *AnalysisHandlers) BatchAnalyze(w http.ResponseWriter, r *http.Request) {
	var req BatchAnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	start := time.Now()
	result, err := h.batch.Run(r.Context(), req.Limit)
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}

	h.logger.Info("batch analysis completed",
		"processed", result.Processed,
		"successful", result.Successful,
		"failed", result.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, result)
}

// writeAnalysisError maps pipeline errors to API error responses.
func (h *AnalysisHandlers) writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *pipeline.ValidationError
		notFoundErr   *pipeline.NotFoundError
		quotaErr      *quota.ExceededError
		upstreamErr   *pipeline.ExternalAPIError
	)

	switch {
	case errors.As(err, &validationErr):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, validationErr.Error())

	case errors.As(err, &notFoundErr):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, notFoundErr.Error())

	case errors.As(err, &quotaErr):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeQuotaExceeded)
		WriteError(w, ctx, http.StatusTooManyRequests, ErrCodeQuotaExceeded, quotaErr.Error())

	case errors.As(err, &upstreamErr):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUpstream)
		message := "Analysis provider failed"
		if upstreamErr.Retryable {
			message = "Analysis provider is temporarily unavailable, retry later"
		}
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstream, message)

	default:
		h.logger.Error("analysis request failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
	}
}
