package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/veridia/newstrust/internal/article"
	"github.com/veridia/newstrust/internal/middleware"
)

// Backlog listing bounds.
const (
	DefaultBacklogLimit = 20
	MaxBacklogLimit     = 100
)

// ArticleHandlers holds dependencies for article HTTP handlers.
type ArticleHandlers struct {
	repo   article.Repository
	logger *slog.Logger
}

// NewArticleHandlers creates a new ArticleHandlers instance.
func NewArticleHandlers(repo article.Repository, logger *slog.Logger) *ArticleHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleHandlers{repo: repo, logger: logger}
}

// BacklogResponse lists articles still waiting for analysis.
type BacklogResponse struct {
	Articles []*article.Article `json:"articles"`
	Count    int                `json:"count"`
}

// ListBacklog handles GET /v1/articles.
// Returns the oldest unanalyzed articles, up to ?limit= (default 20, max 100).
func (h *ArticleHandlers) ListBacklog(w http.ResponseWriter, r *http.Request) {
	limit := DefaultBacklogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > MaxBacklogLimit {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be an integer between 1 and 100")
			return
		}
		limit = parsed
	}

	articles, err := h.repo.FindUnanalyzed(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list unanalyzed articles", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list articles")
		return
	}
	if articles == nil {
		articles = []*article.Article{}
	}

	writeJSON(w, http.StatusOK, BacklogResponse{Articles: articles, Count: len(articles)})
}

// GetArticle handles GET /v1/articles/{id}.
func (h *ArticleHandlers) GetArticle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	a, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load article", "article_id", id, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load article")
		return
	}
	if a == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Article not found")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// GetStats handles GET /v1/stats.
// Returns the analysis coverage aggregate over the article corpus.
func (h *ArticleHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
