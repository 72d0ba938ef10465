package api

import (
	"net/http"

	"github.com/veridia/newstrust/internal/middleware"
)

// RouterConfig collects the handler sets the router mounts. Health and
// Events are optional; absent handler sets leave their routes unmounted.
type RouterConfig struct {
	Articles *ArticleHandlers
	Analysis *AnalysisHandlers
	Auth     *AuthHandlers
	Events   *EventHandlers
	Health   *HealthHandlers

	// Metrics is the handler mounted at /metrics (usually promhttp).
	Metrics http.Handler
}

// NewRouter builds the API route table.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "newstrust-api",
			"version": "0.1.0",
		})
	})

	if cfg.Articles != nil {
		mux.HandleFunc("GET /v1/articles", cfg.Articles.ListBacklog)
		mux.HandleFunc("GET /v1/articles/{id}", cfg.Articles.GetArticle)
		mux.HandleFunc("GET /v1/stats", cfg.Articles.GetStats)
	}

	if cfg.Analysis != nil {
		mux.HandleFunc("POST /v1/articles/{id}/analysis", cfg.Analysis.AnalyzeArticle)
		mux.HandleFunc("POST /v1/analysis/batch", cfg.Analysis.BatchAnalyze)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /v1/auth/token", cfg.Auth.IssueToken)
		mux.HandleFunc("POST /v1/auth/refresh", cfg.Auth.Refresh)
	}

	if cfg.Events != nil {
		mux.HandleFunc("GET /v1/events", cfg.Events.Stream)
	}

	if cfg.Health != nil {
		mux.HandleFunc("GET /health", cfg.Health.Health)
		mux.HandleFunc("GET /ready", cfg.Health.Ready)
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return mux
}
