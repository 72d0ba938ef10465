package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/veridia/newstrust/internal/ai"
	"github.com/veridia/newstrust/internal/analysis"
	"github.com/veridia/newstrust/internal/article"
	"github.com/veridia/newstrust/internal/middleware"
	"github.com/veridia/newstrust/internal/pipeline"
	"github.com/veridia/newstrust/internal/quota"
)

// stubAnalyzer returns a canned analysis or error.
type stubAnalyzer struct {
	raw *analysis.RawAnalysis
	err error
}

func (s *stubAnalyzer) AnalyzeArticle(ctx context.Context, req ai.AnalyzeRequest) (*analysis.RawAnalysis, error) {
	if s.err != nil {
		return nil, s.err
	}
	raw := *s.raw
	return &raw, nil
}

// stubFetcher returns fixed article text.
type stubFetcher struct {
	text string
	err  error
}

func (s *stubFetcher) ScrapeURL(ctx context.Context, url string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func confidentRaw() *analysis.RawAnalysis {
	return &analysis.RawAnalysis{
		Summary:           "Resumen del articulo",
		BiasScore:         4,
		BiasIndicators:    []string{"carga emocional", "fuentes unilaterales", "omision de contexto"},
		BiasType:          analysis.BiasTypeFraming,
		ReliabilityScore:  90,
		TraceabilityScore: 85,
		FactCheck: analysis.FactCheck{
			Claims:  []string{"afirmacion principal"},
			Verdict: analysis.VerdictVerified,
		},
		FactualityStatus:   analysis.FactualityDeterminable,
		ArticleLeaning:     analysis.LeaningRight,
		ReliabilityComment: "Fuentes citadas y verificables",
	}
}

// apiFixture wires an in-memory pipeline behind the analysis handlers.
type apiFixture struct {
	repo     *article.InMemoryRepository
	users    *article.InMemoryUserStore
	analyzer *stubAnalyzer
	handlers *AnalysisHandlers
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	repo := article.NewInMemoryRepository()
	users := article.NewInMemoryUserStore()
	analyzer := &stubAnalyzer{raw: confidentRaw()}
	fetcher := &stubFetcher{text: strings.Repeat("palabra ", 150)} // ~1200 chars

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	resolver := pipeline.NewContentResolver(fetcher, repo, nil, logger)
	orchestrator := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Repo:     repo,
		Guard:    quota.NewGuard(nil),
		Resolver: resolver,
		Analyzer: analyzer,
		Logger:   logger,
	})
	batch := pipeline.NewBatchRunner(repo, orchestrator, nil, logger)

	return &apiFixture{
		repo:     repo,
		users:    users,
		analyzer: analyzer,
		handlers: NewAnalysisHandlers(orchestrator, batch, users, logger),
	}
}

// testWriter routes log output through the test log.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func (f *apiFixture) putArticle(id string) {
	f.repo.Put(&article.Article{
		ID:          id,
		Title:       "Titular de prueba",
		URL:         "https://example.com/" + id,
		Source:      "El Diario",
		Language:    "es",
		PublishedAt: time.Now().Add(-24 * time.Hour),
		CreatedAt:   time.Now(),
	})
}

func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

// analyzeRequest builds a POST request routed through a mux so PathValue
// is populated.
func (f *apiFixture) analyze(t *testing.T, articleID, body string) *httptest.ResponseRecorder {
	t.Helper()
	return f.analyzeWithContext(t, articleID, body, nil)
}

func (f *apiFixture) analyzeWithContext(t *testing.T, articleID, body string, ctxFn func(context.Context) context.Context) *httptest.ResponseRecorder {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/articles/{id}/analysis", f.handlers.AnalyzeArticle)

	req := httptest.NewRequest(http.MethodPost, "/v1/articles/"+articleID+"/analysis", strings.NewReader(body))
	if ctxFn != nil {
		req = req.WithContext(ctxFn(req.Context()))
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestAnalyzeArticle_Success(t *testing.T) {
	f := newAPIFixture(t)
	f.putArticle("a1")

	w := f.analyze(t, "a1", `{"mode":"moderate"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var result pipeline.Result
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.ArticleID != "a1" {
		t.Errorf("expected article_id a1, got %s", result.ArticleID)
	}
	if result.Mode != analysis.ModeModerate {
		t.Errorf("expected moderate mode for long content, got %s", result.Mode)
	}
	if result.Cached {
		t.Error("first analysis should not be cached")
	}

	stored, err := f.repo.FindByID(context.Background(), "a1")
	if err != nil || stored == nil {
		t.Fatalf("failed to reload article: %v", err)
	}
	if stored.Analysis == nil {
		t.Error("expected analysis envelope to be persisted")
	}
}

func TestAnalyzeArticle_EmptyBody(t *testing.T) {
	f := newAPIFixture(t)
	f.putArticle("a1")

	w := f.analyze(t, "a1", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for empty body, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeArticle_InvalidJSON(t *testing.T) {
	f := newAPIFixture(t)
	f.putArticle("a1")

	w := f.analyze(t, "a1", `{"mode":`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if resp := decodeErrorResponse(t, w); resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("expected code %s, got %s", ErrCodeBadRequest, resp.Error.Code)
	}
}

func TestAnalyzeArticle_InvalidMode(t *testing.T) {
	f := newAPIFixture(t)
	f.putArticle("a1")

	w := f.analyze(t, "a1", `{"mode":"premium"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if resp := decodeErrorResponse(t, w); resp.Error.Code != ErrCodeValidation {
		t.Errorf("expected code %s, got %s", ErrCodeValidation, resp.Error.Code)
	}
}

func TestAnalyzeArticle_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	w := f.analyze(t, "missing", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	if resp := decodeErrorResponse(t, w); resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, resp.Error.Code)
	}
}

func TestAnalyzeArticle_QuotaExceeded(t *testing.T) {
	f := newAPIFixture(t)
	f.putArticle("a1")

	limit := quota.DefaultPlanLimits()[quota.PlanFree].Analyses
	f.users.Put(&quota.User{
		ID:   "u1",
		Plan: quota.PlanFree,
		UsageStats: quota.UsageStats{
			ArticlesAnalyzed: limit,
		},
	})

	w := f.analyzeWithContext(t, "a1", "", func(ctx context.Context) context.Context {
		return middleware.SetUser(ctx, "u1", string(quota.PlanFree))
	})

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeErrorResponse(t, w); resp.Error.Code != ErrCodeQuotaExceeded {
		t.Errorf("expected code %s, got %s", ErrCodeQuotaExceeded, resp.Error.Code)
	}
}

func TestAnalyzeArticle_UnknownUserFallsBackToTokenPlan(t *testing.T) {
	f := newAPIFixture(t)
	f.putArticle("a1")

	// User is authenticated but has not been synced into the store yet.
	w := f.analyzeWithContext(t, "a1", "", func(ctx context.Context) context.Context {
		return middleware.SetUser(ctx, "u-unsynced", string(quota.PlanPro))
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeArticle_UpstreamFailure(t *testing.T) {
	f := newAPIFixture(t)
	f.putArticle("a1")
	f.analyzer.err = &ai.APIError{StatusCode: http.StatusServiceUnavailable, Message: "overloaded"}

	w := f.analyze(t, "a1", "")

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", w.Code)
	}
	resp := decodeErrorResponse(t, w)
	if resp.Error.Code != ErrCodeUpstream {
		t.Errorf("expected code %s, got %s", ErrCodeUpstream, resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Message, "retry") {
		t.Errorf("expected retryable hint in message, got %q", resp.Error.Message)
	}
}

func TestBatchAnalyze_Success(t *testing.T) {
	f := newAPIFixture(t)
	f.putArticle("a1")
	f.putArticle("a2")

	req := httptest.NewRequest(http.MethodPost, "/v1/analysis/batch", strings.NewReader(`{"limit":10}`))
	w := httptest.NewRecorder()
	f.handlers.BatchAnalyze(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var result pipeline.BatchResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode batch result: %v", err)
	}
	if result.Processed != 2 || result.Successful != 2 || result.Failed != 0 {
		t.Errorf("unexpected batch counts: %+v", result)
	}
}

func TestBatchAnalyze_InvalidLimit(t *testing.T) {
	f := newAPIFixture(t)

	for _, body := range []string{`{"limit":0}`, `{"limit":101}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/analysis/batch", strings.NewReader(body))
		w := httptest.NewRecorder()
		f.handlers.BatchAnalyze(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected status 400, got %d", body, w.Code)
			continue
		}
		if resp := decodeErrorResponse(t, w); resp.Error.Code != ErrCodeValidation {
			t.Errorf("body %s: expected code %s, got %s", body, ErrCodeValidation, resp.Error.Code)
		}
	}
}

func TestBatchAnalyze_InvalidJSON(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/analysis/batch", strings.NewReader(`{`))
	w := httptest.NewRecorder()
	f.handlers.BatchAnalyze(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if resp := decodeErrorResponse(t, w); resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("expected code %s, got %s", ErrCodeBadRequest, resp.Error.Code)
	}
}
