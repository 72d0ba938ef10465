package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/veridia/newstrust/internal/analysis"
	"github.com/veridia/newstrust/internal/article"
)

type stubFetcher struct {
	text  string
	err   error
	calls int
}

func (s *stubFetcher) ScrapeURL(ctx context.Context, url string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type stubArchiver struct {
	texts map[string]string
	err   error
}

func (s *stubArchiver) PutArticleText(ctx context.Context, articleID string, text string) error {
	if s.err != nil {
		return s.err
	}
	if s.texts == nil {
		s.texts = make(map[string]string)
	}
	s.texts[articleID] = text
	return nil
}

func newTestArticle(id string, content *string) *article.Article {
	return &article.Article{
		ID:          id,
		Title:       "Gobierno anuncia reforma",
		URL:         "https://example.com/articles/" + id,
		Source:      "ejemplo.com",
		Language:    "es",
		Description: "Detalles de la reforma anunciada hoy.",
		PublishedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Content:     content,
		CreatedAt:   time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC),
	}
}

func TestResolveReusesStoredContent(t *testing.T) {
	stored := strings.Repeat("a", 150)
	a := newTestArticle("art-1", &stored)
	fetcher := &stubFetcher{text: "should not be used"}
	repo := article.NewInMemoryRepository()
	repo.Put(a)

	r := NewContentResolver(fetcher, repo, nil, nil)
	res := r.Resolve(context.Background(), a)

	if res.Text != stored {
		t.Errorf("expected stored content to be reused")
	}
	if res.Length != 150 {
		t.Errorf("expected length 150, got %d", res.Length)
	}
	if fetcher.calls != 0 {
		t.Errorf("expected no fetch for reusable content, got %d calls", fetcher.calls)
	}
}

func TestResolveRefetchesShortStoredContent(t *testing.T) {
	// 50 chars of stored content is below the reuse threshold.
	stored := strings.Repeat("b", 50)
	a := newTestArticle("art-2", &stored)
	fetched := strings.Repeat("texto del articulo ", 30)
	fetcher := &stubFetcher{text: fetched}
	repo := article.NewInMemoryRepository()
	repo.Put(a)
	arch := &stubArchiver{}

	r := NewContentResolver(fetcher, repo, arch, nil)
	res := r.Resolve(context.Background(), a)

	if fetcher.calls != 1 {
		t.Fatalf("expected 1 fetch, got %d", fetcher.calls)
	}
	if res.Text != fetched {
		t.Errorf("expected fetched text to be returned")
	}
	if res.Length != len(fetched) {
		t.Errorf("expected length %d, got %d", len(fetched), res.Length)
	}

	persisted, err := repo.FindByID(context.Background(), "art-2")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if persisted.Content == nil || *persisted.Content != fetched {
		t.Errorf("expected fetched content to be persisted")
	}
	if arch.texts["art-2"] != fetched {
		t.Errorf("expected fetched content to be archived")
	}
}

func TestResolveFallbackOnFetchError(t *testing.T) {
	a := newTestArticle("art-3", nil)
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	repo := article.NewInMemoryRepository()
	repo.Put(a)

	r := NewContentResolver(fetcher, repo, nil, nil)
	res := r.Resolve(context.Background(), a)

	want := a.Title + "\n\n" + a.Description
	if res.Text != want {
		t.Errorf("expected title+description fallback, got %q", res.Text)
	}
	if res.Length != 0 {
		t.Errorf("fallback must report length 0, got %d", res.Length)
	}

	// Fallback text is never persisted as article content.
	persisted, err := repo.FindByID(context.Background(), "art-3")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if persisted.Content != nil {
		t.Errorf("fallback text must not be persisted")
	}
}

func TestResolveFallbackTitleOnlyWithoutDescription(t *testing.T) {
	a := newTestArticle("art-4", nil)
	a.Description = ""
	fetcher := &stubFetcher{err: errors.New("timeout")}
	repo := article.NewInMemoryRepository()
	repo.Put(a)

	r := NewContentResolver(fetcher, repo, nil, nil)
	res := r.Resolve(context.Background(), a)

	if res.Text != a.Title {
		t.Errorf("expected bare title fallback, got %q", res.Text)
	}
	if res.Length != 0 {
		t.Errorf("fallback must report length 0, got %d", res.Length)
	}
}

func TestResolveArchiveFailureDoesNotFail(t *testing.T) {
	a := newTestArticle("art-5", nil)
	fetched := strings.Repeat("contenido ", 40)
	fetcher := &stubFetcher{text: fetched}
	repo := article.NewInMemoryRepository()
	repo.Put(a)
	arch := &stubArchiver{err: errors.New("bucket unavailable")}

	r := NewContentResolver(fetcher, repo, arch, nil)
	res := r.Resolve(context.Background(), a)

	if res.Length != len(fetched) {
		t.Errorf("archive failure must not change the resolution, got length %d", res.Length)
	}
}

func TestResolveFallbackLengthDrivesStrictCeilings(t *testing.T) {
	// End to end through calibration: a fallback resolution (length 0)
	// lands in the strictest evidence tier no matter what the AI claims.
	a := newTestArticle("art-6", nil)
	fetcher := &stubFetcher{err: errors.New("unreachable")}
	repo := article.NewInMemoryRepository()
	repo.Put(a)

	r := NewContentResolver(fetcher, repo, nil, nil)
	res := r.Resolve(context.Background(), a)

	raw := analysis.RawAnalysis{ReliabilityScore: 95, TraceabilityScore: 90}
	out := analysis.Calibrate(raw, res.Text, res.Length, analysis.ModeLowCost)
	if out.ReliabilityScore > 45 {
		t.Errorf("reliability %d exceeds the short-evidence ceiling", out.ReliabilityScore)
	}
	if out.TraceabilityScore > 30 {
		t.Errorf("traceability %d exceeds the short-evidence ceiling", out.TraceabilityScore)
	}
}
