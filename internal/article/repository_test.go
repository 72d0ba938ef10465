package article

import (
	"context"
	"testing"
	"time"

	"github.com/veridia/newstrust/internal/quota"
)

func newArticle(id string, published time.Time) *Article {
	return &Article{
		ID:          id,
		Title:       "Titulo " + id,
		URL:         "https://example.com/" + id,
		Source:      "El Diario",
		Language:    "es",
		PublishedAt: published,
		CreatedAt:   time.Now(),
	}
}

func TestInMemoryRepository_FindByID(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	got, err := repo.FindByID(ctx, "missing")
	if err != nil {
		t.Fatalf("FindByID() error: %v", err)
	}
	if got != nil {
		t.Errorf("FindByID(missing) = %+v, want nil", got)
	}

	repo.Put(newArticle("a1", time.Now()))

	got, err = repo.FindByID(ctx, "a1")
	if err != nil {
		t.Fatalf("FindByID() error: %v", err)
	}
	if got == nil || got.ID != "a1" {
		t.Fatalf("FindByID(a1) = %+v", got)
	}

	// Returned copy must not alias the stored article.
	content := "mutated"
	got.Content = &content
	again, _ := repo.FindByID(ctx, "a1")
	if again.Content != nil {
		t.Error("mutation of a returned article leaked into the repository")
	}
}

func TestInMemoryRepository_FindUnanalyzed(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	repo.Put(newArticle("newest", base.Add(48*time.Hour)))
	repo.Put(newArticle("oldest", base))
	repo.Put(newArticle("middle", base.Add(24*time.Hour)))

	analyzed := newArticle("done", base.Add(-time.Hour))
	at := base
	analyzed.AnalyzedAt = &at
	repo.Put(analyzed)

	got, err := repo.FindUnanalyzed(ctx, 10)
	if err != nil {
		t.Fatalf("FindUnanalyzed() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("FindUnanalyzed() returned %d articles, want 3", len(got))
	}
	if got[0].ID != "oldest" || got[2].ID != "newest" {
		t.Errorf("ordering wrong: %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}

	got, err = repo.FindUnanalyzed(ctx, 1)
	if err != nil {
		t.Fatalf("FindUnanalyzed() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "oldest" {
		t.Errorf("limit 1 returned %d articles, first %q", len(got), got[0].ID)
	}
}

func TestInMemoryRepository_SaveContentAndAnalysis(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	repo.Put(newArticle("a1", time.Now()))

	if err := repo.SaveContent(ctx, "a1", "texto completo"); err != nil {
		t.Fatalf("SaveContent() error: %v", err)
	}
	analyzedAt := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	if err := repo.SaveAnalysis(ctx, "a1", `{"schema_version":1}`, analyzedAt); err != nil {
		t.Fatalf("SaveAnalysis() error: %v", err)
	}

	got, _ := repo.FindByID(ctx, "a1")
	if got.Content == nil || *got.Content != "texto completo" {
		t.Errorf("content not persisted: %+v", got.Content)
	}
	if got.Analysis == nil || *got.Analysis != `{"schema_version":1}` {
		t.Errorf("analysis not persisted: %+v", got.Analysis)
	}
	if got.AnalyzedAt == nil || !got.AnalyzedAt.Equal(analyzedAt) {
		t.Errorf("analyzedAt not persisted: %+v", got.AnalyzedAt)
	}
	if !got.Analyzed() {
		t.Error("Analyzed() = false after SaveAnalysis")
	}
}

func TestInMemoryRepository_Stats(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	s, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if s.Total != 0 || s.PercentAnalyzed != 0 {
		t.Errorf("empty stats = %+v", s)
	}

	repo.Put(newArticle("a1", time.Now()))
	repo.Put(newArticle("a2", time.Now()))
	a3 := newArticle("a3", time.Now())
	now := time.Now()
	a3.AnalyzedAt = &now
	repo.Put(a3)
	a4 := newArticle("a4", time.Now())
	a4.AnalyzedAt = &now
	repo.Put(a4)

	s, err = repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if s.Total != 4 || s.Analyzed != 2 || s.Pending != 2 {
		t.Errorf("stats = %+v, want total 4 analyzed 2 pending 2", s)
	}
	if s.PercentAnalyzed != 50 {
		t.Errorf("PercentAnalyzed = %f, want 50", s.PercentAnalyzed)
	}
}

func TestArticle_ContentLength(t *testing.T) {
	a := &Article{}
	if a.ContentLength() != 0 {
		t.Errorf("nil content length = %d, want 0", a.ContentLength())
	}
	content := "hola"
	a.Content = &content
	if a.ContentLength() != 4 {
		t.Errorf("ContentLength() = %d, want 4", a.ContentLength())
	}
}

func TestInMemoryUserStore(t *testing.T) {
	store := NewInMemoryUserStore()
	ctx := context.Background()

	got, err := store.FindByID(ctx, "missing")
	if err != nil {
		t.Fatalf("FindByID() error: %v", err)
	}
	if got != nil {
		t.Errorf("FindByID(missing) = %+v, want nil", got)
	}

	store.Put(&quota.User{ID: "u1", Plan: quota.PlanPro, UsageStats: quota.UsageStats{ArticlesAnalyzed: 7}})
	got, err = store.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByID() error: %v", err)
	}
	if got == nil || got.Plan != quota.PlanPro || got.UsageStats.ArticlesAnalyzed != 7 {
		t.Errorf("FindByID(u1) = %+v", got)
	}
}
