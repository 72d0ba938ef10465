package article

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/veridia/newstrust/internal/quota"
)

// Repository defines the article data operations the pipeline consumes.
type Repository interface {
	// FindByID retrieves an article by its ID. Returns (nil, nil) when the
	// article does not exist.
	FindByID(ctx context.Context, id string) (*Article, error)

	// FindUnanalyzed returns up to limit articles with no recorded
	// analysis, oldest published first.
	FindUnanalyzed(ctx context.Context, limit int) ([]*Article, error)

	// SaveContent persists freshly fetched content for an article.
	SaveContent(ctx context.Context, id string, content string) error

	// SaveAnalysis persists the calibrated analysis envelope and the
	// analysis timestamp.
	SaveAnalysis(ctx context.Context, id string, envelope string, analyzedAt time.Time) error

	// Stats returns the read-only analysis aggregate.
	Stats(ctx context.Context) (Stats, error)
}

// UserStore provides read access to users for the quota check. User sync
// and counter increments live elsewhere.
type UserStore interface {
	// FindByID retrieves a user. Returns (nil, nil) when unknown.
	FindByID(ctx context.Context, id string) (*quota.User, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	articles map[string]*Article
}

// NewInMemoryRepository creates a new in-memory article repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		articles: make(map[string]*Article),
	}
}

// Put stores an article, replacing any existing entry with the same ID.
func (r *InMemoryRepository) Put(a *Article) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.articles[a.ID] = copyArticle(a)
}

// FindByID retrieves an article by its ID.
func (r *InMemoryRepository) FindByID(ctx context.Context, id string) (*Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.articles[id]
	if !ok {
		return nil, nil
	}
	return copyArticle(a), nil
}

// FindUnanalyzed returns up to limit unanalyzed articles, oldest
// published first.
func (r *InMemoryRepository) FindUnanalyzed(ctx context.Context, limit int) ([]*Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []*Article
	for _, a := range r.articles {
		if !a.Analyzed() {
			pending = append(pending, copyArticle(a))
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].PublishedAt.Before(pending[j].PublishedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// SaveContent persists fetched content for an article.
func (r *InMemoryRepository) SaveContent(ctx context.Context, id string, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.articles[id]
	if !ok {
		return nil
	}
	a.Content = &content
	return nil
}

// SaveAnalysis persists the analysis envelope and timestamp.
func (r *InMemoryRepository) SaveAnalysis(ctx context.Context, id string, envelope string, analyzedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.articles[id]
	if !ok {
		return nil
	}
	a.Analysis = &envelope
	a.AnalyzedAt = &analyzedAt
	return nil
}

// Stats returns the analysis aggregate.
func (r *InMemoryRepository) Stats(ctx context.Context) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{Total: len(r.articles)}
	for _, a := range r.articles {
		if a.Analyzed() {
			s.Analyzed++
		}
	}
	s.Pending = s.Total - s.Analyzed
	if s.Total > 0 {
		s.PercentAnalyzed = float64(s.Analyzed) / float64(s.Total) * 100
	}
	return s, nil
}

// copyArticle returns a deep copy to avoid external modification.
func copyArticle(a *Article) *Article {
	out := *a
	if a.Content != nil {
		content := *a.Content
		out.Content = &content
	}
	if a.Analysis != nil {
		analysis := *a.Analysis
		out.Analysis = &analysis
	}
	if a.AnalyzedAt != nil {
		at := *a.AnalyzedAt
		out.AnalyzedAt = &at
	}
	return &out
}

// InMemoryUserStore is an in-memory implementation of UserStore for
// testing and development.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*quota.User
}

// NewInMemoryUserStore creates a new in-memory user store.
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]*quota.User)}
}

// Put stores a user.
func (s *InMemoryUserStore) Put(u *quota.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userCopy := *u
	s.users[u.ID] = &userCopy
}

// FindByID retrieves a user by ID.
func (s *InMemoryUserStore) FindByID(ctx context.Context, id string) (*quota.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	userCopy := *u
	return &userCopy, nil
}
