package article

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/veridia/newstrust/internal/quota"
	"github.com/veridia/newstrust/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// FindByID retrieves an article by ID. Returns (nil, nil) when not found.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Article, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "articles", tracing.DBOperationQuery)

	query := `
		SELECT id, title, url, source, language, description, published_at,
		       content, analysis, analyzed_at, created_at
		FROM articles
		WHERE id = $1`

	var a Article
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Title, &a.URL, &a.Source, &a.Language, &a.Description,
		&a.PublishedAt, &a.Content, &a.Analysis, &a.AnalyzedAt, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		endSpan(nil)
		return nil, nil
	}
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to find article %s: %w", id, err)
	}
	endSpan(nil)
	return &a, nil
}

// FindUnanalyzed returns up to limit articles without an analysis,
// oldest published first.
func (r *PostgresRepository) FindUnanalyzed(ctx context.Context, limit int) ([]*Article, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "articles", tracing.DBOperationQuery)

	query := `
		SELECT id, title, url, source, language, description, published_at,
		       content, analysis, analyzed_at, created_at
		FROM articles
		WHERE analyzed_at IS NULL
		ORDER BY published_at ASC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to query unanalyzed articles: %w", err)
	}
	defer rows.Close()

	var articles []*Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(
			&a.ID, &a.Title, &a.URL, &a.Source, &a.Language, &a.Description,
			&a.PublishedAt, &a.Content, &a.Analysis, &a.AnalyzedAt, &a.CreatedAt,
		); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, &a)
	}
	if err := rows.Err(); err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to iterate article rows: %w", err)
	}
	endSpan(nil)
	return articles, nil
}

// SaveContent persists freshly fetched content for an article.
func (r *PostgresRepository) SaveContent(ctx context.Context, id string, content string) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "articles", tracing.DBOperationUpdate)

	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET content = $2 WHERE id = $1`, id, content)
	endSpan(err)
	if err != nil {
		return fmt.Errorf("failed to save content for article %s: %w", id, err)
	}
	return nil
}

// SaveAnalysis persists the calibrated analysis envelope and timestamp.
func (r *PostgresRepository) SaveAnalysis(ctx context.Context, id string, envelope string, analyzedAt time.Time) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "articles", tracing.DBOperationUpdate)

	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET analysis = $2, analyzed_at = $3 WHERE id = $1`,
		id, envelope, analyzedAt)
	endSpan(err)
	if err != nil {
		return fmt.Errorf("failed to save analysis for article %s: %w", id, err)
	}
	return nil
}

// Stats returns the analysis aggregate across all articles.
func (r *PostgresRepository) Stats(ctx context.Context) (Stats, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "articles", tracing.DBOperationQuery)

	query := `
		SELECT COUNT(*) AS total,
		       COUNT(analyzed_at) AS analyzed
		FROM articles`

	var s Stats
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Analyzed)
	endSpan(err)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query article stats: %w", err)
	}
	s.Pending = s.Total - s.Analyzed
	if s.Total > 0 {
		s.PercentAnalyzed = float64(s.Analyzed) / float64(s.Total) * 100
	}
	return s, nil
}

// PostgresUserStore implements UserStore using PostgreSQL.
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore creates a new PostgresUserStore.
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// FindByID retrieves a user and their usage counters.
// Returns (nil, nil) when the user does not exist.
func (s *PostgresUserStore) FindByID(ctx context.Context, id string) (*quota.User, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)

	query := `
		SELECT id, plan, articles_analyzed, chat_messages, searches_performed
		FROM users
		WHERE id = $1`

	var u quota.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Plan,
		&u.UsageStats.ArticlesAnalyzed,
		&u.UsageStats.ChatMessages,
		&u.UsageStats.SearchesPerformed,
	)
	if err == sql.ErrNoRows {
		endSpan(nil)
		return nil, nil
	}
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	return &u, nil
}
