// Package article provides the article data model and repositories.
package article

import "time"

// Article is a news article as ingestion created it. The analysis
// pipeline is the only writer of Content (once, via content resolution)
// and Analysis/AnalyzedAt (once per analysis request); everything else is
// owned by ingestion.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Source      string     `json:"source"`
	Language    string     `json:"language"`
	Description string     `json:"description"`
	PublishedAt time.Time  `json:"published_at"`
	Content     *string    `json:"content,omitempty"`
	Analysis    *string    `json:"analysis,omitempty"` // versioned envelope JSON
	AnalyzedAt  *time.Time `json:"analyzed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Analyzed reports whether the article has ever been analyzed.
func (a *Article) Analyzed() bool {
	return a.AnalyzedAt != nil
}

// ContentLength returns the length of the stored content, 0 when absent.
func (a *Article) ContentLength() int {
	if a.Content == nil {
		return 0
	}
	return len(*a.Content)
}

// Stats is the read-only aggregate over the article corpus.
type Stats struct {
	Total           int     `json:"total"`
	Analyzed        int     `json:"analyzed"`
	Pending         int     `json:"pending"`
	PercentAnalyzed float64 `json:"percent_analyzed"`
}
