package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/veridia/newstrust/internal/archive"
	"github.com/veridia/newstrust/internal/article"
	"github.com/veridia/newstrust/internal/scraper"
)

// MinReusableContentLength is the minimum stored content length that is
// trusted for analysis without refetching. Shorter stored bodies are
// treated as scrape residue (cookie walls, error pages) and refetched.
const MinReusableContentLength = 100

// Resolution is the outcome of content resolution. Length is 0 when the
// pipeline fell back to headline metadata, so downstream calibration
// treats the analysis as unsupported by evidence.
type Resolution struct {
	Text   string
	Length int
}

// ContentResolver produces the text an article is analyzed against,
// fetching and persisting the full body when the stored one is missing
// or too short to trust.
type ContentResolver struct {
	fetcher  scraper.Fetcher
	repo     article.Repository
	archiver archive.Archiver
	logger   *slog.Logger
}

// NewContentResolver creates a resolver. archiver may be nil when object
// storage is not configured.
func NewContentResolver(fetcher scraper.Fetcher, repo article.Repository, archiver archive.Archiver, logger *slog.Logger) *ContentResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentResolver{
		fetcher:  fetcher,
		repo:     repo,
		archiver: archiver,
		logger:   logger,
	}
}

// Resolve returns the analysis text for a. Stored content of at least
// MinReusableContentLength is reused as-is. Otherwise the article URL is
// fetched and the extracted text persisted and archived. Fetch and
// extraction failures degrade to a title+description fallback rather
// than failing the pipeline.
func (r *ContentResolver) Resolve(ctx context.Context, a *article.Article) Resolution {
	if a.Content != nil {
		if stored := strings.TrimSpace(*a.Content); len(stored) >= MinReusableContentLength {
			return Resolution{Text: stored, Length: len(stored)}
		}
	}

	text, err := r.fetcher.ScrapeURL(ctx, a.URL)
	if err != nil {
		r.logger.Warn("content fetch failed, falling back to metadata",
			"article_id", a.ID,
			"url", a.URL,
			"error", err,
		)
		return Resolution{Text: r.fallback(a), Length: 0}
	}

	if err := r.repo.SaveContent(ctx, a.ID, text); err != nil {
		r.logger.Error("failed to persist fetched content",
			"article_id", a.ID,
			"error", err,
		)
	} else {
		a.Content = &text
	}

	if r.archiver != nil {
		if err := r.archiver.PutArticleText(ctx, a.ID, text); err != nil {
			r.logger.Warn("failed to archive article text",
				"article_id", a.ID,
				"error", err,
			)
		}
	}

	return Resolution{Text: text, Length: len(text)}
}

func (r *ContentResolver) fallback(a *article.Article) string {
	if a.Description != "" {
		return a.Title + "\n\n" + a.Description
	}
	return a.Title
}
