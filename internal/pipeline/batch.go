package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/veridia/newstrust/internal/article"
	"github.com/veridia/newstrust/internal/jobs"
)

// Batch size bounds. Requests outside [MinBatchLimit, MaxBatchLimit] are
// rejected before any storage access.
const (
	MinBatchLimit = 1
	MaxBatchLimit = 100
)

// BatchItem is the per-article outcome of a batch run.
type BatchItem struct {
	ArticleID string  `json:"article_id"`
	Result    *Result `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// BatchResult summarizes one batch run. Processed is always
// Successful+Failed; a batch with failures still reports the successes.
type BatchResult struct {
	Processed  int         `json:"processed"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Items      []BatchItem `json:"items"`
}

// BatchRunner analyzes pending articles sequentially. Sequential
// processing keeps the AI provider load predictable and makes
// per-article failures independent.
type BatchRunner struct {
	repo         article.Repository
	orchestrator *Orchestrator
	metrics      *jobs.Metrics
	logger       *slog.Logger
}

// NewBatchRunner creates a batch runner. metrics may be nil.
func NewBatchRunner(repo article.Repository, orchestrator *Orchestrator, metrics *jobs.Metrics, logger *slog.Logger) *BatchRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRunner{
		repo:         repo,
		orchestrator: orchestrator,
		metrics:      metrics,
		logger:       logger,
	}
}

// Run analyzes up to limit unanalyzed articles, oldest published first.
// Each article goes through the full pipeline as an internal caller (no
// quota). A failing article is recorded and the batch continues; only an
// invalid limit or a storage error fetching the worklist fails the run.
func (b *BatchRunner) Run(ctx context.Context, limit int) (*BatchResult, error) {
	if limit < MinBatchLimit || limit > MaxBatchLimit {
		return nil, &ValidationError{Field: "limit", Reason: "must be between 1 and 100"}
	}

	start := time.Now()
	pending, err := b.repo.FindUnanalyzed(ctx, limit)
	if err != nil {
		b.metrics.IncJobsTotal(jobs.JobTypeBatchAnalysis, jobs.StatusFailure)
		b.metrics.IncJobErrors(jobs.JobTypeBatchAnalysis, "database_error")
		return nil, err
	}

	result := &BatchResult{Items: make([]BatchItem, 0, len(pending))}
	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := BatchItem{ArticleID: a.ID}
		res, err := b.orchestrator.Analyze(ctx, AnalyzeRequest{ArticleID: a.ID})
		if err != nil {
			item.Error = err.Error()
			result.Failed++
			b.logger.Warn("batch article analysis failed",
				"article_id", a.ID,
				"error", err,
			)
		} else {
			item.Result = res
			result.Successful++
		}
		result.Processed++
		result.Items = append(result.Items, item)
	}

	status := jobs.StatusSuccess
	if result.Failed > 0 && result.Successful == 0 && result.Processed > 0 {
		status = jobs.StatusFailure
	}
	b.metrics.IncJobsTotal(jobs.JobTypeBatchAnalysis, status)
	b.metrics.ObserveJobDuration(jobs.JobTypeBatchAnalysis, time.Since(start).Seconds())

	b.logger.Info("batch analysis finished",
		"requested", limit,
		"processed", result.Processed,
		"successful", result.Successful,
		"failed", result.Failed,
		"duration", time.Since(start),
	)
	return result, nil
}
