// Package pipeline coordinates the analysis of a single article: quota
// verification, content resolution, AI invocation, calibration, and
// persistence. Calibration runs on every path that returns an analysis,
// including cached ones, so stored records are re-checked under the rule
// set active at read time.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/veridia/newstrust/internal/ai"
	"github.com/veridia/newstrust/internal/analysis"
	"github.com/veridia/newstrust/internal/article"
	"github.com/veridia/newstrust/internal/events"
	"github.com/veridia/newstrust/internal/quota"
)

// AnalyzeRequest asks for a trust profile of one article. User is nil for
// internal callers (batch jobs), which bypasses quota enforcement. Mode
// is advisory: the pipeline may downgrade it based on resolved content.
type AnalyzeRequest struct {
	ArticleID string
	User      *quota.User
	Mode      analysis.Mode
}

// Result is the outcome of a single analysis. ContentLength is the
// length the calibration ran against, which is 0 when the pipeline fell
// back to headline metadata.
type Result struct {
	ArticleID     string                      `json:"article_id"`
	Summary       string                      `json:"summary"`
	BiasScore     float64                     `json:"bias_score"`
	Analysis      analysis.CalibratedAnalysis `json:"analysis"`
	Mode          analysis.Mode               `json:"mode"`
	ContentLength int                         `json:"content_length"`
	Cached        bool                        `json:"cached"`
}

// Orchestrator runs the analysis pipeline for individual articles.
type Orchestrator struct {
	repo        article.Repository
	guard       *quota.Guard
	resolver    *ContentResolver
	analyzer    ai.Analyzer
	engine      *analysis.Engine
	metrics     *analysis.Metrics
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

// OrchestratorConfig collects the orchestrator's dependencies. Guard,
// Metrics, and Broadcaster are optional; Logger defaults to
// slog.Default().
type OrchestratorConfig struct {
	Repo        article.Repository
	Guard       *quota.Guard
	Resolver    *ContentResolver
	Analyzer    ai.Analyzer
	Engine      *analysis.Engine
	Metrics     *analysis.Metrics
	Broadcaster *events.Broadcaster
	Logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator from its dependencies.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := cfg.Engine
	if engine == nil {
		engine = analysis.NewEngine(cfg.Metrics)
	}
	return &Orchestrator{
		repo:        cfg.Repo,
		guard:       cfg.Guard,
		resolver:    cfg.Resolver,
		analyzer:    cfg.Analyzer,
		engine:      engine,
		metrics:     cfg.Metrics,
		broadcaster: cfg.Broadcaster,
		logger:      logger,
	}
}

// Analyze produces a calibrated trust profile for one article. A usable
// stored analysis is recalibrated and returned without invoking the AI;
// everything else takes the full path: resolve content, select the
// invocation mode, invoke the analyzer, calibrate, persist.
func (o *Orchestrator) Analyze(ctx context.Context, req AnalyzeRequest) (*Result, error) {
	if strings.TrimSpace(req.ArticleID) == "" {
		return nil, &ValidationError{Field: "article_id", Reason: "must not be empty"}
	}
	switch req.Mode {
	case "", analysis.ModeLowCost, analysis.ModeModerate:
	default:
		return nil, &ValidationError{Field: "mode", Reason: "must be low_cost or moderate"}
	}

	if req.User == nil {
		o.logger.Debug("quota bypass for internal caller", "article_id", req.ArticleID)
	}
	if err := o.guard.Verify(req.User, quota.ResourceAnalysis); err != nil {
		return nil, err
	}

	a, err := o.repo.FindByID(ctx, req.ArticleID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &NotFoundError{Entity: "article", ID: req.ArticleID}
	}

	if a.Analysis != nil {
		if res, ok := o.fromCache(a, req.Mode); ok {
			return res, nil
		}
	}

	return o.analyzeFresh(ctx, a, req.Mode)
}

// fromCache recalibrates a stored analysis. A stale or corrupt envelope
// reports false so the caller runs the full pipeline.
func (o *Orchestrator) fromCache(a *article.Article, requested analysis.Mode) (*Result, bool) {
	env, err := analysis.DecodeEnvelope(*a.Analysis)
	if err != nil {
		if errors.Is(err, analysis.ErrStaleEnvelope) {
			o.logger.Warn("stored analysis envelope unusable, reanalyzing",
				"article_id", a.ID,
			)
			o.metrics.IncStaleEnvelope()
		}
		return nil, false
	}

	mode := o.selectMode(requested, env.ContentLength)
	var text string
	if a.Content != nil {
		text = *a.Content
	}
	calibrated := o.engine.Calibrate(analysis.RawAnalysis(env.Analysis), text, env.ContentLength, mode)

	o.logger.Debug("served recalibrated stored analysis",
		"article_id", a.ID,
		"mode", mode,
		"content_length", env.ContentLength,
	)
	return &Result{
		ArticleID:     a.ID,
		Summary:       calibrated.Summary,
		BiasScore:     calibrated.BiasScore,
		Analysis:      calibrated,
		Mode:          mode,
		ContentLength: env.ContentLength,
		Cached:        true,
	}, true
}

func (o *Orchestrator) analyzeFresh(ctx context.Context, a *article.Article, requested analysis.Mode) (*Result, error) {
	res := o.resolver.Resolve(ctx, a)
	mode := o.selectMode(requested, res.Length)

	raw, err := o.analyzer.AnalyzeArticle(ctx, ai.AnalyzeRequest{
		Title:    a.Title,
		Content:  res.Text,
		Source:   a.Source,
		Language: a.Language,
		Mode:     mode,
	})
	if err != nil {
		apiErr := &ExternalAPIError{
			Service:   "ai-analyzer",
			Retryable: ai.Retryable(err),
			Err:       err,
		}
		o.broadcaster.Broadcast(events.AnalysisEvent{
			Type:      events.TypeAnalysisFailed,
			ArticleID: a.ID,
			Mode:      string(mode),
			Error:     apiErr.Error(),
		})
		return nil, apiErr
	}

	calibrated := o.engine.Calibrate(*raw, res.Text, res.Length, mode)

	now := time.Now().UTC()
	envelope, err := analysis.EncodeEnvelope(analysis.Envelope{
		Analysis:      calibrated,
		ContentLength: res.Length,
		Mode:          mode,
		CalibratedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	if err := o.repo.SaveAnalysis(ctx, a.ID, envelope, now); err != nil {
		return nil, err
	}

	o.logger.Info("article analyzed",
		"article_id", a.ID,
		"mode", mode,
		"content_length", res.Length,
		"reliability_score", calibrated.ReliabilityScore,
	)
	o.broadcaster.Broadcast(events.AnalysisEvent{
		Type:          events.TypeAnalysisCompleted,
		ArticleID:     a.ID,
		Mode:          string(mode),
		ContentLength: res.Length,
	})

	return &Result{
		ArticleID:     a.ID,
		Summary:       calibrated.Summary,
		BiasScore:     calibrated.BiasScore,
		Analysis:      calibrated,
		Mode:          mode,
		ContentLength: res.Length,
	}, nil
}

// selectMode applies the length gate and records a downgrade when the
// caller asked for more than the content supports.
func (o *Orchestrator) selectMode(requested analysis.Mode, length int) analysis.Mode {
	mode := analysis.SelectMode(requested, length)
	if requested == analysis.ModeModerate && mode != analysis.ModeModerate {
		o.metrics.IncModeDowngrade()
	}
	return mode
}
