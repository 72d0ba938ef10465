// Package ai provides the client for the external AI analyzer. It speaks
// to an OpenAI-compatible chat-completions endpoint and returns a fully
// typed RawAnalysis; malformed model output is surfaced as a typed error
// here so the calibration engine never sees untyped JSON.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/veridia/newstrust/internal/analysis"
	"github.com/veridia/newstrust/internal/tracing"
)

// DefaultTimeout bounds a single analyzer invocation.
const DefaultTimeout = 60 * time.Second

// maxErrorBody bounds how much of an error response is read for the
// error message.
const maxErrorBody = 1024

// ErrMalformedResponse is returned when the model's output cannot be
// parsed into a RawAnalysis. It is not retryable by classification but a
// caller may choose to re-invoke.
var ErrMalformedResponse = errors.New("ai: malformed analysis response")

// APIError is an error response from the AI provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ai: provider returned %d: %s", e.StatusCode, e.Message)
}

// Retryable classifies an analyzer error. Rate limiting, provider-side
// failures and network timeouts are transient; everything else
// (auth, bad request, safety policy, malformed output) is not. Retry
// orchestration itself belongs to the caller's client policy, not here.
func Retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// Config holds the analyzer client configuration.
type Config struct {
	Endpoint      string
	APIKey        string
	LowCostModel  string
	ModerateModel string
	Timeout       time.Duration
}

// AnalyzeRequest carries the article fields the analyzer needs.
type AnalyzeRequest struct {
	Title    string
	Content  string
	Source   string
	Language string
	Mode     analysis.Mode
}

// Analyzer is the contract the pipeline consumes.
type Analyzer interface {
	AnalyzeArticle(ctx context.Context, req AnalyzeRequest) (*analysis.RawAnalysis, error)
}

// Client implements Analyzer against an OpenAI-compatible API.
type Client struct {
	config     Config
	httpClient *http.Client
}

var _ Analyzer = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

const systemPrompt = `Eres un analista de confiabilidad de noticias. Devuelve exclusivamente un objeto JSON con los campos: summary, bias_raw, bias_score, bias_score_normalized, bias_indicators, bias_type, clickbait_score, reliability_score, traceability_score, sentiment, main_topics, fact_check {claims, verdict, reasoning}, factuality_status, evidence_needed, should_escalate, article_leaning, bias_leaning, bias_comment, reliability_comment. No incluyas texto fuera del JSON.`

// chat wire types for the OpenAI-compatible endpoint.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// AnalyzeArticle invokes the model once and parses its output. Any error
// here means no trust profile can be produced for the request: there is
// no local fallback.
func (c *Client) AnalyzeArticle(ctx context.Context, req AnalyzeRequest) (*analysis.RawAnalysis, error) {
	if c.config.Endpoint == "" || c.config.APIKey == "" {
		return nil, fmt.Errorf("ai: client misconfigured")
	}

	ctx, endSpan := tracing.StartExternalSpan(ctx, "ai-analyzer", "analyze_article")
	raw, err := c.analyzeArticle(ctx, req)
	endSpan(err)
	return raw, err
}

func (c *Client) analyzeArticle(ctx context.Context, req AnalyzeRequest) (*analysis.RawAnalysis, error) {
	model := c.config.LowCostModel
	if req.Mode == analysis.ModeModerate {
		model = c.config.ModerateModel
	}

	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ai: invoke analyzer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	return parseAnalysis(chat.Choices[0].Message.Content)
}

// parseAnalysis decodes the model's message content into a RawAnalysis,
// tolerating a markdown code fence around the JSON.
func parseAnalysis(content string) (*analysis.RawAnalysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw analysis.RawAnalysis
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &raw, nil
}

func buildUserPrompt(req AnalyzeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Titulo: %s\n", req.Title)
	fmt.Fprintf(&b, "Fuente: %s\n", req.Source)
	fmt.Fprintf(&b, "Idioma: %s\n", req.Language)
	fmt.Fprintf(&b, "Modo: %s\n\n", req.Mode)
	b.WriteString(req.Content)
	return b.String()
}
