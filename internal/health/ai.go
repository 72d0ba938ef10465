package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Checker is the contract health endpoints aggregate over.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// AIChecker verifies the AI provider endpoint is reachable. It does not
// invoke a model; an HTTP response of any status below 500 counts as
// healthy, since auth failures still prove the provider is up.
type AIChecker struct {
	endpoint   string
	httpClient *http.Client
}

// NewAIChecker creates a new AI provider health checker.
func NewAIChecker(endpoint string) *AIChecker {
	return &AIChecker{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// HealthCheck performs a reachability check on the AI provider.
func (a *AIChecker) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("ai provider returned status %d", resp.StatusCode)
	}
	return nil
}
