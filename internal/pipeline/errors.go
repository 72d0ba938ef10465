package pipeline

import "fmt"

// ValidationError reports malformed request input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ExternalAPIError wraps a failure from an upstream service (the AI
// provider, a scrape target) with a retryability classification so
// callers can decide whether to back off and retry.
type ExternalAPIError struct {
	Service   string
	Retryable bool
	Err       error
}

func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *ExternalAPIError) Unwrap() error {
	return e.Err
}
