// Package quota provides the per-user usage policy check applied before
// an analysis is allowed to proceed.
package quota

import (
	"errors"
	"fmt"
)

// Plan identifies a billing plan.
type Plan string

// Known plans. Unknown plans fall back to the free limits.
const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Resource identifies a quota-limited resource kind.
type Resource string

// Quota-limited resources.
const (
	ResourceAnalysis Resource = "analysis"
	ResourceChat     Resource = "chat"
	ResourceSearch   Resource = "search"
)

// ErrUnknownResource is returned when a resource kind has no limit entry.
var ErrUnknownResource = errors.New("unknown quota resource")

// Limits holds the per-billing-period ceilings for a plan.
type Limits struct {
	Analyses     int `koanf:"analyses"`
	ChatMessages int `koanf:"chat_messages"`
	Searches     int `koanf:"searches"`
}

// PlanLimits maps each plan to its limits. It is injected configuration,
// not module state, so limits are testable and environment-overridable.
type PlanLimits map[Plan]Limits

// DefaultPlanLimits returns the built-in limit table. Callers may replace
// any entry via configuration.
func DefaultPlanLimits() PlanLimits {
	return PlanLimits{
		PlanFree: {Analyses: 500, ChatMessages: 200, Searches: 500},
		PlanPro:  {Analyses: 5000, ChatMessages: 2000, Searches: 5000},
	}
}

// UsageStats holds a user's consumption counters for the current billing
// period. Counters are monotonically non-decreasing within a period and
// are reset only by an external scheduled job.
type UsageStats struct {
	ArticlesAnalyzed  int `json:"articles_analyzed"`
	ChatMessages      int `json:"chat_messages"`
	SearchesPerformed int `json:"searches_performed"`
}

// User is the minimal identity the guard needs: who, which plan, and how
// much they have already consumed.
type User struct {
	ID         string     `json:"id"`
	Plan       Plan       `json:"plan"`
	UsageStats UsageStats `json:"usage_stats"`
}

// ExceededError reports that a user has exhausted a resource quota. It
// carries the usage context for diagnostics and for the HTTP layer to
// surface.
type ExceededError struct {
	UserID       string
	Plan         Plan
	Resource     Resource
	CurrentUsage int
	Limit        int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for user %s: %s usage %d/%d on plan %s",
		e.UserID, e.Resource, e.CurrentUsage, e.Limit, e.Plan)
}

// Guard performs the stateless policy check. It never mutates counters;
// incrementing usage is an external collaborator's responsibility, which
// also means the check is read-then-decide: two concurrent requests near
// the limit can both pass before either increment lands. That margin is
// accepted for this soft quota.
type Guard struct {
	limits PlanLimits
}

// NewGuard creates a guard with the given limit table. A nil or empty
// table falls back to the defaults.
func NewGuard(limits PlanLimits) *Guard {
	if len(limits) == 0 {
		limits = DefaultPlanLimits()
	}
	return &Guard{limits: limits}
}

// Verify checks whether user may consume one unit of resource. A nil user
// is the explicit internal-caller bypass (batch jobs and other
// unauthenticated internal callers are always allowed); callers should
// log that the bypass was taken. Returns *ExceededError when the quota is
// exhausted.
func (g *Guard) Verify(user *User, resource Resource) error {
	if g == nil || user == nil {
		return nil
	}

	limits, ok := g.limits[user.Plan]
	if !ok {
		limits = g.limits[PlanFree]
	}

	var usage, limit int
	switch resource {
	case ResourceAnalysis:
		usage, limit = user.UsageStats.ArticlesAnalyzed, limits.Analyses
	case ResourceChat:
		usage, limit = user.UsageStats.ChatMessages, limits.ChatMessages
	case ResourceSearch:
		usage, limit = user.UsageStats.SearchesPerformed, limits.Searches
	default:
		return fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	if usage >= limit {
		return &ExceededError{
			UserID:       user.ID,
			Plan:         user.Plan,
			Resource:     resource,
			CurrentUsage: usage,
			Limit:        limit,
		}
	}
	return nil
}
