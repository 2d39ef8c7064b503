package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/HSouheill/barrim_matching/models"
)

// ListPolicies returns the active rank policies in ladder order.
func (e *Engine) ListPolicies(ctx context.Context) ([]models.MatchingPolicy, error) {
	policies, err := e.policies.ActivePolicies(ctx)
	if err != nil {
		return nil, computationFailed("list rank policies", err)
	}
	models.SortPolicies(policies)
	return policies, nil
}

// UpsertPolicy makes policy the single active configuration of its rank.
func (e *Engine) UpsertPolicy(ctx context.Context, policy *models.MatchingPolicy) (*models.MatchingPolicy, error) {
	policy.RankName = strings.TrimSpace(policy.RankName)
	if policy.RankName == "" {
		return nil, fmt.Errorf("%w: rank name is required", ErrInvalidPolicy)
	}
	if policy.MatchingDepth < 0 {
		return nil, fmt.Errorf("%w: matching depth must not be negative", ErrInvalidPolicy)
	}
	if policy.DisplayOrder <= 0 {
		return nil, fmt.Errorf("%w: display order must be positive", ErrInvalidPolicy)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	active, err := e.policies.ActivePolicies(ctx)
	if err != nil {
		return nil, computationFailed("list rank policies", err)
	}
	// Display orders are unique across active ranks so every rank is reachable
	// as someone's next rank.
	for _, p := range active {
		if p.RankName != policy.RankName && p.DisplayOrder == policy.DisplayOrder {
			return nil, fmt.Errorf("%w: display order %d is already used by rank %q",
				ErrInvalidPolicy, policy.DisplayOrder, p.RankName)
		}
	}

	now := e.now().UTC()
	policy.IsActive = true
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now

	if err := e.policies.ReplaceActivePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("save rank policy: %w", err)
	}
	return policy, nil
}
