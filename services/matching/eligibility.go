package matching

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/models"
)

// Eligibility is the verdict on whether a member currently earns a matching
// bonus. It is recomputed on every call.
type Eligibility struct {
	Eligible             bool                    `json:"eligible"`
	Reason               string                  `json:"reason,omitempty"`
	CurrentRank          string                  `json:"currentRank,omitempty"`
	MatchingDepth        int                     `json:"matchingDepth"`
	MatchingPercentages  models.LevelPercentages `json:"matchingPercentages"`
	HasDirectSale        *bool                   `json:"hasDirectSale,omitempty"`
	DirectReferralsCount *int64                  `json:"directReferralsCount,omitempty"`
	Required             int                     `json:"required,omitempty"`
}

// Evaluate decides whether memberID is eligible for a matching bonus under the
// active policy of the member's rank. A missing member is ineligible, not an error.
func (e *Engine) Evaluate(ctx context.Context, memberID primitive.ObjectID) (Eligibility, error) {
	member, err := e.directory.FindMember(ctx, memberID)
	if errors.Is(err, ErrNotFound) {
		return Eligibility{Eligible: false, Reason: "member not found", MatchingPercentages: models.LevelPercentages{}}, nil
	}
	if err != nil {
		return Eligibility{}, computationFailed("find member", err)
	}

	rank := member.CurrentRank()
	policy, levels, err := e.policyFor(ctx, rank)
	if err != nil {
		return Eligibility{}, err
	}

	verdict := Eligibility{
		CurrentRank:         rank,
		MatchingDepth:       policy.MatchingDepth,
		MatchingPercentages: models.LevelPercentages{},
	}

	if policy.MatchingDepth == 0 {
		verdict.Reason = "rank does not qualify for matching bonus"
		return verdict, nil
	}

	if policy.RequiresDirectSale {
		ok, err := e.ledger.HasEventOfType(ctx, memberID, models.IncomeTypeDirectSalesCommission)
		if err != nil {
			return Eligibility{}, computationFailed("check direct sale", err)
		}
		if !ok {
			verdict.Reason = "requires at least one direct sale"
			verdict.HasDirectSale = &ok
			return verdict, nil
		}
	}

	if policy.MinPersonallySponsored > 0 {
		count, err := e.directory.DirectReferralCount(ctx, memberID)
		if err != nil {
			return Eligibility{}, computationFailed("count direct referrals", err)
		}
		if count < int64(policy.MinPersonallySponsored) {
			verdict.Reason = fmt.Sprintf("requires %d personally sponsored agents", policy.MinPersonallySponsored)
			verdict.DirectReferralsCount = &count
			verdict.Required = policy.MinPersonallySponsored
			return verdict, nil
		}
	}

	verdict.Eligible = true
	verdict.MatchingPercentages = levels
	return verdict, nil
}

// policyFor loads the active policy for rank, synthesizing a zero-depth policy
// when the rank has none.
func (e *Engine) policyFor(ctx context.Context, rank string) (*models.MatchingPolicy, models.LevelPercentages, error) {
	policy, err := e.policies.ActivePolicy(ctx, rank)
	if errors.Is(err, ErrNotFound) {
		policy = models.ZeroDepthPolicy(rank)
	} else if err != nil {
		return nil, nil, computationFailed("load rank policy", err)
	}
	if policy.MatchingDepth < 0 {
		policy.MatchingDepth = 0
	}
	levels, err := policy.Levels()
	if err != nil {
		return nil, nil, computationFailed("load rank policy", err)
	}
	return policy, levels, nil
}
