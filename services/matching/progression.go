package matching

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/models"
)

// RankRequirements are the gates of a rank, for progress display.
type RankRequirements struct {
	MinPersonallySponsored int  `json:"minPersonallySponsored"`
	RequiresDirectSale     bool `json:"requiresDirectSale"`
	RequiresActiveLegs     bool `json:"requiresActiveLegs"`
}

// NextRank describes the rank above the current one on the ladder.
type NextRank struct {
	HasNext              bool              `json:"hasNext"`
	Message              string            `json:"message,omitempty"`
	CurrentRank          string            `json:"currentRank,omitempty"`
	CurrentMatchingDepth int               `json:"currentMatchingDepth"`
	NextRank             string            `json:"nextRank,omitempty"`
	NextMatchingDepth    int               `json:"nextMatchingDepth,omitempty"`
	Requirements         *RankRequirements `json:"requirements,omitempty"`
}

// NextRankRequirements finds the active policy with the smallest display order
// above currentRank's. An unknown rank is treated as the bottom of the ladder.
func (e *Engine) NextRankRequirements(ctx context.Context, currentRank string) (*NextRank, error) {
	policies, err := e.policies.ActivePolicies(ctx)
	if err != nil {
		return nil, computationFailed("list rank policies", err)
	}
	models.SortPolicies(policies)

	currentOrder, currentDepth := 0, 0
	for _, p := range policies {
		if p.RankName == currentRank {
			currentOrder, currentDepth = p.DisplayOrder, p.MatchingDepth
			break
		}
	}

	for _, p := range policies {
		if p.DisplayOrder <= currentOrder {
			continue
		}
		return &NextRank{
			HasNext:              true,
			CurrentRank:          currentRank,
			CurrentMatchingDepth: currentDepth,
			NextRank:             p.RankName,
			NextMatchingDepth:    p.MatchingDepth,
			Requirements: &RankRequirements{
				MinPersonallySponsored: p.MinPersonallySponsored,
				RequiresDirectSale:     p.RequiresDirectSale,
				RequiresActiveLegs:     p.RequiresActiveLegs,
			},
		}, nil
	}

	return &NextRank{
		HasNext:              false,
		Message:              "You have reached the highest rank",
		CurrentRank:          currentRank,
		CurrentMatchingDepth: currentDepth,
	}, nil
}

// Progress is the member's standing against a next-rank requirement.
type Progress struct {
	Current  int64 `json:"current"`
	Required int   `json:"required"`
}

// Overview combines a member's eligibility with progress to the next rank.
type Overview struct {
	Eligibility
	DirectReferralsCount int64     `json:"directReferralsCount"`
	Next                 *NextRank `json:"nextRank,omitempty"`
	DirectReferrals      *Progress `json:"directReferralsProgress,omitempty"`
}

// EligibilityOverview evaluates memberID and reports progress toward the next rank.
func (e *Engine) EligibilityOverview(ctx context.Context, memberID primitive.ObjectID) (*Overview, error) {
	eligibility, err := e.Evaluate(ctx, memberID)
	if err != nil {
		return nil, err
	}

	count, err := e.directory.DirectReferralCount(ctx, memberID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, computationFailed("count direct referrals", err)
	}

	overview := &Overview{Eligibility: eligibility, DirectReferralsCount: count}
	if eligibility.CurrentRank == "" {
		return overview, nil
	}

	next, err := e.NextRankRequirements(ctx, eligibility.CurrentRank)
	if err != nil {
		return nil, err
	}
	if next.HasNext {
		overview.Next = next
		overview.DirectReferrals = &Progress{Current: count, Required: next.Requirements.MinPersonallySponsored}
	}
	return overview, nil
}
