package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var hundred = decimal.NewFromInt(100)

// MatchingPolicy is the matching bonus configuration of a rank. Only one
// active policy exists per rank name.
type MatchingPolicy struct {
	ID                     primitive.ObjectID         `json:"id,omitempty" bson:"_id,omitempty"`
	RankName               string                     `json:"rankName" bson:"rankName" validate:"required"`
	MatchingDepth          int                        `json:"matchingDepth" bson:"matchingDepth" validate:"gte=0,lte=20"`
	MatchingPercentages    map[string]decimal.Decimal `json:"matchingPercentages" bson:"matchingPercentages"`
	RequiresDirectSale     bool                       `json:"requiresDirectSale" bson:"requiresDirectSale"`
	MinPersonallySponsored int                        `json:"minPersonallySponsored" bson:"minPersonallySponsored" validate:"gte=0"`
	RequiresActiveLegs     bool                       `json:"requiresActiveLegs" bson:"requiresActiveLegs"`
	DisplayOrder           int                        `json:"displayOrder" bson:"displayOrder" validate:"gt=0"`
	IsActive               bool                       `json:"isActive" bson:"isActive"`
	CreatedAt              time.Time                  `json:"createdAt" bson:"createdAt"`
	UpdatedAt              time.Time                  `json:"updatedAt" bson:"updatedAt"`
}

// ZeroDepthPolicy is used for ranks without an active configuration.
func ZeroDepthPolicy(rank string) *MatchingPolicy {
	if rank == "" {
		rank = DefaultRank
	}
	return &MatchingPolicy{
		RankName:            rank,
		MatchingPercentages: map[string]decimal.Decimal{},
	}
}

// Levels loads the percentage map into a bounded per-level table. Levels
// outside [1, MatchingDepth] are dropped; keys that are not integers are an error.
func (p *MatchingPolicy) Levels() (LevelPercentages, error) {
	byLevel := make(map[int]decimal.Decimal, len(p.MatchingPercentages))
	for key, pct := range p.MatchingPercentages {
		level, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("rank %q: invalid level key %q", p.RankName, key)
		}
		byLevel[level] = pct
	}
	return NewLevelPercentages(p.MatchingDepth, byLevel), nil
}

// Validate checks the rules the struct tags cannot express.
func (p *MatchingPolicy) Validate() error {
	for key, pct := range p.MatchingPercentages {
		level, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("level key %q is not a number", key)
		}
		if level < 1 || level > p.MatchingDepth {
			return fmt.Errorf("level %d is outside matching depth %d", level, p.MatchingDepth)
		}
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return fmt.Errorf("level %d percentage %s must be between 0 and 100", level, pct)
		}
	}
	return nil
}

// LevelPercentages holds the matched percentage of each downline level.
// Index i is level i+1; the length is the matching depth.
type LevelPercentages []decimal.Decimal

// NewLevelPercentages builds the table for the given depth, ignoring levels
// that fall outside it.
func NewLevelPercentages(depth int, byLevel map[int]decimal.Decimal) LevelPercentages {
	if depth <= 0 {
		return LevelPercentages{}
	}
	lp := make(LevelPercentages, depth)
	for i := range lp {
		lp[i] = decimal.Zero
	}
	for level, pct := range byLevel {
		if level >= 1 && level <= depth {
			lp[level-1] = pct
		}
	}
	return lp
}

// At returns the percentage for level, zero when the level is not configured.
func (lp LevelPercentages) At(level int) decimal.Decimal {
	if level < 1 || level > len(lp) {
		return decimal.Zero
	}
	return lp[level-1]
}

// Depth is the deepest level the table covers.
func (lp LevelPercentages) Depth() int {
	return len(lp)
}

// MarshalJSON renders the table as {"level": percent}, omitting zero levels.
func (lp LevelPercentages) MarshalJSON() ([]byte, error) {
	out := make(map[string]decimal.Decimal, len(lp))
	for i, pct := range lp {
		if pct.IsPositive() {
			out[strconv.Itoa(i+1)] = pct
		}
	}
	return json.Marshal(out)
}

// SortPolicies orders policies along the rank ladder.
func SortPolicies(policies []MatchingPolicy) {
	sort.SliceStable(policies, func(i, j int) bool {
		return policies[i].DisplayOrder < policies[j].DisplayOrder
	})
}
