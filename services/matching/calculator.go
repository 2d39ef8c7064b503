package matching

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/models"
)

var hundred = decimal.NewFromInt(100)

// Calculation is the outcome of a matching bonus computation for one cycle.
// Success is false when the member is not eligible; that is not an error.
type Calculation struct {
	Success                 bool                        `json:"success"`
	CycleStart              time.Time                   `json:"cycleStart"`
	CycleEnd                time.Time                   `json:"cycleEnd"`
	TotalMatchingBonus      decimal.Decimal             `json:"totalMatchingBonus"`
	Details                 []models.ContributionDetail `json:"details"`
	DownlineCount           int                         `json:"downlineCount"`
	MatchedCommissionsCount int                         `json:"matchedCommissionsCount"`
	Eligibility             Eligibility                 `json:"eligibility"`
}

// Contribution is amount * percentage / 100 rounded to cents, half away from zero.
func Contribution(amount, percentage decimal.Decimal) decimal.Decimal {
	return amount.Mul(percentage).Div(hundred).Round(2)
}

// Calculate computes the matching bonus memberID earned over the inclusive
// window [cycleStart, cycleEnd]. Each contribution is rounded to cents and the
// total is the sum of the rounded contributions.
func (e *Engine) Calculate(ctx context.Context, memberID primitive.ObjectID, cycleStart, cycleEnd time.Time) (*Calculation, error) {
	start, end, err := normalizeCycle(cycleStart, cycleEnd)
	if err != nil {
		return nil, err
	}

	eligibility, err := e.Evaluate(ctx, memberID)
	if err != nil {
		return nil, err
	}

	calc := &Calculation{
		CycleStart:         start,
		CycleEnd:           end,
		TotalMatchingBonus: decimal.Zero,
		Details:            []models.ContributionDetail{},
		Eligibility:        eligibility,
	}
	if !eligibility.Eligible {
		return calc, nil
	}
	calc.Success = true

	downline, err := e.Enumerate(ctx, memberID, eligibility.MatchingDepth)
	if err != nil {
		return nil, err
	}
	calc.DownlineCount = len(downline)
	if len(downline) == 0 {
		return calc, nil
	}

	levelOf := make(map[primitive.ObjectID]int, len(downline))
	ownerIDs := make([]primitive.ObjectID, 0, len(downline))
	for _, entry := range downline {
		levelOf[entry.UserID] = entry.Level
		ownerIDs = append(ownerIDs, entry.UserID)
	}

	events, err := e.ledger.FindEvents(ctx, models.EventFilter{
		OwnerIDs: ownerIDs,
		Types:    e.matchedTypes,
		Statuses: models.MatchableStatuses,
		From:     start,
		To:       end,
	})
	if err != nil {
		return nil, computationFailed("find downline commissions", err)
	}

	for _, event := range events {
		level, ok := levelOf[event.OwnerID]
		if !ok {
			continue
		}
		pct := eligibility.MatchingPercentages.At(level)
		if !pct.IsPositive() {
			continue
		}
		contribution := Contribution(event.Amount, pct)
		calc.Details = append(calc.Details, models.ContributionDetail{
			OwnerID:              memberID,
			DownlineUserID:       event.OwnerID,
			DownlineLevel:        level,
			BaseCommissionID:     event.ID,
			BaseCommissionType:   event.Type,
			BaseCommissionAmount: event.Amount,
			MatchedPercentage:    pct,
			ContributionAmount:   contribution,
			CommissionDate:       event.CreatedAt,
			CycleStart:           start,
			CycleEnd:             end,
		})
		calc.TotalMatchingBonus = calc.TotalMatchingBonus.Add(contribution)
	}

	sortContributions(calc.Details)
	calc.MatchedCommissionsCount = len(calc.Details)
	return calc, nil
}

func sortContributions(details []models.ContributionDetail) {
	sort.SliceStable(details, func(i, j int) bool {
		a, b := details[i], details[j]
		if a.DownlineLevel != b.DownlineLevel {
			return a.DownlineLevel < b.DownlineLevel
		}
		if !a.CommissionDate.Equal(b.CommissionDate) {
			return a.CommissionDate.Before(b.CommissionDate)
		}
		return bytes.Compare(a.BaseCommissionID[:], b.BaseCommissionID[:]) < 0
	})
}
