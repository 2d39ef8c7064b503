package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MatchingBonusRecord is the ledger entry produced by a matching bonus posting.
// At most one exists per (OwnerID, CycleStart, CycleEnd).
type MatchingBonusRecord = CommissionEvent

// NewMatchingBonusRecord builds the pending ledger entry for a cycle payout.
func NewMatchingBonusRecord(ownerID primitive.ObjectID, amount decimal.Decimal, cycleStart, cycleEnd, now time.Time) *MatchingBonusRecord {
	start, end := cycleStart.UTC(), cycleEnd.UTC()
	return &MatchingBonusRecord{
		ID:         primitive.NewObjectID(),
		OwnerID:    ownerID,
		Type:       IncomeTypeMatching,
		Amount:     amount,
		Status:     IncomeStatusPending,
		Remarks:    fmt.Sprintf("Matching Bonus for cycle %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		CreatedAt:  now,
		CycleStart: &start,
		CycleEnd:   &end,
	}
}

// ContributionDetail is one audited source of a matching bonus: a single
// downline commission and the share of it credited to the upline member.
type ContributionDetail struct {
	ID                   primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	MatchingRecordID     primitive.ObjectID `json:"matchingRecordId" bson:"matchingRecordId"`
	OwnerID              primitive.ObjectID `json:"userId" bson:"userId"`
	DownlineUserID       primitive.ObjectID `json:"downlineUserId" bson:"downlineUserId"`
	DownlineLevel        int                `json:"downlineLevel" bson:"downlineLevel"`
	BaseCommissionID     primitive.ObjectID `json:"baseCommissionId" bson:"baseCommissionId"`
	BaseCommissionType   string             `json:"baseCommissionType" bson:"baseCommissionType"`
	BaseCommissionAmount decimal.Decimal    `json:"baseCommissionAmount" bson:"baseCommissionAmount"`
	MatchedPercentage    decimal.Decimal    `json:"matchedPercentage" bson:"matchedPercentage"`
	ContributionAmount   decimal.Decimal    `json:"contributionAmount" bson:"contributionAmount"`
	CommissionDate       time.Time          `json:"commissionDate" bson:"commissionDate"`
	CycleStart           time.Time          `json:"cycleStart" bson:"cycleStart"`
	CycleEnd             time.Time          `json:"cycleEnd" bson:"cycleEnd"`
	CreatedAt            time.Time          `json:"createdAt" bson:"createdAt"`
}

// HistoryFilter narrows the posted matching bonuses returned for a member.
type HistoryFilter struct {
	From   *time.Time
	To     *time.Time
	Status string
}
