package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Income types posted to the commission ledger.
const (
	IncomeTypeLevelCommission       = "LEVEL_COMMISSION"
	IncomeTypeLevelBonus            = "LEVEL_BONUS"
	IncomeTypeDirectSalesCommission = "DIRECT_SALES_COMMISSION"
	IncomeTypeReferral              = "REFERRAL"
	IncomeTypeDirectBonus           = "DIRECT_BONUS"
	IncomeTypeBinary                = "BINARY"
	IncomeTypeMatching              = "MATCHING"
	IncomeTypeRankBonus             = "RANK_BONUS"
)

// Income statuses.
const (
	IncomeStatusPending   = "PENDING"
	IncomeStatusApproved  = "APPROVED"
	IncomeStatusPaid      = "PAID"
	IncomeStatusCancelled = "CANCELLED"
	IncomeStatusRejected  = "REJECTED"
)

// DefaultMatchedTypes are the income types a matching bonus is computed from.
var DefaultMatchedTypes = []string{IncomeTypeBinary, IncomeTypeLevelCommission, IncomeTypeDirectBonus}

// MatchableStatuses are the statuses of ledger entries that count toward a matching bonus.
var MatchableStatuses = []string{IncomeStatusApproved, IncomeStatusPaid}

// CommissionEvent is one entry of the shared commission ledger ("incomes").
// Entries are never updated by the matching engine.
type CommissionEvent struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID     primitive.ObjectID `json:"userId" bson:"userId"`
	Type        string             `json:"incomeType" bson:"incomeType"`
	Amount      decimal.Decimal    `json:"amount" bson:"amount"`
	Status      string             `json:"status" bson:"status"`
	IsWithdrawn bool               `json:"isWithdrawn" bson:"isWithdrawn"`
	Remarks     string             `json:"remarks,omitempty" bson:"remarks,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`

	// Only set on MATCHING entries.
	CycleStart *time.Time `json:"cycleStart,omitempty" bson:"cycleStart,omitempty"`
	CycleEnd   *time.Time `json:"cycleEnd,omitempty" bson:"cycleEnd,omitempty"`
}

// Payable reports whether the entry can currently be withdrawn.
func (e *CommissionEvent) Payable() bool {
	return e.Status == IncomeStatusApproved && !e.IsWithdrawn
}

// EventFilter selects ledger entries for a matching calculation.
// The date range is inclusive on both ends.
type EventFilter struct {
	OwnerIDs []primitive.ObjectID
	Types    []string
	Statuses []string
	From     time.Time
	To       time.Time
}
