package matching

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/models"
)

var (
	// ErrNotFound marks a missing member, rank or record.
	ErrNotFound = models.ErrNotFound
	// ErrDuplicatePosting marks a cycle that has already been paid.
	ErrDuplicatePosting = models.ErrDuplicatePosting
	// ErrComputationFailed wraps directory and ledger read failures.
	ErrComputationFailed = errors.New("matching bonus computation failed")
	// ErrInvalidCycle is returned for an empty or inverted cycle window.
	ErrInvalidCycle = errors.New("invalid cycle")
	// ErrInvalidPolicy is returned when a rank policy fails validation.
	ErrInvalidPolicy = errors.New("invalid matching policy")
)

// Directory is the read side of the membership tree.
type Directory interface {
	FindMember(ctx context.Context, id primitive.ObjectID) (*models.Member, error)
	// ChildrenOf returns the direct referrals of every id in parentIDs in one read.
	ChildrenOf(ctx context.Context, parentIDs []primitive.ObjectID) ([]models.Member, error)
	DirectReferralCount(ctx context.Context, id primitive.ObjectID) (int64, error)
	MemberIDsWithRanks(ctx context.Context, ranks []string) ([]primitive.ObjectID, error)
}

// Ledger is the read side of the shared commission ledger.
type Ledger interface {
	HasEventOfType(ctx context.Context, ownerID primitive.ObjectID, incomeType string) (bool, error)
	FindEvents(ctx context.Context, filter models.EventFilter) ([]models.CommissionEvent, error)
}

// PolicyStore holds the matching policy of every rank.
type PolicyStore interface {
	ActivePolicy(ctx context.Context, rank string) (*models.MatchingPolicy, error)
	ActivePolicies(ctx context.Context) ([]models.MatchingPolicy, error)
	ReplaceActivePolicy(ctx context.Context, policy *models.MatchingPolicy) error
}

// BonusStore persists matching bonus records together with their contribution details.
type BonusStore interface {
	FindMatchingBonus(ctx context.Context, ownerID primitive.ObjectID, cycleStart, cycleEnd time.Time) (*models.MatchingBonusRecord, error)
	// CreateMatchingBonus writes the record and its details atomically. When a
	// record already exists for the cycle it returns that record and ErrDuplicatePosting.
	CreateMatchingBonus(ctx context.Context, record *models.MatchingBonusRecord, details []models.ContributionDetail) (*models.MatchingBonusRecord, error)
	FindMatchingBonusByID(ctx context.Context, ownerID, recordID primitive.ObjectID) (*models.MatchingBonusRecord, error)
	ListMatchingBonuses(ctx context.Context, ownerID primitive.ObjectID, filter models.HistoryFilter) ([]models.MatchingBonusRecord, error)
	ContributionDetails(ctx context.Context, recordID primitive.ObjectID) ([]models.ContributionDetail, error)
	DetailCounts(ctx context.Context, recordIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error)
}

// Locker serializes postings for the same member and cycle across processes.
type Locker interface {
	// Acquire blocks until the lock is held or ctx is done.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Notifier is told about every newly posted matching bonus.
type Notifier interface {
	NotifyMatchingBonus(ctx context.Context, record *models.MatchingBonusRecord, detailsCount int) error
}
