package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/models"
)

const releaseTimeout = 5 * time.Second

// PostResult summarizes a posting attempt. Duplicate is set when the cycle had
// already been posted and the existing record is being reported.
type PostResult struct {
	Success          bool                `json:"success"`
	Duplicate        bool                `json:"duplicate,omitempty"`
	Message          string              `json:"message"`
	MatchingRecordID *primitive.ObjectID `json:"matchingRecordId,omitempty"`
	Amount           *decimal.Decimal    `json:"amount,omitempty"`
	DetailsCount     int                 `json:"detailsCount,omitempty"`
}

// PostMatchingBonus calculates the member's matching bonus for the cycle and
// writes it to the ledger as a pending MATCHING entry with its contribution
// details. At most one record is ever written per member and cycle; repeated
// calls return the summary of the existing record.
func (e *Engine) PostMatchingBonus(ctx context.Context, memberID primitive.ObjectID, cycleStart, cycleEnd time.Time) (*PostResult, error) {
	start, end, err := normalizeCycle(cycleStart, cycleEnd)
	if err != nil {
		return nil, err
	}

	if e.locker != nil {
		release, err := e.locker.Acquire(ctx, postingLockKey(memberID, start, end), e.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire posting lock: %w", err)
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if err := release(rctx); err != nil {
				log.Printf("matching: release lock for %s: %v", memberID.Hex(), err)
			}
		}()
	}

	existing, err := e.bonuses.FindMatchingBonus(ctx, memberID, start, end)
	switch {
	case err == nil:
		return e.duplicateResult(ctx, existing)
	case !errors.Is(err, ErrNotFound):
		return nil, computationFailed("find posted matching bonus", err)
	}

	calc, err := e.Calculate(ctx, memberID, start, end)
	if err != nil {
		return nil, err
	}
	if !calc.Success || calc.TotalMatchingBonus.IsZero() {
		message := "No matching bonus earned"
		if calc.Eligibility.Reason != "" {
			message = calc.Eligibility.Reason
		}
		return &PostResult{Success: false, Message: message}, nil
	}

	now := e.now().UTC()
	record := models.NewMatchingBonusRecord(memberID, calc.TotalMatchingBonus, start, end, now)
	details := make([]models.ContributionDetail, len(calc.Details))
	for i, d := range calc.Details {
		d.ID = primitive.NewObjectID()
		d.MatchingRecordID = record.ID
		d.CreatedAt = now
		details[i] = d
	}

	created, err := e.bonuses.CreateMatchingBonus(ctx, record, details)
	if errors.Is(err, ErrDuplicatePosting) && created != nil {
		return e.duplicateResult(ctx, created)
	}
	if err != nil {
		return nil, fmt.Errorf("post matching bonus: %w", err)
	}

	log.Printf("matching: posted %s for %s (%s to %s, %d contributions)",
		created.Amount.StringFixed(2), memberID.Hex(), start.Format(time.RFC3339), end.Format(time.RFC3339), len(details))

	if e.notifier != nil {
		if err := e.notifier.NotifyMatchingBonus(ctx, created, len(details)); err != nil {
			log.Printf("matching: notify %s: %v", memberID.Hex(), err)
		}
	}

	amount := created.Amount
	id := created.ID
	return &PostResult{
		Success:          true,
		Message:          "Matching bonus created successfully",
		MatchingRecordID: &id,
		Amount:           &amount,
		DetailsCount:     len(details),
	}, nil
}

func (e *Engine) duplicateResult(ctx context.Context, record *models.MatchingBonusRecord) (*PostResult, error) {
	counts, err := e.bonuses.DetailCounts(ctx, []primitive.ObjectID{record.ID})
	if err != nil {
		return nil, computationFailed("count contribution details", err)
	}
	amount := record.Amount
	id := record.ID
	return &PostResult{
		Success:          true,
		Duplicate:        true,
		Message:          "Matching bonus already posted for this cycle",
		MatchingRecordID: &id,
		Amount:           &amount,
		DetailsCount:     int(counts[record.ID]),
	}, nil
}

func postingLockKey(memberID primitive.ObjectID, start, end time.Time) string {
	return fmt.Sprintf("matching-bonus:%s:%d:%d", memberID.Hex(), start.UnixMilli(), end.UnixMilli())
}
