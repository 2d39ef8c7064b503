package matching

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/models"
)

// HistoryEntry is one posted matching bonus as shown in a member's history.
type HistoryEntry struct {
	ID                primitive.ObjectID `json:"id"`
	Date              time.Time          `json:"date"`
	MatchingBonus     decimal.Decimal    `json:"matchingBonus"`
	Status            string             `json:"status"`
	IsWithdrawn       bool               `json:"isWithdrawn"`
	Payable           decimal.Decimal    `json:"payable"`
	ContributorsCount int64              `json:"contributorsCount"`
	Remarks           string             `json:"remarks,omitempty"`
	CycleStart        *time.Time         `json:"cycleStart,omitempty"`
	CycleEnd          *time.Time         `json:"cycleEnd,omitempty"`
}

// HistorySummary totals the listed records by payout state.
type HistorySummary struct {
	TotalMatchingBonus decimal.Decimal `json:"totalMatchingBonus"`
	TotalPayable       decimal.Decimal `json:"totalPayable"`
	TotalPending       decimal.Decimal `json:"totalPending"`
	TotalWithdrawn     decimal.Decimal `json:"totalWithdrawn"`
}

// History is a member's posted matching bonuses, newest first.
type History struct {
	Records []HistoryEntry `json:"records"`
	Summary HistorySummary `json:"summary"`
}

// History lists the matching bonuses posted to memberID. The status filter
// narrows the records only; the summary covers every status in the window.
func (e *Engine) History(ctx context.Context, memberID primitive.ObjectID, filter models.HistoryFilter) (*History, error) {
	records, err := e.bonuses.ListMatchingBonuses(ctx, memberID, filter)
	if err != nil {
		return nil, computationFailed("list matching bonuses", err)
	}
	window := records
	if filter.Status != "" {
		unfiltered := filter
		unfiltered.Status = ""
		window, err = e.bonuses.ListMatchingBonuses(ctx, memberID, unfiltered)
		if err != nil {
			return nil, computationFailed("list matching bonuses", err)
		}
	}

	ids := make([]primitive.ObjectID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	counts := map[primitive.ObjectID]int64{}
	if len(ids) > 0 {
		counts, err = e.bonuses.DetailCounts(ctx, ids)
		if err != nil {
			return nil, computationFailed("count contribution details", err)
		}
	}

	h := &History{
		Records: make([]HistoryEntry, 0, len(records)),
		Summary: summarize(window),
	}
	for i := range records {
		r := &records[i]
		h.Records = append(h.Records, HistoryEntry{
			ID:                r.ID,
			Date:              r.CreatedAt,
			MatchingBonus:     r.Amount,
			Status:            r.Status,
			IsWithdrawn:       r.IsWithdrawn,
			Payable:           payableAmount(r),
			ContributorsCount: counts[r.ID],
			Remarks:           r.Remarks,
			CycleStart:        r.CycleStart,
			CycleEnd:          r.CycleEnd,
		})
	}
	return h, nil
}

func payableAmount(r *models.MatchingBonusRecord) decimal.Decimal {
	if r.Payable() {
		return r.Amount
	}
	return decimal.Zero
}

func summarize(records []models.MatchingBonusRecord) HistorySummary {
	sum := HistorySummary{
		TotalMatchingBonus: decimal.Zero,
		TotalPayable:       decimal.Zero,
		TotalPending:       decimal.Zero,
		TotalWithdrawn:     decimal.Zero,
	}
	for i := range records {
		r := &records[i]
		sum.TotalMatchingBonus = sum.TotalMatchingBonus.Add(r.Amount)
		sum.TotalPayable = sum.TotalPayable.Add(payableAmount(r))
		if r.Status == models.IncomeStatusPending {
			sum.TotalPending = sum.TotalPending.Add(r.Amount)
		}
		if r.IsWithdrawn {
			sum.TotalWithdrawn = sum.TotalWithdrawn.Add(r.Amount)
		}
	}
	return sum
}

// LevelSummary aggregates the contributions of one downline level.
type LevelSummary struct {
	Level             int             `json:"level"`
	Count             int             `json:"count"`
	TotalContribution decimal.Decimal `json:"totalContribution"`
	MatchedPercentage decimal.Decimal `json:"matchedPercentage"`
}

// SourceDetails is the audit view of a single posted matching bonus.
type SourceDetails struct {
	RecordID          primitive.ObjectID          `json:"matchingRecordId"`
	TotalAmount       decimal.Decimal             `json:"totalAmount"`
	Status            string                      `json:"status"`
	Date              time.Time                   `json:"date"`
	Contributors      []models.ContributionDetail `json:"contributors"`
	LevelSummary      []LevelSummary              `json:"levelSummary"`
	TotalContributors int                         `json:"totalContributors"`
}

// SourceDetails returns the contributions behind recordID. The record must
// belong to memberID.
func (e *Engine) SourceDetails(ctx context.Context, memberID, recordID primitive.ObjectID) (*SourceDetails, error) {
	record, err := e.bonuses.FindMatchingBonusByID(ctx, memberID, recordID)
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, computationFailed("find matching bonus", err)
	}

	details, err := e.bonuses.ContributionDetails(ctx, record.ID)
	if err != nil {
		return nil, computationFailed("list contribution details", err)
	}

	summary := []LevelSummary{}
	byLevel := map[int]int{}
	for _, d := range details {
		idx, ok := byLevel[d.DownlineLevel]
		if !ok {
			idx = len(summary)
			byLevel[d.DownlineLevel] = idx
			summary = append(summary, LevelSummary{
				Level:             d.DownlineLevel,
				TotalContribution: decimal.Zero,
				MatchedPercentage: d.MatchedPercentage,
			})
		}
		summary[idx].Count++
		summary[idx].TotalContribution = summary[idx].TotalContribution.Add(d.ContributionAmount)
	}

	sort.Slice(summary, func(i, j int) bool { return summary[i].Level < summary[j].Level })

	if details == nil {
		details = []models.ContributionDetail{}
	}
	return &SourceDetails{
		RecordID:          record.ID,
		TotalAmount:       record.Amount,
		Status:            record.Status,
		Date:              record.CreatedAt,
		Contributors:      details,
		LevelSummary:      summary,
		TotalContributors: len(details),
	}, nil
}
