package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/barrim_matching/models"
)

// MatchingBonusRepository writes MATCHING entries to the incomes ledger and
// their contribution details to a side collection.
type MatchingBonusRepository struct {
	client  *mongo.Client
	incomes *mongo.Collection
	details *mongo.Collection
}

func NewMatchingBonusRepository(db *mongo.Database) *MatchingBonusRepository {
	return &MatchingBonusRepository{
		client:  db.Client(),
		incomes: db.Collection(models.CollectionIncomes),
		details: db.Collection(models.CollectionMatchingDetails),
	}
}

func cycleFilter(ownerID primitive.ObjectID, cycleStart, cycleEnd time.Time) bson.M {
	return bson.M{
		"userId":     ownerID,
		"incomeType": models.IncomeTypeMatching,
		"cycleStart": cycleStart,
		"cycleEnd":   cycleEnd,
	}
}

func (r *MatchingBonusRepository) FindMatchingBonus(ctx context.Context, ownerID primitive.ObjectID, cycleStart, cycleEnd time.Time) (*models.MatchingBonusRecord, error) {
	var record models.MatchingBonusRecord
	err := r.incomes.FindOne(ctx, cycleFilter(ownerID, cycleStart, cycleEnd)).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find matching bonus: %w", err)
	}
	return &record, nil
}

// CreateMatchingBonus inserts the record and its details in one transaction.
// The matching_cycle_unique index rejects a second record for the same cycle;
// the stored record is then returned with models.ErrDuplicatePosting.
func (r *MatchingBonusRepository) CreateMatchingBonus(ctx context.Context, record *models.MatchingBonusRecord, details []models.ContributionDetail) (*models.MatchingBonusRecord, error) {
	session, err := r.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.incomes.InsertOne(sc, record); err != nil {
			return nil, err
		}
		if len(details) == 0 {
			return nil, nil
		}
		docs := make([]interface{}, len(details))
		for i := range details {
			docs[i] = details[i]
		}
		if _, err := r.details.InsertMany(sc, docs); err != nil {
			return nil, fmt.Errorf("insert contribution details: %w", err)
		}
		return nil, nil
	})
	if err == nil {
		return record, nil
	}

	if mongo.IsDuplicateKeyError(err) && record.CycleStart != nil && record.CycleEnd != nil {
		existing, findErr := r.FindMatchingBonus(ctx, record.OwnerID, *record.CycleStart, *record.CycleEnd)
		if findErr != nil {
			return nil, fmt.Errorf("load existing matching bonus: %w", findErr)
		}
		return existing, models.ErrDuplicatePosting
	}
	return nil, fmt.Errorf("insert matching bonus: %w", err)
}

func (r *MatchingBonusRepository) FindMatchingBonusByID(ctx context.Context, ownerID, recordID primitive.ObjectID) (*models.MatchingBonusRecord, error) {
	var record models.MatchingBonusRecord
	err := r.incomes.FindOne(ctx, bson.M{
		"_id":        recordID,
		"userId":     ownerID,
		"incomeType": models.IncomeTypeMatching,
	}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find matching bonus %s: %w", recordID.Hex(), err)
	}
	return &record, nil
}

// ListMatchingBonuses returns the member's MATCHING entries newest first. The
// date bounds apply to the posting time.
func (r *MatchingBonusRepository) ListMatchingBonuses(ctx context.Context, ownerID primitive.ObjectID, filter models.HistoryFilter) ([]models.MatchingBonusRecord, error) {
	query := bson.M{"userId": ownerID, "incomeType": models.IncomeTypeMatching}
	if filter.From != nil || filter.To != nil {
		created := bson.M{}
		if filter.From != nil {
			created["$gte"] = *filter.From
		}
		if filter.To != nil {
			created["$lte"] = *filter.To
		}
		query["createdAt"] = created
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.incomes.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find matching bonuses: %w", err)
	}

	var records []models.MatchingBonusRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode matching bonuses: %w", err)
	}
	return records, nil
}

// ContributionDetails returns the details of a record, shallow levels first
// and the largest contributions first within a level.
func (r *MatchingBonusRepository) ContributionDetails(ctx context.Context, recordID primitive.ObjectID) ([]models.ContributionDetail, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "downlineLevel", Value: 1},
		{Key: "contributionAmount", Value: -1},
		{Key: "_id", Value: 1},
	})
	cursor, err := r.details.Find(ctx, bson.M{"matchingRecordId": recordID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find contribution details: %w", err)
	}

	var details []models.ContributionDetail
	if err := cursor.All(ctx, &details); err != nil {
		return nil, fmt.Errorf("decode contribution details: %w", err)
	}
	return details, nil
}

// DetailCounts counts the contribution details of each record in one aggregation.
func (r *MatchingBonusRepository) DetailCounts(ctx context.Context, recordIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	counts := make(map[primitive.ObjectID]int64, len(recordIDs))
	if len(recordIDs) == 0 {
		return counts, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"matchingRecordId": bson.M{"$in": recordIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$matchingRecordId", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.details.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count contribution details: %w", err)
	}

	var rows []struct {
		ID    primitive.ObjectID `bson:"_id"`
		Count int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode detail counts: %w", err)
	}
	for _, row := range rows {
		counts[row.ID] = row.Count
	}
	return counts, nil
}
