package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/barrim_matching/models"
)

// IncomeRepository reads the shared commission ledger.
type IncomeRepository struct {
	collection *mongo.Collection
}

func NewIncomeRepository(db *mongo.Database) *IncomeRepository {
	return &IncomeRepository{
		collection: db.Collection(models.CollectionIncomes),
	}
}

func (r *IncomeRepository) HasEventOfType(ctx context.Context, ownerID primitive.ObjectID, incomeType string) (bool, error) {
	err := r.collection.FindOne(ctx,
		bson.M{"userId": ownerID, "incomeType": incomeType},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("find %s income of %s: %w", incomeType, ownerID.Hex(), err)
	}
	return true, nil
}

// FindEvents returns the ledger entries matching filter. Both ends of the date
// range are inclusive. Owners are queried in batches of childrenBatchSize.
func (r *IncomeRepository) FindEvents(ctx context.Context, filter models.EventFilter) ([]models.CommissionEvent, error) {
	if len(filter.OwnerIDs) == 0 {
		return nil, nil
	}

	base := bson.M{
		"createdAt": bson.M{"$gte": filter.From, "$lte": filter.To},
	}
	if len(filter.Types) > 0 {
		base["incomeType"] = bson.M{"$in": filter.Types}
	}
	if len(filter.Statuses) > 0 {
		base["status"] = bson.M{"$in": filter.Statuses}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	var events []models.CommissionEvent
	for start := 0; start < len(filter.OwnerIDs); start += childrenBatchSize {
		end := min(start+childrenBatchSize, len(filter.OwnerIDs))

		query := bson.M{"userId": bson.M{"$in": filter.OwnerIDs[start:end]}}
		for k, v := range base {
			query[k] = v
		}
		cursor, err := r.collection.Find(ctx, query, opts)
		if err != nil {
			return nil, fmt.Errorf("find incomes: %w", err)
		}
		var batch []models.CommissionEvent
		if err := cursor.All(ctx, &batch); err != nil {
			return nil, fmt.Errorf("decode incomes: %w", err)
		}
		events = append(events, batch...)
	}
	return events, nil
}
