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

// PolicyRepository stores the matching configuration of every rank. Older
// versions of a rank's policy are kept with isActive=false.
type PolicyRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewPolicyRepository(db *mongo.Database) *PolicyRepository {
	return &PolicyRepository{
		client:     db.Client(),
		collection: db.Collection(models.CollectionMatchingConfigs),
	}
}

func (r *PolicyRepository) ActivePolicy(ctx context.Context, rank string) (*models.MatchingPolicy, error) {
	var policy models.MatchingPolicy
	err := r.collection.FindOne(ctx, bson.M{"rankName": rank, "isActive": true}).Decode(&policy)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find policy for rank %q: %w", rank, err)
	}
	return &policy, nil
}

// ActivePolicies returns all active policies along the rank ladder.
func (r *PolicyRepository) ActivePolicies(ctx context.Context) ([]models.MatchingPolicy, error) {
	opts := options.Find().SetSort(bson.D{{Key: "displayOrder", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"isActive": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("find policies: %w", err)
	}

	var policies []models.MatchingPolicy
	if err := cursor.All(ctx, &policies); err != nil {
		return nil, fmt.Errorf("decode policies: %w", err)
	}
	return policies, nil
}

// ReplaceActivePolicy deactivates the current policy of the rank and inserts
// policy, under a fresh id, as the active one in a single transaction.
func (r *PolicyRepository) ReplaceActivePolicy(ctx context.Context, policy *models.MatchingPolicy) error {
	policy.ID = primitive.NewObjectID()

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		_, err := r.collection.UpdateMany(sc,
			bson.M{"rankName": policy.RankName, "isActive": true},
			bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}},
		)
		if err != nil {
			return nil, fmt.Errorf("deactivate policy: %w", err)
		}
		result, err := r.collection.InsertOne(sc, policy)
		if err != nil {
			return nil, fmt.Errorf("insert policy: %w", err)
		}
		return result.InsertedID, nil
	})
	return err
}
