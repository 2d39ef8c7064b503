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

// childrenBatchSize bounds the $in list of a single query.
const childrenBatchSize = 1000

var memberProjection = bson.M{
	"_id":       1,
	"sponsorId": 1,
	"username":  1,
	"fullName":  1,
	"email":     1,
	"userType":  1,
	"rank":      1,
	"isActive":  1,
	"fcmToken":  1,
	"createdAt": 1,
	"updatedAt": 1,
}

// UserRepository reads the sponsorship tree from the users collection.
type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection(models.CollectionUsers),
	}
}

func (r *UserRepository) FindMember(ctx context.Context, id primitive.ObjectID) (*models.Member, error) {
	var member models.Member
	err := r.collection.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(memberProjection)).Decode(&member)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find member %s: %w", id.Hex(), err)
	}
	return &member, nil
}

// ChildrenOf returns every member sponsored by one of parentIDs, sorted by id.
func (r *UserRepository) ChildrenOf(ctx context.Context, parentIDs []primitive.ObjectID) ([]models.Member, error) {
	var children []models.Member
	opts := options.Find().
		SetProjection(memberProjection).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	for start := 0; start < len(parentIDs); start += childrenBatchSize {
		end := min(start+childrenBatchSize, len(parentIDs))

		cursor, err := r.collection.Find(ctx, bson.M{"sponsorId": bson.M{"$in": parentIDs[start:end]}}, opts)
		if err != nil {
			return nil, fmt.Errorf("find children: %w", err)
		}
		var batch []models.Member
		if err := cursor.All(ctx, &batch); err != nil {
			return nil, fmt.Errorf("decode children: %w", err)
		}
		children = append(children, batch...)
	}
	return children, nil
}

func (r *UserRepository) DirectReferralCount(ctx context.Context, id primitive.ObjectID) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"sponsorId": id})
	if err != nil {
		return 0, fmt.Errorf("count direct referrals of %s: %w", id.Hex(), err)
	}
	return count, nil
}

// MemberIDsWithRanks lists the ids of members holding one of ranks. A member
// without a rank field holds models.DefaultRank.
func (r *UserRepository) MemberIDsWithRanks(ctx context.Context, ranks []string) ([]primitive.ObjectID, error) {
	if len(ranks) == 0 {
		return nil, nil
	}

	filter := bson.M{"rank": bson.M{"$in": ranks}}
	for _, rank := range ranks {
		if rank == models.DefaultRank {
			filter = bson.M{"$or": bson.A{
				bson.M{"rank": bson.M{"$in": ranks}},
				bson.M{"rank": bson.M{"$exists": false}},
				bson.M{"rank": ""},
			}}
			break
		}
	}

	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find members by rank: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode member id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return ids, nil
}
