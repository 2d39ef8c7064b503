package config

import (
	"context"
	"fmt"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/barrim_matching/models"
)

// ConnectDB connects to MongoDB and verifies the connection with a ping.
func ConnectDB(cfg *Config) (*mongo.Client, error) {
	mongoURI, err := cfg.MongoConnectionURI()
	if err != nil {
		return nil, err
	}

	log.Printf("Connecting to MongoDB at: %s", maskMongoURI(mongoURI))

	clientOptions := options.Client().
		ApplyURI(mongoURI).
		SetRegistry(NewRegistry())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	log.Println("Connected to MongoDB")
	return client, nil
}

// Database returns the configured database of client.
func Database(client *mongo.Client, cfg *Config) *mongo.Database {
	return client.Database(cfg.DBName)
}

// EnsureIndexes creates the indexes the matching engine relies on. The unique
// index on MATCHING incomes is what makes a cycle payable at most once.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		models.CollectionUsers: {
			{Keys: bson.D{{Key: "sponsorId", Value: 1}}},
			{Keys: bson.D{{Key: "rank", Value: 1}}},
		},
		models.CollectionIncomes: {
			{Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "incomeType", Value: 1},
				{Key: "status", Value: 1},
				{Key: "createdAt", Value: 1},
			}},
			{
				Keys: bson.D{
					{Key: "userId", Value: 1},
					{Key: "cycleStart", Value: 1},
					{Key: "cycleEnd", Value: 1},
				},
				Options: options.Index().
					SetName("matching_cycle_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"incomeType": models.IncomeTypeMatching}),
			},
		},
		models.CollectionMatchingDetails: {
			{Keys: bson.D{{Key: "matchingRecordId", Value: 1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "cycleStart", Value: 1}, {Key: "cycleEnd", Value: 1}}},
			{Keys: bson.D{{Key: "downlineUserId", Value: 1}}},
		},
		models.CollectionMatchingConfigs: {
			{
				Keys: bson.D{{Key: "rankName", Value: 1}},
				Options: options.Index().
					SetName("active_rank_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"isActive": true}),
			},
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "displayOrder", Value: 1}}},
		},
		models.CollectionNotifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}

	for collName, idx := range indexes {
		if _, err := db.Collection(collName).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes for %s: %w", collName, err)
		}
	}

	log.Println("Database collections and indexes setup complete")
	return nil
}

// maskMongoURI masks the password in MongoDB URI for logging
func maskMongoURI(uri string) string {
	if idx := strings.Index(uri, "@"); idx > 0 {
		if colonIdx := strings.LastIndex(uri[:idx], ":"); colonIdx > 0 && colonIdx > strings.Index(uri, "://")+2 {
			return uri[:colonIdx+1] + "***" + uri[idx:]
		}
	}
	return uri
}
