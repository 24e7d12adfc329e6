package models

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	IssueCollection   = "issues"
	CommentCollection = "comments"
	UserCollection    = "users"
)

// EnsureIndexes creates the indexes backing the list queries and the unique email constraint.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UserCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		IssueCollection: {
			{Keys: bson.D{{Key: "cityId", Value: 1}, {Key: "updatedAt", Value: -1}}},
			{Keys: bson.D{{Key: "cityId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "cityId", Value: 1}, {Key: "reporterId", Value: 1}, {Key: "updatedAt", Value: -1}}},
		},
		CommentCollection: {
			{Keys: bson.D{{Key: "issueId", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}
