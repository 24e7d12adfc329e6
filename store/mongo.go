package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicsync-issues/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a Store backed by MongoDB collections. Conditional updates rely on
// single-document atomicity of FindOneAndUpdate.
type Mongo struct {
	issues   *mongo.Collection
	comments *mongo.Collection
	users    *mongo.Collection
}

var _ Store = (*Mongo)(nil)

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		issues:   db.Collection(models.IssueCollection),
		comments: db.Collection(models.CommentCollection),
		users:    db.Collection(models.UserCollection),
	}
}

func (s *Mongo) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, err := s.issues.InsertOne(ctx, issue); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert issue: %w", ErrDuplicate)
		}
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (s *Mongo) GetIssue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.issues.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		return nil, wrapFind("issue", id, err)
	}
	return &issue, nil
}

func (s *Mongo) ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, error) {
	query := bson.M{}
	if !filter.CityID.IsZero() {
		query["cityId"] = filter.CityID
	}
	if filter.ReporterID != nil {
		query["reporterId"] = *filter.ReporterID
	}
	if filter.CreatedAfter != nil || filter.CreatedBefore != nil {
		created := bson.M{}
		if filter.CreatedAfter != nil {
			created["$gte"] = *filter.CreatedAfter
		}
		if filter.CreatedBefore != nil {
			created["$lte"] = *filter.CreatedBefore
		}
		query["createdAt"] = created
	}

	sortField := "updatedAt"
	if filter.SortBy == SortByCreatedAt {
		sortField = "createdAt"
	}
	findOptions := options.Find().SetSort(bson.D{{Key: sortField, Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := s.issues.Find(ctx, query, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := make([]models.Issue, 0)
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	return issues, nil
}

func (s *Mongo) UpdateAssignment(ctx context.Context, id primitive.ObjectID, update AssignmentUpdate) (*models.Issue, error) {
	field := update.Slot.Field()
	if field == "" {
		return nil, fmt.Errorf("update assignment: unknown slot %s", update.Slot)
	}

	// A nil expected value matches both an explicit null and a missing field.
	filter := bson.M{
		"_id":    id,
		field:    update.Expected,
		"status": bson.M{"$ne": models.StatusSolved},
	}
	set := bson.M{"$set": bson.M{
		field:       update.Next,
		"status":    update.Status,
		"updatedAt": update.UpdatedAt,
	}}
	return s.conditionalUpdate(ctx, id, filter, set)
}

func (s *Mongo) MarkSolved(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Issue, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$ne": models.StatusSolved}}
	set := bson.M{"$set": bson.M{"status": models.StatusSolved, "updatedAt": at}}
	return s.conditionalUpdate(ctx, id, filter, set)
}

// conditionalUpdate applies set when filter matches. A miss is reported as
// ErrNotFound if the issue is gone and ErrConflict otherwise.
func (s *Mongo) conditionalUpdate(ctx context.Context, id primitive.ObjectID, filter, set bson.M) (*models.Issue, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var issue models.Issue
	err := s.issues.FindOneAndUpdate(ctx, filter, set, opts).Decode(&issue)
	if err == nil {
		return &issue, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update issue %s: %w", id.Hex(), err)
	}

	count, err := s.issues.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("check issue %s: %w", id.Hex(), err)
	}
	if count == 0 {
		return nil, fmt.Errorf("issue %s: %w", id.Hex(), ErrNotFound)
	}
	return nil, fmt.Errorf("issue %s: %w", id.Hex(), ErrConflict)
}

func (s *Mongo) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	if _, err := s.comments.InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *Mongo) GetComment(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	if err := s.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		return nil, wrapFind("comment", id, err)
	}
	return &comment, nil
}

func (s *Mongo) DeleteComment(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.comments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete comment %s: %w", id.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("comment %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

func (s *Mongo) ListComments(ctx context.Context, issueID primitive.ObjectID) ([]models.Comment, error) {
	cursor, err := s.comments.Find(ctx, bson.M{"issueId": issueID})
	if err != nil {
		return nil, fmt.Errorf("find comments: %w", err)
	}
	defer cursor.Close(ctx)

	comments := make([]models.Comment, 0)
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return comments, nil
}

func (s *Mongo) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Mongo) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, wrapFind("user", id, err)
	}
	return &user, nil
}

func (s *Mongo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("find user %s: %w", email, err)
	}
	return &user, nil
}

func (s *Mongo) UserExists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	count, err := s.users.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count user %s: %w", id.Hex(), err)
	}
	return count > 0, nil
}

// wrapFind converts mongo.ErrNoDocuments into ErrNotFound.
func wrapFind(kind string, id primitive.ObjectID, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", kind, id.Hex(), ErrNotFound)
	}
	return fmt.Errorf("find %s %s: %w", kind, id.Hex(), err)
}
