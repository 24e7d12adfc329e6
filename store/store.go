// Package store holds the persistence contracts for issues, comments and users,
// together with a MongoDB implementation and an in-memory one.
//
// Assignment and resolution writes are compare-and-set: the update only applies
// when the stored value still matches what the caller read, otherwise ErrConflict
// is returned and nothing is written.
package store

import (
	"context"
	"errors"
	"time"

	"civicsync-issues/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional update lost against a concurrent writer.
	ErrConflict = errors.New("conflicting update")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate")
)

// SortKey selects the timestamp issues are ordered by, newest first.
type SortKey int

const (
	SortByUpdatedAt SortKey = iota
	SortByCreatedAt
)

// IssueFilter narrows ListIssues. Zero values are ignored.
type IssueFilter struct {
	CityID        primitive.ObjectID
	ReporterID    *primitive.ObjectID
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SortBy        SortKey
}

// AssignmentUpdate describes a conditional write of one assignment slot.
type AssignmentUpdate struct {
	Slot      models.AssignmentSlot
	Expected  *primitive.ObjectID
	Next      *primitive.ObjectID
	Status    models.IssueStatus
	UpdatedAt time.Time
}

type IssueStore interface {
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, error)
	// UpdateAssignment sets the slot and status together only if the slot still
	// holds Expected and the issue is not Solved.
	UpdateAssignment(ctx context.Context, id primitive.ObjectID, update AssignmentUpdate) (*models.Issue, error)
	// MarkSolved moves the issue to Solved only if it is not Solved already.
	MarkSolved(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Issue, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	DeleteComment(ctx context.Context, id primitive.ObjectID) error
	ListComments(ctx context.Context, issueID primitive.ObjectID) ([]models.Comment, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserExists(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Store bundles the three stores backed by one database.
type Store interface {
	IssueStore
	CommentStore
	UserStore
}
