package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment is a note attached to an issue. ParentID threads replies.
type Comment struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	IssueID   primitive.ObjectID  `bson:"issueId" json:"issueId"`
	AuthorID  primitive.ObjectID  `bson:"authorId" json:"authorId"`
	Text      string              `bson:"text" json:"text"`
	ParentID  *primitive.ObjectID `bson:"parentId,omitempty" json:"parentId,omitempty"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}

func (c *Comment) Clone() *Comment {
	out := *c
	if c.ParentID != nil {
		id := *c.ParentID
		out.ParentID = &id
	}
	return &out
}

// CommentWithAuthor is a comment annotated with its author's public profile.
type CommentWithAuthor struct {
	Comment `bson:",inline"`
	Author  *UserSummary `json:"author"`
}
