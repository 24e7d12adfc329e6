package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"civicsync-issues/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// authorLookupLimit bounds concurrent user lookups while annotating comments and listings.
const authorLookupLimit = 8

type AddCommentInput struct {
	IssueID  primitive.ObjectID
	AuthorID primitive.ObjectID
	Text     string `validate:"required,max=2000"`
	ParentID *primitive.ObjectID
}

// AddComment attaches a comment to an existing issue. ParentID is stored as
// given; it is not checked against the thread.
func (s *Service) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	in.Text = strings.TrimSpace(in.Text)
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}
	if in.AuthorID.IsZero() {
		return nil, fmt.Errorf("%w: authorId is required", ErrValidation)
	}
	if _, err := s.GetIssue(ctx, in.IssueID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:        primitive.NewObjectID(),
		IssueID:   in.IssueID,
		AuthorID:  in.AuthorID,
		Text:      in.Text,
		ParentID:  in.ParentID,
		CreatedAt: s.now(),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// RemoveComment deletes a comment of an existing issue. Any authenticated
// caller may do so; authorship is not checked. A comment that belongs to a
// different issue is reported as not found.
func (s *Service) RemoveComment(ctx context.Context, issueID, commentID primitive.ObjectID) error {
	if _, err := s.GetIssue(ctx, issueID); err != nil {
		return err
	}
	comment, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return mapStoreError(err, ErrNotFound)
	}
	if comment.IssueID != issueID {
		return fmt.Errorf("%w: comment %s is not on issue %s", ErrNotFound, commentID.Hex(), issueID.Hex())
	}
	if err := s.comments.DeleteComment(ctx, commentID); err != nil {
		return mapStoreError(err, ErrNotFound)
	}
	s.logger.Info("comment removed", "issue", issueID.Hex(), "comment", commentID.Hex())
	return nil
}

// ListComments returns the comments of an issue in storage order, each with
// its author's profile.
func (s *Service) ListComments(ctx context.Context, issueID primitive.ObjectID) ([]models.CommentWithAuthor, error) {
	if _, err := s.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListComments(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("list comments of issue %s: %w", issueID.Hex(), err)
	}

	authorIDs := make([]primitive.ObjectID, 0, len(comments))
	for _, c := range comments {
		authorIDs = append(authorIDs, c.AuthorID)
	}
	authors, err := s.userSummaries(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve comment authors: %w", err)
	}

	thread := make([]models.CommentWithAuthor, 0, len(comments))
	for _, c := range comments {
		thread = append(thread, models.CommentWithAuthor{
			Comment: c,
			Author:  authors[c.AuthorID],
		})
	}
	return thread, nil
}

// userSummaries resolves each distinct id once. Users that no longer exist
// map to nil.
func (s *Service) userSummaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.UserSummary, error) {
	var (
		mu        sync.Mutex
		summaries = make(map[primitive.ObjectID]*models.UserSummary, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(authorLookupLimit)
	seen := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		id := id
		g.Go(func() error {
			summary, err := s.userSummary(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			summaries[id] = summary
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
