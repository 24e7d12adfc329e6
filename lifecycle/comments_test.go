package lifecycle_test

import (
	"context"
	"testing"

	"civicsync-issues/lifecycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCommentThread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reporter := f.user(t, "reporter")
	fiscal := f.user(t, "fiscal")
	issue := f.issue(t, reporter)

	root, err := f.svc.AddComment(ctx, lifecycle.AddCommentInput{
		IssueID: issue.ID, AuthorID: fiscal, Text: "  Checked on site  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Checked on site", root.Text)
	assert.Nil(t, root.ParentID)

	reply, err := f.svc.AddComment(ctx, lifecycle.AddCommentInput{
		IssueID: issue.ID, AuthorID: reporter, Text: "Thanks", ParentID: &root.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, &root.ID, reply.ParentID)

	// a comment on another issue stays out of this thread
	other := f.issue(t, reporter)
	_, err = f.svc.AddComment(ctx, lifecycle.AddCommentInput{IssueID: other.ID, AuthorID: fiscal, Text: "elsewhere"})
	require.NoError(t, err)

	thread, err := f.svc.ListComments(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, root.ID, thread[0].ID)
	assert.Equal(t, reply.ID, thread[1].ID)
	require.NotNil(t, thread[0].Author)
	assert.Equal(t, fiscal, thread[0].Author.ID)
	assert.Equal(t, "reporter", thread[1].Author.Name)
}

func TestAddCommentRequiresIssue(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")

	_, err := f.svc.AddComment(context.Background(), lifecycle.AddCommentInput{
		IssueID: primitive.NewObjectID(), AuthorID: author, Text: "hello",
	})
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestAddCommentValidation(t *testing.T) {
	f := newFixture(t)
	reporter := f.user(t, "reporter")
	issue := f.issue(t, reporter)

	_, err := f.svc.AddComment(context.Background(), lifecycle.AddCommentInput{IssueID: issue.ID, AuthorID: reporter, Text: " "})
	assert.ErrorIs(t, err, lifecycle.ErrValidation)

	_, err = f.svc.AddComment(context.Background(), lifecycle.AddCommentInput{IssueID: issue.ID, Text: "anonymous"})
	assert.ErrorIs(t, err, lifecycle.ErrValidation)
}

func TestRemoveCommentByAnyCaller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reporter := f.user(t, "reporter")
	issue := f.issue(t, reporter)

	comment, err := f.svc.AddComment(ctx, lifecycle.AddCommentInput{IssueID: issue.ID, AuthorID: reporter, Text: "first"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveComment(ctx, issue.ID, comment.ID))

	thread, err := f.svc.ListComments(ctx, issue.ID)
	require.NoError(t, err)
	assert.Empty(t, thread)

	err = f.svc.RemoveComment(ctx, issue.ID, comment.ID)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	err = f.svc.RemoveComment(ctx, primitive.NewObjectID(), primitive.NewObjectID())
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestListCommentsUnknownAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reporter := f.user(t, "reporter")
	issue := f.issue(t, reporter)

	_, err := f.svc.AddComment(ctx, lifecycle.AddCommentInput{IssueID: issue.ID, AuthorID: primitive.NewObjectID(), Text: "ghost"})
	require.NoError(t, err)

	thread, err := f.svc.ListComments(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Nil(t, thread[0].Author)
}

func TestRemoveCommentOfAnotherIssue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reporter := f.user(t, "reporter")
	first := f.issue(t, reporter)
	second := f.issue(t, reporter)

	comment, err := f.svc.AddComment(ctx, lifecycle.AddCommentInput{IssueID: second.ID, AuthorID: reporter, Text: "on the second issue"})
	require.NoError(t, err)

	err = f.svc.RemoveComment(ctx, first.ID, comment.ID)
	require.ErrorIs(t, err, lifecycle.ErrNotFound)

	thread, err := f.svc.ListComments(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, comment.ID, thread[0].ID)
}
