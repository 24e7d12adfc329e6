package controllers

import (
	"context"
	"net/http"

	"civicsync-issues/lifecycle"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommentController exposes the comment thread of an issue.
type CommentController struct {
	issues *lifecycle.Service
}

func NewCommentController(issues *lifecycle.Service) *CommentController {
	return &CommentController{issues: issues}
}

func (cc *CommentController) ListComments(c *gin.Context) {
	issueID, ok := objectIDParam(c, "issueId", "Invalid issue ID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	thread, err := cc.issues.ListComments(ctx, issueID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, thread)
}

func (cc *CommentController) AddComment(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	issueID, ok := objectIDParam(c, "issueId", "Invalid issue ID")
	if !ok {
		return
	}

	var input struct {
		Text     string `json:"text" binding:"required,max=2000"`
		ParentID string `json:"parentId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	var parentID *primitive.ObjectID
	if input.ParentID != "" {
		id, err := primitive.ObjectIDFromHex(input.ParentID)
		if err != nil {
			badRequest(c, "Invalid parent comment ID")
			return
		}
		parentID = &id
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	comment, err := cc.issues.AddComment(ctx, lifecycle.AddCommentInput{
		IssueID:  issueID,
		AuthorID: caller.UserID,
		Text:     input.Text,
		ParentID: parentID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

func (cc *CommentController) RemoveComment(c *gin.Context) {
	issueID, ok := objectIDParam(c, "issueId", "Invalid issue ID")
	if !ok {
		return
	}
	commentID, ok := objectIDParam(c, "commentId", "Invalid comment ID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := cc.issues.RemoveComment(ctx, issueID, commentID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
