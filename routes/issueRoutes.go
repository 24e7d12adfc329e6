package routes

import (
	"civicsync-issues/controllers"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue and comment routes. createLimit, when not
// nil, runs before issue creation only.
func IssueRoutes(r *gin.Engine, issueController *controllers.IssueController, commentController *controllers.CommentController, requireAuth, createLimit gin.HandlerFunc) {
	issue := r.Group("/api/issue", requireAuth)
	{
		create := []gin.HandlerFunc{issueController.CreateIssue}
		if createLimit != nil {
			create = append([]gin.HandlerFunc{createLimit}, create...)
		}
		issue.POST("/create", create...)

		issue.GET("/all/:cityId", issueController.ListCityIssues)
		issue.GET("/all/:cityId/user/:userId", issueController.ListReporterIssues)

		issue.GET("/:issueId", issueController.GetIssue)
		issue.PUT("/:issueId/assign/update", issueController.UpdateAssignment)
		issue.PUT("/:issueId/solve", issueController.MarkSolved)

		issue.GET("/:issueId/comments", commentController.ListComments)
		issue.POST("/:issueId/comments", commentController.AddComment)
		issue.DELETE("/:issueId/comments/:commentId", commentController.RemoveComment)
	}
}
