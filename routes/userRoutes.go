package routes

import (
	"civicsync-issues/controllers"

	"github.com/gin-gonic/gin"
)

// UserRoutes sets up the user lookup routes
func UserRoutes(r *gin.Engine, userController *controllers.UserController, requireAuth gin.HandlerFunc) {
	user := r.Group("/api/user", requireAuth)
	{
		user.GET("/:userId", userController.GetUser)
	}
}
