package routes

import (
	"civicsync-issues/controllers"

	"github.com/gin-gonic/gin"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(r *gin.Engine, authController *controllers.AuthController, requireAuth gin.HandlerFunc) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authController.RegisterUser)
		auth.POST("/login", authController.LoginUser)
		auth.POST("/logout", authController.LogoutUser)
		auth.GET("/me", requireAuth, authController.GetMe)
	}
}
