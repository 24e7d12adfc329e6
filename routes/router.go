package routes

import (
	"log/slog"
	"net/http"
	"time"

	"civicsync-issues/config"
	"civicsync-issues/controllers"
	"civicsync-issues/lifecycle"
	"civicsync-issues/middlewares"
	"civicsync-issues/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config *config.Config
	Store  store.Store
	Issues *lifecycle.Service
	Logger *slog.Logger

	// RateCounter limits issue creation per user. Nil disables the limit.
	RateCounter middlewares.RateCounter
}

// NewRouter builds the HTTP engine with middleware and every route group.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Config.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middlewares.RequestLogger(deps.Logger), gin.Recovery())
	r.Use(cors.New(corsConfig(deps.Config)))

	requireAuth := middlewares.AuthMiddleware(deps.Config.JWTSecret)

	var createLimit gin.HandlerFunc
	if deps.RateCounter != nil && deps.Config.IssueRateLimit > 0 {
		createLimit = middlewares.IssueRateLimiter(deps.RateCounter, deps.Config.IssueLimitPrefix, deps.Config.IssueRateLimit, deps.Config.IssueRateWindow)
	}

	AuthRoutes(r, controllers.NewAuthController(deps.Store, deps.Config), requireAuth)
	UserRoutes(r, controllers.NewUserController(deps.Store), requireAuth)
	IssueRoutes(r,
		controllers.NewIssueController(deps.Issues),
		controllers.NewCommentController(deps.Issues),
		requireAuth, createLimit)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	return r
}

func corsConfig(cfg *config.Config) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{middlewares.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORSOrigins) > 0 {
		cc.AllowOrigins = cfg.CORSOrigins
	} else {
		cc.AllowOriginFunc = func(string) bool { return true }
	}
	return cc
}
