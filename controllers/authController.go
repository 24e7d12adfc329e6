package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"civicsync-issues/config"
	"civicsync-issues/middlewares"
	"civicsync-issues/models"
	"civicsync-issues/store"
	authUtils "civicsync-issues/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthController issues and clears session tokens.
type AuthController struct {
	users store.UserStore
	cfg   *config.Config
	now   func() time.Time
}

func NewAuthController(users store.UserStore, cfg *config.Config) *AuthController {
	return &AuthController{users: users, cfg: cfg, now: time.Now}
}

// RegisterUser handles user registration. New accounts are always residents.
func (ac *AuthController) RegisterUser(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required,max=50"`
		Surname  string `json:"surname" binding:"max=50"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		CityID   string `json:"cityId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	cityID, err := primitive.ObjectIDFromHex(input.CityID)
	if err != nil {
		badRequest(c, "Invalid city ID")
		return
	}

	now := ac.now().UTC()
	user := models.User{
		Name:      strings.TrimSpace(input.Name),
		Surname:   strings.TrimSpace(input.Surname),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Password:  input.Password,
		CityID:    cityID,
		Role:      models.RoleResident,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.HashPassword(); err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := ac.users.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User with this email already exists", "code": "duplicate_email"})
			return
		}
		respondError(c, err)
		return
	}

	token, ok := ac.issueToken(c, &user)
	if !ok {
		return
	}

	slog.Info("user registered", "user_id", user.ID.Hex())
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

// LoginUser handles user login
func (ac *AuthController) LoginUser(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := ac.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(c, err)
		return
	}
	if user == nil || !user.ComparePassword(input.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": "auth_invalid"})
		return
	}

	token, ok := ac.issueToken(c, user)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// GetMe retrieves the authenticated user's information
func (ac *AuthController) GetMe(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := ac.users.GetUser(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "code": "not_found"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// LogoutUser handles user logout by clearing the auth_token cookie
func (ac *AuthController) LogoutUser(c *gin.Context) {
	c.SetCookie(middlewares.AuthCookie, "", -1, "/", ac.cookieDomain(), ac.cfg.Production(), true)
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

func (ac *AuthController) issueToken(c *gin.Context, user *models.User) (string, bool) {
	token, err := authUtils.GenerateToken(ac.cfg.JWTSecret, user.ID, user.Role, ac.cfg.TokenTTL)
	if err != nil {
		respondError(c, err)
		return "", false
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.AuthCookie,
		Value:    token,
		MaxAge:   int(ac.cfg.TokenTTL.Seconds()),
		Path:     "/",
		Domain:   ac.cookieDomain(),
		Secure:   ac.cfg.Production(),
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
	return token, true
}

// Production cookies are host-only so they survive cross-origin use.
func (ac *AuthController) cookieDomain() string {
	if ac.cfg.Production() {
		return ""
	}
	return ac.cfg.Domain
}
