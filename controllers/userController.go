package controllers

import (
	"context"
	"errors"
	"net/http"

	"civicsync-issues/store"

	"github.com/gin-gonic/gin"
)

// UserController serves public user profiles for assignment pickers.
type UserController struct {
	users store.UserStore
}

func NewUserController(users store.UserStore) *UserController {
	return &UserController{users: users}
}

// GetUser returns the public summary of a user
func (uc *UserController) GetUser(c *gin.Context) {
	userID, ok := objectIDParam(c, "userId", "Invalid user ID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := uc.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "code": "not_found"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.Summary())
}
