package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"civicsync-issues/lifecycle"
	authUtils "civicsync-issues/utils"

	"github.com/gin-gonic/gin"
)

// respondError writes the status and code matching err. Unknown errors are
// logged and reported without detail.
func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		message = "Something went wrong"
	}
	c.JSON(status, gin.H{"error": message, "code": code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, lifecycle.ErrInvalidField):
		return http.StatusBadRequest, "invalid_field"
	case errors.Is(err, authUtils.ErrAuth):
		return http.StatusUnauthorized, "auth_invalid"
	case errors.Is(err, lifecycle.ErrSelfAssignment):
		return http.StatusForbidden, "self_assignment_forbidden"
	case errors.Is(err, lifecycle.ErrNotAuthorized):
		return http.StatusForbidden, "not_authorized"
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, lifecycle.ErrAlreadySolved):
		return http.StatusConflict, "already_solved"
	}
	return http.StatusInternalServerError, "internal"
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": "validation_error"})
}
