package handlers

import (
	"github.com/gin-gonic/gin"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/middleware"
	"wealthsync/internal/uuid"
)

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parsePathID reads a uuid path parameter.
// Returns ErrInvalidInput if the parameter is not a valid uuid.
func parsePathID(c *gin.Context, param string) (string, error) {
	id := c.Param(param)
	if !uuid.IsValid(id) {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// respondWithError writes a consistent JSON error response.
func respondWithError(c *gin.Context, err error) {
	status, body := middleware.Describe(c, err)
	c.JSON(status, gin.H{"error": body})
}
