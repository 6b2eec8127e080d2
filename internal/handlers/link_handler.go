package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/linking"
	"wealthsync/internal/syncer"
)

// Linker is the part of linking.Service the handler depends on.
type Linker interface {
	Start(ctx context.Context, userID, accountID string) (*linking.Start, error)
	Complete(ctx context.Context, userID, sessionID string, c linking.Completion) (*syncer.Result, error)
}

// LinkHandler handles provider link flows.
type LinkHandler struct {
	linker Linker
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(linker Linker) *LinkHandler {
	return &LinkHandler{linker: linker}
}

// StartLink handles POST /accounts/:id/link.
func (h *LinkHandler) StartLink(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	start, err := h.linker.Start(c.Request.Context(), userID, accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	status := http.StatusCreated
	if start.Method == linking.MethodImmediate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"link": start})
}

// CompleteLink handles POST /links/:session/complete.
func (h *LinkHandler) CompleteLink(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	sessionID, err := parsePathID(c, "session")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req linking.Completion
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.linker.Complete(c.Request.Context(), userID, sessionID, req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": renderResult(c, result)})
}
