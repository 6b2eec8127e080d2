package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
	"wealthsync/internal/pagination"
	"wealthsync/internal/services"
)

// AccountHandler handles account-related requests.
type AccountHandler struct {
	accountService services.AccountServicer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService services.AccountServicer) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// CreateAccountRequest represents the request payload for creating an account.
// Provider defaults to manual.
type CreateAccountRequest struct {
	Name        string             `json:"name" binding:"required,min=1,max=100"`
	Provider    models.Provider    `json:"provider" binding:"omitempty,provider"`
	AccountType models.AccountType `json:"account_type" binding:"omitempty,account_type"`
	Balance     decimal.Decimal    `json:"balance"`
}

// CreateAccount handles POST /accounts.
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	account, err := h.accountService.CreateAccount(c.Request.Context(), userID, services.CreateAccountInput{
		Name:        req.Name,
		Provider:    req.Provider,
		AccountType: req.AccountType,
		Balance:     req.Balance,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// GetUserAccounts handles GET /accounts.
func (h *AccountHandler) GetUserAccounts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	accounts, err := h.accountService.GetUserAccounts(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// GetAccountByID handles GET /accounts/:id.
func (h *AccountHandler) GetAccountByID(c *gin.Context) {
	userID, accountID, ok := h.ids(c)
	if !ok {
		return
	}

	account, err := h.accountService.GetAccountByID(c.Request.Context(), userID, accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// DeleteAccount handles DELETE /accounts/:id.
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	userID, accountID, ok := h.ids(c)
	if !ok {
		return
	}

	if err := h.accountService.DeleteAccount(c.Request.Context(), userID, accountID); err != nil {
		respondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DisconnectAccount handles DELETE /accounts/:id/link.
func (h *AccountHandler) DisconnectAccount(c *gin.Context) {
	userID, accountID, ok := h.ids(c)
	if !ok {
		return
	}

	if err := h.accountService.Disconnect(c.Request.Context(), userID, accountID); err != nil {
		respondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetHoldings handles GET /accounts/:id/holdings.
func (h *AccountHandler) GetHoldings(c *gin.Context) {
	userID, accountID, ok := h.ids(c)
	if !ok {
		return
	}

	holdings, err := h.accountService.GetHoldings(c.Request.Context(), userID, accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if holdings == nil {
		holdings = []models.Holding{}
	}

	c.JSON(http.StatusOK, gin.H{"holdings": holdings})
}

// GetActivities handles GET /accounts/:id/activities.
func (h *AccountHandler) GetActivities(c *gin.Context) {
	userID, accountID, ok := h.ids(c)
	if !ok {
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	resp, err := h.accountService.GetActivities(c.Request.Context(), userID, accountID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ids reads the user and account ids, writing the error response itself.
func (h *AccountHandler) ids(c *gin.Context) (string, string, bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return "", "", false
	}
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return "", "", false
	}
	return userID, accountID, true
}
