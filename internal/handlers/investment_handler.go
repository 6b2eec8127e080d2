package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wealthsync/internal/models"
	"wealthsync/internal/services"
)

// InvestmentHandler serves standalone real estate and venture investments.
type InvestmentHandler struct {
	investmentService services.InvestmentServicer
}

// NewInvestmentHandler creates a new InvestmentHandler.
func NewInvestmentHandler(investmentService services.InvestmentServicer) *InvestmentHandler {
	return &InvestmentHandler{investmentService: investmentService}
}

// GetRealEstate handles GET /investments/real-estate.
func (h *InvestmentHandler) GetRealEstate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	properties, err := h.investmentService.GetRealEstate(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if properties == nil {
		properties = []models.RealEstateInvestment{}
	}

	c.JSON(http.StatusOK, gin.H{"real_estate": properties})
}

// GetVentures handles GET /investments/ventures.
func (h *InvestmentHandler) GetVentures(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ventures, err := h.investmentService.GetVentures(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if ventures == nil {
		ventures = []models.VentureInvestment{}
	}

	c.JSON(http.StatusOK, gin.H{"ventures": ventures})
}
