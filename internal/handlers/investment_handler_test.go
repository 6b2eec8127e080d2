package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"wealthsync/internal/models"
	"wealthsync/internal/services"
)

type mockInvestmentService struct {
	getRealEstateFn func(userID string) ([]models.RealEstateInvestment, error)
	getVenturesFn   func(userID string) ([]models.VentureInvestment, error)
}

func (m *mockInvestmentService) GetRealEstate(_ context.Context, userID string) ([]models.RealEstateInvestment, error) {
	if m.getRealEstateFn != nil {
		return m.getRealEstateFn(userID)
	}
	return nil, nil
}

func (m *mockInvestmentService) GetVentures(_ context.Context, userID string) ([]models.VentureInvestment, error) {
	if m.getVenturesFn != nil {
		return m.getVenturesFn(userID)
	}
	return nil, nil
}

var _ services.InvestmentServicer = (*mockInvestmentService)(nil)

func setupInvestmentRouter(handler *InvestmentHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/investments/real-estate", handler.GetRealEstate)
	auth.GET("/investments/ventures", handler.GetVentures)
	return r
}

func TestInvestmentHandler_GetRealEstate(t *testing.T) {
	svc := &mockInvestmentService{
		getRealEstateFn: func(_ string) ([]models.RealEstateInvestment, error) {
			return []models.RealEstateInvestment{{Name: "Duplex", CurrentValue: decimal.NewFromInt(450000)}}, nil
		},
	}
	r := setupInvestmentRouter(NewInvestmentHandler(svc))

	rec := doRequest(r, http.MethodGet, "/investments/real-estate", "")
	assertStatus(t, rec, http.StatusOK)

	properties := parseJSON(t, rec)["real_estate"].([]interface{})
	if len(properties) != 1 {
		t.Errorf("expected 1 property, got %d", len(properties))
	}
}

func TestInvestmentHandler_GetVentures(t *testing.T) {
	r := setupInvestmentRouter(NewInvestmentHandler(&mockInvestmentService{}))

	rec := doRequest(r, http.MethodGet, "/investments/ventures", "")
	assertStatus(t, rec, http.StatusOK)

	ventures, ok := parseJSON(t, rec)["ventures"].([]interface{})
	if !ok || len(ventures) != 0 {
		t.Errorf("expected empty ventures array, got %v", parseJSON(t, rec)["ventures"])
	}
}
