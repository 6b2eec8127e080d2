package services

import (
	"context"

	"wealthsync/internal/models"
	"wealthsync/internal/repository"
)

// investmentService serves the read path of standalone investments.
type investmentService struct {
	repo repository.Repository
}

// NewInvestmentService creates a new InvestmentServicer.
func NewInvestmentService(repo repository.Repository) InvestmentServicer {
	return &investmentService{repo: repo}
}

func (s *investmentService) GetRealEstate(ctx context.Context, userID string) ([]models.RealEstateInvestment, error) {
	return s.repo.ListRealEstate(ctx, userID)
}

func (s *investmentService) GetVentures(ctx context.Context, userID string) ([]models.VentureInvestment, error) {
	return s.repo.ListVentures(ctx, userID)
}
