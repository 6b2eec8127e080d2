package services

import (
	"context"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
	"wealthsync/internal/repository"
	"wealthsync/internal/syncer"
)

// syncService checks ownership before handing accounts to the orchestrator.
type syncService struct {
	repo         repository.Repository
	orchestrator Orchestrator
}

// NewSyncService creates a new SyncServicer.
func NewSyncService(repo repository.Repository, orchestrator Orchestrator) SyncServicer {
	return &syncService{repo: repo, orchestrator: orchestrator}
}

// SyncAccount syncs one account owned by userID.
func (s *syncService) SyncAccount(ctx context.Context, userID, accountID string) (*syncer.Result, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, apperrors.ErrAccountNotFound
	}
	if account.Provider == models.ProviderManual {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "manual accounts are not synced")
	}
	return s.orchestrator.Sync(ctx, accountID)
}

// SyncUserAccounts syncs every connected provider account of userID.
// Per-account failures are reported in the results, not as an error.
func (s *syncService) SyncUserAccounts(ctx context.Context, userID string) ([]*syncer.Result, error) {
	accounts, err := s.repo.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if a.Provider != models.ProviderManual && a.IsConnected {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) == 0 {
		return []*syncer.Result{}, nil
	}
	return s.orchestrator.SyncMany(ctx, ids), nil
}
