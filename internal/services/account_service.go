package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/logger"
	"wealthsync/internal/models"
	"wealthsync/internal/pagination"
	"wealthsync/internal/repository"
)

// accountService handles account-related business logic.
type accountService struct {
	repo    repository.Repository
	revoker CredentialRevoker
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(repo repository.Repository, revoker CredentialRevoker) AccountServicer {
	return &accountService{repo: repo, revoker: revoker}
}

// CreateAccount creates an account owned by userID. Provider accounts start
// disconnected with a zero balance until they are linked.
func (s *accountService) CreateAccount(ctx context.Context, userID string, in CreateAccountInput) (*models.Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	if in.Provider == "" {
		in.Provider = models.ProviderManual
	}
	if !in.Provider.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown provider "+string(in.Provider))
	}
	if in.AccountType == "" {
		in.AccountType = models.AccountTypeIndividual
	}
	if !in.AccountType.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown account type "+string(in.AccountType))
	}

	balance := decimal.Zero
	if in.Provider == models.ProviderManual {
		if in.Balance.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "balance must not be negative")
		}
		balance = in.Balance.Round(2)
	}

	account := &models.Account{
		UserID:      userID,
		Name:        name,
		Provider:    in.Provider,
		AccountType: in.AccountType,
		Balance:     balance,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetUserAccounts lists the user's accounts, oldest first.
func (s *accountService) GetUserAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	return s.repo.ListAccountsByUser(ctx, userID)
}

// GetAccountByID returns the account if it belongs to userID. Accounts of
// other users are reported as not found.
func (s *accountService) GetAccountByID(ctx context.Context, userID, accountID string) (*models.Account, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, apperrors.ErrAccountNotFound
	}
	return account, nil
}

// DeleteAccount removes the account with its holdings and activities.
func (s *accountService) DeleteAccount(ctx context.Context, userID, accountID string) error {
	if _, err := s.GetAccountByID(ctx, userID, accountID); err != nil {
		return err
	}
	if err := s.repo.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	logger.Get().Infow("Account deleted", "account_id", accountID, "user_id", userID)
	return nil
}

// Disconnect clears the account's provider credentials. Holdings are kept.
func (s *accountService) Disconnect(ctx context.Context, userID, accountID string) error {
	account, err := s.GetAccountByID(ctx, userID, accountID)
	if err != nil {
		return err
	}
	if account.Provider == models.ProviderManual {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "manual accounts are not linked")
	}
	return s.revoker.Revoke(ctx, accountID)
}

// GetHoldings returns the account's holdings.
func (s *accountService) GetHoldings(ctx context.Context, userID, accountID string) ([]models.Holding, error) {
	if _, err := s.GetAccountByID(ctx, userID, accountID); err != nil {
		return nil, err
	}
	return s.repo.GetHoldingsByAccount(ctx, accountID)
}

// GetActivities returns a page of the account's activity log, newest first.
func (s *accountService) GetActivities(ctx context.Context, userID, accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.Activity], error) {
	if _, err := s.GetAccountByID(ctx, userID, accountID); err != nil {
		return nil, err
	}
	page.Defaults()
	return s.repo.GetActivitiesByAccount(ctx, accountID, page)
}
