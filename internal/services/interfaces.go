package services

import (
	"context"

	"github.com/shopspring/decimal"

	"wealthsync/internal/models"
	"wealthsync/internal/pagination"
	"wealthsync/internal/syncer"
)

// CreateAccountInput describes a new account. Balance is only honored for
// manual accounts; linked accounts take their balance from the provider.
type CreateAccountInput struct {
	Name        string
	Provider    models.Provider
	AccountType models.AccountType
	Balance     decimal.Decimal
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(ctx context.Context, userID string, in CreateAccountInput) (*models.Account, error)
	GetUserAccounts(ctx context.Context, userID string) ([]models.Account, error)
	GetAccountByID(ctx context.Context, userID, accountID string) (*models.Account, error)
	DeleteAccount(ctx context.Context, userID, accountID string) error
	Disconnect(ctx context.Context, userID, accountID string) error
	GetHoldings(ctx context.Context, userID, accountID string) ([]models.Holding, error)
	GetActivities(ctx context.Context, userID, accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.Activity], error)
}

// SyncServicer defines the contract for user-triggered syncs.
type SyncServicer interface {
	SyncAccount(ctx context.Context, userID, accountID string) (*syncer.Result, error)
	SyncUserAccounts(ctx context.Context, userID string) ([]*syncer.Result, error)
}

// InvestmentServicer defines the read path for standalone investments.
type InvestmentServicer interface {
	GetRealEstate(ctx context.Context, userID string) ([]models.RealEstateInvestment, error)
	GetVentures(ctx context.Context, userID string) ([]models.VentureInvestment, error)
}

// Orchestrator is the part of syncer.Orchestrator the services depend on.
type Orchestrator interface {
	Sync(ctx context.Context, accountID string) (*syncer.Result, error)
	SyncMany(ctx context.Context, accountIDs []string) []*syncer.Result
}

// CredentialRevoker clears stored provider credentials. Revoke fails with
// ErrSyncInProgress while the account is syncing.
type CredentialRevoker interface {
	Revoke(ctx context.Context, accountID string) error
}
