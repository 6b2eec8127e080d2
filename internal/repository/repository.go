// Package repository is the persistence contract of the sync core and its
// gorm implementation.
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"wealthsync/internal/models"
	"wealthsync/internal/pagination"
)

// AccountUpdate is a partial account update. Nil fields are left untouched.
// Credentials replaces all four credential columns in one statement, so a
// rotation is never observed half-applied; pass a zero Credentials to clear.
type AccountUpdate struct {
	Name        *string
	AccountType *models.AccountType
	Balance     *decimal.Decimal
	IsConnected *bool
	Credentials *models.Credentials
	Ref         *models.AccountRef
}

// HoldingUpdate is a partial holding update. Nil fields are left untouched.
type HoldingUpdate struct {
	Name          *string
	Shares        *decimal.Decimal
	CurrentPrice  *decimal.Decimal
	TotalValue    *decimal.Decimal
	Category      *models.Category
	ChangePercent *decimal.Decimal
}

// Repository is the storage contract consumed by the sync core and the HTTP
// layer. Not-found lookups return an AppError of kind NotFound.
type Repository interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccountsByUser(ctx context.Context, userID string) ([]models.Account, error)
	ListConnectedAccounts(ctx context.Context) ([]models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	// UpdateAccount applies a partial update and always stamps last_sync
	// with the repository clock.
	UpdateAccount(ctx context.Context, id string, update AccountUpdate) (*models.Account, error)
	// DeleteAccount removes the account with its holdings, activities and
	// link sessions in one transaction.
	DeleteAccount(ctx context.Context, id string) error

	GetHoldingsByAccount(ctx context.Context, accountID string) ([]models.Holding, error)
	CreateHolding(ctx context.Context, holding *models.Holding) error
	UpdateHolding(ctx context.Context, id string, update HoldingUpdate) error
	DeleteHolding(ctx context.Context, id string) error

	CreateActivity(ctx context.Context, activity *models.Activity) error
	GetActivitiesByAccount(ctx context.Context, accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.Activity], error)

	CreateLinkSession(ctx context.Context, session *models.LinkSession) error
	GetLinkSession(ctx context.Context, id string) (*models.LinkSession, error)
	DeleteLinkSession(ctx context.Context, id string) error
	DeleteExpiredLinkSessions(ctx context.Context, now time.Time) (int64, error)

	ListRealEstate(ctx context.Context, userID string) ([]models.RealEstateInvestment, error)
	ListVentures(ctx context.Context, userID string) ([]models.VentureInvestment, error)

	// Transaction runs fn against a repository bound to one database
	// transaction. fn's error rolls everything back.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}
