package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"wealthsync/internal/models"
	"wealthsync/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewUserID returns a fresh owner id. There is no users table; ownership is
// carried by the id in the bearer token.
func NewUserID() string {
	return uuid.New()
}

// AccountOption customizes a fixture account before it is inserted.
type AccountOption func(*models.Account)

// WithProvider sets the account provider.
func WithProvider(p models.Provider) AccountOption {
	return func(a *models.Account) { a.Provider = p }
}

// WithCredentials marks the account connected with the given tokens.
func WithCredentials(access, refresh string, expiry *time.Time) AccountOption {
	return func(a *models.Account) {
		a.AccessToken = access
		a.RefreshToken = refresh
		a.TokenExpiry = expiry
		a.IsConnected = true
	}
}

// WithRef sets the provider-native identifiers.
func WithRef(idKey, externalID string) AccountOption {
	return func(a *models.Account) {
		a.AccountIDKey = idKey
		a.ExternalAccountID = externalID
	}
}

// CreateTestAccount inserts a connected demo account owned by userID.
// Tokens are written as given, bypassing any encryption.
func CreateTestAccount(t *testing.T, db *gorm.DB, userID string, opts ...AccountOption) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID:      userID,
		Name:        fmt.Sprintf("Test Account %d", nextID()),
		Provider:    models.ProviderDemo,
		AccountType: models.AccountTypeBrokerage,
		Balance:     decimal.Zero,
		AccessToken: "demo-token",
		IsConnected: true,
	}
	for _, opt := range opts {
		opt(account)
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestHolding inserts a holding for the given account and symbol.
func CreateTestHolding(t *testing.T, db *gorm.DB, accountID, symbol string, shares, price string) *models.Holding {
	t.Helper()

	s := decimal.RequireFromString(shares)
	p := decimal.RequireFromString(price)
	h := &models.Holding{
		AccountID:    accountID,
		Symbol:       symbol,
		Name:         symbol + " Inc.",
		Shares:       s,
		CurrentPrice: p,
		TotalValue:   s.Mul(p).Round(2),
		Category:     models.CategoryStocks,
	}
	if err := db.Create(h).Error; err != nil {
		t.Fatalf("failed to create test holding: %v", err)
	}
	return h
}

// CreateTestActivity appends a sync activity for the given account.
func CreateTestActivity(t *testing.T, db *gorm.DB, accountID string) *models.Activity {
	t.Helper()

	a := &models.Activity{
		AccountID:   accountID,
		Type:        models.ActivitySync,
		Description: fmt.Sprintf("fixture activity %d", nextID()),
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("failed to create test activity: %v", err)
	}
	return a
}

// CountRows returns the number of rows of model matching accountID.
func CountRows(t *testing.T, db *gorm.DB, model interface{}, accountID string) int64 {
	t.Helper()

	var n int64
	if err := db.Model(model).Where("account_id = ?", accountID).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}
