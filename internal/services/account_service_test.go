package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
	"wealthsync/internal/pagination"
	"wealthsync/internal/repository"
	"wealthsync/internal/testutil"
)

type recordingRevoker struct {
	revoked []string
}

func (r *recordingRevoker) Revoke(_ context.Context, accountID string) error {
	r.revoked = append(r.revoked, accountID)
	return nil
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("manual_with_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(repository.New(db), &recordingRevoker{})
		user := testutil.NewUserID()

		account, err := svc.CreateAccount(ctx, user, CreateAccountInput{
			Name:    "  Old 401k  ",
			Balance: decimal.RequireFromString("1234.567"),
		})
		testutil.AssertNoError(t, err)

		if account.ID == "" {
			t.Fatal("expected an account ID")
		}
		if account.Name != "Old 401k" {
			t.Errorf("expected trimmed name, got %q", account.Name)
		}
		if account.Provider != models.ProviderManual || account.AccountType != models.AccountTypeIndividual {
			t.Errorf("unexpected defaults provider=%s type=%s", account.Provider, account.AccountType)
		}
		testutil.AssertDecimal(t, "balance", account.Balance, "1234.57")
		if account.IsConnected {
			t.Error("new accounts are not connected")
		}
	})

	t.Run("provider_account_ignores_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(repository.New(db), &recordingRevoker{})

		account, err := svc.CreateAccount(ctx, testutil.NewUserID(), CreateAccountInput{
			Name:        "Brokerage",
			Provider:    models.ProviderSchwab,
			AccountType: models.AccountTypeBrokerage,
			Balance:     decimal.NewFromInt(500),
		})
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "balance", account.Balance, "0")
	})

	t.Run("invalid_input", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(repository.New(db), &recordingRevoker{})

		tests := []struct {
			name string
			in   CreateAccountInput
		}{
			{"empty_name", CreateAccountInput{Name: " "}},
			{"unknown_provider", CreateAccountInput{Name: "x", Provider: "fidelity"}},
			{"unknown_account_type", CreateAccountInput{Name: "x", AccountType: "checking"}},
			{"negative_balance", CreateAccountInput{Name: "x", Balance: decimal.NewFromInt(-1)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.CreateAccount(ctx, testutil.NewUserID(), tt.in)
				testutil.AssertAppError(t, err, apperrors.ErrInvalidInput.Code)
			})
		}
	})
}

func TestAccountOwnership(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	revoker := &recordingRevoker{}
	svc := NewAccountService(repository.New(db), revoker)
	owner := testutil.NewUserID()
	stranger := testutil.NewUserID()
	account := testutil.CreateTestAccount(t, db, owner)

	t.Run("owner_sees_account", func(t *testing.T) {
		got, err := svc.GetAccountByID(ctx, owner, account.ID)
		testutil.AssertNoError(t, err)
		if got.ID != account.ID {
			t.Errorf("expected %s, got %s", account.ID, got.ID)
		}
	})

	t.Run("stranger_gets_not_found", func(t *testing.T) {
		_, err := svc.GetAccountByID(ctx, stranger, account.ID)
		testutil.AssertAppError(t, err, apperrors.ErrAccountNotFound.Code)
		_, err = svc.GetHoldings(ctx, stranger, account.ID)
		testutil.AssertAppError(t, err, apperrors.ErrAccountNotFound.Code)
		err = svc.DeleteAccount(ctx, stranger, account.ID)
		testutil.AssertAppError(t, err, apperrors.ErrAccountNotFound.Code)
		err = svc.Disconnect(ctx, stranger, account.ID)
		testutil.AssertAppError(t, err, apperrors.ErrAccountNotFound.Code)
		if len(revoker.revoked) != 0 {
			t.Error("stranger must not revoke credentials")
		}
	})

	t.Run("list_is_scoped", func(t *testing.T) {
		testutil.CreateTestAccount(t, db, stranger)
		accounts, err := svc.GetUserAccounts(ctx, owner)
		testutil.AssertNoError(t, err)
		if len(accounts) != 1 || accounts[0].ID != account.ID {
			t.Errorf("expected only the owner's account, got %d", len(accounts))
		}
	})
}

func TestHoldingsAndActivities(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAccountService(repository.New(db), &recordingRevoker{})
	user := testutil.NewUserID()
	account := testutil.CreateTestAccount(t, db, user)
	testutil.CreateTestHolding(t, db, account.ID, "AAPL", "10", "150")
	testutil.CreateTestHolding(t, db, account.ID, "VTI", "2", "250")
	for i := 0; i < 3; i++ {
		testutil.CreateTestActivity(t, db, account.ID)
	}

	holdings, err := svc.GetHoldings(ctx, user, account.ID)
	testutil.AssertNoError(t, err)
	if len(holdings) != 2 {
		t.Errorf("expected 2 holdings, got %d", len(holdings))
	}

	page, err := svc.GetActivities(ctx, user, account.ID, pagination.PageRequest{Page: 1, PageSize: 2})
	testutil.AssertNoError(t, err)
	if len(page.Data) != 2 || page.TotalItems != 3 || page.TotalPages != 2 {
		t.Errorf("unexpected page %+v", page)
	}

	page, err = svc.GetActivities(ctx, user, account.ID, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if len(page.Data) != 3 {
		t.Errorf("default page should hold all 3 activities, got %d", len(page.Data))
	}
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAccountService(repository.New(db), &recordingRevoker{})
	user := testutil.NewUserID()
	account := testutil.CreateTestAccount(t, db, user)
	testutil.CreateTestHolding(t, db, account.ID, "AAPL", "1", "1")
	testutil.CreateTestActivity(t, db, account.ID)

	testutil.AssertNoError(t, svc.DeleteAccount(ctx, user, account.ID))

	if n := testutil.CountRows(t, db, &models.Holding{}, account.ID); n != 0 {
		t.Errorf("holdings left behind: %d", n)
	}
	if n := testutil.CountRows(t, db, &models.Activity{}, account.ID); n != 0 {
		t.Errorf("activities left behind: %d", n)
	}
	_, err := svc.GetAccountByID(ctx, user, account.ID)
	testutil.AssertAppError(t, err, apperrors.ErrAccountNotFound.Code)
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	revoker := &recordingRevoker{}
	svc := NewAccountService(repository.New(db), revoker)
	user := testutil.NewUserID()

	linked := testutil.CreateTestAccount(t, db, user)
	testutil.AssertNoError(t, svc.Disconnect(ctx, user, linked.ID))
	if len(revoker.revoked) != 1 || revoker.revoked[0] != linked.ID {
		t.Errorf("revoked = %v", revoker.revoked)
	}

	manual := testutil.CreateTestAccount(t, db, user, testutil.WithProvider(models.ProviderManual))
	err := svc.Disconnect(ctx, user, manual.ID)
	testutil.AssertAppError(t, err, apperrors.ErrInvalidInput.Code)
}
