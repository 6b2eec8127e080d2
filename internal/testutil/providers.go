package testutil

import (
	"context"
	"encoding/json"
	"sync"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
	"wealthsync/internal/providers"
)

// FakeAdapter is a scriptable provider adapter. Nil funcs fall back to one
// account with an empty portfolio, a refresh that is rejected, and a healthy
// item.
type FakeAdapter struct {
	Name models.Provider

	FetchAccountsFn  func(ctx context.Context, creds models.Credentials) ([]providers.RawAccount, error)
	FetchPositionsFn func(ctx context.Context, creds models.Credentials, ref models.AccountRef) (providers.RawPositions, error)
	RefreshFn        func(ctx context.Context, creds models.Credentials) (models.Credentials, error)
	CheckItemFn      func(ctx context.Context, creds models.Credentials) error

	mu            sync.Mutex
	fetchTokens   []string
	refreshCalls  int
	positionCalls int
}

// Provider returns Name, defaulting to demo.
func (f *FakeAdapter) Provider() models.Provider {
	if f.Name == "" {
		return models.ProviderDemo
	}
	return f.Name
}

// FetchAccounts records the access token and delegates to FetchAccountsFn.
func (f *FakeAdapter) FetchAccounts(ctx context.Context, creds models.Credentials) ([]providers.RawAccount, error) {
	f.mu.Lock()
	f.fetchTokens = append(f.fetchTokens, creds.AccessToken)
	f.mu.Unlock()
	if f.FetchAccountsFn != nil {
		return f.FetchAccountsFn(ctx, creds)
	}
	return []providers.RawAccount{providers.DemoAccount{ID: "fake-1", Name: "Fake"}}, nil
}

// FetchPositions delegates to FetchPositionsFn.
func (f *FakeAdapter) FetchPositions(ctx context.Context, creds models.Credentials, ref models.AccountRef) (providers.RawPositions, error) {
	f.mu.Lock()
	f.positionCalls++
	f.mu.Unlock()
	if f.FetchPositionsFn != nil {
		return f.FetchPositionsFn(ctx, creds, ref)
	}
	return providers.DemoPortfolio{}, nil
}

// Refresh counts the call and delegates to RefreshFn.
func (f *FakeAdapter) Refresh(ctx context.Context, creds models.Credentials) (models.Credentials, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()
	if f.RefreshFn != nil {
		return f.RefreshFn(ctx, creds)
	}
	return models.Credentials{}, apperrors.WithMessage(apperrors.ErrProviderAuth, "refresh rejected")
}

// CheckItem delegates to CheckItemFn.
func (f *FakeAdapter) CheckItem(ctx context.Context, creds models.Credentials) error {
	if f.CheckItemFn != nil {
		return f.CheckItemFn(ctx, creds)
	}
	return nil
}

// FetchTokens returns the access tokens seen by FetchAccounts, in order.
func (f *FakeAdapter) FetchTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetchTokens...)
}

// RefreshCalls returns how many times Refresh ran.
func (f *FakeAdapter) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// PositionCalls returns how many times FetchPositions ran.
func (f *FakeAdapter) PositionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positionCalls
}

// Portfolio builds a demo portfolio from symbol/quantity/price triples.
func Portfolio(triples ...string) providers.DemoPortfolio {
	var p providers.DemoPortfolio
	for i := 0; i+2 < len(triples); i += 3 {
		p.Positions = append(p.Positions, providers.DemoPosition{
			Symbol:   triples[i],
			Name:     triples[i] + " Inc.",
			Type:     "equity",
			Quantity: json.Number(triples[i+1]),
			Price:    json.Number(triples[i+2]),
		})
	}
	return p
}
