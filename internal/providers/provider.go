// Package providers defines the contract every brokerage or aggregator
// adapter satisfies and holds one adapter per supported institution.
//
// Adapters only move data: they authenticate requests, call the remote API and
// decode its payloads into provider-specific raw types. Translation into
// holdings happens in the normalize package; persistence happens in syncer.
package providers

import (
	"context"
	"fmt"
	"time"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
)

// RawAccount is an account as the provider describes it. The set of
// implementations is closed to this package.
type RawAccount interface {
	// Ref returns the identifiers needed to address the account again.
	Ref() models.AccountRef
	rawAccount()
}

// RawPositions is the positions payload for one account. The set of
// implementations is closed to this package.
type RawPositions interface {
	rawPositions()
}

// Adapter fetches accounts and positions from one provider.
type Adapter interface {
	Provider() models.Provider
	FetchAccounts(ctx context.Context, creds models.Credentials) ([]RawAccount, error)
	FetchPositions(ctx context.Context, creds models.Credentials, ref models.AccountRef) (RawPositions, error)
}

// Refresher is implemented by adapters whose access tokens can be renewed
// with a refresh token.
type Refresher interface {
	Refresh(ctx context.Context, creds models.Credentials) (models.Credentials, error)
}

// HealthChecker is implemented by adapters whose tokens have no expiry and
// must be probed instead.
type HealthChecker interface {
	CheckItem(ctx context.Context, creds models.Credentials) error
}

// RequestToken is a temporary OAuth1 token pair issued before user consent.
type RequestToken struct {
	Token  string
	Secret string
}

// OAuth1Linker links accounts with the three-legged OAuth1 flow.
type OAuth1Linker interface {
	RequestToken(ctx context.Context) (RequestToken, error)
	AuthorizationURL(token RequestToken) string
	AccessToken(ctx context.Context, token RequestToken, verifier string) (models.Credentials, error)
}

// OAuth2Linker links accounts with the authorization code flow.
type OAuth2Linker interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (models.Credentials, error)
}

// LinkToken is a short-lived token used to open an aggregator's link widget.
type LinkToken struct {
	Token      string
	Expiration time.Time
}

// TokenExchangeLinker links accounts by exchanging a public token produced
// by the aggregator's client widget.
type TokenExchangeLinker interface {
	CreateLinkToken(ctx context.Context, userID string) (LinkToken, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (models.Credentials, models.AccountRef, error)
}

// SelectAccount picks the remote account matching the stored identifiers.
// With no stored identifiers the first account is used. An account id is
// preferred over the account key because aggregator items share one key
// across several accounts.
func SelectAccount(provider models.Provider, accounts []RawAccount, stored models.AccountRef) (RawAccount, error) {
	if len(accounts) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrProviderSchema,
			fmt.Sprintf("%s: no accounts returned", provider))
	}
	if stored.Empty() {
		return accounts[0], nil
	}
	for _, acct := range accounts {
		ref := acct.Ref()
		if stored.ExternalAccountID != "" {
			if ref.ExternalAccountID == stored.ExternalAccountID {
				return acct, nil
			}
			continue
		}
		if ref.AccountIDKey == stored.AccountIDKey {
			return acct, nil
		}
	}
	return nil, apperrors.WithMessage(apperrors.ErrProviderSchema,
		fmt.Sprintf("%s: linked account is no longer returned by the provider", provider))
}

// Registry resolves the adapter for a provider.
type Registry struct {
	adapters map[models.Provider]Adapter
}

// NewRegistry builds a registry over the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

// Get returns the adapter for p, or a configuration error when the provider
// is unknown, manual, or was not configured at startup.
func (r *Registry) Get(p models.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrProviderNotConfigured,
			fmt.Sprintf("provider %s is not configured", p))
	}
	return a, nil
}

// Providers lists the registered providers.
func (r *Registry) Providers() []models.Provider {
	out := make([]models.Provider, 0, len(r.adapters))
	for _, p := range models.Providers {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
