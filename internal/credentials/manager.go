// Package credentials keeps provider tokens usable: it detects expiry,
// refreshes before use, and persists rotated tokens before handing them out.
package credentials

import (
	"context"
	"fmt"
	"time"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/lock"
	"wealthsync/internal/logger"
	"wealthsync/internal/models"
	"wealthsync/internal/providers"
	"wealthsync/internal/repository"
)

// DefaultLeeway is how long before the recorded expiry a token is already
// treated as expired.
const DefaultLeeway = 60 * time.Second

// Manager is the only writer of credential columns outside the link and
// disconnect paths of the orchestrator.
type Manager struct {
	repo     repository.Repository
	registry *providers.Registry
	locker   lock.Locker
	leeway   time.Duration
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLeeway overrides DefaultLeeway.
func WithLeeway(d time.Duration) Option {
	return func(m *Manager) { m.leeway = d }
}

// NewManager creates a credential manager.
func NewManager(repo repository.Repository, registry *providers.Registry, locker lock.Locker, opts ...Option) *Manager {
	m := &Manager{
		repo:     repo,
		registry: registry,
		locker:   locker,
		leeway:   DefaultLeeway,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureValid returns credentials that are usable now. Expired tokens are
// refreshed and persisted first; tokens without expiry are probed when the
// provider supports it.
func (m *Manager) EnsureValid(ctx context.Context, account *models.Account) (models.Credentials, error) {
	adapter, err := m.registry.Get(account.Provider)
	if err != nil {
		return models.Credentials{}, err
	}

	creds := account.Credentials()
	if !creds.Present() {
		return models.Credentials{}, apperrors.WithMessage(apperrors.ErrProviderNotConfigured,
			fmt.Sprintf("account is not linked to %s", account.Provider))
	}

	if !creds.ExpiredAt(m.now(), m.leeway) {
		if checker, ok := adapter.(providers.HealthChecker); ok && creds.Expiry == nil {
			if err := checker.CheckItem(ctx, creds); err != nil {
				return models.Credentials{}, err
			}
		}
		return creds, nil
	}

	refresher, ok := adapter.(providers.Refresher)
	if !ok || !creds.Refreshable() {
		return models.Credentials{}, apperrors.WithMessage(apperrors.ErrProviderAuth,
			fmt.Sprintf("%s: access token expired and cannot be refreshed", account.Provider))
	}
	return m.refresh(ctx, account.ID, account.Provider, refresher)
}

// refresh runs at most once per expiry: concurrent callers wait on the
// per-account lock and then find the rotated token already stored.
func (m *Manager) refresh(ctx context.Context, accountID string, provider models.Provider, refresher providers.Refresher) (models.Credentials, error) {
	unlock, err := m.locker.Lock(ctx, "credentials:"+accountID)
	if err != nil {
		return models.Credentials{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	defer unlock()

	current, err := m.repo.GetAccount(ctx, accountID)
	if err != nil {
		return models.Credentials{}, err
	}
	creds := current.Credentials()
	if creds.Present() && !creds.ExpiredAt(m.now(), m.leeway) {
		return creds, nil
	}
	if !creds.Refreshable() {
		return models.Credentials{}, apperrors.WithMessage(apperrors.ErrProviderAuth,
			fmt.Sprintf("%s: access token expired and cannot be refreshed", provider))
	}

	fresh, err := refresher.Refresh(ctx, creds)
	if err != nil {
		return models.Credentials{}, err
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = creds.RefreshToken
	}
	if fresh.TokenSecret == "" {
		fresh.TokenSecret = creds.TokenSecret
	}

	if _, err := m.repo.UpdateAccount(ctx, accountID, repository.AccountUpdate{Credentials: &fresh}); err != nil {
		return models.Credentials{}, err
	}

	logger.ForAccount(accountID, string(provider)).Infow("Credentials refreshed", "expires_at", fresh.Expiry)
	return fresh, nil
}

// Store persists credentials obtained by a link flow and marks the account
// connected. ref is written only when it carries an identifier. Callers hold
// the account's sync lock.
func (m *Manager) Store(ctx context.Context, accountID string, creds models.Credentials, ref models.AccountRef) (*models.Account, error) {
	if !creds.Present() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "credentials must include an access token")
	}
	connected := true
	update := repository.AccountUpdate{Credentials: &creds, IsConnected: &connected}
	if !ref.Empty() {
		update.Ref = &ref
	}
	return m.repo.UpdateAccount(ctx, accountID, update)
}

// Revoke clears every credential column and marks the account disconnected.
// Callers hold the account's sync lock.
func (m *Manager) Revoke(ctx context.Context, accountID string) error {
	connected := false
	_, err := m.repo.UpdateAccount(ctx, accountID, repository.AccountUpdate{
		Credentials: &models.Credentials{},
		IsConnected: &connected,
	})
	return err
}
