// Package linking runs the interactive flows that connect an account to its
// provider: OAuth1 request/verify, OAuth2 authorization code, and aggregator
// public-token exchange.
package linking

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/logger"
	"wealthsync/internal/models"
	"wealthsync/internal/providers"
	"wealthsync/internal/repository"
	"wealthsync/internal/syncer"
)

// DefaultSessionTTL bounds how long a started link can be completed.
const DefaultSessionTTL = 15 * time.Minute

// DemoAccessToken is stored for accounts linked to the demo provider.
const DemoAccessToken = "demo-token"

// Method tells the client how to continue a link.
type Method string

const (
	MethodOAuth1    Method = "oauth1"
	MethodOAuth2    Method = "oauth2"
	MethodLinkToken Method = "link_token"
	// MethodImmediate means the account was connected without user consent.
	MethodImmediate Method = "immediate"
)

// Connector stores credentials and runs the first sync.
type Connector interface {
	Connect(ctx context.Context, accountID string, creds models.Credentials, ref models.AccountRef) (*syncer.Result, error)
}

// Start is returned when a link begins.
type Start struct {
	SessionID        string          `json:"session_id,omitempty"`
	Provider         models.Provider `json:"provider"`
	Method           Method          `json:"method"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
	State            string          `json:"state,omitempty"`
	LinkToken        string          `json:"link_token,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	Result           *syncer.Result  `json:"result,omitempty"`
}

// Completion carries what the user brought back from the provider. Which
// field is required depends on the session's method.
type Completion struct {
	Verifier    string `json:"oauth_verifier"`
	Code        string `json:"code"`
	State       string `json:"state"`
	PublicToken string `json:"public_token"`
}

// Service starts and completes link flows.
type Service struct {
	repo      repository.Repository
	registry  *providers.Registry
	connector Connector
	ttl       time.Duration
	now       func() time.Time
}

// NewService creates a link service. A non-positive ttl selects
// DefaultSessionTTL.
func NewService(repo repository.Repository, registry *providers.Registry, connector Connector, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		repo:      repo,
		registry:  registry,
		connector: connector,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start begins linking accountID. Demo accounts are connected immediately.
func (s *Service) Start(ctx context.Context, userID, accountID string) (*Start, error) {
	account, err := s.ownedAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if account.Provider == models.ProviderManual {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "manual accounts cannot be linked")
	}
	adapter, err := s.registry.Get(account.Provider)
	if err != nil {
		return nil, err
	}

	session := &models.LinkSession{
		UserID:    userID,
		AccountID: accountID,
		Provider:  account.Provider,
		ExpiresAt: s.now().Add(s.ttl),
	}
	start := &Start{Provider: account.Provider}

	switch linker := adapter.(type) {
	case providers.OAuth1Linker:
		token, err := linker.RequestToken(ctx)
		if err != nil {
			return nil, err
		}
		session.RequestToken = token.Token
		session.RequestSecret = token.Secret
		start.Method = MethodOAuth1
		start.AuthorizationURL = linker.AuthorizationURL(token)
	case providers.OAuth2Linker:
		state, err := generateState()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		session.State = state
		start.Method = MethodOAuth2
		start.State = state
		start.AuthorizationURL = linker.AuthCodeURL(state)
	case providers.TokenExchangeLinker:
		token, err := linker.CreateLinkToken(ctx, userID)
		if err != nil {
			return nil, err
		}
		session.RequestToken = token.Token
		if !token.Expiration.IsZero() && token.Expiration.Before(session.ExpiresAt) {
			session.ExpiresAt = token.Expiration.UTC()
		}
		start.Method = MethodLinkToken
		start.LinkToken = token.Token
	default:
		result, err := s.connector.Connect(ctx, accountID, models.Credentials{AccessToken: DemoAccessToken}, models.AccountRef{})
		start.Method = MethodImmediate
		start.Result = result
		return start, err
	}

	if err := s.repo.CreateLinkSession(ctx, session); err != nil {
		return nil, err
	}
	start.SessionID = session.ID
	start.ExpiresAt = &session.ExpiresAt

	logger.ForAccount(accountID, string(account.Provider)).Infow("Link started",
		"session_id", session.ID, "method", start.Method)
	return start, nil
}

// Complete finishes the link started by sessionID, stores the credentials
// and runs the first sync. A failed exchange leaves the session usable until
// it expires.
func (s *Service) Complete(ctx context.Context, userID, sessionID string, c Completion) (*syncer.Result, error) {
	session, err := s.repo.GetLinkSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, apperrors.ErrLinkSessionNotFound
	}
	if session.Expired(s.now()) {
		if err := s.repo.DeleteLinkSession(ctx, session.ID); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrLinkSessionNotFound
	}

	adapter, err := s.registry.Get(session.Provider)
	if err != nil {
		return nil, err
	}

	var (
		creds models.Credentials
		ref   models.AccountRef
	)
	switch linker := adapter.(type) {
	case providers.OAuth1Linker:
		if c.Verifier == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "oauth_verifier is required")
		}
		creds, err = linker.AccessToken(ctx, providers.RequestToken{Token: session.RequestToken, Secret: session.RequestSecret}, c.Verifier)
	case providers.OAuth2Linker:
		if c.Code == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "code is required")
		}
		if subtle.ConstantTimeCompare([]byte(c.State), []byte(session.State)) != 1 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "state does not match the link session")
		}
		creds, err = linker.Exchange(ctx, c.Code)
	case providers.TokenExchangeLinker:
		if c.PublicToken == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "public_token is required")
		}
		creds, ref, err = linker.ExchangePublicToken(ctx, c.PublicToken)
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("%s accounts do not use link sessions", session.Provider))
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteLinkSession(ctx, session.ID); err != nil {
		return nil, err
	}
	logger.ForAccount(session.AccountID, string(session.Provider)).Infow("Link completed", "session_id", session.ID)
	return s.connector.Connect(ctx, session.AccountID, creds, ref)
}

// ownedAccount hides accounts of other users behind NotFound.
func (s *Service) ownedAccount(ctx context.Context, userID, accountID string) (*models.Account, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, apperrors.ErrAccountNotFound
	}
	return account, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
