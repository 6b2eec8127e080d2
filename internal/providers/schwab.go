package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"wealthsync/internal/config"
	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
)

const schwabBaseURL = "https://api.schwabapi.com"

// SchwabAccountNumber pairs a plain account number with the hash used to
// address it in trader API URLs.
type SchwabAccountNumber struct {
	AccountNumber string `json:"accountNumber"`
	HashValue     string `json:"hashValue"`
}

func (SchwabAccountNumber) rawAccount() {}

// Ref returns the account hash as key and the account number as id.
func (a SchwabAccountNumber) Ref() models.AccountRef {
	return models.AccountRef{AccountIDKey: a.HashValue, ExternalAccountID: a.AccountNumber}
}

// SchwabAccount is the trader API account payload with positions.
type SchwabAccount struct {
	SecuritiesAccount SchwabSecuritiesAccount `json:"securitiesAccount"`
}

func (SchwabAccount) rawPositions() {}

// SchwabSecuritiesAccount is the body of a SchwabAccount.
type SchwabSecuritiesAccount struct {
	Type            string           `json:"type"`
	AccountNumber   string           `json:"accountNumber"`
	Positions       []SchwabPosition `json:"positions"`
	CurrentBalances SchwabBalances   `json:"currentBalances"`
}

// SchwabBalances holds the current balances of an account.
type SchwabBalances struct {
	LiquidationValue json.Number `json:"liquidationValue"`
	CashBalance      json.Number `json:"cashBalance"`
}

// SchwabPosition is one position of a Schwab account.
type SchwabPosition struct {
	LongQuantity                   json.Number      `json:"longQuantity"`
	ShortQuantity                  json.Number      `json:"shortQuantity"`
	AveragePrice                   json.Number      `json:"averagePrice"`
	MarketValue                    json.Number      `json:"marketValue"`
	CurrentDayProfitLossPercentage json.Number      `json:"currentDayProfitLossPercentage"`
	Instrument                     SchwabInstrument `json:"instrument"`
}

// SchwabInstrument describes the security of a position.
type SchwabInstrument struct {
	AssetType   string `json:"assetType"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// SchwabAdapter talks to the Schwab trader API using OAuth2 bearer tokens.
type SchwabAdapter struct {
	client       *apiClient
	clientID     string
	clientSecret string
	redirectURI  string
	baseURL      string // overridable for tests
}

// NewSchwabAdapter creates a Schwab adapter. cfg must already be valid.
func NewSchwabAdapter(cfg config.SchwabConfig, opts ClientOptions) *SchwabAdapter {
	return &SchwabAdapter{
		client:       newAPIClient(models.ProviderSchwab, opts),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		baseURL:      schwabBaseURL,
	}
}

// Provider returns models.ProviderSchwab.
func (a *SchwabAdapter) Provider() models.Provider { return models.ProviderSchwab }

func (a *SchwabAdapter) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		RedirectURL:  a.redirectURI,
		Scopes:       []string{"readonly"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.baseURL + "/v1/oauth/authorize",
			TokenURL:  a.baseURL + "/v1/oauth/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// oauthContext routes token requests through the adapter's HTTP client.
func (a *SchwabAdapter) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.client.http)
}

// AuthCodeURL returns the consent page URL carrying state.
func (a *SchwabAdapter) AuthCodeURL(state string) string {
	return a.oauthConfig().AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens.
func (a *SchwabAdapter) Exchange(ctx context.Context, code string) (models.Credentials, error) {
	if code == "" {
		return models.Credentials{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "authorization code is required")
	}
	if err := a.client.limiter.Wait(ctx); err != nil {
		return models.Credentials{}, a.client.transportError(err)
	}
	tok, err := a.oauthConfig().Exchange(a.oauthContext(ctx), code)
	if err != nil {
		return models.Credentials{}, a.tokenError(err)
	}
	return credentialsFromToken(tok), nil
}

// Refresh renews the access token with the stored refresh token. A rejected
// refresh token is an auth error.
func (a *SchwabAdapter) Refresh(ctx context.Context, creds models.Credentials) (models.Credentials, error) {
	if !creds.Refreshable() {
		return models.Credentials{}, apperrors.WithMessage(apperrors.ErrProviderAuth,
			fmt.Sprintf("%s: no refresh token stored", models.ProviderSchwab))
	}
	if err := a.client.limiter.Wait(ctx); err != nil {
		return models.Credentials{}, a.client.transportError(err)
	}
	stale := &oauth2.Token{RefreshToken: creds.RefreshToken, Expiry: time.Unix(1, 0)}
	tok, err := a.oauthConfig().TokenSource(a.oauthContext(ctx), stale).Token()
	if err != nil {
		return models.Credentials{}, a.tokenError(err)
	}
	return credentialsFromToken(tok), nil
}

// FetchAccounts lists the account numbers the token may read.
func (a *SchwabAdapter) FetchAccounts(ctx context.Context, creds models.Credentials) ([]RawAccount, error) {
	req, err := a.newRequest(ctx, "/trader/v1/accounts/accountNumbers", nil, creds)
	if err != nil {
		return nil, err
	}
	var numbers []SchwabAccountNumber
	if err := a.client.do(req, &numbers, nil); err != nil {
		return nil, err
	}
	out := make([]RawAccount, 0, len(numbers))
	for _, n := range numbers {
		if n.HashValue == "" {
			return nil, a.client.schemaError("account without hashValue")
		}
		out = append(out, n)
	}
	return out, nil
}

// FetchPositions returns the account with positions for the hash in ref.
func (a *SchwabAdapter) FetchPositions(ctx context.Context, creds models.Credentials, ref models.AccountRef) (RawPositions, error) {
	if ref.AccountIDKey == "" {
		return nil, a.client.schemaError("missing account hash")
	}
	query := url.Values{}
	query.Set("fields", "positions")
	req, err := a.newRequest(ctx, "/trader/v1/accounts/"+url.PathEscape(ref.AccountIDKey), query, creds)
	if err != nil {
		return nil, err
	}
	var acct SchwabAccount
	if err := a.client.do(req, &acct, nil); err != nil {
		return nil, err
	}
	return acct, nil
}

func (a *SchwabAdapter) newRequest(ctx context.Context, path string, query url.Values, creds models.Credentials) (*http.Request, error) {
	if !creds.Present() {
		return nil, apperrors.WithMessage(apperrors.ErrProviderNotConfigured,
			fmt.Sprintf("%s: account has no stored access token", models.ProviderSchwab))
	}
	target := a.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	return req, nil
}

// tokenError maps a token endpoint failure onto the taxonomy. invalid_grant
// and friends arrive as HTTP 400/401 and mean the grant is unusable.
func (a *SchwabAdapter) tokenError(err error) error {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) || rerr.Response == nil {
		return a.client.transportError(err)
	}
	status := rerr.Response.StatusCode
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		code := rerr.ErrorCode
		if code == "" {
			code = "invalid_grant"
		}
		return apperrors.WrapMessage(apperrors.ErrProviderAuth,
			fmt.Sprintf("%s: token request rejected (%s)", models.ProviderSchwab, code), err)
	}
	return a.client.statusError(status)
}

func credentialsFromToken(tok *oauth2.Token) models.Credentials {
	creds := models.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		creds.Expiry = &expiry
	}
	return creds
}
