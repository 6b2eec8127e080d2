package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"

	"wealthsync/internal/config"
	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
)

const (
	etradeProductionURL = "https://api.etrade.com"
	etradeSandboxURL    = "https://apisb.etrade.com"
	etradeAuthorizeURL  = "https://us.etrade.com/e/t/etws/authorize"
)

// ETradeAccount is one entry of the E*TRADE account list.
type ETradeAccount struct {
	AccountID     string `json:"accountId"`
	AccountIDKey  string `json:"accountIdKey"`
	AccountName   string `json:"accountName"`
	AccountDesc   string `json:"accountDesc"`
	AccountType   string `json:"accountType"`
	AccountStatus string `json:"accountStatus"`
}

func (ETradeAccount) rawAccount() {}

// Ref returns the accountIdKey used in portfolio URLs and the display id.
func (a ETradeAccount) Ref() models.AccountRef {
	return models.AccountRef{AccountIDKey: a.AccountIDKey, ExternalAccountID: a.AccountID}
}

// ETradePortfolio is the portfolio view of one E*TRADE account.
type ETradePortfolio struct {
	Totals    ETradeTotals
	Positions []ETradePosition
}

func (ETradePortfolio) rawPositions() {}

// ETradeTotals holds the account-level totals of a portfolio response.
type ETradeTotals struct {
	TotalMarketValue json.Number `json:"totalMarketValue"`
	NetAccountValue  json.Number `json:"netAccountValue"`
	CashBalance      json.Number `json:"cashBalance"`
}

// ETradePosition is one position of a portfolio response.
type ETradePosition struct {
	SymbolDescription string        `json:"symbolDescription"`
	Quantity          json.Number   `json:"quantity"`
	PositionType      string        `json:"positionType"`
	MarketValue       json.Number   `json:"marketValue"`
	Product           ETradeProduct `json:"Product"`
	Quick             ETradeQuick   `json:"Quick"`
}

// ETradeProduct identifies the security of a position.
type ETradeProduct struct {
	Symbol       string `json:"symbol"`
	SecurityType string `json:"securityType"`
}

// ETradeQuick is the quick quote attached to a position.
type ETradeQuick struct {
	LastTrade json.Number `json:"lastTrade"`
	ChangePct json.Number `json:"changePct"`
}

type etradeAccountListResponse struct {
	AccountListResponse struct {
		Accounts struct {
			Account []ETradeAccount `json:"Account"`
		} `json:"Accounts"`
	} `json:"AccountListResponse"`
}

type etradePortfolioResponse struct {
	PortfolioResponse struct {
		Totals           ETradeTotals `json:"Totals"`
		AccountPortfolio []struct {
			Position []ETradePosition `json:"Position"`
		} `json:"AccountPortfolio"`
	} `json:"PortfolioResponse"`
}

// ETradeAdapter talks to the E*TRADE REST API with OAuth1 request signing.
type ETradeAdapter struct {
	client         *apiClient
	consumerKey    string
	consumerSecret string
	baseURL        string // overridable for tests
	authorizeURL   string
}

// NewETradeAdapter creates an E*TRADE adapter. cfg must already be valid.
func NewETradeAdapter(cfg config.ETradeConfig, opts ClientOptions) *ETradeAdapter {
	baseURL := etradeProductionURL
	if cfg.Sandbox {
		baseURL = etradeSandboxURL
	}
	return &ETradeAdapter{
		client:         newAPIClient(models.ProviderETrade, opts),
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		baseURL:        baseURL,
		authorizeURL:   etradeAuthorizeURL,
	}
}

// Provider returns models.ProviderETrade.
func (a *ETradeAdapter) Provider() models.Provider { return models.ProviderETrade }

// FetchAccounts lists the user's open accounts.
func (a *ETradeAdapter) FetchAccounts(ctx context.Context, creds models.Credentials) ([]RawAccount, error) {
	if err := requireTokenPair(models.ProviderETrade, creds); err != nil {
		return nil, err
	}
	var resp etradeAccountListResponse
	if err := a.get(ctx, "/v1/accounts/list.json", nil, creds, &resp); err != nil {
		return nil, err
	}

	var out []RawAccount
	for _, acct := range resp.AccountListResponse.Accounts.Account {
		if strings.EqualFold(acct.AccountStatus, "CLOSED") {
			continue
		}
		if acct.AccountIDKey == "" {
			return nil, a.client.schemaError("account without accountIdKey")
		}
		out = append(out, acct)
	}
	return out, nil
}

// FetchPositions returns the portfolio of the account addressed by ref.
func (a *ETradeAdapter) FetchPositions(ctx context.Context, creds models.Credentials, ref models.AccountRef) (RawPositions, error) {
	if err := requireTokenPair(models.ProviderETrade, creds); err != nil {
		return nil, err
	}
	if ref.AccountIDKey == "" {
		return nil, a.client.schemaError("missing accountIdKey")
	}
	query := url.Values{}
	query.Set("totalsRequired", "true")
	query.Set("view", "QUICK")
	var resp etradePortfolioResponse
	if err := a.get(ctx, "/v1/accounts/"+url.PathEscape(ref.AccountIDKey)+"/portfolio.json", query, creds, &resp); err != nil {
		return nil, err
	}

	portfolio := ETradePortfolio{Totals: resp.PortfolioResponse.Totals}
	for _, page := range resp.PortfolioResponse.AccountPortfolio {
		portfolio.Positions = append(portfolio.Positions, page.Position...)
	}
	return portfolio, nil
}

// RequestToken obtains a temporary token pair for out-of-band authorization.
func (a *ETradeAdapter) RequestToken(ctx context.Context) (RequestToken, error) {
	token, secret, err := a.client.oauth1Handshake(ctx, a.oauthConfig(), func(cfg *oauth1.Config) (string, string, error) {
		return cfg.RequestToken()
	})
	if err != nil {
		return RequestToken{}, err
	}
	return RequestToken{Token: token, Secret: secret}, nil
}

// AuthorizationURL is the page where the user approves access and receives
// a verification code.
func (a *ETradeAdapter) AuthorizationURL(token RequestToken) string {
	q := url.Values{}
	q.Set("key", a.consumerKey)
	q.Set("token", token.Token)
	return a.authorizeURL + "?" + q.Encode()
}

// AccessToken exchanges an authorized request token and verifier for the
// long-lived token pair. E*TRADE tokens carry no expiry.
func (a *ETradeAdapter) AccessToken(ctx context.Context, token RequestToken, verifier string) (models.Credentials, error) {
	if verifier == "" {
		return models.Credentials{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "verifier is required")
	}
	access, secret, err := a.client.oauth1Handshake(ctx, a.oauthConfig(), func(cfg *oauth1.Config) (string, string, error) {
		return cfg.AccessToken(token.Token, token.Secret, verifier)
	})
	if err != nil {
		return models.Credentials{}, err
	}
	return models.Credentials{AccessToken: access, TokenSecret: secret}, nil
}

func (a *ETradeAdapter) oauthConfig() oauth1.Config {
	return oauth1.Config{
		ConsumerKey:    a.consumerKey,
		ConsumerSecret: a.consumerSecret,
		CallbackURL:    "oob",
		Endpoint: oauth1.Endpoint{
			RequestTokenURL: a.baseURL + "/oauth/request_token",
			AuthorizeURL:    a.authorizeURL,
			AccessTokenURL:  a.baseURL + "/oauth/access_token",
		},
		Noncer: oauth1.HexNoncer{},
	}
}

// get performs a signed GET against the REST API and decodes the body.
func (a *ETradeAdapter) get(ctx context.Context, path string, query url.Values, creds models.Credentials, out any) error {
	target := a.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	cfg := a.oauthConfig()
	return a.client.doWith(a.client.oauth1Client(ctx, &cfg, creds), req, out, nil)
}

func requireTokenPair(p models.Provider, creds models.Credentials) error {
	if creds.AccessToken == "" || creds.TokenSecret == "" {
		return apperrors.WithMessage(apperrors.ErrProviderNotConfigured,
			fmt.Sprintf("%s: account has no stored token pair", p))
	}
	return nil
}
