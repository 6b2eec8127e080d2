package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wealthsync/internal/config"
	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
)

var plaidEnvironments = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

// PlaidAccount is an account of a Plaid item.
type PlaidAccount struct {
	AccountID    string        `json:"account_id"`
	Name         string        `json:"name"`
	OfficialName string        `json:"official_name"`
	Mask         string        `json:"mask"`
	Type         string        `json:"type"`
	Subtype      string        `json:"subtype"`
	Balances     PlaidBalances `json:"balances"`

	// ItemID is filled from the enclosing response.
	ItemID string `json:"-"`
}

func (PlaidAccount) rawAccount() {}

// Ref returns the item id as key and the account id as id.
func (a PlaidAccount) Ref() models.AccountRef {
	return models.AccountRef{AccountIDKey: a.ItemID, ExternalAccountID: a.AccountID}
}

// PlaidBalances holds balances as reported by the institution.
type PlaidBalances struct {
	Current         json.Number `json:"current"`
	Available       json.Number `json:"available"`
	ISOCurrencyCode string      `json:"iso_currency_code"`
}

// PlaidHoldings is the investments holdings payload for one account.
type PlaidHoldings struct {
	Accounts   []PlaidAccount  `json:"accounts"`
	Holdings   []PlaidHolding  `json:"holdings"`
	Securities []PlaidSecurity `json:"securities"`

	// AccountID is the account the holdings were requested for.
	AccountID string `json:"-"`
}

func (PlaidHoldings) rawPositions() {}

// PlaidHolding is one holding row; the security is referenced by id.
type PlaidHolding struct {
	AccountID        string      `json:"account_id"`
	SecurityID       string      `json:"security_id"`
	Quantity         json.Number `json:"quantity"`
	InstitutionPrice json.Number `json:"institution_price"`
	InstitutionValue json.Number `json:"institution_value"`
	CostBasis        json.Number `json:"cost_basis"`
}

// PlaidSecurity describes a security referenced by holdings.
type PlaidSecurity struct {
	SecurityID       string      `json:"security_id"`
	TickerSymbol     *string     `json:"ticker_symbol"`
	Name             string      `json:"name"`
	Type             string      `json:"type"`
	ClosePrice       json.Number `json:"close_price"`
	IsCashEquivalent bool        `json:"is_cash_equivalent"`
}

type plaidError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type plaidItem struct {
	ItemID string      `json:"item_id"`
	Error  *plaidError `json:"error"`
}

// PlaidAdapter talks to the Plaid API. Access tokens do not expire; their
// health is probed with /item/get.
type PlaidAdapter struct {
	client      *apiClient
	clientID    string
	secret      string
	redirectURI string
	clientName  string
	baseURL     string // overridable for tests
}

// NewPlaidAdapter creates a Plaid adapter. cfg must already be valid.
func NewPlaidAdapter(cfg config.PlaidConfig, opts ClientOptions) *PlaidAdapter {
	return &PlaidAdapter{
		client:      newAPIClient(models.ProviderPlaid, opts),
		clientID:    cfg.ClientID,
		secret:      cfg.Secret,
		redirectURI: cfg.RedirectURI,
		clientName:  "WealthSync",
		baseURL:     plaidEnvironments[cfg.Environment],
	}
}

// Provider returns models.ProviderPlaid.
func (a *PlaidAdapter) Provider() models.Provider { return models.ProviderPlaid }

// CreateLinkToken mints a link token for the given user.
func (a *PlaidAdapter) CreateLinkToken(ctx context.Context, userID string) (LinkToken, error) {
	body := map[string]any{
		"client_name":   a.clientName,
		"user":          map[string]string{"client_user_id": userID},
		"products":      []string{"investments"},
		"country_codes": []string{"US"},
		"language":      "en",
	}
	if a.redirectURI != "" {
		body["redirect_uri"] = a.redirectURI
	}
	var resp struct {
		LinkToken  string `json:"link_token"`
		Expiration string `json:"expiration"`
	}
	if err := a.post(ctx, "/link/token/create", body, &resp); err != nil {
		return LinkToken{}, err
	}
	if resp.LinkToken == "" {
		return LinkToken{}, a.client.schemaError("link token missing from response")
	}
	token := LinkToken{Token: resp.LinkToken}
	if resp.Expiration != "" {
		exp, err := time.Parse(time.RFC3339, resp.Expiration)
		if err != nil {
			return LinkToken{}, a.client.schemaError("link token expiration is malformed")
		}
		token.Expiration = exp
	}
	return token, nil
}

// ExchangePublicToken trades the widget's public token for an access token.
// The returned ref carries the item id only; the account id is chosen on the
// first sync.
func (a *PlaidAdapter) ExchangePublicToken(ctx context.Context, publicToken string) (models.Credentials, models.AccountRef, error) {
	if publicToken == "" {
		return models.Credentials{}, models.AccountRef{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "public token is required")
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		ItemID      string `json:"item_id"`
	}
	if err := a.post(ctx, "/item/public_token/exchange", map[string]any{"public_token": publicToken}, &resp); err != nil {
		return models.Credentials{}, models.AccountRef{}, err
	}
	if resp.AccessToken == "" || resp.ItemID == "" {
		return models.Credentials{}, models.AccountRef{}, a.client.schemaError("exchange response is missing access_token or item_id")
	}
	return models.Credentials{AccessToken: resp.AccessToken}, models.AccountRef{AccountIDKey: resp.ItemID}, nil
}

// CheckItem probes the item behind the access token. An item in an error
// state is an auth failure.
func (a *PlaidAdapter) CheckItem(ctx context.Context, creds models.Credentials) error {
	if !creds.Present() {
		return a.missingToken()
	}
	var resp struct {
		Item plaidItem `json:"item"`
	}
	if err := a.post(ctx, "/item/get", map[string]any{"access_token": creds.AccessToken}, &resp); err != nil {
		return err
	}
	if resp.Item.Error != nil && resp.Item.Error.ErrorCode != "" {
		if err := classifyPlaidError(*resp.Item.Error); err != nil {
			return err
		}
		return apperrors.WithMessage(apperrors.ErrProviderAuth,
			fmt.Sprintf("%s: item is in error state (%s)", models.ProviderPlaid, resp.Item.Error.ErrorCode))
	}
	return nil
}

// FetchAccounts lists the investment accounts of the item.
func (a *PlaidAdapter) FetchAccounts(ctx context.Context, creds models.Credentials) ([]RawAccount, error) {
	if !creds.Present() {
		return nil, a.missingToken()
	}
	var resp struct {
		Accounts []PlaidAccount `json:"accounts"`
		Item     plaidItem      `json:"item"`
	}
	if err := a.post(ctx, "/accounts/get", map[string]any{"access_token": creds.AccessToken}, &resp); err != nil {
		return nil, err
	}
	var out []RawAccount
	for _, acct := range resp.Accounts {
		if acct.Type != "investment" && acct.Type != "brokerage" {
			continue
		}
		if acct.AccountID == "" {
			return nil, a.client.schemaError("account without account_id")
		}
		acct.ItemID = resp.Item.ItemID
		out = append(out, acct)
	}
	return out, nil
}

// FetchPositions returns holdings and securities for the account in ref.
func (a *PlaidAdapter) FetchPositions(ctx context.Context, creds models.Credentials, ref models.AccountRef) (RawPositions, error) {
	if !creds.Present() {
		return nil, a.missingToken()
	}
	if ref.ExternalAccountID == "" {
		return nil, a.client.schemaError("missing account_id")
	}
	body := map[string]any{
		"access_token": creds.AccessToken,
		"options":      map[string]any{"account_ids": []string{ref.ExternalAccountID}},
	}
	var resp PlaidHoldings
	if err := a.post(ctx, "/investments/holdings/get", body, &resp); err != nil {
		return nil, err
	}
	resp.AccountID = ref.ExternalAccountID
	return resp, nil
}

func (a *PlaidAdapter) post(ctx context.Context, path string, body map[string]any, out any) error {
	body["client_id"] = a.clientID
	body["secret"] = a.secret
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.client.do(req, out, plaidStatusClassifier)
}

func (a *PlaidAdapter) missingToken() error {
	return apperrors.WithMessage(apperrors.ErrProviderNotConfigured,
		fmt.Sprintf("%s: account has no stored access token", models.ProviderPlaid))
}

// plaidStatusClassifier maps Plaid's error body onto the taxonomy. Only the
// error code enters the message.
func plaidStatusClassifier(_ int, body []byte) error {
	var perr plaidError
	if err := json.Unmarshal(body, &perr); err != nil || perr.ErrorCode == "" {
		return nil
	}
	return classifyPlaidError(perr)
}

func classifyPlaidError(perr plaidError) error {
	msg := fmt.Sprintf("%s: %s", models.ProviderPlaid, perr.ErrorCode)
	switch {
	case perr.ErrorCode == "ITEM_LOGIN_REQUIRED",
		perr.ErrorCode == "INVALID_ACCESS_TOKEN",
		perr.ErrorCode == "ITEM_NOT_FOUND",
		perr.ErrorCode == "ACCESS_NOT_GRANTED":
		return apperrors.WithMessage(apperrors.ErrProviderAuth, msg)
	case perr.ErrorCode == "RATE_LIMIT_EXCEEDED", perr.ErrorType == "RATE_LIMIT_EXCEEDED":
		return apperrors.WithMessage(apperrors.ErrProviderRateLimited, msg)
	case perr.ErrorCode == "INVALID_API_KEYS":
		return apperrors.WithMessage(apperrors.ErrProviderNotConfigured, msg)
	case perr.ErrorCode == "PRODUCT_NOT_READY",
		perr.ErrorCode == "INSTITUTION_DOWN",
		perr.ErrorCode == "INSTITUTION_NOT_RESPONDING",
		strings.EqualFold(perr.ErrorType, "API_ERROR"):
		return apperrors.WithMessage(apperrors.ErrProviderTransport, msg)
	}
	return nil
}
