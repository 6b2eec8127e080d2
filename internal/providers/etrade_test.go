package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wealthsync/internal/config"
	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
)

var etradeCreds = models.Credentials{AccessToken: "acc-token", TokenSecret: "acc-secret"}

func newTestETrade(server *httptest.Server) *ETradeAdapter {
	a := NewETradeAdapter(config.ETradeConfig{ConsumerKey: "ck", ConsumerSecret: "cs", Sandbox: true},
		ClientOptions{HTTPClient: server.Client(), RateLimit: 100, Burst: 100})
	a.baseURL = server.URL
	return a
}

func TestETradeFetchAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/list.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		params := parseOAuthHeader(t, r.Header.Get("Authorization"))
		if params["oauth_token"] != "acc-token" || params["oauth_consumer_key"] != "ck" {
			t.Errorf("unexpected oauth params %v", params)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"AccountListResponse":{"Accounts":{"Account":[
			{"accountId":"84000001","accountIdKey":"key-open","accountName":"Brokerage","accountStatus":"ACTIVE"},
			{"accountId":"84000002","accountIdKey":"key-closed","accountStatus":"CLOSED"}
		]}}}`))
	}))
	defer server.Close()

	accounts, err := newTestETrade(server).FetchAccounts(context.Background(), etradeCreds)
	if err != nil {
		t.Fatalf("FetchAccounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected closed account to be skipped, got %d accounts", len(accounts))
	}
	ref := accounts[0].Ref()
	if ref.AccountIDKey != "key-open" || ref.ExternalAccountID != "84000001" {
		t.Errorf("unexpected ref %+v", ref)
	}
}

func TestETradeFetchPositions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/key-open/portfolio.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("totalsRequired") != "true" {
			t.Error("expected totalsRequired=true")
		}
		w.Write([]byte(`{"PortfolioResponse":{
			"Totals":{"totalMarketValue":15234.5,"netAccountValue":15734.5,"cashBalance":500},
			"AccountPortfolio":[
				{"Position":[{"symbolDescription":"APPLE INC","quantity":10,"marketValue":1898.4,
					"Product":{"symbol":"AAPL","securityType":"EQ"},"Quick":{"lastTrade":189.84,"changePct":1.12}}]},
				{"Position":[{"symbolDescription":"SCHWAB MMF","quantity":500,"marketValue":500,
					"Product":{"symbol":"SWVXX","securityType":"MMF"},"Quick":{"lastTrade":1}}]}
			]}}`))
	}))
	defer server.Close()

	raw, err := newTestETrade(server).FetchPositions(context.Background(), etradeCreds,
		models.AccountRef{AccountIDKey: "key-open"})
	if err != nil {
		t.Fatalf("FetchPositions: %v", err)
	}
	portfolio, ok := raw.(ETradePortfolio)
	if !ok {
		t.Fatalf("unexpected payload type %T", raw)
	}
	if len(portfolio.Positions) != 2 {
		t.Fatalf("expected positions from every page, got %d", len(portfolio.Positions))
	}
	if portfolio.Totals.NetAccountValue.String() != "15734.5" {
		t.Errorf("NetAccountValue = %s", portfolio.Totals.NetAccountValue)
	}
	if portfolio.Positions[0].Quick.ChangePct.String() != "1.12" {
		t.Errorf("ChangePct = %s", portfolio.Positions[0].Quick.ChangePct)
	}
}

func TestETradeEmptyPortfolio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	raw, err := newTestETrade(server).FetchPositions(context.Background(), etradeCreds,
		models.AccountRef{AccountIDKey: "key-open"})
	if err != nil {
		t.Fatalf("FetchPositions: %v", err)
	}
	if n := len(raw.(ETradePortfolio).Positions); n != 0 {
		t.Errorf("expected no positions, got %d", n)
	}
}

func TestETradeErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperrors.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"Error":{"message":"oauth_problem=token_rejected"}}`, apperrors.KindAuth},
		{"server error", http.StatusInternalServerError, "", apperrors.KindTransport},
		{"bad json", http.StatusOK, `{"AccountListResponse":`, apperrors.KindSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestETrade(server).FetchAccounts(context.Background(), etradeCreds)
			if got := apperrors.KindOf(err); got != tt.want {
				t.Fatalf("KindOf(%v) = %s, want %s", err, got, tt.want)
			}
			if strings.Contains(err.Error(), "token_rejected") {
				t.Error("provider payload leaked into the error message")
			}
		})
	}
}

func TestETradeRequiresTokenPair(t *testing.T) {
	a := NewETradeAdapter(config.ETradeConfig{ConsumerKey: "ck", ConsumerSecret: "cs"}, ClientOptions{})
	_, err := a.FetchAccounts(context.Background(), models.Credentials{AccessToken: "only-token"})
	if apperrors.KindOf(err) != apperrors.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestETradeLinkHandshake(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := parseOAuthHeader(t, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/oauth/request_token":
			if params["oauth_callback"] != "oob" {
				t.Errorf("oauth_callback = %q", params["oauth_callback"])
			}
			w.Write([]byte("oauth_token=req-token&oauth_token_secret=req-secret&oauth_callback_confirmed=true"))
		case "/oauth/access_token":
			if params["oauth_token"] != "req-token" || params["oauth_verifier"] != "ABC12" {
				t.Errorf("unexpected access token params %v", params)
			}
			w.Write([]byte("oauth_token=long-token&oauth_token_secret=long-secret"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	a := newTestETrade(server)
	ctx := context.Background()

	reqToken, err := a.RequestToken(ctx)
	if err != nil {
		t.Fatalf("RequestToken: %v", err)
	}
	if reqToken.Token != "req-token" || reqToken.Secret != "req-secret" {
		t.Errorf("unexpected request token %+v", reqToken)
	}

	authURL := a.AuthorizationURL(reqToken)
	if !strings.HasPrefix(authURL, etradeAuthorizeURL+"?") ||
		!strings.Contains(authURL, "key=ck") || !strings.Contains(authURL, "token=req-token") {
		t.Errorf("unexpected authorization URL %s", authURL)
	}

	creds, err := a.AccessToken(ctx, reqToken, "ABC12")
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if creds.AccessToken != "long-token" || creds.TokenSecret != "long-secret" {
		t.Errorf("unexpected credentials %+v", creds)
	}
	if creds.Expiry != nil {
		t.Error("E*TRADE tokens carry no expiry")
	}
}

func TestETradeTokenResponseMissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("oauth_callback_confirmed=true"))
	}))
	defer server.Close()

	_, err := newTestETrade(server).RequestToken(context.Background())
	if apperrors.KindOf(err) != apperrors.KindSchema {
		t.Fatalf("expected schema error, got %v", err)
	}
}
