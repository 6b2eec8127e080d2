package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wealthsync/internal/config"
	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
)

func TestSelectAccount(t *testing.T) {
	accounts := []RawAccount{
		PlaidAccount{AccountID: "inv-1", ItemID: "item-1"},
		PlaidAccount{AccountID: "inv-2", ItemID: "item-1"},
	}

	tests := []struct {
		name    string
		stored  models.AccountRef
		want    string
		wantErr bool
	}{
		{"no stored ids picks first", models.AccountRef{}, "inv-1", false},
		{"item key only picks first in item", models.AccountRef{AccountIDKey: "item-1"}, "inv-1", false},
		{"account id wins over shared key", models.AccountRef{AccountIDKey: "item-1", ExternalAccountID: "inv-2"}, "inv-2", false},
		{"vanished account", models.AccountRef{ExternalAccountID: "inv-9"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectAccount(models.ProviderPlaid, accounts, tt.stored)
			if tt.wantErr {
				if apperrors.KindOf(err) != apperrors.KindSchema {
					t.Fatalf("expected schema error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id := got.Ref().ExternalAccountID; id != tt.want {
				t.Errorf("selected %s, want %s", id, tt.want)
			}
		})
	}

	if _, err := SelectAccount(models.ProviderPlaid, nil, models.AccountRef{}); apperrors.KindOf(err) != apperrors.KindSchema {
		t.Errorf("expected schema error for empty list, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewDemoAdapter())

	a, err := r.Get(models.ProviderDemo)
	if err != nil || a.Provider() != models.ProviderDemo {
		t.Fatalf("Get(demo) = %v, %v", a, err)
	}
	for _, p := range []models.Provider{models.ProviderManual, models.ProviderSchwab, "fidelity"} {
		_, err := r.Get(p)
		if apperrors.KindOf(err) != apperrors.KindConfiguration {
			t.Errorf("Get(%s): expected configuration error, got %v", p, err)
		}
	}
}

func TestConfigure(t *testing.T) {
	cfg := &config.Config{
		ETrade:   config.ETradeConfig{ConsumerKey: "ck", ConsumerSecret: "cs"},
		Schwab:   config.SchwabConfig{ClientID: "id"},
		Plaid:    config.PlaidConfig{ClientID: "id", Secret: "s", Environment: "sandbox"},
		DemoMode: false,
	}
	r := Configure(cfg)

	got := r.Providers()
	want := []models.Provider{models.ProviderETrade, models.ProviderPlaid}
	if len(got) != len(want) {
		t.Fatalf("Providers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Providers()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if _, err := r.Get(models.ProviderDemo); err == nil {
		t.Error("demo provider must not be registered outside demo mode")
	}
}

func TestAPIClientStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   apperrors.Kind
	}{
		{http.StatusUnauthorized, apperrors.KindAuth},
		{http.StatusForbidden, apperrors.KindAuth},
		{http.StatusTooManyRequests, apperrors.KindRateLimit},
		{http.StatusBadGateway, apperrors.KindTransport},
		{http.StatusNotFound, apperrors.KindSchema},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"account":"acct-12345"}`))
		}))
		c := newAPIClient(models.ProviderDemo, ClientOptions{HTTPClient: server.Client(), RateLimit: 100, Burst: 100})
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		err := c.do(req, &struct{}{}, nil)
		server.Close()

		if got := apperrors.KindOf(err); got != tt.want {
			t.Errorf("status %d: KindOf = %s, want %s", tt.status, got, tt.want)
		}
		if err != nil && strings.Contains(err.Error(), "acct-12345") {
			t.Errorf("status %d: body leaked into %q", tt.status, err.Error())
		}
	}
}

func TestAPIClientTimeoutIsTransport(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := newAPIClient(models.ProviderDemo, ClientOptions{Timeout: 50 * time.Millisecond, RateLimit: 100, Burst: 100})
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	err := c.do(req, nil, nil)
	if apperrors.KindOf(err) != apperrors.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestAPIClientCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newAPIClient(models.ProviderDemo, ClientOptions{RateLimit: 0.001, Burst: 1})
	c.limiter.Allow()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)
	if err := c.do(req, nil, nil); apperrors.KindOf(err) != apperrors.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestDemoAdapter(t *testing.T) {
	a := NewDemoAdapter()
	accounts, err := a.FetchAccounts(context.Background(), models.Credentials{})
	if err != nil || len(accounts) != 1 {
		t.Fatalf("FetchAccounts = %v, %v", accounts, err)
	}
	raw, err := a.FetchPositions(context.Background(), models.Credentials{}, accounts[0].Ref())
	if err != nil {
		t.Fatalf("FetchPositions: %v", err)
	}
	portfolio := raw.(DemoPortfolio)
	if len(portfolio.Positions) != len(demoPositions) {
		t.Fatalf("expected %d positions, got %d", len(demoPositions), len(portfolio.Positions))
	}
	portfolio.Positions[0].Symbol = "MUTATED"
	if demoPositions[0].Symbol == "MUTATED" {
		t.Error("demo positions must be copied")
	}
}

func TestDemoAdapterCanceled(t *testing.T) {
	a := NewDemoAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.FetchAccounts(ctx, models.Credentials{})
	if apperrors.KindOf(err) != apperrors.KindTransport {
		t.Errorf("FetchAccounts: KindOf(%v) = %s, want transport", err, apperrors.KindOf(err))
	}
	_, err = a.FetchPositions(ctx, models.Credentials{}, models.AccountRef{})
	if apperrors.KindOf(err) != apperrors.KindTransport {
		t.Errorf("FetchPositions: KindOf(%v) = %s, want transport", err, apperrors.KindOf(err))
	}
	if !apperrors.KindOf(err).Transient() {
		t.Error("a canceled fetch should be retryable")
	}
}
