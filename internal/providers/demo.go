package providers

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
)

// DemoAccount is the single account served by the demo provider.
type DemoAccount struct {
	ID   string
	Name string
}

func (DemoAccount) rawAccount() {}

// Ref returns the demo account id in both slots.
func (a DemoAccount) Ref() models.AccountRef {
	return models.AccountRef{AccountIDKey: a.ID, ExternalAccountID: a.ID}
}

// DemoPortfolio is the fixed sample portfolio.
type DemoPortfolio struct {
	Positions []DemoPosition
}

func (DemoPortfolio) rawPositions() {}

// DemoPosition is one sample position. Price and Value may be empty, in which
// case they are derived during normalization.
type DemoPosition struct {
	Symbol    string
	Name      string
	Type      string
	Quantity  json.Number
	Price     json.Number
	Value     json.Number
	ChangePct json.Number
}

var demoPositions = []DemoPosition{
	{Symbol: "AAPL", Name: "Apple Inc.", Type: "equity", Quantity: "25", Price: "189.84", ChangePct: "1.12"},
	{Symbol: "VTI", Name: "Vanguard Total Stock Market ETF", Type: "etf", Quantity: "40", Price: "262.15", ChangePct: "0.48"},
	{Symbol: "BND", Name: "Vanguard Total Bond Market ETF", Type: "bond fund", Quantity: "60", Price: "72.31", ChangePct: "-0.07"},
	{Symbol: "BTC", Name: "Bitcoin", Type: "cryptocurrency", Quantity: "0.1500", Price: "67250.00", ChangePct: "2.35"},
	{Symbol: "VMFXX", Name: "Vanguard Federal Money Market Fund", Type: "mmf", Quantity: "5000", Price: "1.00"},
}

// DemoAdapter serves a fixed sample portfolio. It is registered only in demo
// mode and only serves accounts whose provider is demo.
type DemoAdapter struct {
	positions []DemoPosition
}

// NewDemoAdapter returns the demo adapter with its built-in portfolio.
func NewDemoAdapter() *DemoAdapter {
	return &DemoAdapter{positions: demoPositions}
}

// Provider returns models.ProviderDemo.
func (a *DemoAdapter) Provider() models.Provider { return models.ProviderDemo }

// FetchAccounts returns the single demo account.
func (a *DemoAdapter) FetchAccounts(ctx context.Context, _ models.Credentials) ([]RawAccount, error) {
	if err := a.live(ctx); err != nil {
		return nil, err
	}
	return []RawAccount{DemoAccount{ID: "demo-001", Name: "Demo Brokerage"}}, nil
}

// FetchPositions returns a copy of the sample positions.
func (a *DemoAdapter) FetchPositions(ctx context.Context, _ models.Credentials, _ models.AccountRef) (RawPositions, error) {
	if err := a.live(ctx); err != nil {
		return nil, err
	}
	positions := make([]DemoPosition, len(a.positions))
	copy(positions, a.positions)
	return DemoPortfolio{Positions: positions}, nil
}

// live reports a done ctx as a transport failure, like a canceled HTTP call.
func (a *DemoAdapter) live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.WrapMessage(apperrors.ErrProviderTransport,
			fmt.Sprintf("%s: request canceled", models.ProviderDemo), err)
	}
	return nil
}
