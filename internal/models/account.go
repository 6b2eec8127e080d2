package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies the institution an account is synced from. The set is
// closed; each value other than ProviderManual has exactly one adapter.
type Provider string

const (
	ProviderManual Provider = "manual"
	ProviderETrade Provider = "etrade"
	ProviderSchwab Provider = "schwab"
	ProviderPlaid  Provider = "plaid"
	ProviderDemo   Provider = "demo"
)

// Providers lists every known provider in a stable order.
var Providers = []Provider{ProviderManual, ProviderETrade, ProviderSchwab, ProviderPlaid, ProviderDemo}

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// AccountType represents the tax/ownership wrapper of an account.
type AccountType string

const (
	AccountTypeIndividual AccountType = "individual"
	AccountTypeJoint      AccountType = "joint"
	AccountType401k       AccountType = "401k"
	AccountTypeIRA        AccountType = "ira"
	AccountTypeRothIRA    AccountType = "roth_ira"
	AccountTypeBrokerage  AccountType = "brokerage"
	AccountTypeOther      AccountType = "other"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeIndividual, AccountTypeJoint, AccountType401k, AccountTypeIRA,
		AccountTypeRothIRA, AccountTypeBrokerage, AccountTypeOther:
		return true
	}
	return false
}

// Account is an investment account, either entered manually or linked to a
// provider. Credential columns are never serialized.
type Account struct {
	Base
	UserID            string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name              string          `gorm:"not null" json:"name"`
	Provider          Provider        `gorm:"not null" json:"provider"`
	AccountType       AccountType     `gorm:"not null;default:'individual'" json:"account_type"`
	Balance           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	IsConnected       bool            `gorm:"not null;default:false" json:"is_connected"`
	LastSync          *time.Time      `json:"last_sync"`
	AccessToken       string          `json:"-"`
	RefreshToken      string          `json:"-"`
	TokenSecret       string          `json:"-"`
	TokenExpiry       *time.Time      `json:"token_expiry,omitempty"`
	AccountIDKey      string          `json:"account_id_key,omitempty"`
	ExternalAccountID string          `json:"external_account_id,omitempty"`
	Holdings          []Holding       `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"holdings,omitempty"`
	Activities        []Activity      `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}

// Credentials returns the stored credential material.
func (a *Account) Credentials() Credentials {
	return Credentials{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		TokenSecret:  a.TokenSecret,
		Expiry:       a.TokenExpiry,
	}
}

// Ref returns the provider-native identifiers stored for the account.
func (a *Account) Ref() AccountRef {
	return AccountRef{AccountIDKey: a.AccountIDKey, ExternalAccountID: a.ExternalAccountID}
}

// Credentials is the credential material for one linked account. TokenSecret
// is only used by signature-based providers; Expiry is nil when the provider
// gives no expiry contract.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TokenSecret  string
	Expiry       *time.Time
}

// Present reports whether an access token is stored.
func (c Credentials) Present() bool {
	return c.AccessToken != ""
}

// ExpiredAt reports whether the access token is unusable at now, allowing for
// leeway before the recorded expiry.
func (c Credentials) ExpiredAt(now time.Time, leeway time.Duration) bool {
	if c.Expiry == nil {
		return false
	}
	return !now.Add(leeway).Before(*c.Expiry)
}

// Refreshable reports whether a refresh token is available.
func (c Credentials) Refreshable() bool {
	return c.RefreshToken != ""
}

// AccountRef holds the provider-native identifiers used to address a remote
// account. For E*TRADE AccountIDKey is the accountIdKey; for Schwab it is the
// account hash; for Plaid it is the item id.
type AccountRef struct {
	AccountIDKey      string
	ExternalAccountID string
}

// Empty reports whether no identifier is known yet.
func (r AccountRef) Empty() bool {
	return r.AccountIDKey == "" && r.ExternalAccountID == ""
}
