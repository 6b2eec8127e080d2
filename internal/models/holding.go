package models

import "github.com/shopspring/decimal"

// Category is the canonical asset class of a holding.
type Category string

const (
	CategoryStocks      Category = "stocks"
	CategoryETFs        Category = "etfs"
	CategoryBonds       Category = "bonds"
	CategoryCrypto      Category = "crypto"
	CategoryCash        Category = "cash"
	CategoryMutualFunds Category = "mutual_funds"
	CategoryOther       Category = "other"
)

// Holding is one position in an account as last reported by its provider.
// Rows are written only by the sync orchestrator.
type Holding struct {
	Base
	AccountID     string          `gorm:"type:uuid;not null;uniqueIndex:uq_holdings_account_symbol" json:"account_id"`
	Symbol        string          `gorm:"not null;uniqueIndex:uq_holdings_account_symbol" json:"symbol"`
	Name          string          `json:"name"`
	Shares        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"shares"`
	CurrentPrice  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"current_price"`
	TotalValue    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_value"`
	Category      Category        `gorm:"not null;default:'other'" json:"category"`
	ChangePercent decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"change_percent"`
}

// SameValues reports whether h and other carry identical reported values.
func (h *Holding) SameValues(other *Holding) bool {
	return h.Name == other.Name &&
		h.Category == other.Category &&
		h.Shares.Equal(other.Shares) &&
		h.CurrentPrice.Equal(other.CurrentPrice) &&
		h.TotalValue.Equal(other.TotalValue) &&
		h.ChangePercent.Equal(other.ChangePercent)
}
