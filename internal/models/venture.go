package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VentureInvestment is a private company or angel position entered by the user.
type VentureInvestment struct {
	Base
	UserID           string          `gorm:"type:uuid;not null;index" json:"user_id"`
	CompanyName      string          `gorm:"not null" json:"company_name"`
	Stage            string          `json:"stage,omitempty"`
	InvestedAmount   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"invested_amount"`
	CurrentValuation decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"current_valuation"`
	OwnershipPercent decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"ownership_percent"`
	InvestmentDate   *time.Time      `json:"investment_date,omitempty"`
}
