package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PropertyType classifies a real estate holding.
type PropertyType string

const (
	PropertyResidential PropertyType = "residential"
	PropertyCommercial  PropertyType = "commercial"
	PropertyLand        PropertyType = "land"
	PropertyREITShare   PropertyType = "reit"
)

// RealEstateInvestment is a user-entered property position. It is never
// touched by provider sync.
type RealEstateInvestment struct {
	Base
	UserID        string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name          string          `gorm:"not null" json:"name"`
	Address       string          `json:"address,omitempty"`
	PropertyType  PropertyType    `gorm:"not null;default:'residential'" json:"property_type"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"purchase_price"`
	CurrentValue  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"current_value"`
	MonthlyIncome decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"monthly_income"`
	PurchaseDate  *time.Time      `json:"purchase_date,omitempty"`
}
