package models

import (
	"time"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ActivityType classifies an audit entry.
type ActivityType string

const (
	ActivityBuy   ActivityType = "buy"
	ActivitySell  ActivityType = "sell"
	ActivitySync  ActivityType = "sync"
	ActivityError ActivityType = "error"
)

// Activity is an append-only audit entry for an account. No Base embed: it is
// never updated and has no UpdatedAt.
type Activity struct {
	ID          string              `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID   string              `gorm:"type:uuid;not null;index" json:"account_id"`
	Type        ActivityType        `gorm:"not null" json:"type"`
	Description string              `gorm:"not null" json:"description"`
	Amount      decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"amount"`
	Symbol      *string             `json:"symbol"`
	Timestamp   time.Time           `gorm:"not null;index" json:"timestamp"`
}

// BeforeCreate hook generates a UUIDv7 and stamps the creation time.
func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate rejects any modification of a written entry.
func (a *Activity) BeforeUpdate(tx *gorm.DB) error {
	return apperrors.ErrActivityImmutable
}
