package models

import "time"

// LinkSession carries state between the steps of an interactive provider
// link flow. It is deleted once the flow completes.
type LinkSession struct {
	Base
	UserID        string    `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID     string    `gorm:"type:uuid;not null;index" json:"account_id"`
	Provider      Provider  `gorm:"not null" json:"provider"`
	State         string    `gorm:"index" json:"-"`
	RequestToken  string    `json:"-"`
	RequestSecret string    `json:"-"`
	ExpiresAt     time.Time `gorm:"not null" json:"expires_at"`
}

// Expired reports whether the session can no longer be completed.
func (s *LinkSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
