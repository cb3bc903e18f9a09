package models

import (
	"time"

	"gorm.io/gorm"
)

// APIKey authenticates a check-in kiosk on behalf of the operator who issued it.
type APIKey struct {
	gorm.Model
	UserID     uint       `json:"user_id" gorm:"index"`
	User       User       `json:"user"`
	Key        string     `json:"key" gorm:"uniqueIndex;size:64"`
	Name       string     `json:"name"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}
