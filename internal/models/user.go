package models

import (
	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/identity"
)

// User mirrors the subject known to the identity provider. Rows are upserted from
// token claims; the service never manages credentials.
type User struct {
	gorm.Model
	Email string        `gorm:"uniqueIndex;size:320"`
	Name  string
	Role  identity.Role `gorm:"size:16;not null"`
}
