package registrations

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

// Lookup identifies a registration by one of several keys. The set of implementations
// is closed: ByID, ByCode and ByEmailAndEvent.
type Lookup interface {
	resolve(db *gorm.DB) (*models.Registration, error)
}

type ByID uint

type ByCode string

// ByEmailAndEvent resolves to the subject's registration for the event on an active
// occurrence. Registrations still waiting for check-in come first, earliest occurrence
// first; when every one is checked in the earliest attended one is returned, so
// marking it again fails the same way as by id or code.
type ByEmailAndEvent struct {
	Email   string
	EventID uint
}

func (l ByID) resolve(db *gorm.DB) (*models.Registration, error) {
	var reg models.Registration
	if err := db.First(&reg, uint(l)).Error; err != nil {
		return nil, notFoundOr(err, "registration", uint(l))
	}
	return &reg, nil
}

func (l ByCode) resolve(db *gorm.DB) (*models.Registration, error) {
	code := strings.TrimSpace(string(l))
	if code == "" {
		return nil, apperr.Validation("registration code is required")
	}
	var reg models.Registration
	if err := db.Where("code = ?", code).First(&reg).Error; err != nil {
		return nil, notFoundOr(err, "registration with code", code)
	}
	return &reg, nil
}

func (l ByEmailAndEvent) resolve(db *gorm.DB) (*models.Registration, error) {
	email := strings.ToLower(strings.TrimSpace(l.Email))
	if email == "" {
		return nil, apperr.Validation("email is required")
	}

	var user models.User
	if err := db.Where("LOWER(email) = ?", email).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "user with email", email)
	}

	var reg models.Registration
	err := db.Joins("JOIN occurrences ON occurrences.id = registrations.occurrence_id").
		Joins("JOIN attendances ON attendances.registration_id = registrations.id").
		Where("registrations.user_id = ? AND registrations.event_id = ?", user.ID, l.EventID).
		Where("occurrences.is_active = ?", true).
		Order("attendances.attended asc, occurrences.date_time asc, registrations.id asc").
		First(&reg).Error
	if err != nil {
		return nil, notFoundOr(err, "registration for event", l.EventID)
	}
	return &reg, nil
}

// Resolve runs a lookup. Pass a transaction to resolve inside it.
func Resolve(ctx context.Context, db *gorm.DB, l Lookup) (*models.Registration, error) {
	if l == nil {
		return nil, apperr.Validation("a registration lookup is required")
	}
	return l.resolve(db.WithContext(ctx))
}
