package registrations

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/identity"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

func withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Occurrence").Preload("Attendance").Preload("Assessments")
}

// Get returns a registration to its owner or to an admin.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id uint) (*models.Registration, error) {
	return s.load(ctx, actor, ByID(id))
}

func (s *Service) GetByCode(ctx context.Context, actor identity.Actor, code string) (*models.Registration, error) {
	return s.load(ctx, actor, ByCode(code))
}

func (s *Service) load(ctx context.Context, actor identity.Actor, l Lookup) (*models.Registration, error) {
	db := s.db.WithContext(ctx)
	found, err := Resolve(ctx, db, l)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(found.UserID) {
		return nil, apperr.Forbidden("registration %d belongs to another user", found.ID)
	}

	var reg models.Registration
	if err := withDetails(db).First(&reg, found.ID).Error; err != nil {
		return nil, notFoundOr(err, "registration", found.ID)
	}
	return &reg, nil
}

func (s *Service) ListMine(ctx context.Context, subjectID uint) ([]models.Registration, error) {
	var regs []models.Registration
	if err := withDetails(s.db.WithContext(ctx)).
		Where("user_id = ?", subjectID).
		Order("created_at desc").
		Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// ListByEvent includes soft-deleted events so registrant history stays reachable.
func (s *Service) ListByEvent(ctx context.Context, eventID uint) ([]models.Registration, error) {
	db := s.db.WithContext(ctx)

	var event models.Event
	if err := db.Unscoped().Select("id").First(&event, eventID).Error; err != nil {
		return nil, notFoundOr(err, "event", eventID)
	}

	var regs []models.Registration
	if err := withDetails(db).Preload("User").
		Where("event_id = ?", eventID).
		Order("occurrence_id asc, created_at asc").
		Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

func (s *Service) ListByOccurrence(ctx context.Context, occurrenceID uint) ([]models.Registration, error) {
	db := s.db.WithContext(ctx)

	var occ models.Occurrence
	if err := db.Select("id").First(&occ, occurrenceID).Error; err != nil {
		return nil, notFoundOr(err, "occurrence", occurrenceID)
	}

	var regs []models.Registration
	if err := withDetails(db).Preload("User").
		Where("occurrence_id = ?", occurrenceID).
		Order("created_at asc").
		Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}
