// Package registrations admits subjects to occurrences and cancels admissions.
//
// Admission is the one race-sensitive region of the system: the event and occurrence
// checks, the duplicate check, the capacity count and the three inserts run in a
// single transaction. On postgres and mysql the transaction opens by locking the
// occurrence row FOR UPDATE, so concurrent admissions to one occurrence queue behind
// each other. Every read after the lock, the capacity count included, therefore sees
// the previous admission: postgres READ COMMITTED snapshots per statement, and a
// MySQL REPEATABLE READ snapshot starts at the first plain read, which comes after the
// lock. sqlite serializes writers at BEGIN IMMEDIATE. The (user_id, occurrence_id)
// unique index backs up the duplicate check.
package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/broker"
	"github.com/gdg-garage/fitclass-api/internal/capacity"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

type Service struct {
	db        *gorm.DB
	publisher broker.Publisher
	Now       func() time.Time
}

func NewService(db *gorm.DB, publisher broker.Publisher) *Service {
	if publisher == nil {
		publisher = broker.Nop{}
	}
	return &Service{db: db, publisher: publisher, Now: time.Now}
}

// Create admits subjectID to an occurrence of eventID. The registration, its
// attendance placeholder and its PENDING PRE assessment are written together or not
// at all.
func (s *Service) Create(ctx context.Context, subjectID, eventID, occurrenceID uint) (*models.Registration, error) {
	var reg models.Registration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The lock must be the first statement: a MySQL snapshot is taken at the first
		// plain read, which has to see the admission that held the lock before us.
		var occ models.Occurrence
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&occ, occurrenceID).Error; err != nil {
			return notFoundOr(err, "occurrence", occurrenceID)
		}

		var event models.Event
		if err := tx.Unscoped().First(&event, eventID).Error; err != nil {
			return notFoundOr(err, "event", eventID)
		}
		if event.IsDeleted() {
			return apperr.InvalidState("event %d has been deleted", eventID)
		}
		if !event.IsActive {
			return apperr.InvalidState("event %d is not active", eventID)
		}
		if occ.EventID != eventID {
			return apperr.InvalidState("occurrence %d does not belong to event %d", occurrenceID, eventID)
		}
		if !occ.IsActive {
			return apperr.InvalidState("occurrence %d is not active", occurrenceID)
		}
		if occ.DateTime.Before(s.Now()) {
			return apperr.InvalidState("occurrence %d has already taken place", occurrenceID)
		}

		var existing int64
		if err := tx.Model(&models.Registration{}).
			Where("user_id = ? AND occurrence_id = ?", subjectID, occurrenceID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if existing > 0 {
			return apperr.Conflict("already registered for occurrence %d", occurrenceID)
		}

		registered, err := capacity.CountRegistrations(tx, occ.ID)
		if err != nil {
			return err
		}
		if registered >= int64(occ.Capacity) {
			return apperr.CapacityExceeded("occurrence %d is full (%d of %d places taken)", occurrenceID, registered, occ.Capacity)
		}

		reg = models.Registration{
			UserID:       subjectID,
			EventID:      eventID,
			OccurrenceID: occ.ID,
			Code:         uuid.NewString(),
		}
		if err := tx.Create(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("already registered for occurrence %d", occurrenceID)
			}
			return fmt.Errorf("insert registration: %w", err)
		}

		attendance := models.Attendance{RegistrationID: reg.ID}
		if err := tx.Create(&attendance).Error; err != nil {
			return fmt.Errorf("insert attendance: %w", err)
		}

		pre := models.WellnessAssessment{
			RegistrationID: reg.ID,
			Type:           models.AssessmentPre,
			Status:         models.StatusPending,
		}
		if err := tx.Create(&pre).Error; err != nil {
			return fmt.Errorf("insert pre assessment: %w", err)
		}

		reg.Occurrence = &occ
		reg.Attendance = &attendance
		reg.Assessments = []models.WellnessAssessment{pre}
		return nil
	})
	if err != nil {
		return nil, err
	}

	broker.Notify(ctx, s.publisher, broker.Message{
		Type:           broker.RegistrationCreated,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		OccurrenceID:   reg.OccurrenceID,
		UserID:         reg.UserID,
	})
	return &reg, nil
}

// Cancel removes a registration and everything it owns. Only the registrant may
// cancel, and only while attendance has not been marked.
func (s *Service) Cancel(ctx context.Context, registrationID, subjectID uint) error {
	var reg models.Registration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reg, registrationID).Error; err != nil {
			return notFoundOr(err, "registration", registrationID)
		}
		if reg.UserID != subjectID {
			return apperr.Forbidden("registration %d belongs to another user", registrationID)
		}

		// Only an unattended placeholder may go.
		res := tx.Where("registration_id = ? AND attended = ?", reg.ID, false).Delete(&models.Attendance{})
		if res.Error != nil {
			return fmt.Errorf("delete attendance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var attended int64
			if err := tx.Model(&models.Attendance{}).
				Where("registration_id = ? AND attended = ?", reg.ID, true).
				Count(&attended).Error; err != nil {
				return fmt.Errorf("check attendance: %w", err)
			}
			if attended > 0 {
				return apperr.InvalidState("registration %d cannot be cancelled after attendance was marked", registrationID)
			}
		}

		if err := tx.Where("registration_id = ?", reg.ID).Delete(&models.WellnessAssessment{}).Error; err != nil {
			return fmt.Errorf("delete assessments: %w", err)
		}
		if err := tx.Delete(&models.Registration{}, reg.ID).Error; err != nil {
			return fmt.Errorf("delete registration: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	broker.Notify(ctx, s.publisher, broker.Message{
		Type:           broker.RegistrationCancelled,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		OccurrenceID:   reg.OccurrenceID,
		UserID:         reg.UserID,
	})
	return nil
}

func notFoundOr(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %v not found", entity, id)
	}
	return fmt.Errorf("load %s %v: %w", entity, id, err)
}
