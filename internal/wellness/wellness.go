// Package wellness sequences the PRE assessment, the attendance check and the POST
// assessment of a registration, and derives the wellness impact once both
// assessments are in.
//
// Every step is guarded by a conditional update on the row it flips, so each
// transition happens at most once even when two operators act on the same
// registration at the same time.
package wellness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/broker"
	"github.com/gdg-garage/fitclass-api/internal/models"
	"github.com/gdg-garage/fitclass-api/internal/registrations"
)

type Service struct {
	db        *gorm.DB
	publisher broker.Publisher
	validate  *validator.Validate
	Now       func() time.Time
}

func NewService(db *gorm.DB, publisher broker.Publisher) *Service {
	if publisher == nil {
		publisher = broker.Nop{}
	}
	return &Service{
		db:        db,
		publisher: publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		Now:       time.Now,
	}
}

// MarkAttendance checks in the registration identified by l. The PRE assessment must
// be completed first. On success the POST assessment is created PENDING.
func (s *Service) MarkAttendance(ctx context.Context, l registrations.Lookup, operatorID uint) (*models.Registration, error) {
	var reg *models.Registration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		reg, err = registrations.Resolve(ctx, tx, l)
		if err != nil {
			return err
		}

		var att models.Attendance
		if err := tx.Where("registration_id = ?", reg.ID).First(&att).Error; err != nil {
			return notFoundOr(err, "attendance for registration", reg.ID)
		}
		if att.Attended {
			return apperr.Conflict("attendance for registration %d is already marked", reg.ID)
		}

		pre, err := findAssessment(tx, reg.ID, models.AssessmentPre)
		if err != nil {
			return err
		}
		if !pre.Completed() {
			return apperr.InvalidState("PRE evaluation not completed for registration %d", reg.ID)
		}

		checkedAt := s.Now().UTC()
		res := tx.Model(&models.Attendance{}).
			Where("id = ? AND attended = ?", att.ID, false).
			Updates(map[string]any{
				"attended":      true,
				"checked_at":    checkedAt,
				"checked_by_id": operatorID,
			})
		if res.Error != nil {
			return fmt.Errorf("mark attendance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("attendance for registration %d is already marked", reg.ID)
		}

		post := models.WellnessAssessment{
			RegistrationID: reg.ID,
			Type:           models.AssessmentPost,
			Status:         models.StatusPending,
		}
		if err := tx.Create(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("POST evaluation already exists for registration %d", reg.ID)
			}
			return fmt.Errorf("insert post assessment: %w", err)
		}

		att.Attended = true
		att.CheckedAt = &checkedAt
		att.CheckedByID = &operatorID
		reg.Attendance = &att
		reg.Assessments = []models.WellnessAssessment{*pre, post}
		return nil
	})
	if err != nil {
		return nil, err
	}

	broker.Notify(ctx, s.publisher, broker.Message{
		Type:           broker.AttendanceMarked,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		OccurrenceID:   reg.OccurrenceID,
		UserID:         reg.UserID,
	})
	return reg, nil
}

// findAssessment returns nil without error when the assessment does not exist.
func findAssessment(tx *gorm.DB, registrationID uint, typ models.AssessmentType) (*models.WellnessAssessment, error) {
	var a models.WellnessAssessment
	err := tx.Where("registration_id = ? AND type = ?", registrationID, typ).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s assessment: %w", typ, err)
	}
	return &a, nil
}

func notFoundOr(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %v not found", entity, id)
	}
	return fmt.Errorf("load %s %v: %w", entity, id, err)
}
