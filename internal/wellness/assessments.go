package wellness

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/broker"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

// Metrics are the three self-reported values of an assessment, each on a 0-10 scale.
type Metrics struct {
	SleepQuality *int `json:"sleepQuality" validate:"required,min=0,max=10"`
	StressLevel  *int `json:"stressLevel" validate:"required,min=0,max=10"`
	Mood         *int `json:"mood" validate:"required,min=0,max=10"`
}

func (s *Service) validateMetrics(m Metrics) error {
	err := s.validate.Struct(m)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		if f.Tag() == "required" {
			return apperr.Validation("%s is required", f.Field())
		}
		return apperr.Validation("%s must be between 0 and 10", f.Field())
	}
	return apperr.Validation("invalid metrics: %v", err)
}

// Complete completes the assessment with the given id on behalf of its owner.
func (s *Service) Complete(ctx context.Context, subjectID, assessmentID uint, m Metrics) (*models.WellnessAssessment, error) {
	if err := s.validateMetrics(m); err != nil {
		return nil, err
	}

	var a models.WellnessAssessment
	var reg models.Registration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&a, assessmentID).Error; err != nil {
			return notFoundOr(err, "assessment", assessmentID)
		}
		if err := tx.First(&reg, a.RegistrationID).Error; err != nil {
			return notFoundOr(err, "registration", a.RegistrationID)
		}
		if reg.UserID != subjectID {
			return apperr.Forbidden("assessment %d belongs to another user", assessmentID)
		}
		return s.complete(tx, &reg, &a, m)
	})
	if err != nil {
		return nil, err
	}
	s.notifyCompleted(ctx, &reg, &a)
	return &a, nil
}

// CompleteForRegistration completes the registration's assessment of type typ.
func (s *Service) CompleteForRegistration(ctx context.Context, subjectID, registrationID uint, typ models.AssessmentType, m Metrics) (*models.WellnessAssessment, error) {
	if typ != models.AssessmentPre && typ != models.AssessmentPost {
		return nil, apperr.Validation("unknown assessment type %q", typ)
	}
	if err := s.validateMetrics(m); err != nil {
		return nil, err
	}

	var a *models.WellnessAssessment
	var reg models.Registration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&reg, registrationID).Error; err != nil {
			return notFoundOr(err, "registration", registrationID)
		}
		if reg.UserID != subjectID {
			return apperr.Forbidden("registration %d belongs to another user", registrationID)
		}

		var err error
		a, err = findAssessment(tx, reg.ID, typ)
		if err != nil {
			return err
		}
		if a == nil {
			if typ == models.AssessmentPost {
				return apperr.InvalidState("attendance not marked for registration %d", registrationID)
			}
			return apperr.InvalidState("registration %d has no %s evaluation", registrationID, typ)
		}
		return s.complete(tx, &reg, a, m)
	})
	if err != nil {
		return nil, err
	}
	s.notifyCompleted(ctx, &reg, a)
	return a, nil
}

// complete applies the ordering rules and flips a PENDING assessment to COMPLETED.
// PRE must close before attendance is marked; POST opens only after it.
func (s *Service) complete(tx *gorm.DB, reg *models.Registration, a *models.WellnessAssessment, m Metrics) error {
	if a.Completed() {
		return apperr.InvalidState("%s evaluation of registration %d is already completed", a.Type, reg.ID)
	}

	var att models.Attendance
	if err := tx.Where("registration_id = ?", reg.ID).First(&att).Error; err != nil {
		return notFoundOr(err, "attendance for registration", reg.ID)
	}
	switch a.Type {
	case models.AssessmentPre:
		if att.Attended {
			return apperr.InvalidState("PRE evaluation of registration %d closed when attendance was marked", reg.ID)
		}
	case models.AssessmentPost:
		if !att.Attended {
			return apperr.InvalidState("attendance not marked for registration %d", reg.ID)
		}
	}

	completedAt := s.Now().UTC()
	res := tx.Model(&models.WellnessAssessment{}).
		Where("id = ? AND status = ?", a.ID, models.StatusPending).
		Updates(map[string]any{
			"status":        models.StatusCompleted,
			"sleep_quality": *m.SleepQuality,
			"stress_level":  *m.StressLevel,
			"mood":          *m.Mood,
			"completed_at":  completedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("complete assessment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.InvalidState("%s evaluation of registration %d is already completed", a.Type, reg.ID)
	}

	a.Status = models.StatusCompleted
	a.SleepQuality = m.SleepQuality
	a.StressLevel = m.StressLevel
	a.Mood = m.Mood
	a.CompletedAt = &completedAt
	return nil
}

func (s *Service) notifyCompleted(ctx context.Context, reg *models.Registration, a *models.WellnessAssessment) {
	broker.Notify(ctx, s.publisher, broker.Message{
		Type:           broker.AssessmentCompleted,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		OccurrenceID:   reg.OccurrenceID,
		UserID:         reg.UserID,
		Detail:         string(a.Type),
	})
}
