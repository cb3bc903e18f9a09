package wellness

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/identity"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

// Stats summarizes the attendance and assessment progress of an event.
type Stats struct {
	Total         int64 `json:"total"`
	Attended      int64 `json:"attended"`
	Pending       int64 `json:"pending"`
	PreCompleted  int64 `json:"preCompleted"`
	PostCompleted int64 `json:"postCompleted"`
}

func (s *Service) ListPending(ctx context.Context, subjectID uint) ([]models.WellnessAssessment, error) {
	return s.listForSubject(ctx, subjectID, models.StatusPending, "wellness_assessments.created_at asc")
}

func (s *Service) ListCompleted(ctx context.Context, subjectID uint) ([]models.WellnessAssessment, error) {
	return s.listForSubject(ctx, subjectID, models.StatusCompleted, "wellness_assessments.completed_at desc")
}

func (s *Service) listForSubject(ctx context.Context, subjectID uint, status models.AssessmentStatus, order string) ([]models.WellnessAssessment, error) {
	var out []models.WellnessAssessment
	if err := s.db.WithContext(ctx).
		Joins("JOIN registrations ON registrations.id = wellness_assessments.registration_id").
		Where("registrations.user_id = ? AND wellness_assessments.status = ?", subjectID, status).
		Preload("Registration.Occurrence").
		Order(order).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, actor identity.Actor, assessmentID uint) (*models.WellnessAssessment, error) {
	var a models.WellnessAssessment
	if err := s.db.WithContext(ctx).Preload("Registration.Occurrence").First(&a, assessmentID).Error; err != nil {
		return nil, notFoundOr(err, "assessment", assessmentID)
	}
	if a.Registration == nil || !actor.CanAccess(a.Registration.UserID) {
		return nil, apperr.Forbidden("assessment %d belongs to another user", assessmentID)
	}
	return &a, nil
}

func (s *Service) ListByRegistration(ctx context.Context, actor identity.Actor, registrationID uint) ([]models.WellnessAssessment, error) {
	db := s.db.WithContext(ctx)

	var reg models.Registration
	if err := db.First(&reg, registrationID).Error; err != nil {
		return nil, notFoundOr(err, "registration", registrationID)
	}
	if !actor.CanAccess(reg.UserID) {
		return nil, apperr.Forbidden("registration %d belongs to another user", registrationID)
	}

	var out []models.WellnessAssessment
	if err := db.Where("registration_id = ?", reg.ID).Order("id asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return out, nil
}

// AttendanceByEvent lists the event's registrations with their attendance and
// assessments, ordered by occurrence.
func (s *Service) AttendanceByEvent(ctx context.Context, eventID uint) ([]models.Registration, error) {
	db := s.db.WithContext(ctx)
	if err := eventExists(db, eventID); err != nil {
		return nil, err
	}

	var regs []models.Registration
	if err := db.Preload("User").Preload("Occurrence").Preload("Attendance").Preload("Assessments").
		Joins("JOIN occurrences ON occurrences.id = registrations.occurrence_id").
		Where("registrations.event_id = ?", eventID).
		Order("occurrences.date_time asc, registrations.id asc").
		Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return regs, nil
}

func (s *Service) StatsByEvent(ctx context.Context, eventID uint) (Stats, error) {
	db := s.db.WithContext(ctx)
	if err := eventExists(db, eventID); err != nil {
		return Stats{}, err
	}

	var st Stats
	if err := db.Model(&models.Registration{}).Where("event_id = ?", eventID).Count(&st.Total).Error; err != nil {
		return Stats{}, fmt.Errorf("count registrations: %w", err)
	}
	if err := db.Model(&models.Attendance{}).
		Joins("JOIN registrations ON registrations.id = attendances.registration_id").
		Where("registrations.event_id = ? AND attendances.attended = ?", eventID, true).
		Count(&st.Attended).Error; err != nil {
		return Stats{}, fmt.Errorf("count attendance: %w", err)
	}
	st.Pending = st.Total - st.Attended

	completed := func(typ models.AssessmentType, n *int64) error {
		return db.Model(&models.WellnessAssessment{}).
			Joins("JOIN registrations ON registrations.id = wellness_assessments.registration_id").
			Where("registrations.event_id = ? AND wellness_assessments.type = ? AND wellness_assessments.status = ?",
				eventID, typ, models.StatusCompleted).
			Count(n).Error
	}
	if err := completed(models.AssessmentPre, &st.PreCompleted); err != nil {
		return Stats{}, fmt.Errorf("count pre assessments: %w", err)
	}
	if err := completed(models.AssessmentPost, &st.PostCompleted); err != nil {
		return Stats{}, fmt.Errorf("count post assessments: %w", err)
	}
	return st, nil
}

// eventExists includes soft-deleted events, whose attendance history stays readable.
func eventExists(db *gorm.DB, eventID uint) error {
	var event models.Event
	if err := db.Unscoped().Select("id").First(&event, eventID).Error; err != nil {
		return notFoundOr(err, "event", eventID)
	}
	return nil
}
