package events

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

// Delete soft-deletes an event. Its occurrences and registrant history stay in place
// but the event no longer appears in listings or accepts registrations.
func (s *Service) Delete(ctx context.Context, eventID uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Event{}, eventID)
	if res.Error != nil {
		return fmt.Errorf("delete event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("event %d not found", eventID)
	}
	return nil
}

// PermanentDelete physically removes an event, soft-deleted or not, together with its
// occurrences, registrations, attendance and assessments. It destroys registrant
// history and is meant for operators only.
func (s *Service) PermanentDelete(ctx context.Context, eventID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ev models.Event
		if err := tx.Unscoped().Select("id").First(&ev, eventID).Error; err != nil {
			return notFoundOr(err, "event", eventID)
		}

		var regIDs []uint
		if err := tx.Model(&models.Registration{}).Where("event_id = ?", eventID).Pluck("id", &regIDs).Error; err != nil {
			return fmt.Errorf("list registrations: %w", err)
		}
		if len(regIDs) > 0 {
			if err := tx.Where("registration_id IN ?", regIDs).Delete(&models.WellnessAssessment{}).Error; err != nil {
				return fmt.Errorf("delete assessments: %w", err)
			}
			if err := tx.Where("registration_id IN ?", regIDs).Delete(&models.Attendance{}).Error; err != nil {
				return fmt.Errorf("delete attendance: %w", err)
			}
			if err := tx.Where("id IN ?", regIDs).Delete(&models.Registration{}).Error; err != nil {
				return fmt.Errorf("delete registrations: %w", err)
			}
		}
		if err := tx.Where("event_id = ?", eventID).Delete(&models.Occurrence{}).Error; err != nil {
			return fmt.Errorf("delete occurrences: %w", err)
		}
		if err := tx.Unscoped().Delete(&models.Event{}, eventID).Error; err != nil {
			return fmt.Errorf("delete event: %w", err)
		}

		log.Printf("events: permanently deleted event %d with %d registrations", eventID, len(regIDs))
		return nil
	})
}
