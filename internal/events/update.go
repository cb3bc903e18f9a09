package events

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/capacity"
	"github.com/gdg-garage/fitclass-api/internal/models"
	"github.com/gdg-garage/fitclass-api/internal/recurrence"
)

// UpdateInput changes the fields that are set. RegenerateInstances rebuilds the
// future occurrences from the resulting rule.
type UpdateInput struct {
	Name                *string                `json:"name,omitempty" validate:"omitempty,max=200"`
	Description         *string                `json:"description,omitempty"`
	StartDate           *string                `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate             *string                `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TimeOfDay           *string                `json:"timeOfDay,omitempty"`
	Schedules           *[]recurrence.Schedule `json:"schedules,omitempty"`
	RecurrenceType      *recurrence.Type       `json:"recurrenceType,omitempty" validate:"omitempty,oneof=SINGLE WEEKLY INTERVAL"`
	RecurrencePattern   *recurrence.Pattern    `json:"recurrencePattern,omitempty"`
	Capacity            *int                   `json:"capacity,omitempty" validate:"omitempty,min=1"`
	CategoryID          *uint                  `json:"categoryId,omitempty"`
	IsActive            *bool                  `json:"isActive,omitempty"`
	RegenerateInstances bool                   `json:"regenerateInstances,omitempty"`
}

func (in UpdateInput) changesRecurrence() bool {
	return in.TimeOfDay != nil || in.Schedules != nil || in.RecurrenceType != nil || in.RecurrencePattern != nil
}

// Regeneration reports what a regeneration did to the event's future occurrences.
type Regeneration struct {
	Deleted   int `json:"deleted"`
	Preserved int `json:"preserved"`
	Created   int `json:"created"`
}

// Update applies in to the event. The returned report is nil unless regeneration
// was requested.
func (s *Service) Update(ctx context.Context, eventID uint, in UpdateInput) (*models.Event, *Regeneration, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, nil, validationError(err)
	}
	if in.Schedules != nil {
		for _, sc := range *in.Schedules {
			if err := s.validate.Struct(sc); err != nil {
				return nil, nil, validationError(err)
			}
		}
	}

	var ev models.Event
	var report *Regeneration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&ev, eventID).Error; err != nil {
			return notFoundOr(err, "event", eventID)
		}
		if err := s.apply(&ev, in); err != nil {
			return err
		}
		if in.CategoryID != nil {
			if err := checkCategory(tx, ev.CategoryID); err != nil {
				return err
			}
		}

		var dates []time.Time
		if in.changesRecurrence() || in.StartDate != nil || in.EndDate != nil || in.RegenerateInstances {
			var err error
			if dates, err = s.generate(&ev); err != nil {
				return err
			}
			if len(dates) == 0 {
				return apperr.InvalidState("no instances would be generated between %s and %s",
					ev.StartDate.Format(dateLayout), ev.EndDate.Format(dateLayout))
			}
		}

		if err := tx.Omit(clause.Associations).Save(&ev).Error; err != nil {
			return fmt.Errorf("update event: %w", err)
		}

		if in.RegenerateInstances {
			r, err := s.regenerate(tx, &ev, dates)
			if err != nil {
				return err
			}
			report = r
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if report != nil {
		log.Printf("events: regenerated event %d: %d deleted, %d preserved, %d created",
			ev.ID, report.Deleted, report.Preserved, report.Created)
	}
	return &ev, report, nil
}

func (s *Service) apply(ev *models.Event, in UpdateInput) error {
	if in.Name != nil {
		ev.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		ev.Description = *in.Description
	}
	if in.StartDate != nil {
		d, err := parseDate("startDate", *in.StartDate)
		if err != nil {
			return err
		}
		ev.StartDate = d
	}
	if in.EndDate != nil {
		d, err := parseDate("endDate", *in.EndDate)
		if err != nil {
			return err
		}
		ev.EndDate = d
	}
	if in.Capacity != nil {
		ev.Capacity = *in.Capacity
	}
	if in.CategoryID != nil {
		ev.CategoryID = *in.CategoryID
	}
	if in.IsActive != nil {
		ev.IsActive = *in.IsActive
	}

	if in.changesRecurrence() {
		timeOfDay, schedules := ev.TimeOfDay, ev.Schedules.Data()
		typ, pattern := ev.RecurrenceType, ev.RecurrencePattern.Data()
		if in.Schedules != nil {
			schedules = *in.Schedules
		}
		if in.TimeOfDay != nil {
			timeOfDay = *in.TimeOfDay
		}
		if in.RecurrenceType != nil {
			typ = *in.RecurrenceType
		}
		if in.RecurrencePattern != nil {
			pattern = *in.RecurrencePattern
		}
		// Switching to a plain rule drops the stored schedules.
		if in.Schedules == nil && (in.TimeOfDay != nil || in.RecurrencePattern != nil ||
			(in.RecurrenceType != nil && *in.RecurrenceType != recurrence.Weekly)) {
			schedules = nil
		}
		if err := applyRecurrence(ev, timeOfDay, schedules, typ, pattern); err != nil {
			return err
		}
	}

	return s.checkRules(ev, in.StartDate != nil)
}

// regenerate replaces the event's future occurrences with ones built from dates.
// Future occurrences that hold registrations are kept, and no new occurrence is
// created at a time one of them already covers. Past occurrences are left alone.
func (s *Service) regenerate(tx *gorm.DB, ev *models.Event, dates []time.Time) (*Regeneration, error) {
	now := s.Now().UTC()

	var future []models.Occurrence
	if err := tx.Where("event_id = ? AND date_time > ?", ev.ID, now).Find(&future).Error; err != nil {
		return nil, fmt.Errorf("list future occurrences: %w", err)
	}
	ids := make([]uint, len(future))
	for i, o := range future {
		ids[i] = o.ID
	}
	counts, err := capacity.Counts(tx, ids)
	if err != nil {
		return nil, err
	}

	var empty []uint
	for _, o := range future {
		if counts[o.ID] == 0 {
			empty = append(empty, o.ID)
		}
	}

	report := &Regeneration{}
	if len(empty) > 0 {
		// The NOT EXISTS guard keeps an occurrence that gained a registration after
		// it was counted.
		res := tx.Where("id IN ?", empty).
			Where("NOT EXISTS (SELECT 1 FROM registrations WHERE registrations.occurrence_id = occurrences.id)").
			Delete(&models.Occurrence{})
		if res.Error != nil {
			return nil, fmt.Errorf("delete occurrences: %w", res.Error)
		}
		report.Deleted = int(res.RowsAffected)
	}

	var kept []models.Occurrence
	if err := tx.Where("event_id = ? AND date_time > ?", ev.ID, now).Find(&kept).Error; err != nil {
		return nil, fmt.Errorf("list preserved occurrences: %w", err)
	}
	report.Preserved = len(kept)

	taken := make(map[int64]bool, len(kept))
	for _, o := range kept {
		taken[o.DateTime.Unix()] = true
	}
	var fresh []time.Time
	for _, d := range dates {
		if !d.After(now) || taken[d.Unix()] {
			continue
		}
		fresh = append(fresh, d)
	}

	occs, err := s.insertOccurrences(tx, ev, fresh)
	if err != nil {
		return nil, err
	}
	report.Created = len(occs)
	return report, nil
}
