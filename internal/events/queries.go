package events

import (
	"context"
	"fmt"

	"github.com/gdg-garage/fitclass-api/internal/capacity"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

// OccurrenceDetail is an occurrence with its live availability and, for a
// personalized read, the caller's registration.
type OccurrenceDetail struct {
	Occurrence   models.Occurrence
	Availability capacity.Availability
	Registration *models.Registration
}

type Detail struct {
	Event       models.Event
	Occurrences []OccurrenceDetail
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]models.Event, error) {
	q := s.db.WithContext(ctx).Preload("Category")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []models.Event
	if err := q.Order("start_date asc, id asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// Get returns an event with all of its occurrences. When subjectID is set each
// occurrence carries that subject's registration, if any.
func (s *Service) Get(ctx context.Context, eventID uint, subjectID *uint) (*Detail, error) {
	db := s.db.WithContext(ctx)

	var ev models.Event
	if err := db.Preload("Category").First(&ev, eventID).Error; err != nil {
		return nil, notFoundOr(err, "event", eventID)
	}

	var occs []models.Occurrence
	if err := db.Where("event_id = ?", ev.ID).Order("date_time asc").Find(&occs).Error; err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	ids := make([]uint, len(occs))
	for i, o := range occs {
		ids[i] = o.ID
	}
	counts, err := capacity.Counts(db, ids)
	if err != nil {
		return nil, err
	}

	mine := map[uint]*models.Registration{}
	if subjectID != nil {
		var regs []models.Registration
		if err := db.Preload("Attendance").Preload("Assessments").
			Where("user_id = ? AND event_id = ?", *subjectID, ev.ID).
			Find(&regs).Error; err != nil {
			return nil, fmt.Errorf("list registrations: %w", err)
		}
		for i := range regs {
			mine[regs[i].OccurrenceID] = &regs[i]
		}
	}

	d := &Detail{Event: ev, Occurrences: make([]OccurrenceDetail, 0, len(occs))}
	for _, o := range occs {
		d.Occurrences = append(d.Occurrences, OccurrenceDetail{
			Occurrence:   o,
			Availability: capacity.Compute(o, counts[o.ID]),
			Registration: mine[o.ID],
		})
	}
	return d, nil
}

// ListOccurrences lists an event's occurrences by date. availableOnly keeps the
// active ones that have not started yet.
func (s *Service) ListOccurrences(ctx context.Context, eventID uint, availableOnly bool) ([]models.Occurrence, error) {
	db := s.db.WithContext(ctx)

	var ev models.Event
	if err := db.Select("id").First(&ev, eventID).Error; err != nil {
		return nil, notFoundOr(err, "event", eventID)
	}

	q := db.Where("event_id = ?", eventID)
	if availableOnly {
		q = q.Where("is_active = ? AND date_time > ?", true, s.Now().UTC())
	}
	var out []models.Occurrence
	if err := q.Order("date_time asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	return out, nil
}

func (s *Service) GetOccurrence(ctx context.Context, occurrenceID uint) (*models.Occurrence, error) {
	var occ models.Occurrence
	if err := s.db.WithContext(ctx).Preload("Event").First(&occ, occurrenceID).Error; err != nil {
		return nil, notFoundOr(err, "occurrence", occurrenceID)
	}
	return &occ, nil
}

func (s *Service) OccurrenceAvailability(ctx context.Context, occurrenceID uint) (capacity.Availability, error) {
	return s.tracker.Availability(ctx, occurrenceID)
}

func (s *Service) EventAvailability(ctx context.Context, eventID uint) ([]capacity.Availability, error) {
	return s.tracker.ForEvent(ctx, eventID)
}

// DeactivateOccurrence stops an occurrence from accepting registrations. Existing
// registrations are kept. Deactivating twice is a no-op.
func (s *Service) DeactivateOccurrence(ctx context.Context, occurrenceID uint) (*models.Occurrence, error) {
	db := s.db.WithContext(ctx)

	var occ models.Occurrence
	if err := db.First(&occ, occurrenceID).Error; err != nil {
		return nil, notFoundOr(err, "occurrence", occurrenceID)
	}
	if !occ.IsActive {
		return &occ, nil
	}
	if err := db.Model(&occ).Update("is_active", false).Error; err != nil {
		return nil, fmt.Errorf("deactivate occurrence: %w", err)
	}
	occ.IsActive = false
	return &occ, nil
}
