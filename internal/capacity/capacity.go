// Package capacity computes live occurrence availability from the registration
// table. Counts are never cached beyond the call that computed them.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

type Availability struct {
	OccurrenceID uint      `json:"occurrenceId"`
	DateTime     time.Time `json:"dateTime"`
	Capacity     int       `json:"capacity"`
	Registered   int       `json:"registered"`
	Available    int       `json:"available"`
}

// Compute derives availability for an occurrence with the given registration count.
func Compute(occ models.Occurrence, registered int64) Availability {
	available := occ.Capacity - int(registered)
	if available < 0 {
		available = 0
	}
	return Availability{
		OccurrenceID: occ.ID,
		DateTime:     occ.DateTime,
		Capacity:     occ.Capacity,
		Registered:   int(registered),
		Available:    available,
	}
}

type Tracker struct {
	db  *gorm.DB
	Now func() time.Time
}

func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db, Now: time.Now}
}

func (t *Tracker) Availability(ctx context.Context, occurrenceID uint) (Availability, error) {
	db := t.db.WithContext(ctx)

	var occ models.Occurrence
	if err := db.First(&occ, occurrenceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Availability{}, apperr.NotFound("occurrence %d not found", occurrenceID)
		}
		return Availability{}, fmt.Errorf("load occurrence: %w", err)
	}

	n, err := CountRegistrations(db, occ.ID)
	if err != nil {
		return Availability{}, err
	}
	return Compute(occ, n), nil
}

// HasCapacity is a read-side pre-check only. Admission re-counts inside its own
// transaction and never relies on this answer.
func (t *Tracker) HasCapacity(ctx context.Context, occurrenceID uint) (bool, error) {
	a, err := t.Availability(ctx, occurrenceID)
	if err != nil {
		return false, err
	}
	return a.Available > 0, nil
}

// ForEvent reports availability for every active, not yet started occurrence of an
// event, ordered by date-time.
func (t *Tracker) ForEvent(ctx context.Context, eventID uint) ([]Availability, error) {
	db := t.db.WithContext(ctx)

	var event models.Event
	if err := db.Select("id").First(&event, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("event %d not found", eventID)
		}
		return nil, fmt.Errorf("load event: %w", err)
	}

	var occs []models.Occurrence
	if err := db.Where("event_id = ? AND is_active = ? AND date_time > ?", eventID, true, t.Now().UTC()).
		Order("date_time asc").Find(&occs).Error; err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}

	ids := make([]uint, len(occs))
	for i, o := range occs {
		ids[i] = o.ID
	}
	counts, err := Counts(db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Availability, 0, len(occs))
	for _, o := range occs {
		out = append(out, Compute(o, counts[o.ID]))
	}
	return out, nil
}

// CountRegistrations counts the registrations held against an occurrence. Pass the
// admission transaction so the count and the insert see the same state.
func CountRegistrations(tx *gorm.DB, occurrenceID uint) (int64, error) {
	var n int64
	if err := tx.Model(&models.Registration{}).Where("occurrence_id = ?", occurrenceID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// Counts returns registration counts keyed by occurrence id in one grouped query.
// Occurrences without registrations are absent from the map.
func Counts(tx *gorm.DB, occurrenceIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(occurrenceIDs))
	if len(occurrenceIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		OccurrenceID uint
		N            int64
	}
	if err := tx.Model(&models.Registration{}).
		Select("occurrence_id, count(*) as n").
		Where("occurrence_id IN ?", occurrenceIDs).
		Group("occurrence_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	for _, r := range rows {
		counts[r.OccurrenceID] = r.N
	}
	return counts, nil
}
