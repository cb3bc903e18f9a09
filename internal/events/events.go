// Package events coordinates the event lifecycle: validated creation with occurrence
// generation, updates with optional regeneration that never discards an occurrence
// holding registrations, soft and permanent deletion, and the occurrence operations.
package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/capacity"
	"github.com/gdg-garage/fitclass-api/internal/models"
	"github.com/gdg-garage/fitclass-api/internal/recurrence"
)

const defaultBatchSize = 200

type Service struct {
	db       *gorm.DB
	engine   recurrence.Engine
	tracker  *capacity.Tracker
	validate *validator.Validate
	loc      *time.Location

	BatchSize int
	Now       func() time.Time
}

// NewService builds the coordinator. Event dates and times of day are interpreted in
// loc; a nil loc means UTC.
func NewService(db *gorm.DB, engine recurrence.Engine, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		db:        db,
		engine:    engine,
		tracker:   capacity.NewTracker(db),
		validate:  newValidator(),
		loc:       loc,
		BatchSize: defaultBatchSize,
		Now:       time.Now,
	}
	s.tracker.Now = func() time.Time { return s.Now() }
	return s
}

// Input describes a new event. Schedules, when given, replace TimeOfDay and the
// recurrence pattern and imply WEEKLY.
type Input struct {
	Name              string                `json:"name" validate:"required,max=200"`
	Description       string                `json:"description,omitempty"`
	StartDate         string                `json:"startDate" validate:"required,datetime=2006-01-02" example:"2024-01-01"`
	EndDate           string                `json:"endDate" validate:"required,datetime=2006-01-02" example:"2024-01-14"`
	TimeOfDay         string                `json:"timeOfDay,omitempty" example:"10:00"`
	Schedules         []recurrence.Schedule `json:"schedules,omitempty" validate:"omitempty,dive"`
	RecurrenceType    recurrence.Type       `json:"recurrenceType,omitempty" validate:"omitempty,oneof=SINGLE WEEKLY INTERVAL"`
	RecurrencePattern recurrence.Pattern    `json:"recurrencePattern,omitempty"`
	Capacity          int                   `json:"capacity" validate:"min=1"`
	CategoryID        uint                  `json:"categoryId" validate:"required"`
	IsActive          *bool                 `json:"isActive,omitempty"`
}

func (s *Service) Create(ctx context.Context, creatorID uint, in Input) (*models.Event, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	start, err := parseDate("startDate", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("endDate", in.EndDate)
	if err != nil {
		return nil, err
	}

	ev := models.Event{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		StartDate:   start,
		EndDate:     end,
		Capacity:    in.Capacity,
		IsActive:    in.IsActive == nil || *in.IsActive,
		CategoryID:  in.CategoryID,
		CreatedByID: creatorID,
	}
	if err := applyRecurrence(&ev, in.TimeOfDay, in.Schedules, in.RecurrenceType, in.RecurrencePattern); err != nil {
		return nil, err
	}
	if err := s.checkRules(&ev, true); err != nil {
		return nil, err
	}

	dates, err := s.generate(&ev)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, apperr.InvalidState("no instances would be generated between %s and %s",
			in.StartDate, in.EndDate)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkCategory(tx, ev.CategoryID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&ev).Error; err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		occs, err := s.insertOccurrences(tx, &ev, dates)
		if err != nil {
			return err
		}
		ev.Occurrences = occs
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("events: created event %d, occurrences: %s", ev.ID, describeDates(dates))
	return &ev, nil
}

// applyRecurrence sets the rule fields of ev. Sub-schedules take precedence.
func applyRecurrence(ev *models.Event, timeOfDay string, schedules []recurrence.Schedule, typ recurrence.Type, p recurrence.Pattern) error {
	if len(schedules) > 0 {
		if typ != "" && typ != recurrence.Weekly {
			return apperr.Validation("schedules can only be used with %s recurrence", recurrence.Weekly)
		}
		ev.Schedules = datatypes.NewJSONType(schedules)
		ev.TimeOfDay = ""
		ev.RecurrenceType = recurrence.Weekly
		ev.RecurrencePattern = datatypes.NewJSONType(recurrence.Pattern{})
		return nil
	}

	if typ == "" {
		return apperr.Validation("recurrenceType is required")
	}
	if timeOfDay == "" {
		return apperr.Validation("timeOfDay is required when no schedules are given")
	}
	ev.Schedules = datatypes.NewJSONType([]recurrence.Schedule(nil))
	ev.TimeOfDay = timeOfDay
	ev.RecurrenceType = typ
	if typ == recurrence.Single {
		p = recurrence.Pattern{}
	}
	ev.RecurrencePattern = datatypes.NewJSONType(p)
	return nil
}

// generate expands the event's rule into UTC occurrence times.
func (s *Service) generate(ev *models.Event) ([]time.Time, error) {
	start, end := inZone(ev.StartDate, s.loc), inZone(ev.EndDate, s.loc)

	var (
		dates []time.Time
		err   error
	)
	if schedules := ev.Schedules.Data(); len(schedules) > 0 {
		dates, err = s.engine.GenerateFromSchedules(start, end, schedules)
	} else {
		dates, err = s.engine.Generate(start, end, ev.TimeOfDay, ev.RecurrenceType, ev.RecurrencePattern.Data())
	}
	if err != nil {
		return nil, err
	}
	for i := range dates {
		dates[i] = dates[i].UTC()
	}
	return dates, nil
}

func (s *Service) insertOccurrences(tx *gorm.DB, ev *models.Event, dates []time.Time) ([]models.Occurrence, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	occs := make([]models.Occurrence, len(dates))
	for i, d := range dates {
		occs[i] = models.Occurrence{EventID: ev.ID, DateTime: d, Capacity: ev.Capacity, IsActive: true}
	}
	batch := s.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	if err := tx.CreateInBatches(&occs, batch).Error; err != nil {
		return nil, fmt.Errorf("insert occurrences: %w", err)
	}
	return occs, nil
}

func checkCategory(tx *gorm.DB, categoryID uint) error {
	var cat models.ExerciseCategory
	if err := tx.First(&cat, categoryID).Error; err != nil {
		return notFoundOr(err, "category", categoryID)
	}
	if !cat.IsActive {
		return apperr.InvalidState("category %q is not active", cat.Name)
	}
	return nil
}

func notFoundOr(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %v not found", entity, id)
	}
	return fmt.Errorf("load %s %v: %w", entity, id, err)
}
