package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/recurrence"
)

// Event is a recurring class. gorm.Model's DeletedAt is the soft-delete flag: a
// soft-deleted event disappears from default-scoped queries while its occurrences and
// their registrant history stay in place.
type Event struct {
	gorm.Model
	Name              string    `gorm:"size:200;not null"`
	Description       string
	StartDate         time.Time `gorm:"not null"`
	EndDate           time.Time `gorm:"not null"`
	TimeOfDay         string    `gorm:"size:5"`
	Schedules         datatypes.JSONType[[]recurrence.Schedule]
	RecurrenceType    recurrence.Type `gorm:"size:16;not null"`
	RecurrencePattern datatypes.JSONType[recurrence.Pattern]
	Capacity          int  `gorm:"not null"`
	IsActive          bool `gorm:"not null;index"`

	CategoryID  uint             `gorm:"index;not null"`
	Category    ExerciseCategory `gorm:"foreignKey:CategoryID"`
	CreatedByID uint             `gorm:"index"`

	Occurrences []Occurrence `gorm:"foreignKey:EventID"`
}

// IsDeleted reports whether the event was soft-deleted.
func (e *Event) IsDeleted() bool { return e.DeletedAt.Valid }

// Occurrence is one bookable instance of an Event. Capacity is captured when the
// occurrence is generated and may diverge from the event's current default.
type Occurrence struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	EventID  uint      `gorm:"index;not null"`
	Event    *Event    `gorm:"foreignKey:EventID"`
	DateTime time.Time `gorm:"index;not null"`
	Capacity int       `gorm:"not null"`
	IsActive bool      `gorm:"not null"`
}
