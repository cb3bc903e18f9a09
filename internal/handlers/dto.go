package handlers

import (
	"time"

	"github.com/gdg-garage/fitclass-api/internal/capacity"
	"github.com/gdg-garage/fitclass-api/internal/events"
	"github.com/gdg-garage/fitclass-api/internal/models"
	"github.com/gdg-garage/fitclass-api/internal/recurrence"
	"github.com/gdg-garage/fitclass-api/internal/wellness"
)

const dateLayout = "2006-01-02"

type CategoryResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

type EventResponse struct {
	ID                uint                  `json:"id"`
	Name              string                `json:"name"`
	Description       string                `json:"description"`
	StartDate         string                `json:"startDate"`
	EndDate           string                `json:"endDate"`
	TimeOfDay         string                `json:"timeOfDay,omitempty"`
	Schedules         []recurrence.Schedule `json:"schedules,omitempty"`
	RecurrenceType    recurrence.Type       `json:"recurrenceType"`
	RecurrencePattern recurrence.Pattern    `json:"recurrencePattern"`
	Capacity          int                   `json:"capacity"`
	IsActive          bool                  `json:"isActive"`
	CategoryID        uint                  `json:"categoryId"`
	Category          *CategoryResponse     `json:"category,omitempty"`
	CreatedByID       uint                  `json:"createdById"`
	CreatedAt         time.Time             `json:"createdAt"`
}

// MyRegistration is the caller's own booking on a personalized occurrence read.
type MyRegistration struct {
	ID       uint   `json:"id"`
	Code     string `json:"code"`
	Attended bool   `json:"attended"`
}

type OccurrenceResponse struct {
	ID             uint            `json:"id"`
	EventID        uint            `json:"eventId"`
	DateTime       time.Time       `json:"dateTime"`
	Capacity       int             `json:"capacity"`
	IsActive       bool            `json:"isActive"`
	Registered     *int            `json:"registered,omitempty"`
	Available      *int            `json:"available,omitempty"`
	MyRegistration *MyRegistration `json:"myRegistration,omitempty"`
}

type UserSummary struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type AttendanceResponse struct {
	Attended    bool       `json:"attended"`
	CheckedAt   *time.Time `json:"checkedAt,omitempty"`
	CheckedByID *uint      `json:"checkedById,omitempty"`
}

type AssessmentResponse struct {
	ID             uint                    `json:"id"`
	RegistrationID uint                    `json:"registrationId"`
	Type           models.AssessmentType   `json:"type"`
	Status         models.AssessmentStatus `json:"status"`
	SleepQuality   *int                    `json:"sleepQuality"`
	StressLevel    *int                    `json:"stressLevel"`
	Mood           *int                    `json:"mood"`
	CompletedAt    *time.Time              `json:"completedAt,omitempty"`
	CreatedAt      time.Time               `json:"createdAt"`
	Occurrence     *OccurrenceResponse     `json:"occurrence,omitempty"`
}

type RegistrationResponse struct {
	ID           uint                 `json:"id"`
	UserID       uint                 `json:"userId"`
	EventID      uint                 `json:"eventId"`
	OccurrenceID uint                 `json:"occurrenceId"`
	Code         string               `json:"code"`
	CreatedAt    time.Time            `json:"createdAt"`
	User         *UserSummary         `json:"user,omitempty"`
	Occurrence   *OccurrenceResponse  `json:"occurrence,omitempty"`
	Attendance   *AttendanceResponse  `json:"attendance,omitempty"`
	Assessments  []AssessmentResponse `json:"assessments,omitempty"`
}

func toCategory(c models.ExerciseCategory) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
	}
}

func toEvent(e models.Event) EventResponse {
	res := EventResponse{
		ID:                e.ID,
		Name:              e.Name,
		Description:       e.Description,
		StartDate:         e.StartDate.Format(dateLayout),
		EndDate:           e.EndDate.Format(dateLayout),
		TimeOfDay:         e.TimeOfDay,
		Schedules:         e.Schedules.Data(),
		RecurrenceType:    e.RecurrenceType,
		RecurrencePattern: e.RecurrencePattern.Data(),
		Capacity:          e.Capacity,
		IsActive:          e.IsActive,
		CategoryID:        e.CategoryID,
		CreatedByID:       e.CreatedByID,
		CreatedAt:         e.CreatedAt,
	}
	if e.Category.ID != 0 {
		c := toCategory(e.Category)
		res.Category = &c
	}
	return res
}

func toOccurrence(o models.Occurrence) OccurrenceResponse {
	return OccurrenceResponse{
		ID:       o.ID,
		EventID:  o.EventID,
		DateTime: o.DateTime,
		Capacity: o.Capacity,
		IsActive: o.IsActive,
	}
}

func withAvailability(res OccurrenceResponse, a capacity.Availability) OccurrenceResponse {
	registered, available := a.Registered, a.Available
	res.Registered = &registered
	res.Available = &available
	return res
}

func toOccurrenceDetail(d events.OccurrenceDetail) OccurrenceResponse {
	res := withAvailability(toOccurrence(d.Occurrence), d.Availability)
	if d.Registration != nil {
		res.MyRegistration = &MyRegistration{
			ID:       d.Registration.ID,
			Code:     d.Registration.Code,
			Attended: d.Registration.Attendance != nil && d.Registration.Attendance.Attended,
		}
	}
	return res
}

func toAssessment(a models.WellnessAssessment) AssessmentResponse {
	res := AssessmentResponse{
		ID:             a.ID,
		RegistrationID: a.RegistrationID,
		Type:           a.Type,
		Status:         a.Status,
		SleepQuality:   a.SleepQuality,
		StressLevel:    a.StressLevel,
		Mood:           a.Mood,
		CompletedAt:    a.CompletedAt,
		CreatedAt:      a.CreatedAt,
	}
	if a.Registration != nil && a.Registration.Occurrence != nil {
		o := toOccurrence(*a.Registration.Occurrence)
		res.Occurrence = &o
	}
	return res
}

func toAssessments(list []models.WellnessAssessment) []AssessmentResponse {
	res := make([]AssessmentResponse, 0, len(list))
	for _, a := range list {
		res = append(res, toAssessment(a))
	}
	return res
}

func toRegistration(r models.Registration) RegistrationResponse {
	res := RegistrationResponse{
		ID:           r.ID,
		UserID:       r.UserID,
		EventID:      r.EventID,
		OccurrenceID: r.OccurrenceID,
		Code:         r.Code,
		CreatedAt:    r.CreatedAt,
	}
	if r.User != nil {
		res.User = &UserSummary{ID: r.User.ID, Email: r.User.Email, Name: r.User.Name}
	}
	if r.Occurrence != nil {
		o := toOccurrence(*r.Occurrence)
		res.Occurrence = &o
	}
	if r.Attendance != nil {
		res.Attendance = &AttendanceResponse{
			Attended:    r.Attendance.Attended,
			CheckedAt:   r.Attendance.CheckedAt,
			CheckedByID: r.Attendance.CheckedByID,
		}
	}
	if len(r.Assessments) > 0 {
		res.Assessments = toAssessments(r.Assessments)
	}
	return res
}

func toRegistrations(list []models.Registration) []RegistrationResponse {
	res := make([]RegistrationResponse, 0, len(list))
	for _, r := range list {
		res = append(res, toRegistration(r))
	}
	return res
}

// ImpactResponse carries null deltas until both assessments are completed.
type ImpactResponse struct {
	RegistrationID     uint     `json:"registrationId"`
	SleepQualityChange *int     `json:"sleepQualityChange"`
	StressLevelChange  *int     `json:"stressLevelChange"`
	MoodChange         *int     `json:"moodChange"`
	OverallImpact      *float64 `json:"overallImpact"`
}

func toImpact(registrationID uint, i wellness.Impact) ImpactResponse {
	return ImpactResponse{
		RegistrationID:     registrationID,
		SleepQualityChange: i.SleepQualityChange,
		StressLevelChange:  i.StressLevelChange,
		MoodChange:         i.MoodChange,
		OverallImpact:      i.OverallImpact,
	}
}
