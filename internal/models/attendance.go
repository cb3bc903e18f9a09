package models

import "time"

// Attendance is terminal once Attended is true.
type Attendance struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	RegistrationID uint `gorm:"uniqueIndex;not null"`
	Attended       bool `gorm:"not null"`
	CheckedAt      *time.Time
	CheckedByID    *uint
}

type AssessmentType string

const (
	AssessmentPre  AssessmentType = "PRE"
	AssessmentPost AssessmentType = "POST"
)

type AssessmentStatus string

const (
	StatusPending   AssessmentStatus = "PENDING"
	StatusCompleted AssessmentStatus = "COMPLETED"
)

// WellnessAssessment is at most one PRE and one POST per registration. Metrics are
// on a 0-10 scale and stay null until the assessment is completed.
type WellnessAssessment struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	RegistrationID uint             `gorm:"not null;uniqueIndex:idx_assessment_registration_type"`
	Registration   *Registration    `gorm:"foreignKey:RegistrationID"`
	Type           AssessmentType   `gorm:"size:8;not null;uniqueIndex:idx_assessment_registration_type"`
	Status         AssessmentStatus `gorm:"size:16;not null;index"`
	SleepQuality   *int
	StressLevel    *int
	Mood           *int
	CompletedAt    *time.Time
}

func (a *WellnessAssessment) Completed() bool { return a != nil && a.Status == StatusCompleted }
