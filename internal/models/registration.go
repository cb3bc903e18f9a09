package models

import "time"

// Registration admits one subject to one occurrence. It exclusively owns its
// Attendance and WellnessAssessment rows.
type Registration struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID       uint        `gorm:"not null;uniqueIndex:idx_registration_user_occurrence"`
	User         *User       `gorm:"foreignKey:UserID"`
	EventID      uint        `gorm:"not null;index"`
	OccurrenceID uint        `gorm:"not null;uniqueIndex:idx_registration_user_occurrence;index"`
	Occurrence   *Occurrence `gorm:"foreignKey:OccurrenceID"`
	Code         string      `gorm:"uniqueIndex;size:36;not null"`

	Attendance  *Attendance          `gorm:"foreignKey:RegistrationID"`
	Assessments []WellnessAssessment `gorm:"foreignKey:RegistrationID"`
}

// Assessment returns the registration's assessment of the given type, if loaded.
func (r *Registration) Assessment(t AssessmentType) *WellnessAssessment {
	for i := range r.Assessments {
		if r.Assessments[i].Type == t {
			return &r.Assessments[i]
		}
	}
	return nil
}
