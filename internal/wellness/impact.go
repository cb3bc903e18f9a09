package wellness

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/identity"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

// Impact is the change between the PRE and POST assessments of a registration.
// Positive values are improvements. Either every field is set or none is.
type Impact struct {
	SleepQualityChange *int     `json:"sleepQualityChange"`
	StressLevelChange  *int     `json:"stressLevelChange"`
	MoodChange         *int     `json:"moodChange"`
	OverallImpact      *float64 `json:"overallImpact"`
}

// Complete reports whether the impact could be computed.
func (i Impact) Complete() bool { return i.OverallImpact != nil }

// ComputeImpact derives the impact from a completed PRE and POST pair. Stress is
// inverted: a lower POST stress level counts as an improvement.
func ComputeImpact(pre, post *models.WellnessAssessment) Impact {
	if !pre.Completed() || !post.Completed() {
		return Impact{}
	}
	if !hasMetrics(pre) || !hasMetrics(post) {
		return Impact{}
	}

	sleep := *post.SleepQuality - *pre.SleepQuality
	stress := *pre.StressLevel - *post.StressLevel
	mood := *post.Mood - *pre.Mood

	overall, _ := decimal.NewFromInt(int64(sleep + stress + mood)).
		Div(decimal.NewFromInt(3)).
		Round(2).
		Float64()

	return Impact{
		SleepQualityChange: &sleep,
		StressLevelChange:  &stress,
		MoodChange:         &mood,
		OverallImpact:      &overall,
	}
}

func hasMetrics(a *models.WellnessAssessment) bool {
	return a.SleepQuality != nil && a.StressLevel != nil && a.Mood != nil
}

// Impact computes the impact of a registration for its owner or an admin.
func (s *Service) Impact(ctx context.Context, actor identity.Actor, registrationID uint) (Impact, error) {
	var reg models.Registration
	if err := s.db.WithContext(ctx).Preload("Assessments").First(&reg, registrationID).Error; err != nil {
		return Impact{}, notFoundOr(err, "registration", registrationID)
	}
	if !actor.CanAccess(reg.UserID) {
		return Impact{}, apperr.Forbidden("registration %d belongs to another user", registrationID)
	}
	return ComputeImpact(reg.Assessment(models.AssessmentPre), reg.Assessment(models.AssessmentPost)), nil
}
