package events

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

const dateLayout = "2006-01-02"

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError renders the first failing field of a validator error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("invalid event: %v", err)
	}
	f := verrs[0]
	switch f.Tag() {
	case "required":
		return apperr.Validation("%s is required", f.Field())
	case "datetime":
		return apperr.Validation("%s must be a date in YYYY-MM-DD format", f.Field())
	case "oneof":
		return apperr.Validation("%s must be one of %s", f.Field(), f.Param())
	case "min", "max":
		return apperr.Validation("%s fails %s=%s", f.Field(), f.Tag(), f.Param())
	default:
		return apperr.Validation("%s is invalid", f.Field())
	}
}

// parseDate returns the calendar date as UTC midnight, the form event dates are
// stored in.
func parseDate(field, s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be a date in YYYY-MM-DD format", field)
	}
	return d, nil
}

// inZone reinterprets a stored calendar date as midnight in loc.
func inZone(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// checkRules applies the business rules shared by create and update. checkStart is
// false on updates that leave the start date untouched, so events that have already
// begun stay editable.
func (s *Service) checkRules(ev *models.Event, checkStart bool) error {
	if strings.TrimSpace(ev.Name) == "" {
		return apperr.Validation("name must not be empty")
	}
	if ev.Capacity < 1 {
		return apperr.Validation("capacity must be at least 1")
	}
	if checkStart {
		today := s.Now().In(s.loc)
		todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		if ev.StartDate.Before(todayDate) {
			return apperr.Validation("startDate %s is in the past", ev.StartDate.Format(dateLayout))
		}
	}
	if ev.EndDate.Before(ev.StartDate) {
		return apperr.Validation("endDate must not be before startDate")
	}
	return nil
}

func describeDates(dates []time.Time) string {
	if len(dates) == 0 {
		return "none"
	}
	return fmt.Sprintf("%d between %s and %s", len(dates),
		dates[0].Format(time.RFC3339), dates[len(dates)-1].Format(time.RFC3339))
}
