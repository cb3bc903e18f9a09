package handlers

import (
	"errors"
	"log"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
)

// toHTTPError maps domain errors onto huma status errors. Errors that already carry a
// status pass through untouched.
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return err
	}

	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return huma.Error404NotFound(err.Error())
	case apperr.KindConflict, apperr.KindCapacityExceeded:
		return huma.Error409Conflict(err.Error())
	case apperr.KindForbidden:
		return huma.Error403Forbidden(err.Error())
	case apperr.KindValidation:
		return huma.Error422UnprocessableEntity(err.Error())
	case apperr.KindInvalidState:
		return huma.Error400BadRequest(err.Error())
	default:
		log.Printf("Internal error: %v", err)
		return huma.Error500InternalServerError("Internal server error")
	}
}
