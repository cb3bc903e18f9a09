package handlers

import (
	"context"

	"github.com/gdg-garage/fitclass-api/internal/auth"
	"github.com/gdg-garage/fitclass-api/internal/registrations"
	"github.com/gdg-garage/fitclass-api/internal/wellness"
)

// AttendanceHandler serves the operator check-in desk. Every operation requires the
// ADMIN role, either through a token or an operator API key.
type AttendanceHandler struct {
	wellness    *wellness.Service
	authHandler *auth.AuthHandler
}

func NewAttendanceHandler(svc *wellness.Service, authHandler *auth.AuthHandler) *AttendanceHandler {
	return &AttendanceHandler{wellness: svc, authHandler: authHandler}
}

type MarkByIDInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

type MarkByCodeInput struct {
	auth.AuthInput
	Code string `path:"code"`
}

type MarkByEmailInput struct {
	auth.AuthInput
	Body struct {
		Email   string `json:"email" format:"email" doc:"Registrant email, matched case-insensitively"`
		EventID uint   `json:"eventId"`
	}
}

func (h *AttendanceHandler) HandleMarkByID(ctx context.Context, input *MarkByIDInput) (*RegistrationOutput, error) {
	return h.mark(ctx, input.AuthInput, registrations.ByID(input.ID))
}

func (h *AttendanceHandler) HandleMarkByCode(ctx context.Context, input *MarkByCodeInput) (*RegistrationOutput, error) {
	return h.mark(ctx, input.AuthInput, registrations.ByCode(input.Code))
}

func (h *AttendanceHandler) HandleMarkByEmail(ctx context.Context, input *MarkByEmailInput) (*RegistrationOutput, error) {
	return h.mark(ctx, input.AuthInput, registrations.ByEmailAndEvent{
		Email:   input.Body.Email,
		EventID: input.Body.EventID,
	})
}

func (h *AttendanceHandler) mark(ctx context.Context, in auth.AuthInput, l registrations.Lookup) (*RegistrationOutput, error) {
	operator, err := h.authHandler.AuthorizeAdmin(ctx, in)
	if err != nil {
		return nil, err
	}
	reg, err := h.wellness.MarkAttendance(ctx, l, operator.SubjectID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &RegistrationOutput{Body: toRegistration(*reg)}, nil
}

type EventAttendanceInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

func (h *AttendanceHandler) HandleListByEvent(ctx context.Context, input *EventAttendanceInput) (*ListRegistrationsOutput, error) {
	if _, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	list, err := h.wellness.AttendanceByEvent(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ListRegistrationsOutput{Body: toRegistrations(list)}, nil
}

type AttendanceStatsOutput struct {
	Body wellness.Stats
}

func (h *AttendanceHandler) HandleStats(ctx context.Context, input *EventAttendanceInput) (*AttendanceStatsOutput, error) {
	if _, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	st, err := h.wellness.StatsByEvent(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AttendanceStatsOutput{Body: st}, nil
}
