package handlers

import (
	"context"

	"github.com/gdg-garage/fitclass-api/internal/auth"
	"github.com/gdg-garage/fitclass-api/internal/registrations"
)

type RegistrationHandler struct {
	registrations *registrations.Service
	authHandler   *auth.AuthHandler
}

func NewRegistrationHandler(svc *registrations.Service, authHandler *auth.AuthHandler) *RegistrationHandler {
	return &RegistrationHandler{registrations: svc, authHandler: authHandler}
}

type RegisterInput struct {
	auth.AuthInput
	Body struct {
		EventID      uint `json:"eventId" doc:"Event to register for"`
		OccurrenceID uint `json:"occurrenceId" doc:"Occurrence of that event"`
	}
}

type RegistrationOutput struct {
	Body RegistrationResponse
}

func (h *RegistrationHandler) HandleRegister(ctx context.Context, input *RegisterInput) (*RegistrationOutput, error) {
	actor, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}

	reg, err := h.registrations.Create(ctx, actor.SubjectID, input.Body.EventID, input.Body.OccurrenceID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &RegistrationOutput{Body: toRegistration(*reg)}, nil
}

type CancelRegistrationInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

func (h *RegistrationHandler) HandleCancel(ctx context.Context, input *CancelRegistrationInput) (*struct{}, error) {
	actor, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	if err := h.registrations.Cancel(ctx, input.ID, actor.SubjectID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}

type ListRegistrationsOutput struct {
	Body []RegistrationResponse
}

func (h *RegistrationHandler) HandleListMine(ctx context.Context, input *auth.AuthInput) (*ListRegistrationsOutput, error) {
	actor, err := h.authHandler.Authorize(ctx, *input)
	if err != nil {
		return nil, err
	}
	list, err := h.registrations.ListMine(ctx, actor.SubjectID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ListRegistrationsOutput{Body: toRegistrations(list)}, nil
}

type GetRegistrationInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

func (h *RegistrationHandler) HandleGet(ctx context.Context, input *GetRegistrationInput) (*RegistrationOutput, error) {
	actor, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	reg, err := h.registrations.Get(ctx, actor, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &RegistrationOutput{Body: toRegistration(*reg)}, nil
}

type GetRegistrationByCodeInput struct {
	auth.AuthInput
	Code string `path:"code"`
}

func (h *RegistrationHandler) HandleGetByCode(ctx context.Context, input *GetRegistrationByCodeInput) (*RegistrationOutput, error) {
	actor, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	reg, err := h.registrations.GetByCode(ctx, actor, input.Code)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &RegistrationOutput{Body: toRegistration(*reg)}, nil
}

type ListByParentInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

func (h *RegistrationHandler) HandleListByEvent(ctx context.Context, input *ListByParentInput) (*ListRegistrationsOutput, error) {
	if _, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	list, err := h.registrations.ListByEvent(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ListRegistrationsOutput{Body: toRegistrations(list)}, nil
}

func (h *RegistrationHandler) HandleListByOccurrence(ctx context.Context, input *ListByParentInput) (*ListRegistrationsOutput, error) {
	if _, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	list, err := h.registrations.ListByOccurrence(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ListRegistrationsOutput{Body: toRegistrations(list)}, nil
}
