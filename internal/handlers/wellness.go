package handlers

import (
	"context"

	"github.com/gdg-garage/fitclass-api/internal/auth"
	"github.com/gdg-garage/fitclass-api/internal/models"
	"github.com/gdg-garage/fitclass-api/internal/wellness"
)

type WellnessHandler struct {
	wellness    *wellness.Service
	authHandler *auth.AuthHandler
}

func NewWellnessHandler(svc *wellness.Service, authHandler *auth.AuthHandler) *WellnessHandler {
	return &WellnessHandler{wellness: svc, authHandler: authHandler}
}

type ListAssessmentsOutput struct {
	Body []AssessmentResponse
}

func (h *WellnessHandler) HandleListPending(ctx context.Context, input *auth.AuthInput) (*ListAssessmentsOutput, error) {
	actor, err := h.authHandler.Authorize(ctx, *input)
	if err != nil {
		return nil, err
	}
	list, err := h.wellness.ListPending(ctx, actor.SubjectID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ListAssessmentsOutput{Body: toAssessments(list)}, nil
}

func (h *WellnessHandler) HandleListCompleted(ctx context.Context, input *auth.AuthInput) (*ListAssessmentsOutput, error) {
	actor, err := h.authHandler.Authorize(ctx, *input)
	if err != nil {
		return nil, err
	}
	list, err := h.wellness.ListCompleted(ctx, actor.SubjectID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ListAssessmentsOutput{Body: toAssessments(list)}, nil
}

type AssessmentIDInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

type AssessmentOutput struct {
	Body AssessmentResponse
}

func (h *WellnessHandler) HandleGet(ctx context.Context, input *AssessmentIDInput) (*AssessmentOutput, error) {
	actor, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	a, err := h.wellness.Get(ctx, actor, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AssessmentOutput{Body: toAssessment(*a)}, nil
}

type CompleteAssessmentInput struct {
	auth.AuthInput
	ID   uint `path:"id"`
	Body wellness.Metrics
}

func (h *WellnessHandler) HandleComplete(ctx context.Context, input *CompleteAssessmentInput) (*AssessmentOutput, error) {
	actor, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	a, err := h.wellness.Complete(ctx, actor.SubjectID, input.ID, input.Body)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AssessmentOutput{Body: toAssessment(*a)}, nil
}

type CompleteForRegistrationInput struct {
	auth.AuthInput
	ID   uint                  `path:"id"`
	Type models.AssessmentType `path:"type" enum:"PRE,POST"`
	Body wellness.Metrics
}

func (h *WellnessHandler) HandleCompleteForRegistration(ctx context.Context, input *CompleteForRegistrationInput) (*AssessmentOutput, error) {
	actor, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	a, err := h.wellness.CompleteForRegistration(ctx, actor.SubjectID, input.ID, input.Type, input.Body)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AssessmentOutput{Body: toAssessment(*a)}, nil
}

type RegistrationIDInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

func (h *WellnessHandler) HandleListByRegistration(ctx context.Context, input *RegistrationIDInput) (*ListAssessmentsOutput, error) {
	actor, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	list, err := h.wellness.ListByRegistration(ctx, actor, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ListAssessmentsOutput{Body: toAssessments(list)}, nil
}

type ImpactOutput struct {
	Body ImpactResponse
}

func (h *WellnessHandler) HandleImpact(ctx context.Context, input *RegistrationIDInput) (*ImpactOutput, error) {
	actor, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	impact, err := h.wellness.Impact(ctx, actor, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ImpactOutput{Body: toImpact(input.ID, impact)}, nil
}
