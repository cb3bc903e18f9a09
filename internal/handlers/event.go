package handlers

import (
	"context"

	"github.com/gdg-garage/fitclass-api/internal/auth"
	"github.com/gdg-garage/fitclass-api/internal/capacity"
	"github.com/gdg-garage/fitclass-api/internal/events"
)

type EventHandler struct {
	events      *events.Service
	authHandler *auth.AuthHandler
}

func NewEventHandler(svc *events.Service, authHandler *auth.AuthHandler) *EventHandler {
	return &EventHandler{events: svc, authHandler: authHandler}
}

type CreateEventInput struct {
	auth.AuthInput
	Body events.Input
}

type EventDetailResponse struct {
	EventResponse
	Occurrences []OccurrenceResponse `json:"occurrences"`
}

type EventDetailOutput struct {
	Body EventDetailResponse
}

func (h *EventHandler) HandleCreate(ctx context.Context, input *CreateEventInput) (*EventDetailOutput, error) {
	actor, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}

	ev, err := h.events.Create(ctx, actor.SubjectID, input.Body)
	if err != nil {
		return nil, toHTTPError(err)
	}

	res := &EventDetailOutput{}
	res.Body.EventResponse = toEvent(*ev)
	res.Body.Occurrences = make([]OccurrenceResponse, 0, len(ev.Occurrences))
	for _, o := range ev.Occurrences {
		res.Body.Occurrences = append(res.Body.Occurrences, toOccurrence(o))
	}
	return res, nil
}

type ListEventsInput struct {
	ActiveOnly bool `query:"activeOnly" doc:"Only return active events"`
}

type ListEventsOutput struct {
	Body []EventResponse
}

func (h *EventHandler) HandleList(ctx context.Context, input *ListEventsInput) (*ListEventsOutput, error) {
	list, err := h.events.List(ctx, input.ActiveOnly)
	if err != nil {
		return nil, toHTTPError(err)
	}
	res := &ListEventsOutput{Body: make([]EventResponse, 0, len(list))}
	for _, ev := range list {
		res.Body = append(res.Body, toEvent(ev))
	}
	return res, nil
}

type GetEventInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

// HandleGet is public. Authenticated callers also see their own registration on
// each occurrence.
func (h *EventHandler) HandleGet(ctx context.Context, input *GetEventInput) (*EventDetailOutput, error) {
	actor, err := h.authHandler.Identify(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	var subjectID *uint
	if actor != nil {
		subjectID = &actor.SubjectID
	}

	d, err := h.events.Get(ctx, input.ID, subjectID)
	if err != nil {
		return nil, toHTTPError(err)
	}

	res := &EventDetailOutput{}
	res.Body.EventResponse = toEvent(d.Event)
	res.Body.Occurrences = make([]OccurrenceResponse, 0, len(d.Occurrences))
	for _, o := range d.Occurrences {
		res.Body.Occurrences = append(res.Body.Occurrences, toOccurrenceDetail(o))
	}
	return res, nil
}

type UpdateEventInput struct {
	auth.AuthInput
	ID   uint `path:"id"`
	Body events.UpdateInput
}

type UpdateEventOutput struct {
	Body struct {
		Event        EventResponse        `json:"event"`
		Regeneration *events.Regeneration `json:"regeneration,omitempty"`
	}
}

func (h *EventHandler) HandleUpdate(ctx context.Context, input *UpdateEventInput) (*UpdateEventOutput, error) {
	if _, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	ev, report, err := h.events.Update(ctx, input.ID, input.Body)
	if err != nil {
		return nil, toHTTPError(err)
	}

	res := &UpdateEventOutput{}
	res.Body.Event = toEvent(*ev)
	res.Body.Regeneration = report
	return res, nil
}

type DeleteEventInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

func (h *EventHandler) HandleDelete(ctx context.Context, input *DeleteEventInput) (*struct{}, error) {
	if _, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	if err := h.events.Delete(ctx, input.ID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}

// HandlePermanentDelete removes the event together with every occurrence,
// registration, attendance and assessment under it.
func (h *EventHandler) HandlePermanentDelete(ctx context.Context, input *DeleteEventInput) (*struct{}, error) {
	if _, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	if err := h.events.PermanentDelete(ctx, input.ID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}

type ListOccurrencesInput struct {
	ID            uint `path:"id"`
	AvailableOnly bool `query:"availableOnly" doc:"Only active occurrences that have not started"`
}

type ListOccurrencesOutput struct {
	Body []OccurrenceResponse
}

func (h *EventHandler) HandleListOccurrences(ctx context.Context, input *ListOccurrencesInput) (*ListOccurrencesOutput, error) {
	list, err := h.events.ListOccurrences(ctx, input.ID, input.AvailableOnly)
	if err != nil {
		return nil, toHTTPError(err)
	}
	res := &ListOccurrencesOutput{Body: make([]OccurrenceResponse, 0, len(list))}
	for _, o := range list {
		res.Body = append(res.Body, toOccurrence(o))
	}
	return res, nil
}

type EventIDInput struct {
	ID uint `path:"id"`
}

type EventAvailabilityOutput struct {
	Body []capacity.Availability
}

func (h *EventHandler) HandleEventAvailability(ctx context.Context, input *EventIDInput) (*EventAvailabilityOutput, error) {
	list, err := h.events.EventAvailability(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	if list == nil {
		list = []capacity.Availability{}
	}
	return &EventAvailabilityOutput{Body: list}, nil
}

type OccurrenceIDInput struct {
	ID uint `path:"id"`
}

type OccurrenceOutput struct {
	Body struct {
		OccurrenceResponse
		Event *EventResponse `json:"event,omitempty"`
	}
}

func (h *EventHandler) HandleGetOccurrence(ctx context.Context, input *OccurrenceIDInput) (*OccurrenceOutput, error) {
	occ, err := h.events.GetOccurrence(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	a, err := h.events.OccurrenceAvailability(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}

	res := &OccurrenceOutput{}
	res.Body.OccurrenceResponse = withAvailability(toOccurrence(*occ), a)
	if occ.Event != nil {
		ev := toEvent(*occ.Event)
		res.Body.Event = &ev
	}
	return res, nil
}

type AvailabilityOutput struct {
	Body capacity.Availability
}

func (h *EventHandler) HandleOccurrenceAvailability(ctx context.Context, input *OccurrenceIDInput) (*AvailabilityOutput, error) {
	a, err := h.events.OccurrenceAvailability(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AvailabilityOutput{Body: a}, nil
}

type DeactivateOccurrenceInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

type DeactivateOccurrenceOutput struct {
	Body OccurrenceResponse
}

func (h *EventHandler) HandleDeactivateOccurrence(ctx context.Context, input *DeactivateOccurrenceInput) (*DeactivateOccurrenceOutput, error) {
	if _, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	occ, err := h.events.DeactivateOccurrence(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &DeactivateOccurrenceOutput{Body: toOccurrence(*occ)}, nil
}
