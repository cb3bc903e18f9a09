package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/gdg-garage/fitclass-api/internal/auth"
)

// Handlers bundles every operation group served by the API.
type Handlers struct {
	Auth          *auth.AuthHandler
	Categories    *CategoryHandler
	Events        *EventHandler
	Registrations *RegistrationHandler
	Attendance    *AttendanceHandler
	Wellness      *WellnessHandler
	APIKeys       *APIKeyHandler
}

func Config() huma.Config {
	config := huma.DefaultConfig("Fitclass API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
		"apiKeyAuth": {
			Type: "apiKey",
			In:   "header",
			Name: "X-API-KEY",
		},
	}
	return config
}

// RegisterRoutes mounts the API on r. Router middleware is the caller's concern.
func RegisterRoutes(r chi.Router, h *Handlers) huma.API {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	api := humachi.New(r, Config())
	RegisterOperations(api, h)
	return api
}

func secured(o *huma.Operation) {
	o.Security = []map[string][]string{{"cookieAuth": {}}, {"bearerAuth": {}}}
}

func operator(o *huma.Operation) {
	o.Security = []map[string][]string{{"cookieAuth": {}}, {"bearerAuth": {}}, {"apiKeyAuth": {}}}
}

func created(o *huma.Operation) {
	o.DefaultStatus = http.StatusCreated
}

func RegisterOperations(api huma.API, h *Handlers) {
	huma.Get(api, "/me", h.Auth.HandleMe, secured)

	// Categories
	huma.Post(api, "/categories", h.Categories.HandleCreate, secured, created)
	huma.Get(api, "/categories", h.Categories.HandleList)
	huma.Get(api, "/categories/{id}", h.Categories.HandleGet)
	huma.Put(api, "/categories/{id}", h.Categories.HandleUpdate, secured)
	huma.Delete(api, "/categories/{id}", h.Categories.HandleDelete, secured)

	// Events and occurrences
	huma.Post(api, "/events", h.Events.HandleCreate, secured, created)
	huma.Get(api, "/events", h.Events.HandleList)
	huma.Get(api, "/events/{id}", h.Events.HandleGet)
	huma.Put(api, "/events/{id}", h.Events.HandleUpdate, secured)
	huma.Delete(api, "/events/{id}", h.Events.HandleDelete, secured)
	huma.Delete(api, "/events/{id}/permanent", h.Events.HandlePermanentDelete, secured)
	huma.Get(api, "/events/{id}/occurrences", h.Events.HandleListOccurrences)
	huma.Get(api, "/events/{id}/availability", h.Events.HandleEventAvailability)
	huma.Get(api, "/occurrences/{id}", h.Events.HandleGetOccurrence)
	huma.Get(api, "/occurrences/{id}/availability", h.Events.HandleOccurrenceAvailability)
	huma.Post(api, "/occurrences/{id}/deactivate", h.Events.HandleDeactivateOccurrence, secured)

	// Registrations
	huma.Post(api, "/registrations", h.Registrations.HandleRegister, secured, created)
	huma.Get(api, "/registrations/me", h.Registrations.HandleListMine, secured)
	huma.Get(api, "/registrations/code/{code}", h.Registrations.HandleGetByCode, secured)
	huma.Get(api, "/registrations/{id}", h.Registrations.HandleGet, secured)
	huma.Delete(api, "/registrations/{id}", h.Registrations.HandleCancel, secured)
	huma.Get(api, "/events/{id}/registrations", h.Registrations.HandleListByEvent, secured)
	huma.Get(api, "/occurrences/{id}/registrations", h.Registrations.HandleListByOccurrence, secured)

	// Attendance
	huma.Post(api, "/attendance/registrations/{id}", h.Attendance.HandleMarkByID, operator)
	huma.Post(api, "/attendance/code/{code}", h.Attendance.HandleMarkByCode, operator)
	huma.Post(api, "/attendance/lookup", h.Attendance.HandleMarkByEmail, operator)
	huma.Get(api, "/events/{id}/attendance", h.Attendance.HandleListByEvent, operator)
	huma.Get(api, "/events/{id}/attendance/stats", h.Attendance.HandleStats, operator)

	// Wellness
	huma.Get(api, "/wellness/pending", h.Wellness.HandleListPending, secured)
	huma.Get(api, "/wellness/completed", h.Wellness.HandleListCompleted, secured)
	huma.Get(api, "/wellness/{id}", h.Wellness.HandleGet, secured)
	huma.Post(api, "/wellness/{id}/complete", h.Wellness.HandleComplete, secured)
	huma.Get(api, "/registrations/{id}/wellness", h.Wellness.HandleListByRegistration, secured)
	huma.Post(api, "/registrations/{id}/wellness/{type}/complete", h.Wellness.HandleCompleteForRegistration, secured)
	huma.Get(api, "/registrations/{id}/impact", h.Wellness.HandleImpact, secured)

	// Operator API keys
	huma.Post(api, "/api-keys", h.APIKeys.HandleCreate, secured, created)
	huma.Get(api, "/api-keys", h.APIKeys.HandleList, secured)
	huma.Delete(api, "/api-keys/{id}", h.APIKeys.HandleDelete, secured)
}
