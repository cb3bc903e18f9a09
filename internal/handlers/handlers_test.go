package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/auth"
	"github.com/gdg-garage/fitclass-api/internal/broker"
	"github.com/gdg-garage/fitclass-api/internal/config"
	"github.com/gdg-garage/fitclass-api/internal/database"
	"github.com/gdg-garage/fitclass-api/internal/events"
	"github.com/gdg-garage/fitclass-api/internal/identity"
	"github.com/gdg-garage/fitclass-api/internal/models"
	"github.com/gdg-garage/fitclass-api/internal/recurrence"
	"github.com/gdg-garage/fitclass-api/internal/registrations"
	"github.com/gdg-garage/fitclass-api/internal/wellness"
)

type testEnv struct {
	db        *gorm.DB
	h         *Handlers
	published *broker.Recorder
	admin     models.User
	member    models.User
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	admin := models.User{Email: "coach@example.com", Name: "Coach", Role: identity.RoleAdmin}
	member := models.User{Email: "member@example.com", Name: "Member", Role: identity.RoleUser}
	db.Create(&admin)
	db.Create(&member)

	rec := &broker.Recorder{}
	authHandler := auth.NewAuthHandler(&config.Config{JWTSecret: "test-secret"}, db)
	eventSvc := events.NewService(db, recurrence.Engine{}, time.UTC)
	wellnessSvc := wellness.NewService(db, rec)

	return &testEnv{
		db:        db,
		published: rec,
		admin:     admin,
		member:    member,
		h: &Handlers{
			Auth:          authHandler,
			Categories:    NewCategoryHandler(db, authHandler),
			Events:        NewEventHandler(eventSvc, authHandler),
			Registrations: NewRegistrationHandler(registrations.NewService(db, rec), authHandler),
			Attendance:    NewAttendanceHandler(wellnessSvc, authHandler),
			Wellness:      NewWellnessHandler(wellnessSvc, authHandler),
			APIKeys:       NewAPIKeyHandler(db, authHandler),
		},
	}
}

func (e *testEnv) authAs(t *testing.T, u models.User) auth.AuthInput {
	t.Helper()
	token, err := e.h.Auth.GenerateToken(&u)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return auth.AuthInput{Authorization: "Bearer " + token}
}

func statusOf(err error) int {
	var se huma.StatusError
	if errors.As(err, &se) {
		return se.GetStatus()
	}
	return 0
}

func TestToHTTPError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("event %d not found", 1), http.StatusNotFound},
		{apperr.Conflict("already registered"), http.StatusConflict},
		{apperr.CapacityExceeded("full"), http.StatusConflict},
		{apperr.Forbidden("not yours"), http.StatusForbidden},
		{apperr.Validation("capacity must be at least 1"), http.StatusUnprocessableEntity},
		{apperr.InvalidState("PRE evaluation not completed"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", apperr.NotFound("gone")), http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
		{huma.Error401Unauthorized("Unauthorized"), http.StatusUnauthorized},
	}
	for _, c := range cases {
		if got := statusOf(toHTTPError(c.err)); got != c.want {
			t.Errorf("%v: expected %d, got %d", c.err, c.want, got)
		}
	}
	if toHTTPError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestCategories(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	input := &CreateCategoryInput{AuthInput: e.authAs(t, e.admin)}
	input.Body.Name = "  Pilates "
	res, err := e.h.Categories.HandleCreate(ctx, input)
	if err != nil {
		t.Fatalf("HandleCreate returned error: %v", err)
	}
	if res.Body.Name != "Pilates" || !res.Body.IsActive {
		t.Errorf("unexpected category %+v", res.Body)
	}

	t.Run("DuplicateName", func(t *testing.T) {
		_, err := e.h.Categories.HandleCreate(ctx, input)
		if statusOf(err) != http.StatusConflict {
			t.Errorf("expected 409, got %v", err)
		}
	})

	t.Run("MemberCannotCreate", func(t *testing.T) {
		in := &CreateCategoryInput{AuthInput: e.authAs(t, e.member)}
		in.Body.Name = "Boxing"
		if _, err := e.h.Categories.HandleCreate(ctx, in); statusOf(err) != http.StatusForbidden {
			t.Errorf("expected 403, got %v", err)
		}
	})

	t.Run("Anonymous", func(t *testing.T) {
		in := &CreateCategoryInput{}
		in.Body.Name = "Boxing"
		if _, err := e.h.Categories.HandleCreate(ctx, in); statusOf(err) != http.StatusUnauthorized {
			t.Errorf("expected 401, got %v", err)
		}
	})

	t.Run("UpdateAndListActive", func(t *testing.T) {
		inactive := false
		up := &UpdateCategoryInput{AuthInput: e.authAs(t, e.admin), ID: res.Body.ID}
		up.Body.IsActive = &inactive
		if _, err := e.h.Categories.HandleUpdate(ctx, up); err != nil {
			t.Fatalf("HandleUpdate returned error: %v", err)
		}

		all, _ := e.h.Categories.HandleList(ctx, &ListCategoriesInput{})
		active, _ := e.h.Categories.HandleList(ctx, &ListCategoriesInput{ActiveOnly: true})
		if len(all.Body) != 1 || len(active.Body) != 0 {
			t.Errorf("expected 1 category and 0 active, got %d and %d", len(all.Body), len(active.Body))
		}
	})

	t.Run("DeleteInUse", func(t *testing.T) {
		cat := models.ExerciseCategory{Name: "Rowing", IsActive: true}
		e.db.Create(&cat)
		e.db.Create(&models.Event{
			Name: "Row", StartDate: time.Now(), EndDate: time.Now(), RecurrenceType: recurrence.Single,
			Capacity: 1, IsActive: true, CategoryID: cat.ID,
		})

		del := &DeleteCategoryInput{AuthInput: e.authAs(t, e.admin), ID: cat.ID}
		if _, err := e.h.Categories.HandleDelete(ctx, del); statusOf(err) != http.StatusConflict {
			t.Errorf("expected 409, got %v", err)
		}

		del.ID = res.Body.ID
		if _, err := e.h.Categories.HandleDelete(ctx, del); err != nil {
			t.Fatalf("HandleDelete returned error: %v", err)
		}
		if _, err := e.h.Categories.HandleGet(ctx, &CategoryIDInput{ID: res.Body.ID}); statusOf(err) != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %v", err)
		}
	})
}

func TestAPIKeys(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	adminAuth := e.authAs(t, e.admin)

	in := &CreateAPIKeyInput{AuthInput: adminAuth}
	in.Body.Name = "Front desk"
	created, err := e.h.APIKeys.HandleCreate(ctx, in)
	if err != nil {
		t.Fatalf("HandleCreate returned error: %v", err)
	}
	if len(created.Body.Key) != 64 {
		t.Errorf("expected a 64 character key, got %q", created.Body.Key)
	}

	list, err := e.h.APIKeys.HandleList(ctx, &adminAuth)
	if err != nil {
		t.Fatalf("HandleList returned error: %v", err)
	}
	if len(list.Body) != 1 || list.Body[0].Key != "..."+created.Body.Key[60:] {
		t.Errorf("expected one masked key, got %+v", list.Body)
	}

	t.Run("KeyActsAsOperator", func(t *testing.T) {
		actor, err := e.h.Auth.AuthorizeAdmin(ctx, auth.AuthInput{APIKey: created.Body.Key})
		if err != nil {
			t.Fatalf("AuthorizeAdmin with key returned error: %v", err)
		}
		if actor.SubjectID != e.admin.ID {
			t.Errorf("expected key to act as %d, got %d", e.admin.ID, actor.SubjectID)
		}
	})

	t.Run("MemberCannotIssue", func(t *testing.T) {
		in := &CreateAPIKeyInput{AuthInput: e.authAs(t, e.member)}
		if _, err := e.h.APIKeys.HandleCreate(ctx, in); statusOf(err) != http.StatusForbidden {
			t.Errorf("expected 403, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		del := &DeleteAPIKeyInput{AuthInput: adminAuth, ID: created.Body.ID}
		if _, err := e.h.APIKeys.HandleDelete(ctx, del); err != nil {
			t.Fatalf("HandleDelete returned error: %v", err)
		}
		if _, err := e.h.APIKeys.HandleDelete(ctx, del); statusOf(err) != http.StatusNotFound {
			t.Errorf("expected 404 for second delete, got %v", err)
		}
	})
}
