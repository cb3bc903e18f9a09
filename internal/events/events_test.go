package events

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/apperr"
	"github.com/gdg-garage/fitclass-api/internal/database"
	"github.com/gdg-garage/fitclass-api/internal/models"
	"github.com/gdg-garage/fitclass-api/internal/recurrence"
)

var now = time.Date(2023, 12, 31, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*gorm.DB, *Service, models.ExerciseCategory) {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	cat := models.ExerciseCategory{Name: "HIIT", IsActive: true}
	if err := db.Create(&cat).Error; err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	svc := NewService(db, recurrence.Engine{}, time.UTC)
	svc.Now = func() time.Time { return now }
	return db, svc, cat
}

func weekly(catID uint, start, end string, days ...int) Input {
	return Input{
		Name:              "Circuit",
		StartDate:         start,
		EndDate:           end,
		TimeOfDay:         "10:00",
		RecurrenceType:    recurrence.Weekly,
		RecurrencePattern: recurrence.Pattern{Weekdays: days},
		Capacity:          12,
		CategoryID:        catID,
	}
}

func registerDirect(t *testing.T, db *gorm.DB, occ models.Occurrence, userID uint) models.Registration {
	t.Helper()
	reg := models.Registration{UserID: userID, EventID: occ.EventID, OccurrenceID: occ.ID, Code: fmt.Sprintf("%d-%d", occ.ID, userID)}
	if err := db.Create(&reg).Error; err != nil {
		t.Fatalf("failed to create registration: %v", err)
	}
	return reg
}

func TestCreateWeekly(t *testing.T) {
	db, svc, cat := setup(t)

	ev, err := svc.Create(context.Background(), 7, weekly(cat.ID, "2024-01-01", "2024-01-14", 1, 3))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ev.CreatedByID != 7 || !ev.IsActive {
		t.Errorf("unexpected event %+v", ev)
	}

	want := []time.Time{
		time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC),
	}
	var stored []models.Occurrence
	db.Where("event_id = ?", ev.ID).Order("date_time asc").Find(&stored)
	if len(stored) != len(want) {
		t.Fatalf("expected %d occurrences, got %d", len(want), len(stored))
	}
	for i, o := range stored {
		if !o.DateTime.Equal(want[i]) {
			t.Errorf("occurrence %d: expected %v, got %v", i, want[i], o.DateTime)
		}
		if o.Capacity != 12 || !o.IsActive {
			t.Errorf("occurrence %d: unexpected %+v", i, o)
		}
	}

	var reloaded models.Event
	db.First(&reloaded, ev.ID)
	if got := reloaded.RecurrencePattern.Data().Weekdays; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("expected stored weekdays [1 3], got %v", got)
	}
}

func TestCreateWithSchedules(t *testing.T) {
	db, svc, cat := setup(t)
	in := Input{
		Name:       "Split training",
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-07",
		Capacity:   8,
		CategoryID: cat.ID,
		Schedules: []recurrence.Schedule{
			{TimeOfDay: "07:00", Weekdays: []int{1, 5}},
			{TimeOfDay: "18:30", Weekdays: []int{3}},
		},
	}
	ev, err := svc.Create(context.Background(), 1, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ev.RecurrenceType != recurrence.Weekly {
		t.Errorf("expected schedules to imply WEEKLY, got %s", ev.RecurrenceType)
	}

	var n int64
	db.Model(&models.Occurrence{}).Where("event_id = ?", ev.ID).Count(&n)
	if n != 3 {
		t.Errorf("expected 3 occurrences, got %d", n)
	}

	in.RecurrenceType = recurrence.Interval
	if _, err := svc.Create(context.Background(), 1, in); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected schedules with INTERVAL to be rejected, got %v", err)
	}
}

func TestCreateInZone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	db, svc, cat := setup(t)
	svc.loc = loc

	in := Input{Name: "Open gym", StartDate: "2024-01-15", EndDate: "2024-01-15", TimeOfDay: "10:00",
		RecurrenceType: recurrence.Single, Capacity: 5, CategoryID: cat.ID}
	ev, err := svc.Create(context.Background(), 1, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	var occ models.Occurrence
	db.Where("event_id = ?", ev.ID).First(&occ)
	if want := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC); !occ.DateTime.Equal(want) {
		t.Errorf("expected %v, got %v", want, occ.DateTime)
	}
}

func TestCreateRejections(t *testing.T) {
	db, svc, cat := setup(t)
	ctx := context.Background()

	inactive := models.ExerciseCategory{Name: "Retired", IsActive: false}
	db.Create(&inactive)

	tests := []struct {
		name   string
		mutate func(*Input)
		want   error
	}{
		{"EmptyName", func(in *Input) { in.Name = "" }, apperr.ErrValidation},
		{"BlankName", func(in *Input) { in.Name = "   " }, apperr.ErrValidation},
		{"ZeroCapacity", func(in *Input) { in.Capacity = 0 }, apperr.ErrValidation},
		{"BadDate", func(in *Input) { in.StartDate = "01/01/2024" }, apperr.ErrValidation},
		{"StartInPast", func(in *Input) { in.StartDate = "2023-12-30" }, apperr.ErrValidation},
		{"EndBeforeStart", func(in *Input) { in.EndDate = "2023-12-31"; in.StartDate = "2024-01-02" }, apperr.ErrValidation},
		{"MissingWeekdays", func(in *Input) { in.RecurrencePattern = recurrence.Pattern{} }, apperr.ErrValidation},
		{"WeekdayOutOfRange", func(in *Input) { in.RecurrencePattern.Weekdays = []int{1, 9} }, apperr.ErrValidation},
		{"ZeroInterval", func(in *Input) { in.RecurrenceType = recurrence.Interval; in.RecurrencePattern = recurrence.Pattern{} }, apperr.ErrValidation},
		{"UnknownType", func(in *Input) { in.RecurrenceType = "MONTHLY" }, apperr.ErrValidation},
		{"MissingTime", func(in *Input) { in.TimeOfDay = "" }, apperr.ErrValidation},
		{"BadTime", func(in *Input) { in.TimeOfDay = "25:00" }, apperr.ErrValidation},
		{"UnknownCategory", func(in *Input) { in.CategoryID = 404 }, apperr.ErrNotFound},
		{"InactiveCategory", func(in *Input) { in.CategoryID = inactive.ID }, apperr.ErrInvalidState},
		{"NoInstances", func(in *Input) { in.EndDate = "2024-01-06"; in.RecurrencePattern.Weekdays = []int{0} }, apperr.ErrInvalidState},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := weekly(cat.ID, "2024-01-01", "2024-01-14", 1, 3)
			tc.mutate(&in)
			_, err := svc.Create(ctx, 1, in)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	var events, occs int64
	db.Model(&models.Event{}).Count(&events)
	db.Model(&models.Occurrence{}).Count(&occs)
	if events != 0 || occs != 0 {
		t.Errorf("rejected creations must not persist anything, found %d events and %d occurrences", events, occs)
	}
}

func TestCreateDailyFallback(t *testing.T) {
	_, svc, cat := setup(t)
	svc.engine = recurrence.Engine{DailyFallback: true}

	in := weekly(cat.ID, "2024-01-01", "2024-01-07")
	ev, err := svc.Create(context.Background(), 1, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(ev.Occurrences) != 7 {
		t.Errorf("expected 7 daily occurrences, got %d", len(ev.Occurrences))
	}
}

func TestUpdateRegenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("PreservesRegistered", func(t *testing.T) {
		db, svc, cat := setup(t)
		ev, err := svc.Create(ctx, 1, weekly(cat.ID, "2024-01-01", "2024-01-21", 1))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if len(ev.Occurrences) != 3 {
			t.Fatalf("expected 3 occurrences, got %d", len(ev.Occurrences))
		}
		kept := ev.Occurrences[1]
		registerDirect(t, db, kept, 1)

		_, report, err := svc.Update(ctx, ev.ID, UpdateInput{RegenerateInstances: true})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		want := Regeneration{Deleted: 2, Preserved: 1, Created: 2}
		if report == nil || *report != want {
			t.Fatalf("expected %+v, got %+v", want, report)
		}

		var occs []models.Occurrence
		db.Where("event_id = ?", ev.ID).Order("date_time asc").Find(&occs)
		if len(occs) != 3 {
			t.Fatalf("expected 3 occurrences after regeneration, got %d", len(occs))
		}
		if occs[1].ID != kept.ID {
			t.Errorf("expected occurrence %d to survive, got %d", kept.ID, occs[1].ID)
		}
	})

	t.Run("NewPattern", func(t *testing.T) {
		db, svc, cat := setup(t)
		ev, _ := svc.Create(ctx, 1, weekly(cat.ID, "2024-01-01", "2024-01-21", 1))
		registerDirect(t, db, ev.Occurrences[1], 1)

		updated, report, err := svc.Update(ctx, ev.ID, UpdateInput{
			RecurrencePattern:   &recurrence.Pattern{Weekdays: []int{3}},
			Capacity:            ptr(20),
			RegenerateInstances: true,
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		want := Regeneration{Deleted: 2, Preserved: 1, Created: 3}
		if *report != want {
			t.Errorf("expected %+v, got %+v", want, *report)
		}
		if updated.Capacity != 20 {
			t.Errorf("expected capacity 20, got %d", updated.Capacity)
		}

		var preserved models.Occurrence
		db.First(&preserved, ev.Occurrences[1].ID)
		if preserved.Capacity != 12 {
			t.Errorf("preserved occurrence must keep its captured capacity, got %d", preserved.Capacity)
		}
		var fresh []models.Occurrence
		db.Where("event_id = ? AND id <> ?", ev.ID, preserved.ID).Find(&fresh)
		for _, o := range fresh {
			if o.DateTime.Weekday() != time.Wednesday || o.Capacity != 20 {
				t.Errorf("unexpected regenerated occurrence %+v", o)
			}
		}
	})

	t.Run("PastUntouched", func(t *testing.T) {
		db, svc, cat := setup(t)
		ev, _ := svc.Create(ctx, 1, weekly(cat.ID, "2024-01-01", "2024-01-21", 1))
		svc.Now = func() time.Time { return time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC) }

		_, report, err := svc.Update(ctx, ev.ID, UpdateInput{
			RecurrencePattern:   &recurrence.Pattern{Weekdays: []int{3}},
			RegenerateInstances: true,
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		want := Regeneration{Deleted: 1, Preserved: 0, Created: 2}
		if *report != want {
			t.Errorf("expected %+v, got %+v", want, *report)
		}
		for _, o := range ev.Occurrences[:2] {
			var n int64
			db.Model(&models.Occurrence{}).Where("id = ?", o.ID).Count(&n)
			if n != 1 {
				t.Errorf("past occurrence %d was touched", o.ID)
			}
		}
	})

	t.Run("WithoutRegeneration", func(t *testing.T) {
		db, svc, cat := setup(t)
		ev, _ := svc.Create(ctx, 1, weekly(cat.ID, "2024-01-01", "2024-01-21", 1))

		updated, report, err := svc.Update(ctx, ev.ID, UpdateInput{Name: ptr("Circuit+"), Description: ptr("harder")})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if report != nil {
			t.Errorf("expected no report, got %+v", report)
		}
		if updated.Name != "Circuit+" || updated.Description != "harder" {
			t.Errorf("unexpected event %+v", updated)
		}
		var n int64
		db.Model(&models.Occurrence{}).Where("event_id = ?", ev.ID).Count(&n)
		if n != 3 {
			t.Errorf("expected occurrences untouched, got %d", n)
		}
	})

	t.Run("Rejections", func(t *testing.T) {
		_, svc, cat := setup(t)
		ev, _ := svc.Create(ctx, 1, weekly(cat.ID, "2024-01-01", "2024-01-21", 1))
		svc.Now = func() time.Time { return time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC) }

		cases := map[string]UpdateInput{
			"BlankName":      {Name: ptr(" ")},
			"ZeroCapacity":   {Capacity: ptr(0)},
			"EndBeforeStart": {EndDate: ptr("2023-12-01")},
			"StartInPast":    {StartDate: ptr("2024-01-02")},
			"BadWeekday":     {RecurrencePattern: &recurrence.Pattern{Weekdays: []int{7}}},
			"BadSchedule":    {Schedules: &[]recurrence.Schedule{{TimeOfDay: "08:00"}}},
		}
		for name, in := range cases {
			if _, _, err := svc.Update(ctx, ev.ID, in); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("%s: expected validation error, got %v", name, err)
			}
		}

		// an event that has already begun stays editable
		if _, _, err := svc.Update(ctx, ev.ID, UpdateInput{Name: ptr("Still running")}); err != nil {
			t.Errorf("expected update of a started event to succeed, got %v", err)
		}
		if _, _, err := svc.Update(ctx, 404, UpdateInput{}); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestDelete(t *testing.T) {
	db, svc, cat := setup(t)
	ctx := context.Background()
	ev, _ := svc.Create(ctx, 1, weekly(cat.ID, "2024-01-01", "2024-01-14", 1))
	registerDirect(t, db, ev.Occurrences[0], 1)

	if err := svc.Delete(ctx, ev.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := svc.Delete(ctx, ev.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected second delete to report not found, got %v", err)
	}
	if _, err := svc.Get(ctx, ev.ID, nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected soft-deleted event to be hidden, got %v", err)
	}
	list, _ := svc.List(ctx, false)
	if len(list) != 0 {
		t.Errorf("expected soft-deleted event to be excluded, got %d", len(list))
	}

	var regs, occs int64
	db.Model(&models.Registration{}).Count(&regs)
	db.Model(&models.Occurrence{}).Count(&occs)
	if regs != 1 || occs != 2 {
		t.Errorf("soft delete must keep history, got %d registrations and %d occurrences", regs, occs)
	}

	if err := svc.PermanentDelete(ctx, ev.ID); err != nil {
		t.Fatalf("PermanentDelete failed: %v", err)
	}
	for _, m := range []any{&models.Registration{}, &models.Occurrence{}} {
		var n int64
		db.Model(m).Count(&n)
		if n != 0 {
			t.Errorf("%T: expected no rows, got %d", m, n)
		}
	}
	var n int64
	db.Unscoped().Model(&models.Event{}).Count(&n)
	if n != 0 {
		t.Errorf("expected event row removed, got %d", n)
	}
	if err := svc.PermanentDelete(ctx, ev.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGetAndOccurrences(t *testing.T) {
	db, svc, cat := setup(t)
	ctx := context.Background()
	ev, _ := svc.Create(ctx, 1, weekly(cat.ID, "2024-01-01", "2024-01-14", 1, 3))
	reg := registerDirect(t, db, ev.Occurrences[2], 5)
	registerDirect(t, db, ev.Occurrences[2], 6)

	anon, err := svc.Get(ctx, ev.ID, nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(anon.Occurrences) != 4 || anon.Event.Category.Name != "HIIT" {
		t.Fatalf("unexpected detail %+v", anon)
	}
	if a := anon.Occurrences[2].Availability; a.Registered != 2 || a.Available != 10 {
		t.Errorf("unexpected availability %+v", a)
	}
	for _, o := range anon.Occurrences {
		if o.Registration != nil {
			t.Error("anonymous read must not carry registrations")
		}
	}

	subject := uint(5)
	mine, _ := svc.Get(ctx, ev.ID, &subject)
	if r := mine.Occurrences[2].Registration; r == nil || r.ID != reg.ID {
		t.Errorf("expected the subject's registration on occurrence 2, got %+v", r)
	}
	if mine.Occurrences[0].Registration != nil {
		t.Error("expected no registration on occurrence 0")
	}

	if _, err := svc.DeactivateOccurrence(ctx, ev.Occurrences[1].ID); err != nil {
		t.Fatalf("DeactivateOccurrence failed: %v", err)
	}
	again, err := svc.DeactivateOccurrence(ctx, ev.Occurrences[1].ID)
	if err != nil || again.IsActive {
		t.Errorf("expected idempotent deactivation, got %+v %v", again, err)
	}

	svc.Now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	all, _ := svc.ListOccurrences(ctx, ev.ID, false)
	available, _ := svc.ListOccurrences(ctx, ev.ID, true)
	if len(all) != 4 || len(available) != 2 {
		t.Errorf("expected 4 and 2 occurrences, got %d and %d", len(all), len(available))
	}

	occ, err := svc.GetOccurrence(ctx, ev.Occurrences[0].ID)
	if err != nil || occ.Event == nil || occ.Event.ID != ev.ID {
		t.Errorf("GetOccurrence: unexpected %+v %v", occ, err)
	}
	avail, err := svc.OccurrenceAvailability(ctx, ev.Occurrences[2].ID)
	if err != nil || avail.Available != 10 {
		t.Errorf("OccurrenceAvailability: unexpected %+v %v", avail, err)
	}
	perEvent, err := svc.EventAvailability(ctx, ev.ID)
	if err != nil || len(perEvent) != 2 {
		t.Errorf("EventAvailability: expected 2 bookable occurrences, got %d %v", len(perEvent), err)
	}

	if _, err := svc.GetOccurrence(ctx, 404); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := svc.ListOccurrences(ctx, 404, false); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListActiveOnly(t *testing.T) {
	_, svc, cat := setup(t)
	ctx := context.Background()
	svc.Create(ctx, 1, weekly(cat.ID, "2024-01-01", "2024-01-14", 1))
	in := weekly(cat.ID, "2024-01-02", "2024-01-14", 2)
	in.IsActive = ptr(false)
	svc.Create(ctx, 1, in)

	all, _ := svc.List(ctx, false)
	active, _ := svc.List(ctx, true)
	if len(all) != 2 || len(active) != 1 {
		t.Errorf("expected 2 and 1 events, got %d and %d", len(all), len(active))
	}
}

func ptr[T any](v T) *T { return &v }
