package reminders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/storage"
)

// 10:00 in Sao Paulo (UTC-3).
var now = time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Worker, *storage.Memory, *notify.Recorder) {
	t.Helper()
	cat := catalog.NewMemory()
	if err := cat.Load(catalog.Seed{
		Companies: []model.Company{{ID: "c1", Opens: model.NewClock(8, 0), Closes: model.NewClock(20, 0), WorkingDays: []time.Weekday{1, 2, 3, 4, 5}, Timezone: "America/Sao_Paulo"}},
		Employees: []model.Employee{{ID: "e1", CompanyID: "c1", Name: "Ana"}},
	}); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	repo := storage.NewMemory()
	rec := &notify.Recorder{}
	w := NewWorker(repo, cat, rec, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Lead: 24 * time.Hour})
	w.now = func() time.Time { return now }
	return w, repo, rec
}

func put(t *testing.T, repo *storage.Memory, id string, d model.Date, start model.Clock, status model.Status) {
	t.Helper()
	a := model.Appointment{ID: id, CompanyID: "c1", EmployeeID: "e1", Client: model.Client{Name: "Maria"}, Date: d, Start: start, Status: status}
	a.SetServices([]model.ServiceLine{{ServiceID: "s1", DurationMinutes: 30}})
	if err := repo.Reserve(context.Background(), a, conflict.Guard(a)); err != nil {
		t.Fatalf("put %s: %v", id, err)
	}
}

func TestSweepRemindsWithinLead(t *testing.T) {
	w, repo, rec := setup(t)
	today := model.NewDate(2026, time.March, 2)
	put(t, repo, "past", today, model.NewClock(9, 0), model.StatusConfirmed)
	put(t, repo, "soon", today, model.NewClock(11, 0), model.StatusConfirmed)
	put(t, repo, "pending", today, model.NewClock(12, 0), model.StatusPending)
	put(t, repo, "tomorrow", today.AddDays(1), model.NewClock(9, 0), model.StatusConfirmed)
	put(t, repo, "late", today.AddDays(1), model.NewClock(11, 0), model.StatusConfirmed)

	sent, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sent != 2 {
		t.Fatalf("expected 2 reminders, got %d", sent)
	}
	got := map[string]bool{}
	for _, r := range rec.Requests() {
		if r.Kind != notify.KindReminder {
			t.Fatalf("unexpected kind %s", r.Kind)
		}
		got[r.Appointment.ID] = true
	}
	if !got["soon"] || !got["tomorrow"] {
		t.Fatalf("unexpected reminders %v", got)
	}
	a, _ := repo.Get(context.Background(), "soon")
	if a.RemindedAt == nil || !a.RemindedAt.Equal(now) {
		t.Fatalf("reminder not stamped: %+v", a.RemindedAt)
	}

	sent, err = w.Sweep(context.Background())
	if err != nil || sent != 0 {
		t.Fatalf("second sweep should send nothing, got %d %v", sent, err)
	}
}

func TestSweepRetriesFailedHandOff(t *testing.T) {
	w, repo, rec := setup(t)
	put(t, repo, "soon", model.NewDate(2026, time.March, 2), model.NewClock(11, 0), model.StatusConfirmed)

	rec.Fail = errors.New("broker down")
	if sent, _ := w.Sweep(context.Background()); sent != 0 {
		t.Fatalf("expected nothing sent, got %d", sent)
	}
	if a, _ := repo.Get(context.Background(), "soon"); a.RemindedAt != nil {
		t.Fatal("failed hand-off must not be stamped")
	}

	rec.Fail = nil
	if sent, _ := w.Sweep(context.Background()); sent != 1 {
		t.Fatalf("expected retry to send, got %d", sent)
	}
}

func TestSweepHonoursLeadBeyondTwoDays(t *testing.T) {
	w, repo, rec := setup(t)
	w.lead = 96 * time.Hour
	today := model.NewDate(2026, time.March, 2)
	put(t, repo, "in-72h", today.AddDays(3), model.NewClock(10, 0), model.StatusConfirmed)
	put(t, repo, "in-97h", today.AddDays(4), model.NewClock(11, 0), model.StatusConfirmed)

	sent, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 reminder, got %d", sent)
	}
	if reqs := rec.Requests(); len(reqs) != 1 || reqs[0].Appointment.ID != "in-72h" {
		t.Fatalf("unexpected reminders %+v", reqs)
	}
}

type stuckRepo struct {
	*storage.Memory
}

func (stuckRepo) Update(context.Context, string, func(*model.Appointment) error) (model.Appointment, error) {
	return model.Appointment{}, errors.New("disk full")
}

func TestSweepDoesNotCountUnrecordedReminder(t *testing.T) {
	w, repo, rec := setup(t)
	put(t, repo, "soon", model.NewDate(2026, time.March, 2), model.NewClock(11, 0), model.StatusConfirmed)
	w.repo = stuckRepo{repo}

	sent, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sent != 0 {
		t.Fatalf("unrecorded reminder counted as sent: %d", sent)
	}
	if len(rec.Requests()) != 1 {
		t.Fatalf("expected the hand-off to happen once, got %d", len(rec.Requests()))
	}
}
