package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

var day = model.NewDate(2026, time.March, 2)

func newAppt(id string, start model.Clock) model.Appointment {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := model.Appointment{
		ID: id, CompanyID: "c1", EmployeeID: "e1",
		Client: model.Client{ID: "cli-1", Name: "Maria", Contact: "+55 11 99999-0000"},
		Date:   day, Start: start, Status: model.StatusPending,
		CreatedAt: now, UpdatedAt: now,
		Recurrence: &model.Recurrence{Frequency: model.Weekly, EndDate: day.AddDays(21)},
	}
	a.SetServices([]model.ServiceLine{{ServiceID: "corte", Name: "Corte", DurationMinutes: 60, Price: decimal.RequireFromString("35.00")}})
	return a
}

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	lite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "booking.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = lite.Close() })
	return map[string]Repository{"memory": NewMemory(), "sqlite": lite}
}

func TestReserveRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := newAppt("a1", model.NewClock(8, 0))
			if err := repo.Reserve(ctx, a, conflict.Guard(a)); err != nil {
				t.Fatalf("reserve: %v", err)
			}
			got, err := repo.Get(ctx, "a1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Start != a.Start || !got.Date.Equal(day) || got.Client.Name != "Maria" {
				t.Fatalf("unexpected appointment %+v", got)
			}
			if got.TotalMinutes != 60 || !got.TotalPrice.Equal(decimal.RequireFromString("35")) {
				t.Fatalf("totals not recomputed from snapshot: %d %s", got.TotalMinutes, got.TotalPrice)
			}
			if got.Recurrence == nil || got.Recurrence.Frequency != model.Weekly || !got.Recurrence.EndDate.Equal(day.AddDays(21)) {
				t.Fatalf("recurrence descriptor lost: %+v", got.Recurrence)
			}
			if _, err := repo.Get(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestReserveRejectsOverlapAndIgnoresCancelled(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := newAppt("a1", model.NewClock(8, 0))
			if err := repo.Reserve(ctx, first, conflict.Guard(first)); err != nil {
				t.Fatalf("reserve: %v", err)
			}
			overlapping := newAppt("a2", model.NewClock(8, 30))
			if err := repo.Reserve(ctx, overlapping, conflict.Guard(overlapping)); !errors.Is(err, model.ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}

			cancelledAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
			if _, err := repo.Update(ctx, "a1", func(a *model.Appointment) error {
				a.Status = model.StatusCancelled
				a.CancelledAt = &cancelledAt
				a.CancelledBy = model.RoleClient
				a.CancelReason = "imprevisto"
				return nil
			}); err != nil {
				t.Fatalf("cancel: %v", err)
			}
			rebook := newAppt("a3", model.NewClock(8, 0))
			if err := repo.Reserve(ctx, rebook, conflict.Guard(rebook)); err != nil {
				t.Fatalf("rebooking a cancelled slot should succeed, got %v", err)
			}

			all, _ := repo.ListDay(ctx, "c1", "e1", day)
			if len(all) != 2 {
				t.Fatalf("expected cancelled + new appointment, got %d", len(all))
			}
			got, _ := repo.Get(ctx, "a1")
			if got.CancelledAt == nil || !got.CancelledAt.Equal(cancelledAt) || got.CancelledBy != model.RoleClient || got.CancelReason != "imprevisto" {
				t.Fatalf("cancellation fields not persisted: %+v", got)
			}
		})
	}
}

func TestUpdateWritesNothingOnError(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := newAppt("a1", model.NewClock(9, 0))
			_ = repo.Reserve(ctx, a, nil)
			boom := errors.New("rejected")
			if _, err := repo.Update(ctx, "a1", func(a *model.Appointment) error {
				a.Status = model.StatusConfirmed
				return boom
			}); !errors.Is(err, boom) {
				t.Fatalf("expected fn error, got %v", err)
			}
			got, _ := repo.Get(ctx, "a1")
			if got.Status != model.StatusPending {
				t.Fatalf("status changed despite error: %s", got.Status)
			}
			if _, err := repo.Update(ctx, "nope", func(*model.Appointment) error { return nil }); !errors.Is(err, model.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestConcurrentReserveSameSlot(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const callers = 16
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				ok        int
				conflicts int
				other     []error
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					a := newAppt("race-"+string(rune('a'+i)), model.NewClock(10, 0))
					err := repo.Reserve(ctx, a, conflict.Guard(a))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case errors.Is(err, model.ErrConflict):
						conflicts++
					default:
						other = append(other, err)
					}
				}(i)
			}
			wg.Wait()
			if ok != 1 || conflicts != callers-1 || len(other) != 0 {
				t.Fatalf("expected exactly one winner, got ok=%d conflicts=%d other=%v", ok, conflicts, other)
			}
		})
	}
}

func TestListByStatus(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, d := range []model.Date{day, day.AddDays(1), day.AddDays(5)} {
				a := newAppt("s"+string(rune('0'+i)), model.NewClock(9, 0))
				a.Date = d
				a.Status = model.StatusConfirmed
				if err := repo.Reserve(ctx, a, nil); err != nil {
					t.Fatalf("reserve: %v", err)
				}
			}
			got, err := repo.ListByStatus(ctx, model.StatusConfirmed, day, day.AddDays(2))
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 2 || got[0].ID != "s0" || got[1].ID != "s1" {
				t.Fatalf("unexpected result %+v", got)
			}
			if none, _ := repo.ListByStatus(ctx, model.StatusPending, day, day.AddDays(7)); len(none) != 0 {
				t.Fatalf("expected no pending appointments, got %d", len(none))
			}
		})
	}
}

func TestPostgresMigrationsEmbedded(t *testing.T) {
	migs, err := PostgresMigrations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migs) != 2 || migs[1].Name != "002_appointments.sql" {
		t.Fatalf("unexpected migrations %+v", migs)
	}
}
