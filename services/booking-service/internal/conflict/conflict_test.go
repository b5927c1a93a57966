package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

var day = model.NewDate(2026, time.March, 2)

func appt(id string, start model.Clock, minutes int, status model.Status) model.Appointment {
	a := model.Appointment{ID: id, CompanyID: "c1", EmployeeID: "e1", Date: day, Start: start, Status: status}
	a.SetServices([]model.ServiceLine{{ServiceID: "s1", DurationMinutes: minutes}})
	return a
}

func TestFreeHalfOpen(t *testing.T) {
	existing := []model.Appointment{appt("a1", model.NewClock(8, 0), 60, model.StatusConfirmed)}
	if Free(existing, model.NewClock(8, 0), 60) {
		t.Fatal("same slot must conflict")
	}
	if Free(existing, model.NewClock(8, 30), 60) {
		t.Fatal("08:30 overlaps 08:00-09:00")
	}
	if !Free(existing, model.NewClock(9, 0), 60) {
		t.Fatal("09:00 touches but does not overlap")
	}
	if !Free(existing, model.NewClock(7, 0), 60) {
		t.Fatal("07:00-08:00 ends where the existing one starts")
	}
}

func TestCancelledDoesNotOccupy(t *testing.T) {
	existing := []model.Appointment{appt("a1", model.NewClock(8, 0), 60, model.StatusCancelled)}
	if !Free(existing, model.NewClock(8, 0), 60) {
		t.Fatal("cancelled appointment must not block the slot")
	}
}

func TestGuardReportsConflictingAppointment(t *testing.T) {
	existing := []model.Appointment{appt("a1", model.NewClock(10, 0), 30, model.StatusPending)}
	err := Guard(appt("new", model.NewClock(10, 15), 30, model.StatusPending))(existing)
	var ce *model.ConflictError
	if !errors.As(err, &ce) || ce.AppointmentID != "a1" {
		t.Fatalf("expected conflict with a1, got %v", err)
	}
	if err := Guard(existing[0])(existing); err != nil {
		t.Fatalf("an appointment must not conflict with itself, got %v", err)
	}
}

type stubLister struct {
	appts []model.Appointment
	err   error
}

func (s stubLister) ListDay(context.Context, string, string, model.Date) ([]model.Appointment, error) {
	return s.appts, s.err
}

func TestCheckerIsAvailable(t *testing.T) {
	c := NewChecker(stubLister{appts: []model.Appointment{appt("a1", model.NewClock(14, 0), 45, model.StatusConfirmed)}})
	ok, err := c.IsAvailable(context.Background(), "c1", "e1", day, model.NewClock(14, 30), 30)
	if err != nil || ok {
		t.Fatalf("expected unavailable, got %v (%v)", ok, err)
	}
	ok, _ = c.IsAvailable(context.Background(), "c1", "e1", day, model.NewClock(14, 45), 30)
	if !ok {
		t.Fatal("expected 14:45 to be free")
	}

	failing := NewChecker(stubLister{err: errors.New("db down")})
	if _, err := failing.IsAvailable(context.Background(), "c1", "e1", day, model.NewClock(9, 0), 30); err == nil {
		t.Fatal("expected storage error to surface")
	}
}

type countingLister struct {
	stubLister
	calls *int
}

func (c countingLister) ListDay(ctx context.Context, companyID, employeeID string, d model.Date) ([]model.Appointment, error) {
	*c.calls++
	return c.stubLister.ListDay(ctx, companyID, employeeID, d)
}

func TestCheckerAvailableFiltersInOneRead(t *testing.T) {
	calls := 0
	c := NewChecker(countingLister{stubLister: stubLister{appts: []model.Appointment{
		appt("a1", model.NewClock(9, 0), 60, model.StatusConfirmed),
		appt("a2", model.NewClock(11, 0), 60, model.StatusCancelled),
	}}, calls: &calls})

	candidates := []model.Clock{model.NewClock(8, 30), model.NewClock(9, 30), model.NewClock(10, 0), model.NewClock(11, 0)}
	free, err := c.Available(context.Background(), "c1", "e1", day, candidates, 30)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(free) != 3 || free[0] != model.NewClock(8, 30) || free[1] != model.NewClock(10, 0) || free[2] != model.NewClock(11, 0) {
		t.Fatalf("unexpected free slots %v", free)
	}
	if calls != 1 {
		t.Fatalf("expected one storage read, got %d", calls)
	}
}
