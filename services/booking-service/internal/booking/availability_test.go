package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

func TestAvailabilityUsesShortestActiveService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.coord.Book(ctx, req("08:00", "s60")); err != nil {
		t.Fatalf("book: %v", err)
	}

	got, err := f.coord.Availability(ctx, "c1", "e1", monday)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if got.DurationMinutes != 30 {
		t.Fatalf("expected the 30 min service to drive the query, got %d", got.DurationMinutes)
	}
	if len(got.Slots) == 0 || got.Slots[0] != model.NewClock(9, 0) {
		t.Fatalf("expected first free slot 09:00, got %v", got.Slots)
	}
	last := got.Slots[len(got.Slots)-1]
	if last != model.NewClock(17, 30) {
		t.Fatalf("expected last slot 17:30, got %s", last)
	}
	// 08:00-18:00 is 20 steps, two are taken by the booking.
	if len(got.Slots) != 18 {
		t.Fatalf("expected 18 slots, got %d", len(got.Slots))
	}
}

func TestAvailabilityForServiceSet(t *testing.T) {
	f := newFixture(t)
	got, err := f.coord.Availability(context.Background(), "c1", "e-break", monday, "s60")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	for _, s := range got.Slots {
		if s == model.NewClock(11, 30) || s == model.NewClock(12, 0) || s == model.NewClock(12, 30) {
			t.Fatalf("slot %s would run into the break", s)
		}
		if s == model.NewClock(17, 30) {
			t.Fatal("17:30 cannot fit a 60 min service")
		}
	}
	if got.Slots[0] != model.NewClock(8, 0) {
		t.Fatalf("unexpected first slot %s", got.Slots[0])
	}
}

func TestAvailabilityTodaySkipsElapsedSlots(t *testing.T) {
	f := newFixture(t)
	f.coord.now = func() time.Time { return time.Date(2026, 3, 2, 10, 10, 0, 0, time.UTC) }
	got, err := f.coord.Availability(context.Background(), "c1", "e1", monday)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if got.Slots[0] != model.NewClock(10, 30) {
		t.Fatalf("expected 10:30 first, got %s", got.Slots[0])
	}
}

func TestAvailabilityEmptyWhenOnLeave(t *testing.T) {
	f := newFixture(t)
	got, err := f.coord.Availability(context.Background(), "c1", "e-off", monday)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(got.Slots) != 0 {
		t.Fatalf("expected no slots, got %v", got.Slots)
	}
}

func TestAvailabilityRejectsForeignEmployee(t *testing.T) {
	f := newFixture(t)
	if _, err := f.coord.Availability(context.Background(), "c1", "e2", monday); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
