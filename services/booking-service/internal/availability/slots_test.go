package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

var allWeek = []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}

func company() model.Company {
	return model.Company{ID: "c1", Opens: model.NewClock(8, 0), Closes: model.NewClock(18, 0), WorkingDays: allWeek}
}

func clocks(ss ...string) []model.Clock {
	out := make([]model.Clock, 0, len(ss))
	for _, s := range ss {
		c, err := model.ParseClock(s)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
	}
	return out
}

func contains(slots []model.Clock, c model.Clock) bool {
	for _, s := range slots {
		if s == c {
			return true
		}
	}
	return false
}

var monday = model.NewDate(2026, time.March, 2)

func TestGenerateSlots_FullDay(t *testing.T) {
	slots := GenerateSlots(company(), model.Employee{ID: "e1"}, monday, 30)
	if len(slots) != 20 {
		t.Fatalf("expected 20 slots 08:00..17:30, got %d", len(slots))
	}
	if slots[0] != model.NewClock(8, 0) || slots[len(slots)-1] != model.NewClock(17, 30) {
		t.Fatalf("unexpected bounds %s..%s", slots[0], slots[len(slots)-1])
	}
	for i := 1; i < len(slots); i++ {
		if slots[i] <= slots[i-1] {
			t.Fatalf("slots not ordered at %d", i)
		}
	}
}

func TestGenerateSlots_BreakIsHalfOpen(t *testing.T) {
	e := model.Employee{ID: "e1", Breaks: []model.Break{{Start: model.NewClock(12, 0), End: model.NewClock(13, 0)}}}
	slots := GenerateSlots(company(), e, monday, 30)
	for _, excluded := range clocks("12:00", "12:30") {
		if contains(slots, excluded) {
			t.Fatalf("slot %s falls inside the break", excluded)
		}
	}
	for _, included := range clocks("11:30", "13:00") {
		if !contains(slots, included) {
			t.Fatalf("slot %s should be offered", included)
		}
	}
}

func TestGenerateSlots_NoSlotInsideAnyBreak(t *testing.T) {
	e := model.Employee{ID: "e1", Breaks: []model.Break{
		{Start: model.NewClock(10, 15), End: model.NewClock(10, 45)},
		{Start: model.NewClock(15, 0), End: model.NewClock(15, 20), Weekdays: []time.Weekday{time.Monday}},
	}}
	for _, g := range []int{5, 10, 15, 30, 45} {
		for _, s := range GenerateSlots(company(), e, monday, g) {
			for _, b := range e.BreaksOn(time.Monday) {
				if b.ContainsClock(s) {
					t.Fatalf("granularity %d: slot %s inside break %s", g, s, b)
				}
			}
		}
	}
	// The Monday-only break does not apply on Tuesday.
	if !contains(GenerateSlots(company(), e, monday.AddDays(1), 5), model.NewClock(15, 0)) {
		t.Fatal("weekday-scoped break leaked onto another day")
	}
}

func TestGenerateSlots_EmptyOutsideWorkingDays(t *testing.T) {
	c := company()
	c.WorkingDays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	sunday := model.NewDate(2026, time.March, 1)
	if slots := GenerateSlots(c, model.Employee{ID: "e1"}, sunday, 30); len(slots) != 0 {
		t.Fatalf("expected no slots on a closed day, got %d", len(slots))
	}

	off := model.Employee{ID: "e1", DaysOff: []time.Weekday{time.Monday}}
	if slots := GenerateSlots(c, off, monday, 30); len(slots) != 0 {
		t.Fatalf("expected no slots on the employee's day off, got %d", len(slots))
	}

	away := model.Employee{ID: "e1", Status: model.EmployeeOnLeave}
	if slots := GenerateSlots(c, away, monday, 30); len(slots) != 0 {
		t.Fatalf("expected no slots for an employee on leave, got %d", len(slots))
	}
}

func TestGenerateSlots_WindowShorterThanStep(t *testing.T) {
	c := company()
	c.Opens, c.Closes = model.NewClock(9, 0), model.NewClock(9, 20)
	if slots := GenerateSlots(c, model.Employee{ID: "e1"}, monday, 30); len(slots) != 0 {
		t.Fatalf("expected empty sequence, got %v", slots)
	}
}

func TestEffectiveWindowIntersectsOverride(t *testing.T) {
	e := model.Employee{ID: "e1", Hours: &model.Interval{Start: model.NewClock(7, 0), End: model.NewClock(12, 0)}}
	w, ok := EffectiveWindow(company(), e, monday)
	if !ok || w.Start != model.NewClock(8, 0) || w.End != model.NewClock(12, 0) {
		t.Fatalf("unexpected window %s (%v)", w, ok)
	}
	e.Hours = &model.Interval{Start: model.NewClock(18, 0), End: model.NewClock(20, 0)}
	if _, ok := EffectiveWindow(company(), e, monday); ok {
		t.Fatal("disjoint hours should yield no window")
	}
}

func TestCheckFit_ExactBoundary(t *testing.T) {
	e := model.Employee{ID: "e1", Breaks: []model.Break{{Start: model.NewClock(12, 0), End: model.NewClock(13, 0)}}}
	if err := CheckFit(company(), e, monday, model.NewClock(17, 0), 60); err != nil {
		t.Fatalf("17:00+60 ends exactly at closing, got %v", err)
	}
	if err := CheckFit(company(), e, monday, model.NewClock(17, 30), 45); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error past closing, got %v", err)
	}
	if err := CheckFit(company(), e, monday, model.NewClock(11, 30), 30); err != nil {
		t.Fatalf("11:30+30 ends at the break start, got %v", err)
	}
	if err := CheckFit(company(), e, monday, model.NewClock(11, 30), 45); err == nil {
		t.Fatal("expected overlap with break")
	}
	if err := CheckFit(company(), e, monday, model.NewClock(11, 45), 15); err != nil {
		t.Fatalf("off-grid start should be judged exactly, got %v", err)
	}
}
