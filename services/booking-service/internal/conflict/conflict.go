// Package conflict decides whether a candidate interval collides with an
// employee's existing appointments on the same day.
package conflict

import (
	"context"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

// Find returns the first non-cancelled appointment whose occupied interval
// overlaps candidate, or nil. ignoreID skips one appointment (itself, when re-checking).
func Find(existing []model.Appointment, candidate model.Interval, ignoreID string) *model.Appointment {
	for i := range existing {
		a := &existing[i]
		if a.ID == ignoreID || !a.Status.Occupies() {
			continue
		}
		if a.Occupied().Overlaps(candidate) {
			return a
		}
	}
	return nil
}

// Free reports whether [start, start+minutes) overlaps no non-cancelled appointment.
func Free(existing []model.Appointment, start model.Clock, minutes int) bool {
	return Find(existing, model.Interval{Start: start, End: start.Add(minutes)}, "") == nil
}

// Guard builds the check a repository runs inside its serialization scope
// right before inserting appt.
func Guard(appt model.Appointment) func(existing []model.Appointment) error {
	return func(existing []model.Appointment) error {
		if hit := Find(existing, appt.Occupied(), appt.ID); hit != nil {
			return &model.ConflictError{
				AppointmentID: hit.ID,
				EmployeeID:    appt.EmployeeID,
				Date:          appt.Date,
				Interval:      appt.Occupied(),
			}
		}
		return nil
	}
}

// DayLister is the read side a Checker needs.
type DayLister interface {
	ListDay(ctx context.Context, companyID, employeeID string, d model.Date) ([]model.Appointment, error)
}

// Checker answers availability questions against live storage. Its answer is
// advisory; the booking path re-checks under the repository lock.
type Checker struct {
	appts DayLister
}

func NewChecker(appts DayLister) *Checker { return &Checker{appts: appts} }

func (c *Checker) IsAvailable(ctx context.Context, companyID, employeeID string, d model.Date, start model.Clock, minutes int) (bool, error) {
	free, err := c.Available(ctx, companyID, employeeID, d, []model.Clock{start}, minutes)
	return len(free) == 1, err
}

// Available keeps the candidates at which a booking of minutes would overlap
// nothing, reading the day's appointments once.
func (c *Checker) Available(ctx context.Context, companyID, employeeID string, d model.Date, candidates []model.Clock, minutes int) ([]model.Clock, error) {
	existing, err := c.appts.ListDay(ctx, companyID, employeeID, d)
	if err != nil {
		return nil, err
	}
	free := make([]model.Clock, 0, len(candidates))
	for _, t := range candidates {
		if Free(existing, t, minutes) {
			free = append(free, t)
		}
	}
	return free, nil
}
