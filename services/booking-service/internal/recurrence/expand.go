// Package recurrence expands a recurrence descriptor into the concrete dates
// of a series. It knows nothing about storage or availability.
package recurrence

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

// DefaultMaxOccurrences caps a series at one year of weekly bookings.
const DefaultMaxOccurrences = 52

var (
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	ErrEndBeforeStart   = errors.New("recurrence: end date before first date")
)

// Expand returns first and every following occurrence up to and including
// r.EndDate, at most max dates (max <= 0 means DefaultMaxOccurrences).
// Monthly steps keep first's day of month, clamped to shorter months, so
// Jan 31 yields Feb 28 and then Mar 31.
func Expand(first model.Date, r model.Recurrence, max int) ([]model.Date, error) {
	if max <= 0 {
		max = DefaultMaxOccurrences
	}
	if r.EndDate.Before(first) {
		return nil, fmt.Errorf("%w: %s < %s", ErrEndBeforeStart, r.EndDate, first)
	}
	next, err := stepper(first, r.Frequency)
	if err != nil {
		return nil, err
	}

	dates := make([]model.Date, 0, 8)
	for i := 0; len(dates) < max; i++ {
		d := next(i)
		if d.After(r.EndDate) {
			break
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func stepper(first model.Date, f model.Frequency) (func(i int) model.Date, error) {
	switch f {
	case model.Weekly:
		return func(i int) model.Date { return first.AddDays(7 * i) }, nil
	case model.Biweekly:
		return func(i int) model.Date { return first.AddDays(14 * i) }, nil
	case model.Monthly:
		return func(i int) model.Date { return first.AddMonthsClamped(i) }, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
}
