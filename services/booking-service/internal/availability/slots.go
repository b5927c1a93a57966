// Package availability derives an employee's bookable time points for a day
// from the company's hours, the employee's own hours and their breaks.
package availability

import (
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

const DefaultGranularity = 30

// EffectiveWindow intersects company hours with the employee's override hours.
// ok is false when nobody works that day: a closed weekday, a day off, an
// inactive employee, or hours that do not intersect.
func EffectiveWindow(c model.Company, e model.Employee, d model.Date) (w model.Interval, ok bool) {
	wd := d.Weekday()
	if !c.WorksOn(wd) || !e.Active() {
		return model.Interval{}, false
	}
	for _, off := range e.DaysOff {
		if off == wd {
			return model.Interval{}, false
		}
	}
	w = c.Hours()
	if e.Hours != nil {
		if e.Hours.Start > w.Start {
			w.Start = e.Hours.Start
		}
		if e.Hours.End < w.End {
			w.End = e.Hours.End
		}
	}
	if w.Empty() {
		return model.Interval{}, false
	}
	return w, true
}

// GenerateSlots walks the effective window in granularity steps. A step t is
// emitted when [t, t+granularity) fits the window and t is not inside a break.
// Break intervals are half-open, so a break [12:00,13:00) drops 12:00 and keeps 13:00.
func GenerateSlots(c model.Company, e model.Employee, d model.Date, granularity int) []model.Clock {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	w, ok := EffectiveWindow(c, e, d)
	if !ok {
		return nil
	}
	breaks := e.BreaksOn(d.Weekday())

	var slots []model.Clock
	for t := w.Start; t.Add(granularity) <= w.End; t = t.Add(granularity) {
		if insideAny(t, breaks) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

// CheckFit is the exact (not granularity-snapped) check that [start, start+minutes)
// lies inside the working window and clears every break of that weekday.
func CheckFit(c model.Company, e model.Employee, d model.Date, start model.Clock, minutes int) error {
	if minutes <= 0 {
		return model.Invalid("service_ids", "total duration must be positive")
	}
	w, ok := EffectiveWindow(c, e, d)
	if !ok {
		return model.Invalid("date", "employee %s does not work on %s", e.ID, d)
	}
	want := model.Interval{Start: start, End: start.Add(minutes)}
	if !w.Contains(want) {
		return model.Invalid("start_time", "%s (%d min) does not fit working hours %s", want, minutes, w)
	}
	for _, b := range e.BreaksOn(d.Weekday()) {
		if want.Overlaps(b) {
			return model.Invalid("start_time", "%s overlaps break %s", want, b)
		}
	}
	return nil
}

func insideAny(t model.Clock, intervals []model.Interval) bool {
	for _, i := range intervals {
		if i.ContainsClock(t) {
			return true
		}
	}
	return false
}
