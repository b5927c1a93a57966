package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Company is a tenant. Its hours bound every employee's working window.
type Company struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Opens       Clock          `json:"opens"`
	Closes      Clock          `json:"closes"`
	WorkingDays []time.Weekday `json:"working_days"`
	Timezone    string         `json:"timezone,omitempty"`
}

func (c Company) Hours() Interval { return Interval{Start: c.Opens, End: c.Closes} }

func (c Company) WorksOn(d time.Weekday) bool { return hasWeekday(c.WorkingDays, d) }

// Location falls back to UTC when Timezone is empty or unknown.
func (c Company) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Company) Validate() error {
	if c.Opens >= c.Closes {
		return Invalid("closes", "opening time %s must be before closing time %s", c.Opens, c.Closes)
	}
	for _, d := range c.WorkingDays {
		if d < time.Sunday || d > time.Saturday {
			return Invalid("working_days", "weekday %d out of range 0-6", d)
		}
	}
	return nil
}

type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "active"
	EmployeeInactive EmployeeStatus = "inactive"
	EmployeeOnLeave  EmployeeStatus = "on_leave"
)

// ParseEmployeeStatus also accepts the Portuguese labels used by the company back office.
func ParseEmployeeStatus(s string) (EmployeeStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active", "ativo":
		return EmployeeActive, nil
	case "inactive", "inativo":
		return EmployeeInactive, nil
	case "on_leave", "ferias", "férias":
		return EmployeeOnLeave, nil
	}
	return "", fmt.Errorf("unknown employee status %q", s)
}

func (s *EmployeeStatus) UnmarshalText(b []byte) error {
	v, err := ParseEmployeeStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Break is a pause in an employee's day. An empty Weekdays set means every day.
type Break struct {
	Start    Clock          `json:"start"`
	End      Clock          `json:"end"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
}

func (b Break) Interval() Interval { return Interval{Start: b.Start, End: b.End} }

func (b Break) AppliesOn(d time.Weekday) bool {
	return len(b.Weekdays) == 0 || hasWeekday(b.Weekdays, d)
}

type Employee struct {
	ID        string         `json:"id"`
	CompanyID string         `json:"company_id"`
	Name      string         `json:"name"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Hours     *Interval      `json:"hours,omitempty"`
	DaysOff   []time.Weekday `json:"days_off,omitempty"`
	Breaks    []Break        `json:"breaks,omitempty"`
	Status    EmployeeStatus `json:"status"`
}

func (e Employee) Active() bool { return e.Status == EmployeeActive || e.Status == "" }

// BreaksOn returns the breaks that apply on weekday d.
func (e Employee) BreaksOn(d time.Weekday) []Interval {
	var out []Interval
	for _, b := range e.Breaks {
		if b.AppliesOn(d) {
			out = append(out, b.Interval())
		}
	}
	return out
}

// Validate checks that breaks are well formed, inside the employee's hours
// and do not overlap each other on any shared weekday.
func (e Employee) Validate(c Company) error {
	hours := c.Hours()
	if e.Hours != nil {
		if e.Hours.Empty() {
			return Invalid("hours", "start %s must be before end %s", e.Hours.Start, e.Hours.End)
		}
		hours = *e.Hours
	}
	for i, b := range e.Breaks {
		bi := b.Interval()
		if bi.Empty() {
			return Invalid("breaks", "break %s is empty", bi)
		}
		if !hours.Contains(bi) {
			return Invalid("breaks", "break %s is outside working hours %s", bi, hours)
		}
		for _, o := range e.Breaks[i+1:] {
			if bi.Overlaps(o.Interval()) && sharesWeekday(b, o) {
				return Invalid("breaks", "break %s overlaps break %s", bi, o.Interval())
			}
		}
	}
	return nil
}

type Service struct {
	ID              string          `json:"id"`
	CompanyID       string          `json:"company_id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	Active          bool            `json:"active"`
}

func (s Service) Validate() error {
	if s.DurationMinutes <= 0 {
		return Invalid("duration_minutes", "service %s duration must be positive", s.ID)
	}
	if s.Price.IsNegative() {
		return Invalid("price", "service %s price must not be negative", s.ID)
	}
	return nil
}

func hasWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}

func sharesWeekday(a, b Break) bool {
	if len(a.Weekdays) == 0 || len(b.Weekdays) == 0 {
		return true
	}
	for _, d := range a.Weekdays {
		if hasWeekday(b.Weekdays, d) {
			return true
		}
	}
	return false
}
