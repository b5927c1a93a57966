package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pendente"
	StatusConfirmed Status = "confirmado"
	StatusCompleted Status = "concluido"
	StatusCancelled Status = "cancelado"
)

// ParseStatus maps wire spellings onto the closed set of statuses.
// "agendado" is a legacy spelling of pendente.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pendente", "agendado", "pending":
		return StatusPending, nil
	case "confirmado", "confirmed":
		return StatusConfirmed, nil
	case "concluido", "concluído", "completed":
		return StatusCompleted, nil
	case "cancelado", "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// Occupies reports whether an appointment in this status holds its interval.
func (s Status) Occupies() bool { return s != StatusCancelled }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Role string

const (
	RoleClient   Role = "client"
	RoleEmployee Role = "employee"
	RoleCompany  Role = "company"
	// RoleSystem is used by background jobs; it may not drive lifecycle transitions.
	RoleSystem Role = "system"
)

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client", "cliente":
		return RoleClient, nil
	case "employee", "funcionario", "staff":
		return RoleEmployee, nil
	case "company", "empresa", "owner":
		return RoleCompany, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is whoever requests a change. ID is the client id, employee id or
// company user id depending on Role.
type Actor struct {
	Role      Role   `json:"role"`
	ID        string `json:"id"`
	CompanyID string `json:"company_id,omitempty"`
}

type Client struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
}

// ServiceLine is the snapshot of a service taken when the appointment was booked.
type ServiceLine struct {
	ServiceID       string          `json:"service_id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
}

func Snapshot(s Service) ServiceLine {
	return ServiceLine{ServiceID: s.ID, Name: s.Name, DurationMinutes: s.DurationMinutes, Price: s.Price}
}

type Frequency string

const (
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly", "semanal":
		return Weekly, nil
	case "biweekly", "quinzenal":
		return Biweekly, nil
	case "monthly", "mensal":
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

type Recurrence struct {
	Frequency Frequency `json:"frequency"`
	EndDate   Date      `json:"end_date"`
}

type Appointment struct {
	ID         string `json:"id"`
	CompanyID  string `json:"company_id"`
	EmployeeID string `json:"employee_id"`
	Client     Client `json:"client"`
	Date       Date   `json:"date"`
	Start      Clock  `json:"start_time"`
	Notes      string `json:"notes,omitempty"`

	Services     []ServiceLine   `json:"services"`
	TotalMinutes int             `json:"total_duration_minutes"`
	TotalPrice   decimal.Decimal `json:"total_price"`

	Status     Status      `json:"status"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`
	Reviewed   bool        `json:"reviewed"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy  Role       `json:"cancelled_by,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	RemindedAt   *time.Time `json:"reminded_at,omitempty"`
}

// SetServices replaces the snapshot and recomputes both totals from it.
// Totals are never written any other way.
func (a *Appointment) SetServices(lines []ServiceLine) {
	a.Services = append([]ServiceLine(nil), lines...)
	a.recomputeTotals()
}

func (a *Appointment) recomputeTotals() {
	minutes := 0
	price := decimal.Zero
	for _, l := range a.Services {
		minutes += l.DurationMinutes
		price = price.Add(l.Price)
	}
	a.TotalMinutes = minutes
	a.TotalPrice = price
}

// End is the exclusive end of the occupied interval.
func (a Appointment) End() Clock { return a.Start.Add(a.TotalMinutes) }

func (a Appointment) Occupied() Interval { return Interval{Start: a.Start, End: a.End()} }

// StartsAt is the start instant in loc (the company's timezone).
func (a Appointment) StartsAt(loc *time.Location) time.Time { return a.Date.At(a.Start, loc) }

// Key identifies the (company, employee, date) scope bookings serialize on.
func (a Appointment) Key() string { return SlotKey(a.CompanyID, a.EmployeeID, a.Date) }

func SlotKey(companyID, employeeID string, d Date) string {
	return companyID + "|" + employeeID + "|" + d.String()
}

// Clone returns a deep copy so callers cannot alias stored snapshots.
func (a Appointment) Clone() Appointment {
	out := a
	out.Services = append([]ServiceLine(nil), a.Services...)
	if a.Recurrence != nil {
		r := *a.Recurrence
		out.Recurrence = &r
	}
	out.ConfirmedAt = cloneTime(a.ConfirmedAt)
	out.CompletedAt = cloneTime(a.CompletedAt)
	out.CancelledAt = cloneTime(a.CancelledAt)
	out.RemindedAt = cloneTime(a.RemindedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
