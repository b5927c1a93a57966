// Package storage persists appointments. Every implementation makes
// Reserve's check-then-insert atomic per (company, employee, date).
package storage

import (
	"context"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

// CheckFunc inspects the live (non-cancelled) appointments of a key and
// returns an error to abort the insert.
type CheckFunc func(existing []model.Appointment) error

type Repository interface {
	// Reserve runs check against the live appointments sharing appt's key and,
	// if it passes, inserts appt, all under one serialization scope.
	Reserve(ctx context.Context, appt model.Appointment, check CheckFunc) error
	Get(ctx context.Context, id string) (model.Appointment, error)
	// Update loads id under a row lock, applies fn and persists the result.
	// Nothing is written when fn returns an error.
	Update(ctx context.Context, id string, fn func(*model.Appointment) error) (model.Appointment, error)
	// ListDay returns every appointment (any status) for the key, ordered by start time.
	ListDay(ctx context.Context, companyID, employeeID string, d model.Date) ([]model.Appointment, error)
	// ListByStatus returns appointments in status whose date is within [from, to].
	ListByStatus(ctx context.Context, status model.Status, from, to model.Date) ([]model.Appointment, error)
}
