package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
)

// ValidationError is a malformed or out-of-policy request. Field names use the wire (snake_case) spelling.
type ValidationError struct {
	Field  string
	Reason string
}

func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError reports that the requested interval is already occupied, or
// that a one-shot operation (review) already happened.
type ConflictError struct {
	AppointmentID string // the appointment already holding the interval, when known
	EmployeeID    string
	Date          Date
	Interval      Interval
	Reason        string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return "conflict: " + e.Reason
	}
	if e.AppointmentID != "" {
		return fmt.Sprintf("conflict: %s on %s overlaps appointment %s", e.Interval, e.Date, e.AppointmentID)
	}
	return fmt.Sprintf("conflict: %s on %s is already booked", e.Interval, e.Date)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type InvalidTransitionError struct {
	AppointmentID string
	From          Status
	To            Status
	Actor         Role
	Reason        string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("appointment %s: %s cannot move %s -> %s", e.AppointmentID, e.Actor, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

type NotFoundError struct {
	Entity string
	ID     string
}

func NotFound(entity, id string) *NotFoundError { return &NotFoundError{Entity: entity, ID: id} }

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Entity, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
