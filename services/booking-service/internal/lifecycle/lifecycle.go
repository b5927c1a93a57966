// Package lifecycle moves appointments through their status machine:
//
//	pendente -> confirmado -> concluido
//	pendente | confirmado -> cancelado
//
// concluido and cancelado are terminal.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/agendafacil/libs/otel"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

type edge struct {
	from, to model.Status
}

var staff = []model.Role{model.RoleEmployee, model.RoleCompany}

// transitions is the only place that says who may move an appointment where.
var transitions = map[edge][]model.Role{
	{model.StatusPending, model.StatusConfirmed}:   staff,
	{model.StatusPending, model.StatusCancelled}:   {model.RoleClient, model.RoleEmployee, model.RoleCompany},
	{model.StatusConfirmed, model.StatusCancelled}: {model.RoleClient, model.RoleEmployee, model.RoleCompany},
	{model.StatusConfirmed, model.StatusCompleted}: staff,
}

// Allowed reports whether role may move an appointment from -> to.
func Allowed(from, to model.Status, role model.Role) bool {
	for _, r := range transitions[edge{from, to}] {
		if r == role {
			return true
		}
	}
	return false
}

type Manager struct {
	repo       storage.Repository
	catalog    catalog.Reader
	dispatcher notify.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

func NewManager(repo storage.Repository, cat catalog.Reader, dispatcher notify.Dispatcher, logger *slog.Logger) *Manager {
	return &Manager{
		repo:       repo,
		catalog:    cat,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// WithClock swaps the time source; tests use it.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Transition moves appointment id to target on behalf of actor. reason is kept
// only for cancellations. Nothing is written when the move is refused.
func (m *Manager) Transition(ctx context.Context, id string, target model.Status, actor model.Actor, reason string) (model.Appointment, error) {
	ctx, span := otelx.Start(ctx, "lifecycle.Transition",
		attribute.String("appointment_id", id),
		attribute.String("target", string(target)),
		attribute.String("role", string(actor.Role)),
	)
	appt, err := m.transition(ctx, id, target, actor, reason)
	otelx.End(span, err)
	return appt, err
}

func (m *Manager) transition(ctx context.Context, id string, target model.Status, actor model.Actor, reason string) (model.Appointment, error) {
	now := m.now().UTC()
	var from model.Status
	updated, err := m.repo.Update(ctx, id, func(a *model.Appointment) error {
		from = a.Status
		if err := authorize(*a, actor); err != nil {
			return err
		}
		if !Allowed(a.Status, target, actor.Role) {
			return refusal(*a, target, actor)
		}
		a.Status = target
		a.UpdatedAt = now
		switch target {
		case model.StatusConfirmed:
			a.ConfirmedAt = &now
		case model.StatusCompleted:
			a.CompletedAt = &now
		case model.StatusCancelled:
			a.CancelledAt = &now
			a.CancelledBy = actor.Role
			a.CancelReason = strings.TrimSpace(reason)
		}
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}

	m.logger.InfoContext(ctx, "appointment status changed",
		"appointment_id", updated.ID,
		"company_id", updated.CompanyID,
		"from", string(from),
		"to", string(updated.Status),
		"role", string(actor.Role),
	)
	m.notify(ctx, updated, actor, now)
	return updated, nil
}

func refusal(a model.Appointment, target model.Status, actor model.Actor) error {
	e := &model.InvalidTransitionError{AppointmentID: a.ID, From: a.Status, To: target, Actor: actor.Role}
	switch {
	case a.Status.Terminal():
		e.Reason = string(a.Status) + " is terminal"
	case len(transitions[edge{a.Status, target}]) > 0:
		e.Reason = "role not allowed"
	default:
		e.Reason = "no such transition"
	}
	return e
}

// authorize checks that actor is tied to a: the assigned employee, the owning
// company, or the booking client. Appointments booked without a client id
// (staff-made) are closed to every client actor.
func authorize(a model.Appointment, actor model.Actor) error {
	deny := func(reason string) error {
		return &model.InvalidTransitionError{AppointmentID: a.ID, From: a.Status, Actor: actor.Role, Reason: reason}
	}
	if actor.CompanyID != "" && actor.CompanyID != a.CompanyID {
		return deny("appointment belongs to another company")
	}
	switch actor.Role {
	case model.RoleEmployee:
		if actor.ID != a.EmployeeID {
			return deny("appointment is assigned to another employee")
		}
	case model.RoleCompany:
		if actor.CompanyID == "" {
			return deny("company actor without company id")
		}
	case model.RoleClient:
		if a.Client.ID == "" || actor.ID != a.Client.ID {
			return deny("appointment belongs to another client")
		}
	default:
		return deny("role may not change appointment status")
	}
	return nil
}

func (m *Manager) notify(ctx context.Context, a model.Appointment, actor model.Actor, now time.Time) {
	kind, ok := notify.KindFor(a.Status)
	if !ok {
		return
	}
	req := notify.Request{
		ID:          m.newID(),
		Kind:        kind,
		Appointment: a,
		Client:      a.Client,
		Actor:       &actor,
		RequestedAt: now,
	}
	var err error
	if req.Company, err = m.catalog.GetCompany(ctx, a.CompanyID); err != nil {
		m.logger.WarnContext(ctx, "notification without company details", "appointment_id", a.ID, "err", err)
		req.Company = model.Company{ID: a.CompanyID}
	}
	if req.Employee, err = m.catalog.GetEmployee(ctx, a.EmployeeID); err != nil {
		m.logger.WarnContext(ctx, "notification without employee details", "appointment_id", a.ID, "err", err)
		req.Employee = model.Employee{ID: a.EmployeeID, CompanyID: a.CompanyID}
	}
	notify.Send(ctx, m.dispatcher, m.logger, req)
}

// MarkReviewed flags a completed appointment as reviewed on behalf of its
// client or the review system. It succeeds once per appointment; later calls
// get a *model.ConflictError.
func (m *Manager) MarkReviewed(ctx context.Context, id string, actor model.Actor) (model.Appointment, error) {
	ctx, span := otelx.Start(ctx, "lifecycle.MarkReviewed", attribute.String("appointment_id", id))
	updated, err := m.repo.Update(ctx, id, func(a *model.Appointment) error {
		switch actor.Role {
		case model.RoleSystem:
		case model.RoleClient:
			if err := authorize(*a, actor); err != nil {
				return err
			}
		default:
			return model.Invalid("role", "only the client or the review system marks an appointment reviewed")
		}
		if a.Status != model.StatusCompleted {
			return model.Invalid("status", "appointment %s is %s, only %s can be reviewed", a.ID, a.Status, model.StatusCompleted)
		}
		if a.Reviewed {
			return &model.ConflictError{AppointmentID: a.ID, EmployeeID: a.EmployeeID, Date: a.Date, Reason: "appointment " + a.ID + " was already reviewed"}
		}
		a.Reviewed = true
		a.UpdatedAt = m.now().UTC()
		return nil
	})
	otelx.End(span, err)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			m.logger.InfoContext(ctx, "review refused", "appointment_id", id, "err", err)
		}
		return model.Appointment{}, err
	}
	return updated, nil
}
