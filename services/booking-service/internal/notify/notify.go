// Package notify hands notification requests to whatever delivers them.
// The booking engine only knows a request was handed off.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

type Kind string

const (
	KindNew       Kind = "new"
	KindConfirmed Kind = "confirmed"
	KindCancelled Kind = "cancelled"
	KindCompleted Kind = "completed"
	KindReminder  Kind = "reminder"
)

// KindFor maps a lifecycle target status to the notification it triggers.
func KindFor(s model.Status) (Kind, bool) {
	switch s {
	case model.StatusConfirmed:
		return KindConfirmed, true
	case model.StatusCancelled:
		return KindCancelled, true
	case model.StatusCompleted:
		return KindCompleted, true
	}
	return "", false
}

// Request carries everything a delivery channel needs to render a message.
type Request struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	Appointment model.Appointment `json:"appointment"`
	Company     model.Company     `json:"company"`
	Employee    model.Employee    `json:"employee"`
	Client      model.Client      `json:"client"`
	Actor       *model.Actor      `json:"actor,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
}

type Dispatcher interface {
	Notify(ctx context.Context, req Request) error
}

// Log writes requests to the service log. Used when no broker is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log { return &Log{logger: logger} }

func (l *Log) Notify(ctx context.Context, req Request) error {
	l.logger.InfoContext(ctx, "notification requested",
		"notification_id", req.ID,
		"kind", string(req.Kind),
		"appointment_id", req.Appointment.ID,
		"company_id", req.Company.ID,
		"employee_id", req.Employee.ID,
		"date", req.Appointment.Date.String(),
		"start_time", req.Appointment.Start.String(),
	)
	return nil
}

// Send posts a request without ever failing the caller: delivery is
// best-effort, so an error is logged and swallowed here.
func Send(ctx context.Context, d Dispatcher, logger *slog.Logger, req Request) {
	if d == nil {
		return
	}
	if err := d.Notify(ctx, req); err != nil {
		logger.WarnContext(ctx, "notification hand-off failed",
			"notification_id", req.ID,
			"kind", string(req.Kind),
			"appointment_id", req.Appointment.ID,
			"err", err,
		)
	}
}
