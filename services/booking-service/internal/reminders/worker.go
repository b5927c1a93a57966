// Package reminders periodically asks the notification dispatcher to remind
// clients of confirmed appointments that start soon.
package reminders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/agendafacil/libs/otel"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

var errSkip = errors.New("reminder no longer due")

type Config struct {
	Interval time.Duration
	Lead     time.Duration
}

type Worker struct {
	repo       storage.Repository
	catalog    catalog.Reader
	dispatcher notify.Dispatcher
	logger     *slog.Logger
	interval   time.Duration
	lead       time.Duration
	now        func() time.Time
}

func NewWorker(repo storage.Repository, cat catalog.Reader, dispatcher notify.Dispatcher, logger *slog.Logger, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Lead <= 0 {
		cfg.Lead = 24 * time.Hour
	}
	return &Worker{
		repo:       repo,
		catalog:    cat,
		dispatcher: dispatcher,
		logger:     logger,
		interval:   cfg.Interval,
		lead:       cfg.Lead,
		now:        time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.Error("reminder sweep failed", "err", err)
			}
		}
	}
}

// Sweep sends one reminder per confirmed appointment starting in (now, now+lead]
// and stamps it so later sweeps skip it. An appointment whose hand-off fails
// stays unstamped and is retried on the next sweep.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	ctx, span := otelx.Start(ctx, "reminders.Sweep")
	sent, err := w.sweep(ctx)
	span.SetAttributes(attribute.Int("sent", sent))
	otelx.End(span, err)
	return sent, err
}

func (w *Worker) sweep(ctx context.Context) (int, error) {
	now := w.now().UTC()
	// Company timezones put "today" up to a day either side of UTC.
	today := model.DateOf(now)
	horizon := int(w.lead/(24*time.Hour)) + 2
	candidates, err := w.repo.ListByStatus(ctx, model.StatusConfirmed, today.AddDays(-1), today.AddDays(horizon))
	if err != nil {
		return 0, err
	}

	companies := map[string]model.Company{}
	sent := 0
	for _, a := range candidates {
		if a.RemindedAt != nil {
			continue
		}
		company, ok := companies[a.CompanyID]
		if !ok {
			if company, err = w.catalog.GetCompany(ctx, a.CompanyID); err != nil {
				w.logger.WarnContext(ctx, "reminder skipped, company lookup failed", "appointment_id", a.ID, "err", err)
				continue
			}
			companies[a.CompanyID] = company
		}
		startsAt := a.StartsAt(company.Location())
		if !startsAt.After(now) || startsAt.After(now.Add(w.lead)) {
			continue
		}
		if w.remind(ctx, a, company, now) {
			sent++
		}
	}
	return sent, nil
}

func (w *Worker) remind(ctx context.Context, a model.Appointment, company model.Company, now time.Time) bool {
	employee, err := w.catalog.GetEmployee(ctx, a.EmployeeID)
	if err != nil {
		employee = model.Employee{ID: a.EmployeeID, CompanyID: a.CompanyID}
	}
	req := notify.Request{
		ID:          uuid.NewString(),
		Kind:        notify.KindReminder,
		Appointment: a,
		Company:     company,
		Employee:    employee,
		Client:      a.Client,
		RequestedAt: now,
	}
	if err := w.dispatcher.Notify(ctx, req); err != nil {
		w.logger.WarnContext(ctx, "reminder hand-off failed", "appointment_id", a.ID, "err", err)
		return false
	}

	_, err = w.repo.Update(ctx, a.ID, func(cur *model.Appointment) error {
		if cur.Status != model.StatusConfirmed || cur.RemindedAt != nil {
			return errSkip
		}
		cur.RemindedAt = &now
		cur.UpdatedAt = now
		return nil
	})
	if err != nil && !errors.Is(err, errSkip) {
		w.logger.ErrorContext(ctx, "reminder sent but not recorded", "appointment_id", a.ID, "err", err)
		return false
	}
	w.logger.InfoContext(ctx, "reminder sent",
		"appointment_id", a.ID,
		"company_id", a.CompanyID,
		"starts_at", a.StartsAt(company.Location()).Format(time.RFC3339),
	)
	return true
}
