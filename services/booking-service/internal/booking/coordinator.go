// Package booking turns booking requests into stored appointments and answers
// availability queries for the booking UI.
package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/agendafacil/libs/otel"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/recurrence"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

type Request struct {
	CompanyID  string            `json:"company_id"`
	EmployeeID string            `json:"employee_id"`
	Date       model.Date        `json:"date"`
	Start      model.Clock       `json:"start_time"`
	ServiceIDs []string          `json:"service_ids"`
	Client     model.Client      `json:"client"`
	Notes      string            `json:"notes,omitempty"`
	Recurrence *model.Recurrence `json:"recurrence,omitempty"`
}

// Result is the outcome of one occurrence of a (possibly recurring) request.
type Result struct {
	Date        model.Date
	Appointment *model.Appointment
	Err         error
}

type Options struct {
	Granularity    int
	MaxOccurrences int
	Now            func() time.Time
	NewID          func() string
}

type Coordinator struct {
	catalog    catalog.Reader
	repo       storage.Repository
	checker    *conflict.Checker
	dispatcher notify.Dispatcher
	logger     *slog.Logger

	granularity    int
	maxOccurrences int
	now            func() time.Time
	newID          func() string
}

func NewCoordinator(cat catalog.Reader, repo storage.Repository, dispatcher notify.Dispatcher, logger *slog.Logger, opts Options) *Coordinator {
	c := &Coordinator{
		catalog:        cat,
		repo:           repo,
		checker:        conflict.NewChecker(repo),
		dispatcher:     dispatcher,
		logger:         logger,
		granularity:    opts.Granularity,
		maxOccurrences: opts.MaxOccurrences,
		now:            opts.Now,
		newID:          opts.NewID,
	}
	if c.granularity <= 0 {
		c.granularity = availability.DefaultGranularity
	}
	if c.maxOccurrences <= 0 {
		c.maxOccurrences = recurrence.DefaultMaxOccurrences
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = func() string { return uuid.NewString() }
	}
	return c
}

// Book creates a single appointment. A recurrence descriptor on req is
// recorded on the appointment but not expanded; use BookSeries for that.
func (c *Coordinator) Book(ctx context.Context, req Request) (model.Appointment, error) {
	ctx, span := otelx.Start(ctx, "booking.Book",
		attribute.String("company_id", req.CompanyID),
		attribute.String("employee_id", req.EmployeeID),
		attribute.String("date", req.Date.String()),
	)
	appt, err := c.book(ctx, req)
	otelx.End(span, err)
	return appt, err
}

// BookSeries expands req's recurrence (or treats it as a single occurrence)
// and books every date independently. The returned error is only set when the
// request itself is unusable; per-occurrence failures live in the results.
func (c *Coordinator) BookSeries(ctx context.Context, req Request) ([]Result, error) {
	if req.Recurrence == nil {
		appt, err := c.Book(ctx, req)
		if err != nil {
			return []Result{{Date: req.Date, Err: err}}, nil
		}
		return []Result{{Date: req.Date, Appointment: &appt}}, nil
	}

	dates, err := recurrence.Expand(req.Date, *req.Recurrence, c.maxOccurrences)
	if err != nil {
		return nil, model.Invalid("recurrence", "%v", err)
	}
	ctx, span := otelx.Start(ctx, "booking.BookSeries",
		attribute.String("company_id", req.CompanyID),
		attribute.String("frequency", string(req.Recurrence.Frequency)),
		attribute.Int("occurrences", len(dates)),
	)
	defer span.End()

	results := make([]Result, 0, len(dates))
	for _, d := range dates {
		occ := req
		occ.Date = d
		appt, err := c.Book(ctx, occ)
		if err != nil {
			c.logger.InfoContext(ctx, "occurrence not booked",
				"company_id", req.CompanyID,
				"employee_id", req.EmployeeID,
				"date", d.String(),
				"err", err,
			)
			results = append(results, Result{Date: d, Err: err})
			continue
		}
		results = append(results, Result{Date: d, Appointment: &appt})
	}
	return results, nil
}

func (c *Coordinator) book(ctx context.Context, req Request) (model.Appointment, error) {
	company, err := c.catalog.GetCompany(ctx, req.CompanyID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := checkRequest(req); err != nil {
		return model.Appointment{}, err
	}
	now := c.now()
	if err := notPast(company, req.Date, req.Start, now); err != nil {
		return model.Appointment{}, err
	}
	employee, err := c.employeeOf(ctx, company, req.EmployeeID)
	if err != nil {
		return model.Appointment{}, err
	}
	services, err := c.servicesOf(ctx, company, req.ServiceIDs)
	if err != nil {
		return model.Appointment{}, err
	}

	appt := model.Appointment{
		ID:         c.newID(),
		CompanyID:  company.ID,
		EmployeeID: employee.ID,
		Client:     req.Client,
		Date:       req.Date,
		Start:      req.Start,
		Notes:      strings.TrimSpace(req.Notes),
		Status:     model.StatusPending,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
	if req.Recurrence != nil {
		r := *req.Recurrence
		appt.Recurrence = &r
	}
	lines := make([]model.ServiceLine, 0, len(services))
	for _, s := range services {
		lines = append(lines, model.Snapshot(s))
	}
	appt.SetServices(lines)

	if err := availability.CheckFit(company, employee, req.Date, req.Start, appt.TotalMinutes); err != nil {
		return model.Appointment{}, err
	}
	if err := c.repo.Reserve(ctx, appt, conflict.Guard(appt)); err != nil {
		return model.Appointment{}, err
	}

	c.logger.InfoContext(ctx, "appointment booked",
		"appointment_id", appt.ID,
		"company_id", appt.CompanyID,
		"employee_id", appt.EmployeeID,
		"date", appt.Date.String(),
		"start_time", appt.Start.String(),
		"total_duration_minutes", appt.TotalMinutes,
	)
	notify.Send(ctx, c.dispatcher, c.logger, notify.Request{
		ID:          c.newID(),
		Kind:        notify.KindNew,
		Appointment: appt,
		Company:     company,
		Employee:    employee,
		Client:      appt.Client,
		RequestedAt: now.UTC(),
	})
	return appt, nil
}

func checkRequest(req Request) error {
	if strings.TrimSpace(req.EmployeeID) == "" {
		return model.Invalid("employee_id", "is required")
	}
	if req.Date.IsZero() {
		return model.Invalid("date", "is required")
	}
	if len(req.ServiceIDs) == 0 {
		return model.Invalid("service_ids", "at least one service is required")
	}
	if strings.TrimSpace(req.Client.Name) == "" {
		return model.Invalid("client.name", "is required")
	}
	if req.Recurrence != nil && req.Recurrence.EndDate.Before(req.Date) {
		return model.Invalid("recurrence.end_date", "must not be before %s", req.Date)
	}
	return nil
}

// notPast rejects days before today and, for today, start times already gone,
// both judged on the company's wall clock.
func notPast(company model.Company, d model.Date, start model.Clock, now time.Time) error {
	local := now.In(company.Location())
	today := model.DateOf(local)
	if d.Before(today) {
		return model.Invalid("date", "%s is in the past", d)
	}
	if d.Equal(today) && start < model.NewClock(local.Hour(), local.Minute()) {
		return model.Invalid("start_time", "%s has already passed today", start)
	}
	return nil
}

func (c *Coordinator) employeeOf(ctx context.Context, company model.Company, id string) (model.Employee, error) {
	e, err := c.catalog.GetEmployee(ctx, id)
	if err != nil {
		return model.Employee{}, err
	}
	if e.CompanyID != company.ID {
		return model.Employee{}, model.Invalid("employee_id", "employee %s does not belong to company %s", id, company.ID)
	}
	if !e.Active() {
		return model.Employee{}, model.Invalid("employee_id", "employee %s is not active (%s)", id, e.Status)
	}
	return e, nil
}

func (c *Coordinator) servicesOf(ctx context.Context, company model.Company, ids []string) ([]model.Service, error) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, model.Invalid("service_ids", "service %s listed twice", id)
		}
		seen[id] = true
	}
	services, err := c.catalog.GetServices(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range services {
		if s.CompanyID != company.ID {
			return nil, model.Invalid("service_ids", "service %s does not belong to company %s", s.ID, company.ID)
		}
		if !s.Active {
			return nil, model.Invalid("service_ids", "service %s is not active", s.ID)
		}
	}
	return services, nil
}
