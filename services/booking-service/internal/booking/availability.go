package booking

import (
	"context"

	otelx "github.com/md-rashed-zaman/agendafacil/libs/otel"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
)

type Availability struct {
	CompanyID       string        `json:"company_id"`
	EmployeeID      string        `json:"employee_id"`
	Date            model.Date    `json:"date"`
	DurationMinutes int           `json:"duration_minutes"`
	Slots           []model.Clock `json:"slots"`
}

// Availability lists the start times at which a booking of the shortest active
// service (or of serviceIDs combined, when given) could be made right now.
func (c *Coordinator) Availability(ctx context.Context, companyID, employeeID string, d model.Date, serviceIDs ...string) (Availability, error) {
	ctx, span := otelx.Start(ctx, "booking.Availability",
		attribute.String("company_id", companyID),
		attribute.String("employee_id", employeeID),
		attribute.String("date", d.String()),
	)
	out, err := c.availability(ctx, companyID, employeeID, d, serviceIDs)
	otelx.End(span, err)
	return out, err
}

func (c *Coordinator) availability(ctx context.Context, companyID, employeeID string, d model.Date, serviceIDs []string) (Availability, error) {
	out := Availability{CompanyID: companyID, EmployeeID: employeeID, Date: d, Slots: []model.Clock{}}
	if d.IsZero() {
		return out, model.Invalid("date", "is required")
	}
	company, err := c.catalog.GetCompany(ctx, companyID)
	if err != nil {
		return out, err
	}
	employee, err := c.catalog.GetEmployee(ctx, employeeID)
	if err != nil {
		return out, err
	}
	if employee.CompanyID != company.ID {
		return out, model.NotFound("employee", employeeID)
	}

	minutes, err := c.queryDuration(ctx, company, serviceIDs)
	if err != nil || minutes == 0 {
		return out, err
	}
	out.DurationMinutes = minutes

	now := c.now()
	var fits []model.Clock
	for _, t := range availability.GenerateSlots(company, employee, d, c.granularity) {
		if notPast(company, d, t, now) != nil {
			continue
		}
		if availability.CheckFit(company, employee, d, t, minutes) != nil {
			continue
		}
		fits = append(fits, t)
	}
	if len(fits) == 0 {
		return out, nil
	}
	free, err := c.checker.Available(ctx, company.ID, employee.ID, d, fits, minutes)
	if err != nil {
		return out, err
	}
	out.Slots = free
	return out, nil
}

func (c *Coordinator) queryDuration(ctx context.Context, company model.Company, serviceIDs []string) (int, error) {
	if len(serviceIDs) > 0 {
		services, err := c.servicesOf(ctx, company, serviceIDs)
		if err != nil {
			return 0, err
		}
		total := 0
		for _, s := range services {
			total += s.DurationMinutes
		}
		return total, nil
	}
	all, err := c.catalog.ListServices(ctx, company.ID)
	if err != nil {
		return 0, err
	}
	return catalog.ShortestActive(all), nil
}

// Agenda returns an employee's appointments for one day, cancelled ones included.
func (c *Coordinator) Agenda(ctx context.Context, companyID, employeeID string, d model.Date) ([]model.Appointment, error) {
	if _, err := c.catalog.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	return c.repo.ListDay(ctx, companyID, employeeID, d)
}

func (c *Coordinator) Get(ctx context.Context, id string) (model.Appointment, error) {
	return c.repo.Get(ctx, id)
}
