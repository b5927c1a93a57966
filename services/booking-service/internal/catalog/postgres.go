package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/agendafacil/libs/db"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

// Postgres reads the catalog tables maintained by company management.
type Postgres struct {
	pool *db.Pool
}

func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (r *Postgres) GetCompany(ctx context.Context, id string) (model.Company, error) {
	var (
		c             model.Company
		opens, closes int
		days          []int32
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, opens_minute, closes_minute, working_days, timezone
		FROM companies
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &opens, &closes, &days, &c.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Company{}, model.NotFound("company", id)
	}
	if err != nil {
		return model.Company{}, fmt.Errorf("get company: %w", err)
	}
	c.Opens, c.Closes = model.Clock(opens), model.Clock(closes)
	c.WorkingDays = weekdays(days)
	return c, nil
}

func (r *Postgres) GetEmployee(ctx context.Context, id string) (model.Employee, error) {
	var (
		e          model.Employee
		start, end *int32
		daysOff    []int32
		status     string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, company_id, name, email, phone, start_minute, end_minute, days_off, status
		FROM employees
		WHERE id = $1
	`, id).Scan(&e.ID, &e.CompanyID, &e.Name, &e.Email, &e.Phone, &start, &end, &daysOff, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Employee{}, model.NotFound("employee", id)
	}
	if err != nil {
		return model.Employee{}, fmt.Errorf("get employee: %w", err)
	}
	if start != nil && end != nil {
		e.Hours = &model.Interval{Start: model.Clock(*start), End: model.Clock(*end)}
	}
	e.DaysOff = weekdays(daysOff)
	if e.Status, err = model.ParseEmployeeStatus(status); err != nil {
		return model.Employee{}, fmt.Errorf("employee %s: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT start_minute, end_minute, weekdays
		FROM employee_breaks
		WHERE employee_id = $1
		ORDER BY start_minute
	`, id)
	if err != nil {
		return model.Employee{}, fmt.Errorf("list breaks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			bs, be int
			days   []int32
		)
		if err := rows.Scan(&bs, &be, &days); err != nil {
			return model.Employee{}, err
		}
		e.Breaks = append(e.Breaks, model.Break{Start: model.Clock(bs), End: model.Clock(be), Weekdays: weekdays(days)})
	}
	if err := rows.Err(); err != nil {
		return model.Employee{}, err
	}
	return e, nil
}

func (r *Postgres) GetServices(ctx context.Context, ids []string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, serviceColumns+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get services: %w", err)
	}
	found, err := scanServices(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Service, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}
	out := make([]model.Service, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, model.NotFound("service", id)
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Postgres) ListServices(ctx context.Context, companyID string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, serviceColumns+` WHERE company_id = $1 ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return scanServices(rows)
}

const serviceColumns = `SELECT id, company_id, name, duration_minutes, price::text, active FROM services`

func scanServices(rows pgx.Rows) ([]model.Service, error) {
	defer rows.Close()
	var out []model.Service
	for rows.Next() {
		var (
			s     model.Service
			price string
		)
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.Name, &s.DurationMinutes, &price, &s.Active); err != nil {
			return nil, err
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("service %s price %q: %w", s.ID, price, err)
		}
		s.Price = p
		out = append(out, s)
	}
	return out, rows.Err()
}

func weekdays(raw []int32) []time.Weekday {
	out := make([]time.Weekday, 0, len(raw))
	for _, d := range raw {
		out = append(out, time.Weekday(d))
	}
	return out
}
