package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/agendafacil/libs/db"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

// Postgres serializes Reserve with a transaction-scoped advisory lock on the
// (company, employee, date) key; the appointments_no_overlap exclusion
// constraint rejects anything that slips past it.
type Postgres struct {
	pool *db.Pool
}

func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectAppointment = `
	SELECT id, company_id, employee_id, client_id, client_name, client_contact,
		day, start_minute, services, status, notes,
		recurrence_frequency, recurrence_end, reviewed,
		created_at, updated_at, confirmed_at, completed_at, cancelled_at,
		cancelled_by, cancel_reason, reminded_at
	FROM appointments`

func (r *Postgres) Reserve(ctx context.Context, appt model.Appointment, check CheckFunc) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reserve: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, appt.Key()); err != nil {
		return fmt.Errorf("lock %s: %w", appt.Key(), err)
	}

	live, err := r.list(ctx, tx, selectAppointment+`
		WHERE company_id = $1 AND employee_id = $2 AND day = $3 AND status <> 'cancelado'
		ORDER BY start_minute`, appt.CompanyID, appt.EmployeeID, appt.Date.Time())
	if err != nil {
		return err
	}
	if check != nil {
		if err := check(live); err != nil {
			return err
		}
	}

	services, err := encodeServices(appt.Services)
	if err != nil {
		return err
	}
	freq, recEnd := recurrenceColumns(appt.Recurrence)
	var recEndDay *time.Time
	if recEnd != nil {
		t := recEnd.Time()
		recEndDay = &t
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, company_id, employee_id, client_id, client_name, client_contact,
			 day, start_minute, end_minute, services, total_minutes, total_price, status, notes,
			 recurrence_frequency, recurrence_end, reviewed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::numeric, $13, $14, $15, $16, $17, $18, $19)
	`, appt.ID, appt.CompanyID, appt.EmployeeID, appt.Client.ID, appt.Client.Name, appt.Client.Contact,
		appt.Date.Time(), int(appt.Start), int(appt.End()), services, appt.TotalMinutes, appt.TotalPrice.String(),
		string(appt.Status), appt.Notes, freq, recEndDay, appt.Reviewed, appt.CreatedAt, appt.UpdatedAt)
	if err != nil {
		if IsExclusionViolation(err) {
			return &model.ConflictError{EmployeeID: appt.EmployeeID, Date: appt.Date, Interval: appt.Occupied()}
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reserve: %w", err)
	}
	return nil
}

func (r *Postgres) Get(ctx context.Context, id string) (model.Appointment, error) {
	return r.one(ctx, r.pool, selectAppointment+` WHERE id = $1`, id)
}

func (r *Postgres) Update(ctx context.Context, id string, fn func(*model.Appointment) error) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := r.one(ctx, tx, selectAppointment+` WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := fn(&appt); err != nil {
		return model.Appointment{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			notes = $3,
			reviewed = $4,
			updated_at = $5,
			confirmed_at = $6,
			completed_at = $7,
			cancelled_at = $8,
			cancelled_by = $9,
			cancel_reason = $10,
			reminded_at = $11
		WHERE id = $1
	`, appt.ID, string(appt.Status), appt.Notes, appt.Reviewed, appt.UpdatedAt,
		appt.ConfirmedAt, appt.CompletedAt, appt.CancelledAt, string(appt.CancelledBy), appt.CancelReason, appt.RemindedAt)
	if err != nil {
		if IsExclusionViolation(err) {
			return model.Appointment{}, &model.ConflictError{EmployeeID: appt.EmployeeID, Date: appt.Date, Interval: appt.Occupied()}
		}
		return model.Appointment{}, fmt.Errorf("update appointment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, fmt.Errorf("commit update: %w", err)
	}
	return appt, nil
}

func (r *Postgres) ListDay(ctx context.Context, companyID, employeeID string, d model.Date) ([]model.Appointment, error) {
	return r.list(ctx, r.pool, selectAppointment+`
		WHERE company_id = $1 AND employee_id = $2 AND day = $3
		ORDER BY start_minute, id`, companyID, employeeID, d.Time())
}

func (r *Postgres) ListByStatus(ctx context.Context, status model.Status, from, to model.Date) ([]model.Appointment, error) {
	return r.list(ctx, r.pool, selectAppointment+`
		WHERE status = $1 AND day BETWEEN $2 AND $3
		ORDER BY day, start_minute, id`, string(status), from.Time(), to.Time())
}

func (r *Postgres) one(ctx context.Context, q querier, sql string, id string) (model.Appointment, error) {
	appt, err := scanAppointment(q.QueryRow(ctx, sql, id))
	if IsNotFound(err) {
		return model.Appointment{}, model.NotFound("appointment", id)
	}
	return appt, err
}

func (r *Postgres) list(ctx context.Context, q querier, sql string, args ...any) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a            model.Appointment
		day          time.Time
		start        int
		services     []byte
		status, freq string
		recEnd       *time.Time
		cancelledBy  string
	)
	err := row.Scan(&a.ID, &a.CompanyID, &a.EmployeeID, &a.Client.ID, &a.Client.Name, &a.Client.Contact,
		&day, &start, &services, &status, &a.Notes,
		&freq, &recEnd, &a.Reviewed,
		&a.CreatedAt, &a.UpdatedAt, &a.ConfirmedAt, &a.CompletedAt, &a.CancelledAt,
		&cancelledBy, &a.CancelReason, &a.RemindedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = model.DateOf(day)
	a.Start = model.Clock(start)
	a.Status = model.Status(status)
	a.CancelledBy = model.Role(cancelledBy)
	if freq != "" && recEnd != nil {
		a.Recurrence = &model.Recurrence{Frequency: model.Frequency(freq), EndDate: model.DateOf(*recEnd)}
	}
	if err := decodeServices(services, &a); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

// IsExclusionViolation matches SQLSTATE 23P01, raised by appointments_no_overlap.
func IsExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
