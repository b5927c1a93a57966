package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/agendafacil/libs/lock"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
	_ "modernc.org/sqlite"
)

// SQLite is the single-node store. One connection plus a keyed lock makes
// Reserve's read-check-insert atomic.
type SQLite struct {
	db   *sql.DB
	keys *lock.Keyed
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA journal_mode = WAL`,
	} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	s := &SQLite{db: conn, keys: lock.NewKeyed()}
	if err := s.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) migrate(ctx context.Context) error {
	migrations, err := SQLiteMigrations()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.Version).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.Version, m.Name, formatTime(time.Now().UTC()))
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const sqliteSelect = `
	SELECT id, company_id, employee_id, client_id, client_name, client_contact,
		day, start_minute, services, status, notes,
		recurrence_frequency, recurrence_end, reviewed,
		created_at, updated_at, confirmed_at, completed_at, cancelled_at,
		cancelled_by, cancel_reason, reminded_at
	FROM appointments`

func (s *SQLite) Reserve(ctx context.Context, appt model.Appointment, check CheckFunc) error {
	unlock := s.keys.Lock(appt.Key())
	defer unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		live, err := sqliteList(ctx, tx, sqliteSelect+`
			WHERE company_id = ? AND employee_id = ? AND day = ? AND status <> 'cancelado'
			ORDER BY start_minute`, appt.CompanyID, appt.EmployeeID, appt.Date.String())
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
		_, err = tx.ExecContext(ctx, `
			INSERT INTO appointments
				(id, company_id, employee_id, client_id, client_name, client_contact,
				 day, start_minute, end_minute, services, total_minutes, total_price, status, notes,
				 recurrence_frequency, recurrence_end, reviewed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, appt.ID, appt.CompanyID, appt.EmployeeID, appt.Client.ID, appt.Client.Name, appt.Client.Contact,
			appt.Date.String(), int(appt.Start), int(appt.End()), string(services), appt.TotalMinutes, appt.TotalPrice.String(),
			string(appt.Status), appt.Notes, freq, dateColumn(recEnd), boolColumn(appt.Reviewed),
			formatTime(appt.CreatedAt), formatTime(appt.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		return nil
	})
}

func (s *SQLite) Get(ctx context.Context, id string) (model.Appointment, error) {
	return sqliteOne(ctx, s.db, id)
}

func (s *SQLite) Update(ctx context.Context, id string, fn func(*model.Appointment) error) (model.Appointment, error) {
	current, err := sqliteOne(ctx, s.db, id)
	if err != nil {
		return model.Appointment{}, err
	}
	unlock := s.keys.Lock(current.Key())
	defer unlock()

	var out model.Appointment
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		appt, err := sqliteOne(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&appt); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = ?, notes = ?, reviewed = ?, updated_at = ?,
				confirmed_at = ?, completed_at = ?, cancelled_at = ?,
				cancelled_by = ?, cancel_reason = ?, reminded_at = ?
			WHERE id = ?
		`, string(appt.Status), appt.Notes, boolColumn(appt.Reviewed), formatTime(appt.UpdatedAt),
			formatTimePtr(appt.ConfirmedAt), formatTimePtr(appt.CompletedAt), formatTimePtr(appt.CancelledAt),
			string(appt.CancelledBy), appt.CancelReason, formatTimePtr(appt.RemindedAt), appt.ID)
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		out = appt
		return nil
	})
	return out, err
}

func (s *SQLite) ListDay(ctx context.Context, companyID, employeeID string, d model.Date) ([]model.Appointment, error) {
	return sqliteList(ctx, s.db, sqliteSelect+`
		WHERE company_id = ? AND employee_id = ? AND day = ?
		ORDER BY start_minute, id`, companyID, employeeID, d.String())
}

func (s *SQLite) ListByStatus(ctx context.Context, status model.Status, from, to model.Date) ([]model.Appointment, error) {
	return sqliteList(ctx, s.db, sqliteSelect+`
		WHERE status = ? AND day BETWEEN ? AND ?
		ORDER BY day, start_minute, id`, string(status), from.String(), to.String())
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func sqliteOne(ctx context.Context, q sqlQuerier, id string) (model.Appointment, error) {
	a, err := scanSQLite(q.QueryRowContext(ctx, sqliteSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Appointment{}, model.NotFound("appointment", id)
	}
	return a, err
}

func sqliteList(ctx context.Context, q sqlQuerier, query string, args ...any) ([]model.Appointment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanSQLite(row sqlScanner) (model.Appointment, error) {
	var (
		a                                      model.Appointment
		day, services, status, freq, recEnd    string
		created, updated, confirmed, completed string
		cancelled, cancelledBy, reminded       string
		start, reviewed                        int
	)
	err := row.Scan(&a.ID, &a.CompanyID, &a.EmployeeID, &a.Client.ID, &a.Client.Name, &a.Client.Contact,
		&day, &start, &services, &status, &a.Notes,
		&freq, &recEnd, &reviewed,
		&created, &updated, &confirmed, &completed, &cancelled,
		&cancelledBy, &a.CancelReason, &reminded)
	if err != nil {
		return model.Appointment{}, err
	}
	if a.Date, err = model.ParseDate(day); err != nil {
		return model.Appointment{}, err
	}
	a.Start = model.Clock(start)
	a.Status = model.Status(status)
	a.Reviewed = reviewed != 0
	a.CancelledBy = model.Role(cancelledBy)
	if freq != "" && recEnd != "" {
		end, err := model.ParseDate(recEnd)
		if err != nil {
			return model.Appointment{}, err
		}
		a.Recurrence = &model.Recurrence{Frequency: model.Frequency(freq), EndDate: end}
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return model.Appointment{}, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Appointment{}, err
	}
	for _, f := range []struct {
		raw string
		dst **time.Time
	}{{confirmed, &a.ConfirmedAt}, {completed, &a.CompletedAt}, {cancelled, &a.CancelledAt}, {reminded, &a.RemindedAt}} {
		if f.raw == "" {
			continue
		}
		t, err := parseTime(f.raw)
		if err != nil {
			return model.Appointment{}, err
		}
		*f.dst = &t
	}
	if err := decodeServices([]byte(services), &a); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func dateColumn(d *model.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func boolColumn(b bool) int {
	if b {
		return 1
	}
	return 0
}
