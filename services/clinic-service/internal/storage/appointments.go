package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

const appointmentColumns = `id::text, patient_id::text, practitioner_id::text, therapy_type_id::text,
	scheduled_start, scheduled_end, status, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PractitionerID,
		&a.TherapyTypeID,
		&a.ScheduledStart,
		&a.ScheduledEnd,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func listActive(ctx context.Context, q querier, practitionerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
			AND status IN ('scheduled', 'in_progress')
			AND scheduled_start < $3
			AND scheduled_end > $2
		ORDER BY scheduled_start ASC
	`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func getAppointment(ctx context.Context, q querier, id string, forUpdate bool) (model.Appointment, error) {
	sql := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	a, err := scanAppointment(q.QueryRow(ctx, sql, id))
	return a, mapError("get appointment "+id, err)
}

// appointmentWhere renders the filter as a WHERE clause with positional arguments.
func appointmentWhere(f model.AppointmentFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != "" {
		add("patient_id = $%d", f.PatientID)
	}
	if f.PractitionerID != "" {
		add("practitioner_id = $%d", f.PractitionerID)
	}
	if !f.From.IsZero() {
		add("scheduled_start >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("scheduled_start < $%d", f.To)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) ListActiveAppointments(ctx context.Context, practitionerID string, from, to time.Time) ([]model.Appointment, error) {
	return listActive(ctx, s.pool, practitionerID, from, to)
}

func (s *Store) ListAppointments(ctx context.Context, filter model.AppointmentFilter) ([]model.Appointment, error) {
	where, args := appointmentWhere(filter)
	order := " ORDER BY scheduled_start DESC, id"
	if filter.Ascending {
		order = " ORDER BY scheduled_start ASC, id"
	}
	sql := `SELECT ` + appointmentColumns + ` FROM appointments` + where + order
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, s.pool, id, false)
}

func (s *Store) CountAppointmentsByStatus(ctx context.Context, filter model.AppointmentFilter) (map[model.Status]int, error) {
	where, args := appointmentWhere(filter)
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM appointments`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.Status]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.Status(status)] = n
	}
	return out, rows.Err()
}
