package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/outbox"
)

type pgTx struct {
	tx pgx.Tx
}

var _ booking.Tx = (*pgTx)(nil)

func (t *pgTx) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	return getProfile(ctx, t.tx, id)
}

func (t *pgTx) GetTherapyType(ctx context.Context, id string) (model.TherapyType, error) {
	var th model.TherapyType
	err := t.tx.QueryRow(ctx, `
		SELECT id::text, name, duration_days, COALESCE(description, '')
		FROM therapy_types
		WHERE id = $1
	`, id).Scan(&th.ID, &th.Name, &th.DurationDays, &th.Description)
	return th, mapError("get therapy type "+id, err)
}

func (t *pgTx) ListActiveAppointments(ctx context.Context, practitionerID string, from, to time.Time) ([]model.Appointment, error) {
	return listActive(ctx, t.tx, practitionerID, from, to)
}

// InsertAppointment relies on appointments_no_overlap; a violation surfaces as ErrSlotUnavailable.
func (t *pgTx) InsertAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO appointments
			(patient_id, practitioner_id, therapy_type_id, scheduled_start, scheduled_end, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+appointmentColumns,
		a.PatientID, a.PractitionerID, a.TherapyTypeID, a.ScheduledStart, a.ScheduledEnd, a.Status, a.Notes)
	created, err := scanAppointment(row)
	return created, mapError("insert appointment", err)
}

func (t *pgTx) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, t.tx, id, false)
}

func (t *pgTx) GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateAppointmentStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, status)
	a, err := scanAppointment(row)
	return a, mapError("update appointment "+id, err)
}

func (t *pgTx) InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO notifications (user_id, channel, title, message, send_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, created_at
	`, n.UserID, n.Channel, n.Title, n.Message, n.SendAt).Scan(&n.ID, &n.CreatedAt)
	return n, mapError("insert notification", err)
}

func (t *pgTx) EnqueueEvent(ctx context.Context, evt outbox.Event) error {
	return mapError("enqueue "+evt.EventType, outbox.Insert(ctx, t.tx, evt))
}

// LockIdempotencyKey claims (scope, key) for this transaction and returns the appointment a
// previous committed request stored under it, or "" if none. A concurrent request with the
// same key blocks until this transaction ends; on rollback the claim disappears with it.
func (t *pgTx) LockIdempotencyKey(ctx context.Context, scope, key string) (string, error) {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO idempotency_keys (scope, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (scope, idempotency_key) DO NOTHING
	`, scope, key); err != nil {
		return "", mapError("claim idempotency key", err)
	}
	var appointmentID string
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, '')
		FROM idempotency_keys
		WHERE scope = $1 AND idempotency_key = $2
		FOR UPDATE
	`, scope, key).Scan(&appointmentID)
	return appointmentID, mapError("lock idempotency key", err)
}

func (t *pgTx) FinalizeIdempotency(ctx context.Context, scope, key, appointmentID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE idempotency_keys
		SET appointment_id = $3,
			updated_at = now()
		WHERE scope = $1 AND idempotency_key = $2
	`, scope, key, appointmentID)
	return mapError("finalize idempotency key", err)
}
