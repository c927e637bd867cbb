package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/outbox"
)

// Store is the record store the resolver runs against.
//
// InPractitionerTx runs fn in a transaction that is serialized with every other
// InPractitionerTx for the same practitioner; it commits only if fn returns nil.
// Lookups return apperr.ErrNotFound for missing rows, and an insert that would overlap
// an active appointment returns apperr.ErrSlotUnavailable.
type Store interface {
	InPractitionerTx(ctx context.Context, practitionerID string, fn func(Tx) error) error
	InTx(ctx context.Context, fn func(Tx) error) error
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	ListActiveAppointments(ctx context.Context, practitionerID string, from, to time.Time) ([]model.Appointment, error)
	ListAppointments(ctx context.Context, filter model.AppointmentFilter) ([]model.Appointment, error)
}

type Tx interface {
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	GetTherapyType(ctx context.Context, id string) (model.TherapyType, error)
	// ListActiveAppointments returns scheduled and in-progress appointments intersecting [from, to).
	ListActiveAppointments(ctx context.Context, practitionerID string, from, to time.Time) ([]model.Appointment, error)
	InsertAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	// GetAppointmentForUpdate locks the row until the transaction ends.
	GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)
	InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	EnqueueEvent(ctx context.Context, evt outbox.Event) error
	// LockIdempotencyKey claims (scope, key) for this transaction and returns the
	// appointment a previous committed request stored under it, or "".
	LockIdempotencyKey(ctx context.Context, scope, key string) (string, error)
	FinalizeIdempotency(ctx context.Context, scope, key, appointmentID string) error
}
