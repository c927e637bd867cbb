package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) seed(status model.Status) model.Appointment {
	return f.store.AddAppointment(model.Appointment{
		PatientID:      f.patient,
		PractitionerID: f.doctor,
		TherapyTypeID:  f.therapy,
		ScheduledStart: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
		ScheduledEnd:   time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC),
		Status:         status,
	})
}

func TestCanTransition(t *testing.T) {
	all := []model.Status{model.StatusScheduled, model.StatusInProgress, model.StatusCompleted, model.StatusCancelled}
	legal := map[[2]model.Status]bool{
		{model.StatusScheduled, model.StatusInProgress}: true,
		{model.StatusInProgress, model.StatusCompleted}: true,
		{model.StatusScheduled, model.StatusCancelled}:  true,
		{model.StatusInProgress, model.StatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]model.Status{from, to}], booking.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransitionHappyPath(t *testing.T) {
	f := newFixture(t)
	appt := f.seed(model.StatusScheduled)
	doctor := as(f.doctor, auth.RoleDoctor)

	got, err := f.svc.TransitionStatus(doctor, appt.ID, model.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)

	got, err = f.svc.TransitionStatus(doctor, appt.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	events := f.store.Events()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, outbox.TypeAppointmentStatusChanged, e.EventType)
		assert.Equal(t, appt.ID, e.AggregateID)
	}
	assert.Contains(t, string(events[1].Payload), `"from":"in_progress","to":"completed"`)
	assert.Empty(t, f.store.Notifications(), "only cancellations notify")
}

func TestTransitionFromTerminalIsRejected(t *testing.T) {
	f := newFixture(t)
	for _, from := range []model.Status{model.StatusCompleted, model.StatusCancelled} {
		appt := f.seed(from)
		for _, to := range []model.Status{model.StatusScheduled, model.StatusInProgress, model.StatusCompleted, model.StatusCancelled} {
			_, err := f.svc.TransitionStatus(as(f.doctor, auth.RoleDoctor), appt.ID, to)
			assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "%s -> %s", from, to)
		}
	}
	assert.Empty(t, f.store.Events())
}

func TestTransitionNotInTable(t *testing.T) {
	f := newFixture(t)
	appt := f.seed(model.StatusScheduled)

	_, err := f.svc.TransitionStatus(as(f.doctor, auth.RoleDoctor), appt.ID, model.StatusCompleted)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = f.svc.TransitionStatus(as(f.doctor, auth.RoleDoctor), appt.ID, model.StatusScheduled)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestTransitionPartyRules(t *testing.T) {
	f := newFixture(t)
	stranger := uuid.NewString()

	cases := []struct {
		name   string
		from   model.Status
		to     model.Status
		caller context.Context
		want   error
	}{
		{"patient cannot start", model.StatusScheduled, model.StatusInProgress, as(f.patient, auth.RolePatient), apperr.ErrForbidden},
		{"patient cannot cancel in progress", model.StatusInProgress, model.StatusCancelled, as(f.patient, auth.RolePatient), apperr.ErrForbidden},
		{"other patient", model.StatusScheduled, model.StatusCancelled, as(f.patient2, auth.RolePatient), apperr.ErrForbidden},
		{"other doctor", model.StatusScheduled, model.StatusInProgress, as(f.doctor2, auth.RoleDoctor), apperr.ErrForbidden},
		{"admin", model.StatusScheduled, model.StatusCancelled, as(f.admin, auth.RoleAdmin), apperr.ErrForbidden},
		{"unknown doctor", model.StatusScheduled, model.StatusInProgress, as(stranger, auth.RoleDoctor), apperr.ErrForbidden},
		{"patient cancels scheduled", model.StatusScheduled, model.StatusCancelled, as(f.patient, auth.RolePatient), nil},
		{"doctor cancels in progress", model.StatusInProgress, model.StatusCancelled, as(f.doctor, auth.RoleDoctor), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			appt := f.seed(tc.from)
			got, err := f.svc.TransitionStatus(tc.caller, appt.ID, tc.to)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
				stored, _ := f.store.GetAppointment(context.Background(), appt.ID)
				assert.Equal(t, tc.from, stored.Status, "status unchanged")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, got.Status)
		})
	}
}

func TestTransitionInputErrors(t *testing.T) {
	f := newFixture(t)
	appt := f.seed(model.StatusScheduled)

	_, err := f.svc.TransitionStatus(context.Background(), appt.ID, model.StatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = f.svc.TransitionStatus(as(f.doctor, auth.RoleDoctor), uuid.NewString(), model.StatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.TransitionStatus(as(f.doctor, auth.RoleDoctor), "not-a-uuid", model.StatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = f.svc.TransitionStatus(as(f.doctor, auth.RoleDoctor), appt.ID, model.Status("no_show"))
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestCancellationNotifiesCounterparty(t *testing.T) {
	f := newFixture(t)

	byPatient := f.seed(model.StatusScheduled)
	_, err := f.svc.TransitionStatus(as(f.patient, auth.RolePatient), byPatient.ID, model.StatusCancelled)
	require.NoError(t, err)

	notes := f.store.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, f.doctor, notes[0].UserID)
	assert.Equal(t, "Session Cancelled", notes[0].Title)
	assert.Contains(t, notes[0].Message, "cancelled by the patient")

	byDoctor := f.seed(model.StatusScheduled)
	_, err = f.svc.TransitionStatus(as(f.doctor, auth.RoleDoctor), byDoctor.ID, model.StatusCancelled)
	require.NoError(t, err)

	notes = f.store.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, f.patient, notes[1].UserID)
	assert.Contains(t, notes[1].Message, "cancelled by the practitioner")
}

func TestCancellationFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := as(f.patient, auth.RolePatient)

	appt, err := f.svc.Book(ctx, f.request("2026-03-03", "10:00", 60))
	require.NoError(t, err)
	_, err = f.svc.Book(as(f.patient2, auth.RolePatient), f.request("2026-03-03", "10:00", 60))
	require.ErrorIs(t, err, apperr.ErrSlotUnavailable)

	_, err = f.svc.TransitionStatus(ctx, appt.ID, model.StatusCancelled)
	require.NoError(t, err)

	again, err := f.svc.Book(as(f.patient2, auth.RolePatient), f.request("2026-03-03", "10:00", 60))
	require.NoError(t, err)
	assert.NotEqual(t, appt.ID, again.ID)
}

func TestTransitionIsAtomic(t *testing.T) {
	f := newFixture(t)
	appt := f.seed(model.StatusScheduled)
	f.store.FailOn("InsertNotification", errors.New("disk full"))

	_, err := f.svc.TransitionStatus(as(f.patient, auth.RolePatient), appt.ID, model.StatusCancelled)
	var se *apperr.StoreError
	require.ErrorAs(t, err, &se)

	stored, err := f.store.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, stored.Status)
	assert.Empty(t, f.store.Events())
}
