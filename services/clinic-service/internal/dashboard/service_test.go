package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

func as(id string, role auth.Role) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: id, Role: role})
}

func add(store *memstore.Store, patient, doctor string, start time.Time, status model.Status) model.Appointment {
	return store.AddAppointment(model.Appointment{
		PatientID:      patient,
		PractitionerID: doctor,
		ScheduledStart: start,
		ScheduledEnd:   start.Add(time.Hour),
		Status:         status,
	})
}

func newService(store *memstore.Store) *Service {
	svc := NewService(store, time.UTC)
	svc.now = func() time.Time { return today }
	return svc
}

func TestAdminDashboard(t *testing.T) {
	store := memstore.New()
	admin, doctor, p1, p2 := uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString()
	store.AddProfile(model.Profile{ID: admin, Role: auth.RoleAdmin, FullName: "A"})
	store.AddProfile(model.Profile{ID: doctor, Role: auth.RoleDoctor, FullName: "D"})
	store.AddProfile(model.Profile{ID: p1, Role: auth.RolePatient, FullName: "P1"})
	store.AddProfile(model.Profile{ID: p2, Role: auth.RolePatient, FullName: "P2"})
	store.AddCenter(model.Center{ID: uuid.NewString(), Name: "Main"})

	done1 := add(store, p1, doctor, today.Add(-48*time.Hour), model.StatusCompleted)
	done2 := add(store, p2, doctor, today.Add(-24*time.Hour), model.StatusCompleted)
	add(store, p1, doctor, today.Add(24*time.Hour), model.StatusScheduled)
	store.AddFeedback(model.Feedback{AppointmentID: done1.ID, PatientID: p1, Rating: 5})
	store.AddFeedback(model.Feedback{AppointmentID: done2.ID, PatientID: p2, Rating: 4})

	view, err := newService(store).Get(as(admin, auth.RoleAdmin))
	require.NoError(t, err)
	require.NotNil(t, view.Admin)
	assert.Nil(t, view.Doctor)
	assert.Nil(t, view.Patient)

	assert.Equal(t, map[string]int{"admin": 1, "doctor": 1, "patient": 2}, view.Admin.Users)
	assert.Equal(t, 1, view.Admin.Centers)
	assert.Equal(t, 3, view.Admin.Appointments)
	assert.Equal(t, 2, view.Admin.Completed)
	assert.Equal(t, 67, view.Admin.CompletionRate)
	assert.Equal(t, 4.5, view.Admin.AverageRating)
	assert.Equal(t, 2, view.Admin.RatedSessions)
}

func TestAdminDashboardEmpty(t *testing.T) {
	view, err := newService(memstore.New()).Get(as(uuid.NewString(), auth.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, 0, view.Admin.CompletionRate)
	assert.Equal(t, 0.0, view.Admin.AverageRating)
}

func TestDoctorDashboard(t *testing.T) {
	store := memstore.New()
	doctor, other, p1, p2 := uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	add(store, p1, doctor, day.Add(9*time.Hour), model.StatusCompleted)
	add(store, p2, doctor, day.Add(11*time.Hour), model.StatusInProgress)
	add(store, p1, doctor, day.Add(15*time.Hour), model.StatusScheduled)
	add(store, p1, other, day.Add(10*time.Hour), model.StatusScheduled)
	add(store, p2, doctor, day.AddDate(0, 0, 2).Add(9*time.Hour), model.StatusScheduled)
	add(store, p2, doctor, day.AddDate(0, 0, 3).Add(9*time.Hour), model.StatusCancelled)
	add(store, p2, doctor, day.AddDate(0, 0, 9).Add(9*time.Hour), model.StatusScheduled)

	view, err := newService(store).Get(as(doctor, auth.RoleDoctor))
	require.NoError(t, err)
	v := view.Doctor
	require.NotNil(t, v)

	require.Len(t, v.Today, 3)
	assert.True(t, v.Today[0].ScheduledStart.Before(v.Today[1].ScheduledStart), "ascending")
	assert.Equal(t, 1, v.TodayCompleted)
	assert.Equal(t, 1, v.TodayActive)
	assert.Equal(t, 2, v.TodayPatients)
	require.Len(t, v.Upcoming, 1)
	assert.Equal(t, 4, v.Upcoming[0].ScheduledStart.Day())
}

func TestPatientDashboard(t *testing.T) {
	store := memstore.New()
	patient, doctor := uuid.NewString(), uuid.NewString()
	for i := 0; i < 25; i++ {
		add(store, patient, doctor, today.AddDate(0, 0, -i), model.StatusCompleted)
	}
	store.AddNotification(model.Notification{UserID: patient, Title: "hi"})
	store.AddNotification(model.Notification{UserID: patient, Title: "read", IsRead: true})

	view, err := newService(store).Get(as(patient, auth.RolePatient))
	require.NoError(t, err)
	require.NotNil(t, view.Patient)
	assert.Len(t, view.Patient.Appointments, 20)
	assert.Equal(t, 1, view.Patient.UnreadNotifications)
	assert.Equal(t, auth.RolePatient, view.Role)
}

func TestDashboardRequiresIdentity(t *testing.T) {
	_, err := newService(memstore.New()).Get(context.Background())
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, 0, completionRate(0, 0))
	assert.Equal(t, 33, completionRate(1, 3))
	assert.Equal(t, 100, completionRate(4, 4))
}
