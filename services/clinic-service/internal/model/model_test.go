package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" In_Progress ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, st)

	_, err = ParseStatus("booked")
	assert.Error(t, err)
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, StatusScheduled.Active())
	assert.True(t, StatusInProgress.Active())
	assert.False(t, StatusCompleted.Active())
	assert.False(t, StatusCancelled.Active())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusScheduled.Terminal())
}

func TestAppointmentOverlapsHalfOpen(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	a := Appointment{ScheduledStart: day.Add(9 * time.Hour), ScheduledEnd: day.Add(10 * time.Hour)}

	assert.True(t, a.Overlaps(day.Add(9*time.Hour+30*time.Minute), day.Add(10*time.Hour+30*time.Minute)))
	assert.True(t, a.Overlaps(day.Add(8*time.Hour), day.Add(11*time.Hour)))
	assert.False(t, a.Overlaps(day.Add(10*time.Hour), day.Add(11*time.Hour)), "touching end is free")
	assert.False(t, a.Overlaps(day.Add(8*time.Hour), day.Add(9*time.Hour)), "touching start is free")
}

func TestAppointmentFilterMatches(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := Appointment{PatientID: "p", PractitionerID: "d", ScheduledStart: start, Status: StatusCompleted}

	assert.True(t, AppointmentFilter{}.Matches(a))
	assert.True(t, AppointmentFilter{PatientID: "p", Statuses: []Status{StatusCompleted}}.Matches(a))
	assert.False(t, AppointmentFilter{PractitionerID: "x"}.Matches(a))
	assert.False(t, AppointmentFilter{Statuses: ActiveStatuses}.Matches(a))
	assert.False(t, AppointmentFilter{From: start.Add(time.Minute)}.Matches(a))
	assert.False(t, AppointmentFilter{To: start}.Matches(a))
}
