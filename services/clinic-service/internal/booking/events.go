package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/outbox"
)

type bookedPayload struct {
	AppointmentID  string `json:"appointment_id"`
	PatientID      string `json:"patient_id"`
	PractitionerID string `json:"practitioner_id"`
	TherapyTypeID  string `json:"therapy_type_id"`
	ScheduledStart string `json:"scheduled_start"`
	ScheduledEnd   string `json:"scheduled_end"`
	Status         string `json:"status"`
}

type statusChangedPayload struct {
	AppointmentID  string `json:"appointment_id"`
	PatientID      string `json:"patient_id"`
	PractitionerID string `json:"practitioner_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	ChangedBy      string `json:"changed_by"`
	ChangedByRole  string `json:"changed_by_role"`
	ChangedAt      string `json:"changed_at"`
}

type pendingEvent struct {
	aggregateID string
	eventType   string
	payload     any
}

func bookedEvent(a model.Appointment) pendingEvent {
	return pendingEvent{
		aggregateID: a.ID,
		eventType:   outbox.TypeAppointmentBooked,
		payload: bookedPayload{
			AppointmentID:  a.ID,
			PatientID:      a.PatientID,
			PractitionerID: a.PractitionerID,
			TherapyTypeID:  a.TherapyTypeID,
			ScheduledStart: a.ScheduledStart.UTC().Format(time.RFC3339),
			ScheduledEnd:   a.ScheduledEnd.UTC().Format(time.RFC3339),
			Status:         string(a.Status),
		},
	}
}

func statusChangedEvent(a model.Appointment, from model.Status, by auth.Identity) pendingEvent {
	return pendingEvent{
		aggregateID: a.ID,
		eventType:   outbox.TypeAppointmentStatusChanged,
		payload: statusChangedPayload{
			AppointmentID:  a.ID,
			PatientID:      a.PatientID,
			PractitionerID: a.PractitionerID,
			From:           string(from),
			To:             string(a.Status),
			ChangedBy:      by.UserID,
			ChangedByRole:  by.Role.String(),
			ChangedAt:      a.UpdatedAt.UTC().Format(time.RFC3339),
		},
	}
}

func enqueue(ctx context.Context, tx Tx, e pendingEvent) error {
	evt, err := outbox.NewEvent("appointment", e.aggregateID, e.eventType, e.payload)
	if err != nil {
		return err
	}
	return tx.EnqueueEvent(ctx, evt)
}
