package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// party is the caller's relationship to an appointment.
type party uint8

const (
	partyPatient party = 1 << iota
	partyPractitioner
)

func (p party) String() string {
	switch p {
	case partyPatient:
		return "patient"
	case partyPractitioner:
		return "practitioner"
	default:
		return "unknown"
	}
}

type edge struct {
	from, to model.Status
}

// transitions lists every legal status change and who may make it.
var transitions = map[edge]party{
	{model.StatusScheduled, model.StatusInProgress}: partyPractitioner,
	{model.StatusInProgress, model.StatusCompleted}: partyPractitioner,
	{model.StatusScheduled, model.StatusCancelled}:  partyPatient | partyPractitioner,
	{model.StatusInProgress, model.StatusCancelled}: partyPractitioner,
}

// CanTransition reports whether from -> to appears in the transition table at all.
func CanTransition(from, to model.Status) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

func (s *Service) TransitionStatus(ctx context.Context, appointmentID string, to model.Status) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.TransitionStatus", trace.WithAttributes(
		attribute.String("clinic.appointment_id", appointmentID),
		attribute.String("clinic.status", string(to)),
	))
	defer span.End()

	appt, err := s.transition(ctx, strings.TrimSpace(appointmentID), to)
	if err != nil {
		recordError(span, err)
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) transition(ctx context.Context, appointmentID string, to model.Status) (model.Appointment, error) {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return model.Appointment{}, apperr.ErrUnauthenticated
	}
	if err := requireUUID("appointment_id", appointmentID); err != nil {
		return model.Appointment{}, err
	}
	if !to.Valid() {
		return model.Appointment{}, apperr.Invalid("unknown status %q", to)
	}

	var (
		updated model.Appointment
		from    model.Status
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		from = appt.Status

		allowed, ok := transitions[edge{appt.Status, to}]
		if !ok {
			return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, appt.Status, to)
		}
		who, err := partyOf(caller, appt)
		if err != nil {
			return err
		}
		if allowed&who == 0 {
			return apperr.Forbidden("the %s cannot move a session from %s to %s", who, appt.Status, to)
		}

		updated, err = tx.UpdateAppointmentStatus(ctx, appt.ID, to)
		if err != nil {
			return err
		}
		if err := enqueue(ctx, tx, statusChangedEvent(updated, from, caller)); err != nil {
			return err
		}
		if to == model.StatusCancelled {
			return s.notifyCancellation(ctx, tx, updated, who)
		}
		return nil
	})
	if err != nil {
		return model.Appointment{}, apperr.Store("transition appointment", err)
	}

	s.logger.Info("appointment status changed",
		"appointment_id", updated.ID,
		"from", from,
		"to", updated.Status,
		"by", caller.UserID,
	)
	return updated, nil
}

func partyOf(caller auth.Identity, appt model.Appointment) (party, error) {
	switch caller.Role {
	case auth.RolePatient:
		if appt.PatientID == caller.UserID {
			return partyPatient, nil
		}
	case auth.RoleDoctor:
		if appt.PractitionerID == caller.UserID {
			return partyPractitioner, nil
		}
	case auth.RoleAdmin:
		return 0, apperr.Forbidden("admins cannot change session status")
	default:
		return 0, apperr.Forbidden("unsupported role %s", caller.Role)
	}
	return 0, apperr.Forbidden("caller is not a party to this session")
}

func (s *Service) notifyCancellation(ctx context.Context, tx Tx, appt model.Appointment, by party) error {
	recipient := appt.PatientID
	if by == partyPatient {
		recipient = appt.PractitionerID
	}
	when := appt.ScheduledStart.In(s.cfg.Location).Format(humanDateTime)
	_, err := tx.InsertNotification(ctx, model.Notification{
		UserID:  recipient,
		Channel: model.ChannelInApp,
		Title:   "Session Cancelled",
		Message: fmt.Sprintf("The session scheduled for %s was cancelled by the %s.", when, by),
		SendAt:  s.now(),
	})
	return err
}
