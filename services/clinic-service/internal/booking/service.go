package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	dateLayout    = "2006-01-02"
	maxNotesLen   = 2000
	defaultLimit  = 50
	maxListLimit  = 200
	humanDateTime = "Monday, January 2, 2006 at 3:04 PM"
)

type Service struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, cfg Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Service{
		store:  store,
		cfg:    cfg,
		logger: logger,
		tracer: otelx.Tracer("clinic-service/booking"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Location() *time.Location { return s.cfg.Location }

type SlotQuery struct {
	PractitionerID  string
	Date            string
	DurationMinutes int
}

// AvailableSlots lists the practitioner's free template slots on a clinic-local date,
// hiding slots that have already started.
func (s *Service) AvailableSlots(ctx context.Context, q SlotQuery) ([]availability.Slot, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, apperr.ErrUnauthenticated
	}
	if err := requireUUID("practitioner_id", q.PractitionerID); err != nil {
		return nil, err
	}
	day, duration, err := s.parseDayAndDuration(q.Date, q.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if err := s.checkHorizon(day); err != nil {
		return nil, err
	}
	if _, err := lookupProfile(ctx, s.store, q.PractitionerID, auth.RoleDoctor, "practitioner"); err != nil {
		return nil, apperr.Store("get practitioner", err)
	}

	from, to := searchWindow(day, duration)
	existing, err := s.store.ListActiveAppointments(ctx, q.PractitionerID, from, to)
	if err != nil {
		return nil, apperr.Store("list active appointments", err)
	}
	slots := availability.ComputeAvailableSlots(q.PractitionerID, day, s.cfg.Template, duration, existing)
	return availability.Upcoming(slots, s.now()), nil
}

type BookingRequest struct {
	// PatientID is required when an admin books on a patient's behalf; patients may omit it.
	PatientID       string
	PractitionerID  string
	TherapyTypeID   string
	Date            string
	StartTime       string
	DurationMinutes int
	Notes           string
	IdempotencyKey  string
}

func (s *Service) Book(ctx context.Context, req BookingRequest) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("clinic.practitioner_id", req.PractitionerID),
		attribute.String("clinic.date", req.Date),
		attribute.String("clinic.start_time", req.StartTime),
	))
	defer span.End()

	appt, err := s.book(ctx, req)
	if err != nil {
		recordError(span, err)
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.String("clinic.appointment_id", appt.ID))
	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookingRequest) (model.Appointment, error) {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return model.Appointment{}, apperr.ErrUnauthenticated
	}
	patientID, err := resolvePatient(caller, strings.TrimSpace(req.PatientID))
	if err != nil {
		return model.Appointment{}, err
	}

	practitionerID := strings.TrimSpace(req.PractitionerID)
	therapyTypeID := strings.TrimSpace(req.TherapyTypeID)
	if err := requireUUID("practitioner_id", practitionerID); err != nil {
		return model.Appointment{}, err
	}
	if err := requireUUID("therapy_type_id", therapyTypeID); err != nil {
		return model.Appointment{}, err
	}
	if err := requireUUID("patient_id", patientID); err != nil {
		return model.Appointment{}, err
	}
	day, duration, err := s.parseDayAndDuration(req.Date, req.DurationMinutes)
	if err != nil {
		return model.Appointment{}, err
	}
	startTime, err := availability.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return model.Appointment{}, apperr.Invalid("start_time: %v", err)
	}
	notes := strings.TrimSpace(req.Notes)
	if len(notes) > maxNotesLen {
		return model.Appointment{}, apperr.Invalid("notes exceed %d characters", maxNotesLen)
	}
	now := s.now()
	if err := s.checkHorizon(day); err != nil {
		return model.Appointment{}, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	var booked model.Appointment
	err = s.store.InPractitionerTx(ctx, practitionerID, func(tx Tx) error {
		if key != "" {
			prior, err := tx.LockIdempotencyKey(ctx, caller.UserID, key)
			if err != nil {
				return err
			}
			if prior != "" {
				booked, err = tx.GetAppointment(ctx, prior)
				return err
			}
		}

		practitioner, err := lookupProfile(ctx, tx, practitionerID, auth.RoleDoctor, "practitioner")
		if err != nil {
			return err
		}
		patient, err := lookupProfile(ctx, tx, patientID, auth.RolePatient, "patient")
		if err != nil {
			return err
		}
		therapy, err := tx.GetTherapyType(ctx, therapyTypeID)
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Invalid("unknown therapy type %s", therapyTypeID)
		}
		if err != nil {
			return err
		}

		start := startTime.On(day)
		if !s.cfg.Template.Contains(startTime) {
			return fmt.Errorf("%w: %s is not a bookable start time", apperr.ErrSlotUnavailable, startTime)
		}
		if start.Before(now) {
			return fmt.Errorf("%w: %s %s has already passed", apperr.ErrSlotUnavailable, req.Date, startTime)
		}

		from, to := searchWindow(day, duration)
		existing, err := tx.ListActiveAppointments(ctx, practitionerID, from, to)
		if err != nil {
			return err
		}
		slots := availability.ComputeAvailableSlots(practitionerID, day, s.cfg.Template, duration, existing)
		slot, ok := availability.Find(slots, startTime)
		if !ok {
			return fmt.Errorf("%w: %s %s is already taken", apperr.ErrSlotUnavailable, req.Date, startTime)
		}

		booked, err = tx.InsertAppointment(ctx, model.Appointment{
			PatientID:      patientID,
			PractitionerID: practitionerID,
			TherapyTypeID:  therapyTypeID,
			ScheduledStart: slot.Start,
			ScheduledEnd:   slot.End,
			Status:         model.StatusScheduled,
			Notes:          notes,
		})
		if err != nil {
			return err
		}

		when := slot.Start.In(s.cfg.Location).Format(humanDateTime)
		for _, n := range []model.Notification{
			{
				UserID:  patientID,
				Title:   "Session Booked Successfully",
				Message: fmt.Sprintf("Your %s session with %s is confirmed for %s.", therapy.Name, practitioner.FullName, when),
			},
			{
				UserID:  practitionerID,
				Title:   "New Session Assigned",
				Message: fmt.Sprintf("%s booked a %s session with you for %s.", patient.FullName, therapy.Name, when),
			},
		} {
			n.Channel = model.ChannelInApp
			n.SendAt = now
			if _, err := tx.InsertNotification(ctx, n); err != nil {
				return err
			}
		}

		if err := enqueue(ctx, tx, bookedEvent(booked)); err != nil {
			return err
		}
		if key != "" {
			return tx.FinalizeIdempotency(ctx, caller.UserID, key, booked.ID)
		}
		return nil
	})
	if err != nil {
		return model.Appointment{}, apperr.Store("book appointment", err)
	}

	s.logger.Info("appointment booked",
		"appointment_id", booked.ID,
		"practitioner_id", booked.PractitionerID,
		"patient_id", booked.PatientID,
		"start", booked.ScheduledStart,
	)
	return booked, nil
}

// resolvePatient applies the booking role gate: patients book for themselves,
// admins for a named patient, doctors not at all.
func resolvePatient(caller auth.Identity, requested string) (string, error) {
	switch caller.Role {
	case auth.RolePatient:
		if requested != "" && requested != caller.UserID {
			return "", apperr.Forbidden("patients can only book for themselves")
		}
		return caller.UserID, nil
	case auth.RoleAdmin:
		if requested == "" {
			return "", apperr.Invalid("patient_id is required when booking on behalf of a patient")
		}
		return requested, nil
	case auth.RoleDoctor:
		return "", apperr.Forbidden("practitioners cannot book sessions")
	default:
		return "", apperr.Forbidden("unsupported role %s", caller.Role)
	}
}

// checkHorizon accepts clinic-local dates from today through HorizonDays-1 days ahead.
func (s *Service) checkHorizon(day time.Time) error {
	if s.cfg.HorizonDays <= 0 {
		return nil
	}
	end := startOfDay(s.now().In(s.cfg.Location)).AddDate(0, 0, s.cfg.HorizonDays)
	if !day.Before(end) {
		return apperr.Invalid("date must be within the next %d days", s.cfg.HorizonDays)
	}
	return nil
}

type profileGetter interface {
	GetProfile(ctx context.Context, id string) (model.Profile, error)
}

func lookupProfile(ctx context.Context, src profileGetter, id string, want auth.Role, label string) (model.Profile, error) {
	p, err := src.GetProfile(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return model.Profile{}, apperr.Invalid("unknown %s %s", label, id)
	}
	if err != nil {
		return model.Profile{}, err
	}
	if p.Role != want {
		return model.Profile{}, apperr.Invalid("%s %s is not a %s", label, id, want)
	}
	return p, nil
}

// ListMine returns the caller's appointments, newest first. Admins see every appointment.
func (s *Service) ListMine(ctx context.Context, limit int) ([]model.Appointment, error) {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}
	filter := model.AppointmentFilter{Limit: clampLimit(limit)}
	switch caller.Role {
	case auth.RolePatient:
		filter.PatientID = caller.UserID
	case auth.RoleDoctor:
		filter.PractitionerID = caller.UserID
	case auth.RoleAdmin:
	default:
		return nil, apperr.Forbidden("unsupported role %s", caller.Role)
	}
	appts, err := s.store.ListAppointments(ctx, filter)
	if err != nil {
		return nil, apperr.Store("list appointments", err)
	}
	return appts, nil
}

func (s *Service) parseDayAndDuration(date string, minutes int) (time.Time, time.Duration, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), s.cfg.Location)
	if err != nil {
		return time.Time{}, 0, apperr.Invalid("date must be YYYY-MM-DD")
	}
	if !s.cfg.allowsDuration(minutes) {
		return time.Time{}, 0, apperr.Invalid("duration %d minutes is not offered (allowed: %v)", minutes, s.cfg.Durations)
	}
	return day, time.Duration(minutes) * time.Minute, nil
}

// searchWindow covers every candidate on day, including sessions that run past midnight.
func searchWindow(day time.Time, duration time.Duration) (time.Time, time.Time) {
	return day, day.AddDate(0, 0, 1).Add(duration)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func requireUUID(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return apperr.Invalid("%s is required", field)
	}
	if _, err := uuid.Parse(v); err != nil {
		return apperr.Invalid("%s must be a UUID", field)
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	if !apperr.IsDomain(err) {
		span.SetStatus(codes.Error, err.Error())
	}
}
