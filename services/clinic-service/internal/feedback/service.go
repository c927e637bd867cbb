package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

const (
	minTextLen = 10
	maxTextLen = 500

	defaultListLimit = 20
	maxListLimit     = 100
)

type Store interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	// InsertFeedback returns apperr.ErrConflict if the appointment already has feedback.
	InsertFeedback(ctx context.Context, fb model.Feedback) (model.Feedback, error)
	ListFeedback(ctx context.Context, filter model.FeedbackFilter) ([]model.Feedback, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type Request struct {
	AppointmentID    string
	Rating           int
	Symptoms         string
	ImprovementNotes string
}

// Submit records the patient's feedback on one of their completed sessions.
func (s *Service) Submit(ctx context.Context, req Request) (model.Feedback, error) {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return model.Feedback{}, apperr.ErrUnauthenticated
	}
	if caller.Role != auth.RolePatient {
		return model.Feedback{}, apperr.Forbidden("only patients can leave feedback")
	}

	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Symptoms = strings.TrimSpace(req.Symptoms)
	req.ImprovementNotes = strings.TrimSpace(req.ImprovementNotes)
	if _, err := uuid.Parse(req.AppointmentID); err != nil {
		return model.Feedback{}, apperr.Invalid("appointment_id must be a UUID")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return model.Feedback{}, apperr.Invalid("rating must be between 1 and 5")
	}
	if err := checkText("symptoms", req.Symptoms); err != nil {
		return model.Feedback{}, err
	}
	if err := checkText("improvement_notes", req.ImprovementNotes); err != nil {
		return model.Feedback{}, err
	}

	appt, err := s.store.GetAppointment(ctx, req.AppointmentID)
	if err != nil {
		return model.Feedback{}, apperr.Store("get appointment", err)
	}
	if appt.PatientID != caller.UserID {
		return model.Feedback{}, apperr.Forbidden("appointment belongs to another patient")
	}
	if appt.Status != model.StatusCompleted {
		return model.Feedback{}, fmt.Errorf("%w: feedback is only accepted for completed sessions", apperr.ErrConflict)
	}

	fb, err := s.store.InsertFeedback(ctx, model.Feedback{
		AppointmentID:    appt.ID,
		PatientID:        caller.UserID,
		Rating:           req.Rating,
		Symptoms:         req.Symptoms,
		ImprovementNotes: req.ImprovementNotes,
	})
	if errors.Is(err, apperr.ErrConflict) {
		return model.Feedback{}, fmt.Errorf("%w: feedback already submitted for this session", apperr.ErrConflict)
	}
	if err != nil {
		return model.Feedback{}, apperr.Store("insert feedback", err)
	}
	return fb, nil
}

// ListRecent returns the newest feedback: a doctor's own sessions, or everything for admins.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]model.Feedback, error) {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	filter := model.FeedbackFilter{Limit: limit}
	switch caller.Role {
	case auth.RoleDoctor:
		filter.PractitionerID = caller.UserID
	case auth.RoleAdmin:
	case auth.RolePatient:
		return nil, apperr.Forbidden("patients cannot list feedback")
	default:
		return nil, apperr.Forbidden("unsupported role %s", caller.Role)
	}
	out, err := s.store.ListFeedback(ctx, filter)
	return out, apperr.Store("list feedback", err)
}

func checkText(field, text string) error {
	n := utf8.RuneCountInString(text)
	if n < minTextLen || n > maxTextLen {
		return apperr.Invalid("%s must be %d to %d characters", field, minTextLen, maxTextLen)
	}
	return nil
}
