package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Active statuses occupy the practitioner's calendar.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusInProgress
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ActiveStatuses is the set that blocks a slot.
var ActiveStatuses = []Status{StatusScheduled, StatusInProgress}

type Appointment struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	PractitionerID string    `json:"practitioner_id"`
	TherapyTypeID  string    `json:"therapy_type_id"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	Status         Status    `json:"status"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Overlaps reports whether the appointment intersects [start, end) using half-open intervals.
func (a Appointment) Overlaps(start, end time.Time) bool {
	return start.Before(a.ScheduledEnd) && a.ScheduledStart.Before(end)
}

// AppointmentFilter selects appointments for listings. Zero fields do not filter.
type AppointmentFilter struct {
	PatientID      string
	PractitionerID string
	From           time.Time
	To             time.Time
	Statuses       []Status
	Limit          int
	// Ascending orders by start time oldest first; the default is newest first.
	Ascending bool
}

func (f AppointmentFilter) Matches(a Appointment) bool {
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if f.PractitionerID != "" && a.PractitionerID != f.PractitionerID {
		return false
	}
	if !f.From.IsZero() && a.ScheduledStart.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.ScheduledStart.Before(f.To) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
