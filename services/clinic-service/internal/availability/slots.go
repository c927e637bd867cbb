package availability

import (
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open intervals: [a,b) and [c,d) overlap iff a < d && c < b.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

type Slot struct {
	Time  TimeOfDay
	Start time.Time
	End   time.Time
}

// ComputeAvailableSlots returns the template slots on day where a session of length
// duration would not overlap any active appointment of practitionerID.
//
// Appointments of other practitioners and cancelled or completed appointments are ignored.
// The result keeps template order. It does not filter out slots in the past and does not
// reject durations that run past the end of the working day.
func ComputeAvailableSlots(practitionerID string, day time.Time, tmpl Template, duration time.Duration, existing []model.Appointment) []Slot {
	if duration <= 0 {
		return nil
	}

	busy := make([]Interval, 0, len(existing))
	for _, a := range existing {
		if a.PractitionerID != practitionerID || !a.Status.Active() {
			continue
		}
		busy = append(busy, Interval{Start: a.ScheduledStart, End: a.ScheduledEnd})
	}

	slots := make([]Slot, 0, len(tmpl))
	for _, t := range tmpl {
		candidate := Interval{Start: t.On(day)}
		candidate.End = candidate.Start.Add(duration)
		if overlapsAny(candidate, busy) {
			continue
		}
		slots = append(slots, Slot{Time: t, Start: candidate.Start, End: candidate.End})
	}
	return slots
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// Find returns the slot starting at t, if present.
func Find(slots []Slot, t TimeOfDay) (Slot, bool) {
	for _, s := range slots {
		if s.Time == t {
			return s, true
		}
	}
	return Slot{}, false
}

// Upcoming drops slots that start before now.
func Upcoming(slots []Slot, now time.Time) []Slot {
	out := slots[:0:0]
	for _, s := range slots {
		if s.Start.Before(now) {
			continue
		}
		out = append(out, s)
	}
	return out
}
