package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

const idempotencyHeader = "Idempotency-Key"

type slotItem struct {
	Time  string `json:"time"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type slotsResponse struct {
	PractitionerID  string     `json:"practitioner_id"`
	Date            string     `json:"date"`
	DurationMinutes int        `json:"duration_minutes"`
	Slots           []slotItem `json:"slots"`
}

func (a *API) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	duration, ok := queryInt(r, "duration_minutes", 0)
	if !ok {
		badRequest(w, "duration_minutes must be an integer")
		return
	}
	query := booking.SlotQuery{
		PractitionerID:  strings.TrimSpace(q.Get("practitioner_id")),
		Date:            strings.TrimSpace(q.Get("date")),
		DurationMinutes: duration,
	}
	slots, err := a.booking.AvailableSlots(r.Context(), query)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			Time:  s.Time.String(),
			Start: s.Start.Format(time.RFC3339),
			End:   s.End.Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		PractitionerID:  query.PractitionerID,
		Date:            query.Date,
		DurationMinutes: query.DurationMinutes,
		Slots:           items,
	})
}

type bookRequest struct {
	PatientID       string `json:"patient_id"`
	PractitionerID  string `json:"practitioner_id"`
	TherapyTypeID   string `json:"therapy_type_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes"`
}

func (a *API) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	appt, err := a.booking.Book(r.Context(), booking.BookingRequest{
		PatientID:       req.PatientID,
		PractitionerID:  req.PractitionerID,
		TherapyTypeID:   req.TherapyTypeID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		IdempotencyKey:  r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, appt)
}

type appointmentsResponse struct {
	Appointments []model.Appointment `json:"appointments"`
}

func (a *API) ListAppointments(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		badRequest(w, "limit must be an integer")
		return
	}
	appts, err := a.booking.ListMine(r.Context(), limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appointmentsResponse{Appointments: nonNil(appts)})
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

func (a *API) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	to, err := model.ParseStatus(req.Status)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	appt, err := a.booking.TransitionStatus(r.Context(), req.AppointmentID, to)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}
