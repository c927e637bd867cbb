package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/feedback"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

type feedbackRequest struct {
	AppointmentID    string `json:"appointment_id"`
	Rating           int    `json:"rating"`
	Symptoms         string `json:"symptoms"`
	ImprovementNotes string `json:"improvement_notes"`
}

func (a *API) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	fb, err := a.feedback.Submit(r.Context(), feedback.Request(req))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, fb)
}

func (a *API) ListFeedback(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		badRequest(w, "limit must be an integer")
		return
	}
	out, err := a.feedback.ListRecent(r.Context(), limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct {
		Feedback []model.Feedback `json:"feedback"`
	}{nonNil(out)})
}

func (a *API) Dashboard(w http.ResponseWriter, r *http.Request) {
	view, err := a.dashboard.Get(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}
