package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

func (a *API) ListTherapies(w http.ResponseWriter, r *http.Request) {
	out, err := a.catalog.ListTherapyTypes(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct {
		Therapies []model.TherapyType `json:"therapies"`
	}{nonNil(out)})
}

func (a *API) ListPractitioners(w http.ResponseWriter, r *http.Request) {
	out, err := a.catalog.ListPractitioners(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct {
		Practitioners []model.Profile `json:"practitioners"`
	}{nonNil(out)})
}

func (a *API) ListCenters(w http.ResponseWriter, r *http.Request) {
	out, err := a.catalog.ListCenters(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct {
		Centers []model.Center `json:"centers"`
	}{nonNil(out)})
}
