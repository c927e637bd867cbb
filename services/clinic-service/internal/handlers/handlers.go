// Package handlers exposes the clinic services over JSON/HTTP.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/catalog"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/dashboard"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/feedback"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/notifications"
)

type API struct {
	booking       *booking.Service
	catalog       *catalog.Service
	notifications *notifications.Service
	feedback      *feedback.Service
	dashboard     *dashboard.Service
	logger        *slog.Logger
}

type Services struct {
	Booking       *booking.Service
	Catalog       *catalog.Service
	Notifications *notifications.Service
	Feedback      *feedback.Service
	Dashboard     *dashboard.Service
}

func New(svc Services, logger *slog.Logger) *API {
	return &API{
		booking:       svc.Booking,
		catalog:       svc.Catalog,
		notifications: svc.Notifications,
		feedback:      svc.Feedback,
		dashboard:     svc.Dashboard,
		logger:        logger,
	}
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/therapies", a.ListTherapies)
	mux.HandleFunc("GET /api/v1/practitioners", a.ListPractitioners)
	mux.HandleFunc("GET /api/v1/centers", a.ListCenters)
	mux.HandleFunc("GET /api/v1/slots", a.Slots)
	mux.HandleFunc("POST /api/v1/appointments", a.Book)
	mux.HandleFunc("GET /api/v1/appointments", a.ListAppointments)
	mux.HandleFunc("POST /api/v1/appointments/status", a.TransitionStatus)
	mux.HandleFunc("GET /api/v1/notifications", a.ListNotifications)
	mux.HandleFunc("POST /api/v1/notifications/read", a.MarkNotificationRead)
	mux.HandleFunc("POST /api/v1/feedback", a.SubmitFeedback)
	mux.Handle("GET /api/v1/feedback", auth.RequireRole(http.HandlerFunc(a.ListFeedback), auth.RoleDoctor, auth.RoleAdmin))
	mux.HandleFunc("GET /api/v1/dashboard", a.Dashboard)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{apperr.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{apperr.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperr.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{apperr.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
	{apperr.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{apperr.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperr.ErrConflict, http.StatusConflict, "conflict"},
}

// writeError renders domain errors with their own message. Anything else is logged
// and reported without detail.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			httpx.WriteError(w, m.status, m.code, err.Error())
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		httpx.WriteError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
		return
	}
	a.logger.Error("request failed",
		"err", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", httpx.RequestIDFromContext(r.Context()),
	)
	httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request", msg)
}

// queryInt parses an optional integer query parameter; missing means def.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func queryBool(r *http.Request, name string) (bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
