package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/catalog"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/dashboard"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/feedback"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/notifications"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "handler-test-secret"

type server struct {
	t       *testing.T
	store   *memstore.Store
	handler http.Handler
	patient string
	doctor  string
	admin   string
	therapy string
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	s := &server{
		t:       t,
		store:   store,
		patient: uuid.NewString(),
		doctor:  uuid.NewString(),
		admin:   uuid.NewString(),
		therapy: uuid.NewString(),
	}
	store.AddProfile(model.Profile{ID: s.patient, Role: auth.RolePatient, FullName: "Asha Rao"})
	store.AddProfile(model.Profile{ID: s.doctor, Role: auth.RoleDoctor, FullName: "Dr. Mehta"})
	store.AddProfile(model.Profile{ID: s.admin, Role: auth.RoleAdmin, FullName: "Desk"})
	store.AddTherapyType(model.TherapyType{ID: s.therapy, Name: "Abhyanga", DurationDays: 7})

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	bookingSvc, err := booking.NewService(store, booking.DefaultConfig(), logger, booking.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	api := handlers.New(handlers.Services{
		Booking:       bookingSvc,
		Catalog:       catalog.NewService(store),
		Notifications: notifications.NewService(store),
		Feedback:      feedback.NewService(store),
		Dashboard:     dashboard.NewService(store, time.UTC),
	}, logger)
	mux := http.NewServeMux()
	api.Register(mux)

	verifier, err := auth.NewVerifier(auth.VerifierConfig{HMACSecret: secret})
	require.NoError(t, err)
	s.handler = httpx.Chain(mux, httpx.WithRequestID, auth.Authenticate(verifier))
	return s
}

func (s *server) token(sub string, role auth.Role) string {
	tok, err := auth.SignHS256(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role.String(),
	}, secret)
	require.NoError(s.t, err)
	return tok
}

func (s *server) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, req)
	return rw
}

func errorCode(t *testing.T, rw *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body), rw.Body.String())
	return body.Error.Code
}

func (s *server) bookBody(start string) map[string]any {
	return map[string]any{
		"practitioner_id":  s.doctor,
		"therapy_type_id":  s.therapy,
		"date":             "2026-03-03",
		"start_time":       start,
		"duration_minutes": 60,
	}
}

func TestRequiresAuthentication(t *testing.T) {
	s := newServer(t)

	rw := s.do(http.MethodGet, "/api/v1/therapies", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rw.Code)
	assert.Equal(t, "unauthenticated", errorCode(t, rw))

	rw = s.do(http.MethodGet, "/api/v1/therapies", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	s := newServer(t)
	tok := s.token(s.patient, auth.RolePatient)

	rw := s.do(http.MethodGet, "/api/v1/therapies", tok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), `"name":"Abhyanga"`)

	rw = s.do(http.MethodGet, "/api/v1/practitioners", tok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), `"role":"doctor"`)
	assert.NotContains(t, rw.Body.String(), "Asha Rao")

	rw = s.do(http.MethodGet, "/api/v1/centers", tok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.JSONEq(t, `{"centers":[]}`, rw.Body.String())
}

func TestSlotsAndBooking(t *testing.T) {
	s := newServer(t)
	tok := s.token(s.patient, auth.RolePatient)
	slotsURL := "/api/v1/slots?practitioner_id=" + s.doctor + "&date=2026-03-03&duration_minutes=60"

	rw := s.do(http.MethodGet, slotsURL, tok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	var slots struct {
		Slots []struct {
			Time  string `json:"time"`
			Start string `json:"start"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &slots))
	require.Len(t, slots.Slots, 16)
	assert.Equal(t, "09:00", slots.Slots[0].Time)
	assert.Equal(t, "2026-03-03T09:00:00Z", slots.Slots[0].Start)

	rw = s.do(http.MethodPost, "/api/v1/appointments", tok, s.bookBody("10:00"), "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	var appt model.Appointment
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &appt))
	assert.Equal(t, model.StatusScheduled, appt.Status)

	rw = s.do(http.MethodPost, "/api/v1/appointments", tok, s.bookBody("10:00"), "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, rw.Code)
	var replay model.Appointment
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &replay))
	assert.Equal(t, appt.ID, replay.ID)

	rw = s.do(http.MethodPost, "/api/v1/appointments", tok, s.bookBody("10:30"))
	assert.Equal(t, http.StatusConflict, rw.Code)
	assert.Equal(t, "slot_unavailable", errorCode(t, rw))

	rw = s.do(http.MethodGet, slotsURL, tok, nil)
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &slots))
	assert.Len(t, slots.Slots, 13)

	rw = s.do(http.MethodGet, "/api/v1/appointments", tok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), appt.ID)
}

func TestBookingRejectsBadInput(t *testing.T) {
	s := newServer(t)
	tok := s.token(s.patient, auth.RolePatient)

	rw := s.do(http.MethodPost, "/api/v1/appointments", tok, `{"practitioner_id":`)
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	body := s.bookBody("10:00")
	body["surprise"] = true
	rw = s.do(http.MethodPost, "/api/v1/appointments", tok, body)
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	body = s.bookBody("10:00")
	body["duration_minutes"] = 45
	rw = s.do(http.MethodPost, "/api/v1/appointments", tok, body)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rw))

	rw = s.do(http.MethodPost, "/api/v1/appointments", s.token(s.doctor, auth.RoleDoctor), s.bookBody("10:00"))
	assert.Equal(t, http.StatusForbidden, rw.Code)

	rw = s.do(http.MethodGet, "/api/v1/slots?duration_minutes=abc", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestStatusTransitions(t *testing.T) {
	s := newServer(t)
	patientTok := s.token(s.patient, auth.RolePatient)
	doctorTok := s.token(s.doctor, auth.RoleDoctor)

	rw := s.do(http.MethodPost, "/api/v1/appointments", patientTok, s.bookBody("14:00"))
	require.Equal(t, http.StatusCreated, rw.Code)
	var appt model.Appointment
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &appt))

	move := func(tok, status string) *httptest.ResponseRecorder {
		return s.do(http.MethodPost, "/api/v1/appointments/status", tok, map[string]string{"appointment_id": appt.ID, "status": status})
	}

	rw = move(patientTok, "in_progress")
	assert.Equal(t, http.StatusForbidden, rw.Code)

	rw = move(doctorTok, "bogus")
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = move(doctorTok, "in_progress")
	require.Equal(t, http.StatusOK, rw.Code)
	rw = move(doctorTok, "completed")
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), `"status":"completed"`)

	rw = move(doctorTok, "cancelled")
	assert.Equal(t, http.StatusConflict, rw.Code)
	assert.Equal(t, "invalid_transition", errorCode(t, rw))

	rw = s.do(http.MethodPost, "/api/v1/appointments/status", doctorTok, map[string]string{"appointment_id": uuid.NewString(), "status": "cancelled"})
	assert.Equal(t, http.StatusNotFound, rw.Code)

	fb := map[string]any{
		"appointment_id":    appt.ID,
		"rating":            5,
		"symptoms":          "lower back stiffness",
		"improvement_notes": "walking without pain now",
	}
	rw = s.do(http.MethodPost, "/api/v1/feedback", patientTok, fb)
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	rw = s.do(http.MethodPost, "/api/v1/feedback", patientTok, fb)
	assert.Equal(t, http.StatusConflict, rw.Code)
	assert.Equal(t, "conflict", errorCode(t, rw))

	rw = s.do(http.MethodGet, "/api/v1/feedback", doctorTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), appt.ID)

	rw = s.do(http.MethodGet, "/api/v1/feedback", patientTok, nil)
	assert.Equal(t, http.StatusForbidden, rw.Code)
}

func TestNotificationEndpoints(t *testing.T) {
	s := newServer(t)
	tok := s.token(s.patient, auth.RolePatient)

	rw := s.do(http.MethodPost, "/api/v1/appointments", tok, s.bookBody("09:00"))
	require.Equal(t, http.StatusCreated, rw.Code)

	rw = s.do(http.MethodGet, "/api/v1/notifications?unread=true", tok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	var list struct {
		Notifications []model.Notification `json:"notifications"`
		UnreadCount   int                  `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &list))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, 1, list.UnreadCount)
	assert.Equal(t, "Session Booked Successfully", list.Notifications[0].Title)

	rw = s.do(http.MethodPost, "/api/v1/notifications/read", tok, map[string]string{"notification_id": list.Notifications[0].ID})
	assert.Equal(t, http.StatusNoContent, rw.Code)

	rw = s.do(http.MethodPost, "/api/v1/notifications/read", s.token(s.doctor, auth.RoleDoctor), map[string]string{"notification_id": list.Notifications[0].ID})
	assert.Equal(t, http.StatusNotFound, rw.Code)

	rw = s.do(http.MethodGet, "/api/v1/notifications?unread=maybe", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestDashboardEndpoint(t *testing.T) {
	s := newServer(t)

	rw := s.do(http.MethodGet, "/api/v1/dashboard", s.token(s.admin, auth.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), `"role":"admin"`)
	assert.Contains(t, rw.Body.String(), `"users":{"admin":1,"doctor":1,"patient":1}`)

	rw = s.do(http.MethodGet, "/api/v1/dashboard", s.token(s.patient, auth.RolePatient), nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), `"patient":{`)
}

func TestStoreFailureIsOpaque(t *testing.T) {
	s := newServer(t)
	s.store.FailOn("ListAppointments", errors.New("pq: password authentication failed"))

	rw := s.do(http.MethodGet, "/api/v1/appointments", s.token(s.patient, auth.RolePatient), nil)
	assert.Equal(t, http.StatusInternalServerError, rw.Code)
	assert.Equal(t, "internal", errorCode(t, rw))
	assert.NotContains(t, rw.Body.String(), "password")
}

func TestMethodNotAllowed(t *testing.T) {
	s := newServer(t)
	rw := s.do(http.MethodDelete, "/api/v1/appointments", s.token(s.patient, auth.RolePatient), nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rw.Code)
}
