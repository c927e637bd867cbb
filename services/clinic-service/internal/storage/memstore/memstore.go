// Package memstore is an in-memory record store for tests. Transactions stage their
// writes and apply them on commit; practitioner transactions are serialized with a
// per-practitioner mutex, mirroring the advisory lock of the Postgres store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/catalog"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/feedback"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/notifications"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/profiles"
)

type Store struct {
	mu            sync.Mutex
	profiles      map[string]model.Profile
	centers       map[string]model.Center
	therapies     map[string]model.TherapyType
	appointments  map[string]model.Appointment
	notifications []model.Notification
	feedback      []model.Feedback
	events        []outbox.Event
	idempotency   map[string]string
	inbox         map[string]bool
	failures      map[string]error

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
	// rowMu stands in for row locks taken by InTx transactions.
	rowMu sync.Mutex

	// Now stamps created rows. Tests may replace it before use.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		profiles:     map[string]model.Profile{},
		centers:      map[string]model.Center{},
		therapies:    map[string]model.TherapyType{},
		appointments: map[string]model.Appointment{},
		idempotency:  map[string]string{},
		inbox:        map[string]bool{},
		failures:     map[string]error{},
		locks:        map[string]*sync.Mutex{},
		Now:          time.Now,
	}
}

var (
	_ booking.Store       = (*Store)(nil)
	_ catalog.Store       = (*Store)(nil)
	_ notifications.Store = (*Store)(nil)
	_ feedback.Store      = (*Store)(nil)
	_ profiles.Store      = (*Store)(nil)
)

// FailOn makes every later call of the named operation (e.g. "InsertNotification") return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

func (s *Store) AddProfile(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *Store) AddCenter(c model.Center) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.centers[c.ID] = c
}

func (s *Store) AddTherapyType(t model.TherapyType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.therapies[t.ID] = t
}

// AddAppointment commits a as is, assigning an ID if it has none.
func (s *Store) AddAppointment(a model.Appointment) model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.Now()
		a.UpdatedAt = a.CreatedAt
	}
	s.appointments[a.ID] = a
	return a
}

func (s *Store) AddNotification(n model.Notification) model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.Now()
	}
	s.notifications = append(s.notifications, n)
	return n
}

func (s *Store) AddFeedback(fb model.Feedback) model.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = s.Now()
	}
	s.feedback = append(s.feedback, fb)
	return fb
}

func (s *Store) Appointments() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		out = append(out, a)
	}
	sortAppointments(out, true)
	return out
}

func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.notifications...)
}

func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Event(nil), s.events...)
}

func (s *Store) Profile(id string) (model.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	return p, ok
}

func (s *Store) practitionerLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Store) InPractitionerTx(ctx context.Context, practitionerID string, fn func(booking.Tx) error) error {
	l := s.practitionerLock(practitionerID)
	l.Lock()
	defer l.Unlock()
	return s.run(ctx, fn)
}

func (s *Store) InTx(ctx context.Context, fn func(booking.Tx) error) error {
	s.rowMu.Lock()
	defer s.rowMu.Unlock()
	return s.run(ctx, fn)
}

func (s *Store) run(ctx context.Context, fn func(booking.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &tx{s: s, appts: map[string]model.Appointment{}, idem: map[string]string{}}
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Commit"); err != nil {
		return err
	}
	for id, a := range tx.appts {
		s.appointments[id] = a
	}
	s.notifications = append(s.notifications, tx.notes...)
	s.events = append(s.events, tx.events...)
	for k, v := range tx.idem {
		s.idempotency[k] = v
	}
	return nil
}

func (s *Store) GetProfile(_ context.Context, id string) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, fmt.Errorf("profile %s: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListActiveAppointments(_ context.Context, practitionerID string, from, to time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListActiveAppointments"); err != nil {
		return nil, err
	}
	return activeIn(s.appointments, nil, practitionerID, from, to), nil
}

func (s *Store) ListAppointments(_ context.Context, filter model.AppointmentFilter) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListAppointments"); err != nil {
		return nil, err
	}
	var out []model.Appointment
	for _, a := range s.appointments {
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	sortAppointments(out, filter.Ascending)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	return a, nil
}

func activeIn(committed, staged map[string]model.Appointment, practitionerID string, from, to time.Time) []model.Appointment {
	merged := make(map[string]model.Appointment, len(committed)+len(staged))
	for id, a := range committed {
		merged[id] = a
	}
	for id, a := range staged {
		merged[id] = a
	}
	var out []model.Appointment
	for _, a := range merged {
		if a.PractitionerID == practitionerID && a.Status.Active() && a.Overlaps(from, to) {
			out = append(out, a)
		}
	}
	sortAppointments(out, true)
	return out
}

func sortAppointments(appts []model.Appointment, ascending bool) {
	sort.SliceStable(appts, func(i, j int) bool {
		if ascending {
			return appts[i].ScheduledStart.Before(appts[j].ScheduledStart)
		}
		return appts[i].ScheduledStart.After(appts[j].ScheduledStart)
	})
}

type tx struct {
	s      *Store
	appts  map[string]model.Appointment
	notes  []model.Notification
	events []outbox.Event
	idem   map[string]string
}

var _ booking.Tx = (*tx)(nil)

func (t *tx) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	return t.s.GetProfile(ctx, id)
}

func (t *tx) GetTherapyType(_ context.Context, id string) (model.TherapyType, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	th, ok := t.s.therapies[id]
	if !ok {
		return model.TherapyType{}, fmt.Errorf("therapy type %s: %w", id, apperr.ErrNotFound)
	}
	return th, nil
}

func (t *tx) ListActiveAppointments(_ context.Context, practitionerID string, from, to time.Time) ([]model.Appointment, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.fail("ListActiveAppointments"); err != nil {
		return nil, err
	}
	return activeIn(t.s.appointments, t.appts, practitionerID, from, to), nil
}

// InsertAppointment enforces the no-overlap constraint, like the exclusion constraint in Postgres.
func (t *tx) InsertAppointment(_ context.Context, a model.Appointment) (model.Appointment, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.fail("InsertAppointment"); err != nil {
		return model.Appointment{}, err
	}
	if a.Status.Active() && len(activeIn(t.s.appointments, t.appts, a.PractitionerID, a.ScheduledStart, a.ScheduledEnd)) > 0 {
		return model.Appointment{}, fmt.Errorf("insert appointment: %w", apperr.ErrSlotUnavailable)
	}
	a.ID = uuid.NewString()
	a.CreatedAt = t.s.Now()
	a.UpdatedAt = a.CreatedAt
	t.appts[a.ID] = a
	return a, nil
}

func (t *tx) get(id string) (model.Appointment, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if a, ok := t.appts[id]; ok {
		return a, nil
	}
	a, ok := t.s.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	return a, nil
}

func (t *tx) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	return t.get(id)
}

func (t *tx) GetAppointmentForUpdate(_ context.Context, id string) (model.Appointment, error) {
	return t.get(id)
}

func (t *tx) UpdateAppointmentStatus(_ context.Context, id string, status model.Status) (model.Appointment, error) {
	a, err := t.get(id)
	if err != nil {
		return model.Appointment{}, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.fail("UpdateAppointmentStatus"); err != nil {
		return model.Appointment{}, err
	}
	a.Status = status
	a.UpdatedAt = t.s.Now()
	t.appts[id] = a
	return a, nil
}

func (t *tx) InsertNotification(_ context.Context, n model.Notification) (model.Notification, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.fail("InsertNotification"); err != nil {
		return model.Notification{}, err
	}
	n.ID = uuid.NewString()
	n.CreatedAt = t.s.Now()
	t.notes = append(t.notes, n)
	return n, nil
}

func (t *tx) EnqueueEvent(_ context.Context, evt outbox.Event) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.fail("EnqueueEvent"); err != nil {
		return err
	}
	t.events = append(t.events, evt)
	return nil
}

func (t *tx) LockIdempotencyKey(_ context.Context, scope, key string) (string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.idempotency[scope+"\x00"+key], nil
}

func (t *tx) FinalizeIdempotency(_ context.Context, scope, key, appointmentID string) error {
	t.idem[scope+"\x00"+key] = appointmentID
	return nil
}

func (s *Store) ListTherapyTypes(context.Context) ([]model.TherapyType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TherapyType, 0, len(s.therapies))
	for _, t := range s.therapies {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListProfilesByRole(_ context.Context, role auth.Role) ([]model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Profile
	for _, p := range s.profiles {
		if p.Role == role {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (s *Store) ListCenters(context.Context) ([]model.Center, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Center, 0, len(s.centers))
	for _, c := range s.centers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == userID {
			s.notifications[i].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, apperr.ErrNotFound)
}

func (s *Store) CountUnreadNotifications(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, x := range s.notifications {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *Store) InsertFeedback(_ context.Context, fb model.Feedback) (model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.feedback {
		if existing.AppointmentID == fb.AppointmentID {
			return model.Feedback{}, fmt.Errorf("feedback for %s: %w", fb.AppointmentID, apperr.ErrConflict)
		}
	}
	fb.ID = uuid.NewString()
	fb.CreatedAt = s.Now()
	s.feedback = append(s.feedback, fb)
	return fb, nil
}

func (s *Store) ListFeedback(_ context.Context, filter model.FeedbackFilter) ([]model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Feedback
	for i := len(s.feedback) - 1; i >= 0; i-- {
		fb := s.feedback[i]
		if filter.PractitionerID != "" && s.appointments[fb.AppointmentID].PractitionerID != filter.PractitionerID {
			continue
		}
		out = append(out, fb)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CountProfilesByRole(context.Context) (map[auth.Role]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[auth.Role]int{}
	for _, p := range s.profiles {
		out[p.Role]++
	}
	return out, nil
}

func (s *Store) CountCenters(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.centers), nil
}

func (s *Store) CountAppointmentsByStatus(_ context.Context, filter model.AppointmentFilter) (map[model.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[model.Status]int{}
	for _, a := range s.appointments {
		if filter.Matches(a) {
			out[a.Status]++
		}
	}
	return out, nil
}

func (s *Store) AverageRating(_ context.Context, recent int) (float64, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, n := 0, 0
	for i := len(s.feedback) - 1; i >= 0 && (recent <= 0 || n < recent); i-- {
		sum += s.feedback[i].Rating
		n++
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}

func (s *Store) UpsertProfileOnce(_ context.Context, meta kafkax.EventMeta, p model.Profile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertProfileOnce"); err != nil {
		return false, err
	}
	if s.inbox[meta.EventID] {
		return false, nil
	}
	s.inbox[meta.EventID] = true
	s.profiles[p.ID] = p
	return true, nil
}
