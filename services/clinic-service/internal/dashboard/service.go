package dashboard

import (
	"context"
	"math"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

const (
	recentFeedbackWindow = 50
	upcomingDays         = 7
	upcomingLimit        = 10
	patientHistoryLimit  = 20
)

type Store interface {
	CountProfilesByRole(ctx context.Context) (map[auth.Role]int, error)
	CountCenters(ctx context.Context) (int, error)
	CountAppointmentsByStatus(ctx context.Context, filter model.AppointmentFilter) (map[model.Status]int, error)
	// AverageRating averages the newest recent feedback ratings and reports how many were used.
	AverageRating(ctx context.Context, recent int) (float64, int, error)
	ListAppointments(ctx context.Context, filter model.AppointmentFilter) ([]model.Appointment, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

type AdminView struct {
	Users          map[string]int `json:"users"`
	Centers        int            `json:"centers"`
	Appointments   int            `json:"appointments"`
	Completed      int            `json:"completed"`
	CompletionRate int            `json:"completion_rate_percent"`
	AverageRating  float64        `json:"average_rating"`
	RatedSessions  int            `json:"rated_sessions"`
}

type DoctorView struct {
	Today          []model.Appointment `json:"today"`
	TodayCompleted int                 `json:"today_completed"`
	TodayActive    int                 `json:"today_in_progress"`
	TodayPatients  int                 `json:"today_patients"`
	Upcoming       []model.Appointment `json:"upcoming"`
}

type PatientView struct {
	Appointments        []model.Appointment `json:"appointments"`
	UnreadNotifications int                 `json:"unread_notifications"`
}

// View holds exactly one of the role-specific dashboards.
type View struct {
	Role    auth.Role    `json:"role"`
	Admin   *AdminView   `json:"admin,omitempty"`
	Doctor  *DoctorView  `json:"doctor,omitempty"`
	Patient *PatientView `json:"patient,omitempty"`
}

type Service struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

func NewService(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

func (s *Service) Get(ctx context.Context) (View, error) {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return View{}, apperr.ErrUnauthenticated
	}
	view := View{Role: caller.Role}
	var err error
	switch caller.Role {
	case auth.RoleAdmin:
		view.Admin, err = s.admin(ctx)
	case auth.RoleDoctor:
		view.Doctor, err = s.doctor(ctx, caller.UserID)
	case auth.RolePatient:
		view.Patient, err = s.patient(ctx, caller.UserID)
	default:
		return View{}, apperr.Forbidden("unsupported role %s", caller.Role)
	}
	if err != nil {
		return View{}, apperr.Store("dashboard", err)
	}
	return view, nil
}

func (s *Service) admin(ctx context.Context) (*AdminView, error) {
	byRole, err := s.store.CountProfilesByRole(ctx)
	if err != nil {
		return nil, err
	}
	centers, err := s.store.CountCenters(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.store.CountAppointmentsByStatus(ctx, model.AppointmentFilter{})
	if err != nil {
		return nil, err
	}
	avg, rated, err := s.store.AverageRating(ctx, recentFeedbackWindow)
	if err != nil {
		return nil, err
	}

	v := &AdminView{
		Users:         map[string]int{},
		Centers:       centers,
		Completed:     byStatus[model.StatusCompleted],
		AverageRating: math.Round(avg*10) / 10,
		RatedSessions: rated,
	}
	for _, r := range []auth.Role{auth.RoleAdmin, auth.RoleDoctor, auth.RolePatient} {
		v.Users[r.String()] = byRole[r]
	}
	for _, n := range byStatus {
		v.Appointments += n
	}
	v.CompletionRate = completionRate(v.Completed, v.Appointments)
	return v, nil
}

func completionRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}

func (s *Service) doctor(ctx context.Context, practitionerID string) (*DoctorView, error) {
	now := s.now().In(s.loc)
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	today, err := s.store.ListAppointments(ctx, model.AppointmentFilter{
		PractitionerID: practitionerID,
		From:           dayStart,
		To:             dayEnd,
		Ascending:      true,
	})
	if err != nil {
		return nil, err
	}
	upcoming, err := s.store.ListAppointments(ctx, model.AppointmentFilter{
		PractitionerID: practitionerID,
		From:           dayEnd,
		To:             dayEnd.AddDate(0, 0, upcomingDays),
		Statuses:       []model.Status{model.StatusScheduled},
		Limit:          upcomingLimit,
		Ascending:      true,
	})
	if err != nil {
		return nil, err
	}

	v := &DoctorView{Today: today, Upcoming: upcoming}
	patients := map[string]struct{}{}
	for _, a := range today {
		switch a.Status {
		case model.StatusCompleted:
			v.TodayCompleted++
		case model.StatusInProgress:
			v.TodayActive++
		}
		patients[a.PatientID] = struct{}{}
	}
	v.TodayPatients = len(patients)
	return v, nil
}

func (s *Service) patient(ctx context.Context, patientID string) (*PatientView, error) {
	appts, err := s.store.ListAppointments(ctx, model.AppointmentFilter{
		PatientID: patientID,
		Limit:     patientHistoryLimit,
	})
	if err != nil {
		return nil, err
	}
	unread, err := s.store.CountUnreadNotifications(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &PatientView{Appointments: appts, UnreadNotifications: unread}, nil
}
