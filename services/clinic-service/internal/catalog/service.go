package catalog

import (
	"context"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

type Store interface {
	ListTherapyTypes(ctx context.Context) ([]model.TherapyType, error)
	ListProfilesByRole(ctx context.Context, role auth.Role) ([]model.Profile, error)
	ListCenters(ctx context.Context) ([]model.Center, error)
}

// Service serves the read-only reference data patients pick from when booking.
// Every list is ordered by name.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) ListTherapyTypes(ctx context.Context) ([]model.TherapyType, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, apperr.ErrUnauthenticated
	}
	out, err := s.store.ListTherapyTypes(ctx)
	return out, apperr.Store("list therapy types", err)
}

func (s *Service) ListPractitioners(ctx context.Context) ([]model.Profile, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, apperr.ErrUnauthenticated
	}
	out, err := s.store.ListProfilesByRole(ctx, auth.RoleDoctor)
	return out, apperr.Store("list practitioners", err)
}

func (s *Service) ListCenters(ctx context.Context) ([]model.Center, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, apperr.ErrUnauthenticated
	}
	out, err := s.store.ListCenters(ctx)
	return out, apperr.Store("list centers", err)
}
