package notifications

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

type Store interface {
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)
	// MarkNotificationRead returns apperr.ErrNotFound unless id belongs to userID.
	MarkNotificationRead(ctx context.Context, userID, id string) error
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListForUser returns the caller's notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, unreadOnly bool, limit int) ([]model.Notification, error) {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	out, err := s.store.ListNotifications(ctx, caller.UserID, unreadOnly, limit)
	return out, apperr.Store("list notifications", err)
}

// MarkRead marks one of the caller's notifications read. Another user's notification
// reports ErrNotFound so ids cannot be probed.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return apperr.ErrUnauthenticated
	}
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Invalid("notification_id must be a UUID")
	}
	return apperr.Store("mark notification read", s.store.MarkNotificationRead(ctx, caller.UserID, id))
}

func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return 0, apperr.ErrUnauthenticated
	}
	n, err := s.store.CountUnreadNotifications(ctx, caller.UserID)
	return n, apperr.Store("count unread notifications", err)
}
