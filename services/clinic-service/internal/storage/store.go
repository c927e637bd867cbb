// Package storage is the Postgres record store behind the clinic services.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/catalog"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/dashboard"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/feedback"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/notifications"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/profiles"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *db.Pool
}

func New(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

var (
	_ booking.Store       = (*Store)(nil)
	_ catalog.Store       = (*Store)(nil)
	_ notifications.Store = (*Store)(nil)
	_ feedback.Store      = (*Store)(nil)
	_ dashboard.Store     = (*Store)(nil)
	_ profiles.Store      = (*Store)(nil)
)

// InPractitionerTx runs fn holding a transaction-scoped advisory lock on the practitioner,
// so concurrent bookings for one practitioner run one at a time.
func (s *Store) InPractitionerTx(ctx context.Context, practitionerID string, fn func(booking.Tx) error) error {
	return s.withTx(ctx, practitionerID, fn)
}

func (s *Store) InTx(ctx context.Context, fn func(booking.Tx) error) error {
	return s.withTx(ctx, "", fn)
}

func (s *Store) withTx(ctx context.Context, lockKey string, fn func(booking.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if lockKey != "" {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return mapError("commit", tx.Commit(ctx))
}

// mapError turns the SQLSTATEs the services branch on into domain errors.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNoRows(err):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case db.HasCode(err, db.CodeExclusionViolation):
		return fmt.Errorf("%s: %w", op, apperr.ErrSlotUnavailable)
	case db.HasCode(err, db.CodeUniqueViolation):
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	case db.HasCode(err, db.CodeForeignKeyViolation), db.HasCode(err, db.CodeCheckViolation):
		return fmt.Errorf("%s: %w", op, apperr.ErrInvalidRequest)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
