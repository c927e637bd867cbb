package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/inbox"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

const profileColumns = `id::text, role, full_name, COALESCE(phone, ''), COALESCE(center_id::text, '')`

func scanProfile(row pgx.Row) (model.Profile, error) {
	var (
		p    model.Profile
		role string
	)
	if err := row.Scan(&p.ID, &role, &p.FullName, &p.Phone, &p.CenterID); err != nil {
		return model.Profile{}, err
	}
	r, err := auth.ParseRole(role)
	if err != nil {
		return model.Profile{}, fmt.Errorf("profile %s: %w", p.ID, err)
	}
	p.Role = r
	return p, nil
}

func getProfile(ctx context.Context, q querier, id string) (model.Profile, error) {
	p, err := scanProfile(q.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	return p, mapError("get profile "+id, err)
}

func (s *Store) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	return getProfile(ctx, s.pool, id)
}

func (s *Store) ListProfilesByRole(ctx context.Context, role auth.Role) ([]model.Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE role = $1
		ORDER BY full_name, id
	`, role.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CountProfilesByRole(ctx context.Context) (map[auth.Role]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT role, count(*) FROM profiles GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[auth.Role]int{}
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		r, err := auth.ParseRole(role)
		if err != nil {
			continue
		}
		out[r] = n
	}
	return out, rows.Err()
}

// UpsertProfileOnce records the event in the inbox and applies the profile in one
// transaction. It reports false, without writing, for an event seen before.
func (s *Store) UpsertProfileOnce(ctx context.Context, meta kafkax.EventMeta, p model.Profile) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	fresh, err := inbox.Record(ctx, tx, meta.EventID, meta.EventType)
	if err != nil || !fresh {
		return false, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (id, role, full_name, phone, center_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, '')::uuid)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role,
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			center_id = EXCLUDED.center_id,
			updated_at = now()
	`, p.ID, p.Role.String(), p.FullName, p.Phone, p.CenterID)
	if err != nil {
		return false, mapError("upsert profile", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
