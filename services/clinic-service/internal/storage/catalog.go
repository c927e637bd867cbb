package storage

import (
	"context"

	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

func (s *Store) ListTherapyTypes(ctx context.Context) ([]model.TherapyType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, duration_days, COALESCE(description, '')
		FROM therapy_types
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TherapyType
	for rows.Next() {
		var t model.TherapyType
		if err := rows.Scan(&t.ID, &t.Name, &t.DurationDays, &t.Description); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListCenters(ctx context.Context) ([]model.Center, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, COALESCE(address, ''), COALESCE(contact_email, '')
		FROM centers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Center
	for rows.Next() {
		var c model.Center
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.ContactEmail); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CountCenters(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM centers`).Scan(&n)
	return n, err
}
