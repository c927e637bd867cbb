package storage

import (
	"context"

	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

const feedbackColumns = `f.id::text, f.appointment_id::text, f.patient_id::text, f.rating, f.symptoms, f.improvement_notes, f.created_at`

// InsertFeedback maps the unique appointment_id violation to apperr.ErrConflict.
func (s *Store) InsertFeedback(ctx context.Context, fb model.Feedback) (model.Feedback, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO feedbacks (appointment_id, patient_id, rating, symptoms, improvement_notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, created_at
	`, fb.AppointmentID, fb.PatientID, fb.Rating, fb.Symptoms, fb.ImprovementNotes).Scan(&fb.ID, &fb.CreatedAt)
	return fb, mapError("insert feedback", err)
}

func (s *Store) ListFeedback(ctx context.Context, filter model.FeedbackFilter) ([]model.Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedbacks f
		JOIN appointments a ON a.id = f.appointment_id
		WHERE ($1 = '' OR a.practitioner_id::text = $1)
		ORDER BY f.created_at DESC, f.id
		LIMIT NULLIF($2, 0)
	`, filter.PractitionerID, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Feedback
	for rows.Next() {
		var fb model.Feedback
		if err := rows.Scan(&fb.ID, &fb.AppointmentID, &fb.PatientID, &fb.Rating, &fb.Symptoms, &fb.ImprovementNotes, &fb.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// AverageRating averages the newest recent ratings; recent <= 0 averages all of them.
func (s *Store) AverageRating(ctx context.Context, recent int) (float64, int, error) {
	var limit any
	if recent > 0 {
		limit = recent
	}
	var (
		avg float64
		n   int
	)
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(rating), 0)::float8, count(*)
		FROM (SELECT rating FROM feedbacks ORDER BY created_at DESC LIMIT $1) recent
	`, limit).Scan(&avg, &n)
	return avg, n, err
}
