package inbox

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
)

// Record marks eventID as processed inside tx. It reports false when the event was
// already processed, in which case the caller should skip its side effects.
func Record(ctx context.Context, tx pgx.Tx, eventID, eventType string) (bool, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if db.HasCode(err, db.CodeUniqueViolation) {
		return false, nil
	}
	return false, err
}
