// Package profiles keeps the local copy of identity-provider users current.
package profiles

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
	"github.com/segmentio/kafka-go"
)

const TopicProfileUpserted = "identity.profile.upserted.v1"

type Store interface {
	// UpsertProfileOnce applies p unless eventID was already processed, atomically.
	UpsertProfileOnce(ctx context.Context, meta kafkax.EventMeta, p model.Profile) (bool, error)
}

type payload struct {
	UserID   string    `json:"user_id"`
	Role     auth.Role `json:"role"`
	FullName string    `json:"full_name"`
	Phone    string    `json:"phone"`
	CenterID string    `json:"center_id"`
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Handle upserts the profile carried by msg. Malformed payloads are logged and dropped;
// only store errors are returned so the consumer retries them.
func (h *Handler) Handle(ctx context.Context, meta kafkax.EventMeta, msg kafka.Message) error {
	p, err := decode(msg.Value)
	if err != nil {
		h.logger.Error("invalid profile event", "err", err, "event_id", meta.EventID)
		return nil
	}
	applied, err := h.store.UpsertProfileOnce(ctx, meta, p)
	if err != nil {
		return err
	}
	if !applied {
		h.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}
	h.logger.Info("profile synced", "user_id", p.ID, "role", p.Role)
	return nil
}

type decodeError string

func (e decodeError) Error() string { return string(e) }

func decode(raw []byte) (model.Profile, error) {
	var pl payload
	if err := json.Unmarshal(raw, &pl); err != nil {
		return model.Profile{}, err
	}
	pl.UserID = strings.TrimSpace(pl.UserID)
	if _, err := uuid.Parse(pl.UserID); err != nil {
		return model.Profile{}, decodeError("user_id must be a UUID")
	}
	if !pl.Role.Valid() {
		return model.Profile{}, decodeError("role is required")
	}
	centerID := strings.TrimSpace(pl.CenterID)
	if centerID != "" {
		if _, err := uuid.Parse(centerID); err != nil {
			return model.Profile{}, decodeError("center_id must be a UUID")
		}
	}
	name := strings.TrimSpace(pl.FullName)
	if name == "" {
		return model.Profile{}, decodeError("full_name is required")
	}
	return model.Profile{
		ID:       pl.UserID,
		Role:     pl.Role,
		FullName: name,
		Phone:    strings.TrimSpace(pl.Phone),
		CenterID: centerID,
	}, nil
}
