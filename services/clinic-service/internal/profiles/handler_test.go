package profiles_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/profiles"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/storage/memstore"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(body string) kafka.Message {
	return kafka.Message{Topic: profiles.TopicProfileUpserted, Value: []byte(body)}
}

func TestHandleUpsertsProfileOnce(t *testing.T) {
	store := memstore.New()
	h := profiles.NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	id := uuid.NewString()
	meta := kafkax.EventMeta{EventID: "evt-1", EventType: profiles.TopicProfileUpserted}

	err := h.Handle(context.Background(), meta, message(`{"user_id":"`+id+`","role":"Doctor","full_name":" Dr. Mehta ","phone":"555"}`))
	require.NoError(t, err)
	p, ok := store.Profile(id)
	require.True(t, ok)
	assert.Equal(t, auth.RoleDoctor, p.Role)
	assert.Equal(t, "Dr. Mehta", p.FullName)

	err = h.Handle(context.Background(), meta, message(`{"user_id":"`+id+`","role":"doctor","full_name":"Renamed"}`))
	require.NoError(t, err)
	p, _ = store.Profile(id)
	assert.Equal(t, "Dr. Mehta", p.FullName, "replayed event is ignored")

	meta.EventID = "evt-2"
	require.NoError(t, h.Handle(context.Background(), meta, message(`{"user_id":"`+id+`","role":"doctor","full_name":"Renamed"}`)))
	p, _ = store.Profile(id)
	assert.Equal(t, "Renamed", p.FullName)
}

func TestHandleDropsMalformedPayloads(t *testing.T) {
	store := memstore.New()
	h := profiles.NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	id := uuid.NewString()

	for i, body := range []string{
		`not json`,
		`{"user_id":"nope","role":"doctor","full_name":"X"}`,
		`{"user_id":"` + id + `","role":"nurse","full_name":"X"}`,
		`{"user_id":"` + id + `","full_name":"X"}`,
		`{"user_id":"` + id + `","role":"doctor","full_name":"  "}`,
		`{"user_id":"` + id + `","role":"doctor","full_name":"X","center_id":"main"}`,
	} {
		meta := kafkax.EventMeta{EventID: uuid.NewString()}
		assert.NoError(t, h.Handle(context.Background(), meta, message(body)), "case %d", i)
	}
	_, ok := store.Profile(id)
	assert.False(t, ok)
}

func TestHandleReturnsStoreErrors(t *testing.T) {
	store := memstore.New()
	store.FailOn("UpsertProfileOnce", errors.New("db down"))
	h := profiles.NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := h.Handle(context.Background(), kafkax.EventMeta{EventID: "e"}, message(`{"user_id":"`+uuid.NewString()+`","role":"patient","full_name":"P"}`))
	assert.Error(t, err)
}
