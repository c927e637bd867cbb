package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	for {
		r.mu.Lock()
		if len(r.queue) > 0 {
			msg := r.queue[0]
			r.queue = r.queue[1:]
			r.mu.Unlock()
			return msg, nil
		}
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func message(id string) kafka.Message {
	return kafka.Message{
		Topic:   "identity.profile.upserted.v1",
		Headers: kafkax.EventMeta{EventID: id, EventType: "identity.profile.upserted.v1"}.Headers(),
	}
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{message("e1"), message("e2")}}

	var mu sync.Mutex
	calls := map[string]int{}
	handler := HandlerFunc(func(_ context.Context, meta kafkax.EventMeta, _ kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls[meta.EventID]++
		if meta.EventID == "e1" && calls["e1"] < 2 {
			return errors.New("transient")
		}
		if meta.EventID == "e2" {
			return errors.New("permanent")
		}
		return nil
	})

	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), reader, handler, Config{Attempts: 3, Backoff: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { c.Run(ctx); close(done) }()

	require.Eventually(t, func() bool { return reader.committedCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls["e1"])
	assert.Equal(t, 3, calls["e2"])
	assert.True(t, reader.closed)
}
