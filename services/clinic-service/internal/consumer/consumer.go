package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler applies one event. Implementations deduplicate on meta.EventID in the same
// transaction as their side effects.
type Handler interface {
	Handle(ctx context.Context, meta kafkax.EventMeta, msg kafka.Message) error
}

type HandlerFunc func(ctx context.Context, meta kafkax.EventMeta, msg kafka.Message) error

func (f HandlerFunc) Handle(ctx context.Context, meta kafkax.EventMeta, msg kafka.Message) error {
	return f(ctx, meta, msg)
}

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader   MessageReader
	logger   *slog.Logger
	handler  Handler
	attempts int
	backoff  time.Duration
}

type Config struct {
	// Attempts is how many times a failing message is retried before it is skipped.
	Attempts int
	Backoff  time.Duration
}

func New(logger *slog.Logger, reader MessageReader, handler Handler, cfg Config) *Consumer {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Consumer{
		reader:   reader,
		logger:   logger,
		handler:  handler,
		attempts: cfg.Attempts,
		backoff:  cfg.Backoff,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		if !c.process(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// process returns false only when ctx is cancelled mid-retry; the message stays uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	meta := kafkax.ExtractEventMeta(msg)
	msgCtx := kafkax.ExtractTraceContext(ctx, msg)
	spanCtx, span := otel.Tracer("kafka").Start(msgCtx, "kafka.consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.message.id", meta.EventID),
		),
	)
	defer span.End()

	for attempt := 1; ; attempt++ {
		err := c.handler.Handle(spanCtx, meta, msg)
		if err == nil {
			return true
		}
		span.RecordError(err)
		if attempt >= c.attempts {
			span.SetStatus(codes.Error, "skipped after retries")
			c.logger.Error("event skipped after retries", "err", err, "event_id", meta.EventID, "event_type", meta.EventType, "attempts", attempt)
			return true
		}
		c.logger.Warn("event handler failed; retrying", "err", err, "event_id", meta.EventID, "attempt", attempt)
		if !sleep(ctx, c.backoff*time.Duration(attempt)) {
			return false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
