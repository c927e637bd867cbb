package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/segmentio/kafka-go"
)

// BatchSource is implemented by *Repository.
type BatchSource interface {
	PublishBatch(ctx context.Context, limit int, send func(context.Context, []Record) error) (int, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	source    BatchSource
	writer    MessageWriter
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

// NewPublisher returns nil when writer is nil (Kafka not configured); Run on nil is a no-op.
func NewPublisher(source BatchSource, writer MessageWriter, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if writer == nil {
		return nil
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		source:    source,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if p == nil {
		return
	}
	defer p.writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain while full batches keep coming.
			for {
				n, err := p.source.PublishBatch(ctx, p.batchSize, p.send)
				if err != nil {
					if ctx.Err() == nil {
						p.logger.Error("outbox publish failed", "err", err)
					}
					break
				}
				if n > 0 {
					p.logger.Debug("outbox batch published", "count", n)
				}
				if n < p.batchSize {
					break
				}
			}
		}
	}
}

func (p *Publisher) send(ctx context.Context, records []Record) error {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, toMessage(ctx, r))
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func toMessage(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	meta := kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType}
	return kafka.Message{
		Topic:   r.EventType,
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: kafkax.InjectTraceHeaders(msgCtx, meta.Headers()),
	}
}
