package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/broker/messages"
	"github.com/abakymuk/nsl-sub001/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// LoadSyncedHandler applies one decoded load.synced message. A returned error
// stops the consumer with the offset left uncommitted.
type LoadSyncedHandler func(ctx context.Context, msg messages.LoadSynced) error

type Consumer struct {
	r     messageReader
	topic string
	now   func() time.Time
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return newConsumerWithReader(kafka.NewReader(cfg), topic)
}

func newConsumerWithReader(r messageReader, topic string) *Consumer {
	if topic == "" {
		topic = messages.TopicLoadSynced
	}
	return &Consumer{r: r, topic: topic, now: time.Now}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// ConsumeLoadSynced blocks until ctx is done or the handler fails. A message
// that does not decode is committed and dropped so the partition keeps moving.
func (c *Consumer) ConsumeLoadSynced(ctx context.Context, handler LoadSyncedHandler) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}

		var m messages.LoadSynced
		if err := json.Unmarshal(msg.Value, &m); err != nil {
			metrics.BrokerMessagesConsumed.WithLabelValues(c.topic, "malformed").Inc()
			slog.Warn("drop malformed load.synced message",
				"partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key), "error", err.Error())
		} else {
			if err := handler(ctx, m); err != nil {
				// Важно: commit делаем только при успехе, иначе потеряем сообщение.
				metrics.BrokerMessagesConsumed.WithLabelValues(c.topic, "error").Inc()
				return errors.Wrapf(err, "handle load %d", m.LoadID)
			}
			metrics.BrokerMessagesConsumed.WithLabelValues(c.topic, "ok").Inc()
			if !msg.Time.IsZero() {
				metrics.BrokerMessageAge.WithLabelValues(c.topic).Observe(c.now().Sub(msg.Time).Seconds())
			}
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			metrics.BrokerCommitErrors.WithLabelValues(c.topic).Inc()
			return errors.Wrap(err, "commit message")
		}
	}
}
