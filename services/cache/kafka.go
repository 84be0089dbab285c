package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/nujoom/school/core"
	"github.com/nujoom/school/core/points"
)

type (
	// Invalidation is the event telling the web tier to refresh a cached view.
	Invalidation struct {
		Path string    `json:"path"`
		At   time.Time `json:"at"`
	}

	messageWriter interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
		Close() error
	}

	KafkaInvalidator struct {
		writer messageWriter
		logger core.Logger
	}
)

var _ points.Invalidator = (*KafkaInvalidator)(nil)

// batchTimeout bounds how long a single invalidation waits for its batch to fill.
const batchTimeout = 10 * time.Millisecond

func NewKafkaInvalidator(conf *core.Config, logger core.Logger) *KafkaInvalidator {
	return &KafkaInvalidator{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(conf.Kafka.Brokers...),
			Topic:        conf.Kafka.InvalidationTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: batchTimeout,
		},
		logger: logger,
	}
}

// Invalidate publishes an Invalidation keyed by path, so that events for one view stay ordered.
func (inv *KafkaInvalidator) Invalidate(ctx context.Context, path string) error {
	data, err := json.Marshal(Invalidation{Path: path, At: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "encoding invalidation")
	}
	if err = inv.writer.WriteMessages(ctx, kafka.Message{Key: []byte(path), Value: data}); err != nil {
		return errors.Wrapf(err, "publishing invalidation of %s", path)
	}
	inv.logger.Debug("cached view invalidated", map[string]interface{}{"path": path})
	return nil
}

func (inv *KafkaInvalidator) Close() error {
	return inv.writer.Close()
}
