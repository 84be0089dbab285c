package cachesvc

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nujoom/school/core"
	"github.com/nujoom/school/testutil"
)

type writerMock struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *writerMock) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *writerMock) Close() error { return nil }

func TestKafkaInvalidator_Invalidate(t *testing.T) {
	w := new(writerMock)
	inv := &KafkaInvalidator{writer: w, logger: testutil.NewLogger()}

	require.NoError(t, inv.Invalidate(context.Background(), "/profile/s-1"))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "/profile/s-1", string(w.msgs[0].Key))

	var event Invalidation
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, "/profile/s-1", event.Path)
	assert.False(t, event.At.IsZero())

	w.err = errors.New("broker down")
	err := inv.Invalidate(context.Background(), "/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestLogInvalidator_Invalidate(t *testing.T) {
	inv := NewLogInvalidator(testutil.NewLogger())
	assert.NoError(t, inv.Invalidate(context.Background(), "/"))
}

func TestNewKafkaInvalidator(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Kafka.Brokers = []string{"localhost:9092"}

	inv := NewKafkaInvalidator(conf, testutil.NewLogger())
	defer func() { _ = inv.Close() }()

	w, ok := inv.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "cache.invalidate", w.Topic)
	assert.Equal(t, batchTimeout, w.BatchTimeout)
	assert.Less(t, int64(w.BatchTimeout), int64(100*time.Millisecond))
}
