package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "none")

	err := p.Publish(context.Background(), "dataset.ready", []byte("2024-06-06"), map[string]int{"rows": 3})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "dataset.ready", w.msgs[0].Topic)
	assert.Equal(t, "2024-06-06", string(w.msgs[0].Key))

	var got map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, 3, got["rows"])
}

func TestPublishMessagePassesRawBytes(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "none")

	require.NoError(t, p.PublishMessage(context.Background(), "logs", "plain"))
	require.Len(t, w.msgs, 1)
	assert.Nil(t, w.msgs[0].Key)
	assert.Equal(t, "plain", string(w.msgs[0].Value))
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom}, "none")

	err := p.Publish(context.Background(), "t", nil, "x")
	require.ErrorIs(t, err, boom)
}

func TestPublishBatchEmptyIsNoop(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "none")
	require.NoError(t, p.PublishBatch(context.Background(), "t", nil))
	assert.Empty(t, w.msgs)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brokers are required")
}

func TestProducerConfigValidate(t *testing.T) {
	cfg := defaultProducerConfig()
	WithBrokers([]string{"localhost:9092"})(cfg)
	require.NoError(t, cfg.validate())

	WithCompression("brotli")(cfg)
	WithRequiredAcks(2)(cfg)
	WithMaxAttempts(0)(cfg)
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown compression "brotli"`)
	assert.Contains(t, err.Error(), "required acks")
	assert.Contains(t, err.Error(), "max attempts")
}

func TestCompressionCodecs(t *testing.T) {
	assert.Equal(t, kafka.Compression(0), compressions["none"])
	assert.Equal(t, kafka.Snappy, compressions["snappy"])
	assert.Equal(t, kafka.Zstd, compressions["zstd"])
}
