package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microsite/internal/config"
	"microsite/internal/logger"
	"microsite/pkg/metrics"
	"microsite/pkg/models"
	"microsite/pkg/retry"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs      chan kafka.Message
	committed []kafka.Message
	mu        sync.Mutex
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	ch := make(chan kafka.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &fakeReader{msgs: ch}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Committed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func (r *fakeReader) Close() error { return nil }

type recordingProducer struct {
	mu     sync.Mutex
	topics []string
	msgs   []models.MessageEnvelope
}

func (p *recordingProducer) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func envelopeMessage(t *testing.T, env models.MessageEnvelope) kafka.Message {
	t.Helper()
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Value: body}
}

func TestKafkaProducer_PublishKeysBySession(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, logger: logger.NopLogger(), serviceName: "test"}

	err := p.Publish(context.Background(), "microsite_analytics", models.MessageEnvelope{
		ID:       "evt-1",
		Metadata: models.Metadata{SessionID: "sess-1", EventName: "page_view"},
	})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "microsite_analytics", w.msgs[0].Topic)
	assert.Equal(t, "sess-1", string(w.msgs[0].Key))
}

func TestKafkaProducer_PublishError(t *testing.T) {
	p := &KafkaProducer{writer: &fakeWriter{err: errors.New("leader not available")}, logger: logger.NopLogger()}

	err := p.Publish(context.Background(), "t", models.MessageEnvelope{ID: "x"})
	assert.ErrorContains(t, err, "leader not available")
}

func newTestConsumer(reader messageReader, dlq Producer) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         config.KafkaConfig{DLQTopic: "dlq"},
		reader:      reader,
		newReader:   func(string) messageReader { return reader },
		logger:      logger.NopLogger(),
		dlqProducer: dlq,
		serviceName: "test",
		retryPolicy: retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1},
		fetchPause:  time.Millisecond,
	}
}

func TestKafkaConsumer_FailedMessageGoesToDLQ(t *testing.T) {
	reader := newFakeReader(
		envelopeMessage(t, models.MessageEnvelope{ID: "ok"}),
		envelopeMessage(t, models.MessageEnvelope{ID: "bad"}),
		kafka.Message{Value: []byte("{not json")},
	)
	dlq := &recordingProducer{}
	c := newTestConsumer(reader, dlq)

	var mu sync.Mutex
	attempts := map[string]int{}
	handler := func(_ context.Context, env models.MessageEnvelope) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[env.ID]++
		if env.ID == "bad" {
			return errors.New("archive unavailable")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Consume(ctx, "microsite_analytics", handler) }()

	require.Eventually(t, func() bool { return reader.Committed() == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	assert.Equal(t, 1, attempts["ok"])
	assert.Equal(t, 2, attempts["bad"])
	mu.Unlock()

	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "dlq", dlq.topics[0])
	assert.Equal(t, "archive unavailable", dlq.msgs[0].Metadata.Delivery["dlq_reason"])
	assert.Equal(t, "microsite_analytics", dlq.msgs[0].Metadata.Delivery["dlq_source_topic"])
}

func TestKafkaConsumer_RecoversHandlerPanic(t *testing.T) {
	reader := newFakeReader(envelopeMessage(t, models.MessageEnvelope{ID: "boom"}))
	dlq := &recordingProducer{}
	c := newTestConsumer(reader, dlq)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = c.Consume(ctx, "topic", func(context.Context, models.MessageEnvelope) error { panic("nil map") })
	}()

	require.Eventually(t, func() bool { return reader.Committed() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, dlq.msgs, 1)
}

func TestKafkaConsumer_ReportsPartitionLag(t *testing.T) {
	first := envelopeMessage(t, models.MessageEnvelope{ID: "a"})
	first.Partition, first.Offset, first.HighWaterMark = 3, 10, 15
	last := envelopeMessage(t, models.MessageEnvelope{ID: "b"})
	last.Partition, last.Offset, last.HighWaterMark = 3, 14, 15
	reader := newFakeReader(first, last)
	c := newTestConsumer(reader, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = c.Consume(ctx, "lag_topic", func(context.Context, models.MessageEnvelope) error { return nil })
	}()

	require.Eventually(t, func() bool { return reader.Committed() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.KafkaConsumerLag.WithLabelValues("test", "lag_topic", "3")))
}

func TestPartitionLag(t *testing.T) {
	assert.Equal(t, int64(4), partitionLag(kafka.Message{Offset: 10, HighWaterMark: 15}))
	assert.Equal(t, int64(0), partitionLag(kafka.Message{Offset: 14, HighWaterMark: 15}))
	assert.Equal(t, int64(0), partitionLag(kafka.Message{}))
}
