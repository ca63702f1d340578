package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microsite/pkg/circuitbreaker"
	"microsite/pkg/logging"
	"microsite/pkg/models"
)

type recordingProducer struct {
	topic string
	msgs  []models.MessageEnvelope
}

func (p *recordingProducer) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	p.topic = topic
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func TestKafkaClient_PublishesEnvelope(t *testing.T) {
	producer := &recordingProducer{}
	client := NewKafkaClient(producer, "microsite_analytics")
	ctx := logging.WithTraceID(context.Background(), "trace-1")

	err := client.TrackEvent(ctx, Event{ID: "evt-1", Name: EventConversion, SessionID: "sess-1", Timestamp: fixedTime, Properties: map[string]interface{}{"type": "early_access_signup"}})
	require.NoError(t, err)

	require.Len(t, producer.msgs, 1)
	env := producer.msgs[0]
	assert.Equal(t, "microsite_analytics", producer.topic)
	assert.Equal(t, EventSource, env.Source)
	assert.Equal(t, EventConversion, env.Metadata.EventName)
	assert.Equal(t, "sess-1", env.Metadata.SessionID)
	assert.Equal(t, "trace-1", env.Metadata.TraceID)

	back := FromEnvelope(env)
	assert.Equal(t, "evt-1", back.ID)
	assert.Equal(t, EventConversion, back.Name)
}

func TestWebhookTrackFunc(t *testing.T) {
	var got webhookBody
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	breaker := circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("analytics-webhook"))
	track := NewWebhookTrackFunc(server.Client(), server.URL, map[string]string{"Authorization": "Bearer k"}, breaker)

	err := track(context.Background(), "signup", map[string]interface{}{"plan": "pro"})
	require.NoError(t, err)
	assert.Equal(t, "signup", got.Name)
	assert.Equal(t, "pro", got.Properties["plan"])
	assert.Equal(t, "Bearer k", auth)
}

func TestWebhookTrackFunc_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	track := NewWebhookTrackFunc(&http.Client{Timeout: time.Second}, server.URL, nil, nil)

	err := track(context.Background(), "signup", nil)
	assert.ErrorContains(t, err, "status 502")
}
