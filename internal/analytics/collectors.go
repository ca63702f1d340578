package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"microsite/internal/broker"
	"microsite/internal/constants"
	"microsite/pkg/circuitbreaker"
	"microsite/pkg/logging"
	"microsite/pkg/models"
)

// EventSource tags envelopes produced by this service.
const EventSource = "microsite"

// KafkaClient publishes events to the analytics topic.
type KafkaClient struct {
	producer broker.Producer
	topic    string
}

func NewKafkaClient(producer broker.Producer, topic string) *KafkaClient {
	return &KafkaClient{producer: producer, topic: topic}
}

func (k *KafkaClient) TrackEvent(ctx context.Context, event Event) error {
	return k.producer.Publish(ctx, k.topic, ToEnvelope(ctx, event))
}

func ToEnvelope(ctx context.Context, event Event) models.MessageEnvelope {
	return models.MessageEnvelope{
		ID:        event.ID,
		Source:    EventSource,
		Timestamp: event.Timestamp,
		Payload:   event.Properties,
		Metadata: models.Metadata{
			TraceID:   logging.GetTraceID(ctx),
			EventName: event.Name,
			SessionID: event.SessionID,
		},
	}
}

// FromEnvelope is the inverse of ToEnvelope.
func FromEnvelope(env models.MessageEnvelope) Event {
	event := Event{
		ID:         env.ID,
		Name:       env.Metadata.EventName,
		Properties: env.Payload,
		Timestamp:  env.Timestamp,
		SessionID:  env.Metadata.SessionID,
	}
	if u, ok := env.Payload["url"].(string); ok {
		event.URL = u
	}
	if ua, ok := env.Payload["userAgent"].(string); ok {
		event.UserAgent = ua
	}
	return event
}

type webhookBody struct {
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties"`
}

// NewWebhookTrackFunc posts each event as JSON to url through a circuit
// breaker.
func NewWebhookTrackFunc(client *http.Client, url string, headers map[string]string, breaker *circuitbreaker.Wrapper) TrackFunc {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}

	return func(ctx context.Context, name string, properties map[string]interface{}) error {
		body, err := json.Marshal(webhookBody{Name: name, Properties: properties})
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		send := func(ctx context.Context) (struct{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return struct{}{}, fmt.Errorf("failed to build request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			for k, v := range headers {
				req.Header.Set(k, v)
			}

			resp, err := client.Do(req)
			if err != nil {
				return struct{}{}, fmt.Errorf("failed to post event: %w", err)
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)

			if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
				return struct{}{}, fmt.Errorf("collector returned status %d", resp.StatusCode)
			}
			return struct{}{}, nil
		}

		if breaker == nil {
			_, err = send(ctx)
			return err
		}
		_, err = circuitbreaker.Execute(ctx, breaker, send)
		return err
	}
}
