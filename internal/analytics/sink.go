package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"microsite/internal/constants"
	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
	"microsite/pkg/logging"
	"microsite/pkg/metrics"
)

// TrackFunc is a tracking function collector, called with the event name and
// its enriched properties.
type TrackFunc func(ctx context.Context, name string, properties map[string]interface{}) error

// TelemetryClient is a collector that accepts whole events.
type TelemetryClient interface {
	TrackEvent(ctx context.Context, event Event) error
}

// Element identifies the page element a visitor interacted with.
type Element struct {
	Tag   string `json:"tag"`
	ID    string `json:"id"`
	Class string `json:"class"`
}

// Sink forwards events to the first configured collector in the order
// tracking function, telemetry client, local log. It never fails its caller.
type Sink struct {
	trackFunc TrackFunc
	client    TelemetryClient
	logger    logger.Logger
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Sink)

func WithTrackFunc(fn TrackFunc) Option {
	return func(s *Sink) { s.trackFunc = fn }
}

func WithTelemetryClient(client TelemetryClient) Option {
	return func(s *Sink) { s.client = client }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Sink) { s.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

func NewSink(log logger.Logger, opts ...Option) *Sink {
	s := &Sink{
		logger:  log,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collector names the collector events are currently routed to.
func (s *Sink) Collector() string {
	switch {
	case s == nil:
		return ""
	case s.trackFunc != nil:
		return constants.CollectorWebhook
	case s.client != nil:
		return constants.CollectorKafka
	default:
		return constants.CollectorLog
	}
}

// TrackEvent enriches properties with timestamp, url and userAgent and hands
// the event to a collector. A nil Sink is a no-op.
func (s *Sink) TrackEvent(ctx context.Context, name string, properties map[string]interface{}) {
	if s == nil {
		return
	}

	collector := s.Collector()
	defer func() {
		if r := recover(); r != nil {
			metrics.IncAnalyticsEvent(name, collector, "panic")
			s.logger.ErrorwCtx(ctx, "Analytics collector panicked",
				"event", name,
				"error", apperrors.RecoverPanic(r),
			)
		}
	}()

	event := s.enrich(ctx, name, properties)

	switch collector {
	case constants.CollectorWebhook, constants.CollectorKafka:
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		var err error
		if collector == constants.CollectorWebhook {
			err = s.trackFunc(sendCtx, event.Name, event.Properties)
		} else {
			err = s.client.TrackEvent(sendCtx, event)
		}
		if err != nil {
			metrics.IncAnalyticsEvent(name, collector, "error")
			s.logger.WarnwCtx(ctx, "Analytics collector failed",
				"event", name,
				"collector", collector,
				"error", err,
				"properties", event.Properties,
			)
			return
		}
		metrics.IncAnalyticsEvent(name, collector, "sent")
		s.logger.DebugwCtx(ctx, "Analytics Event", "event", name, "collector", collector)
	default:
		metrics.IncAnalyticsEvent(name, collector, "logged")
		s.logger.InfowCtx(ctx, "Analytics Event",
			"event", name,
			"properties", event.Properties,
		)
	}
}

func (s *Sink) enrich(ctx context.Context, name string, properties map[string]interface{}) Event {
	page := PageFrom(ctx)
	ts := s.now().UTC()

	props := make(map[string]interface{}, len(properties)+3)
	for k, v := range properties {
		props[k] = v
	}
	props["timestamp"] = ts.Format(TimestampLayout)
	props["url"] = page.URL
	props["userAgent"] = page.UserAgent

	sessionID := page.SessionID
	if sessionID == "" {
		sessionID = logging.GetSessionID(ctx)
	}

	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		Properties: props,
		Timestamp:  ts,
		URL:        page.URL,
		UserAgent:  page.UserAgent,
		SessionID:  sessionID,
	}
}

func (s *Sink) TrackInteraction(ctx context.Context, element Element, action string) {
	s.TrackEvent(ctx, EventUserInteraction, map[string]interface{}{
		"element":      strings.ToLower(element.Tag),
		"elementId":    element.ID,
		"elementClass": element.Class,
		"action":       action,
	})
}

func (s *Sink) TrackFormSubmission(ctx context.Context, formName string, success bool, errorMessage string) {
	s.TrackEvent(ctx, EventFormSubmission, map[string]interface{}{
		"formName":     formName,
		"success":      success,
		"errorMessage": errorMessage,
	})
}
