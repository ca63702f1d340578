package analytics

import (
	"context"
	"fmt"

	"microsite/internal/constants"
	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
)

// BrowserEvent is an event reported by the static site.
type BrowserEvent struct {
	Name       string                 `json:"name" binding:"required"`
	Properties map[string]interface{} `json:"properties"`
}

// Ingestor validates browser events and hands them to the sink.
type Ingestor struct {
	sink   *Sink
	logger logger.Logger
}

func NewIngestor(sink *Sink, log logger.Logger) *Ingestor {
	return &Ingestor{sink: sink, logger: log}
}

func (i *Ingestor) Ingest(ctx context.Context, event BrowserEvent) error {
	if !ValidEventName(event.Name) {
		return apperrors.ErrValidation.
			WithDetail("message", fmt.Sprintf("invalid event name %q", event.Name)).
			WithDetail("field", "name")
	}
	if err := ValidateProperties(event.Properties); err != nil {
		return apperrors.ErrValidation.
			WithDetail("message", err.Error()).
			WithDetail("field", "properties")
	}

	if event.Name == EventPageLoadTime {
		i.checkLoadTime(ctx, event.Properties)
	}

	i.sink.TrackEvent(ctx, event.Name, event.Properties)
	return nil
}

func (i *Ingestor) checkLoadTime(ctx context.Context, props map[string]interface{}) {
	loadTime, ok := numeric(props["loadTime"])
	if !ok {
		return
	}
	if loadTime > float64(constants.SlowPageLoadThreshold.Milliseconds()) {
		i.logger.WarnwCtx(ctx, "Slow page load detected",
			"load_time_ms", loadTime,
			"url", PageFrom(ctx).URL,
		)
	}
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
