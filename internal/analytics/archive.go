package analytics

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
	"microsite/pkg/metrics"
	"microsite/pkg/models"
)

// eventInserter is the subset of *mongo.Collection the archiver uses.
type eventInserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

type ArchivedEvent struct {
	EventID    string                 `bson:"event_id"`
	Name       string                 `bson:"name"`
	Properties map[string]interface{} `bson:"properties"`
	Timestamp  time.Time              `bson:"timestamp"`
	URL        string                 `bson:"url,omitempty"`
	UserAgent  string                 `bson:"user_agent,omitempty"`
	SessionID  string                 `bson:"session_id,omitempty"`
	TraceID    string                 `bson:"trace_id,omitempty"`
	ArchivedAt time.Time              `bson:"archived_at"`
}

// Archiver stores analytics envelopes consumed from the broker in MongoDB.
type Archiver struct {
	events eventInserter
	logger logger.Logger
	now    func() time.Time
}

func NewArchiver(collection *mongo.Collection, log logger.Logger) *Archiver {
	return newArchiver(collection, log)
}

func newArchiver(events eventInserter, log logger.Logger) *Archiver {
	return &Archiver{events: events, logger: log, now: time.Now}
}

// Handle archives one envelope. Redelivered envelopes hit the unique
// event_id index and are acknowledged without a second insert.
func (a *Archiver) Handle(ctx context.Context, env models.MessageEnvelope) error {
	event := FromEnvelope(env)
	if event.ID == "" || !ValidEventName(event.Name) {
		metrics.IncAnalyticsEventArchived("invalid")
		return apperrors.ErrValidation.
			WithDetail("message", "envelope is not an analytics event").
			WithDetail("envelope_id", env.ID).
			AsFatal()
	}

	doc := ArchivedEvent{
		EventID:    event.ID,
		Name:       event.Name,
		Properties: event.Properties,
		Timestamp:  event.Timestamp,
		URL:        event.URL,
		UserAgent:  event.UserAgent,
		SessionID:  event.SessionID,
		TraceID:    env.Metadata.TraceID,
		ArchivedAt: a.now().UTC(),
	}

	if _, err := a.events.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			metrics.IncAnalyticsEventArchived("duplicate")
			a.logger.DebugwCtx(ctx, "Analytics event already archived", "event_id", event.ID)
			return nil
		}
		metrics.IncAnalyticsEventArchived("error")
		return apperrors.ErrServiceUnavailable.WithCause(err)
	}

	metrics.IncAnalyticsEventArchived("stored")
	return nil
}
