package constants

import "time"

const (
	ServiceName = "microsite-service"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixIdempotency = "signup:idem:"
	CacheKeyPrefixSession     = "session:"
)

const (
	DefaultAnalyticsTopic = "microsite_analytics"
	DefaultMongoDBName    = "microsite"
	AnalyticsCollection   = "analytics_events"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	EarlyAccessFormName      = "early_access_form"
	DefaultSubmissionLatency = 1500 * time.Millisecond
	DefaultFailureRate       = 0.05
)

// Submission endpoint strategies.
const (
	EndpointSimulated = "simulated"
	EndpointStore     = "store"
	EndpointForward   = "forward"
)

// Analytics collectors, in preference order.
const (
	CollectorWebhook = "webhook"
	CollectorKafka   = "kafka"
	CollectorLog     = "log"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

const (
	FeedPath          = "/data/announcements.json"
	FeedContainerID   = "announcements-list"
	SuccessModalID    = "success-modal"
	EarlyAccessFormID = "early-access-form"
)

// VisibilityVariable names each announcement inside a visibility expression.
const VisibilityVariable = "announcement"

const (
	SlowPageLoadThreshold = 3000 * time.Millisecond
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)
