package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	FormSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Total number of form submissions by outcome (count)",
		},
		[]string{"form", "endpoint", "status"},
	)

	FormSubmissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "form_submission_duration_ms",
			Help:    "Submission pipeline duration in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 1500, 2500, 5000, 10000},
		},
		[]string{"endpoint", "status"},
	)

	FormValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_validation_failures_total",
			Help: "Total number of failed field validations (count)",
		},
		[]string{"field"},
	)

	FeedRenderPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_render_passes_total",
			Help: "Total number of announcement render passes by result (count)",
		},
		[]string{"result"},
	)

	FeedRenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_render_duration_ms",
			Help:    "Announcement render pass duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"result"},
	)

	FeedFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetches_total",
			Help: "Total number of announcement feed fetches by status (count)",
		},
		[]string{"status"},
	)

	FeedActiveAnnouncements = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_active_announcements",
			Help: "Number of active announcements in the last render pass (count)",
		},
	)

	FeedDocumentReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_document_reloads_total",
			Help: "Total number of feed document reloads from disk (count)",
		},
		[]string{"status"},
	)

	AnalyticsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_total",
			Help: "Total number of analytics events forwarded by collector (count)",
		},
		[]string{"event", "collector", "status"},
	)

	AnalyticsEventsArchivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_archived_total",
			Help: "Total number of analytics events written to the archive (count)",
		},
		[]string{"status"},
	)

	ScrollMilestonesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scroll_milestones_total",
			Help: "Total number of scroll depth milestones reached (count)",
		},
		[]string{"milestone"},
	)

	ActivePageSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_page_sessions",
			Help: "Number of page sessions currently tracked in memory (count)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

var registerOnce sync.Once

// RegisterAll registers every collector with the default registry. Safe to
// call more than once.
func RegisterAll() {
	registerOnce.Do(func() {
		RegisterFormMetrics()
		RegisterFeedMetrics()
		RegisterAnalyticsMetrics()
		RegisterBrokerMetrics()
		RegisterCircuitBreakerMetrics()
		RegisterHTTPMetrics()
	})
}

func RegisterFormMetrics() {
	prometheus.MustRegister(FormSubmissionsTotal)
	prometheus.MustRegister(FormSubmissionDuration)
	prometheus.MustRegister(FormValidationFailuresTotal)
}

func RegisterFeedMetrics() {
	prometheus.MustRegister(FeedRenderPassesTotal)
	prometheus.MustRegister(FeedRenderDuration)
	prometheus.MustRegister(FeedFetchesTotal)
	prometheus.MustRegister(FeedActiveAnnouncements)
	prometheus.MustRegister(FeedDocumentReloadsTotal)
}

func RegisterAnalyticsMetrics() {
	prometheus.MustRegister(AnalyticsEventsTotal)
	prometheus.MustRegister(AnalyticsEventsArchivedTotal)
	prometheus.MustRegister(ScrollMilestonesTotal)
	prometheus.MustRegister(ActivePageSessions)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterHTTPMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func IncFormSubmission(form, endpoint, status string) {
	FormSubmissionsTotal.WithLabelValues(form, endpoint, status).Inc()
}

func ObserveFormSubmissionDuration(endpoint, status string, duration time.Duration) {
	FormSubmissionDuration.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

func IncFormValidationFailure(field string) {
	FormValidationFailuresTotal.WithLabelValues(field).Inc()
}

func ObserveFeedRender(result string, duration time.Duration) {
	FeedRenderPassesTotal.WithLabelValues(result).Inc()
	FeedRenderDuration.WithLabelValues(result).Observe(float64(duration.Milliseconds()))
}

func IncFeedFetch(status string) {
	FeedFetchesTotal.WithLabelValues(status).Inc()
}

func SetFeedActiveAnnouncements(count int) {
	FeedActiveAnnouncements.Set(float64(count))
}

func IncFeedDocumentReload(status string) {
	FeedDocumentReloadsTotal.WithLabelValues(status).Inc()
}

func IncAnalyticsEvent(event, collector, status string) {
	AnalyticsEventsTotal.WithLabelValues(event, collector, status).Inc()
}

func IncAnalyticsEventArchived(status string) {
	AnalyticsEventsArchivedTotal.WithLabelValues(status).Inc()
}

func IncScrollMilestone(milestone int) {
	ScrollMilestonesTotal.WithLabelValues(fmt.Sprintf("%d", milestone)).Inc()
}

func SetActivePageSessions(count int) {
	ActivePageSessions.Set(float64(count))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
