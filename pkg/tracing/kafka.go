package tracing

import (
	"context"
	"sort"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const consumerTracer = "microsite-kafka"

// InjectTraceContext adds the propagation headers for ctx to headers,
// replacing any stale ones.
func InjectTraceContext(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	keys := carrier.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		headers = setHeader(headers, key, carrier.Get(key))
	}
	return headers
}

func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, h := range headers {
		carrier.Set(strings.ToLower(h.Key), string(h.Value))
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

func setHeader(headers []kafka.Header, key, value string) []kafka.Header {
	for i := range headers {
		if strings.EqualFold(headers[i].Key, key) {
			headers[i].Value = []byte(value)
			return headers
		}
	}
	return append(headers, kafka.Header{Key: key, Value: []byte(value)})
}

// StartSpanFromKafkaMessage continues the producer's trace for a consumed
// message.
func StartSpanFromKafkaMessage(ctx context.Context, operationName string, headers []kafka.Header) (context.Context, trace.Span) {
	return GetTracer(consumerTracer).Start(ExtractTraceContext(ctx, headers), operationName,
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}
