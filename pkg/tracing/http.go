package tracing

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"microsite/pkg/logging"
)

// GinMiddleware starts a server span per request and copies its trace id into
// the logging context.
func GinMiddleware(serviceName string) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		otelgin.Middleware(serviceName),
		func(c *gin.Context) {
			sc := trace.SpanContextFromContext(c.Request.Context())
			if sc.HasTraceID() {
				ctx := logging.WithTraceID(c.Request.Context(), sc.TraceID().String())
				c.Request = c.Request.WithContext(ctx)
			}
			c.Next()
		},
	}
}
