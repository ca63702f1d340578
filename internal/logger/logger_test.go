package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"microsite/pkg/logging"
)

func TestInfowCtx_AddsContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core, "microsite-service")

	ctx := logging.WithRequestID(context.Background(), "req-1")
	ctx = logging.WithSessionID(ctx, "sess-1")
	log.InfowCtx(ctx, "form submitted", "form", "early_access_form")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "sess-1", fields["session_id"])
	assert.Equal(t, "microsite-service", fields["service_name"])
	assert.Equal(t, "early_access_form", fields["form"])
}

func TestNamed_KeepsServiceName(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewWithCore(core, "microsite-service").Named("feed")

	log.WarnwCtx(context.Background(), "fetch failed")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "feed", entry.LoggerName)
	assert.Equal(t, "microsite-service", entry.ContextMap()["service_name"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}
