package infrastructure

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"mibelpanel/internal/config"
)

func TestInitializeTracing_Disabled(t *testing.T) {
	tracing, err := InitializeTracing(context.Background(), DefaultTracingConfig("mibel-test"), nil)
	require.NoError(t, err)

	_, span := tracing.Provider.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
	span.End()
	assert.NoError(t, tracing.Shutdown(context.Background()))
}

func TestInitializeTracing_Stdout(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultTracingConfig("mibel-test")
	cfg.Enabled = true
	cfg.Output = &out

	tracing, err := InitializeTracing(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracing.Shutdown(context.Background()) })

	assert.Same(t, tracing.Provider, otel.GetTracerProvider())

	ctx, span := otel.Tracer("test").Start(context.Background(), "panel.build")
	assert.True(t, span.IsRecording())

	// Log lines inside a span carry its trace id.
	var console bytes.Buffer
	logger, err := NewLogger(config.LoggingConfig{Output: "console"}, &console)
	require.NoError(t, err)
	logger.InfoContext(ctx, "inside span")
	entry := lastEntry(t, console.Bytes())
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])

	span.End()
	assert.Contains(t, out.String(), "panel.build")
	assert.Contains(t, out.String(), "mibel-test")
}
