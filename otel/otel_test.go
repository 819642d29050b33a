package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTraceProviderUnsupportedProto(t *testing.T) {
	t.Parallel()

	_, err := NewTraceProvider(context.Background(), "grpc", "localhost:4317", true)
	assert.ErrorIs(t, err, ErrUnsupportedProto)
}

func TestNewTraceProviderHTTP(t *testing.T) {
	t.Parallel()

	// The exporter connects lazily, so no collector is needed.
	tp, err := NewTraceProvider(context.Background(), "HTTP", "localhost:4318", true)
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer("x"))
}

func TestWriterTraceProvider(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tp, err := NewWriterTraceProvider(&buf)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "click")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "click"`)
	assert.Contains(t, buf.String(), "pagekit")
}

func TestNoopTraceProvider(t *testing.T) {
	t.Parallel()

	tp := NewNoopTraceProvider()
	_, span := tp.Tracer("test").Start(context.Background(), "x")
	assert.False(t, span.IsRecording())
	span.End()
	assert.NoError(t, tp.Shutdown(context.Background()))
}
