package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(false, nil)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	EndSpan(span, nil)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(true, &buf)
	require.NoError(t, err)
	defer InitTracing(false, nil)

	_, span := StartSpan(context.Background(), "stage.promotion", attribute.String("mode", "sync"))
	assert.True(t, span.SpanContext().IsValid())
	EndSpan(span, errors.New("tracker unreachable"))

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "stage.promotion")
	assert.Contains(t, buf.String(), "tracker unreachable")
}
