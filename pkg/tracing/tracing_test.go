package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestInitWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init("liftcall", "test", &buf))
	defer func() { _ = Shutdown(context.Background()) }()

	_, span := StartSpan(context.Background(), "remote.positions", trace.SpanKindClient)
	EndSpan(span, nil)

	assert.Contains(t, buf.String(), "remote.positions")
}

func TestSpanStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, InitWithExporter("liftcall", "test", exporter))
	defer func() { _ = Shutdown(context.Background()) }()

	ctx, parent := StartSpan(context.Background(), "dispatch", trace.SpanKindInternal)
	_, child := StartSpan(ctx, "remote.assigned_elevator", trace.SpanKindClient, attribute.Int("floor", 3))
	child.SetStatusFromHTTPCode(502)
	child.End()
	EndSpan(parent, errors.New("assignment failed"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "remote.assigned_elevator", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())

	assert.Equal(t, "dispatch", spans[1].Name)
	assert.Equal(t, "assignment failed", spans[1].Status.Description)
}

func TestNilSpanIsNoop(t *testing.T) {
	var s *Span
	assert.NotPanics(t, func() {
		s.SetAttributes(attribute.String("k", "v"))
		s.SetStatusFromHTTPCode(200)
		EndSpan(s, errors.New("ignored"))
	})
}
