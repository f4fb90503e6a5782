package tracer

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"healthwallet/internal/holder/network"
)

const instrumentationName = "healthwallet/holder"

// OTelTracer forwards holder spans to OpenTelemetry. Provider and signer calls are
// client spans; upstream failures are recorded by kind, never by payload.
type OTelTracer struct {
	tracer trace.Tracer
}

type OTelOption func(*OTelTracer)

// WithOTelTracer injects a pre-configured OpenTelemetry tracer.
func WithOTelTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) {
		o.tracer = t
	}
}

// NewOTel uses the global tracer provider unless a tracer is injected.
func NewOTel(opts ...OTelOption) *OTelTracer {
	t := &OTelTracer{}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer(instrumentationName)
	}
	return t
}

func (t *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(spanKind(name)),
		trace.WithAttributes(toOTelAttributes(attrs)...),
	)
	return ctx, &otelSpan{span: span}
}

func spanKind(name string) trace.SpanKind {
	if name == SpanSignerCredentials || strings.HasPrefix(name, SpanProviderPrefix) {
		return trace.SpanKindClient
	}
	return trace.SpanKindInternal
}

type otelSpan struct {
	span trace.Span
}

// End marks the span failed for a non-nil err. For upstream failures the status
// description is the error kind; the message may echo a server body.
func (s *otelSpan) End(err error) {
	if err == nil {
		s.span.End()
		return
	}
	var se *network.ServerError
	if errors.As(err, &se) {
		s.span.SetAttributes(serverErrorAttributes(se, network.IsRetryable(err))...)
		s.span.SetStatus(codes.Error, string(se.Kind))
	} else {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func serverErrorAttributes(se *network.ServerError, retryable bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrErrorKind, string(se.Kind)),
		attribute.Bool(AttrRetryable, retryable),
	}
	if se.StatusCode != 0 {
		attrs = append(attrs, attribute.Int(AttrHTTPStatus, se.StatusCode))
	}
	if se.Response != nil && se.Response.Code != 0 {
		attrs = append(attrs, attribute.Int(AttrServerCode, se.Response.Code))
	}
	return attrs
}

func (s *otelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(toOTelAttributes(attrs)...)
}

func (s *otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(toOTelAttributes(attrs)...))
}

func toOTelAttributes(attrs []Attribute) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	result := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			result = append(result, attribute.String(a.Key, v))
		case bool:
			result = append(result, attribute.Bool(a.Key, v))
		case int:
			result = append(result, attribute.Int(a.Key, v))
		case int64:
			result = append(result, attribute.Int64(a.Key, v))
		}
	}
	return result
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = (*otelSpan)(nil)
)
