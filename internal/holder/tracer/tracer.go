// Package tracer provides a small tracing abstraction for the holder flows.
//
// Callers depend on the Tracer interface only. OTelTracer forwards to OpenTelemetry and
// NoopTracer is used in tests and when tracing is disabled.
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanFetch             = "holder.fetch"
	SpanProviderPrefix    = "holder.provider."
	SpanIssuance          = "holder.issuance"
	SpanSignerCredentials = "holder.signer.credentials"
)

// Attribute keys. Personal data never goes into attributes.
const (
	AttrEventMode   = "event_mode"
	AttrProviderID  = "provider_id"
	AttrProviders   = "provider_count"
	AttrCall        = "call"
	AttrErrorKind   = "error_kind"
	AttrRetryable   = "error.retryable"
	AttrHTTPStatus  = "http.status_code"
	AttrServerCode  = "server.code"
	AttrEndState    = "end_state"
	AttrEventGroups = "event_group_count"
	AttrCacheHit    = "cache.hit"
)

// Event names.
const (
	EventGroupsStored = "event_groups.stored"
	EventSigned       = "greencards.signed"
)
