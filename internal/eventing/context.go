package eventing

import "context"

type contextKey string

const (
	envelopeKey    contextKey = "eventing.envelope"
	tenantKey      contextKey = "eventing.tenant_id"
	correlationKey contextKey = "eventing.correlation_id"
	eventIDKey     contextKey = "eventing.event_id"
)

// WithEnvelope attaches the delivery envelope so consumers can read
// the event id and tenant of the bill event they are handling.
func WithEnvelope(ctx context.Context, env Envelope) context.Context {
	return context.WithValue(ctx, envelopeKey, env)
}

// EnvelopeFromContext returns the envelope for the current delivery.
func EnvelopeFromContext(ctx context.Context) (Envelope, bool) {
	env, ok := ctx.Value(envelopeKey).(Envelope)
	return env, ok
}

// WithTenantID pins the tenant for events published from this context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// WithCorrelationID threads a correlation id through a billing run so
// every bill event it emits can be traced back to the run.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey, correlationID)
}

// WithEventID forces the event id of the next publish, used by tests
// and replays that need a known id.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, eventIDKey, eventID)
}

// MetaFromContext assembles envelope metadata from the context,
// falling back to the service's configured tenant.
func MetaFromContext(ctx context.Context, defaultTenantID string) Meta {
	meta := Meta{}
	if tenantID, ok := ctx.Value(tenantKey).(string); ok {
		meta.TenantID = tenantID
	}
	if meta.TenantID == "" {
		meta.TenantID = defaultTenantID
	}
	if corr, ok := ctx.Value(correlationKey).(string); ok {
		meta.CorrelationID = corr
	}
	if id, ok := ctx.Value(eventIDKey).(string); ok {
		meta.EventID = id
	}
	return meta
}
