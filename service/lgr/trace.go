package lgr

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithRunID installs id as the trace id of ctx so that every record logged
// with that context carries it.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID(id),
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(ctx, sc)
}

// RunID returns the run id installed by WithRunID, if any.
func RunID(ctx context.Context) (uuid.UUID, bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return uuid.Nil, false
	}
	return uuid.UUID(sc.TraceID()), true
}
