package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type pairCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// Pair identifies the (companion, user) conversation a log line belongs to.
type Pair struct {
	CompanionID string
	UserID      string
}

// ContextFields extracts correlation data from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if p, ok := PairFromContext(ctx); ok {
		if p.CompanionID != "" {
			fields = append(fields, zap.String("companion.id", p.CompanionID))
		}
		if p.UserID != "" {
			fields = append(fields, zap.String("user.id", p.UserID))
		}
	}

	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}

	return fields
}

// WithPair tags ctx with the companion and user ids.
func WithPair(ctx context.Context, companionID, userID string) context.Context {
	return context.WithValue(ctx, pairCtxKey{}, Pair{CompanionID: companionID, UserID: userID})
}

// PairFromContext returns the pair stored by WithPair.
func PairFromContext(ctx context.Context) (Pair, bool) {
	p, ok := ctx.Value(pairCtxKey{}).(Pair)
	return p, ok
}

// WithRequestID tags ctx with a request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the stored logger or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
