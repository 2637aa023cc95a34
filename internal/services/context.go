package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	creatorKey   contextKey = "creator"
	operationKey contextKey = "operation"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCreator annotates context with the creator being resolved.
func WithCreator(ctx context.Context, creator string) context.Context {
	if creator == "" {
		return ctx
	}
	return context.WithValue(ctx, creatorKey, creator)
}

// CreatorFromContext returns the creator name if present.
func CreatorFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(creatorKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOperation annotates context with the resolution entry point being served.
func WithOperation(ctx context.Context, operation string) context.Context {
	if operation == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey, operation)
}

// OperationFromContext returns the operation name if present.
func OperationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
