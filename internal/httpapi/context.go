package httpapi

import "context"

type requestIDCtxKey struct{}

// ContextWithRequestID attaches a request's correlation id to its context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// RequestIDFromContext returns the correlation id attached by the
// request-id middleware, or "" if none was attached.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDCtxKey{}).(string)
	return v
}
