package cid

import (
	"context"

	"github.com/segmentio/ksuid"
)

// ContextKey is the type used for storing the correlation id in a context.
type ContextKey struct{}

// HeaderName is the HTTP header used to propagate the correlation id.
// Incoming requests that already carry it keep their value; otherwise the
// middleware generates a fresh KSUID.
const HeaderName = "X-WK-CID"

// AttributeName is the span attribute key used to attach the CID to spans.
const AttributeName = "wk.cid"

// New generates a fresh correlation id.
func New() string {
	return ksuid.New().String()
}

// WithCID returns a new context containing the provided correlation id.
func WithCID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, ContextKey{}, cid)
}

// FromContext extracts the correlation id from context, if present.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ContextKey{}).(string); ok {
		return v
	}
	return ""
}
