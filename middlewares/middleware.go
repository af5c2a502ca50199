package middlewares

import (
	"context"
	"net/http"
)

// Handler represents a function that processes an HTTP request and returns an HTTP response or an error.
type Handler func(req *http.Request) (*http.Response, error)

// Middleware represents a function that takes a Handler and returns a new Handler with additional behavior.
type Middleware func(next Handler) Handler

// Chain wraps h with mws in order, so the last middleware is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for _, mw := range mws {
		h = mw(h)
	}
	return h
}

type requestIDKey struct{}

// WithRequestID stores id in ctx for the middlewares further down the chain.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
