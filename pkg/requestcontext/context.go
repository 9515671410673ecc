// Package requestcontext carries request-scoped values that services and the
// audit recorder read without depending on net/http. Middleware sets them;
// tests inject them directly.
package requestcontext

import (
	"context"
	"time"

	id "estateclaims/pkg/domain"
)

type (
	callerKey    struct{}
	clientKey    struct{}
	requestIDKey struct{}
	timeKey      struct{}
)

// Client describes where a request came from. It is copied onto every audit
// entry written while serving the request.
type Client struct {
	IP        string
	UserAgent string
	Device    string
}

// Caller is the authenticated caller. Services still take the caller as an
// argument; this copy serves middleware and handlers.
func Caller(ctx context.Context) (id.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(id.Caller)
	return c, ok
}

func WithCaller(ctx context.Context, c id.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// ClientInfo returns the zero Client outside of HTTP requests.
func ClientInfo(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(requestIDKey{}).(string)
	return reqID
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now is the request's pinned clock, so one request stamps every row and
// audit entry with the same instant. Workers without one get the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(timeKey{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeKey{}, t)
}
