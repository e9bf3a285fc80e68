// Package context carries request-scoped identifiers used by logs and audit entries.
package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}
type businessIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithActor records who is performing the request (staff user, business owner, system).
func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(actorKey{}).(string)
	return value
}

func WithBusinessID(ctx context.Context, businessID string) context.Context {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return ctx
	}
	return context.WithValue(ctx, businessIDKey{}, businessID)
}

func BusinessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(businessIDKey{}).(string)
	return value
}
