package context

import (
	stdcontext "context"
	"strings"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	actorTypeKey ctxKey = "actor_type"
	actorIDKey   ctxKey = "actor_id"
)

// WithRequestID stores the inbound request id.
func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	return stdcontext.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

// RequestIDFromContext returns the request id or an empty string.
func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithActor records who is acting on the request (user, admin, system).
func WithActor(ctx stdcontext.Context, actorType, actorID string) stdcontext.Context {
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	ctx = stdcontext.WithValue(ctx, actorTypeKey, strings.TrimSpace(actorType))
	return stdcontext.WithValue(ctx, actorIDKey, strings.TrimSpace(actorID))
}

// ActorFromContext returns the actor type and id recorded on ctx.
func ActorFromContext(ctx stdcontext.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	actorType, _ := ctx.Value(actorTypeKey).(string)
	actorID, _ := ctx.Value(actorIDKey).(string)
	return actorType, actorID
}
