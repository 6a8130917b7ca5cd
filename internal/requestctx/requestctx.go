// Package requestctx provides request-scoped values (session_id, user_id)
// set by server middleware and read by the turn pipeline.
package requestctx

import "context"

type contextKey struct{ name string }

var (
	sessionIDKey = &contextKey{"session_id"}
	userIDKey    = &contextKey{"user_id"}
)

// SetSessionID stores session_id in the context.
func SetSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionID returns the session_id from context, or "" if not set.
func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// SetUserID stores user_id in the context.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the user_id from context, or "" if not set.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}
