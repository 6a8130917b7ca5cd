package server

import (
	"net/http"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/requestctx"
)

// Session and user headers. The dispatcher trusts the fronting channel
// adapter (web widget, messenger bridge) to authenticate users; these
// headers carry its verdict.
const (
	HeaderSessionID = "X-Session-ID"
	HeaderUserID    = "X-User-ID"
)

// SessionMiddleware copies the session and user headers into the request
// context so downstream stages and logs can reference them.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if sid := r.Header.Get(HeaderSessionID); sid != "" {
			ctx = requestctx.SetSessionID(ctx, sid)
		}
		if uid := r.Header.Get(HeaderUserID); uid != "" {
			ctx = requestctx.SetUserID(ctx, uid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitMiddleware rejects requests exceeding the per-session budget
// with 429. Sessions without a header share the client IP bucket.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestctx.SessionID(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}
			if !rl.Allow(key) {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests; slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
