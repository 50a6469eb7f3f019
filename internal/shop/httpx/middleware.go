package httpx

import (
	"context"
	"net/http"
)

// HeaderRequester carries the authenticated identity, injected by the
// auth gateway in front of this service. Authentication itself lives
// there; this service only refuses to act without an identity.
const HeaderRequester = "X-Requester"

// contextKey is unexported so no other package can collide with our keys.
type contextKey string

const contextKeyRequester contextKey = "requester"

// RequireRequester rejects requests that arrive without an identity and
// stores the identity in the request context for handlers.
func RequireRequester(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requester := r.Header.Get(HeaderRequester)
		if requester == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "requester identity is required")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyRequester, requester)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requesterFrom(ctx context.Context) string {
	// Comma-ok keeps a missing value from panicking; the middleware
	// guarantees it is set on protected routes.
	requester, _ := ctx.Value(contextKeyRequester).(string)
	return requester
}
