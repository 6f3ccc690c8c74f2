package devd

import (
	"context"
	"net/http"
	"strings"

	"github.com/plushhaven/chatkit/internal/identity"
)

type contextKey struct{ name string }

var identityKey = &contextKey{"identity"}

// actorFrom returns the authenticated identity stored by authMiddleware.
func actorFrom(ctx context.Context) identity.Identity {
	who, _ := ctx.Value(identityKey).(identity.Identity)
	return who
}

// authMiddleware verifies the bearer credential and stores the identity in
// the request context. Websocket clients may pass the token as a query
// parameter since browsers cannot set headers on websocket dials.
func authMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing credential")
				return
			}

			who, err := identity.Verify(token, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid credential")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, who)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireRole rejects actors of any other role.
func requireRole(role identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actorFrom(r.Context()).Role != role {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
