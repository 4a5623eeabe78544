package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// DefaultUserHeader is set by the authenticating proxy in front of the api.
const DefaultUserHeader = "X-Forwarded-User"

// HeaderAuthenticator trusts the operator name forwarded by a reverse proxy.
type HeaderAuthenticator struct {
	header string
}

func NewHeaderAuthenticator(header string) *HeaderAuthenticator {
	return &HeaderAuthenticator{header: header}
}

func (h *HeaderAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.Header.Get(h.header))
		if username == "" {
			zap.S().Named("auth").Debugw("missing operator header", "header", h.header, "path", r.URL.Path)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		ctx := NewUserContext(r.Context(), User{Username: username})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
