package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"crashd/auth"
	"crashd/domain/apperr"
)

// Authenticator validates bearer tokens into identities
type Authenticator interface {
	Authenticate(accessToken string) (*auth.Identity, error)
}

type contextKey string

const identityKey contextKey = "identity"

// identityFrom returns the authenticated identity attached by requireAuth
func identityFrom(r *http.Request) *auth.Identity {
	identity, _ := r.Context().Value(identityKey).(*auth.Identity)
	return identity
}

func bearerFrom(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// requireAuth rejects requests without a valid access token and attaches the
// identity to the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerFrom(r)
		if token == "" {
			writeError(w, r, apperr.New(apperr.Unauthenticated, "missing bearer token"))
			return
		}
		identity, err := s.authenticator.Authenticate(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	}
}

// requireAdmin layers the admin role and the optional IP allowlist on top of
// requireAuth.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r)
		if !identity.IsAdmin() {
			writeError(w, r, apperr.New(apperr.PermissionDenied, "admin role required"))
			return
		}
		if len(s.adminAllowlist) > 0 && !s.adminAllowlist[clientIP(r)] {
			writeError(w, r, apperr.New(apperr.PermissionDenied, "address not allowed"))
			return
		}
		next(w, r)
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// cors applies the configured origin allowlist to every response and answers
// preflight requests.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if s.allowAllOrigins {
		return true
	}
	return s.allowedOrigins[origin]
}
