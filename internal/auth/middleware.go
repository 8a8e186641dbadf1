package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nimbus-stack/nimbus/internal/identity"
	"github.com/nimbus-stack/nimbus/internal/platform/httpx"
	"github.com/nimbus-stack/nimbus/internal/shared"
)

// IdentityLookup resolves a token subject to a full identity record.
type IdentityLookup interface {
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
}

// Gate is the per-request authentication filter. It never rejects a request
// itself: requests that cannot be authenticated pass through without a
// principal and the access-control middlewares decide what that means.
type Gate struct {
	service *Service
	lookup  IdentityLookup
	logger  *slog.Logger
}

// NewGate constructs the authentication gate.
func NewGate(service *Service, lookup IdentityLookup, logger *slog.Logger) *Gate {
	return &Gate{service: service, lookup: lookup, logger: logger}
}

// Authenticate extracts and validates the bearer token, installing the
// resolved principal in the request context when the token checks out.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := extractBearer(r.Header.Get("Authorization"))
		if bearer == "" {
			next.ServeHTTP(w, r)
			return
		}

		subject, err := g.service.codec.Subject(bearer)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		// Idempotency guard: a principal installed by an earlier pass wins.
		if shared.PrincipalFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := g.lookup.GetByEmail(r.Context(), subject)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if g.service.TokenValid(bearer, user) {
			ctx := shared.ContextWithPrincipal(r.Context(), user.Principal())
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// Guard enforces access control on routes that require authentication.
type Guard struct{}

// RequireAuth rejects requests without an authenticated principal.
func (Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.PrincipalFromContext(r.Context()) == nil {
			httpx.Error(w, http.StatusUnauthorized, httpx.CodeInvalidToken, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects authenticated requests whose principal lacks the role.
func (Guard) RequireRole(role shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil || principal.Role != role {
				httpx.Error(w, http.StatusForbidden, httpx.CodeAccessDenied, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var _ identity.AccessGuard = Guard{}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
