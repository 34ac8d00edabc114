package gateway

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID      string
	WorkspaceID string
	Plan        string
}

// Authenticator validates bearer tokens.
type Authenticator interface {
	Authenticate(token string) (*Principal, error)
}

type authEntry struct {
	token     []byte
	principal *Principal
}

// StaticTokenAuth authenticates clients against a static token list
// using constant-time comparison to prevent timing attacks.
type StaticTokenAuth struct {
	entries []authEntry
}

// NewStaticTokenAuth builds an authenticator from configured tokens. An
// empty plan means the default plan.
func NewStaticTokenAuth(tokens []config.TokenConfig) *StaticTokenAuth {
	a := &StaticTokenAuth{
		entries: make([]authEntry, len(tokens)),
	}
	for i, t := range tokens {
		plan := t.Plan
		if plan == "" {
			plan = domain.DefaultPlanID
		}
		a.entries[i] = authEntry{
			token:     []byte(t.Token),
			principal: &Principal{UserID: t.UserID, WorkspaceID: t.WorkspaceID, Plan: plan},
		}
	}
	return a
}

// Authenticate returns the principal if the token is valid. Every entry is
// compared so the time taken does not depend on which token matched.
func (s *StaticTokenAuth) Authenticate(token string) (*Principal, error) {
	if token == "" {
		return nil, domain.ErrGatewayAuthFailed
	}
	tokenBytes := []byte(token)
	var found *Principal
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(tokenBytes, e.token) == 1 {
			found = e.principal
		}
	}
	if found == nil {
		return nil, domain.ErrGatewayAuthFailed
	}
	p := *found
	return &p, nil
}

type principalKey struct{}

// ContextWithPrincipal returns ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by RequireAuth.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(auth Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		p, err := auth.Authenticate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}
