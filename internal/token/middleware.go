package token

import (
	"context"
	"net/http"
	"strings"

	"github.com/osomejk/stonedesk-gateway/internal/common"
)

// ImpersonateHeader carries the client-scoped token an agent acts under. The
// gateway swaps it in as the effective credential for backend calls but keeps
// the agent's own token for audit logging.
const ImpersonateHeader = "X-Impersonate-Token"

// Middleware extracts opaque session tokens from requests. Tokens are treated
// as bearer capabilities and forwarded verbatim; the gateway never inspects or
// decodes them.
type Middleware struct {
	Cookie string
}

// Attach puts any present tokens on the request context without enforcing
// them. Public routes use this so handlers can branch on authentication.
func (m Middleware) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(m.contextFor(r)))
	})
}

// Require rejects requests that carry no session token.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := m.contextFor(r)
		if _, ok := common.BearerToken(ctx); !ok {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) contextFor(r *http.Request) context.Context {
	ctx := r.Context()
	if bearer := m.extractBearer(r); bearer != "" {
		ctx = common.WithBearerToken(ctx, bearer)
	}
	if acting := strings.TrimSpace(r.Header.Get(ImpersonateHeader)); acting != "" {
		ctx = common.WithActingToken(ctx, acting)
	}
	return ctx
}

func (m Middleware) extractBearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.Cookie != "" {
		if cookie, err := r.Cookie(m.Cookie); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
