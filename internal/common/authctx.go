package common

import "context"

type ctxKey string

const (
	bearerTokenKey ctxKey = "auth/bearer-token"
	actingTokenKey ctxKey = "auth/acting-token"
)

// WithBearerToken stores the caller's opaque bearer token on the context. The
// gateway never parses or validates tokens; the distributor backend does.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey, token)
}

// BearerToken extracts the opaque bearer token from the context if present.
func BearerToken(ctx context.Context) (string, bool) {
	v := ctx.Value(bearerTokenKey)
	if v == nil {
		return "", false
	}
	token, ok := v.(string)
	return token, ok && token != ""
}

// WithActingToken stores an impersonation token letting an agent or admin act
// as a specific client. Opaque, forwarded verbatim to the backend.
func WithActingToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, actingTokenKey, token)
}

// ActingToken extracts the impersonation token from the context if present.
func ActingToken(ctx context.Context) (string, bool) {
	v := ctx.Value(actingTokenKey)
	if v == nil {
		return "", false
	}
	token, ok := v.(string)
	return token, ok && token != ""
}

// EffectiveToken returns the token outbound backend calls should carry: the
// impersonation token when an agent acts as a client, the caller's own token
// otherwise.
func EffectiveToken(ctx context.Context) (string, bool) {
	if token, ok := ActingToken(ctx); ok {
		return token, true
	}
	return BearerToken(ctx)
}
