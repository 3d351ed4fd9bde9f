package web

import (
	"context"
	"net/http"

	"agora/cmd/identity"
)

type principalKey struct{}

// ContextWithPrincipal stores the authenticated principal on the context.
func ContextWithPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (identity.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(identity.Principal)
	return p, ok
}

// RequirePrincipal fetches the principal or writes a 401 and reports false.
func RequirePrincipal(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return identity.Principal{}, false
	}
	return p, true
}
