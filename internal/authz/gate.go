// Package authz evaluates role and ownership predicates against the
// principal resolved for a request.  It never touches tokens or sessions;
// the JWT middleware resolves the principal and handlers pass it down
// explicitly.
package authz

import (
	"context"
	"errors"

	"github.com/addwise/addwise-hub/internal/model"
)

// ErrUnauthenticated is returned when no principal was resolved.
var ErrUnauthenticated = errors.New("not authenticated")

// ErrForbidden is returned when the principal fails a role or ownership
// check.  Handlers translate this into an HTTP 403 response.
var ErrForbidden = errors.New("access denied")

// Principal is the resolved identity of the caller.
type Principal struct {
	UserID string
	Role   string
}

// Anonymous is the zero principal used for unauthenticated requests.
var Anonymous = Principal{}

// Authenticated reports whether the principal carries a user id.
func (p Principal) Authenticated() bool { return p.UserID != "" }

// HasRole reports whether the principal's normalized role is one of roles.
func (p Principal) HasRole(roles ...string) bool {
	role := model.NormalizeRole(p.Role)
	if role == "" {
		return false
	}
	for _, r := range roles {
		if model.NormalizeRole(r) == role {
			return true
		}
	}
	return false
}

// RequireAuthenticated fails with ErrUnauthenticated for the anonymous principal.
func RequireAuthenticated(p Principal) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

// RequireRole fails unless the principal is authenticated and holds one of
// the allowed roles.
func RequireRole(p Principal, allowed ...string) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if !p.HasRole(allowed...) {
		return ErrForbidden
	}
	return nil
}

// RequireSuperAdmin is RequireRole(p, superadmin).
func RequireSuperAdmin(p Principal) error {
	return RequireRole(p, model.RoleSuperAdmin)
}

// RequireOwnerOrRole succeeds when the principal owns the resource or holds
// one of the allowed roles.  An empty owner id never matches, so unowned
// resources are reserved for the allowed roles.
func RequireOwnerOrRole(p Principal, ownerID string, allowed ...string) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if ownerID != "" && p.UserID == ownerID {
		return nil
	}
	if p.HasRole(allowed...) {
		return nil
	}
	return ErrForbidden
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, or Anonymous.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Anonymous
}
