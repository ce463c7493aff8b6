// Package auth resolves the authenticated principal from request credentials
// and supplies the scope predicate every domain service applies before
// returning or mutating data.
package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role determines scoping breadth, not field-level permissions.
type Role string

const (
	RoleClinician  Role = "clinician"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClinician, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// AdminTier reports whether the role sees across tenants.
func (r Role) AdminTier() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Principal is the authenticated caller, immutable for the duration of a
// request.
type Principal struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// Scope restricts visible records to those owned by a clinician. A nil
// ClinicianID means no restriction (admin tier).
type Scope struct {
	ClinicianID *uuid.UUID
}

// ScopeFor is the single authorization mechanism: admin-tier roles get an
// unrestricted scope, clinicians are bound to their own records.
func ScopeFor(p Principal) Scope {
	if p.Role.AdminTier() {
		return Scope{}
	}
	id := p.UserID
	return Scope{ClinicianID: &id}
}

// Unrestricted reports whether the scope imposes no owner filter.
func (s Scope) Unrestricted() bool {
	return s.ClinicianID == nil
}

// Allows reports whether a record owned by ownerID is visible under the scope.
func (s Scope) Allows(ownerID uuid.UUID) bool {
	return s.ClinicianID == nil || *s.ClinicianID == ownerID
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying the resolved principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the principal resolved by the middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
