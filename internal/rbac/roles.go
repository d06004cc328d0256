// Package rbac provides explicit capability checks for role-gated entry
// points. Role sets are plain mapping-backed sets; the assignment mechanism
// (who grants roles) is external governance, surfaced here only as Grant and
// Revoke calls.
package rbac

import (
	"fmt"
	"sync"

	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

// Role names a capability class.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleGovernor   Role = "GOVERNOR"
	RoleCompliance Role = "COMPLIANCE"
	RoleCourt      Role = "COURT"
)

var validRoles = map[Role]bool{
	RoleAdmin:      true,
	RoleGovernor:   true,
	RoleCompliance: true,
	RoleCourt:      true,
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}

// Authorizer holds the role grants. Principals are opaque strings (the
// transport layer maps bearer tokens to them).
type Authorizer struct {
	mu     sync.RWMutex
	grants map[Role]map[string]bool
}

// NewAuthorizer creates an empty authorizer.
func NewAuthorizer() *Authorizer {
	return &Authorizer{grants: make(map[Role]map[string]bool)}
}

// Grant gives principal the role.
func (a *Authorizer) Grant(role Role, principal string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.grants[role] == nil {
		a.grants[role] = make(map[string]bool)
	}
	a.grants[role][principal] = true
}

// Revoke removes the role from principal.
func (a *Authorizer) Revoke(role Role, principal string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.grants[role], principal)
}

// Has reports whether principal holds the role.
func (a *Authorizer) Has(role Role, principal string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.grants[role][principal]
}

// Require fails with ErrUnauthorized unless principal holds the role.
// Services call this at the top of every role-gated entry point.
func (a *Authorizer) Require(role Role, principal string) error {
	if principal == "" || !a.Has(role, principal) {
		return fmt.Errorf("%w: %s required", sentinel.ErrUnauthorized, role)
	}
	return nil
}
