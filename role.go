package goGate

import "strings"

// Role is the closed set of roles the gate authorizes against. Roles are
// compared by equality only; there is no hierarchy between them.
type Role uint8

const (
	// RoleClient is the least-privileged role and the fallback for any
	// unknown, empty, or absent role value.
	RoleClient Role = iota
	// RoleFranchise grants access to the franchise area.
	RoleFranchise
	// RoleAdmin grants access to the admin area.
	RoleAdmin
)

const (
	roleNameClient    = "CLIENT"
	roleNameFranchise = "FRANCHISE"
	roleNameAdmin     = "ADMIN"
)

// ParseRole maps a role string to a [Role]. Matching is case-insensitive and
// ignores surrounding whitespace. Values that do not name a known role
// resolve to [RoleClient].
func ParseRole(value string) Role {
	role, ok := LookupRole(value)
	if !ok {
		return RoleClient
	}
	return role
}

// LookupRole is the strict form of [ParseRole]: ok is false when value does
// not name a known role.
func LookupRole(value string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case roleNameAdmin:
		return RoleAdmin, true
	case roleNameFranchise:
		return RoleFranchise, true
	case roleNameClient:
		return RoleClient, true
	default:
		return RoleClient, false
	}
}

// String returns the wire name used in claims, headers, and session state.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return roleNameAdmin
	case RoleFranchise:
		return roleNameFranchise
	default:
		return roleNameClient
	}
}
