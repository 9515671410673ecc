package domain

import "slices"

// Role is granted by the identity provider.
type Role string

const (
	RoleClaimant Role = "CLAIMANT"
	RoleAdmin    Role = "ADMIN"
	RoleReviewer Role = "REVIEWER"
)

// ParseRole accepts only the closed role set.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleClaimant, RoleAdmin, RoleReviewer:
		return r, true
	}
	return "", false
}

// Caller is the identity of whoever invokes an operation. It is passed
// explicitly into every service call.
type Caller struct {
	UserID UserID
	Roles  []Role
}

func (c Caller) Has(role Role) bool {
	return slices.Contains(c.Roles, role)
}

// IsStaff reports whether the caller may act as reviewer. ADMIN and REVIEWER
// are equivalent for workflow decisions.
func (c Caller) IsStaff() bool {
	return c.Has(RoleAdmin) || c.Has(RoleReviewer)
}

// SystemCaller is used for writes the service performs on its own behalf.
func SystemCaller() Caller {
	return Caller{UserID: SystemActor, Roles: []Role{RoleAdmin}}
}
