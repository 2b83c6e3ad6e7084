// Package access resolves who is acting and what they may do.
//
// Authentication is out of scope: callers establish the tenant and user
// (trusted headers, CLI flags) and the members table supplies the role.
package access

import (
	"fmt"
	"strings"

	"github.com/roach88/bakehouse/internal/ledger"
)

// Role is a member's role within a tenant.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"

	// RoleSystem is used by scheduled jobs. It is never stored on a member.
	RoleSystem Role = "system"
)

// Permission names an operation class.
type Permission string

const (
	PermStockRead       Permission = "stock.read"
	PermStockWrite      Permission = "stock.write"
	PermCountWrite      Permission = "count.write"
	PermCountApprove    Permission = "count.approve"
	PermCatalogWrite    Permission = "catalog.write"
	PermSalesWrite      Permission = "sales.write"
	PermProductionWrite Permission = "production.write"
	PermMembersWrite    Permission = "members.write"
)

var grants = map[Role][]Permission{
	RoleStaff: {
		PermStockRead, PermStockWrite, PermCountWrite, PermSalesWrite, PermProductionWrite,
	},
	RoleManager: {
		PermStockRead, PermStockWrite, PermCountWrite, PermCountApprove,
		PermCatalogWrite, PermSalesWrite, PermProductionWrite,
	},
	RoleOwner: {
		PermStockRead, PermStockWrite, PermCountWrite, PermCountApprove,
		PermCatalogWrite, PermSalesWrite, PermProductionWrite, PermMembersWrite,
	},
	RoleSystem: {
		PermStockRead, PermCountWrite,
	},
}

// ParseRole parses a stored role name. The system role cannot be parsed.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleOwner, RoleManager, RoleStaff:
		return r, nil
	}
	return "", ledger.NewValidationError(fmt.Sprintf("unknown role %q", s))
}

// Actor is the caller of a service operation.
type Actor struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
}

// SystemActor returns the actor used by scheduled jobs for tenantID.
func SystemActor(tenantID string) Actor {
	return Actor{TenantID: tenantID, UserID: "system", Role: RoleSystem}
}

// Can reports whether the actor's role grants p.
func (a Actor) Can(p Permission) bool {
	for _, g := range grants[a.Role] {
		if g == p {
			return true
		}
	}
	return false
}

// Require returns a FORBIDDEN error unless the actor holds p.
// An actor without a tenant is always rejected.
func Require(a Actor, p Permission) error {
	if a.TenantID == "" || a.UserID == "" {
		return ledger.NewForbiddenError(a.UserID, string(p))
	}
	if !a.Can(p) {
		return ledger.NewForbiddenError(a.UserID, string(p))
	}
	return nil
}
