package model

// Role is the ordinal role tier of a user.  Roles are ordered: a higher
// value always implies at least the privileges of a lower one
// (public < admin < super).  Every privilege comparison in the codebase
// goes through AtLeast so that the ordering is applied uniformly instead
// of being re-implemented at call sites.
type Role uint8

const (
	RolePublic Role = 1 // regular user, sees only own templates
	RoleAdmin  Role = 2 // may approve/reject and manage users at or below admin
	RoleSuper  Role = 3 // bootstrap administrator, highest tier
)

// AtLeast reports whether r carries at least the privileges of min.
func (r Role) AtLeast(min Role) bool { return r >= min }

// Name returns the lowercase role name used in JWT claims and route
// allow-sets.  Unknown values map to "public" so that a malformed claim
// never grants elevated access.
func (r Role) Name() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleSuper:
		return "super"
	default:
		return "public"
	}
}

// RoleFromName is the inverse of Name.  Unknown names map to RolePublic.
func RoleFromName(name string) Role {
	switch name {
	case "admin":
		return RoleAdmin
	case "super":
		return RoleSuper
	default:
		return RolePublic
	}
}

// RoleRecord represents a row in the `roles` table.
//
// Fields:
//  ID   – numeric identifier of the role (matches the Role ordinal).
//  Name – unique role name (public, admin, super).
type RoleRecord struct {
	ID   uint8  // roles.id
	Name string // roles.name
}
