package authz

import "github.com/google/uuid"

// Role slugs understood by the permission table. Profiles are created with
// "user"; elevation is an administrative operation outside the session core.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Permission identifiers consumed by route guards.
const (
	PermReadContent    = "content:read"
	PermManageContent  = "content:manage"
	PermManageCalendar = "calendar:manage"
	PermViewDashboard  = "dashboard:view"
	PermManageUsers    = "users:manage"
)

// NamespaceRoleIDs is the UUID namespace used to derive stable role IDs from
// slugs, as UUIDv5(namespace, "role:"+slug). Slugs are treated as immutable
// identity.
var NamespaceRoleIDs = uuid.MustParse("7c9e2d1b-4f3a-5c86-9b70-2f51a6d4e803")

func IDFromSlug(slug string) uuid.UUID {
	return uuid.NewSHA1(NamespaceRoleIDs, []byte("role:"+slug))
}

// rolePermissions is the static role -> permission-set table. An unknown role
// yields no permissions; an unknown permission is false for every role.
var rolePermissions = map[string]map[string]bool{
	RoleUser: {
		PermReadContent: true,
	},
	RoleAdmin: {
		PermReadContent:    true,
		PermManageContent:  true,
		PermManageCalendar: true,
		PermViewDashboard:  true,
	},
	RoleSuperAdmin: {
		PermReadContent:    true,
		PermManageContent:  true,
		PermManageCalendar: true,
		PermViewDashboard:  true,
		PermManageUsers:    true,
	},
}

// IsAdminRole reports whether the role slug carries admin standing.
func IsAdminRole(role string) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}

// RoleHasPermission consults the static table. Total: any (role, permission)
// pair outside the table is simply false.
func RoleHasPermission(role, permission string) bool {
	return rolePermissions[role][permission]
}
