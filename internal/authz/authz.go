package authz

import "strings"

// Role names an administrative role as returned by the back-office API.
type Role string

// RoleSuperAdmin bypasses permission checks entirely.
const RoleSuperAdmin Role = "SuperAdmin"

// Identity represents the authenticated admin with resolved permissions.
type Identity struct {
	AdminID     int64
	Username    string
	Role        Role
	Permissions map[string]struct{}
}

// NewIdentity constructs an identity with the permission set preloaded.
func NewIdentity(adminID int64, username string, role Role, perms []string) Identity {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return Identity{AdminID: adminID, Username: username, Role: role, Permissions: set}
}

// HasPermission reports whether the identity carries the permission key.
func (id Identity) HasPermission(key string) bool {
	_, ok := id.Permissions[key]
	return ok
}

// PermissionKeys returns the permission keys as a slice copy. Order is
// unspecified.
func (id Identity) PermissionKeys() []string {
	keys := make([]string, 0, len(id.Permissions))
	for k := range id.Permissions {
		keys = append(keys, k)
	}
	return keys
}

// Allowed decides whether the identity may perform the action guarded by the
// required permission. Absent identity fails closed; the super role is always
// allowed.
func Allowed(id *Identity, required string) bool {
	if id == nil {
		return false
	}
	if id.Role == RoleSuperAdmin {
		return true
	}
	return id.HasPermission(required)
}
