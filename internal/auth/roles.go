package auth

// Role represents an admin role for role-based access control
type Role string

const (
	// RoleAdmin may trigger syncs and read their status
	RoleAdmin Role = "admin"

	// RoleViewer may only read sync status
	RoleViewer Role = "viewer"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleViewer:
		return true
	default:
		return false
	}
}

// HasPermission checks if a role has permission for a required role.
// Admin implies viewer.
func (r Role) HasPermission(required Role) bool {
	if r == RoleAdmin {
		return true
	}
	return r == required
}

// Permits reports whether any of roles grants any of required. An empty
// required set only asks for a valid role.
func Permits(roles []string, required ...Role) bool {
	for _, name := range roles {
		role := Role(name)
		if !role.IsValid() {
			continue
		}
		if len(required) == 0 {
			return true
		}
		for _, req := range required {
			if role.HasPermission(req) {
				return true
			}
		}
	}
	return false
}
