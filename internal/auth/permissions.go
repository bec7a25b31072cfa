package auth

// Permission names a single operation class an account may perform.
type Permission string

const (
	// PermSwitch allows issuing routing changes to the matrix.
	PermSwitch Permission = "switch"

	// PermQuery allows reading the matrix routing status.
	PermQuery Permission = "query"

	// PermConfig allows link management (connect/disconnect) and
	// reading the audit trail.
	PermConfig Permission = "config"
)

// rolePermissions maps each role to its default permission set,
// applied when an account declares no explicit permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer:   {PermQuery},
	RoleOperator: {PermSwitch, PermQuery},
	RoleAdmin:    {PermSwitch, PermQuery, PermConfig},
}

// PermissionsFor resolves the effective permission set for an account.
// Explicit permissions on the account win; otherwise the role defaults apply.
func PermissionsFor(acct Account) []Permission {
	if len(acct.Permissions) > 0 {
		return acct.Permissions
	}
	return rolePermissions[acct.Role]
}

// HasPermission reports whether the account's effective permission set
// includes the given permission.
func HasPermission(acct Account, perm Permission) bool {
	for _, p := range PermissionsFor(acct) {
		if p == perm {
			return true
		}
	}
	return false
}
