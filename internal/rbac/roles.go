package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleSoftphone  = "softphone"
	RoleOperator   = "operator"
	RoleSuperAdmin = "super_admin"
	RoleDiagnostic = "diagnostic" // hidden role
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleDiagnostic }
