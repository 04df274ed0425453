package auth

import "strings"

// Role is a rung on the access ladder. Viewers read park and billing
// data, operators run billing and send bills, admins additionally
// manage rate tables and void bills.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// roleLadder orders roles from least to most privileged.
var roleLadder = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole validates a role string, folding case to the canonical
// lowercase form.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleLadder[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role sits at or above required on the
// ladder. Unknown roles rank below everything.
func RoleAtLeast(role Role, required Role) bool {
	return roleLadder[role] >= roleLadder[required]
}
