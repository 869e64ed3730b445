package domain

// Role is the caller's role as asserted by the upstream gateway.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// ParseRole maps a header value to a Role; unknown values are treated as
// plain users.
func ParseRole(s string) Role {
	switch r := Role(normalizeWord(s)); r {
	case RoleStaff, RoleAdmin:
		return r
	default:
		return RoleUser
	}
}

// IsStaff reports whether r acts on behalf of a department.
func (r Role) IsStaff() bool { return r == RoleStaff || r == RoleAdmin }

// Actor is the identity a request is performed as.
type Actor struct {
	UserID       string
	Role         Role
	DepartmentID *uint
}
