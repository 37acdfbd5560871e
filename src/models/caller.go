package models

// Role is the access level attached to an authenticated user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleClient   Role = "client"
	RoleSupplier Role = "supplier"
	RoleExternal Role = "external"
)

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleAdmin, RoleStaff, RoleClient, RoleSupplier, RoleExternal:
		return true
	}
	return false
}

// Caller identifies the user requesting a filtered view.
type Caller struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// SeesAllRecords reports whether the role is permitted to see every
// customer's records regardless of ownership.
func (r Role) SeesAllRecords() bool {
	return r == RoleAdmin || r == RoleStaff
}

// CanViewRecords is the single ownership gate shared by invoices,
// transport requests and offers: admin and staff see everything, every
// other role only records whose owner email matches exactly
// (case-sensitive).
func CanViewRecords(caller Caller, ownerEmail string) bool {
	if caller.Role.SeesAllRecords() {
		return true
	}
	return caller.Email == ownerEmail
}
