package model

// Role is the access level granted to an authenticated caller.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Actor is the authenticated caller resolved by the access guard.
type Actor struct {
	ID             int64
	OrganizationID int64
	Role           Role
}
