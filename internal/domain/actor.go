package domain

// Role identifies the kind of authenticated caller.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleDriver   Role = "DRIVER"
	RoleAdmin    Role = "ADMIN"
)

// Actor is the authenticated identity supplied with every core operation.
// The core trusts it and enforces state-machine guards against it.
type Actor struct {
	ID   string
	Role Role
}
