package domain

// Roles carried in the host application's JWT claims.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
