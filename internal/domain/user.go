package domain

import "time"

// Role enumerates the three platform roles.
type Role string

const (
	RoleEmpleado      Role = "empleado"
	RoleTecnico       Role = "tecnico"
	RoleAdministrador Role = "administrador"
)

// User is the domain model for every platform actor: employees submitting
// tickets, technicians resolving them and administrators overseeing both.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the administrator role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdministrador
}

// IsTechnician reports whether the user can be made responsible for tickets.
func (u *User) IsTechnician() bool {
	return u.Role == RoleTecnico || u.Role == RoleAdministrador
}
