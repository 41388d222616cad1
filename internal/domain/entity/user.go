package entity

import (
	"time"
)

// Role gates the administrative endpoints. One role per user.
type Role string

const (
	RoleUser  Role = "user"
	RoleOwner Role = "owner"
)

// User is the aggregate root for the accounts domain. Password holds a
// bcrypt hash only; it never leaves the service boundary (see Public).
type User struct {
	ID        int64
	UUID      string
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
	Role      Role
	Status    Status
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicUser is the external projection of a User. It deliberately has no
// password field, so the hash cannot be serialized by accident.
type PublicUser struct {
	ID        int64      `json:"id"`
	UUID      string     `json:"uuid"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      Role       `json:"role"`
	Status    Status     `json:"status"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Public scrubs the credential hash and returns the serializable view.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		UUID:      u.UUID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Status:    u.Status,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
