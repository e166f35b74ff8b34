package model

import "time"

// Role is the coarse access role carried on every user account.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleCRMAgent   Role = "crm_agent"
	RoleDoctor     Role = "doctor"
	RolePatient    Role = "patient"
	RoleLabManager Role = "lab_manager"
)

// User is the authentication record. Patients and doctors share their
// primary key with their user row (1:1 linked account).
type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        *string   `db:"email" json:"email,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Actor identifies who is performing an operation, as established by the
// authentication middleware. UserID is nil for unauthenticated callers.
type Actor struct {
	UserID   *int64
	Role     Role
	SourceIP string
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
