package authgate

import (
	"time"
)

// UserType is the clinic-facing role of a user
type UserType = string

const (
	// UserTypeProfessional is a clinic professional (i.e. doctors, staff)
	UserTypeProfessional UserType = "professional"
	// UserTypePatient is a patient account
	UserTypePatient UserType = "patient"
	// UserTypeAdministrator is a platform administrator
	UserTypeAdministrator UserType = "administrator"
)

// UserRecord is the identity-service view of a user that the session layer
// keeps around. It is replaced wholesale, never mutated in place.
type UserRecord struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Name     string         `json:"name,omitempty"`
	UserType UserType       `json:"user_type"`
	Profile  map[string]any `json:"profile,omitempty"`
}

// RoleAssignment maps a user to one named role. Uniqueness of the
// (user_id, role) pair is enforced by the remote store, not here.
type RoleAssignment struct {
	UserID    string     `json:"user_id"`
	Role      UserType   `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// CreateUserParams is the normalized payload forwarded to the privileged
// create-user endpoint and, on fallback, to public signup.
type CreateUserParams struct {
	Email    string   `json:"email"`
	Password string   `json:"password,omitempty"`
	FullName string   `json:"full_name"`
	Phone    string   `json:"phone,omitempty"`
	Role     string   `json:"role,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// PrimaryRole returns the single role of the payload: the `role` field when
// present, otherwise the first entry of `roles`.
func (p CreateUserParams) PrimaryRole() string {
	if p.Role != "" {
		return p.Role
	}
	if len(p.Roles) > 0 {
		return p.Roles[0]
	}
	return ""
}
