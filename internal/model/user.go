package model

// UserRole is the role of an authenticated principal.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleParent  UserRole = "PARENT"
	RoleStudent UserRole = "STUDENT"
)

// User is the authenticated principal returned by the backend and kept in
// the session slot. The record is opaque to the sync engine.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Password string   `json:"password,omitempty"`
	FullName string   `json:"fullName"`
	Role     UserRole `json:"role"`
}

// NewUser carries the fields of a registration request.
type NewUser struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	FullName string   `json:"fullName"`
	Role     UserRole `json:"role"`
}
