package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string
type Role = UserRole // Alias for compatibility

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// User mirrors an identity record owned by the Casdoor organization.
// The service never owns user rows; this model is the projection used
// for role checks, teacher listings and student provisioning.
type User struct {
	ID        string   `json:"id" gorm:"primaryKey;size:255"`
	Name      string   `json:"name" gorm:"size:100"` // login name
	FirstName string   `json:"first_name" gorm:"size:100"`
	LastName  string   `json:"last_name" gorm:"size:100"`
	FullName  string   `json:"full_name" gorm:"not null;size:200"`
	Email     string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Phone     string   `json:"phone" gorm:"size:50"`
	Role      UserRole `json:"role" gorm:"-"`

	// Password is only populated when provisioning a new account and is
	// never returned to clients or persisted locally
	Password string `json:"-" gorm:"-"`

	// Profile info
	AvatarURL *string `json:"avatar_url" gorm:"size:500"`

	// Status
	EmailVerified bool `json:"email_verified" gorm:"default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// IsTeacher reports whether the user counts as a teacher entity.
// Admins implicitly pass every role check.
func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher || u.Role == RoleAdmin
}

func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}
