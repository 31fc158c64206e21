package models

import (
	"time"

	"gorm.io/datatypes"
)

type StudentStatus string

const (
	StudentActive   StudentStatus = "active"
	StudentInactive StudentStatus = "inactive"
)

// Student is one enrollment of a person in one class. A person
// enrolled in three classes has three student rows. UserID links the
// row to a Casdoor identity and is nil for students created through
// public promo-code redemption without an account; the (user, class)
// pair is unique when a link exists.
//
// ClassID is not a foreign key on purpose: deleting a class leaves its
// student rows behind with a dangling reference.
type Student struct {
	ID      uint    `json:"id" gorm:"primaryKey"`
	UserID  *string `json:"user_id" gorm:"size:255;uniqueIndex:idx_student_user_class"`
	ClassID uint    `json:"class_id" gorm:"not null;index;uniqueIndex:idx_student_user_class"`

	Name  string `json:"name" gorm:"not null;size:200" validate:"required,max=200"`
	Email string `json:"email" gorm:"size:255" validate:"omitempty,email"`

	Status StudentStatus `json:"status" gorm:"size:20;default:active"`

	// Auxiliary per-student data (provisioning details, import extras)
	Meta datatypes.JSON `json:"meta,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Student) TableName() string {
	return "school_students"
}

// HasUser reports whether the enrollment is linked to an identity.
func (s *Student) HasUser() bool {
	return s.UserID != nil && *s.UserID != ""
}
