package models

import (
	"time"
)

// Class is a group of students taught by a single teacher.
// TeacherID references a Casdoor user carrying the teacher role; an
// empty value means no teacher is currently assigned. The reference is
// validated at assignment time only, so a class may outlive its
// teacher's role.
type Class struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null;size:200" validate:"required,max=200"`
	Description *string `json:"description" gorm:"type:text"`

	// Teacher assignment
	TeacherID string `json:"teacher_id" gorm:"index;size:255"`

	// Capacity (0 = unlimited)
	MaxStudents int `json:"max_students" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Statistics
	StudentCount int `json:"student_count" gorm:"-"`
}

func (Class) TableName() string {
	return "school_classes"
}

// HasTeacher reports whether a teacher is assigned to the class.
func (c *Class) HasTeacher() bool {
	return c.TeacherID != ""
}
