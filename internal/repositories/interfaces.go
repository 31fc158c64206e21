package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ClassFilters struct {
	TeacherID *string `json:"teacher_id"`
	Search    string  `json:"search"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
	SortBy    string  `json:"sort_by"`    // "created_at", "name", "id"
	SortOrder string  `json:"sort_order"` // "asc", "desc"
}

type StudentFilters struct {
	ClassID   *uint                 `json:"class_id"`
	UserID    *string               `json:"user_id"`
	Status    *models.StudentStatus `json:"status"`
	Search    string                `json:"search"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type PromoCodeFilters struct {
	ClassID   *uint      `json:"class_id"`
	TeacherID *string    `json:"teacher_id"`
	Prefix    *string    `json:"prefix"`
	Redeemed  *bool      `json:"redeemed"` // true = at least one use consumed
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Search    string     `json:"search"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

// ===== SHARED HELPER STRUCTS =====

// ClassEnrollment pairs a class with the enrollment row that puts a
// user in it, for the classes-for-user join.
type ClassEnrollment struct {
	Class   *models.Class   `json:"class"`
	Student *models.Student `json:"student"`
}

// ===== REPOSITORY INTERFACES =====

type ClassRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, class *models.Class) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Class, error)
	Update(ctx context.Context, tx *gorm.DB, class *models.Class) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters ClassFilters) ([]*models.Class, int64, error)
	GetByTeacher(ctx context.Context, tx *gorm.DB, teacherID string, filters ClassFilters) ([]*models.Class, int64, error)
	Search(ctx context.Context, tx *gorm.DB, query string, filters ClassFilters) ([]*models.Class, int64, error)

	// Enrollment queries
	CountStudents(ctx context.Context, tx *gorm.DB, classID uint) (int64, error)
	GetStudents(ctx context.Context, tx *gorm.DB, classID uint, filters StudentFilters) ([]*models.Student, int64, error)

	// Fan-out on teacher role removal: every class referencing the
	// teacher becomes unassigned.
	UnassignTeacher(ctx context.Context, tx *gorm.DB, teacherID string) (int64, error)

	// Validation
	ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

type StudentRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, student *models.Student) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Student, error)
	Update(ctx context.Context, tx *gorm.DB, student *models.Student) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters StudentFilters) ([]*models.Student, int64, error)
	Count(ctx context.Context, tx *gorm.DB, filters StudentFilters) (int64, error)
	GetByUserAndClass(ctx context.Context, tx *gorm.DB, userID string, classID uint) (*models.Student, error)
	GetByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Student, error)
	GetClassesForUser(ctx context.Context, tx *gorm.DB, userID string) ([]*ClassEnrollment, error)

	// Validation
	ExistsByUserAndClass(ctx context.Context, tx *gorm.DB, userID string, classID uint) (bool, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
}

type PromoCodeRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, code *models.PromoCode) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.PromoCode, error)
	GetByCode(ctx context.Context, tx *gorm.DB, code string) (*models.PromoCode, error)
	Update(ctx context.Context, tx *gorm.DB, code *models.PromoCode) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	DeleteBatch(ctx context.Context, tx *gorm.DB, ids []uint) (int64, error)

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters PromoCodeFilters) ([]*models.PromoCode, int64, error)

	// ConsumeUse atomically increments used_count and stamps used_at,
	// guarded by the usage limit and the expiry date in a single
	// conditional update. It reports whether a use was consumed; false
	// means the code was already exhausted or expired at `today`.
	ConsumeUse(ctx context.Context, tx *gorm.DB, id uint, today time.Time) (bool, error)

	// LinkStudent records the enrollment produced by a redemption.
	LinkStudent(ctx context.Context, tx *gorm.DB, id uint, studentID uint) error

	// Validation
	ExistsByCode(ctx context.Context, tx *gorm.DB, code string) (bool, error)
}
