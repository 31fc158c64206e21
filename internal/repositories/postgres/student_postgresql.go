package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
)

type studentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) repositories.StudentRepository {
	return &studentRepository{db: db}
}

// ===== BASIC CRUD OPERATIONS =====

func (r *studentRepository) Create(ctx context.Context, tx *gorm.DB, student *models.Student) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(student).Error; err != nil {
		return r.handleDBError(err, "create student")
	}
	return nil
}

func (r *studentRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Student, error) {
	db := r.getDB(tx)
	var student models.Student

	if err := db.WithContext(ctx).First(&student, id).Error; err != nil {
		return nil, r.handleDBError(err, "get student by id")
	}

	return &student, nil
}

func (r *studentRepository) Update(ctx context.Context, tx *gorm.DB, student *models.Student) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Save(student).Error; err != nil {
		return r.handleDBError(err, "update student")
	}
	return nil
}

func (r *studentRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.Student{}, id).Error; err != nil {
		return r.handleDBError(err, "delete student")
	}
	return nil
}

// ===== QUERY OPERATIONS =====

func (r *studentRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.StudentFilters) ([]*models.Student, int64, error) {
	db := r.getDB(tx)
	var students []*models.Student
	var total int64

	query := db.WithContext(ctx).Model(&models.Student{})

	// Apply filters
	query = r.applyStudentFilters(query, filters)

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, r.handleDBError(err, "count students")
	}

	// Apply pagination and sorting
	query = r.applyPaginationAndSorting(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder)

	if err := query.Find(&students).Error; err != nil {
		return nil, 0, r.handleDBError(err, "list students")
	}

	return students, total, nil
}

func (r *studentRepository) Count(ctx context.Context, tx *gorm.DB, filters repositories.StudentFilters) (int64, error) {
	db := r.getDB(tx)
	var total int64

	query := db.WithContext(ctx).Model(&models.Student{})
	query = r.applyStudentFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return 0, r.handleDBError(err, "count students")
	}

	return total, nil
}

func (r *studentRepository) GetByUserAndClass(ctx context.Context, tx *gorm.DB, userID string, classID uint) (*models.Student, error) {
	db := r.getDB(tx)
	var student models.Student

	if err := db.WithContext(ctx).
		Where("user_id = ? AND class_id = ?", userID, classID).
		First(&student).Error; err != nil {
		return nil, r.handleDBError(err, "get student by user and class")
	}

	return &student, nil
}

func (r *studentRepository) GetByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Student, error) {
	db := r.getDB(tx)
	var students []*models.Student

	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&students).Error; err != nil {
		return nil, r.handleDBError(err, "get students by user")
	}

	return students, nil
}

func (r *studentRepository) GetClassesForUser(ctx context.Context, tx *gorm.DB, userID string) ([]*repositories.ClassEnrollment, error) {
	db := r.getDB(tx)

	students, err := r.GetByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	enrollments := make([]*repositories.ClassEnrollment, 0, len(students))
	for _, student := range students {
		var class models.Class
		if err := db.WithContext(ctx).First(&class, student.ClassID).Error; err != nil {
			// Classes may be deleted out from under their enrollments,
			// skip dangling rows instead of failing the whole listing.
			if repositories.IsNotFoundError(err) {
				continue
			}
			return nil, r.handleDBError(err, "get class for enrollment")
		}
		enrollments = append(enrollments, &repositories.ClassEnrollment{
			Class:   &class,
			Student: student,
		})
	}

	return enrollments, nil
}

// ===== VALIDATION =====

func (r *studentRepository) ExistsByUserAndClass(ctx context.Context, tx *gorm.DB, userID string, classID uint) (bool, error) {
	db := r.getDB(tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.Student{}).
		Where("user_id = ? AND class_id = ?", userID, classID).
		Count(&count).Error; err != nil {
		return false, r.handleDBError(err, "check student enrollment")
	}

	return count > 0, nil
}

func (r *studentRepository) CountByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	db := r.getDB(tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.Student{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, r.handleDBError(err, "count students by user")
	}

	return count, nil
}

// ===== HELPER METHODS =====

func (r *studentRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *studentRepository) handleDBError(err error, operation string) error {
	return handleDBError(err, operation)
}

func (r *studentRepository) applyStudentFilters(query *gorm.DB, filters repositories.StudentFilters) *gorm.DB {
	if filters.ClassID != nil {
		query = query.Where("class_id = ?", *filters.ClassID)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Search != "" {
		searchQuery := "%" + filters.Search + "%"
		query = query.Where("name ILIKE ? OR email ILIKE ?", searchQuery, searchQuery)
	}

	return query
}

func (r *studentRepository) applyPaginationAndSorting(query *gorm.DB, limit, offset int, sortBy, sortOrder string) *gorm.DB {
	return applyPaginationAndSorting(query, limit, offset, sortBy, sortOrder, map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"name":       "name",
		"email":      "email",
		"status":     "status",
		"id":         "id",
	})
}
