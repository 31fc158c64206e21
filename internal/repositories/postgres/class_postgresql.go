package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/cache"
	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
)

type classRepository struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewClassRepository(db *gorm.DB, redisClient *redis.Client) repositories.ClassRepository {
	return &classRepository{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// ===== BASIC CRUD OPERATIONS =====

func (r *classRepository) Create(ctx context.Context, tx *gorm.DB, class *models.Class) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(class).Error; err != nil {
		return r.handleDBError(err, "create class")
	}
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Class, "list:*")
	return nil
}

// GetByID retrieves a class by ID with caching
func (r *classRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Class, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var class models.Class

	err := r.cacheManager.Class.CacheOrExecute(ctx, cacheKey, &class, cache.ClassCacheConfig.TTL, func() (interface{}, error) {
		var dbClass models.Class
		if err := r.getDB(tx).WithContext(ctx).First(&dbClass, id).Error; err != nil {
			return nil, r.handleDBError(err, "get class by id")
		}
		return &dbClass, nil
	})
	if err != nil {
		return nil, err
	}

	return &class, nil
}

func (r *classRepository) Update(ctx context.Context, tx *gorm.DB, class *models.Class) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Save(class).Error; err != nil {
		return r.handleDBError(err, "update class")
	}
	cache.InvalidateClassCache(ctx, r.cacheManager, class.ID, class.TeacherID)
	return nil
}

func (r *classRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.Class{}, id).Error; err != nil {
		return r.handleDBError(err, "delete class")
	}
	cache.InvalidateClassCache(ctx, r.cacheManager, id, "")
	return nil
}

// ===== QUERY OPERATIONS =====

func (r *classRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.ClassFilters) ([]*models.Class, int64, error) {
	db := r.getDB(tx)
	var classes []*models.Class
	var total int64

	query := db.WithContext(ctx).Model(&models.Class{})

	// Apply filters
	query = r.applyClassFilters(query, filters)

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, r.handleDBError(err, "count classes")
	}

	// Apply pagination and sorting
	query = r.applyPaginationAndSorting(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder)

	if err := query.Find(&classes).Error; err != nil {
		return nil, 0, r.handleDBError(err, "list classes")
	}

	return classes, total, nil
}

func (r *classRepository) GetByTeacher(ctx context.Context, tx *gorm.DB, teacherID string, filters repositories.ClassFilters) ([]*models.Class, int64, error) {
	filters.TeacherID = &teacherID
	return r.List(ctx, tx, filters)
}

func (r *classRepository) Search(ctx context.Context, tx *gorm.DB, query string, filters repositories.ClassFilters) ([]*models.Class, int64, error) {
	filters.Search = query
	return r.List(ctx, tx, filters)
}

// ===== ENROLLMENT QUERIES =====

func (r *classRepository) CountStudents(ctx context.Context, tx *gorm.DB, classID uint) (int64, error) {
	db := r.getDB(tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.Student{}).
		Where("class_id = ?", classID).
		Count(&count).Error; err != nil {
		return 0, r.handleDBError(err, "count class students")
	}

	return count, nil
}

func (r *classRepository) GetStudents(ctx context.Context, tx *gorm.DB, classID uint, filters repositories.StudentFilters) ([]*models.Student, int64, error) {
	db := r.getDB(tx)
	var students []*models.Student
	var total int64

	query := db.WithContext(ctx).
		Model(&models.Student{}).
		Where("class_id = ?", classID)

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Search != "" {
		searchQuery := "%" + filters.Search + "%"
		query = query.Where("name ILIKE ? OR email ILIKE ?", searchQuery, searchQuery)
	}

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, r.handleDBError(err, "count class students")
	}

	// Apply pagination and sorting
	query = r.applyPaginationAndSorting(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder)

	if err := query.Find(&students).Error; err != nil {
		return nil, 0, r.handleDBError(err, "get class students")
	}

	return students, total, nil
}

func (r *classRepository) UnassignTeacher(ctx context.Context, tx *gorm.DB, teacherID string) (int64, error) {
	db := r.getDB(tx)

	result := db.WithContext(ctx).
		Model(&models.Class{}).
		Where("teacher_id = ?", teacherID).
		Update("teacher_id", "")
	if result.Error != nil {
		return 0, r.handleDBError(result.Error, "unassign teacher from classes")
	}

	cache.SafeInvalidatePattern(ctx, r.cacheManager.Class, fmt.Sprintf("teacher:%s:*", teacherID))
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Class, "id:*")

	return result.RowsAffected, nil
}

// ===== VALIDATION =====

func (r *classRepository) ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	db := r.getDB(tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.Class{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, r.handleDBError(err, "check if class exists")
	}

	return count > 0, nil
}

// ===== HELPER METHODS =====

func (r *classRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *classRepository) handleDBError(err error, operation string) error {
	return handleDBError(err, operation)
}

func (r *classRepository) applyClassFilters(query *gorm.DB, filters repositories.ClassFilters) *gorm.DB {
	if filters.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filters.TeacherID)
	}
	if filters.Search != "" {
		searchQuery := "%" + filters.Search + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", searchQuery, searchQuery)
	}

	return query
}

func (r *classRepository) applyPaginationAndSorting(query *gorm.DB, limit, offset int, sortBy, sortOrder string) *gorm.DB {
	return applyPaginationAndSorting(query, limit, offset, sortBy, sortOrder, map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"name":       "name",
		"id":         "id",
	})
}
