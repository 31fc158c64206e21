package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/cache"
	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
)

type promoCodeRepository struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewPromoCodeRepository(db *gorm.DB, redisClient *redis.Client) repositories.PromoCodeRepository {
	return &promoCodeRepository{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// ===== BASIC CRUD OPERATIONS =====

func (r *promoCodeRepository) Create(ctx context.Context, tx *gorm.DB, code *models.PromoCode) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(code).Error; err != nil {
		return r.handleDBError(err, "create promo code")
	}
	cache.SafeInvalidatePattern(ctx, r.cacheManager.PromoCode, "list:*")
	return nil
}

// GetByID retrieves a promo code by ID with caching
func (r *promoCodeRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.PromoCode, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var code models.PromoCode

	err := r.cacheManager.PromoCode.CacheOrExecute(ctx, cacheKey, &code, cache.PromoCodeCacheConfig.TTL, func() (interface{}, error) {
		var dbCode models.PromoCode
		if err := r.getDB(tx).WithContext(ctx).First(&dbCode, id).Error; err != nil {
			return nil, r.handleDBError(err, "get promo code by id")
		}
		return &dbCode, nil
	})
	if err != nil {
		return nil, err
	}

	return &code, nil
}

func (r *promoCodeRepository) GetByCode(ctx context.Context, tx *gorm.DB, codeValue string) (*models.PromoCode, error) {
	db := r.getDB(tx)
	var code models.PromoCode

	if err := db.WithContext(ctx).
		Where("code = ?", codeValue).
		First(&code).Error; err != nil {
		return nil, r.handleDBError(err, "get promo code by code")
	}

	return &code, nil
}

func (r *promoCodeRepository) Update(ctx context.Context, tx *gorm.DB, code *models.PromoCode) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Save(code).Error; err != nil {
		return r.handleDBError(err, "update promo code")
	}
	cache.InvalidatePromoCodeCache(ctx, r.cacheManager, code.ID, code.ClassID)
	return nil
}

func (r *promoCodeRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.PromoCode{}, id).Error; err != nil {
		return r.handleDBError(err, "delete promo code")
	}
	cache.SafeDelete(ctx, r.cacheManager.PromoCode, fmt.Sprintf("id:%d", id))
	cache.SafeInvalidatePattern(ctx, r.cacheManager.PromoCode, "list:*")
	return nil
}

func (r *promoCodeRepository) DeleteBatch(ctx context.Context, tx *gorm.DB, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	db := r.getDB(tx)
	result := db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.PromoCode{})
	if result.Error != nil {
		return 0, r.handleDBError(result.Error, "delete promo codes")
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf("id:%d", id)
	}
	cache.SafeDelete(ctx, r.cacheManager.PromoCode, keys...)
	cache.SafeInvalidatePattern(ctx, r.cacheManager.PromoCode, "list:*")

	return result.RowsAffected, nil
}

// ===== QUERY OPERATIONS =====

func (r *promoCodeRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.PromoCodeFilters) ([]*models.PromoCode, int64, error) {
	db := r.getDB(tx)
	var codes []*models.PromoCode
	var total int64

	query := db.WithContext(ctx).Model(&models.PromoCode{})

	// Apply filters
	query = r.applyPromoCodeFilters(query, filters)

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, r.handleDBError(err, "count promo codes")
	}

	// Apply pagination and sorting
	query = r.applyPaginationAndSorting(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder)

	if err := query.Find(&codes).Error; err != nil {
		return nil, 0, r.handleDBError(err, "list promo codes")
	}

	return codes, total, nil
}

// ===== REDEMPTION =====

func (r *promoCodeRepository) ConsumeUse(ctx context.Context, tx *gorm.DB, id uint, today time.Time) (bool, error) {
	db := r.getDB(tx)

	// Single conditional update so concurrent redemptions cannot push
	// used_count past the limit. Expiry is checked at day granularity,
	// a code stays valid through the end of its expiry date.
	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	result := db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ? AND used_count < usage_limit AND (expiry_date IS NULL OR expiry_date >= ?)", id, dayStart).
		Updates(map[string]interface{}{
			"used_count": gorm.Expr("used_count + 1"),
			"used_at":    today,
		})
	if result.Error != nil {
		return false, r.handleDBError(result.Error, "consume promo code use")
	}

	if result.RowsAffected > 0 {
		cache.SafeDelete(ctx, r.cacheManager.PromoCode, fmt.Sprintf("id:%d", id))
		cache.SafeInvalidatePattern(ctx, r.cacheManager.PromoCode, "list:*")
	}

	return result.RowsAffected > 0, nil
}

func (r *promoCodeRepository) LinkStudent(ctx context.Context, tx *gorm.DB, id uint, studentID uint) error {
	db := r.getDB(tx)

	if err := db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ?", id).
		Update("student_id", studentID).Error; err != nil {
		return r.handleDBError(err, "link student to promo code")
	}

	cache.SafeDelete(ctx, r.cacheManager.PromoCode, fmt.Sprintf("id:%d", id))

	return nil
}

// ===== VALIDATION =====

func (r *promoCodeRepository) ExistsByCode(ctx context.Context, tx *gorm.DB, codeValue string) (bool, error) {
	db := r.getDB(tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("code = ?", codeValue).
		Count(&count).Error; err != nil {
		return false, r.handleDBError(err, "check if promo code exists")
	}

	return count > 0, nil
}

// ===== HELPER METHODS =====

func (r *promoCodeRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *promoCodeRepository) handleDBError(err error, operation string) error {
	return handleDBError(err, operation)
}

func (r *promoCodeRepository) applyPromoCodeFilters(query *gorm.DB, filters repositories.PromoCodeFilters) *gorm.DB {
	if filters.ClassID != nil {
		query = query.Where("class_id = ?", *filters.ClassID)
	}
	if filters.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filters.TeacherID)
	}
	if filters.Prefix != nil {
		query = query.Where("prefix = ?", *filters.Prefix)
	}
	if filters.Redeemed != nil {
		if *filters.Redeemed {
			query = query.Where("used_count > 0")
		} else {
			query = query.Where("used_count = 0")
		}
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	if filters.Search != "" {
		query = query.Where("code ILIKE ?", "%"+filters.Search+"%")
	}

	return query
}

func (r *promoCodeRepository) applyPaginationAndSorting(query *gorm.DB, limit, offset int, sortBy, sortOrder string) *gorm.DB {
	return applyPaginationAndSorting(query, limit, offset, sortBy, sortOrder, map[string]string{
		"created_at":  "created_at",
		"updated_at":  "updated_at",
		"code":        "code",
		"expiry_date": "expiry_date",
		"used_count":  "used_count",
		"id":          "id",
	})
}
