package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// BatchInvalidate invalidates multiple patterns in batch
func BatchInvalidate(ctx context.Context, helper *CacheHelper, patterns []string) error {
	var lastErr error
	for _, pattern := range patterns {
		if err := helper.InvalidatePattern(ctx, pattern); err != nil {
			lastErr = err
			slog.ErrorContext(ctx, "Failed to invalidate pattern in batch",
				"error", err,
				"pattern", pattern)
		}
	}
	return lastErr
}

// InvalidateClassCache invalidates all class-related caches using pipeline
func InvalidateClassCache(ctx context.Context, cm *CacheManager, classID uint, teacherID string) {
	// Delete specific keys using single call
	SafeDelete(ctx, cm.Class,
		fmt.Sprintf("id:%d", classID),
		fmt.Sprintf("details:%d", classID))

	// Invalidate patterns
	SafeInvalidatePattern(ctx, cm.Class, fmt.Sprintf("teacher:%s:*", teacherID))
	SafeInvalidatePattern(ctx, cm.Class, "list:*")
	SafeInvalidatePattern(ctx, cm.Student, fmt.Sprintf("class:%d:*", classID))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("class:%d:*", classID))
}

// InvalidatePromoCodeCache invalidates all promo code caches
func InvalidatePromoCodeCache(ctx context.Context, cm *CacheManager, codeID uint, classID uint) {
	SafeDelete(ctx, cm.PromoCode, fmt.Sprintf("id:%d", codeID))
	SafeInvalidatePattern(ctx, cm.PromoCode, fmt.Sprintf("class:%d:*", classID))
	SafeInvalidatePattern(ctx, cm.PromoCode, "list:*")
}
