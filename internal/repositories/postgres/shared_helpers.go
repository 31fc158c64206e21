package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/repositories"
)

// handleDBError is a package-level helper for handling database errors.
// Driver not-found and duplicate-key errors are mapped onto the
// repositories sentinels so callers can use errors.Is without gorm.
func handleDBError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s failed: %w", operation, repositories.ErrNotFound)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s failed: %w", operation, repositories.ErrDuplicateKey)
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}

// applyPaginationAndSorting applies pagination and sorting with SQL
// injection protection. sortKeyToColumn whitelists the API sort keys
// and maps them to SQL-safe column names.
func applyPaginationAndSorting(query *gorm.DB, limit, offset int, sortBy, sortOrder string, sortKeyToColumn map[string]string) *gorm.DB {
	// Validate and set sort column (map API to SQL name, default if invalid)
	column, ok := sortKeyToColumn[sortBy]
	if !ok {
		column = "created_at"
	}

	// Validate and set sort order
	order := "DESC"
	if sortOrder == "asc" || sortOrder == "ASC" {
		order = "ASC"
	}

	// Use only mapped SQL column name and constant sort order
	query = query.Order(fmt.Sprintf("%s %s", column, order))

	// Apply pagination
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
