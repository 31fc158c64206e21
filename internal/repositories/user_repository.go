package repositories

import (
	"context"

	"github.com/EduOps-2025/school-service/internal/models"
)

// UserFilters defines filters for user queries
type UserFilters struct {
	Query  string           // Search query for name or email
	Role   *models.UserRole // Restrict to a single role
	Limit  int              // Page size
	Offset int              // Offset for pagination
}

// UserRepository interface for user operations. Accounts live in the
// identity provider; this repository is the only component that talks
// to it directly.
type UserRepository interface {
	// Basic read operations
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)

	// Write operations
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error

	// Role management
	AssignRole(ctx context.Context, id string, role models.UserRole) error
	RemoveRole(ctx context.Context, id string, role models.UserRole) error

	// List and search operations
	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)
	Search(ctx context.Context, query string, filters UserFilters) ([]*models.User, int64, error)

	// Validation and checks
	ExistsByID(ctx context.Context, id string) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}
