package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/cache"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/repositories/casdoor"
	"github.com/EduOps-2025/school-service/internal/repositories/redisrepo"
)

// PostgreSQLRepository implements the main Repository interface
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager

	// Repository instances
	class         repositories.ClassRepository
	student       repositories.StudentRepository
	promoCode     repositories.PromoCodeRepository
	user          repositories.UserRepository
	wizardSession repositories.WizardSessionRepository
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB            *gorm.DB
	RedisClient   *redis.Client
	CasdoorConfig casdoor.CasdoorConfig
}

// NewPostgreSQLRepository creates a new repository manager with all sub-repositories
func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	cacheManager := cache.NewCacheManager(config.RedisClient)

	repo := &PostgreSQLRepository{
		db:           config.DB,
		redisClient:  config.RedisClient,
		cacheManager: cacheManager,
	}

	repo.class = NewClassRepository(config.DB, config.RedisClient)
	repo.student = NewStudentRepository(config.DB)
	repo.promoCode = NewPromoCodeRepository(config.DB, config.RedisClient)

	// User repository uses Casdoor
	repo.user = casdoor.NewUserCasdoor(config.CasdoorConfig, config.RedisClient)

	// Wizard sessions live in Redis, they are short-lived setup state
	repo.wizardSession = redisrepo.NewWizardSessionRepository(config.RedisClient)

	return repo
}

// Class returns the class repository
func (r *PostgreSQLRepository) Class() repositories.ClassRepository {
	return r.class
}

// Student returns the student repository
func (r *PostgreSQLRepository) Student() repositories.StudentRepository {
	return r.student
}

// PromoCode returns the promo code repository
func (r *PostgreSQLRepository) PromoCode() repositories.PromoCodeRepository {
	return r.promoCode
}

// User returns the user repository
func (r *PostgreSQLRepository) User() repositories.UserRepository {
	return r.user
}

// WizardSession returns the wizard session repository
func (r *PostgreSQLRepository) WizardSession() repositories.WizardSessionRepository {
	return r.wizardSession
}

// WithTransaction executes a function within a database transaction
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Create a new repository instance with the transaction
		txRepo := &PostgreSQLRepository{
			db:           tx,
			redisClient:  r.redisClient,
			cacheManager: r.cacheManager,
		}

		// Initialize sub-repositories with transaction
		txRepo.class = NewClassRepository(tx, r.redisClient)
		txRepo.student = NewStudentRepository(tx)
		txRepo.promoCode = NewPromoCodeRepository(tx, r.redisClient)

		// User and wizard session repositories don't need the
		// transaction (they're external to Postgres)
		txRepo.user = r.user
		txRepo.wizardSession = r.wizardSession

		return fn(txRepo)
	})
}

// Ping checks the health of database and cache connections
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	// Check database connection
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Check cache connection
	if r.redisClient != nil {
		if err := r.cacheManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache ping failed: %w", err)
		}
	}

	return nil
}

// Close closes all connections
func (r *PostgreSQLRepository) Close() error {
	// Close database connection
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	// Close Redis connection
	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}

	return nil
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

// NewRepositoryManager creates a new repository manager
func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{
		config: config,
	}
}

// Initialize initializes all repositories and connections
func (rm *RepositoryManager) Initialize() error {
	// Validate configuration
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	// Test database connection
	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	// Test Redis connection if provided
	if rm.config.RedisClient != nil {
		if _, err := rm.config.RedisClient.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("Redis connection failed: %w", err)
		}
	}

	// Initialize repository
	rm.repo = NewPostgreSQLRepository(rm.config)

	return nil
}

// GetRepository returns the repository instance
func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

// HealthCheck checks the health of all repository connections
func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}

	return rm.repo.Ping(ctx)
}

// Shutdown gracefully shuts down all repository connections
func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}

	return rm.repo.Close()
}

// CacheStats returns cache statistics for monitoring
func (r *PostgreSQLRepository) CacheStats(ctx context.Context) (map[string]interface{}, error) {
	if r.redisClient == nil {
		return map[string]interface{}{
			"cache_enabled": false,
		}, nil
	}

	stats := make(map[string]interface{})
	stats["cache_enabled"] = true

	// Get Redis info
	info, err := r.redisClient.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return stats, fmt.Errorf("failed to get cache info: %w", err)
	}

	stats["redis_info"] = info

	// Get key counts by prefix
	prefixes := []string{"class:", "student:", "promo:", "user:", "exists:", "wizard:"}
	for _, prefix := range prefixes {
		keys, err := r.redisClient.Keys(ctx, prefix+"*").Result()
		if err == nil {
			stats[prefix+"count"] = len(keys)
		}
	}

	return stats, nil
}

// ClearCache clears all cache data (use with caution)
func (r *PostgreSQLRepository) ClearCache(ctx context.Context) error {
	if r.cacheManager == nil {
		return nil
	}

	return r.cacheManager.ClearAll(ctx)
}
