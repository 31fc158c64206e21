package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/events"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// Logging configuration
	EnableDebugLogging bool
	EnableMetrics      bool
	LogLevel           slog.Level

	// Service-specific configurations
	Class     ServiceConfig
	Teacher   ServiceConfig
	Student   ServiceConfig
	PromoCode ServiceConfig
	Wizard    ServiceConfig

	// Global settings
	DefaultTimeout    time.Duration
	MaxRetries        int
	CircuitBreaker    bool
	RateLimitingRules map[string]RateLimit
}

type ServiceConfig struct {
	Enabled         bool
	CacheEnabled    bool
	CacheTTL        time.Duration
	ValidationLevel ValidationLevel
	AuditingEnabled bool
	MetricsEnabled  bool
}

type ValidationLevel int

const (
	ValidationBasic ValidationLevel = iota
	ValidationStrict
	ValidationFull
)

type RateLimit struct {
	RequestsPerMinute int
	BurstSize         int
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db        *gorm.DB
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	config    ServiceManagerConfig

	// Service instances
	classService             ClassService
	teacherService           TeacherService
	studentService           StudentService
	promoCodeService         PromoCodeService
	wizardService            WizardService
	importExportService      ImportExportService
	notificationEventService NotificationEventService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		config:    config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: false,
		EnableMetrics:      true,
		LogLevel:           slog.LevelInfo,

		Class: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    true,
			CacheTTL:        10 * time.Minute,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
			MetricsEnabled:  true,
		},
		Teacher: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    true,
			CacheTTL:        5 * time.Minute,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
			MetricsEnabled:  true,
		},
		Student: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        1 * time.Minute,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
			MetricsEnabled:  true,
		},
		PromoCode: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false, // Redemption counters must be live
			CacheTTL:        0,
			ValidationLevel: ValidationFull,
			AuditingEnabled: true,
			MetricsEnabled:  true,
		},
		Wizard: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        0,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
			MetricsEnabled:  false,
		},

		DefaultTimeout:    30 * time.Second,
		MaxRetries:        3,
		CircuitBreaker:    true,
		RateLimitingRules: make(map[string]RateLimit),
	}

	return NewServiceManager(db, repo, publisher, logger, validator, config)
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(ctx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := sm.validateServicesHealth(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices(ctx context.Context) error {
	// NotificationEventService first, the domain services publish
	// through it
	sm.notificationEventService = NewNotificationEventService(sm.repo, sm.publisher, sm.logger, sm.validator)
	sm.logger.Info("NotificationEvent service initialized")

	if sm.config.Class.Enabled {
		sm.classService = NewClassService(sm.repo, sm.db, sm.logger, sm.validator)
		sm.logger.Info("Class service initialized")
	}

	if sm.config.Teacher.Enabled {
		sm.teacherService = NewTeacherService(sm.repo, sm.db, sm.logger, sm.validator, sm.notificationEventService)
		sm.logger.Info("Teacher service initialized")
	}

	if sm.config.Student.Enabled {
		sm.studentService = NewStudentService(sm.repo, sm.db, sm.logger, sm.validator, sm.notificationEventService)
		sm.logger.Info("Student service initialized")
	}

	if sm.config.PromoCode.Enabled {
		sm.promoCodeService = NewPromoCodeService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher, sm.notificationEventService)
		sm.logger.Info("PromoCode service initialized")
	}

	if sm.config.Wizard.Enabled {
		sm.wizardService = NewWizardService(sm.repo, sm.logger, sm.validator, sm.teacherService, sm.classService, sm.promoCodeService)
		sm.logger.Info("Wizard service initialized")
	}

	sm.importExportService = NewImportExportService(sm.repo, sm.logger, sm.validator)
	sm.logger.Info("ImportExport service initialized")

	return nil
}

func (sm *serviceManager) validateServicesHealth(ctx context.Context) error {
	if sm.config.Wizard.Enabled {
		if sm.teacherService == nil || sm.classService == nil || sm.promoCodeService == nil {
			return fmt.Errorf("wizard service requires teacher, class and promo code services")
		}
	}

	return nil
}

// Service getters
func (sm *serviceManager) Class() ClassService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Class.Enabled && sm.classService != nil {
		return sm.classService
	}

	panic("class service not enabled or not initialized")
}

func (sm *serviceManager) Teacher() TeacherService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Teacher.Enabled && sm.teacherService != nil {
		return sm.teacherService
	}

	panic("teacher service not enabled or not initialized")
}

func (sm *serviceManager) Student() StudentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Student.Enabled && sm.studentService != nil {
		return sm.studentService
	}

	panic("student service not enabled or not initialized")
}

func (sm *serviceManager) PromoCode() PromoCodeService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.PromoCode.Enabled && sm.promoCodeService != nil {
		return sm.promoCodeService
	}

	panic("promo code service not enabled or not initialized")
}

func (sm *serviceManager) Wizard() WizardService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Wizard.Enabled && sm.wizardService != nil {
		return sm.wizardService
	}

	panic("wizard service not enabled or not initialized")
}

func (sm *serviceManager) ImportExport() ImportExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.importExportService != nil {
		return sm.importExportService
	}

	panic("import/export service not initialized")
}

func (sm *serviceManager) NotificationEvent() NotificationEventService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.notificationEventService != nil {
		return sm.notificationEventService
	}

	panic("notification event service not initialized")
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	if repoManager, ok := sm.repo.(repositories.RepositoryManager); ok {
		if err := repoManager.Shutdown(ctx); err != nil {
			sm.logger.Error("Failed to shutdown repository manager", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

// ===== UTILITY METHODS =====

// GetConfig returns the service manager configuration
func (sm *serviceManager) GetConfig() ServiceManagerConfig {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.config
}

// IsInitialized returns whether the service manager has been initialized
func (sm *serviceManager) IsInitialized() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.initialized
}

// IsShutdown returns whether the service manager has been shut down
func (sm *serviceManager) IsShutdown() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.shutdown
}

// ===== HELPER FUNCTIONS =====

// WithTimeout creates a context with the default timeout
func (sm *serviceManager) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, sm.config.DefaultTimeout)
}

// ===== CONFIGURATION VALIDATION =====

// ValidateConfig validates the service manager configuration
func (config *ServiceManagerConfig) Validate() error {
	var errors []string

	if config.DefaultTimeout <= 0 {
		errors = append(errors, "default timeout must be positive")
	}

	if config.MaxRetries < 0 {
		errors = append(errors, "max retries cannot be negative")
	}

	if err := config.Class.validate("class"); err != nil {
		errors = append(errors, err.Error())
	}

	if err := config.Teacher.validate("teacher"); err != nil {
		errors = append(errors, err.Error())
	}

	if err := config.Student.validate("student"); err != nil {
		errors = append(errors, err.Error())
	}

	if err := config.PromoCode.validate("promo_code"); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func (sc *ServiceConfig) validate(serviceName string) error {
	var errors []string

	if sc.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("%s: cache TTL cannot be negative", serviceName))
	}

	if sc.ValidationLevel < ValidationBasic || sc.ValidationLevel > ValidationFull {
		errors = append(errors, fmt.Sprintf("%s: invalid validation level", serviceName))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", errors[0])
	}

	return nil
}

// ===== FACTORY FUNCTIONS =====

// CreateProductionServiceManager creates a service manager configured for production
func CreateProductionServiceManager(db *gorm.DB, repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: false,
		EnableMetrics:      true,
		LogLevel:           slog.LevelInfo,

		Class: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    true,
			CacheTTL:        10 * time.Minute,
			ValidationLevel: ValidationFull,
			AuditingEnabled: true,
			MetricsEnabled:  true,
		},
		Teacher: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    true,
			CacheTTL:        10 * time.Minute,
			ValidationLevel: ValidationFull,
			AuditingEnabled: true,
			MetricsEnabled:  true,
		},
		Student: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        0,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
			MetricsEnabled:  true,
		},
		PromoCode: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        0,
			ValidationLevel: ValidationFull,
			AuditingEnabled: true,
			MetricsEnabled:  true,
		},
		Wizard: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        0,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
			MetricsEnabled:  false,
		},

		DefaultTimeout: 60 * time.Second,
		MaxRetries:     3,
		CircuitBreaker: true,
		RateLimitingRules: map[string]RateLimit{
			"promo_code_generate": {RequestsPerMinute: 30, BurstSize: 5},
			"promo_code_redeem":   {RequestsPerMinute: 120, BurstSize: 30},
			"teacher_create":      {RequestsPerMinute: 20, BurstSize: 5},
		},
	}

	return NewServiceManager(db, repo, publisher, logger, validator, config)
}

// CreateDevelopmentServiceManager creates a service manager configured for development
func CreateDevelopmentServiceManager(db *gorm.DB, repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: true,
		EnableMetrics:      false,
		LogLevel:           slog.LevelDebug,

		Class: ServiceConfig{
			Enabled:         true,
			ValidationLevel: ValidationBasic,
		},
		Teacher: ServiceConfig{
			Enabled:         true,
			ValidationLevel: ValidationBasic,
		},
		Student: ServiceConfig{
			Enabled:         true,
			ValidationLevel: ValidationBasic,
		},
		PromoCode: ServiceConfig{
			Enabled:         true,
			ValidationLevel: ValidationBasic,
		},
		Wizard: ServiceConfig{
			Enabled:         true,
			ValidationLevel: ValidationBasic,
		},

		DefaultTimeout:    10 * time.Second,
		MaxRetries:        1,
		CircuitBreaker:    false,
		RateLimitingRules: make(map[string]RateLimit),
	}

	return NewServiceManager(db, repo, publisher, logger, validator, config)
}
