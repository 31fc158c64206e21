package casdoor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

type UserCasdoor struct {
	client *casdoorsdk.Client
	redis  *redis.Client
	config CasdoorConfig

	// Cache settings
	cachePrefix string
	cacheTTL    time.Duration
}

func NewUserCasdoor(config CasdoorConfig, redisClient *redis.Client) repositories.UserRepository {
	// Initialize Casdoor client
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)

	return &UserCasdoor{
		client:      client,
		redis:       redisClient,
		config:      config,
		cachePrefix: "user:",
		cacheTTL:    15 * time.Minute, // Cache for 15 minutes
	}
}

// ===== CACHE METHODS =====

// getCacheKey generates cache key for user data
func (u *UserCasdoor) getCacheKey(key string) string {
	return fmt.Sprintf("%s%s", u.cachePrefix, key)
}

// getUserFromCache retrieves user from cache
func (u *UserCasdoor) getUserFromCache(ctx context.Context, key string) (*models.User, error) {
	if u.redis == nil {
		return nil, nil // Cache not available
	}

	cacheKey := u.getCacheKey(key)
	data, err := u.redis.Get(ctx, cacheKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Not found in cache
		}
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached user: %w", err)
	}

	return &user, nil
}

// setUserCache stores user in cache
func (u *UserCasdoor) setUserCache(ctx context.Context, key string, user *models.User) error {
	if u.redis == nil {
		return nil // Cache not available
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user for cache: %w", err)
	}

	cacheKey := u.getCacheKey(key)
	return u.redis.Set(ctx, cacheKey, data, u.cacheTTL).Err()
}

// invalidateUserCache drops all cached entries for a user after a write
func (u *UserCasdoor) invalidateUserCache(ctx context.Context, user *models.User) {
	if u.redis == nil || user == nil {
		return
	}

	keys := []string{
		u.getCacheKey(fmt.Sprintf("id:%s", user.ID)),
		u.getCacheKey(fmt.Sprintf("name:%s", user.Name)),
		u.getCacheKey(fmt.Sprintf("email:%s", user.Email)),
		u.getCacheKey(fmt.Sprintf("exists:id:%s", user.ID)),
		u.getCacheKey(fmt.Sprintf("exists:name:%s", user.Name)),
		u.getCacheKey(fmt.Sprintf("exists:email:%s", user.Email)),
	}
	u.redis.Del(ctx, keys...)
}

// ===== CONVERSION METHODS =====

// convertCasdoorUserToModel converts Casdoor user to internal model
func (u *UserCasdoor) convertCasdoorUserToModel(casdoorUser *casdoorsdk.User) *models.User {
	if casdoorUser == nil {
		return nil
	}

	// Use ID as string directly
	id := casdoorUser.Id

	// Parse timestamps
	var createdAt, updatedAt time.Time
	if casdoorUser.CreatedTime != "" {
		createdAt, _ = time.Parse(time.RFC3339, casdoorUser.CreatedTime)
	}
	if casdoorUser.UpdatedTime != "" {
		updatedAt, _ = time.Parse(time.RFC3339, casdoorUser.UpdatedTime)
	}

	return &models.User{
		ID:            id,
		Name:          casdoorUser.Name,
		FirstName:     casdoorUser.FirstName,
		LastName:      casdoorUser.LastName,
		FullName:      casdoorUser.DisplayName,
		Email:         casdoorUser.Email,
		Phone:         casdoorUser.Phone,
		Role:          u.convertCasdoorRolesToModel(casdoorUser),
		AvatarURL:     &casdoorUser.Avatar,
		EmailVerified: casdoorUser.EmailVerified,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

func (u *UserCasdoor) convertCasdoorRolesToModel(casdoorUser *casdoorsdk.User) models.UserRole {
	var roles []models.UserRole
	isExist := make(map[models.UserRole]bool)

	// The user type carries the primary role for accounts this service
	// provisions itself
	if casdoorUser.Type != "" {
		mappedRole := u.mapSingleCasdoorRoleToUserRole(casdoorUser.Type)
		roles = append(roles, mappedRole)
		isExist[mappedRole] = true
	}

	for _, casdoorRole := range casdoorUser.Roles {
		mappedRole := u.mapSingleCasdoorRoleToUserRole(casdoorRole.Name)
		if !isExist[mappedRole] {
			roles = append(roles, mappedRole)
			isExist[mappedRole] = true
		}
	}

	// Ensure at least one role
	// if contain admin, only keep admin
	if slices.Contains(roles, models.RoleAdmin) || casdoorUser.IsAdmin {
		return models.RoleAdmin
	}

	if len(roles) == 0 {
		return models.RoleStudent // Default role
	}
	return roles[0] // Return the first role as primary
}

func (u *UserCasdoor) mapSingleCasdoorRoleToUserRole(casdoorType string) models.UserRole {
	switch strings.ToLower(casdoorType) {
	case "student":
		return models.RoleStudent
	case "teacher", "instructor":
		return models.RoleTeacher
	case "admin", "administrator":
		return models.RoleAdmin
	default:
		return models.RoleStudent // Default role
	}
}

// convertModelToCasdoorUser maps the internal model onto a Casdoor user
// for write operations
func (u *UserCasdoor) convertModelToCasdoorUser(user *models.User) *casdoorsdk.User {
	casdoorUser := &casdoorsdk.User{
		Owner:       u.config.OrganizationName,
		Id:          user.ID,
		Name:        user.Name,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		DisplayName: user.FullName,
		Email:       user.Email,
		Phone:       user.Phone,
		Type:        string(user.Role),
		Password:    user.Password,
	}
	if casdoorUser.DisplayName == "" {
		casdoorUser.DisplayName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	if user.AvatarURL != nil {
		casdoorUser.Avatar = *user.AvatarURL
	}
	return casdoorUser
}

// ===== BASIC READ OPERATIONS =====

// GetByID retrieves a user by ID
func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	// Try cache first
	cacheKey := fmt.Sprintf("id:%s", id)
	if cachedUser, err := u.getUserFromCache(ctx, cacheKey); err == nil && cachedUser != nil {
		return cachedUser, nil
	}

	// Get from Casdoor
	casdoorUser, err := u.client.GetUserByUserId(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
	}

	if casdoorUser == nil {
		return nil, fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
	}

	user := u.convertCasdoorUserToModel(casdoorUser)
	if user == nil {
		return nil, fmt.Errorf("failed to convert Casdoor user")
	}

	// Cache the result
	u.setUserCache(ctx, cacheKey, user)
	u.setUserCache(ctx, fmt.Sprintf("email:%s", user.Email), user)

	return user, nil
}

// GetByName retrieves a user by login name
func (u *UserCasdoor) GetByName(ctx context.Context, name string) (*models.User, error) {
	// Try cache first
	cacheKey := fmt.Sprintf("name:%s", name)
	if cachedUser, err := u.getUserFromCache(ctx, cacheKey); err == nil && cachedUser != nil {
		return cachedUser, nil
	}

	casdoorUser, err := u.client.GetUser(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by name from Casdoor: %w", err)
	}

	if casdoorUser == nil {
		return nil, fmt.Errorf("user %s: %w", name, repositories.ErrNotFound)
	}

	user := u.convertCasdoorUserToModel(casdoorUser)
	if user == nil {
		return nil, fmt.Errorf("failed to convert Casdoor user")
	}

	// Cache the result
	u.setUserCache(ctx, cacheKey, user)
	u.setUserCache(ctx, fmt.Sprintf("id:%s", user.ID), user)

	return user, nil
}

// GetByEmail retrieves a user by email
func (u *UserCasdoor) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	// Try cache first
	cacheKey := fmt.Sprintf("email:%s", email)
	if cachedUser, err := u.getUserFromCache(ctx, cacheKey); err == nil && cachedUser != nil {
		return cachedUser, nil
	}

	// Get from Casdoor by email
	casdoorUser, err := u.client.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email from Casdoor: %w", err)
	}

	if casdoorUser == nil {
		return nil, fmt.Errorf("user %s: %w", email, repositories.ErrNotFound)
	}

	user := u.convertCasdoorUserToModel(casdoorUser)
	if user == nil {
		return nil, fmt.Errorf("failed to convert Casdoor user")
	}

	// Cache the result
	u.setUserCache(ctx, cacheKey, user)
	u.setUserCache(ctx, fmt.Sprintf("id:%s", user.ID), user)

	return user, nil
}

// GetByIDs retrieves multiple users by their IDs
func (u *UserCasdoor) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	users := make([]*models.User, 0, len(ids))
	uncachedIDs := make([]string, 0)

	// Check cache first
	for _, id := range ids {
		cacheKey := fmt.Sprintf("id:%s", id)
		if cachedUser, err := u.getUserFromCache(ctx, cacheKey); err == nil && cachedUser != nil {
			users = append(users, cachedUser)
		} else {
			uncachedIDs = append(uncachedIDs, id)
		}
	}

	// Fetch uncached users from Casdoor
	for _, id := range uncachedIDs {
		user, err := u.GetByID(ctx, id)
		if err == nil && user != nil {
			users = append(users, user)
		}
		// Continue even if individual user fetch fails
	}

	return users, nil
}

// ===== WRITE OPERATIONS =====

// Create provisions a new account in Casdoor
func (u *UserCasdoor) Create(ctx context.Context, user *models.User) error {
	casdoorUser := u.convertModelToCasdoorUser(user)
	casdoorUser.CreatedTime = time.Now().Format(time.RFC3339)

	ok, err := u.client.AddUser(casdoorUser)
	if err != nil {
		return fmt.Errorf("failed to create user in Casdoor: %w", err)
	}
	if !ok {
		return fmt.Errorf("Casdoor rejected user creation for %s", user.Name)
	}

	// Re-read to learn the assigned ID
	created, err := u.client.GetUser(user.Name)
	if err == nil && created != nil {
		user.ID = created.Id
	}

	u.invalidateUserCache(ctx, user)
	return nil
}

// Update pushes changed profile fields back to Casdoor
func (u *UserCasdoor) Update(ctx context.Context, user *models.User) error {
	casdoorUser := u.convertModelToCasdoorUser(user)

	ok, err := u.client.UpdateUser(casdoorUser)
	if err != nil {
		return fmt.Errorf("failed to update user in Casdoor: %w", err)
	}
	if !ok {
		return fmt.Errorf("Casdoor rejected user update for %s", user.Name)
	}

	u.invalidateUserCache(ctx, user)
	return nil
}

// Delete removes the account from Casdoor
func (u *UserCasdoor) Delete(ctx context.Context, id string) error {
	user, err := u.GetByID(ctx, id)
	if err != nil {
		return err
	}

	ok, err := u.client.DeleteUser(u.convertModelToCasdoorUser(user))
	if err != nil {
		return fmt.Errorf("failed to delete user in Casdoor: %w", err)
	}
	if !ok {
		return fmt.Errorf("Casdoor rejected user deletion for %s", user.Name)
	}

	u.invalidateUserCache(ctx, user)
	return nil
}

// ===== ROLE MANAGEMENT =====

// AssignRole sets the user's primary role
func (u *UserCasdoor) AssignRole(ctx context.Context, id string, role models.UserRole) error {
	user, err := u.GetByID(ctx, id)
	if err != nil {
		return err
	}

	user.Role = role
	return u.Update(ctx, user)
}

// RemoveRole strips the role from the user. The account falls back to
// the default student role, Casdoor has no roleless users.
func (u *UserCasdoor) RemoveRole(ctx context.Context, id string, role models.UserRole) error {
	user, err := u.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if user.Role != role {
		return nil
	}

	user.Role = models.RoleStudent
	return u.Update(ctx, user)
}

// ===== VALIDATION AND CHECKS =====

// ExistsByID checks if a user exists by ID
func (u *UserCasdoor) ExistsByID(ctx context.Context, id string) (bool, error) {
	// Check cache first
	cacheKey := u.getCacheKey(fmt.Sprintf("exists:id:%s", id))
	if u.redis != nil {
		exists, err := u.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			return exists == "true", nil
		}
	}

	// Check with Casdoor
	user, err := u.client.GetUserByUserId(id)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	exists := user != nil

	// Cache the result for a shorter time
	if u.redis != nil {
		u.redis.Set(ctx, cacheKey, fmt.Sprintf("%t", exists), 1*time.Minute)
	}

	return exists, nil
}

// ExistsByName checks if a user exists by login name
func (u *UserCasdoor) ExistsByName(ctx context.Context, name string) (bool, error) {
	// Check cache first
	cacheKey := u.getCacheKey(fmt.Sprintf("exists:name:%s", name))
	if u.redis != nil {
		exists, err := u.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			return exists == "true", nil
		}
	}

	// Check with Casdoor
	user, err := u.client.GetUser(name)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence by name: %w", err)
	}

	exists := user != nil

	// Cache the result
	if u.redis != nil {
		u.redis.Set(ctx, cacheKey, fmt.Sprintf("%t", exists), 1*time.Minute)
	}

	return exists, nil
}

// ExistsByEmail checks if a user exists by email
func (u *UserCasdoor) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	// Check cache first
	cacheKey := u.getCacheKey(fmt.Sprintf("exists:email:%s", email))
	if u.redis != nil {
		exists, err := u.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			return exists == "true", nil
		}
	}

	// Check with Casdoor
	user, err := u.client.GetUserByEmail(email)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence by email: %w", err)
	}

	exists := user != nil

	// Cache the result
	if u.redis != nil {
		u.redis.Set(ctx, cacheKey, fmt.Sprintf("%t", exists), 1*time.Minute)
	}

	return exists, nil
}

// HasRole checks if a user has a specific role
func (u *UserCasdoor) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	user, err := u.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return role == user.Role, nil
}

// ===== LIST AND SEARCH OPERATIONS =====

// List retrieves a paginated list of users with optional filters
func (u *UserCasdoor) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	// Set defaults
	if filters.Limit <= 0 {
		filters.Limit = 10
	}
	if filters.Limit > 100 {
		filters.Limit = 100
	}

	// Calculate page number from offset (Casdoor uses 1-indexed pages)
	page := (filters.Offset / filters.Limit) + 1
	if page < 1 {
		page = 1
	}

	// Build query map for Casdoor filtering
	queryMap := make(map[string]string)

	// Add search query if provided
	if filters.Query != "" {
		// Casdoor will search in name and email fields
		queryMap["field"] = "email"
		queryMap["value"] = filters.Query
	}

	// Get paginated users from Casdoor
	casdoorUsers, count, err := u.client.GetPaginationUsers(page, filters.Limit, queryMap)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get users from Casdoor: %w", err)
	}

	// Convert to internal model
	users := make([]*models.User, 0, len(casdoorUsers))
	for _, casdoorUser := range casdoorUsers {
		user := u.convertCasdoorUserToModel(casdoorUser)
		if user == nil {
			continue
		}

		// Role filtering happens here, Casdoor pagination cannot filter
		// on the mapped role
		if filters.Role != nil && user.Role != *filters.Role {
			continue
		}

		users = append(users, user)

		// Cache each user
		cacheKey := fmt.Sprintf("id:%s", user.ID)
		u.setUserCache(ctx, cacheKey, user)
		u.setUserCache(ctx, fmt.Sprintf("email:%s", user.Email), user)
	}

	return users, int64(count), nil
}

// Search searches for users by query string
func (u *UserCasdoor) Search(ctx context.Context, query string, filters repositories.UserFilters) ([]*models.User, int64, error) {
	// Set query in filters and use List method
	filters.Query = query
	return u.List(ctx, filters)
}
