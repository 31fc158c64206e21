package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/EduOps-2025/school-service/internal/config"
	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
)

// casdoorRoles maps the user type carried in Casdoor tokens onto the
// internal role set. Unknown types fall back to student, the least
// privileged role.
var casdoorRoles = map[string]models.UserRole{
	"admin":         models.RoleAdmin,
	"administrator": models.RoleAdmin,
	"teacher":       models.RoleTeacher,
	"instructor":    models.RoleTeacher,
	"educator":      models.RoleTeacher,
	"student":       models.RoleStudent,
	"learner":       models.RoleStudent,
}

// CasdoorAuthMiddleware authenticates requests against Casdoor tokens
type CasdoorAuthMiddleware struct {
	client   *casdoorsdk.Client
	userRepo repositories.UserRepository
	config   config.CasdoorConfig
}

func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Application,
		cfg.Organization,
	)

	return &CasdoorAuthMiddleware{
		client:   client,
		userRepo: userRepo,
		config:   cfg,
	}
}

// bearerToken pulls the token out of an "Authorization: Bearer x" header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func setAuthContext(c *gin.Context, user *models.User) {
	c.Set("user_id", user.ID)
	c.Set("user", user)
	c.Set("user_role", user.Role)
	c.Set("user_email", user.Email)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
	c.Abort()
}

// AuthMiddleware rejects requests without a valid Casdoor token
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		claims, err := cam.client.ParseJwtToken(token)
		if err != nil {
			abortUnauthorized(c, fmt.Sprintf("invalid token: %v", err))
			return
		}

		user, err := cam.resolveUser(c.Request.Context(), claims)
		if err != nil {
			abortUnauthorized(c, fmt.Sprintf("failed to resolve account: %v", err))
			return
		}

		setAuthContext(c, user)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the account when a valid token is
// present and lets anonymous requests through untouched. The public
// redemption endpoint sits behind this.
func (cam *CasdoorAuthMiddleware) OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := cam.client.ParseJwtToken(token)
		if err != nil {
			c.Next()
			return
		}

		if user, err := cam.resolveUser(c.Request.Context(), claims); err == nil {
			setAuthContext(c, user)
		}
		c.Next()
	}
}

// RequireRoleMiddleware gates a route group on the caller's role.
// Admins pass every gate.
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("user_role")
		role, ok := value.(models.UserRole)
		if !exists || !ok {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "no role associated with this request",
			})
			c.Abort()
			return
		}

		if role != models.RoleAdmin {
			allowed := false
			for _, required := range requiredRoles {
				if role == required {
					allowed = true
					break
				}
			}
			if !allowed {
				c.JSON(http.StatusForbidden, gin.H{
					"error":   "forbidden",
					"message": fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
				})
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

// resolveUser turns token claims into an account. The repository is
// the source of truth; a claims-only user is built for tokens issued
// before the account reached the local cache.
func (cam *CasdoorAuthMiddleware) resolveUser(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	if claims.Id == "" {
		return nil, fmt.Errorf("token carries no user id")
	}

	if user, err := cam.userRepo.GetByID(ctx, claims.Id); err == nil {
		return user, nil
	}

	avatar := claims.User.Avatar
	role, ok := casdoorRoles[strings.ToLower(claims.User.Type)]
	if !ok {
		role = models.RoleStudent
	}

	return &models.User{
		ID:            claims.Id,
		FullName:      claims.User.DisplayName,
		Email:         claims.User.Email,
		Role:          role,
		AvatarURL:     &avatar,
		EmailVerified: true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}, nil
}

// GetUserFromContext returns the account AuthMiddleware stored on the
// request context.
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	value, exists := c.Get("user")
	if !exists {
		return nil, fmt.Errorf("no authenticated user on this request")
	}

	user, ok := value.(*models.User)
	if !ok {
		return nil, fmt.Errorf("unexpected user type in context")
	}
	return user, nil
}
