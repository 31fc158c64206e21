package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/EduOps-2025/school-service/internal/utils"
	"github.com/EduOps-2025/school-service/internal/validator"
)

// BaseHandler carries the shared handler dependencies
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// ErrorResponse is the error payload returned by every endpoint
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is the generic acknowledgement payload
type SuccessResponse struct {
	Message string `json:"message"`
}

// LogError logs a handler-level error with request context
func (h *BaseHandler) LogError(c *gin.Context, err error, message string) {
	logger := utils.GetLogger(c, h.logger)
	logger.Error(message,
		"error", err,
		"method", c.Request.Method,
		"path", c.Request.URL.Path)
}

// LogRequest logs a notable request at info level
func (h *BaseHandler) LogRequest(c *gin.Context, message string, args ...interface{}) {
	logger := utils.GetLogger(c, h.logger)
	logger.Info(message, args...)
}

// ParseUintIDParam parses a numeric path parameter. On failure it writes
// the 400 response and returns false.
func ParseUintIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
		})
		return 0, false
	}
	return uint(id), true
}

// ParseStringIDParam parses a string path parameter. On failure it
// writes the 400 response and returns the empty string.
func ParseStringIDParam(c *gin.Context, name string) string {
	value := c.Param(name)
	if value == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing " + name + " parameter",
		})
	}
	return value
}

// RequireUserID extracts the authenticated user ID set by the auth
// middleware. On failure it writes the 401 response and returns false.
func RequireUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}

	id, ok := userID.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}

	return id, true
}

// parseUintQuery parses an optional numeric query parameter
func parseUintQuery(c *gin.Context, name string) (uint, bool) {
	value := c.Query(name)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(parsed), true
}

// isValidationError reports whether the error chain carries field
// validation failures
func isValidationError(err error) bool {
	var ve validator.ValidationErrors
	return errors.As(err, &ve)
}

// parsePagination reads page/size query parameters into limit/offset
func parsePagination(c *gin.Context) (limit, offset int) {
	page := 1
	size := 10

	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if sizeStr := c.Query("size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
			size = s
		}
	}

	return size, (page - 1) * size
}

// parseSorting reads sort_by/sort_order query parameters, restricted to
// the given sortable fields
func parseSorting(c *gin.Context, validFields map[string]bool) (sortBy, sortOrder string) {
	sortBy = "created_at"
	sortOrder = "desc"

	if v := c.Query("sort_by"); v != "" && validFields[v] {
		sortBy = v
	}
	if v := c.Query("sort_order"); v == "asc" || v == "desc" {
		sortOrder = v
	}

	return sortBy, sortOrder
}
