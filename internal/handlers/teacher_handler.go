package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/services"
	"github.com/EduOps-2025/school-service/internal/utils"
)

type TeacherHandler struct {
	BaseHandler
	service services.TeacherService
}

func NewTeacherHandler(service services.TeacherService, logger utils.Logger) *TeacherHandler {
	return &TeacherHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== PROVISIONING ENDPOINTS =====

// CreateTeacher provisions a teacher account
// @Summary Create a teacher
// @Description Provision a teacher account. Generated credentials are returned exactly once.
// @Tags teachers
// @Accept json
// @Produce json
// @Param request body services.CreateTeacherRequest true "Teacher creation request"
// @Success 201 {object} services.CreateTeacherResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - admin only"
// @Failure 409 {object} ErrorResponse "Login or email already taken"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /teachers [post]
func (h *TeacherHandler) CreateTeacher(c *gin.Context) {
	var req services.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetTeacher retrieves a teacher by ID
// @Summary Get a teacher by ID
// @Tags teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} services.TeacherResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /teachers/{id} [get]
func (h *TeacherHandler) GetTeacher(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// UpdateTeacher updates a teacher's details
// @Summary Update a teacher
// @Description Update teacher details (self or admin only)
// @Tags teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param request body services.UpdateTeacherRequest true "Teacher update request"
// @Success 200 {object} services.TeacherResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /teachers/{id} [put]
func (h *TeacherHandler) UpdateTeacher(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.UpdateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// AssignTeacherRole grants the teacher role to an existing account
// @Summary Assign the teacher role
// @Description Grant the teacher role to an existing account (admin only)
// @Tags teachers
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} services.TeacherResponse
// @Failure 403 {object} ErrorResponse "Forbidden - admin only"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /teachers/{id}/role [post]
func (h *TeacherHandler) AssignTeacherRole(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.AssignRole(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RemoveTeacherRole strips the teacher role from an account
// @Summary Remove the teacher role
// @Description Strip the teacher role and unassign every class that referenced the teacher (admin only)
// @Tags teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse "Forbidden - admin only"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /teachers/{id}/role [delete]
func (h *TeacherHandler) RemoveTeacherRole(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	if err := h.service.RemoveRole(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Teacher role removed successfully",
	})
}

// DeleteTeacher removes a teacher account entirely
// @Summary Delete a teacher
// @Description Remove the teacher account and unassign its classes (admin only)
// @Tags teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 204 "No content"
// @Failure 403 {object} ErrorResponse "Forbidden - admin only"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /teachers/{id} [delete]
func (h *TeacherHandler) DeleteTeacher(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ===== LIST ENDPOINTS =====

// ListTeachers lists teacher accounts
// @Summary List teachers
// @Tags teachers
// @Produce json
// @Param q query string false "Search by name or email"
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Success 200 {object} services.TeacherListResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /teachers [get]
func (h *TeacherHandler) ListTeachers(c *gin.Context) {
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	limit, offset := parsePagination(c)
	role := models.RoleTeacher
	filters := repositories.UserFilters{
		Query:  c.Query("q"),
		Role:   &role,
		Limit:  limit,
		Offset: offset,
	}

	response, err := h.service.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetTeacherClasses lists classes taught by a teacher
// @Summary Get classes taught by a teacher
// @Tags teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} services.ClassListResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /teachers/{id}/classes [get]
func (h *TeacherHandler) GetTeacherClasses(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	if _, ok := RequireUserID(c); !ok {
		return
	}

	limit, offset := parsePagination(c)
	sortBy, sortOrder := parseSorting(c, map[string]bool{
		"name":       true,
		"created_at": true,
	})

	response, err := h.service.GetClasses(c.Request.Context(), id, repositories.ClassFilters{
		Limit:     limit,
		Offset:    offset,
		SortBy:    sortBy,
		SortOrder: sortOrder,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== HELPER METHODS =====

func (h *TeacherHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTeacherNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Teacher not found",
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
		})
	case errors.Is(err, services.ErrDuplicateUser):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Account already exists",
		})
	case errors.Is(err, services.ErrValidationFailed), isValidationError(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Unauthorized",
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
