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

type ClassHandler struct {
	BaseHandler
	service services.ClassService
}

func NewClassHandler(service services.ClassService, logger utils.Logger) *ClassHandler {
	return &ClassHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== CORE CRUD ENDPOINTS =====

// CreateClass creates a new class
// @Summary Create a new class
// @Description Create a class, optionally assigning a teacher
// @Tags classes
// @Accept json
// @Produce json
// @Param request body services.CreateClassRequest true "Class creation request"
// @Success 201 {object} services.ClassResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /classes [post]
func (h *ClassHandler) CreateClass(c *gin.Context) {
	var req services.CreateClassRequest
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

// GetClass retrieves a class by ID
// @Summary Get a class by ID
// @Tags classes
// @Produce json
// @Param id path int true "Class ID"
// @Success 200 {object} services.ClassResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /classes/{id} [get]
func (h *ClassHandler) GetClass(c *gin.Context) {
	id, ok := ParseUintIDParam(c, "id")
	if !ok {
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

// UpdateClass updates a class
// @Summary Update a class
// @Description Update class details (assigned teacher or admin only)
// @Tags classes
// @Accept json
// @Produce json
// @Param id path int true "Class ID"
// @Param request body services.UpdateClassRequest true "Class update request"
// @Success 200 {object} services.ClassResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /classes/{id} [put]
func (h *ClassHandler) UpdateClass(c *gin.Context) {
	id, ok := ParseUintIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateClassRequest
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

// DeleteClass deletes a class
// @Summary Delete a class
// @Description Delete a class (assigned teacher or admin only)
// @Tags classes
// @Produce json
// @Param id path int true "Class ID"
// @Success 204 "No content"
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /classes/{id} [delete]
func (h *ClassHandler) DeleteClass(c *gin.Context) {
	id, ok := ParseUintIDParam(c, "id")
	if !ok {
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

type deleteClassesBatchRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}

// DeleteClassesBatch deletes multiple classes
// @Summary Delete classes in batch
// @Tags classes
// @Accept json
// @Produce json
// @Param request body deleteClassesBatchRequest true "IDs to delete"
// @Success 200 {object} services.BulkDeleteResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /classes/batch [delete]
func (h *ClassHandler) DeleteClassesBatch(c *gin.Context) {
	var req deleteClassesBatchRequest
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

	response, err := h.service.DeleteBatch(c.Request.Context(), req.IDs, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== LIST AND SEARCH ENDPOINTS =====

// ListClasses lists classes with filtering
// @Summary List classes
// @Description Get a paginated list of classes. Teachers see their own classes only.
// @Tags classes
// @Produce json
// @Param teacher_id query string false "Filter by teacher ID"
// @Param search query string false "Filter by class name (partial match)"
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param sort_by query string false "Sort field (name, created_at) (default: created_at)"
// @Param sort_order query string false "Sort order (asc, desc) (default: desc)"
// @Success 200 {object} services.ClassListResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /classes [get]
func (h *ClassHandler) ListClasses(c *gin.Context) {
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	filters := h.parseClassFilters(c)
	response, err := h.service.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SearchClasses searches classes by name
// @Summary Search classes
// @Tags classes
// @Produce json
// @Param q query string true "Search query"
// @Success 200 {object} services.ClassListResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Router /classes/search [get]
func (h *ClassHandler) SearchClasses(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Search query parameter 'q' is required",
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	filters := h.parseClassFilters(c)
	response, err := h.service.Search(c.Request.Context(), query, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetClassStudents lists the roster of a class
// @Summary Get class roster
// @Description Get a paginated list of students in a class (assigned teacher or admin only)
// @Tags classes
// @Produce json
// @Param id path int true "Class ID"
// @Param status query string false "Filter by enrollment status (active, inactive)"
// @Param search query string false "Filter by student name or email"
// @Success 200 {object} services.StudentListResponse
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /classes/{id}/students [get]
func (h *ClassHandler) GetClassStudents(c *gin.Context) {
	id, ok := ParseUintIDParam(c, "id")
	if !ok {
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	filters := h.parseStudentFilters(c)
	response, err := h.service.GetStudents(c.Request.Context(), id, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== TEACHER ASSIGNMENT ENDPOINTS =====

type assignTeacherRequest struct {
	TeacherID string `json:"teacher_id" binding:"required"`
}

// AssignTeacher assigns a teacher to a class
// @Summary Assign a teacher to a class
// @Tags classes
// @Accept json
// @Produce json
// @Param id path int true "Class ID"
// @Param request body assignTeacherRequest true "Teacher assignment request"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /classes/{id}/teacher [put]
func (h *ClassHandler) AssignTeacher(c *gin.Context) {
	id, ok := ParseUintIDParam(c, "id")
	if !ok {
		return
	}

	var req assignTeacherRequest
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

	if err := h.service.AssignTeacher(c.Request.Context(), id, req.TeacherID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Teacher assigned successfully",
	})
}

// UnassignTeacher removes the teacher assignment from a class
// @Summary Unassign the teacher from a class
// @Tags classes
// @Produce json
// @Param id path int true "Class ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /classes/{id}/teacher [delete]
func (h *ClassHandler) UnassignTeacher(c *gin.Context) {
	id, ok := ParseUintIDParam(c, "id")
	if !ok {
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	if err := h.service.UnassignTeacher(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Teacher unassigned successfully",
	})
}

// ===== HELPER METHODS =====

func (h *ClassHandler) parseClassFilters(c *gin.Context) repositories.ClassFilters {
	limit, offset := parsePagination(c)
	sortBy, sortOrder := parseSorting(c, map[string]bool{
		"name":       true,
		"created_at": true,
		"updated_at": true,
	})

	filters := repositories.ClassFilters{
		Limit:     limit,
		Offset:    offset,
		SortBy:    sortBy,
		SortOrder: sortOrder,
	}

	if teacherID := c.Query("teacher_id"); teacherID != "" {
		filters.TeacherID = &teacherID
	}
	if search := c.Query("search"); search != "" {
		filters.Search = search
	}

	return filters
}

func (h *ClassHandler) parseStudentFilters(c *gin.Context) repositories.StudentFilters {
	limit, offset := parsePagination(c)
	sortBy, sortOrder := parseSorting(c, map[string]bool{
		"name":       true,
		"created_at": true,
	})

	filters := repositories.StudentFilters{
		Limit:     limit,
		Offset:    offset,
		SortBy:    sortBy,
		SortOrder: sortOrder,
	}

	if status := c.Query("status"); status != "" {
		s := models.StudentStatus(status)
		filters.Status = &s
	}
	if search := c.Query("search"); search != "" {
		filters.Search = search
	}

	return filters
}

func (h *ClassHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrClassNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Class not found",
		})
	case errors.Is(err, services.ErrTeacherNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Teacher not found",
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
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
