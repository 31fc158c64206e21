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

type StudentHandler struct {
	BaseHandler
	service services.StudentService
}

func NewStudentHandler(service services.StudentService, logger utils.Logger) *StudentHandler {
	return &StudentHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== CORE CRUD ENDPOINTS =====

// CreateStudent enrolls a student into a class
// @Summary Create a student enrollment
// @Description Enroll a student into a class (assigned teacher or admin only)
// @Tags students
// @Accept json
// @Produce json
// @Param request body services.CreateStudentRequest true "Student creation request"
// @Success 201 {object} services.StudentResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Class not found"
// @Failure 409 {object} ErrorResponse "Conflict - already enrolled"
// @Router /students [post]
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	var req services.CreateStudentRequest
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

// GetStudent retrieves a student by ID
// @Summary Get a student by ID
// @Tags students
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} services.StudentResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /students/{id} [get]
func (h *StudentHandler) GetStudent(c *gin.Context) {
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

// UpdateStudent updates a student enrollment
// @Summary Update a student
// @Description Update student details (assigned teacher or admin only)
// @Tags students
// @Accept json
// @Produce json
// @Param id path int true "Student ID"
// @Param request body services.UpdateStudentRequest true "Student update request"
// @Success 200 {object} services.StudentResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /students/{id} [put]
func (h *StudentHandler) UpdateStudent(c *gin.Context) {
	id, ok := ParseUintIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateStudentRequest
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

// DeleteStudent removes a student enrollment
// @Summary Delete a student
// @Description Remove the enrollment. The linked account is deleted too when no other enrollment references it.
// @Tags students
// @Produce json
// @Param id path int true "Student ID"
// @Success 204 "No content"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /students/{id} [delete]
func (h *StudentHandler) DeleteStudent(c *gin.Context) {
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

// BulkStudentAction applies an action to a list of students
// @Summary Apply a bulk action to students
// @Description Delete, assign a class, activate or deactivate a list of student enrollments
// @Tags students
// @Accept json
// @Produce json
// @Param request body services.BulkStudentActionRequest true "Bulk action request"
// @Success 200 {object} services.BulkStudentActionResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /students/batch [post]
func (h *StudentHandler) BulkStudentAction(c *gin.Context) {
	var req services.BulkStudentActionRequest
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

	response, err := h.service.BulkAction(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== LIST ENDPOINTS =====

// ListStudents lists students with filtering
// @Summary List students
// @Tags students
// @Produce json
// @Param class_id query int false "Filter by class ID"
// @Param status query string false "Filter by enrollment status (active, inactive)"
// @Param search query string false "Filter by name or email"
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param count_only query bool false "Return only the total matching count"
// @Success 200 {object} services.StudentListResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /students [get]
func (h *StudentHandler) ListStudents(c *gin.Context) {
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	filters := h.parseStudentFilters(c)

	if c.Query("count_only") == "true" {
		total, err := h.service.Count(c.Request.Context(), filters, userID)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": total})
		return
	}

	response, err := h.service.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== SELF-SERVICE ENDPOINTS =====

// GetMyClasses lists the classes the current account is enrolled in
// @Summary Get current user's classes
// @Tags students
// @Produce json
// @Success 200 {array} services.ClassResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /students/me/classes [get]
func (h *StudentHandler) GetMyClasses(c *gin.Context) {
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.GetClassesForUser(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// EnsureEnrollment materializes the current account's enrollment in a
// class
// @Summary Ensure enrollment in a class
// @Description Create the enrollment row for the signed-in account on first contact with a class
// @Tags students
// @Produce json
// @Param class_id path int true "Class ID"
// @Success 200 {object} services.StudentResponse
// @Failure 404 {object} ErrorResponse "Class not found"
// @Router /students/me/classes/{class_id} [post]
func (h *StudentHandler) EnsureEnrollment(c *gin.Context) {
	classID, ok := ParseUintIDParam(c, "class_id")
	if !ok {
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.EnsureForUser(c.Request.Context(), userID, classID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== HELPER METHODS =====

func (h *StudentHandler) parseStudentFilters(c *gin.Context) repositories.StudentFilters {
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

	if classID, ok := parseUintQuery(c, "class_id"); ok {
		filters.ClassID = &classID
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

func (h *StudentHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrStudentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Student not found",
		})
	case errors.Is(err, services.ErrClassNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Class not found",
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
		})
	case errors.Is(err, services.ErrDuplicateEnrollment):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Student already enrolled in class",
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
