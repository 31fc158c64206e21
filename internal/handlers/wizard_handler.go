package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EduOps-2025/school-service/internal/services"
	"github.com/EduOps-2025/school-service/internal/utils"
)

type WizardHandler struct {
	BaseHandler
	service services.WizardService
}

func NewWizardHandler(service services.WizardService, logger utils.Logger) *WizardHandler {
	return &WizardHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== SESSION ENDPOINTS =====

// StartWizard starts a new setup wizard session
// @Summary Start the setup wizard
// @Description Create a fresh wizard session. The session starts at the teacher step.
// @Tags wizard
// @Produce json
// @Success 201 {object} services.WizardSessionResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /wizard [post]
func (h *WizardHandler) StartWizard(c *gin.Context) {
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.Start(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetWizardSession retrieves the current wizard session state
// @Summary Get wizard session
// @Tags wizard
// @Produce json
// @Param session_id path string true "Wizard session ID"
// @Success 200 {object} services.WizardSessionResponse
// @Failure 404 {object} ErrorResponse "Session not found or expired"
// @Router /wizard/{session_id} [get]
func (h *WizardHandler) GetWizardSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.GetSession(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== STEP ENDPOINTS =====

// SubmitTeacherStep submits the teacher creation step
// @Summary Submit the teacher step
// @Description Create the teacher account for this wizard. Generated credentials are returned once and never stored.
// @Tags wizard
// @Accept json
// @Produce json
// @Param session_id path string true "Wizard session ID"
// @Param request body services.WizardTeacherStepRequest true "Teacher details"
// @Success 200 {object} services.WizardSessionResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 404 {object} ErrorResponse "Session not found"
// @Failure 409 {object} ErrorResponse "Step out of order"
// @Router /wizard/{session_id}/teacher [post]
func (h *WizardHandler) SubmitTeacherStep(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	var req services.WizardTeacherStepRequest
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

	response, err := h.service.SubmitTeacherStep(c.Request.Context(), sessionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SubmitClassStep submits the class creation step
// @Summary Submit the class step
// @Description Create the class owned by the teacher from the previous step.
// @Tags wizard
// @Accept json
// @Produce json
// @Param session_id path string true "Wizard session ID"
// @Param request body services.WizardClassStepRequest true "Class details"
// @Success 200 {object} services.WizardSessionResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 404 {object} ErrorResponse "Session not found"
// @Failure 409 {object} ErrorResponse "Step out of order"
// @Router /wizard/{session_id}/class [post]
func (h *WizardHandler) SubmitClassStep(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	var req services.WizardClassStepRequest
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

	response, err := h.service.SubmitClassStep(c.Request.Context(), sessionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SubmitPromoCodeStep submits the promo code generation step
// @Summary Submit the promo code step
// @Description Generate single-use enrollment codes for the class from the previous step.
// @Tags wizard
// @Accept json
// @Produce json
// @Param session_id path string true "Wizard session ID"
// @Param request body services.WizardPromoCodeStepRequest true "Code generation details"
// @Success 200 {object} services.WizardSessionResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 404 {object} ErrorResponse "Session not found"
// @Failure 409 {object} ErrorResponse "Step out of order"
// @Router /wizard/{session_id}/promo-codes [post]
func (h *WizardHandler) SubmitPromoCodeStep(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	var req services.WizardPromoCodeStepRequest
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

	response, err := h.service.SubmitPromoCodeStep(c.Request.Context(), sessionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// CompleteWizard completes the wizard and discards the session
// @Summary Complete the setup wizard
// @Tags wizard
// @Produce json
// @Param session_id path string true "Wizard session ID"
// @Success 200 {object} services.WizardSessionResponse
// @Failure 404 {object} ErrorResponse "Session not found"
// @Failure 409 {object} ErrorResponse "Wizard not finished"
// @Router /wizard/{session_id}/complete [post]
func (h *WizardHandler) CompleteWizard(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.Complete(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== HELPER METHODS =====

func (h *WizardHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrWizardSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Wizard session not found or expired",
		})
	case errors.Is(err, services.ErrWizardStepOrder):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Wizard step out of order",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrDuplicateUser):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "A user with this name already exists",
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
