package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/services"
	"github.com/EduOps-2025/school-service/internal/utils"
)

type PromoCodeHandler struct {
	BaseHandler
	service services.PromoCodeService
}

func NewPromoCodeHandler(service services.PromoCodeService, logger utils.Logger) *PromoCodeHandler {
	return &PromoCodeHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== GENERATION ENDPOINTS =====

// GenerateCodes generates a batch of promo codes
// @Summary Generate promo codes
// @Description Generate a batch of unique enrollment codes for a class. Partial success is reported in the response.
// @Tags promo-codes
// @Accept json
// @Produce json
// @Param request body services.GeneratePromoCodesRequest true "Generation request"
// @Success 201 {object} services.GeneratePromoCodesResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Class not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /promo-codes/generate [post]
func (h *PromoCodeHandler) GenerateCodes(c *gin.Context) {
	var req services.GeneratePromoCodesRequest
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

	response, err := h.service.Generate(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ===== REDEMPTION ENDPOINTS =====

// RedeemCode redeems a promo code
// @Summary Redeem a promo code
// @Description Consume one use of a code and enroll the student into the code's class. Available without authentication.
// @Tags promo-codes
// @Accept json
// @Produce json
// @Param request body services.RedeemPromoCodeRequest true "Redemption request"
// @Success 200 {object} services.RedeemPromoCodeResponse
// @Failure 400 {object} ErrorResponse "Bad request or invalid code"
// @Failure 410 {object} ErrorResponse "Code exhausted or expired"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /redeem [post]
func (h *PromoCodeHandler) RedeemCode(c *gin.Context) {
	var req services.RedeemPromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	// Signed-in redemptions carry the account, anonymous ones don't
	if user, err := GetUserFromContext(c); err == nil {
		req.UserID = user.ID
	}

	response, err := h.service.Redeem(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== READ ENDPOINTS =====

// GetCode retrieves a promo code by ID
// @Summary Get a promo code by ID
// @Tags promo-codes
// @Produce json
// @Param id path int true "Promo code ID"
// @Success 200 {object} services.PromoCodeResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /promo-codes/{id} [get]
func (h *PromoCodeHandler) GetCode(c *gin.Context) {
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

// ListCodes lists promo codes with filtering
// @Summary List promo codes
// @Description Get a paginated list of promo codes. Teachers see their own codes only.
// @Tags promo-codes
// @Produce json
// @Param class_id query int false "Filter by class ID"
// @Param prefix query string false "Filter by code prefix"
// @Param redeemed query bool false "Filter by redemption state"
// @Param date_from query string false "Filter by creation date (YYYY-MM-DD)"
// @Param date_to query string false "Filter by creation date (YYYY-MM-DD)"
// @Param search query string false "Filter by code value"
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Success 200 {object} services.PromoCodeListResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /promo-codes [get]
func (h *PromoCodeHandler) ListCodes(c *gin.Context) {
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	filters := h.parsePromoCodeFilters(c)
	response, err := h.service.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// UpdateCode patches a promo code
// @Summary Update a promo code
// @Description Change the code string, expiry date or usage limit
// @Tags promo-codes
// @Accept json
// @Produce json
// @Param id path int true "Promo code ID"
// @Param request body services.UpdatePromoCodeRequest true "Promo code update request"
// @Success 200 {object} services.PromoCodeResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /promo-codes/{id} [put]
func (h *PromoCodeHandler) UpdateCode(c *gin.Context) {
	id, ok := ParseUintIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdatePromoCodeRequest
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

// ===== DELETE ENDPOINTS =====

// DeleteCode deletes a promo code
// @Summary Delete a promo code
// @Tags promo-codes
// @Produce json
// @Param id path int true "Promo code ID"
// @Success 204 "No content"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /promo-codes/{id} [delete]
func (h *PromoCodeHandler) DeleteCode(c *gin.Context) {
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

type deleteCodesBatchRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}

type deleteCodesBatchResponse struct {
	Deleted int64 `json:"deleted"`
}

// DeleteCodesBatch deletes multiple promo codes
// @Summary Delete promo codes in batch
// @Tags promo-codes
// @Accept json
// @Produce json
// @Param request body deleteCodesBatchRequest true "IDs to delete"
// @Success 200 {object} deleteCodesBatchResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /promo-codes/batch [delete]
func (h *PromoCodeHandler) DeleteCodesBatch(c *gin.Context) {
	var req deleteCodesBatchRequest
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

	deleted, err := h.service.DeleteBatch(c.Request.Context(), req.IDs, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, deleteCodesBatchResponse{Deleted: deleted})
}

// ===== HELPER METHODS =====

func (h *PromoCodeHandler) parsePromoCodeFilters(c *gin.Context) repositories.PromoCodeFilters {
	limit, offset := parsePagination(c)
	sortBy, sortOrder := parseSorting(c, map[string]bool{
		"code":       true,
		"created_at": true,
		"expiry_date": true,
	})

	filters := repositories.PromoCodeFilters{
		Limit:     limit,
		Offset:    offset,
		SortBy:    sortBy,
		SortOrder: sortOrder,
	}

	if classID, ok := parseUintQuery(c, "class_id"); ok {
		filters.ClassID = &classID
	}
	if prefix := c.Query("prefix"); prefix != "" {
		filters.Prefix = &prefix
	}
	if redeemed := c.Query("redeemed"); redeemed == "true" || redeemed == "false" {
		v := redeemed == "true"
		filters.Redeemed = &v
	}
	if dateFrom := c.Query("date_from"); dateFrom != "" {
		if t, err := time.Parse("2006-01-02", dateFrom); err == nil {
			filters.DateFrom = &t
		}
	}
	if dateTo := c.Query("date_to"); dateTo != "" {
		if t, err := time.Parse("2006-01-02", dateTo); err == nil {
			filters.DateTo = &t
		}
	}
	if search := c.Query("search"); search != "" {
		filters.Search = search
	}

	return filters
}

func (h *PromoCodeHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid promo code",
		})
	case errors.Is(err, services.ErrCodeLimitReached):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Promo code usage limit reached",
		})
	case errors.Is(err, services.ErrCodeExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Promo code has expired",
		})
	case errors.Is(err, services.ErrGenerationFailed):
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to generate promo codes",
		})
	case errors.Is(err, services.ErrPromoCodeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Promo code not found",
		})
	case errors.Is(err, services.ErrClassNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Class not found",
		})
	case errors.Is(err, services.ErrStudentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Student not found",
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
