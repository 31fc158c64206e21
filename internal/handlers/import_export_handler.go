package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EduOps-2025/school-service/internal/services"
	"github.com/EduOps-2025/school-service/internal/utils"
)

// maxImportFileSize caps uploaded import files at 5 MB
const maxImportFileSize = 5 << 20

type ImportExportHandler struct {
	BaseHandler
	service services.ImportExportService
}

func NewImportExportHandler(service services.ImportExportService, logger utils.Logger) *ImportExportHandler {
	return &ImportExportHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== EXPORT ENDPOINTS =====

// ExportData exports an entity set as CSV or XLSX
// @Summary Export data
// @Description Export students, teachers, classes or promo codes. Teachers get their own roster only.
// @Tags import-export
// @Produce text/csv
// @Param type path string true "Entity type" Enums(students, teachers, classes, promo_codes)
// @Param format query string false "File format (csv or xlsx, default csv)"
// @Success 200 {file} file "Exported file"
// @Failure 400 {object} ErrorResponse "Unknown entity type"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /export/{type} [get]
func (h *ImportExportHandler) ExportData(c *gin.Context) {
	exportType, ok := h.parseExportType(c)
	if !ok {
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	var result *services.ExportResult
	var err error
	if c.DefaultQuery("format", "csv") == "xlsx" {
		result, err = h.service.ExportXLSX(c.Request.Context(), exportType, userID)
	} else {
		result, err = h.service.ExportCSV(c.Request.Context(), exportType, userID)
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.writeFile(c, result)
}

// SampleCSV returns a sample import file for an entity type
// @Summary Download a sample import file
// @Description Get a CSV with the expected header row and an example data row.
// @Tags import-export
// @Produce text/csv
// @Param type path string true "Entity type" Enums(students, teachers, classes, promo_codes)
// @Success 200 {file} file "Sample CSV"
// @Failure 400 {object} ErrorResponse "Unknown entity type"
// @Router /import/{type}/sample [get]
func (h *ImportExportHandler) SampleCSV(c *gin.Context) {
	exportType, ok := h.parseExportType(c)
	if !ok {
		return
	}

	result, err := h.service.SampleCSV(exportType)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.writeFile(c, result)
}

// ===== IMPORT ENDPOINTS =====

// ImportData imports entities from an uploaded CSV file
// @Summary Import data from CSV
// @Description Upload a CSV file matching the sample layout. Rows that fail validation are reported and skipped.
// @Tags import-export
// @Accept multipart/form-data
// @Produce json
// @Param type path string true "Entity type" Enums(students, teachers, classes, promo_codes)
// @Param file formData file true "CSV file"
// @Success 200 {object} services.ImportResult
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /import/{type} [post]
func (h *ImportExportHandler) ImportData(c *gin.Context) {
	exportType, ok := h.parseExportType(c)
	if !ok {
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file upload",
			Details: err.Error(),
		})
		return
	}
	if fileHeader.Size > maxImportFileSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "File too large",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to read uploaded file",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportFileSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to read uploaded file",
			Details: err.Error(),
		})
		return
	}

	result, err := h.service.ImportCSV(c.Request.Context(), exportType, data, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ===== HELPER METHODS =====

func (h *ImportExportHandler) parseExportType(c *gin.Context) (services.ExportType, bool) {
	switch t := services.ExportType(c.Param("type")); t {
	case services.ExportStudents, services.ExportTeachers, services.ExportClasses, services.ExportPromoCodes:
		return t, true
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Unknown export type",
			Details: fmt.Sprintf("unsupported type %q", c.Param("type")),
		})
		return "", false
	}
}

func (h *ImportExportHandler) writeFile(c *gin.Context, result *services.ExportResult) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

func (h *ImportExportHandler) handleServiceError(c *gin.Context, err error) {
	switch {
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
