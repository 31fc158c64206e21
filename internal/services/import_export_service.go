package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/validator"
)

const (
	csvContentType  = "text/csv"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// exportBatchLimit bounds a single export to keep files manageable
	exportBatchLimit = 10000

	dateLayout = "2006-01-02"
)

// Column headers per data set. Import validates against these exactly.
var exportHeaders = map[ExportType][]string{
	ExportStudents:   {"ID", "Name", "Email", "Class ID", "Registration Date", "Status"},
	ExportTeachers:   {"ID", "Username", "Email", "First Name", "Last Name", "Status"},
	ExportClasses:    {"ID", "Name", "Description", "Teacher ID", "Max Students", "Status"},
	ExportPromoCodes: {"Code", "Class ID", "Expiry Date", "Usage Limit", "Used Count", "Status"},
}

var sampleRows = map[ExportType][]string{
	ExportStudents:   {"", "Ann Example", "ann@example.com", "1", "2025-09-01", "active"},
	ExportTeachers:   {"", "pat.teacher", "pat@example.com", "Pat", "Teacher", "active"},
	ExportClasses:    {"", "Grade 5 Mathematics", "Weekly lessons", "", "30", "active"},
	ExportPromoCodes: {"MATH2025", "1", "2026-06-30", "1", "0", "active"},
}

type importExportService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewImportExportService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ImportExportService {
	return &importExportService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ===== EXPORT OPERATIONS =====

func (s *importExportService) ExportCSV(ctx context.Context, exportType ExportType, userID string) (*ExportResult, error) {
	s.logger.Info("Exporting CSV", "type", exportType, "user_id", userID)

	rows, err := s.collectRows(ctx, exportType, userID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeaders[exportType]); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return &ExportResult{
		FileName:    exportFileName(exportType, "csv"),
		ContentType: csvContentType,
		Data:        buf.Bytes(),
		RowCount:    len(rows),
	}, nil
}

func (s *importExportService) ExportXLSX(ctx context.Context, exportType ExportType, userID string) (*ExportResult, error) {
	s.logger.Info("Exporting XLSX", "type", exportType, "user_id", userID)

	rows, err := s.collectRows(ctx, exportType, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(exportHeaders[exportType]))
	for i, h := range exportHeaders[exportType] {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to compute cell reference: %w", err)
		}
		if err := f.SetSheetRow(sheet, cellRef, &cells); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	return &ExportResult{
		FileName:    exportFileName(exportType, "xlsx"),
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
		RowCount:    len(rows),
	}, nil
}

func (s *importExportService) SampleCSV(exportType ExportType) (*ExportResult, error) {
	header, ok := exportHeaders[exportType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown export type %q", ErrValidationFailed, exportType)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.Write(sampleRows[exportType]); err != nil {
		return nil, fmt.Errorf("failed to write sample row: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return &ExportResult{
		FileName:    fmt.Sprintf("%s_sample.csv", exportType),
		ContentType: csvContentType,
		Data:        buf.Bytes(),
		RowCount:    1,
	}, nil
}

// ===== IMPORT OPERATIONS =====

func (s *importExportService) ImportCSV(ctx context.Context, exportType ExportType, data []byte, userID string) (*ImportResult, error) {
	s.logger.Info("Importing CSV", "type", exportType, "user_id", userID, "bytes", len(data))

	header, ok := exportHeaders[exportType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown import type %q", ErrValidationFailed, exportType)
	}

	if err := s.requireAdmin(ctx, userID); err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrValidationFailed)
	}

	if !headerMatches(records[0], header) {
		return nil, fmt.Errorf("%w: header mismatch, expected %s", ErrValidationFailed, strings.Join(header, ","))
	}

	result := &ImportResult{Type: exportType, Total: len(records) - 1}
	for i, record := range records[1:] {
		rowNum := i + 2 // 1-based, after the header

		var err error
		switch exportType {
		case ExportStudents:
			err = s.importStudentRow(ctx, record)
		case ExportTeachers:
			err = s.importTeacherRow(ctx, record)
		case ExportClasses:
			err = s.importClassRow(ctx, record)
		case ExportPromoCodes:
			err = s.importPromoCodeRow(ctx, record, userID)
		}

		if err != nil {
			result.Skipped++
			result.RowErrors = append(result.RowErrors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		result.Imported++
	}

	s.logger.Info("Import finished", "type", exportType, "total", result.Total, "imported", result.Imported, "skipped", result.Skipped)

	return result, nil
}

// ===== ROW COLLECTION =====

func (s *importExportService) collectRows(ctx context.Context, exportType ExportType, userID string) ([][]string, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Teachers export their own scope; admins export everything
	var teacherScope *string
	if user.Role != models.RoleAdmin {
		if user.Role != models.RoleTeacher {
			return nil, NewPermissionError(userID, 0, "export", string(exportType), "teacher or admin role required")
		}
		teacherScope = &userID
	}

	switch exportType {
	case ExportStudents:
		return s.collectStudentRows(ctx, teacherScope)
	case ExportTeachers:
		if teacherScope != nil {
			return nil, NewPermissionError(userID, 0, "export", string(exportType), "admin role required")
		}
		return s.collectTeacherRows(ctx)
	case ExportClasses:
		return s.collectClassRows(ctx, teacherScope)
	case ExportPromoCodes:
		return s.collectPromoCodeRows(ctx, teacherScope)
	default:
		return nil, fmt.Errorf("%w: unknown export type %q", ErrValidationFailed, exportType)
	}
}

func (s *importExportService) collectStudentRows(ctx context.Context, teacherScope *string) ([][]string, error) {
	var classScope map[uint]bool
	if teacherScope != nil {
		classes, _, err := s.repo.Class().GetByTeacher(ctx, nil, *teacherScope, repositories.ClassFilters{Limit: exportBatchLimit})
		if err != nil {
			return nil, fmt.Errorf("failed to get classes: %w", err)
		}
		classScope = make(map[uint]bool, len(classes))
		for _, class := range classes {
			classScope[class.ID] = true
		}
	}

	students, _, err := s.repo.Student().List(ctx, nil, repositories.StudentFilters{Limit: exportBatchLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	rows := make([][]string, 0, len(students))
	for _, student := range students {
		if classScope != nil && !classScope[student.ClassID] {
			continue
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(student.ID), 10),
			student.Name,
			student.Email,
			strconv.FormatUint(uint64(student.ClassID), 10),
			student.CreatedAt.Format(dateLayout),
			string(student.Status),
		})
	}
	return rows, nil
}

func (s *importExportService) collectTeacherRows(ctx context.Context) ([][]string, error) {
	role := models.RoleTeacher
	teachers, _, err := s.repo.User().List(ctx, repositories.UserFilters{Role: &role, Limit: exportBatchLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list teachers: %w", err)
	}

	rows := make([][]string, 0, len(teachers))
	for _, teacher := range teachers {
		rows = append(rows, []string{
			teacher.ID,
			teacher.Name,
			teacher.Email,
			teacher.FirstName,
			teacher.LastName,
			"active",
		})
	}
	return rows, nil
}

func (s *importExportService) collectClassRows(ctx context.Context, teacherScope *string) ([][]string, error) {
	filters := repositories.ClassFilters{Limit: exportBatchLimit, TeacherID: teacherScope}
	classes, _, err := s.repo.Class().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}

	rows := make([][]string, 0, len(classes))
	for _, class := range classes {
		description := ""
		if class.Description != nil {
			description = *class.Description
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(class.ID), 10),
			class.Name,
			description,
			class.TeacherID,
			strconv.Itoa(class.MaxStudents),
			"active",
		})
	}
	return rows, nil
}

func (s *importExportService) collectPromoCodeRows(ctx context.Context, teacherScope *string) ([][]string, error) {
	filters := repositories.PromoCodeFilters{Limit: exportBatchLimit, TeacherID: teacherScope}
	codes, _, err := s.repo.PromoCode().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}

	now := time.Now()
	rows := make([][]string, 0, len(codes))
	for _, code := range codes {
		expiry := ""
		if code.ExpiryDate != nil {
			expiry = code.ExpiryDate.Format(dateLayout)
		}
		rows = append(rows, []string{
			code.Code,
			strconv.FormatUint(uint64(code.ClassID), 10),
			expiry,
			strconv.Itoa(code.UsageLimit),
			strconv.Itoa(code.UsedCount),
			codeStatus(code, now),
		})
	}
	return rows, nil
}

// ===== ROW IMPORT =====

func (s *importExportService) importStudentRow(ctx context.Context, record []string) error {
	name := strings.TrimSpace(record[1])
	if name == "" {
		return fmt.Errorf("name is required")
	}

	classID, err := parseUintField(record[3], "class id")
	if err != nil {
		return err
	}

	exists, err := s.repo.Class().ExistsByID(ctx, nil, classID)
	if err != nil {
		return fmt.Errorf("failed to check class: %w", err)
	}
	if !exists {
		return fmt.Errorf("class %d does not exist", classID)
	}

	status := models.StudentActive
	if v := strings.TrimSpace(record[5]); v != "" {
		status = models.StudentStatus(v)
	}

	student := &models.Student{
		ClassID: classID,
		Name:    name,
		Email:   strings.TrimSpace(record[2]),
		Status:  status,
		Meta:    datatypes.JSON([]byte(`{"source":"csv_import"}`)),
	}
	if err := s.repo.Student().Create(ctx, nil, student); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return fmt.Errorf("already enrolled")
		}
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

func (s *importExportService) importTeacherRow(ctx context.Context, record []string) error {
	username := strings.TrimSpace(record[1])
	if username == "" {
		return fmt.Errorf("username is required")
	}

	exists, err := s.repo.User().ExistsByName(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	if exists {
		return fmt.Errorf("account %q already exists", username)
	}

	user := &models.User{
		Name:      username,
		Email:     strings.TrimSpace(record[2]),
		FirstName: strings.TrimSpace(record[3]),
		LastName:  strings.TrimSpace(record[4]),
		FullName:  strings.TrimSpace(record[3] + " " + record[4]),
		Role:      models.RoleTeacher,
	}
	if err := s.repo.User().Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *importExportService) importClassRow(ctx context.Context, record []string) error {
	name := strings.TrimSpace(record[1])
	if name == "" {
		return fmt.Errorf("name is required")
	}

	maxStudents := 0
	if v := strings.TrimSpace(record[4]); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid max students %q", v)
		}
		maxStudents = parsed
	}

	class := &models.Class{
		Name:        name,
		TeacherID:   strings.TrimSpace(record[3]),
		MaxStudents: maxStudents,
	}
	if v := strings.TrimSpace(record[2]); v != "" {
		class.Description = &v
	}

	if class.TeacherID != "" {
		hasRole, err := s.repo.User().HasRole(ctx, class.TeacherID, models.RoleTeacher)
		if err != nil {
			return fmt.Errorf("failed to check teacher: %w", err)
		}
		if !hasRole {
			return fmt.Errorf("teacher %q not found", class.TeacherID)
		}
	}

	if err := s.repo.Class().Create(ctx, nil, class); err != nil {
		return fmt.Errorf("failed to create class: %w", err)
	}
	return nil
}

func (s *importExportService) importPromoCodeRow(ctx context.Context, record []string, userID string) error {
	codeValue := strings.ToUpper(strings.TrimSpace(record[0]))
	if codeValue == "" {
		return fmt.Errorf("code is required")
	}

	classID, err := parseUintField(record[1], "class id")
	if err != nil {
		return err
	}

	class, err := s.repo.Class().GetByID(ctx, nil, classID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return fmt.Errorf("class %d does not exist", classID)
		}
		return fmt.Errorf("failed to get class: %w", err)
	}

	exists, err := s.repo.PromoCode().ExistsByCode(ctx, nil, codeValue)
	if err != nil {
		return fmt.Errorf("failed to check code: %w", err)
	}
	if exists {
		return fmt.Errorf("code %q already exists", codeValue)
	}

	usageLimit := 1
	if v := strings.TrimSpace(record[3]); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid usage limit %q", v)
		}
		usageLimit = parsed
	}

	code := &models.PromoCode{
		Code:       codeValue,
		ClassID:    classID,
		TeacherID:  class.TeacherID,
		UsageLimit: usageLimit,
	}
	if v := strings.TrimSpace(record[2]); v != "" {
		expiry, err := time.Parse(dateLayout, v)
		if err != nil {
			return fmt.Errorf("invalid expiry date %q", v)
		}
		code.ExpiryDate = &expiry
	}

	if err := s.repo.PromoCode().Create(ctx, nil, code); err != nil {
		return fmt.Errorf("failed to create code: %w", err)
	}
	return nil
}

// ===== HELPER METHODS =====

func (s *importExportService) requireAdmin(ctx context.Context, userID string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user role: %w", err)
	}
	if user.Role != models.RoleAdmin {
		return NewPermissionError(userID, 0, "import", "create", "admin role required")
	}
	return nil
}

func headerMatches(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if !strings.EqualFold(strings.TrimSpace(got[i]), want[i]) {
			return false
		}
	}
	return true
}

func parseUintField(value, field string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, value)
	}
	return uint(parsed), nil
}

func codeStatus(code *models.PromoCode, now time.Time) string {
	switch {
	case code.IsExpired(now):
		return "expired"
	case code.IsExhausted():
		return "redeemed"
	default:
		return "active"
	}
}

func exportFileName(exportType ExportType, ext string) string {
	return fmt.Sprintf("%s_%s.%s", exportType, time.Now().Format(dateLayout), ext)
}
