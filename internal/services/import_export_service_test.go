package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/validator"
)

func newTestImportExportService(repo *fakeRepo) ImportExportService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewImportExportService(repo, logger, validator.New())
}

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse csv: %v", err)
	}
	return records
}

func TestImportExportService_ExportCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("students export carries the expected header", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		seedClass(repo, 1, "teacher-1")
		repo.students[1] = &models.Student{ID: 1, ClassID: 1, Name: "Ann", Email: "ann@example.com", Status: models.StudentActive, CreatedAt: time.Now()}
		service := newTestImportExportService(repo)

		result, err := service.ExportCSV(ctx, ExportStudents, "admin-1")
		if err != nil {
			t.Fatalf("ExportCSV failed: %v", err)
		}
		if result.ContentType != "text/csv" {
			t.Errorf("Unexpected content type %q", result.ContentType)
		}
		if result.RowCount != 1 {
			t.Errorf("Expected 1 row, got %d", result.RowCount)
		}

		records := parseCSV(t, result.Data)
		want := []string{"ID", "Name", "Email", "Class ID", "Registration Date", "Status"}
		if len(records) != 2 {
			t.Fatalf("Expected header plus 1 row, got %d records", len(records))
		}
		for i, col := range want {
			if records[0][i] != col {
				t.Errorf("Header column %d: got %q, want %q", i, records[0][i], col)
			}
		}
		if records[1][1] != "Ann" {
			t.Errorf("Expected student name in data row, got %q", records[1][1])
		}
	})

	t.Run("teacher export is scoped to the teacher's classes", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		repo.classes[2] = &models.Class{ID: 2, Name: "Other", TeacherID: "teacher-2"}
		repo.students[1] = &models.Student{ID: 1, ClassID: 1, Name: "Mine", Status: models.StudentActive, CreatedAt: time.Now()}
		repo.students[2] = &models.Student{ID: 2, ClassID: 2, Name: "Theirs", Status: models.StudentActive, CreatedAt: time.Now()}
		service := newTestImportExportService(repo)

		result, err := service.ExportCSV(ctx, ExportStudents, "teacher-1")
		if err != nil {
			t.Fatalf("ExportCSV failed: %v", err)
		}
		if result.RowCount != 1 {
			t.Fatalf("Expected only the teacher's student, got %d rows", result.RowCount)
		}
		if !strings.Contains(string(result.Data), "Mine") || strings.Contains(string(result.Data), "Theirs") {
			t.Error("Export leaked another teacher's roster")
		}
	})

	t.Run("teachers cannot export the teacher directory", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		service := newTestImportExportService(repo)

		_, err := service.ExportCSV(ctx, ExportTeachers, "teacher-1")
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("Expected ErrForbidden, got %v", err)
		}
	})

	t.Run("promo code status column derives from state", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		past := time.Now().AddDate(0, 0, -2)
		repo.codes[1] = &models.PromoCode{ID: 1, Code: "FRESH111", ClassID: 1, UsageLimit: 1, UsedCount: 0}
		repo.codes[2] = &models.PromoCode{ID: 2, Code: "SPENT111", ClassID: 1, UsageLimit: 1, UsedCount: 1}
		repo.codes[3] = &models.PromoCode{ID: 3, Code: "STALE111", ClassID: 1, UsageLimit: 1, UsedCount: 0, ExpiryDate: &past}
		service := newTestImportExportService(repo)

		result, err := service.ExportCSV(ctx, ExportPromoCodes, "admin-1")
		if err != nil {
			t.Fatalf("ExportCSV failed: %v", err)
		}

		statuses := make(map[string]string)
		for _, record := range parseCSV(t, result.Data)[1:] {
			statuses[record[0]] = record[5]
		}
		if statuses["FRESH111"] != "active" {
			t.Errorf("Expected active, got %q", statuses["FRESH111"])
		}
		if statuses["SPENT111"] != "redeemed" {
			t.Errorf("Expected redeemed, got %q", statuses["SPENT111"])
		}
		if statuses["STALE111"] != "expired" {
			t.Errorf("Expected expired, got %q", statuses["STALE111"])
		}
	})
}

func TestImportExportService_ExportXLSX(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepo()
	seedUser(repo, "admin-1", models.RoleAdmin)
	seedClass(repo, 1, "teacher-1")
	service := newTestImportExportService(repo)

	result, err := service.ExportXLSX(ctx, ExportClasses, "admin-1")
	if err != nil {
		t.Fatalf("ExportXLSX failed: %v", err)
	}
	if result.ContentType != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Unexpected content type %q", result.ContentType)
	}
	if !strings.HasSuffix(result.FileName, ".xlsx") {
		t.Errorf("Unexpected file name %q", result.FileName)
	}

	f, err := excelize.OpenReader(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("Exported workbook does not parse: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("Failed to read sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected header plus 1 row, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][1] != "Name" {
		t.Errorf("Unexpected header %v", rows[0])
	}
	if rows[1][1] != "Algebra I" {
		t.Errorf("Expected class name in data row, got %v", rows[1])
	}
}

func TestImportExportService_SampleCSV(t *testing.T) {
	service := newTestImportExportService(newFakeRepo())

	result, err := service.SampleCSV(ExportStudents)
	if err != nil {
		t.Fatalf("SampleCSV failed: %v", err)
	}

	records := parseCSV(t, result.Data)
	if len(records) != 2 {
		t.Fatalf("Expected header plus sample row, got %d records", len(records))
	}
	if records[1][1] == "" {
		t.Error("Sample row should carry an example name")
	}
}

func TestImportExportService_ImportCSV(t *testing.T) {
	ctx := context.Background()

	buildCSV := func(t *testing.T, rows [][]string) []byte {
		t.Helper()
		var buf bytes.Buffer
		writer := csv.NewWriter(&buf)
		if err := writer.WriteAll(rows); err != nil {
			t.Fatalf("Failed to build csv: %v", err)
		}
		return buf.Bytes()
	}

	t.Run("imports valid student rows and reports bad ones", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		seedClass(repo, 1, "teacher-1")
		service := newTestImportExportService(repo)

		data := buildCSV(t, [][]string{
			{"ID", "Name", "Email", "Class ID", "Registration Date", "Status"},
			{"", "Ann Example", "ann@example.com", "1", "2025-09-01", "active"},
			{"", "", "missing-name@example.com", "1", "2025-09-01", "active"},
			{"", "Bad Class", "bad@example.com", "99", "2025-09-01", "active"},
		})

		result, err := service.ImportCSV(ctx, ExportStudents, data, "admin-1")
		if err != nil {
			t.Fatalf("ImportCSV failed: %v", err)
		}
		if result.Total != 3 || result.Imported != 1 || result.Skipped != 2 {
			t.Errorf("Unexpected result %+v", result)
		}
		if len(result.RowErrors) != 2 {
			t.Fatalf("Expected 2 row errors, got %d", len(result.RowErrors))
		}
		if !strings.HasPrefix(result.RowErrors[0], "row 3:") {
			t.Errorf("Row errors must reference the csv line, got %q", result.RowErrors[0])
		}

		var imported *models.Student
		for _, student := range repo.students {
			imported = student
		}
		if imported == nil || imported.Name != "Ann Example" {
			t.Fatalf("Expected imported student, got %+v", imported)
		}
		if !strings.Contains(string(imported.Meta), "csv_import") {
			t.Error("Imported students should be tagged with their source")
		}
	})

	t.Run("header mismatch is rejected", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		service := newTestImportExportService(repo)

		data := buildCSV(t, [][]string{
			{"Nope", "Wrong", "Header"},
			{"", "Ann", "ann@example.com"},
		})

		_, err := service.ImportCSV(ctx, ExportStudents, data, "admin-1")
		if !errors.Is(err, ErrValidationFailed) {
			t.Errorf("Expected ErrValidationFailed, got %v", err)
		}
	})

	t.Run("import requires admin", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		service := newTestImportExportService(repo)

		data := buildCSV(t, [][]string{
			{"ID", "Name", "Email", "Class ID", "Registration Date", "Status"},
		})

		_, err := service.ImportCSV(ctx, ExportStudents, data, "teacher-1")
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("Expected ErrForbidden, got %v", err)
		}
	})

	t.Run("promo code rows validate class and uniqueness", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		seedClass(repo, 1, "teacher-1")
		repo.codes[1] = &models.PromoCode{ID: 1, Code: "TAKEN123", ClassID: 1, UsageLimit: 1}
		repo.nextCodeID = 2
		service := newTestImportExportService(repo)

		data := buildCSV(t, [][]string{
			{"Code", "Class ID", "Expiry Date", "Usage Limit", "Used Count", "Status"},
			{"MATH2026", "1", "2027-06-30", "5", "0", "active"},
			{"TAKEN123", "1", "", "1", "0", "active"},
			{"ORPHAN12", "42", "", "1", "0", "active"},
		})

		result, err := service.ImportCSV(ctx, ExportPromoCodes, data, "admin-1")
		if err != nil {
			t.Fatalf("ImportCSV failed: %v", err)
		}
		if result.Imported != 1 || result.Skipped != 2 {
			t.Errorf("Unexpected result %+v", result)
		}

		created, err := repo.PromoCode().GetByCode(ctx, nil, "MATH2026")
		if err != nil {
			t.Fatalf("Expected imported code: %v", err)
		}
		if created.UsageLimit != 5 || created.TeacherID != "teacher-1" {
			t.Errorf("Unexpected imported code %+v", created)
		}
		if created.ExpiryDate == nil || created.ExpiryDate.Format("2006-01-02") != "2027-06-30" {
			t.Error("Expected parsed expiry date")
		}
	})

	t.Run("teacher rows skip existing accounts", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		seedUser(repo, "pat.teacher", models.RoleTeacher)
		service := newTestImportExportService(repo)

		data := buildCSV(t, [][]string{
			{"ID", "Username", "Email", "First Name", "Last Name", "Status"},
			{"", "pat.teacher", "pat@example.com", "Pat", "Teacher", "active"},
			{"", "new.teacher", "new@example.com", "New", "Teacher", "active"},
		})

		result, err := service.ImportCSV(ctx, ExportTeachers, data, "admin-1")
		if err != nil {
			t.Fatalf("ImportCSV failed: %v", err)
		}
		if result.Imported != 1 || result.Skipped != 1 {
			t.Errorf("Unexpected result %+v", result)
		}

		user, err := repo.User().GetByName(ctx, "new.teacher")
		if err != nil {
			t.Fatalf("Expected created teacher account: %v", err)
		}
		if user.Role != models.RoleTeacher {
			t.Errorf("Expected teacher role, got %s", user.Role)
		}
	})
}
