package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/validator"
)

func newTestStudentService(repo *fakeRepo) StudentService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewStudentService(repo, nil, logger, validator.New(), nil)
}

func seedStudent(repo *fakeRepo, id uint, classID uint, userID string) *models.Student {
	student := &models.Student{
		ID:      id,
		ClassID: classID,
		Name:    "Student " + string(rune('A'+id%26)),
		Email:   "student@example.com",
		Status:  models.StudentActive,
	}
	if userID != "" {
		student.UserID = &userID
	}
	repo.students[id] = student
	if id >= repo.nextStudentID {
		repo.nextStudentID = id + 1
	}
	return student
}

func TestStudentService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions an account when requested", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		service := newTestStudentService(repo)

		response, err := service.Create(ctx, &CreateStudentRequest{
			Name:          "Jane Doe",
			Email:         "Jane.Doe@school.org",
			ClassID:       1,
			CreateAccount: true,
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if response.Student.UserID == nil {
			t.Fatal("Expected a linked account")
		}

		account := repo.users[*response.Student.UserID]
		if account == nil {
			t.Fatal("Provisioned account not stored")
		}
		if account.Name != "jane.doe" {
			t.Errorf("Expected login jane.doe, got %q", account.Name)
		}
		if account.Role != models.RoleStudent {
			t.Errorf("Expected student role, got %q", account.Role)
		}
		if account.Password == "" {
			t.Error("Expected a generated password")
		}
	})

	t.Run("uniquifies a taken login", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "jane.doe", models.RoleStudent)
		seedClass(repo, 1, "teacher-1")
		service := newTestStudentService(repo)

		response, err := service.Create(ctx, &CreateStudentRequest{
			Name:          "Jane Doe",
			Email:         "jane.doe@school.org",
			ClassID:       1,
			CreateAccount: true,
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		account := repo.users[*response.Student.UserID]
		if account.Name != "jane.doe1" {
			t.Errorf("Expected login jane.doe1, got %q", account.Name)
		}
	})

	t.Run("requires an email to provision an account", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		service := newTestStudentService(repo)

		_, err := service.Create(ctx, &CreateStudentRequest{
			Name:          "Jane Doe",
			ClassID:       1,
			CreateAccount: true,
		}, "teacher-1")
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("Expected ErrValidationFailed, got %v", err)
		}
	})
}

func TestStudentService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("moves student to another class", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		repo.classes[2] = &models.Class{ID: 2, Name: "Geometry", TeacherID: "teacher-1"}
		seedStudent(repo, 10, 1, "")
		service := newTestStudentService(repo)

		newClass := uint(2)
		response, err := service.Update(ctx, 10, &UpdateStudentRequest{ClassID: &newClass}, "teacher-1")
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if response.Student.ClassID != 2 {
			t.Errorf("Expected class 2, got %d", response.Student.ClassID)
		}
	})

	t.Run("rejects move that duplicates an enrollment", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "user-1", models.RoleStudent)
		seedClass(repo, 1, "teacher-1")
		repo.classes[2] = &models.Class{ID: 2, Name: "Geometry", TeacherID: "teacher-1"}
		seedStudent(repo, 10, 1, "user-1")
		seedStudent(repo, 11, 2, "user-1")
		service := newTestStudentService(repo)

		newClass := uint(2)
		_, err := service.Update(ctx, 10, &UpdateStudentRequest{ClassID: &newClass}, "teacher-1")
		if !errors.Is(err, ErrDuplicateEnrollment) {
			t.Fatalf("Expected ErrDuplicateEnrollment, got %v", err)
		}
	})

	t.Run("mirrors name and email onto the linked account", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "user-1", models.RoleStudent)
		seedClass(repo, 1, "teacher-1")
		seedStudent(repo, 10, 1, "user-1")
		service := newTestStudentService(repo)

		name := "Jane Doe"
		email := "jane@example.com"
		_, err := service.Update(ctx, 10, &UpdateStudentRequest{Name: &name, Email: &email}, "teacher-1")
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		user := repo.users["user-1"]
		if user.FullName != "Jane Doe" || user.Email != "jane@example.com" {
			t.Errorf("Linked account not mirrored: %q %q", user.FullName, user.Email)
		}
	})

	t.Run("rejects update by a teacher of another class", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "teacher-2", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		seedStudent(repo, 10, 1, "")
		service := newTestStudentService(repo)

		name := "Renamed"
		_, err := service.Update(ctx, 10, &UpdateStudentRequest{Name: &name}, "teacher-2")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("Expected ErrForbidden, got %v", err)
		}
	})
}

func TestStudentService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the linked account with the last enrollment", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "user-1", models.RoleStudent)
		seedClass(repo, 1, "teacher-1")
		seedStudent(repo, 10, 1, "user-1")
		service := newTestStudentService(repo)

		if err := service.Delete(ctx, 10, "teacher-1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, ok := repo.students[10]; ok {
			t.Error("Student row still present")
		}
		if _, ok := repo.users["user-1"]; ok {
			t.Error("Linked account should have been removed with its last enrollment")
		}
	})

	t.Run("keeps the linked account while other enrollments remain", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "user-1", models.RoleStudent)
		seedClass(repo, 1, "teacher-1")
		repo.classes[2] = &models.Class{ID: 2, Name: "Geometry", TeacherID: "teacher-1"}
		seedStudent(repo, 10, 1, "user-1")
		seedStudent(repo, 11, 2, "user-1")
		service := newTestStudentService(repo)

		if err := service.Delete(ctx, 10, "teacher-1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, ok := repo.users["user-1"]; !ok {
			t.Error("Linked account removed while another enrollment references it")
		}
	})
}

func TestStudentService_BulkAction(t *testing.T) {
	ctx := context.Background()

	t.Run("deactivates listed students and reports missing ones", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		seedStudent(repo, 10, 1, "")
		seedStudent(repo, 11, 1, "")
		service := newTestStudentService(repo)

		response, err := service.BulkAction(ctx, &BulkStudentActionRequest{
			IDs:    []uint{10, 11, 99},
			Action: "deactivate",
		}, "teacher-1")
		if err != nil {
			t.Fatalf("BulkAction failed: %v", err)
		}

		if response.Processed != 2 {
			t.Errorf("Expected 2 processed, got %d", response.Processed)
		}
		if len(response.Errors) != 1 || !strings.Contains(response.Errors[0], "student 99") {
			t.Errorf("Expected one error for student 99, got %v", response.Errors)
		}
		for _, id := range []uint{10, 11} {
			if repo.students[id].Status != models.StudentInactive {
				t.Errorf("Student %d still active", id)
			}
		}
	})

	t.Run("assigns listed students to a class", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		repo.classes[2] = &models.Class{ID: 2, Name: "Geometry", TeacherID: "teacher-1"}
		seedStudent(repo, 10, 1, "")
		service := newTestStudentService(repo)

		classID := uint(2)
		response, err := service.BulkAction(ctx, &BulkStudentActionRequest{
			IDs:     []uint{10},
			Action:  "assign_class",
			ClassID: &classID,
		}, "admin-1")
		if err != nil {
			t.Fatalf("BulkAction failed: %v", err)
		}
		if response.Processed != 1 {
			t.Errorf("Expected 1 processed, got %d", response.Processed)
		}
		if repo.students[10].ClassID != 2 {
			t.Errorf("Student not reassigned, class %d", repo.students[10].ClassID)
		}
	})

	t.Run("requires class_id for assign_class", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		service := newTestStudentService(repo)

		_, err := service.BulkAction(ctx, &BulkStudentActionRequest{
			IDs:    []uint{10},
			Action: "assign_class",
		}, "admin-1")
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("Expected ErrValidationFailed, got %v", err)
		}
	})

	t.Run("bulk delete continues past failures", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		seedStudent(repo, 10, 1, "")
		seedStudent(repo, 11, 1, "")
		service := newTestStudentService(repo)

		response, err := service.BulkAction(ctx, &BulkStudentActionRequest{
			IDs:    []uint{99, 10, 11},
			Action: "delete",
		}, "teacher-1")
		if err != nil {
			t.Fatalf("BulkAction failed: %v", err)
		}
		if response.Processed != 2 || len(response.Errors) != 1 {
			t.Errorf("Expected 2 processed 1 failed, got %d/%d", response.Processed, len(response.Errors))
		}
		if len(repo.students) != 0 {
			t.Errorf("Expected empty roster, %d rows left", len(repo.students))
		}
	})
}

func TestStudentService_Count(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepo()
	seedUser(repo, "teacher-1", models.RoleTeacher)
	seedClass(repo, 1, "teacher-1")
	repo.classes[2] = &models.Class{ID: 2, Name: "Geometry", TeacherID: "teacher-1"}
	seedStudent(repo, 10, 1, "")
	seedStudent(repo, 11, 1, "")
	seedStudent(repo, 12, 2, "")
	service := newTestStudentService(repo)

	classID := uint(1)
	total, err := service.Count(ctx, repositories.StudentFilters{ClassID: &classID}, "teacher-1")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 2 {
		t.Errorf("Expected 2 students in class 1, got %d", total)
	}
}

func TestStudentService_EnsureForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("materializes a row on first contact", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "user-1", models.RoleStudent)
		seedClass(repo, 1, "teacher-1")
		service := newTestStudentService(repo)

		response, err := service.EnsureForUser(ctx, "user-1", 1)
		if err != nil {
			t.Fatalf("EnsureForUser failed: %v", err)
		}
		if response.Student.ClassID != 1 || response.Student.UserID == nil || *response.Student.UserID != "user-1" {
			t.Errorf("Unexpected enrollment row: %+v", response.Student)
		}

		// Second call returns the same row
		again, err := service.EnsureForUser(ctx, "user-1", 1)
		if err != nil {
			t.Fatalf("EnsureForUser second call failed: %v", err)
		}
		if again.Student.ID != response.Student.ID {
			t.Errorf("Expected existing row %d, got %d", response.Student.ID, again.Student.ID)
		}
	})

	t.Run("refuses accounts without the student role", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		service := newTestStudentService(repo)

		_, err := service.EnsureForUser(ctx, "teacher-1", 1)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("Expected ErrForbidden, got %v", err)
		}
		if len(repo.students) != 0 {
			t.Errorf("Expected no enrollment rows, got %d", len(repo.students))
		}
	})
}
