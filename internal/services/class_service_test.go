package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/validator"
)

func newTestClassService(repo *fakeRepo) ClassService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewClassService(repo, nil, logger, validator.New())
}

func TestClassService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("teacher creating a class gets assigned to it", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		service := newTestClassService(repo)

		response, err := service.Create(ctx, &CreateClassRequest{Name: "Algebra I"}, "teacher-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if response.TeacherID != "teacher-1" {
			t.Errorf("Expected creator as teacher, got %q", response.TeacherID)
		}
	})

	t.Run("rejects assigning a non-teacher", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		seedUser(repo, "user-1", models.RoleStudent)
		service := newTestClassService(repo)

		teacherID := "user-1"
		_, err := service.Create(ctx, &CreateClassRequest{Name: "Algebra I", TeacherID: &teacherID}, "admin-1")
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("Expected ErrValidationFailed, got %v", err)
		}
	})

	t.Run("rejects a blank name", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		service := newTestClassService(repo)

		_, err := service.Create(ctx, &CreateClassRequest{Name: "   "}, "teacher-1")
		if err == nil {
			t.Fatal("Expected validation error for blank name")
		}
	})
}

func TestClassService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("re-validates the teacher reference when changed", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		seedUser(repo, "user-1", models.RoleStudent)
		seedClass(repo, 1, "")
		service := newTestClassService(repo)

		teacherID := "user-1"
		_, err := service.Update(ctx, 1, &UpdateClassRequest{TeacherID: &teacherID}, "admin-1")
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("Expected ErrValidationFailed, got %v", err)
		}
	})

	t.Run("teacher of another class cannot update", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "teacher-2", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		service := newTestClassService(repo)

		name := "Renamed"
		_, err := service.Update(ctx, 1, &UpdateClassRequest{Name: &name}, "teacher-2")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("Expected ErrForbidden, got %v", err)
		}
	})
}

func TestClassService_DeleteBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("continues past classes the caller cannot delete", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		repo.classes[2] = &models.Class{ID: 2, Name: "Geometry", TeacherID: "teacher-2"}
		service := newTestClassService(repo)

		response, err := service.DeleteBatch(ctx, []uint{1, 2, 99}, "teacher-1")
		if err != nil {
			t.Fatalf("DeleteBatch failed: %v", err)
		}
		if response.Deleted != 1 {
			t.Errorf("Expected 1 deletion, got %d", response.Deleted)
		}
		if len(response.Errors) != 2 {
			t.Errorf("Expected 2 per-item errors, got %v", response.Errors)
		}
		if _, ok := repo.classes[2]; !ok {
			t.Error("Foreign class was deleted")
		}
	})

	t.Run("rejects an empty id list", func(t *testing.T) {
		repo := newFakeRepo()
		service := newTestClassService(repo)

		_, err := service.DeleteBatch(ctx, nil, "teacher-1")
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("Expected ErrValidationFailed, got %v", err)
		}
	})
}
