package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/validator"
)

func newTestTeacherService(repo *fakeRepo) TeacherService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewTeacherService(repo, nil, logger, validator.New(), nil)
}

func TestTeacherService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("derives login from phone digits and returns credentials", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		service := newTestTeacherService(repo)

		response, err := service.Create(ctx, &CreateTeacherRequest{
			FirstName: "Pat",
			LastName:  "Quinn",
			Phone:     "+1 (555) 010-2233",
		}, "admin-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if response.Credentials == nil {
			t.Fatal("Expected generated credentials")
		}
		if response.Credentials.Login != "15550102233" {
			t.Errorf("Expected login from phone digits, got %q", response.Credentials.Login)
		}
		if !strings.HasSuffix(response.Credentials.Email, "@example.com") {
			t.Errorf("Expected fallback email, got %q", response.Credentials.Email)
		}
		if response.Teacher.Role != models.RoleTeacher {
			t.Errorf("Expected teacher role, got %q", response.Teacher.Role)
		}
	})

	t.Run("derives login from email when phone is absent", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		service := newTestTeacherService(repo)

		response, err := service.Create(ctx, &CreateTeacherRequest{
			FirstName: "Pat",
			LastName:  "Quinn",
			Email:     "Pat.Quinn@school.org",
		}, "admin-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if response.Credentials.Login != "pat.quinn" {
			t.Errorf("Expected login from email local part, got %q", response.Credentials.Login)
		}
		if response.Credentials.Email != "Pat.Quinn@school.org" {
			t.Errorf("Expected supplied email kept, got %q", response.Credentials.Email)
		}
	})

	t.Run("rejects a taken login", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		existing := seedUser(repo, "0521234567", models.RoleStudent)
		service := newTestTeacherService(repo)

		_, err := service.Create(ctx, &CreateTeacherRequest{
			FirstName: "Pat",
			LastName:  "Quinn",
			Phone:     "052-123-4567",
		}, "admin-1")
		if !errors.Is(err, ErrDuplicateUser) {
			t.Fatalf("Expected ErrDuplicateUser, got %v", err)
		}
		if existing.Role != models.RoleStudent {
			t.Errorf("Existing account must not be touched, role %q", existing.Role)
		}
	})

	t.Run("rejects a taken email", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		seedUser(repo, "somebody", models.RoleStudent)
		repo.users["somebody"].Email = "pat.quinn@school.org"
		service := newTestTeacherService(repo)

		_, err := service.Create(ctx, &CreateTeacherRequest{
			FirstName: "Pat",
			LastName:  "Quinn",
			Phone:     "052-987-6543",
			Email:     "pat.quinn@school.org",
		}, "admin-1")
		if !errors.Is(err, ErrDuplicateUser) {
			t.Fatalf("Expected ErrDuplicateUser, got %v", err)
		}
	})

	t.Run("requires admin", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		service := newTestTeacherService(repo)

		_, err := service.Create(ctx, &CreateTeacherRequest{
			FirstName: "Pat",
			LastName:  "Quinn",
			Email:     "pat@school.org",
		}, "teacher-1")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("Expected ErrForbidden, got %v", err)
		}
	})

	t.Run("rejects when neither phone nor email is given", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		service := newTestTeacherService(repo)

		_, err := service.Create(ctx, &CreateTeacherRequest{
			FirstName: "Pat",
			LastName:  "Quinn",
		}, "admin-1")
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("Expected ErrValidationFailed, got %v", err)
		}
	})
}

func TestTeacherService_AssignRole(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepo()
	seedUser(repo, "admin-1", models.RoleAdmin)
	seedUser(repo, "user-1", models.RoleStudent)
	service := newTestTeacherService(repo)

	response, err := service.AssignRole(ctx, "user-1", "admin-1")
	if err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}
	if response.Role != models.RoleTeacher {
		t.Errorf("Expected teacher role, got %q", response.Role)
	}
	if repo.users["user-1"].Role != models.RoleTeacher {
		t.Errorf("Role not persisted, got %q", repo.users["user-1"].Role)
	}
}

func TestTeacherService_RemoveRole(t *testing.T) {
	ctx := context.Background()

	t.Run("unassigns every class of the teacher", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		repo.classes[2] = &models.Class{ID: 2, Name: "Geometry", TeacherID: "teacher-1"}
		repo.classes[3] = &models.Class{ID: 3, Name: "History", TeacherID: "teacher-2"}
		service := newTestTeacherService(repo)

		if err := service.RemoveRole(ctx, "teacher-1", "admin-1"); err != nil {
			t.Fatalf("RemoveRole failed: %v", err)
		}

		for _, id := range []uint{1, 2} {
			if repo.classes[id].TeacherID != "" {
				t.Errorf("Class %d still assigned to %q", id, repo.classes[id].TeacherID)
			}
		}
		if repo.classes[3].TeacherID != "teacher-2" {
			t.Error("Unrelated class was unassigned")
		}
	})

	t.Run("unknown teacher", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		service := newTestTeacherService(repo)

		err := service.RemoveRole(ctx, "nobody", "admin-1")
		if !errors.Is(err, ErrTeacherNotFound) {
			t.Fatalf("Expected ErrTeacherNotFound, got %v", err)
		}
	})
}

func TestTeacherService_Delete(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepo()
	seedUser(repo, "admin-1", models.RoleAdmin)
	seedUser(repo, "teacher-1", models.RoleTeacher)
	seedClass(repo, 1, "teacher-1")
	service := newTestTeacherService(repo)

	if err := service.Delete(ctx, "teacher-1", "admin-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := repo.users["teacher-1"]; ok {
		t.Error("Account still present")
	}
	if repo.classes[1].TeacherID != "" {
		t.Error("Class still assigned to the deleted teacher")
	}
}
