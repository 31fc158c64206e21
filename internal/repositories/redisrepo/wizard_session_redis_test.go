package redisrepo

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
)

func newTestRepository(t *testing.T) (repositories.WizardSessionRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewWizardSessionRepository(client), mr
}

func TestWizardSessionRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	session := &models.WizardSession{
		ID:        "session-1",
		Step:      models.WizardStepClass,
		TeacherID: "teacher-1",
		ClassID:   7,
	}

	if err := repo.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := repo.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded.Step != models.WizardStepClass {
		t.Errorf("Expected step %s, got %s", models.WizardStepClass, loaded.Step)
	}
	if loaded.TeacherID != "teacher-1" || loaded.ClassID != 7 {
		t.Errorf("Session state not round-tripped: %+v", loaded)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("Save should stamp UpdatedAt")
	}
}

func TestWizardSessionRepository_GetMissing(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	_, err := repo.Get(ctx, "missing")
	if !repositories.IsNotFoundError(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestWizardSessionRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	session := &models.WizardSession{ID: "session-1", Step: models.WizardStepTeacher}
	if err := repo.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := repo.Delete(ctx, "session-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := repo.Get(ctx, "session-1"); !repositories.IsNotFoundError(err) {
		t.Errorf("Expected session to be gone, got %v", err)
	}
}

func TestWizardSessionRepository_Expires(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepository(t)

	session := &models.WizardSession{ID: "session-1", Step: models.WizardStepTeacher}
	if err := repo.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.FastForward(wizardSessionTTL + 1)

	if _, err := repo.Get(ctx, "session-1"); !repositories.IsNotFoundError(err) {
		t.Errorf("Expected expired session to be gone, got %v", err)
	}
}

func TestWizardSessionRepository_NilClient(t *testing.T) {
	ctx := context.Background()
	repo := NewWizardSessionRepository(nil)

	if err := repo.Save(ctx, &models.WizardSession{ID: "x"}); err == nil {
		t.Error("Expected error saving without redis")
	}
	if _, err := repo.Get(ctx, "x"); err == nil {
		t.Error("Expected error reading without redis")
	}
}
