package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/repositories/redisrepo"
	"github.com/EduOps-2025/school-service/internal/validator"
)

// wizardTestRepo backs wizard sessions with a real Redis store while
// everything else stays in memory.
type wizardTestRepo struct {
	*fakeRepo
	sessions repositories.WizardSessionRepository
}

func (r *wizardTestRepo) WizardSession() repositories.WizardSessionRepository {
	return r.sessions
}

// stubTeacherService returns a canned provisioning result.
type stubTeacherService struct {
	TeacherService
	created *CreateTeacherResponse
	err     error
}

func (s *stubTeacherService) Create(ctx context.Context, req *CreateTeacherRequest, userID string) (*CreateTeacherResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.created, nil
}

func (s *stubTeacherService) GetByID(ctx context.Context, id string, userID string) (*TeacherResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &TeacherResponse{User: &models.User{ID: id, Role: models.RoleTeacher}}, nil
}

type stubClassService struct {
	ClassService
	created   *ClassResponse
	gotReq    *CreateClassRequest
	err       error
}

func (s *stubClassService) Create(ctx context.Context, req *CreateClassRequest, userID string) (*ClassResponse, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.created, nil
}

type stubPromoCodeService struct {
	PromoCodeService
	generated *GeneratePromoCodesResponse
	gotReq    *GeneratePromoCodesRequest
	err       error
}

func (s *stubPromoCodeService) Generate(ctx context.Context, req *GeneratePromoCodesRequest, userID string) (*GeneratePromoCodesResponse, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.generated, nil
}

func newWizardTestService(t *testing.T) (WizardService, *wizardTestRepo, *stubTeacherService, *stubClassService, *stubPromoCodeService) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := &wizardTestRepo{
		fakeRepo: newFakeRepo(),
		sessions: redisrepo.NewWizardSessionRepository(client),
	}
	seedUser(repo.fakeRepo, "admin-1", models.RoleAdmin)
	seedUser(repo.fakeRepo, "teacher-1", models.RoleTeacher)

	teachers := &stubTeacherService{
		created: &CreateTeacherResponse{
			Teacher:     &TeacherResponse{User: &models.User{ID: "teacher-new", FullName: "Pat Teacher"}},
			Credentials: &TeacherCredentials{Login: "pat", Password: "generated", Email: "pat@example.com"},
		},
	}
	classes := &stubClassService{
		created: &ClassResponse{Class: &models.Class{ID: 11, Name: "Algebra I", TeacherID: "teacher-new"}},
	}
	promoCodes := &stubPromoCodeService{
		generated: &GeneratePromoCodesResponse{Codes: []string{"SCHAAAA1", "SCHAAAA2"}, Requested: 2, Generated: 2, ClassID: 11},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	service := NewWizardService(repo, logger, validator.New(), teachers, classes, promoCodes)

	return service, repo, teachers, classes, promoCodes
}

func TestWizardService_FullFlow(t *testing.T) {
	ctx := context.Background()
	service, _, _, classes, promoCodes := newWizardTestService(t)

	// Start
	started, err := service.Start(ctx, "admin-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if started.Step != models.WizardStepTeacher {
		t.Fatalf("Expected teacher step after start, got %s", started.Step)
	}
	sessionID := started.SessionID

	// Teacher step
	afterTeacher, err := service.SubmitTeacherStep(ctx, sessionID, &WizardTeacherStepRequest{
		FirstName: "Pat",
		LastName:  "Teacher",
		Email:     "pat@example.com",
	}, "admin-1")
	if err != nil {
		t.Fatalf("SubmitTeacherStep failed: %v", err)
	}
	if afterTeacher.Step != models.WizardStepClass {
		t.Errorf("Expected class step, got %s", afterTeacher.Step)
	}
	if afterTeacher.TeacherID != "teacher-new" {
		t.Errorf("Expected teacher id in session, got %q", afterTeacher.TeacherID)
	}
	if afterTeacher.Credentials == nil || afterTeacher.Credentials.Password != "generated" {
		t.Error("Expected generated credentials in the teacher step response")
	}

	// Class step
	afterClass, err := service.SubmitClassStep(ctx, sessionID, &WizardClassStepRequest{Name: "Algebra I"}, "admin-1")
	if err != nil {
		t.Fatalf("SubmitClassStep failed: %v", err)
	}
	if afterClass.Step != models.WizardStepPromoCode {
		t.Errorf("Expected promo code step, got %s", afterClass.Step)
	}
	if afterClass.ClassID != 11 {
		t.Errorf("Expected class id in session, got %d", afterClass.ClassID)
	}
	if classes.gotReq == nil || classes.gotReq.TeacherID == nil || *classes.gotReq.TeacherID != "teacher-new" {
		t.Error("Expected class to be created for the wizard teacher")
	}

	// Credentials must not survive past the teacher step
	if afterClass.Credentials != nil {
		t.Error("Credentials leaked into a later step response")
	}

	// Promo code step
	afterCodes, err := service.SubmitPromoCodeStep(ctx, sessionID, &WizardPromoCodeStepRequest{Quantity: 2, Prefix: "SCH"}, "admin-1")
	if err != nil {
		t.Fatalf("SubmitPromoCodeStep failed: %v", err)
	}
	if afterCodes.Step != models.WizardStepDone {
		t.Errorf("Expected done step, got %s", afterCodes.Step)
	}
	if len(afterCodes.GeneratedCodes) != 2 {
		t.Errorf("Expected 2 generated codes, got %d", len(afterCodes.GeneratedCodes))
	}
	if promoCodes.gotReq.UsageLimit != 1 {
		t.Errorf("Wizard codes must be single use, got limit %d", promoCodes.gotReq.UsageLimit)
	}
	if promoCodes.gotReq.ClassID != 11 {
		t.Errorf("Expected codes for wizard class, got class %d", promoCodes.gotReq.ClassID)
	}
	if promoCodes.gotReq.ExpiryDate == nil {
		t.Error("Expected a default expiry date")
	}

	// Complete
	completed, err := service.Complete(ctx, sessionID, "admin-1")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !completed.Done {
		t.Error("Expected completed session to be done")
	}

	// Session is discarded on completion
	if _, err := service.GetSession(ctx, sessionID, "admin-1"); !errors.Is(err, ErrWizardSessionNotFound) {
		t.Errorf("Expected session to be deleted, got %v", err)
	}
}

func TestWizardService_StepOrder(t *testing.T) {
	ctx := context.Background()
	service, _, _, _, _ := newWizardTestService(t)

	started, err := service.Start(ctx, "admin-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Class step before the teacher step is rejected
	_, err = service.SubmitClassStep(ctx, started.SessionID, &WizardClassStepRequest{Name: "Algebra I"}, "admin-1")
	if !errors.Is(err, ErrWizardStepOrder) {
		t.Errorf("Expected ErrWizardStepOrder, got %v", err)
	}

	// Completing before the flow finished is rejected too
	_, err = service.Complete(ctx, started.SessionID, "admin-1")
	if !errors.Is(err, ErrWizardStepOrder) {
		t.Errorf("Expected ErrWizardStepOrder, got %v", err)
	}

	// A teacher step cannot be replayed after it advanced
	if _, err := service.SubmitTeacherStep(ctx, started.SessionID, &WizardTeacherStepRequest{FirstName: "Pat", LastName: "Teacher"}, "admin-1"); err != nil {
		t.Fatalf("SubmitTeacherStep failed: %v", err)
	}
	_, err = service.SubmitTeacherStep(ctx, started.SessionID, &WizardTeacherStepRequest{FirstName: "Pat", LastName: "Teacher"}, "admin-1")
	if !errors.Is(err, ErrWizardStepOrder) {
		t.Errorf("Expected ErrWizardStepOrder on replay, got %v", err)
	}
}

func TestWizardService_SelectExistingTeacher(t *testing.T) {
	ctx := context.Background()
	service, _, _, _, _ := newWizardTestService(t)

	started, err := service.Start(ctx, "admin-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	response, err := service.SubmitTeacherStep(ctx, started.SessionID, &WizardTeacherStepRequest{
		TeacherID: "teacher-1",
	}, "admin-1")
	if err != nil {
		t.Fatalf("SubmitTeacherStep failed: %v", err)
	}
	if response.TeacherID != "teacher-1" {
		t.Errorf("Expected selected teacher in session, got %q", response.TeacherID)
	}
	if response.Credentials != nil {
		t.Error("Selecting an existing teacher must not mint credentials")
	}

	_, err = service.SubmitTeacherStep(ctx, started.SessionID, &WizardTeacherStepRequest{}, "admin-1")
	if !errors.Is(err, ErrWizardStepOrder) {
		t.Errorf("Expected ErrWizardStepOrder after selection, got %v", err)
	}
}

func TestWizardService_AdminOnly(t *testing.T) {
	ctx := context.Background()
	service, _, _, _, _ := newWizardTestService(t)

	_, err := service.Start(ctx, "teacher-1")
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for non-admin, got %v", err)
	}
}

func TestWizardService_UnknownSession(t *testing.T) {
	ctx := context.Background()
	service, _, _, _, _ := newWizardTestService(t)

	_, err := service.GetSession(ctx, "missing", "admin-1")
	if !errors.Is(err, ErrWizardSessionNotFound) {
		t.Errorf("Expected ErrWizardSessionNotFound, got %v", err)
	}
}

func TestDefaultCodeExpiry(t *testing.T) {
	// Before June 30: expiry is June 30 of the same year
	spring := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	expiry := defaultCodeExpiry(spring)
	if expiry.Year() != 2026 || expiry.Month() != time.June || expiry.Day() != 30 {
		t.Errorf("Expected 2026-06-30, got %s", expiry.Format("2006-01-02"))
	}

	// After June 30: expiry rolls to the next school year
	fall := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	expiry = defaultCodeExpiry(fall)
	if expiry.Year() != 2027 || expiry.Month() != time.June || expiry.Day() != 30 {
		t.Errorf("Expected 2027-06-30, got %s", expiry.Format("2006-01-02"))
	}
}
