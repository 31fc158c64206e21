package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/validator"
)

// wizardService drives the first-run setup flow: provision a teacher,
// create their class, generate a starter batch of promo codes. State
// between steps lives in an explicit session object, not in any global
// settings row.
type wizardService struct {
	repo       repositories.Repository
	logger     *slog.Logger
	validator  *validator.Validator
	teachers   TeacherService
	classes    ClassService
	promoCodes PromoCodeService
}

func NewWizardService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, teachers TeacherService, classes ClassService, promoCodes PromoCodeService) WizardService {
	return &wizardService{
		repo:       repo,
		logger:     logger,
		validator:  validator,
		teachers:   teachers,
		classes:    classes,
		promoCodes: promoCodes,
	}
}

// ===== SESSION LIFECYCLE =====

func (s *wizardService) Start(ctx context.Context, userID string) (*WizardSessionResponse, error) {
	s.logger.Info("Starting setup wizard", "user_id", userID)

	if err := s.requireAdmin(ctx, userID, "start wizard"); err != nil {
		return nil, err
	}

	session := &models.WizardSession{
		ID:        uuid.New().String(),
		Step:      models.WizardStepTeacher,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.repo.WizardSession().Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save wizard session: %w", err)
	}

	return s.buildSessionResponse(session, nil), nil
}

func (s *wizardService) GetSession(ctx context.Context, sessionID string, userID string) (*WizardSessionResponse, error) {
	if err := s.requireAdmin(ctx, userID, "read wizard session"); err != nil {
		return nil, err
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return s.buildSessionResponse(session, nil), nil
}

// ===== STEP SUBMISSIONS =====

func (s *wizardService) SubmitTeacherStep(ctx context.Context, sessionID string, req *WizardTeacherStepRequest, userID string) (*WizardSessionResponse, error) {
	s.logger.Info("Submitting wizard teacher step", "session_id", sessionID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.getSessionAtStep(ctx, sessionID, userID, models.WizardStepTeacher)
	if err != nil {
		return nil, err
	}

	var credentials *TeacherCredentials
	if req.TeacherID != "" {
		teacher, err := s.teachers.GetByID(ctx, req.TeacherID, userID)
		if err != nil {
			return nil, err
		}
		session.TeacherID = teacher.ID
	} else {
		if req.FirstName == "" || req.LastName == "" {
			return nil, fmt.Errorf("%w: first and last name are required to create a teacher", ErrValidationFailed)
		}
		created, err := s.teachers.Create(ctx, &CreateTeacherRequest{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
		}, userID)
		if err != nil {
			return nil, err
		}
		session.TeacherID = created.Teacher.ID
		credentials = created.Credentials
	}

	session.Step = models.WizardStepClass
	if err := s.repo.WizardSession().Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save wizard session: %w", err)
	}

	// Credentials are returned once here and never stored in the session
	return s.buildSessionResponse(session, credentials), nil
}

func (s *wizardService) SubmitClassStep(ctx context.Context, sessionID string, req *WizardClassStepRequest, userID string) (*WizardSessionResponse, error) {
	s.logger.Info("Submitting wizard class step", "session_id", sessionID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.getSessionAtStep(ctx, sessionID, userID, models.WizardStepClass)
	if err != nil {
		return nil, err
	}

	teacherID := session.TeacherID
	created, err := s.classes.Create(ctx, &CreateClassRequest{
		Name:        req.Name,
		Description: req.Description,
		TeacherID:   &teacherID,
		MaxStudents: req.MaxStudents,
	}, userID)
	if err != nil {
		return nil, err
	}

	session.ClassID = created.ID
	session.Step = models.WizardStepPromoCode
	if err := s.repo.WizardSession().Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save wizard session: %w", err)
	}

	return s.buildSessionResponse(session, nil), nil
}

func (s *wizardService) SubmitPromoCodeStep(ctx context.Context, sessionID string, req *WizardPromoCodeStepRequest, userID string) (*WizardSessionResponse, error) {
	s.logger.Info("Submitting wizard promo code step", "session_id", sessionID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.getSessionAtStep(ctx, sessionID, userID, models.WizardStepPromoCode)
	if err != nil {
		return nil, err
	}

	expiry := req.ExpiryDate
	if expiry == nil {
		d := defaultCodeExpiry(time.Now())
		expiry = &d
	}

	// Wizard codes are always single use
	generated, err := s.promoCodes.Generate(ctx, &GeneratePromoCodesRequest{
		ClassID:    session.ClassID,
		Quantity:   req.Quantity,
		Prefix:     req.Prefix,
		UsageLimit: 1,
		ExpiryDate: expiry,
	}, userID)
	if err != nil {
		return nil, err
	}

	session.GeneratedCodes = generated.Codes
	session.Step = models.WizardStepDone
	if err := s.repo.WizardSession().Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save wizard session: %w", err)
	}

	return s.buildSessionResponse(session, nil), nil
}

func (s *wizardService) Complete(ctx context.Context, sessionID string, userID string) (*WizardSessionResponse, error) {
	s.logger.Info("Completing setup wizard", "session_id", sessionID, "user_id", userID)

	session, err := s.getSessionAtStep(ctx, sessionID, userID, models.WizardStepDone)
	if err != nil {
		return nil, err
	}

	if err := s.repo.WizardSession().Delete(ctx, sessionID); err != nil {
		s.logger.Warn("Failed to delete wizard session", "session_id", sessionID, "error", err)
	}

	s.logger.Info("Setup wizard completed", "session_id", sessionID, "teacher_id", session.TeacherID, "class_id", session.ClassID)

	return s.buildSessionResponse(session, nil), nil
}

// ===== HELPER METHODS =====

func (s *wizardService) getSession(ctx context.Context, sessionID string) (*models.WizardSession, error) {
	session, err := s.repo.WizardSession().Get(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrWizardSessionNotFound
		}
		return nil, fmt.Errorf("failed to get wizard session: %w", err)
	}
	return session, nil
}

// getSessionAtStep loads the session and enforces the forward-only step
// order.
func (s *wizardService) getSessionAtStep(ctx context.Context, sessionID string, userID string, step models.WizardStep) (*models.WizardSession, error) {
	if err := s.requireAdmin(ctx, userID, "advance wizard"); err != nil {
		return nil, err
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Step != step {
		return nil, fmt.Errorf("%w: expected step %s, session is at %s", ErrWizardStepOrder, step, session.Step)
	}

	return session, nil
}

func (s *wizardService) requireAdmin(ctx context.Context, userID string, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user role: %w", err)
	}
	if user.Role != models.RoleAdmin {
		return NewPermissionError(userID, 0, "wizard", action, "admin role required")
	}
	return nil
}

func (s *wizardService) buildSessionResponse(session *models.WizardSession, credentials *TeacherCredentials) *WizardSessionResponse {
	return &WizardSessionResponse{
		SessionID:      session.ID,
		Step:           session.Step,
		TeacherID:      session.TeacherID,
		ClassID:        session.ClassID,
		GeneratedCodes: session.GeneratedCodes,
		Credentials:    credentials,
		Done:           session.IsDone(),
	}
}

// defaultCodeExpiry returns June 30 of the current school year, the
// next occurrence relative to now.
func defaultCodeExpiry(now time.Time) time.Time {
	expiry := time.Date(now.Year(), time.June, 30, 0, 0, 0, 0, now.Location())
	if now.After(expiry) {
		expiry = expiry.AddDate(1, 0, 0)
	}
	return expiry
}
