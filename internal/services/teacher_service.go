package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/validator"
)

const (
	// Fallback email domain for teachers created without one
	defaultEmailDomain = "example.com"

	generatedPasswordLength = 12
)

type teacherService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	notifier  NotificationEventService
}

func NewTeacherService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, notifier NotificationEventService) TeacherService {
	return &teacherService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		notifier:  notifier,
	}
}

// ===== PROVISIONING =====

func (s *teacherService) Create(ctx context.Context, req *CreateTeacherRequest, userID string) (*CreateTeacherResponse, error) {
	s.logger.Info("Creating teacher", "user_id", userID, "first_name", req.FirstName, "last_name", req.LastName)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := s.requireAdmin(ctx, userID); err != nil {
		return nil, err
	}

	// Login derives from the phone number when present, otherwise from
	// the email local part
	login := s.deriveLogin(req)
	if login == "" {
		return nil, fmt.Errorf("phone or email required to derive login: %w", ErrValidationFailed)
	}

	// A taken login or email is a conflict. Promoting an existing
	// account to teacher is AssignRole, not Create.
	taken, err := s.repo.User().ExistsByName(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to check login availability: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("login %q is already taken: %w", login, ErrDuplicateUser)
	}

	email := strings.TrimSpace(req.Email)
	if email != "" {
		taken, err := s.repo.User().ExistsByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email availability: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("email %q is already taken: %w", email, ErrDuplicateUser)
		}
	} else {
		email = fmt.Sprintf("%s@%s", login, defaultEmailDomain)
	}

	password, err := generatePassword(generatedPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}

	user := &models.User{
		Name:      login,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		FullName:  strings.TrimSpace(req.FirstName + " " + req.LastName),
		Email:     email,
		Phone:     req.Phone,
		Role:      models.RoleTeacher,
		Password:  password,
	}

	if err := s.repo.User().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create teacher account: %w", err)
	}

	if req.ClassID != nil {
		if err := s.assignToClass(ctx, *req.ClassID, user.ID); err != nil {
			return nil, err
		}
	}

	credentials := &TeacherCredentials{
		Login:    login,
		Password: password,
		Email:    email,
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyTeacherCredentials(ctx, user, credentials); err != nil {
			s.logger.Warn("Failed to publish teacher credentials event", "error", err)
		}
	}

	s.logger.Info("Teacher created successfully", "teacher_id", user.ID, "login", login)

	return &CreateTeacherResponse{
		Teacher:     s.buildTeacherResponse(ctx, user),
		Credentials: credentials,
	}, nil
}

func (s *teacherService) GetByID(ctx context.Context, id string, userID string) (*TeacherResponse, error) {
	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTeacherNotFound
		}
		return nil, fmt.Errorf("failed to get teacher: %w", err)
	}

	if !user.IsTeacher() {
		return nil, ErrTeacherNotFound
	}

	return s.buildTeacherResponse(ctx, user), nil
}

func (s *teacherService) Update(ctx context.Context, id string, req *UpdateTeacherRequest, userID string) (*TeacherResponse, error) {
	s.logger.Info("Updating teacher", "teacher_id", id, "user_id", userID)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Teachers may edit their own profile, admins anyone's
	if id != userID {
		if err := s.requireAdmin(ctx, userID); err != nil {
			return nil, err
		}
	}

	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTeacherNotFound
		}
		return nil, fmt.Errorf("failed to get teacher: %w", err)
	}
	if !user.IsTeacher() {
		return nil, ErrTeacherNotFound
	}

	// Apply updates
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.FirstName != nil || req.LastName != nil {
		user.FullName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}

	if err := s.repo.User().Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update teacher: %w", err)
	}

	s.logger.Info("Teacher updated successfully", "teacher_id", id)

	return s.buildTeacherResponse(ctx, user), nil
}

func (s *teacherService) AssignRole(ctx context.Context, id string, userID string) (*TeacherResponse, error) {
	s.logger.Info("Assigning teacher role", "target_id", id, "user_id", userID)

	if err := s.requireAdmin(ctx, userID); err != nil {
		return nil, err
	}

	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if user.Role != models.RoleTeacher && user.Role != models.RoleAdmin {
		if err := s.repo.User().AssignRole(ctx, id, models.RoleTeacher); err != nil {
			return nil, fmt.Errorf("failed to assign teacher role: %w", err)
		}
		user.Role = models.RoleTeacher
	}

	s.logger.Info("Teacher role assigned", "teacher_id", id)

	return s.buildTeacherResponse(ctx, user), nil
}

func (s *teacherService) RemoveRole(ctx context.Context, id string, userID string) error {
	s.logger.Info("Removing teacher role", "teacher_id", id, "user_id", userID)

	if err := s.requireAdmin(ctx, userID); err != nil {
		return err
	}

	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTeacherNotFound
		}
		return fmt.Errorf("failed to get teacher: %w", err)
	}
	if user.Role != models.RoleTeacher {
		return ErrTeacherNotFound
	}

	if err := s.repo.User().RemoveRole(ctx, id, models.RoleTeacher); err != nil {
		return fmt.Errorf("failed to remove teacher role: %w", err)
	}

	// Every class referencing the teacher becomes unassigned
	unassigned, err := s.repo.Class().UnassignTeacher(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to unassign classes: %w", err)
	}

	s.logger.Info("Teacher role removed", "teacher_id", id, "classes_unassigned", unassigned)

	return nil
}

// Delete removes the account entirely. Classes referencing it become
// unassigned, the same fan-out RemoveRole performs.
func (s *teacherService) Delete(ctx context.Context, id string, userID string) error {
	s.logger.Info("Deleting teacher", "teacher_id", id, "user_id", userID)

	if err := s.requireAdmin(ctx, userID); err != nil {
		return err
	}

	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTeacherNotFound
		}
		return fmt.Errorf("failed to get teacher: %w", err)
	}
	if !user.IsTeacher() {
		return ErrTeacherNotFound
	}

	if err := s.repo.User().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete teacher account: %w", err)
	}

	unassigned, err := s.repo.Class().UnassignTeacher(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to unassign classes: %w", err)
	}

	s.logger.Info("Teacher deleted", "teacher_id", id, "classes_unassigned", unassigned)

	return nil
}

// ===== LIST OPERATIONS =====

func (s *teacherService) List(ctx context.Context, filters repositories.UserFilters, userID string) (*TeacherListResponse, error) {
	role := models.RoleTeacher
	filters.Role = &role

	users, total, err := s.repo.User().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list teachers: %w", err)
	}

	teachers := make([]*TeacherResponse, 0, len(users))
	for _, user := range users {
		teachers = append(teachers, s.buildTeacherResponse(ctx, user))
	}

	return &TeacherListResponse{
		Teachers: teachers,
		Total:    total,
		Page:     pageFromFilters(filters.Offset, filters.Limit),
		Size:     filters.Limit,
	}, nil
}

func (s *teacherService) GetClasses(ctx context.Context, teacherID string, filters repositories.ClassFilters) (*ClassListResponse, error) {
	classes, total, err := s.repo.Class().GetByTeacher(ctx, nil, teacherID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher classes: %w", err)
	}

	responses := make([]*ClassResponse, 0, len(classes))
	for _, class := range classes {
		responses = append(responses, &ClassResponse{Class: class})
	}

	return &ClassListResponse{
		Classes: responses,
		Total:   total,
		Page:    pageFromFilters(filters.Offset, filters.Limit),
		Size:    filters.Limit,
	}, nil
}

// ===== HELPER METHODS =====

func (s *teacherService) requireAdmin(ctx context.Context, userID string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user role: %w", err)
	}
	if user.Role != models.RoleAdmin {
		return NewPermissionError(userID, 0, "teacher", "manage", "requires admin role")
	}
	return nil
}

// deriveLogin prefers the digits of the phone number, then the email
// local part
func (s *teacherService) deriveLogin(req *CreateTeacherRequest) string {
	phone := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, req.Phone)
	if phone != "" {
		return phone
	}

	email := strings.TrimSpace(req.Email)
	if at := strings.Index(email, "@"); at > 0 {
		return strings.ToLower(email[:at])
	}

	return ""
}

func (s *teacherService) assignToClass(ctx context.Context, classID uint, teacherID string) error {
	class, err := s.repo.Class().GetByID(ctx, nil, classID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrClassNotFound
		}
		return fmt.Errorf("failed to get class: %w", err)
	}

	class.TeacherID = teacherID
	if err := s.repo.Class().Update(ctx, nil, class); err != nil {
		return fmt.Errorf("failed to assign teacher to class: %w", err)
	}

	return nil
}

func (s *teacherService) buildTeacherResponse(ctx context.Context, user *models.User) *TeacherResponse {
	response := &TeacherResponse{User: user}

	filters := repositories.ClassFilters{Limit: 1}
	if _, total, err := s.repo.Class().GetByTeacher(ctx, nil, user.ID, filters); err == nil {
		response.ClassCount = total
	}

	return response
}

const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generatePassword draws from a crypto-grade source
func generatePassword(length int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(passwordAlphabet)))

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(passwordAlphabet[n.Int64()])
	}

	return sb.String(), nil
}
