package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/validator"
)

type studentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	notifier  NotificationEventService
}

func NewStudentService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, notifier NotificationEventService) StudentService {
	return &studentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		notifier:  notifier,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *studentService) Create(ctx context.Context, req *CreateStudentRequest, userID string) (*StudentResponse, error) {
	s.logger.Info("Creating student", "user_id", userID, "class_id", req.ClassID, "name", req.Name)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	class, err := s.repo.Class().GetByID(ctx, nil, req.ClassID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}

	canManage, err := s.canManageClass(ctx, class, userID)
	if err != nil {
		return nil, err
	}
	if !canManage {
		return nil, NewPermissionError(userID, req.ClassID, "student", "create", "not the assigned teacher or admin")
	}

	// One enrollment per account per class
	if req.UserID != nil {
		exists, err := s.repo.Student().ExistsByUserAndClass(ctx, nil, *req.UserID, req.ClassID)
		if err != nil {
			return nil, fmt.Errorf("failed to check enrollment: %w", err)
		}
		if exists {
			return nil, ErrDuplicateEnrollment
		}
	}

	var credentials *TeacherCredentials
	if req.CreateAccount && req.UserID == nil {
		account, creds, err := s.provisionAccount(ctx, req)
		if err != nil {
			return nil, err
		}
		req.UserID = &account.ID
		credentials = creds
	}

	student := &models.Student{
		UserID:    req.UserID,
		ClassID:   req.ClassID,
		Name:      req.Name,
		Email:     req.Email,
		Status:    models.StudentActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.repo.Student().Create(ctx, nil, student); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEnrollment
		}
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	if credentials != nil && s.notifier != nil {
		if err := s.notifier.NotifyStudentCredentials(ctx, student, credentials); err != nil {
			s.logger.Warn("Failed to publish student credentials event", "error", err)
		}
	}

	s.logger.Info("Student created successfully", "student_id", student.ID)

	return &StudentResponse{Student: student, Class: class}, nil
}

// provisionAccount creates a host account for the student. The
// username comes from the email local part, uniquified with a numeric
// suffix when taken.
func (s *studentService) provisionAccount(ctx context.Context, req *CreateStudentRequest) (*models.User, *TeacherCredentials, error) {
	email := strings.TrimSpace(req.Email)
	at := strings.Index(email, "@")
	if at <= 0 {
		return nil, nil, fmt.Errorf("%w: email is required to create an account", ErrValidationFailed)
	}

	base := strings.ToLower(email[:at])
	login := base
	for i := 1; ; i++ {
		taken, err := s.repo.User().ExistsByName(ctx, login)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check login availability: %w", err)
		}
		if !taken {
			break
		}
		login = fmt.Sprintf("%s%d", base, i)
	}

	password, err := generatePassword(generatedPasswordLength)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate password: %w", err)
	}

	account := &models.User{
		Name:     login,
		FullName: req.Name,
		Email:    email,
		Role:     models.RoleStudent,
		Password: password,
	}

	if err := s.repo.User().Create(ctx, account); err != nil {
		return nil, nil, fmt.Errorf("failed to create student account: %w", err)
	}

	s.logger.Info("Student account provisioned", "account_id", account.ID, "login", login)

	return account, &TeacherCredentials{Login: login, Password: password, Email: email}, nil
}

func (s *studentService) GetByID(ctx context.Context, id uint, userID string) (*StudentResponse, error) {
	student, err := s.repo.Student().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	return s.buildStudentResponse(ctx, student), nil
}

func (s *studentService) Update(ctx context.Context, id uint, req *UpdateStudentRequest, userID string) (*StudentResponse, error) {
	s.logger.Info("Updating student", "student_id", id, "user_id", userID)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	student, err := s.repo.Student().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	if err := s.requireRosterAccess(ctx, student.ClassID, userID, "update"); err != nil {
		return nil, err
	}

	// Moving to another class re-validates the target and the
	// one-enrollment-per-class constraint
	if req.ClassID != nil && *req.ClassID != student.ClassID {
		if err := s.requireRosterAccess(ctx, *req.ClassID, userID, "update"); err != nil {
			return nil, err
		}
		if student.HasUser() {
			exists, err := s.repo.Student().ExistsByUserAndClass(ctx, nil, *student.UserID, *req.ClassID)
			if err != nil {
				return nil, fmt.Errorf("failed to check enrollment: %w", err)
			}
			if exists {
				return nil, ErrDuplicateEnrollment
			}
		}
		student.ClassID = *req.ClassID
	}

	// Apply updates
	if req.Name != nil {
		student.Name = *req.Name
	}
	if req.Email != nil {
		student.Email = *req.Email
	}
	if req.Status != nil {
		student.Status = *req.Status
	}
	student.UpdatedAt = time.Now()

	if err := s.repo.Student().Update(ctx, nil, student); err != nil {
		return nil, fmt.Errorf("failed to update student: %w", err)
	}

	// Mirror name and email changes onto the linked account
	if student.HasUser() && (req.Name != nil || req.Email != nil) {
		if user, err := s.repo.User().GetByID(ctx, *student.UserID); err == nil {
			if req.Name != nil {
				user.FullName = *req.Name
			}
			if req.Email != nil {
				user.Email = *req.Email
			}
			if err := s.repo.User().Update(ctx, user); err != nil {
				s.logger.Warn("Failed to mirror profile onto linked account", "user_id", *student.UserID, "error", err)
			}
		}
	}

	s.logger.Info("Student updated successfully", "student_id", id)

	return s.buildStudentResponse(ctx, student), nil
}

func (s *studentService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting student", "student_id", id, "user_id", userID)

	student, err := s.repo.Student().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrStudentNotFound
		}
		return fmt.Errorf("failed to get student: %w", err)
	}

	if err := s.requireRosterAccess(ctx, student.ClassID, userID, "delete"); err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Student().Delete(ctx, nil, id); err != nil {
			return fmt.Errorf("failed to delete student: %w", err)
		}

		// The linked account goes too, but only when this was its last
		// enrollment
		if student.HasUser() {
			remaining, err := txRepo.Student().CountByUser(ctx, nil, *student.UserID)
			if err != nil {
				return fmt.Errorf("failed to count remaining enrollments: %w", err)
			}
			if remaining == 0 {
				if err := txRepo.User().Delete(ctx, *student.UserID); err != nil {
					s.logger.Warn("Failed to delete linked account", "user_id", *student.UserID, "error", err)
				}
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Student deleted successfully", "student_id", id)

	return nil
}

// BulkAction processes each enrollment independently. Failures are
// collected per item and do not undo prior successes.
func (s *studentService) BulkAction(ctx context.Context, req *BulkStudentActionRequest, userID string) (*BulkStudentActionResponse, error) {
	s.logger.Info("Applying bulk student action", "action", req.Action, "count", len(req.IDs), "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.Action == "assign_class" && req.ClassID == nil {
		return nil, fmt.Errorf("%w: class_id is required for assign_class", ErrValidationFailed)
	}

	response := &BulkStudentActionResponse{}
	for _, id := range req.IDs {
		var err error
		switch req.Action {
		case "delete":
			err = s.Delete(ctx, id, userID)
		case "assign_class":
			_, err = s.Update(ctx, id, &UpdateStudentRequest{ClassID: req.ClassID}, userID)
		case "activate":
			status := models.StudentActive
			_, err = s.Update(ctx, id, &UpdateStudentRequest{Status: &status}, userID)
		case "deactivate":
			status := models.StudentInactive
			_, err = s.Update(ctx, id, &UpdateStudentRequest{Status: &status}, userID)
		}

		if err != nil {
			response.Errors = append(response.Errors, fmt.Sprintf("student %d: %v", id, err))
			continue
		}
		response.Processed++
	}

	s.logger.Info("Bulk student action finished", "action", req.Action, "processed", response.Processed, "failed", len(response.Errors))

	return response, nil
}

// ===== LIST OPERATIONS =====

func (s *studentService) List(ctx context.Context, filters repositories.StudentFilters, userID string) (*StudentListResponse, error) {
	students, total, err := s.repo.Student().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	responses := make([]*StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, s.buildStudentResponse(ctx, student))
	}

	return &StudentListResponse{
		Students: responses,
		Total:    total,
		Page:     pageFromFilters(filters.Offset, filters.Limit),
		Size:     filters.Limit,
	}, nil
}

// Count is the count-only form of List, skipping row materialization.
func (s *studentService) Count(ctx context.Context, filters repositories.StudentFilters, userID string) (int64, error) {
	total, err := s.repo.Student().Count(ctx, nil, filters)
	if err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return total, nil
}

func (s *studentService) GetByClass(ctx context.Context, classID uint, filters repositories.StudentFilters, userID string) (*StudentListResponse, error) {
	if err := s.requireRosterAccess(ctx, classID, userID, "read"); err != nil {
		return nil, err
	}

	filters.ClassID = &classID
	return s.List(ctx, filters, userID)
}

// ===== LAZY MATERIALIZATION =====

// EnsureForUser creates the enrollment row for a signed-in account on
// first contact with a class. Existing rows are returned as-is.
func (s *studentService) EnsureForUser(ctx context.Context, accountID string, classID uint) (*StudentResponse, error) {
	student, err := s.repo.Student().GetByUserAndClass(ctx, nil, accountID, classID)
	if err == nil {
		return s.buildStudentResponse(ctx, student), nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up enrollment: %w", err)
	}

	user, err := s.repo.User().GetByID(ctx, accountID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	// Only student-role accounts materialize enrollment rows
	if user.Role != models.RoleStudent {
		return nil, fmt.Errorf("account %s does not have the student role: %w", accountID, ErrForbidden)
	}

	class, err := s.repo.Class().GetByID(ctx, nil, classID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}

	name := user.FullName
	if name == "" {
		name = user.Name
	}

	student = &models.Student{
		UserID:    &user.ID,
		ClassID:   classID,
		Name:      name,
		Email:     user.Email,
		Status:    models.StudentActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.repo.Student().Create(ctx, nil, student); err != nil {
		// A concurrent request may have materialized the row first
		if repositories.IsDuplicateKeyError(err) {
			student, err = s.repo.Student().GetByUserAndClass(ctx, nil, accountID, classID)
			if err != nil {
				return nil, fmt.Errorf("failed to get enrollment: %w", err)
			}
			return &StudentResponse{Student: student, Class: class}, nil
		}
		return nil, fmt.Errorf("failed to materialize enrollment: %w", err)
	}

	s.logger.Info("Enrollment materialized", "student_id", student.ID, "account_id", accountID, "class_id", classID)

	return &StudentResponse{Student: student, Class: class}, nil
}

func (s *studentService) GetClassesForUser(ctx context.Context, accountID string) ([]*ClassResponse, error) {
	enrollments, err := s.repo.Student().GetClassesForUser(ctx, nil, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get classes for user: %w", err)
	}

	responses := make([]*ClassResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		responses = append(responses, &ClassResponse{Class: enrollment.Class})
	}

	return responses, nil
}

// ===== HELPER METHODS =====

func (s *studentService) canManageClass(ctx context.Context, class *models.Class, userID string) (bool, error) {
	if class.TeacherID == userID {
		return true, nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get user role: %w", err)
	}
	return user.Role == models.RoleAdmin, nil
}

func (s *studentService) requireRosterAccess(ctx context.Context, classID uint, userID string, action string) error {
	class, err := s.repo.Class().GetByID(ctx, nil, classID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrClassNotFound
		}
		return fmt.Errorf("failed to get class: %w", err)
	}

	canManage, err := s.canManageClass(ctx, class, userID)
	if err != nil {
		return err
	}
	if !canManage {
		return NewPermissionError(userID, classID, "student", action, "not the assigned teacher or admin")
	}

	return nil
}

func (s *studentService) buildStudentResponse(ctx context.Context, student *models.Student) *StudentResponse {
	response := &StudentResponse{Student: student}

	if class, err := s.repo.Class().GetByID(ctx, nil, student.ClassID); err == nil {
		response.Class = class
	}

	return response
}
