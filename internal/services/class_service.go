package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/validator"
)

type classService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewClassService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) ClassService {
	return &classService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *classService) Create(ctx context.Context, req *CreateClassRequest, userID string) (*ClassResponse, error) {
	s.logger.Info("Creating class", "user_id", userID, "name", req.Name)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && role != models.RoleTeacher {
		return nil, NewPermissionError(userID, 0, "class", "create", "requires teacher or admin role")
	}

	class := &models.Class{
		Name:        req.Name,
		Description: req.Description,
		MaxStudents: req.MaxStudents,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// Teacher assignment is optional at creation, admins may pass any
	// teacher, teachers get themselves
	if req.TeacherID != nil {
		if err := s.checkTeacherAssignable(ctx, *req.TeacherID); err != nil {
			return nil, err
		}
		class.TeacherID = *req.TeacherID
	} else if role == models.RoleTeacher {
		class.TeacherID = userID
	}

	if err := s.repo.Class().Create(ctx, nil, class); err != nil {
		return nil, fmt.Errorf("failed to create class: %w", err)
	}

	s.logger.Info("Class created successfully", "class_id", class.ID)

	return s.buildClassResponse(ctx, class, userID), nil
}

func (s *classService) GetByID(ctx context.Context, id uint, userID string) (*ClassResponse, error) {
	class, err := s.repo.Class().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}

	return s.buildClassResponse(ctx, class, userID), nil
}

func (s *classService) Update(ctx context.Context, id uint, req *UpdateClassRequest, userID string) (*ClassResponse, error) {
	s.logger.Info("Updating class", "class_id", id, "user_id", userID)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	class, err := s.repo.Class().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}

	canEdit, err := s.canManage(ctx, class, userID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, NewPermissionError(userID, id, "class", "update", "not the assigned teacher or admin")
	}

	// Apply updates
	if req.Name != nil {
		class.Name = *req.Name
	}
	if req.Description != nil {
		class.Description = req.Description
	}
	if req.MaxStudents != nil {
		class.MaxStudents = *req.MaxStudents
	}
	if req.TeacherID != nil {
		if *req.TeacherID != "" {
			if err := s.checkTeacherAssignable(ctx, *req.TeacherID); err != nil {
				return nil, err
			}
		}
		class.TeacherID = *req.TeacherID
	}
	class.UpdatedAt = time.Now()

	if err := s.repo.Class().Update(ctx, nil, class); err != nil {
		return nil, fmt.Errorf("failed to update class: %w", err)
	}

	s.logger.Info("Class updated successfully", "class_id", id)

	return s.buildClassResponse(ctx, class, userID), nil
}

func (s *classService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting class", "class_id", id, "user_id", userID)

	class, err := s.repo.Class().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrClassNotFound
		}
		return fmt.Errorf("failed to get class: %w", err)
	}

	canDelete, err := s.canManage(ctx, class, userID)
	if err != nil {
		return err
	}
	if !canDelete {
		return NewPermissionError(userID, id, "class", "delete", "not the assigned teacher or admin")
	}

	if err := s.repo.Class().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete class: %w", err)
	}

	s.logger.Info("Class deleted successfully", "class_id", id)

	return nil
}

// DeleteBatch removes classes one by one. A failure on one class does
// not undo the rest.
func (s *classService) DeleteBatch(ctx context.Context, ids []uint, userID string) (*BulkDeleteResponse, error) {
	s.logger.Info("Deleting classes in batch", "count", len(ids), "user_id", userID)

	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no class ids given", ErrValidationFailed)
	}

	response := &BulkDeleteResponse{}
	for _, id := range ids {
		if err := s.Delete(ctx, id, userID); err != nil {
			response.Errors = append(response.Errors, fmt.Sprintf("class %d: %v", id, err))
			continue
		}
		response.Deleted++
	}

	s.logger.Info("Class batch delete finished", "deleted", response.Deleted, "failed", len(response.Errors))

	return response, nil
}

// ===== LIST AND SEARCH OPERATIONS =====

func (s *classService) List(ctx context.Context, filters repositories.ClassFilters, userID string) (*ClassListResponse, error) {
	// Teachers only see their own classes
	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role == models.RoleTeacher {
		filters.TeacherID = &userID
	}

	classes, total, err := s.repo.Class().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}

	return s.buildClassListResponse(ctx, classes, total, filters, userID), nil
}

func (s *classService) GetByTeacher(ctx context.Context, teacherID string, filters repositories.ClassFilters) (*ClassListResponse, error) {
	classes, total, err := s.repo.Class().GetByTeacher(ctx, nil, teacherID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get classes by teacher: %w", err)
	}

	return s.buildClassListResponse(ctx, classes, total, filters, teacherID), nil
}

func (s *classService) Search(ctx context.Context, query string, filters repositories.ClassFilters, userID string) (*ClassListResponse, error) {
	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role == models.RoleTeacher {
		filters.TeacherID = &userID
	}

	classes, total, err := s.repo.Class().Search(ctx, nil, query, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search classes: %w", err)
	}

	return s.buildClassListResponse(ctx, classes, total, filters, userID), nil
}

// ===== ROSTER =====

func (s *classService) GetStudents(ctx context.Context, classID uint, filters repositories.StudentFilters, userID string) (*StudentListResponse, error) {
	class, err := s.repo.Class().GetByID(ctx, nil, classID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}

	canView, err := s.canManage(ctx, class, userID)
	if err != nil {
		return nil, err
	}
	if !canView {
		return nil, NewPermissionError(userID, classID, "class", "read_students", "not the assigned teacher or admin")
	}

	students, total, err := s.repo.Class().GetStudents(ctx, nil, classID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get class students: %w", err)
	}

	responses := make([]*StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, &StudentResponse{Student: student, Class: class})
	}

	return &StudentListResponse{
		Students: responses,
		Total:    total,
		Page:     pageFromFilters(filters.Offset, filters.Limit),
		Size:     filters.Limit,
	}, nil
}

// ===== TEACHER ASSIGNMENT =====

func (s *classService) AssignTeacher(ctx context.Context, classID uint, teacherID string, userID string) error {
	s.logger.Info("Assigning teacher to class", "class_id", classID, "teacher_id", teacherID)

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		return NewPermissionError(userID, classID, "class", "assign_teacher", "requires admin role")
	}

	if err := s.checkTeacherAssignable(ctx, teacherID); err != nil {
		return err
	}

	class, err := s.repo.Class().GetByID(ctx, nil, classID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrClassNotFound
		}
		return fmt.Errorf("failed to get class: %w", err)
	}

	class.TeacherID = teacherID
	class.UpdatedAt = time.Now()

	if err := s.repo.Class().Update(ctx, nil, class); err != nil {
		return fmt.Errorf("failed to assign teacher: %w", err)
	}

	return nil
}

func (s *classService) UnassignTeacher(ctx context.Context, classID uint, userID string) error {
	s.logger.Info("Unassigning teacher from class", "class_id", classID)

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		return NewPermissionError(userID, classID, "class", "unassign_teacher", "requires admin role")
	}

	class, err := s.repo.Class().GetByID(ctx, nil, classID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrClassNotFound
		}
		return fmt.Errorf("failed to get class: %w", err)
	}

	class.TeacherID = ""
	class.UpdatedAt = time.Now()

	if err := s.repo.Class().Update(ctx, nil, class); err != nil {
		return fmt.Errorf("failed to unassign teacher: %w", err)
	}

	return nil
}

// ===== HELPER METHODS =====

func (s *classService) getUserRole(ctx context.Context, userID string) (models.UserRole, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user role: %w", err)
	}
	return user.Role, nil
}

// canManage reports whether the user is the assigned teacher or an admin
func (s *classService) canManage(ctx context.Context, class *models.Class, userID string) (bool, error) {
	if class.TeacherID == userID {
		return true, nil
	}

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return role == models.RoleAdmin, nil
}

func (s *classService) checkTeacherAssignable(ctx context.Context, teacherID string) error {
	hasRole, err := s.repo.User().HasRole(ctx, teacherID, models.RoleTeacher)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTeacherNotFound
		}
		return fmt.Errorf("failed to check teacher role: %w", err)
	}
	if !hasRole {
		// Admins can be assigned as class teachers too
		isAdmin, err := s.repo.User().HasRole(ctx, teacherID, models.RoleAdmin)
		if err != nil {
			return fmt.Errorf("failed to check admin role: %w", err)
		}
		if !isAdmin {
			return fmt.Errorf("user %s does not have the teacher role: %w", teacherID, ErrValidationFailed)
		}
	}
	return nil
}

func (s *classService) buildClassResponse(ctx context.Context, class *models.Class, userID string) *ClassResponse {
	response := &ClassResponse{Class: class}

	if count, err := s.repo.Class().CountStudents(ctx, nil, class.ID); err == nil {
		response.StudentCount = count
		class.StudentCount = int(count)
	}

	if class.HasTeacher() {
		if teacher, err := s.repo.User().GetByID(ctx, class.TeacherID); err == nil {
			response.Teacher = &TeacherResponse{User: teacher}
		}
	}

	if canManage, err := s.canManage(ctx, class, userID); err == nil {
		response.CanEdit = canManage
		response.CanDelete = canManage
	}

	return response
}

func (s *classService) buildClassListResponse(ctx context.Context, classes []*models.Class, total int64, filters repositories.ClassFilters, userID string) *ClassListResponse {
	responses := make([]*ClassResponse, 0, len(classes))
	for _, class := range classes {
		responses = append(responses, s.buildClassResponse(ctx, class, userID))
	}

	return &ClassListResponse{
		Classes: responses,
		Total:   total,
		Page:    pageFromFilters(filters.Offset, filters.Limit),
		Size:    filters.Limit,
	}
}

// pageFromFilters converts offset/limit pagination into a 1-indexed page
func pageFromFilters(offset, limit int) int {
	if limit <= 0 {
		limit = 1
	}
	return (offset / limit) + 1
}
