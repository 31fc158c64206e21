package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/events"
	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/validator"
)

// maxCollisionRetries bounds the random draws per code before falling
// back to a timestamp-derived suffix.
const maxCollisionRetries = 10

type promoCodeService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	business  *validator.BusinessValidator
	publisher events.EventPublisher
	notifier  NotificationEventService
}

func NewPromoCodeService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, notifier NotificationEventService) PromoCodeService {
	return &promoCodeService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		business:  newBusinessValidator(),
		publisher: publisher,
		notifier:  notifier,
	}
}

func newBusinessValidator() *validator.BusinessValidator {
	return validator.NewBusinessValidator()
}

// ===== GENERATION =====

func (s *promoCodeService) Generate(ctx context.Context, req *GeneratePromoCodesRequest, userID string) (*GeneratePromoCodesResponse, error) {
	s.logger.Info("Generating promo codes", "user_id", userID, "class_id", req.ClassID, "quantity", req.Quantity)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	usageLimit := req.UsageLimit
	if usageLimit == 0 {
		usageLimit = 1
	}
	if errs := s.business.ValidateGenerateBatch(req.Quantity, usageLimit, req.ExpiryDate); len(errs) > 0 {
		return nil, fmt.Errorf("validation failed: %w", errs)
	}

	class, err := s.repo.Class().GetByID(ctx, nil, req.ClassID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}

	if err := s.requireCodeAccess(ctx, class.TeacherID, userID, req.ClassID, "generate"); err != nil {
		return nil, err
	}

	teacherID := class.TeacherID
	if req.TeacherID != "" {
		isTeacher, err := s.repo.User().HasRole(ctx, req.TeacherID, models.RoleTeacher)
		if err != nil {
			return nil, fmt.Errorf("failed to check issuer role: %w", err)
		}
		if !isTeacher {
			return nil, fmt.Errorf("issuer %s is not a teacher: %w", req.TeacherID, ErrTeacherNotFound)
		}
		teacherID = req.TeacherID
	}

	length := req.Length
	if length == 0 {
		length = models.DefaultCodeLength
	}

	generated := make([]string, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		code, err := s.generateUniqueCode(ctx, req.Prefix, length)
		if err != nil {
			s.logger.Warn("Failed to generate code", "class_id", req.ClassID, "error", err)
			continue
		}

		promoCode := &models.PromoCode{
			Code:       code,
			Prefix:     req.Prefix,
			ClassID:    req.ClassID,
			TeacherID:  teacherID,
			UsageLimit: usageLimit,
			ExpiryDate: req.ExpiryDate,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}

		if err := s.repo.PromoCode().Create(ctx, nil, promoCode); err != nil {
			s.logger.Warn("Failed to persist code", "code", code, "error", err)
			continue
		}

		generated = append(generated, code)
	}

	if len(generated) == 0 {
		return nil, ErrGenerationFailed
	}

	s.publishEvent(ctx, events.EventTypePromoCodeGenerated, map[string]interface{}{
		"class_id":  req.ClassID,
		"requested": req.Quantity,
		"generated": len(generated),
		"user_id":   userID,
	})

	s.logger.Info("Promo codes generated", "class_id", req.ClassID, "requested", req.Quantity, "generated", len(generated))

	return &GeneratePromoCodesResponse{
		Codes:     generated,
		Requested: req.Quantity,
		Generated: len(generated),
		ClassID:   req.ClassID,
	}, nil
}

// generateUniqueCode draws random characters until the code is unique.
// After maxCollisionRetries draws it falls back to a timestamp suffix,
// which cannot collide within one nanosecond tick.
func (s *promoCodeService) generateUniqueCode(ctx context.Context, prefix string, length int) (string, error) {
	for attempt := 0; attempt < maxCollisionRetries; attempt++ {
		suffix, err := randomCodeSuffix(length)
		if err != nil {
			return "", err
		}

		code := strings.ToUpper(prefix) + suffix
		exists, err := s.repo.PromoCode().ExistsByCode(ctx, nil, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	fallback := fmt.Sprintf("%X", time.Now().UnixNano())
	if len(fallback) > length {
		fallback = fallback[len(fallback)-length:]
	}
	return strings.ToUpper(prefix) + fallback, nil
}

func randomCodeSuffix(length int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(models.CodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random character: %w", err)
		}
		b.WriteByte(models.CodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ===== REDEMPTION =====

func (s *promoCodeService) Redeem(ctx context.Context, req *RedeemPromoCodeRequest) (*RedeemPromoCodeResponse, error) {
	s.logger.Info("Redeeming promo code", "code", req.Code)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	code, err := s.repo.PromoCode().GetByCode(ctx, nil, strings.ToUpper(strings.TrimSpace(req.Code)))
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to look up code: %w", err)
	}

	class, err := s.repo.Class().GetByID(ctx, nil, code.ClassID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}

	var student *models.Student
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		consumed, err := txRepo.PromoCode().ConsumeUse(ctx, nil, code.ID, time.Now())
		if err != nil {
			return fmt.Errorf("failed to consume code use: %w", err)
		}
		if !consumed {
			// The conditional update rejected the row. Re-read to tell
			// the caller which guard failed.
			current, err := txRepo.PromoCode().GetByID(ctx, nil, code.ID)
			if err != nil {
				return fmt.Errorf("failed to re-read code: %w", err)
			}
			if current.IsExpired(time.Now()) {
				return ErrCodeExpired
			}
			return ErrCodeLimitReached
		}

		student, err = s.resolveStudent(ctx, txRepo, code, req)
		if err != nil {
			return err
		}

		if err := txRepo.PromoCode().LinkStudent(ctx, nil, code.ID, student.ID); err != nil {
			return fmt.Errorf("failed to link student: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyCodeRedeemed(ctx, code, student); err != nil {
			s.logger.Warn("Failed to publish redemption event", "code_id", code.ID, "error", err)
		}
	}

	s.logger.Info("Promo code redeemed", "code_id", code.ID, "class_id", code.ClassID, "student_id", student.ID)

	return &RedeemPromoCodeResponse{
		Message:   fmt.Sprintf("Welcome to %s", class.Name),
		ClassID:   class.ID,
		ClassName: class.Name,
		StudentID: student.ID,
		Student:   student,
	}, nil
}

// resolveStudent finds or creates the enrollment the redemption should
// attach to. The class always comes from the code, never from the
// caller.
func (s *promoCodeService) resolveStudent(ctx context.Context, txRepo repositories.Repository, code *models.PromoCode, req *RedeemPromoCodeRequest) (*models.Student, error) {
	// Signed-in redemption reuses the account's enrollment when present
	if req.UserID != "" {
		existing, err := txRepo.Student().GetByUserAndClass(ctx, nil, req.UserID, code.ClassID)
		if err == nil {
			return existing, nil
		}
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to look up enrollment: %w", err)
		}

		user, err := txRepo.User().GetByID(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get account: %w", err)
		}

		name := req.StudentName
		if name == "" {
			name = user.FullName
		}
		if name == "" {
			name = user.Name
		}
		email := req.StudentEmail
		if email == "" {
			email = user.Email
		}

		return s.createEnrollment(ctx, txRepo, &models.Student{
			UserID:  &user.ID,
			ClassID: code.ClassID,
			Name:    name,
			Email:   email,
		})
	}

	// Explicit student row; re-enroll into the code's class when needed
	if req.StudentID != nil {
		existing, err := txRepo.Student().GetByID(ctx, nil, *req.StudentID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrStudentNotFound
			}
			return nil, fmt.Errorf("failed to get student: %w", err)
		}
		if existing.ClassID == code.ClassID {
			return existing, nil
		}

		return s.createEnrollment(ctx, txRepo, &models.Student{
			UserID:  existing.UserID,
			ClassID: code.ClassID,
			Name:    existing.Name,
			Email:   existing.Email,
		})
	}

	// Anonymous redemption from the public form
	if errs := s.business.ValidateStudentData(req.StudentName, req.StudentEmail); len(errs) > 0 {
		return nil, fmt.Errorf("validation failed: %w", errs)
	}

	return s.createEnrollment(ctx, txRepo, &models.Student{
		ClassID: code.ClassID,
		Name:    strings.TrimSpace(req.StudentName),
		Email:   strings.TrimSpace(req.StudentEmail),
	})
}

func (s *promoCodeService) createEnrollment(ctx context.Context, txRepo repositories.Repository, student *models.Student) (*models.Student, error) {
	student.Status = models.StudentActive
	student.CreatedAt = time.Now()
	student.UpdatedAt = time.Now()

	if err := txRepo.Student().Create(ctx, nil, student); err != nil {
		if repositories.IsDuplicateKeyError(err) && student.UserID != nil {
			existing, err := txRepo.Student().GetByUserAndClass(ctx, nil, *student.UserID, student.ClassID)
			if err != nil {
				return nil, fmt.Errorf("failed to get enrollment: %w", err)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	return student, nil
}

// ===== READ OPERATIONS =====

func (s *promoCodeService) GetByID(ctx context.Context, id uint, userID string) (*PromoCodeResponse, error) {
	code, err := s.repo.PromoCode().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}

	if err := s.requireCodeAccess(ctx, code.TeacherID, userID, code.ClassID, "read"); err != nil {
		return nil, err
	}

	return s.buildPromoCodeResponse(ctx, code), nil
}

func (s *promoCodeService) GetByCode(ctx context.Context, codeValue string, userID string) (*PromoCodeResponse, error) {
	code, err := s.repo.PromoCode().GetByCode(ctx, nil, strings.ToUpper(strings.TrimSpace(codeValue)))
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}

	if err := s.requireCodeAccess(ctx, code.TeacherID, userID, code.ClassID, "read"); err != nil {
		return nil, err
	}

	return s.buildPromoCodeResponse(ctx, code), nil
}

func (s *promoCodeService) List(ctx context.Context, filters repositories.PromoCodeFilters, userID string) (*PromoCodeListResponse, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Teachers only see their own codes
	if user.Role != models.RoleAdmin {
		filters.TeacherID = &userID
	}

	codes, total, err := s.repo.PromoCode().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}

	responses := make([]*PromoCodeResponse, 0, len(codes))
	for _, code := range codes {
		responses = append(responses, s.buildPromoCodeResponse(ctx, code))
	}

	return &PromoCodeListResponse{
		Codes: responses,
		Total: total,
		Page:  pageFromFilters(filters.Offset, filters.Limit),
		Size:  filters.Limit,
	}, nil
}

// ===== DELETE OPERATIONS =====

func (s *promoCodeService) Update(ctx context.Context, id uint, req *UpdatePromoCodeRequest, userID string) (*PromoCodeResponse, error) {
	s.logger.Info("Updating promo code", "code_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	code, err := s.repo.PromoCode().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}

	if err := s.requireCodeAccess(ctx, code.TeacherID, userID, code.ClassID, "update"); err != nil {
		return nil, err
	}

	if req.Code != nil {
		newCode := strings.ToUpper(strings.TrimSpace(*req.Code))
		if newCode != code.Code {
			exists, err := s.repo.PromoCode().ExistsByCode(ctx, nil, newCode)
			if err != nil {
				return nil, fmt.Errorf("failed to check code uniqueness: %w", err)
			}
			if exists {
				return nil, fmt.Errorf("%w: code %q already exists", ErrValidationFailed, newCode)
			}
			code.Code = newCode
		}
	}
	if req.ExpiryDate != nil {
		code.ExpiryDate = req.ExpiryDate
	}
	if req.UsageLimit != nil {
		if *req.UsageLimit < code.UsedCount {
			return nil, fmt.Errorf("%w: usage limit cannot drop below uses already consumed (%d)", ErrValidationFailed, code.UsedCount)
		}
		code.UsageLimit = *req.UsageLimit
	}

	if err := s.repo.PromoCode().Update(ctx, nil, code); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: code already exists", ErrValidationFailed)
		}
		return nil, fmt.Errorf("failed to update promo code: %w", err)
	}

	s.logger.Info("Promo code updated", "code_id", id)

	return s.buildPromoCodeResponse(ctx, code), nil
}

func (s *promoCodeService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting promo code", "code_id", id, "user_id", userID)

	code, err := s.repo.PromoCode().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrPromoCodeNotFound
		}
		return fmt.Errorf("failed to get promo code: %w", err)
	}

	if err := s.requireCodeAccess(ctx, code.TeacherID, userID, code.ClassID, "delete"); err != nil {
		return err
	}

	if err := s.repo.PromoCode().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete promo code: %w", err)
	}

	s.logger.Info("Promo code deleted", "code_id", id)

	return nil
}

func (s *promoCodeService) DeleteBatch(ctx context.Context, ids []uint, userID string) (int64, error) {
	s.logger.Info("Deleting promo code batch", "count", len(ids), "user_id", userID)

	if len(ids) == 0 {
		return 0, nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user: %w", err)
	}

	// Non-admins must own every code in the batch
	if user.Role != models.RoleAdmin {
		for _, id := range ids {
			code, err := s.repo.PromoCode().GetByID(ctx, nil, id)
			if err != nil {
				if repositories.IsNotFoundError(err) {
					continue
				}
				return 0, fmt.Errorf("failed to get promo code: %w", err)
			}
			if code.TeacherID != userID {
				return 0, NewPermissionError(userID, id, "promo_code", "delete", "not the owning teacher")
			}
		}
	}

	deleted, err := s.repo.PromoCode().DeleteBatch(ctx, nil, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete promo codes: %w", err)
	}

	s.logger.Info("Promo code batch deleted", "requested", len(ids), "deleted", deleted)

	return deleted, nil
}

// ===== HELPER METHODS =====

func (s *promoCodeService) requireCodeAccess(ctx context.Context, ownerID string, userID string, resourceID uint, action string) error {
	if ownerID == userID {
		return nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user role: %w", err)
	}
	if user.Role != models.RoleAdmin {
		return NewPermissionError(userID, resourceID, "promo_code", action, "not the owning teacher or admin")
	}

	return nil
}

func (s *promoCodeService) buildPromoCodeResponse(ctx context.Context, code *models.PromoCode) *PromoCodeResponse {
	response := &PromoCodeResponse{
		PromoCode: code,
		Redeemed:  code.UsedCount > 0,
		Exhausted: code.IsExhausted(),
		Expired:   code.IsExpired(time.Now()),
	}

	if class, err := s.repo.Class().GetByID(ctx, nil, code.ClassID); err == nil {
		response.Class = class
	}

	return response
}

func (s *promoCodeService) publishEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}

	event := &events.Event{
		Type: eventType,
		Data: data,
	}
	if err := s.publisher.Publish(ctx, eventType, event); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}
