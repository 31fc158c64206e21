package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/EduOps-2025/school-service/internal/events"
	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/validator"
)

// notificationEventService publishes notification events to the message
// broker. Delivery to end users (email, push) is handled by downstream
// consumers, not by this service.
type notificationEventService struct {
	repo           repositories.Repository
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	validator      *validator.Validator
}

func NewNotificationEventService(repo repositories.Repository, eventPublisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) NotificationEventService {
	return &notificationEventService{
		repo:           repo,
		eventPublisher: eventPublisher,
		logger:         logger,
		validator:      validator,
	}
}

func (s *notificationEventService) SendBulkNotification(ctx context.Context, userIDs []uint, notification *NotificationRequest) error {
	if err := s.validator.Validate(notification); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	event := &events.Event{
		Type: events.EventTypeBulkNotification,
		Data: map[string]interface{}{
			"user_ids": userIDs,
			"type":     string(notification.Type),
			"title":    notification.Title,
			"message":  notification.Message,
			"priority": string(notification.Priority),
			"data":     notification.Data,
		},
	}

	if err := s.eventPublisher.Publish(ctx, events.EventTypeBulkNotification, event); err != nil {
		return fmt.Errorf("failed to publish bulk notification: %w", err)
	}

	s.logger.Info("Bulk notification published", "recipients", len(userIDs), "type", notification.Type)

	return nil
}

func (s *notificationEventService) NotifyCodeRedeemed(ctx context.Context, code *models.PromoCode, student *models.Student) error {
	event := &events.Event{
		Type: events.EventTypePromoCodeRedeemed,
		Data: map[string]interface{}{
			"code_id":       code.ID,
			"code":          code.Code,
			"class_id":      code.ClassID,
			"teacher_id":    code.TeacherID,
			"student_id":    student.ID,
			"student_name":  student.Name,
			"student_email": student.Email,
			"used_count":    code.UsedCount,
			"usage_limit":   code.UsageLimit,
		},
	}

	if err := s.eventPublisher.Publish(ctx, events.EventTypePromoCodeRedeemed, event); err != nil {
		return fmt.Errorf("failed to publish redemption event: %w", err)
	}

	s.logger.Info("Redemption event published", "code_id", code.ID, "student_id", student.ID)

	return nil
}

func (s *notificationEventService) NotifyTeacherCredentials(ctx context.Context, teacher *models.User, credentials *TeacherCredentials) error {
	// The password never enters the event stream. Downstream mailers
	// only get the login and the address to deliver to.
	event := &events.Event{
		Type: events.EventTypeTeacherCredentials,
		Data: map[string]interface{}{
			"teacher_id": teacher.ID,
			"login":      credentials.Login,
			"email":      credentials.Email,
			"full_name":  teacher.FullName,
		},
	}

	if err := s.eventPublisher.Publish(ctx, events.EventTypeTeacherCredentials, event); err != nil {
		return fmt.Errorf("failed to publish credentials event: %w", err)
	}

	s.logger.Info("Teacher credentials event published", "teacher_id", teacher.ID)

	return nil
}

func (s *notificationEventService) NotifyStudentCredentials(ctx context.Context, student *models.Student, credentials *TeacherCredentials) error {
	// Same rule as teacher credentials, the password stays out of the
	// event stream.
	event := &events.Event{
		Type: events.EventTypeStudentCredentials,
		Data: map[string]interface{}{
			"student_id": student.ID,
			"class_id":   student.ClassID,
			"login":      credentials.Login,
			"email":      credentials.Email,
			"name":       student.Name,
		},
	}

	if err := s.eventPublisher.Publish(ctx, events.EventTypeStudentCredentials, event); err != nil {
		return fmt.Errorf("failed to publish credentials event: %w", err)
	}

	s.logger.Info("Student credentials event published", "student_id", student.ID)

	return nil
}
