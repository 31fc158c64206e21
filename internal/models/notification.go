package models

// NotificationType classifies outbound notifications
type NotificationType string

const (
	NotificationCodesGenerated  NotificationType = "codes_generated"
	NotificationCodeRedeemed    NotificationType = "code_redeemed"
	NotificationTeacherWelcome  NotificationType = "teacher_welcome"
	NotificationStudentEnrolled NotificationType = "student_enrolled"
	NotificationClassCreated    NotificationType = "class_created"
)

// NotificationPriority orders delivery urgency
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)
