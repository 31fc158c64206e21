package events

import (
	"context"
	"time"
)

// Event is the envelope published to the message broker for every
// domain event the service emits
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Event types emitted by the service
const (
	EventTypePromoCodeGenerated = "promo_code.generated"
	EventTypePromoCodeRedeemed  = "promo_code.redeemed"
	EventTypeTeacherCredentials = "teacher.credentials_created"
	EventTypeStudentCredentials = "student.credentials_created"
	EventTypeStudentEnrolled    = "student.enrolled"
	EventTypeClassCreated       = "class.created"
	EventTypeBulkNotification   = "system.bulk_notification"
)

const (
	// EventSource identifies this service in the event envelope
	EventSource = "school-service"

	// EventVersion is the current envelope schema version
	EventVersion = "1.0"
)

// EventPublisher publishes domain events to the message broker
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
	Close() error
}
