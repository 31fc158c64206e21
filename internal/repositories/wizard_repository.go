package repositories

import (
	"context"

	"github.com/EduOps-2025/school-service/internal/models"
)

// WizardSessionRepository stores setup wizard sessions. Sessions are
// short-lived and keyed by the session ID handed to the client.
type WizardSessionRepository interface {
	Save(ctx context.Context, session *models.WizardSession) error
	Get(ctx context.Context, id string) (*models.WizardSession, error)
	Delete(ctx context.Context, id string) error
}
