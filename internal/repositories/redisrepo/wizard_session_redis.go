package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
)

const (
	wizardSessionPrefix = "wizard:session:"
	wizardSessionTTL    = 2 * time.Hour
)

type wizardSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewWizardSessionRepository stores wizard sessions in Redis under
// "wizard:session:<id>" with a sliding TTL. A nil client is rejected at
// use time so the service can surface a clear error instead of
// panicking during setup.
func NewWizardSessionRepository(client *redis.Client) repositories.WizardSessionRepository {
	return &wizardSessionRepository{
		client: client,
		ttl:    wizardSessionTTL,
	}
}

func (r *wizardSessionRepository) Save(ctx context.Context, session *models.WizardSession) error {
	if r.client == nil {
		return fmt.Errorf("save wizard session: redis not available")
	}

	session.UpdatedAt = time.Now()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal wizard session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save wizard session: %w", err)
	}

	return nil
}

func (r *wizardSessionRepository) Get(ctx context.Context, id string) (*models.WizardSession, error) {
	if r.client == nil {
		return nil, fmt.Errorf("get wizard session: redis not available")
	}

	data, err := r.client.Get(ctx, r.key(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("get wizard session: %w", err)
	}

	var session models.WizardSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("unmarshal wizard session: %w", err)
	}

	return &session, nil
}

func (r *wizardSessionRepository) Delete(ctx context.Context, id string) error {
	if r.client == nil {
		return fmt.Errorf("delete wizard session: redis not available")
	}

	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("delete wizard session: %w", err)
	}

	return nil
}

func (r *wizardSessionRepository) key(id string) string {
	return wizardSessionPrefix + id
}
