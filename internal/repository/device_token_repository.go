package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/facultydesk/substitute-api/internal/models"
)

// DeviceTokenRepository stores Expo push tokens keyed by user and device.
type DeviceTokenRepository struct {
	db *sqlx.DB
}

// NewDeviceTokenRepository constructs the repository.
func NewDeviceTokenRepository(db *sqlx.DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// Upsert registers a token for a user, refreshing the timestamp when the
// same device re-registers.
func (r *DeviceTokenRepository) Upsert(ctx context.Context, token *models.DeviceToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	token.UpdatedAt = now
	const query = `INSERT INTO device_tokens (id, user_id, token, created_at, updated_at)
	VALUES (:id, :user_id, :token, :created_at, :updated_at)
	ON CONFLICT (user_id, token) DO UPDATE SET updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

// TokensForUser returns every push token registered by one user.
func (r *DeviceTokenRepository) TokensForUser(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT token FROM device_tokens WHERE user_id = $1`
	tokens := []string{}
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("tokens for user: %w", err)
	}
	return tokens, nil
}

// TokensForAllExcept returns push tokens for every user but one. Used for
// the new-request broadcast toward potential acceptors.
func (r *DeviceTokenRepository) TokensForAllExcept(ctx context.Context, excludeUserID string) ([]string, error) {
	const query = `SELECT token FROM device_tokens WHERE user_id <> $1`
	tokens := []string{}
	if err := r.db.SelectContext(ctx, &tokens, query, excludeUserID); err != nil {
		return nil, fmt.Errorf("tokens for all except: %w", err)
	}
	return tokens, nil
}

// Delete removes a token, typically after the push provider reports the
// device as no longer registered.
func (r *DeviceTokenRepository) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM device_tokens WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}
