package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/facultydesk/substitute-api/internal/dto"
	"github.com/facultydesk/substitute-api/internal/models"
	appErrors "github.com/facultydesk/substitute-api/pkg/errors"
)

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

type deviceTokenStore interface {
	Upsert(ctx context.Context, token *models.DeviceToken) error
}

// UserService exposes the faculty directory and device registration.
type UserService struct {
	users  userStore
	tokens deviceTokenStore
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users userStore, tokens deviceTokenStore, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, tokens: tokens, logger: logger}
}

// List returns all registered faculty ordered by name.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, nil
}

// Get returns one faculty member by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	return user, nil
}

// RegisterDeviceToken stores an Expo push token for the caller's device.
func (s *UserService) RegisterDeviceToken(ctx context.Context, userID string, payload dto.DeviceTokenPayload) error {
	token := strings.TrimSpace(payload.Token)
	if !strings.HasPrefix(token, "ExponentPushToken") {
		return appErrors.Clone(appErrors.ErrValidation, "token must be an Expo push token")
	}
	if err := s.tokens.Upsert(ctx, &models.DeviceToken{UserID: userID, Token: token}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register device token")
	}
	s.logger.Info("device token registered", zap.String("user_id", userID))
	return nil
}
