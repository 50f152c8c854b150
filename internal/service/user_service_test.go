package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facultydesk/substitute-api/internal/dto"
	"github.com/facultydesk/substitute-api/internal/models"
	appErrors "github.com/facultydesk/substitute-api/pkg/errors"
)

type tokenRepoStub struct {
	upserts []models.DeviceToken
}

func (r *tokenRepoStub) Upsert(ctx context.Context, token *models.DeviceToken) error {
	r.upserts = append(r.upserts, *token)
	return nil
}

type directoryStub struct {
	*userRepoStub
}

func (d directoryStub) List(ctx context.Context) ([]models.User, error) {
	result := make([]models.User, 0, len(d.users))
	for _, user := range d.users {
		result = append(result, *user)
	}
	return result, nil
}

func TestUserServiceRegisterDeviceToken(t *testing.T) {
	tokens := &tokenRepoStub{}
	svc := NewUserService(directoryStub{newUserRepoStub()}, tokens, nil)

	err := svc.RegisterDeviceToken(context.Background(), "user-1", dto.DeviceTokenPayload{Token: "ExponentPushToken[abc]"})
	require.NoError(t, err)
	require.Len(t, tokens.upserts, 1)
	assert.Equal(t, "user-1", tokens.upserts[0].UserID)
}

func TestUserServiceRegisterDeviceTokenRejectsNonExpo(t *testing.T) {
	tokens := &tokenRepoStub{}
	svc := NewUserService(directoryStub{newUserRepoStub()}, tokens, nil)

	err := svc.RegisterDeviceToken(context.Background(), "user-1", dto.DeviceTokenPayload{Token: "fcm:123"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, tokens.upserts)
}

func TestUserServiceGetUnknown(t *testing.T) {
	svc := NewUserService(directoryStub{newUserRepoStub()}, &tokenRepoStub{}, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
