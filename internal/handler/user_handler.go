package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/facultydesk/substitute-api/internal/dto"
	"github.com/facultydesk/substitute-api/internal/models"
	appErrors "github.com/facultydesk/substitute-api/pkg/errors"
	"github.com/facultydesk/substitute-api/pkg/response"
)

type userService interface {
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	RegisterDeviceToken(ctx context.Context, userID string, payload dto.DeviceTokenPayload) error
}

// UserHandler exposes the faculty directory.
type UserHandler struct {
	service userService
}

// NewUserHandler constructs the handler.
func NewUserHandler(service userService) *UserHandler {
	return &UserHandler{service: service}
}

// List godoc
// @Summary List registered faculty
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users)
}

// Get godoc
// @Summary Get one faculty member
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// Me godoc
// @Summary Get the authenticated user
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	user, err := h.service.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// RegisterDeviceToken godoc
// @Summary Register an Expo push token for the caller's device
// @Tags Users
// @Accept json
// @Success 204
// @Router /users/me/push-token [put]
func (h *UserHandler) RegisterDeviceToken(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.DeviceTokenPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid token payload"))
		return
	}
	if err := h.service.RegisterDeviceToken(c.Request.Context(), claims.UserID, payload); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
