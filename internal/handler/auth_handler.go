package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/facultydesk/substitute-api/internal/dto"
	appErrors "github.com/facultydesk/substitute-api/pkg/errors"
	"github.com/facultydesk/substitute-api/pkg/response"
)

type authService interface {
	Register(ctx context.Context, payload dto.RegisterPayload) (*dto.AuthResponse, error)
	Login(ctx context.Context, payload dto.LoginPayload) (*dto.AuthResponse, error)
}

// AuthHandler exposes registration and login.
type AuthHandler struct {
	service authService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Register godoc
// @Summary Register a faculty account
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body dto.RegisterPayload true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var payload dto.RegisterPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid registration payload"))
		return
	}
	result, err := h.service.Register(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Login godoc
// @Summary Log in with faculty credentials
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body dto.LoginPayload true "Credentials"
// @Success 200 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var payload dto.LoginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid login payload"))
		return
	}
	result, err := h.service.Login(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
