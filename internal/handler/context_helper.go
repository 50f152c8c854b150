package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/facultydesk/substitute-api/internal/middleware"
	"github.com/facultydesk/substitute-api/internal/models"
)

// claimsFromContext returns the identity the JWT middleware stored, or nil
// when the route was reached unauthenticated.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	if claims, ok := value.(*models.JWTClaims); ok {
		return claims
	}
	return nil
}
