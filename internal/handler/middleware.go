package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marketlens/account-service/internal/domain"
	"github.com/marketlens/account-service/internal/dto"
	"github.com/marketlens/account-service/internal/service"
)

const principalKey = "principal"

// AuthMiddleware resolves the bearer token to a principal and attaches it to
// the request context. Resolution covers signature, expiry, password-change
// cutoff and session liveness in one call.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c, "Invalid authorization header format")
			return
		}

		principal, err := authService.AuthenticateRequest(c.Request.Context(), parts[1])
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireRole gates a route group to one role. Must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := MustPrincipal(c)
		if principal.Role != role {
			c.JSON(http.StatusForbidden, dto.ErrorResponse{
				Error:   "Forbidden",
				Message: "insufficient privileges",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// MustPrincipal returns the principal attached by AuthMiddleware. Only valid
// on routes behind it.
func MustPrincipal(c *gin.Context) *domain.Principal {
	return c.MustGet(principalKey).(*domain.Principal)
}

func unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error:   "Unauthorized",
		Message: message,
	})
	c.Abort()
}
