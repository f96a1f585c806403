package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketlens/account-service/internal/domain"
	"github.com/marketlens/account-service/internal/dto"
	"github.com/marketlens/account-service/internal/service"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    service.AuthService
	sessionService service.SessionService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService, sessionService service.SessionService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
	}
}

// RequestRegistrationOTP handles the first registration step
// @Summary Request a registration verification code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterOTPRequest true "Registration OTP request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/register/otp [post]
func (h *AuthHandler) RequestRegistrationOTP(c *gin.Context) {
	var req dto.RegisterOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.authService.RequestRegistrationOTP(c.Request.Context(), req.Name, req.Email); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Verification code sent",
	})
}

// CompleteRegistration handles the second registration step
// @Summary Complete registration with the emailed code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.CompleteRegistrationRequest true "Complete registration request"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) CompleteRegistration(c *gin.Context) {
	var req dto.CompleteRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	device := service.ParseDeviceInfo(c.Request.UserAgent(), c.ClientIP())

	result, err := h.authService.CompleteRegistration(c.Request.Context(), req.Email, req.OTP, req.Phone, req.Password, device)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAuthResponse(result))
}

// Login handles user login
// @Summary Login user
// @Description Authenticate with email and password; enforces the concurrent-session cap
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.SessionLimitResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	device := service.ParseDeviceInfo(c.Request.UserAgent(), c.ClientIP())

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, device, req.ForceLogin)
	if err != nil {
		var limit *domain.SessionLimitError
		if errors.As(err, &limit) {
			c.JSON(http.StatusConflict, dto.SessionLimitResponse{
				Error:    "Session limit reached",
				Message:  "Log out of another device or retry with force_login",
				Sessions: toSessionResponses(limit.Sessions, ""),
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAuthResponse(result))
}

// Logout handles user logout
// @Summary Logout user
// @Description End the session referenced by the presented token
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	principal := MustPrincipal(c)

	if err := h.sessionService.Logout(c.Request.Context(), principal.SessionID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Logged out successfully",
	})
}

// RequestPasswordResetOTP handles the first password-reset step
// @Summary Request a password-reset code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.PasswordResetOTPRequest true "Password reset OTP request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/password/reset/otp [post]
func (h *AuthHandler) RequestPasswordResetOTP(c *gin.Context) {
	var req dto.PasswordResetOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.authService.RequestPasswordResetOTP(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Password reset code sent",
	})
}

// ResetPassword handles the second password-reset step
// @Summary Reset password with the emailed code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Reset password request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.authService.ResetPasswordWithOTP(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Password reset successfully",
	})
}

// ChangePassword handles a password change for the authenticated user
// @Summary Change password
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.ChangePasswordRequest true "Change password request"
// @Success 200 {object} dto.PasswordChangeResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/password/change [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	principal := MustPrincipal(c)

	token, err := h.authService.ChangePassword(c.Request.Context(), principal.UserID, req.CurrentPassword, req.NewPassword, principal.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PasswordChangeResponse{
		Message:   "Password changed successfully",
		Token:     token,
		TokenType: "Bearer",
	})
}

// GetMe handles getting current user profile
// @Summary Get current user profile
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	principal := MustPrincipal(c)

	user, err := h.authService.GetUser(c.Request.Context(), principal.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}
