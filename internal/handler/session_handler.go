package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketlens/account-service/internal/dto"
	"github.com/marketlens/account-service/internal/service"
)

// SessionHandler handles session management requests
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// List returns the caller's active sessions
// @Summary List active sessions
// @Tags sessions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SessionListResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	principal := MustPrincipal(c)

	sessions, err := h.sessionService.List(c.Request.Context(), principal.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := toSessionResponses(sessions, principal.SessionID)
	c.JSON(http.StatusOK, dto.SessionListResponse{
		Sessions: responses,
		Count:    len(responses),
	})
}

// Terminate ends one of the caller's sessions by id
// @Summary Terminate a session
// @Tags sessions
// @Security BearerAuth
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Terminate(c *gin.Context) {
	principal := MustPrincipal(c)
	sessionID := c.Param("id")

	if err := h.sessionService.Terminate(c.Request.Context(), sessionID, principal.UserID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Session terminated",
	})
}

// TerminateOthers ends every session of the caller except the current one
// @Summary Terminate all other sessions
// @Tags sessions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /sessions/others [delete]
func (h *SessionHandler) TerminateOthers(c *gin.Context) {
	principal := MustPrincipal(c)

	count, err := h.sessionService.TerminateOthers(c.Request.Context(), principal.UserID, principal.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Other sessions terminated",
		"terminated": count,
	})
}

// ListForUser returns a user's active sessions for an admin
// @Summary List a user's active sessions (admin)
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "User id"
// @Success 200 {object} dto.SessionListResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /admin/users/{id}/sessions [get]
func (h *SessionHandler) ListForUser(c *gin.Context) {
	userID := c.Param("id")

	sessions, err := h.sessionService.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := toSessionResponses(sessions, "")
	c.JSON(http.StatusOK, dto.SessionListResponse{
		Sessions: responses,
		Count:    len(responses),
	})
}
