package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sshdeck/sshdeck/internal/auth/http/dto"
	authUseCase "github.com/sshdeck/sshdeck/internal/auth/usecase"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	"github.com/sshdeck/sshdeck/internal/httputil"
)

// SessionHandler handles HTTP requests for session listing and revocation.
type SessionHandler struct {
	sessionUseCase *authUseCase.SessionUseCase
	logger         *slog.Logger
}

// NewSessionHandler creates a new session handler with required dependencies.
func NewSessionHandler(sessionUseCase *authUseCase.SessionUseCase, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionUseCase: sessionUseCase,
		logger:         logger,
	}
}

// ListHandler lists the caller's live sessions.
// GET /v1/sessions - Requires authentication.
// Returns 200 OK with the sessions and their current unlock state.
func (h *SessionHandler) ListHandler(c *gin.Context) {
	user, ok := GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	sessions, err := h.sessionUseCase.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := dto.ListSessionsResponse{
		Data: make([]dto.SessionResponse, 0, len(sessions)),
	}
	for _, session := range sessions {
		unlocked := h.sessionUseCase.IsUnlocked(session.ID)
		response.Data = append(response.Data, dto.MapSessionToResponse(session, unlocked))
	}

	c.JSON(http.StatusOK, response)
}

// ListAllHandler lists every live session across all users.
// GET /v1/admin/sessions - Requires admin.
// Returns 200 OK with the sessions, including their owning user.
func (h *SessionHandler) ListAllHandler(c *gin.Context) {
	sessions, err := h.sessionUseCase.ListAll(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := dto.ListSessionsResponse{
		Data: make([]dto.SessionResponse, 0, len(sessions)),
	}
	for _, session := range sessions {
		unlocked := h.sessionUseCase.IsUnlocked(session.ID)
		response.Data = append(response.Data, dto.MapSessionToAdminResponse(session, unlocked))
	}

	c.JSON(http.StatusOK, response)
}

// RevokeHandler revokes one of the caller's sessions. Administrators may
// revoke any session.
// DELETE /v1/sessions/:id - Requires authentication.
// Returns 204 No Content.
func (h *SessionHandler) RevokeHandler(c *gin.Context) {
	user, ok := GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid session ID format: must be a valid UUID"),
			h.logger)
		return
	}

	if !user.IsAdmin {
		owned, err := h.ownsSession(c, user.ID, sessionID)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		if !owned {
			// Not revealing whether the session exists at all.
			httputil.HandleErrorGin(c, apperrors.ErrNotFound, h.logger)
			return
		}
	}

	if err := h.sessionUseCase.Revoke(c.Request.Context(), sessionID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// ownsSession reports whether the session belongs to the user's live set.
func (h *SessionHandler) ownsSession(c *gin.Context, userID, sessionID uuid.UUID) (bool, error) {
	sessions, err := h.sessionUseCase.ListForUser(c.Request.Context(), userID)
	if err != nil {
		return false, err
	}
	for _, session := range sessions {
		if session.ID == sessionID {
			return true, nil
		}
	}
	return false, nil
}
