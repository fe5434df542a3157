package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authHTTP "github.com/sshdeck/sshdeck/internal/auth/http"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
	"github.com/sshdeck/sshdeck/internal/hosts/http/dto"
	hostsUseCase "github.com/sshdeck/sshdeck/internal/hosts/usecase"
	"github.com/sshdeck/sshdeck/internal/httputil"
	customValidation "github.com/sshdeck/sshdeck/internal/validation"
)

// GrantHandler handles HTTP requests for host sharing.
type GrantHandler struct {
	shareUseCase *hostsUseCase.ShareUseCase
	logger       *slog.Logger
}

// NewGrantHandler creates a new grant handler with required dependencies.
func NewGrantHandler(shareUseCase *hostsUseCase.ShareUseCase, logger *slog.Logger) *GrantHandler {
	return &GrantHandler{shareUseCase: shareUseCase, logger: logger}
}

// CreateHandler shares a host with a user or role. The caller must own the
// host and be unlocked.
// POST /v1/hosts/:id/grants - Requires an unlocked session.
// Returns 201 Created with the grant data.
func (h *GrantHandler) CreateHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	hostID, err := parseHostID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.CreateGrantRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	principalID, err := uuid.Parse(req.PrincipalID)
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid principal ID format: must be a valid UUID"), h.logger)
		return
	}

	grant, err := h.shareUseCase.CreateGrant(c.Request.Context(), user.ID, &hostsDomain.CreateGrantInput{
		HostID:        hostID,
		PrincipalKind: hostsDomain.PrincipalKind(req.PrincipalKind),
		PrincipalID:   principalID,
		Level:         hostsDomain.GrantLevel(req.Level),
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapGrantToResponse(grant))
}

// ListHandler returns the grants on a host. Owner only.
// GET /v1/hosts/:id/grants - Requires an unlocked session.
func (h *GrantHandler) ListHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	hostID, err := parseHostID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	grants, err := h.shareUseCase.ListByHost(c.Request.Context(), user.ID, hostID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapGrantsToListResponse(grants))
}

// RevokeHandler removes a grant and every row it materialized.
// DELETE /v1/grants/:id - Requires an unlocked session.
// Returns 204 No Content.
func (h *GrantHandler) RevokeHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	grantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid grant ID format: must be a valid UUID"), h.logger)
		return
	}

	if err := h.shareUseCase.RevokeGrant(c.Request.Context(), user.ID, grantID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}
