// Package http exposes the host inventory over HTTP: host and credential
// management, sharing, and roles.
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

// HostHandler handles HTTP requests for host management.
type HostHandler struct {
	hostUseCase *hostsUseCase.HostUseCase
	logger      *slog.Logger
}

// NewHostHandler creates a new host handler with required dependencies.
func NewHostHandler(hostUseCase *hostsUseCase.HostUseCase, logger *slog.Logger) *HostHandler {
	return &HostHandler{hostUseCase: hostUseCase, logger: logger}
}

// CreateHandler adds a host owned by the caller.
// POST /v1/hosts - Requires an unlocked session.
// Returns 201 Created with the host data.
func (h *HostHandler) CreateHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.CreateHostRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input, err := mapCreateHostRequest(&req)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	host, err := h.hostUseCase.Create(c.Request.Context(), user.ID, input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapHostToResponse(host))
}

// ListHandler returns the caller's own hosts with non-lazy secrets
// decrypted.
// GET /v1/hosts - Requires an unlocked session.
func (h *HostHandler) ListHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	hosts, err := h.hostUseCase.List(c.Request.Context(), user.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapHostsToListResponse(hosts))
}

// ListSharedHandler returns the hosts shared with the caller.
// GET /v1/hosts/shared - Requires an unlocked session.
func (h *HostHandler) ListSharedHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	hosts, err := h.hostUseCase.ListShared(c.Request.Context(), user.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapHostsToListResponse(hosts))
}

// GetHandler returns one host the caller can read.
// GET /v1/hosts/:id - Requires an unlocked session.
func (h *HostHandler) GetHandler(c *gin.Context) {
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

	host, err := h.hostUseCase.Get(c.Request.Context(), user.ID, hostID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapHostToResponse(host))
}

// GetSecretHandler resolves one secret field on demand.
// GET /v1/hosts/:id/secret/:field - Requires an unlocked session.
func (h *HostHandler) GetSecretHandler(c *gin.Context) {
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

	field := c.Param("field")
	value, err := h.hostUseCase.GetSecret(c.Request.Context(), user.ID, hostID, field)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.SecretResponse{Field: field, Value: value})
}

// UpdateHandler modifies a host. Owners may change everything; shared
// writers only connection metadata.
// PUT /v1/hosts/:id - Requires an unlocked session.
func (h *HostHandler) UpdateHandler(c *gin.Context) {
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

	var req dto.UpdateHostRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input, err := mapUpdateHostRequest(&req)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	host, err := h.hostUseCase.Update(c.Request.Context(), user.ID, hostID, input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapHostToResponse(host))
}

// DeleteHandler removes a host. Owner only.
// DELETE /v1/hosts/:id - Requires an unlocked session.
// Returns 204 No Content.
func (h *HostHandler) DeleteHandler(c *gin.Context) {
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

	if err := h.hostUseCase.Delete(c.Request.Context(), user.ID, hostID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

func mapCreateHostRequest(req *dto.CreateHostRequest) (*hostsDomain.CreateHostInput, error) {
	credentialID, err := parseOptionalUUID(req.CredentialID)
	if err != nil {
		return nil, err
	}

	return &hostsDomain.CreateHostInput{
		Name:                   req.Name,
		Address:                req.Address,
		Port:                   req.Port,
		Username:               req.Username,
		AuthType:               hostsDomain.AuthType(req.AuthType),
		CredentialID:           credentialID,
		Password:               req.Password,
		PrivateKey:             req.PrivateKey,
		KeyPassphrase:          req.KeyPassphrase,
		SudoPassword:           req.SudoPassword,
		ProxyHost:              req.ProxyHost,
		ProxyPort:              req.ProxyPort,
		ProxyUsername:          req.ProxyUsername,
		ProxyPassword:          req.ProxyPassword,
		Autostart:              req.Autostart,
		AutostartPassword:      req.AutostartPassword,
		AutostartPrivateKey:    req.AutostartPrivateKey,
		AutostartKeyPassphrase: req.AutostartKeyPassphrase,
	}, nil
}

func mapUpdateHostRequest(req *dto.UpdateHostRequest) (*hostsDomain.UpdateHostInput, error) {
	credentialID, err := parseOptionalUUID(req.CredentialID)
	if err != nil {
		return nil, err
	}

	return &hostsDomain.UpdateHostInput{
		Name:                   req.Name,
		Address:                req.Address,
		Port:                   req.Port,
		Username:               req.Username,
		AuthType:               hostsDomain.AuthType(req.AuthType),
		CredentialID:           credentialID,
		Password:               req.Password,
		PrivateKey:             req.PrivateKey,
		KeyPassphrase:          req.KeyPassphrase,
		SudoPassword:           req.SudoPassword,
		ProxyHost:              req.ProxyHost,
		ProxyPort:              req.ProxyPort,
		ProxyUsername:          req.ProxyUsername,
		ProxyPassword:          req.ProxyPassword,
		Autostart:              req.Autostart,
		AutostartPassword:      req.AutostartPassword,
		AutostartPrivateKey:    req.AutostartPrivateKey,
		AutostartKeyPassphrase: req.AutostartKeyPassphrase,
	}, nil
}

func parseOptionalUUID(value *string) (*uuid.UUID, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		return nil, fmt.Errorf("invalid credential ID format: must be a valid UUID")
	}
	return &id, nil
}

// parseHostID parses the :id route parameter.
func parseHostID(c *gin.Context) (uuid.UUID, error) {
	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid host ID format: must be a valid UUID")
	}
	return hostID, nil
}
