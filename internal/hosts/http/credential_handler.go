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

// CredentialHandler handles HTTP requests for reusable credentials.
type CredentialHandler struct {
	credentialUseCase *hostsUseCase.CredentialUseCase
	logger            *slog.Logger
}

// NewCredentialHandler creates a new credential handler with required
// dependencies.
func NewCredentialHandler(credentialUseCase *hostsUseCase.CredentialUseCase, logger *slog.Logger) *CredentialHandler {
	return &CredentialHandler{credentialUseCase: credentialUseCase, logger: logger}
}

// CreateHandler adds a credential owned by the caller.
// POST /v1/credentials - Requires an unlocked session.
// Returns 201 Created with the credential data.
func (h *CredentialHandler) CreateHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.CreateCredentialRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	credential, err := h.credentialUseCase.Create(c.Request.Context(), user.ID, &hostsDomain.CreateCredentialInput{
		Name:          req.Name,
		AuthType:      hostsDomain.AuthType(req.AuthType),
		Username:      req.Username,
		Password:      req.Password,
		PrivateKey:    req.PrivateKey,
		KeyPassphrase: req.KeyPassphrase,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapCredentialToResponse(credential))
}

// ListHandler returns the caller's credentials.
// GET /v1/credentials - Requires an unlocked session.
func (h *CredentialHandler) ListHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	credentials, err := h.credentialUseCase.List(c.Request.Context(), user.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapCredentialsToListResponse(credentials))
}

// GetHandler returns one of the caller's credentials.
// GET /v1/credentials/:id - Requires an unlocked session.
func (h *CredentialHandler) GetHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	credentialID, err := parseCredentialID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	credential, err := h.credentialUseCase.Get(c.Request.Context(), user.ID, credentialID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapCredentialToResponse(credential))
}

// GetSecretHandler resolves one secret field on demand.
// GET /v1/credentials/:id/secret/:field - Requires an unlocked session.
func (h *CredentialHandler) GetSecretHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	credentialID, err := parseCredentialID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	field := c.Param("field")
	value, err := h.credentialUseCase.GetSecret(c.Request.Context(), user.ID, credentialID, field)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.SecretResponse{Field: field, Value: value})
}

// UpdateHandler replaces a credential's fields.
// PUT /v1/credentials/:id - Requires an unlocked session.
func (h *CredentialHandler) UpdateHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	credentialID, err := parseCredentialID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.UpdateCredentialRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	credential, err := h.credentialUseCase.Update(c.Request.Context(), user.ID, credentialID,
		&hostsDomain.CreateCredentialInput{
			Name:     req.Name,
			AuthType: hostsDomain.AuthType(req.AuthType),
			Username: req.Username,
		}, req.Password, req.PrivateKey, req.KeyPassphrase)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapCredentialToResponse(credential))
}

// DeleteHandler removes a credential. Hosts referencing it fall back to
// their embedded secrets.
// DELETE /v1/credentials/:id - Requires an unlocked session.
// Returns 204 No Content.
func (h *CredentialHandler) DeleteHandler(c *gin.Context) {
	user, ok := authHTTP.GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	credentialID, err := parseCredentialID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.credentialUseCase.Delete(c.Request.Context(), user.ID, credentialID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// parseCredentialID parses the :id route parameter.
func parseCredentialID(c *gin.Context) (uuid.UUID, error) {
	credentialID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid credential ID format: must be a valid UUID")
	}
	return credentialID, nil
}
