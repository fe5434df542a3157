package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	"github.com/sshdeck/sshdeck/internal/auth/http/dto"
	authUseCase "github.com/sshdeck/sshdeck/internal/auth/usecase"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	"github.com/sshdeck/sshdeck/internal/httputil"
	customValidation "github.com/sshdeck/sshdeck/internal/validation"
)

// UserHandler handles HTTP requests for user administration, password
// management, and TOTP enrollment.
type UserHandler struct {
	userUseCase     *authUseCase.UserUseCase
	passwordUseCase *authUseCase.PasswordUseCase
	logger          *slog.Logger
}

// NewUserHandler creates a new user handler with required dependencies.
func NewUserHandler(
	userUseCase *authUseCase.UserUseCase,
	passwordUseCase *authUseCase.PasswordUseCase,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		userUseCase:     userUseCase,
		passwordUseCase: passwordUseCase,
		logger:          logger,
	}
}

// CreateHandler registers a new user with fresh key material.
// POST /v1/users - Requires admin.
// Returns 201 Created with the user data.
func (h *UserHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateUserRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := &authDomain.CreateUserInput{
		Name:     req.Name,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	}

	user, err := h.userUseCase.Register(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapUserToResponse(user))
}

// MeHandler returns the authenticated user.
// GET /v1/users/me - Requires authentication.
func (h *UserHandler) MeHandler(c *gin.Context) {
	user, ok := GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapUserToResponse(user))
}

// ListHandler retrieves users with pagination support.
// GET /v1/users?offset=0&limit=50 - Requires admin.
func (h *UserHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	users, err := h.userUseCase.List(c.Request.Context(), limit, offset)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapUsersToListResponse(users))
}

// GetHandler retrieves a user by ID.
// GET /v1/users/:id - Requires admin.
func (h *UserHandler) GetHandler(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	user, err := h.userUseCase.Get(c.Request.Context(), userID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapUserToResponse(user))
}

// SetAdminHandler grants or revokes the administrator role.
// PUT /v1/users/:id/admin - Requires admin.
// Returns 204 No Content. Demoting the last administrator is refused.
func (h *UserHandler) SetAdminHandler(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.SetAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.userUseCase.SetAdmin(c.Request.Context(), userID, req.IsAdmin); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// DeleteHandler removes a user account, its key material, and everything
// encrypted under it.
// DELETE /v1/users/:id - Requires admin.
// Returns 204 No Content. Deleting the last administrator is refused.
func (h *UserHandler) DeleteHandler(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.userUseCase.Delete(c.Request.Context(), userID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// ChangePasswordHandler changes the caller's password, re-wrapping the data
// key in place so encrypted data and other sessions survive.
// POST /v1/users/me/password - Requires authentication.
// Returns 204 No Content.
func (h *UserHandler) ChangePasswordHandler(c *gin.Context) {
	user, ok := GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.ChangePasswordRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.passwordUseCase.Change(c.Request.Context(), user.ID,
		req.OldPassword, req.NewPassword); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// SelfResetPasswordHandler sets a new password for the caller without the
// old one. The route sits behind the data gate: the caller's resident data
// key proves access, so the key material survives the reset.
// POST /v1/users/me/password/reset - Requires an unlocked session.
// Returns 204 No Content. All of the caller's sessions are revoked.
func (h *UserHandler) SelfResetPasswordHandler(c *gin.Context) {
	user, ok := GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.SelfResetPasswordRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.passwordUseCase.SelfReset(c.Request.Context(), user.ID, req.NewPassword); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// ResetPasswordHandler resets a user's password without the old one.
// POST /v1/users/:id/password/reset - Requires admin.
// Destructive resets mint a fresh data key and destroy all encrypted
// payloads; non-destructive resets prove the external identity wrapping
// still opens and set a verifier, and fail for password-only accounts.
// Returns 204 No Content. All of the user's sessions are revoked.
func (h *UserHandler) ResetPasswordHandler(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.ResetPasswordRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if req.Destructive {
		err = h.passwordUseCase.DestructiveReset(c.Request.Context(), userID, req.NewPassword)
	} else {
		err = h.passwordUseCase.RecoveryReset(c.Request.Context(), userID, req.NewPassword)
	}
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// StartTOTPHandler begins TOTP enrollment for the caller.
// POST /v1/users/me/totp - Requires authentication.
// Returns 200 OK with the provisioning secret and otpauth URL. Enrollment
// is inactive until confirmed.
func (h *UserHandler) StartTOTPHandler(c *gin.Context) {
	user, ok := GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	secret, url, err := h.userUseCase.StartTOTPEnrollment(c.Request.Context(), user.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.TOTPEnrollmentResponse{Secret: secret, URL: url})
}

// ConfirmTOTPHandler activates a started TOTP enrollment.
// POST /v1/users/me/totp/confirm - Requires authentication.
// Returns 200 OK with the single-use backup codes.
func (h *UserHandler) ConfirmTOTPHandler(c *gin.Context) {
	user, ok := GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.TOTPRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	backupCodes, err := h.userUseCase.ConfirmTOTPEnrollment(c.Request.Context(), user.ID, req.Code)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.BackupCodesResponse{BackupCodes: backupCodes})
}

// DisableTOTPHandler disables TOTP for the caller. A valid current code is
// required.
// POST /v1/users/me/totp/disable - Requires authentication.
// Returns 204 No Content.
func (h *UserHandler) DisableTOTPHandler(c *gin.Context) {
	user, ok := GetUser(c.Request.Context())
	if !ok || user == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.TOTPRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.userUseCase.DisableTOTP(c.Request.Context(), user.ID, req.Code); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// parseUserID parses the :id route parameter.
func parseUserID(c *gin.Context) (uuid.UUID, error) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID format: must be a valid UUID")
	}
	return userID, nil
}
