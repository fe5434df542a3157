package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	"github.com/sshdeck/sshdeck/internal/auth/http/dto"
	authUseCase "github.com/sshdeck/sshdeck/internal/auth/usecase"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	"github.com/sshdeck/sshdeck/internal/httputil"
	customValidation "github.com/sshdeck/sshdeck/internal/validation"
)

// LoginHandler handles HTTP requests for the login state machine: password
// and external-identity logins, the TOTP step, session re-unlock, and logout.
type LoginHandler struct {
	loginUseCase *authUseCase.LoginUseCase
	logger       *slog.Logger
}

// NewLoginHandler creates a new login handler with required dependencies.
func NewLoginHandler(loginUseCase *authUseCase.LoginUseCase, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		loginUseCase: loginUseCase,
		logger:       logger,
	}
}

// PasswordLoginHandler performs a password login.
// POST /v1/auth/login - Unauthenticated.
// Returns 200 OK with the session token. State "await_2fa" means a TOTP
// code must be submitted before data access opens.
func (h *LoginHandler) PasswordLoginHandler(c *gin.Context) {
	var req dto.PasswordLoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := &authDomain.LoginInput{
		Name:        req.Name,
		Password:    req.Password,
		DeviceClass: authDomain.DeviceClass(req.DeviceClass),
		DeviceDesc:  req.DeviceDesc,
		RemoteAddr:  c.ClientIP(),
	}

	output, err := h.loginUseCase.PasswordLogin(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if input.DeviceClass == authDomain.DeviceBrowser {
		setSessionCookie(c, output.Token, output.ExpiresAt)
	}

	c.JSON(http.StatusOK, dto.MapLoginToResponse(output))
}

// ExternalLoginHandler performs a login through the external identity
// provider.
// POST /v1/auth/external - Unauthenticated.
// Returns 200 OK with the session token. Unknown subjects are provisioned
// on first login.
func (h *LoginHandler) ExternalLoginHandler(c *gin.Context) {
	var req dto.ExternalLoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	output, err := h.loginUseCase.ExternalLogin(c.Request.Context(), req.Code,
		authDomain.DeviceClass(req.DeviceClass), req.DeviceDesc)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if authDomain.DeviceClass(req.DeviceClass) == authDomain.DeviceBrowser {
		setSessionCookie(c, output.Token, output.ExpiresAt)
	}

	c.JSON(http.StatusOK, dto.MapLoginToResponse(output))
}

// TOTPHandler completes the second login step.
// POST /v1/auth/totp - Requires authentication (the parked session's token).
// Accepts a TOTP code or a single-use backup code. Returns 204 No Content.
func (h *LoginHandler) TOTPHandler(c *gin.Context) {
	session, ok := GetSession(c.Request.Context())
	if !ok || session == nil {
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

	if err := h.loginUseCase.SubmitTOTP(c.Request.Context(), session.ID, req.Code); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// UnlockHandler re-derives the data key for a valid but locked session,
// after an idle eviction or a server restart.
// POST /v1/auth/unlock - Requires authentication.
// Returns 204 No Content.
func (h *LoginHandler) UnlockHandler(c *gin.Context) {
	session, ok := GetSession(c.Request.Context())
	if !ok || session == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.UnlockRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.loginUseCase.Unlock(c.Request.Context(), session.ID, req.Password); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// LogoutHandler revokes the current session and releases its key reference.
// POST /v1/auth/logout - Requires authentication.
// Returns 204 No Content.
func (h *LoginHandler) LogoutHandler(c *gin.Context) {
	session, ok := GetSession(c.Request.Context())
	if !ok || session == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	if err := h.loginUseCase.Logout(c.Request.Context(), session.ID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	clearSessionCookie(c)
	c.Data(http.StatusNoContent, "application/json", nil)
}

// setSessionCookie mirrors the token into an HttpOnly Lax cookie for
// browser clients. Secure is set when the request arrived over TLS.
func setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", c.Request.TLS != nil, true)
}

func clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", c.Request.TLS != nil, true)
}
