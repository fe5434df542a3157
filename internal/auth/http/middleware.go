package http

import (
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	authUseCase "github.com/sshdeck/sshdeck/internal/auth/usecase"
	cryptoService "github.com/sshdeck/sshdeck/internal/crypto/service"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	"github.com/sshdeck/sshdeck/internal/httputil"
)

// internalTokenBytes is the length of the derived loopback token.
const internalTokenBytes = 32

// SessionCookie carries the session token for browser clients. Non-browser
// clients send the same token in the Authorization header.
const SessionCookie = "sshdeck_session"

// AuthenticationMiddleware authenticates requests via a Bearer session token.
//
// The middleware validates the token with the session store, loads the owning
// user, and stores both in the request context for downstream handlers. A
// valid session here says nothing about data access: the data gate is a
// separate middleware.
//
// Authorization header format: "Bearer <token>" (case-insensitive "bearer").
// When the header is absent the session cookie is consulted instead.
func AuthenticationMiddleware(
	sessionUseCase *authUseCase.SessionUseCase,
	userUseCase *authUseCase.UserUseCase,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			logger.Debug("authentication failed", slog.String("error", err.Error()))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		session, err := sessionUseCase.Validate(c.Request.Context(), token)
		if err != nil {
			logger.Debug("authentication failed", slog.String("error", err.Error()))
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		user, err := userUseCase.Get(c.Request.Context(), session.UserID)
		if err != nil {
			// The account vanished under a live session.
			logger.Debug("authentication failed: user gone",
				slog.String("session_id", session.ID.String()))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		ctx := WithSession(c.Request.Context(), session)
		ctx = WithUser(ctx, user)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// extractToken pulls the session token from the Authorization header, or
// from the session cookie when no header is present.
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		cookie, err := c.Cookie(SessionCookie)
		if err != nil || cookie == "" {
			return "", apperrors.Wrap(apperrors.ErrUnauthorized, "missing credentials")
		}
		return cookie, nil
	}

	const bearerPrefix = "bearer "
	if len(authHeader) < len(bearerPrefix) ||
		!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return "", apperrors.Wrap(apperrors.ErrUnauthorized, "malformed authorization header")
	}

	token := authHeader[len(bearerPrefix):]
	if token == "" {
		return "", apperrors.Wrap(apperrors.ErrUnauthorized, "empty bearer token")
	}
	return token, nil
}

// DataGateMiddleware blocks requests that touch encrypted data unless the
// session's data key is resident and the session has cleared every login
// step.
//
// MUST be used after AuthenticationMiddleware. Two distinct refusals:
//   - 401 two-factor required: the password was accepted but the TOTP step
//     is still pending.
//   - 423 data_locked: the session is valid but the key was evicted (idle
//     timeout or server restart); the client must re-unlock with the
//     password.
func DataGateMiddleware(
	sessionUseCase *authUseCase.SessionUseCase,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := GetSession(c.Request.Context())
		if !ok || session == nil {
			logger.Error("data gate: no authenticated session in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if sessionUseCase.AwaitingSecondFactor(session.ID) {
			httputil.HandleErrorGin(c, authDomain.ErrTwoFactorRequired, logger)
			c.Abort()
			return
		}

		if !sessionUseCase.IsUnlocked(session.ID) {
			logger.Debug("data gate: key not resident",
				slog.String("session_id", session.ID.String()))
			httputil.HandleErrorGin(c, apperrors.ErrDataLocked, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

// AdminMiddleware restricts a route to administrator accounts.
// MUST be used after AuthenticationMiddleware.
func AdminMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c.Request.Context())
		if !ok || user == nil {
			logger.Error("admin check: no authenticated user in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if !user.IsAdmin {
			httputil.HandleErrorGin(c, apperrors.ErrForbidden, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

// InternalTokenMiddleware guards loopback-only endpoints with the derived
// internal token. The token is compared in constant time; a mismatch is
// indistinguishable from a missing header.
func InternalTokenMiddleware(
	systemKeys cryptoService.SystemKeys,
	logger *slog.Logger,
) gin.HandlerFunc {
	expected := hex.EncodeToString(systemKeys.InternalToken(internalTokenBytes))

	return func(c *gin.Context) {
		got := c.GetHeader("X-Internal-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			logger.Debug("internal token check failed")
			httputil.HandleErrorGin(c, apperrors.ErrForbidden, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}
