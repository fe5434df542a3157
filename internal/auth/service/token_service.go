package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

// sessionClaims binds a bearer token to one session of one user.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// tokenService implements TokenService with HMAC-SHA256 signed JWTs. The
// signing key is derived from the system root key, so tokens survive a
// restart but not a root key rotation.
type tokenService struct {
	signingKey []byte
}

func NewTokenService(signingKey []byte) TokenService {
	return &tokenService{signingKey: signingKey}
}

func (t *tokenService) Generate(session *authDomain.Session) (string, error) {
	claims := &sessionClaims{
		SessionID: session.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.signingKey)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to sign session token")
	}
	return token, nil
}

func (t *tokenService) Validate(token string) (uuid.UUID, uuid.UUID, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.New("unexpected signing method")
		}
		return t.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, uuid.Nil, authDomain.ErrSessionExpired
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return uuid.Nil, uuid.Nil, authDomain.ErrSessionExpired
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, uuid.Nil, authDomain.ErrSessionExpired
	}

	return sessionID, userID, nil
}
