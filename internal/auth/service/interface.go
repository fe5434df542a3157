// Package service provides technical services for authentication: password
// verifier hashing, bearer token signing, TOTP, and failure rate limiting.
package service

import (
	"time"

	"github.com/google/uuid"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
)

// PasswordService hashes and verifies the stored password verifier. The
// verifier is independent of the KEK derivation; it exists so a wrong
// password is rejected before any key material is touched.
type PasswordService interface {
	// Hash produces an encoded argon2id verifier for storage.
	Hash(password string) (string, error)

	// Verify compares a password against a stored verifier in constant time.
	Verify(password string, verifier string) bool

	// DummyVerify burns the same CPU cost as a real verification. Called for
	// unknown user names so response timing does not reveal which names exist.
	DummyVerify(password string)
}

// TokenService signs and validates bearer tokens binding a session.
type TokenService interface {
	// Generate signs a token for the session, valid until the session expires.
	Generate(session *authDomain.Session) (string, error)

	// Validate parses the token and returns the session and user ids it
	// binds. Expired or tampered tokens return an error.
	Validate(token string) (sessionID uuid.UUID, userID uuid.UUID, err error)
}

// TOTPService manages time-based one-time passwords for second-factor
// verification.
type TOTPService interface {
	// GenerateSecret creates a new TOTP secret and its provisioning URL for
	// the given account name.
	GenerateSecret(accountName string) (secret string, url string, err error)

	// ValidateCode checks a submitted code against the secret.
	ValidateCode(code string, secret string) bool

	// GenerateBackupCodes returns plain backup codes and their stored form.
	GenerateBackupCodes() (plain []string, stored string, err error)

	// ConsumeBackupCode checks code against the stored form and, on match,
	// returns the stored form with that code removed.
	ConsumeBackupCode(code string, stored string) (remaining string, ok bool)
}

// FailureLimiter tracks authentication failures per key and locks keys that
// exceed the budget.
type FailureLimiter interface {
	// Check returns a RateLimitedError when the key is locked.
	Check(key string) error

	// RecordFailure counts a failure and locks the key if the budget within
	// the sliding window is exhausted.
	RecordFailure(key string, now time.Time)

	// RecordSuccess clears the failure history for the key.
	RecordSuccess(key string)
}
