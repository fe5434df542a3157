package domain

import (
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

// Authentication errors. Credential failures are deliberately
// indistinguishable from unknown accounts.
var (
	// ErrInvalidCredentials covers unknown users, wrong passwords, and
	// failed DEK unwraps on the login path.
	ErrInvalidCredentials = apperrors.Wrap(apperrors.ErrUnauthorized, "invalid credentials")

	// ErrInvalidTOTPCode indicates the submitted one-time code did not match.
	ErrInvalidTOTPCode = apperrors.Wrap(apperrors.ErrUnauthorized, "invalid one-time code")

	// ErrSessionNotFound indicates the session does not exist.
	ErrSessionNotFound = apperrors.Wrap(apperrors.ErrNotFound, "session not found")

	// ErrSessionExpired indicates the session exists but is expired or revoked.
	ErrSessionExpired = apperrors.Wrap(apperrors.ErrUnauthorized, "session expired")

	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = apperrors.Wrap(apperrors.ErrNotFound, "user not found")

	// ErrUserNameTaken indicates a registration collision on the user name.
	ErrUserNameTaken = apperrors.Wrap(apperrors.ErrConflict, "user name already taken")

	// ErrLastAdmin guards against removing or demoting the only administrator.
	ErrLastAdmin = apperrors.Wrap(apperrors.ErrInvalidInput, "cannot remove the last administrator")

	// ErrTwoFactorRequired indicates the session is parked awaiting a TOTP
	// code and cannot perform the requested operation yet.
	ErrTwoFactorRequired = apperrors.Wrap(apperrors.ErrUnauthorized, "two-factor verification required")

	// ErrNoRecoveryPath indicates a non-destructive password reset was
	// requested for a user with no external identity wrapping.
	ErrNoRecoveryPath = apperrors.Wrap(apperrors.ErrInvalidInput, "no non-destructive recovery path for this user")
)
