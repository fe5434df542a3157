package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeviceClass determines the session lifetime.
type DeviceClass string

const (
	DeviceBrowser DeviceClass = "browser"
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
)

// Valid reports whether the device class is one of the known values.
func (d DeviceClass) Valid() bool {
	switch d {
	case DeviceBrowser, DeviceDesktop, DeviceMobile:
		return true
	}
	return false
}

// Session is a persisted login. Whether the session can reach decrypted
// data is not stored here: the data-unlocked bit lives in memory only and
// dies with the process.
type Session struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	DeviceClass    DeviceClass
	DeviceDesc     string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
	RevokedAt      *time.Time
}

// Alive reports whether the session is neither expired nor revoked at the
// given instant.
func (s *Session) Alive(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// LoginState is the outcome of the first login step.
type LoginState string

const (
	// LoginStateUnlocked means the session is fully established and data
	// access is open.
	LoginStateUnlocked LoginState = "unlocked"
	// LoginStateAwait2FA means the password was accepted but a TOTP code is
	// required before the session can reach data.
	LoginStateAwait2FA LoginState = "await_2fa"
)

// LoginInput carries the credentials of a password login attempt.
type LoginInput struct {
	Name        string
	Password    string
	DeviceClass DeviceClass
	DeviceDesc  string
	RemoteAddr  string
}

// LoginOutput is the result of a successful login step.
type LoginOutput struct {
	Token     string
	SessionID uuid.UUID
	UserID    uuid.UUID
	State     LoginState
	ExpiresAt time.Time
}
