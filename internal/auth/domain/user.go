// Package domain defines the core entities for authentication and session
// management: users, sessions, and the login state machine inputs.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account on the server. The password never touches this struct;
// only the argon2id verifier is stored. External users authenticate through
// the identity provider and carry no verifier.
type User struct {
	ID              uuid.UUID
	Name            string
	Verifier        string
	IsAdmin         bool
	IsExternal      bool
	ExternalSubject string
	TOTPEnabled     bool
	TOTPSecret      string
	TOTPBackupCodes string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateUserInput carries the fields needed to register a user.
type CreateUserInput struct {
	Name     string
	Password string
	IsAdmin  bool
}

// ExternalUserInput carries the provider identity for just-in-time creation
// of externally authenticated users.
type ExternalUserInput struct {
	Name    string
	Subject string
}
