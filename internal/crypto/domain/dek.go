package domain

import (
	"time"

	"github.com/google/uuid"
)

// WrapKind identifies which key wraps a user's DEK.
type WrapKind string

const (
	// WrapKindKEK means the DEK is wrapped by the KEK derived from the
	// user's password.
	WrapKindKEK WrapKind = "kek"

	// WrapKindExternal means the DEK is wrapped by a key derived from the
	// system root secret and the user's external subject id. Used for users
	// who authenticate through an external identity provider and have no
	// password.
	WrapKindExternal WrapKind = "ext-identity"
)

// WrappedDek is a user's 256-bit data key in its sealed form. Exactly one
// active wrapping exists per user; the AEAD tag over the wrapping detects
// wrong-key unwrap attempts.
type WrappedDek struct {
	UserID     uuid.UUID
	Ciphertext []byte // sealed DEK including the 16-byte tag
	Nonce      []byte
	WrapKind   WrapKind
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
