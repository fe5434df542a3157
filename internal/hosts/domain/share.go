package domain

import (
	"time"

	"github.com/google/uuid"
)

// SharedSecret is one host or credential field re-encrypted under a
// grantee's DEK. The grantee reads shared hosts through these rows and
// never touches the owner's ciphertext.
type SharedSecret struct {
	ID            uuid.UUID
	GrantID       uuid.UUID
	HostID        uuid.UUID
	GranteeUserID uuid.UUID
	EntityKind    string
	RecordID      string
	Field         string
	Ciphertext    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PendingShare is a field re-encrypted under the system pending-share key
// because its grantee held no resident DEK at grant time. It is promoted to
// a SharedSecret at the grantee's next unlock and then deleted.
type PendingShare struct {
	ID            uuid.UUID
	GrantID       uuid.UUID
	HostID        uuid.UUID
	GranteeUserID uuid.UUID
	EntityKind    string
	RecordID      string
	Field         string
	Ciphertext    string
	CreatedAt     time.Time
}
