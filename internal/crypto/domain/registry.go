package domain

// EntityKind names a kind of record whose sensitive fields are encrypted
// under the owner's DEK. The kind participates in the associated data of each
// field ciphertext, so a ciphertext cannot be replayed on another kind.
type EntityKind string

const (
	KindHost             EntityKind = "host"
	KindCredential       EntityKind = "credential"
	KindUser             EntityKind = "user"
	KindSettings         EntityKind = "settings"
	KindBookmarkRecent   EntityKind = "file_bookmark_recent"
	KindBookmarkPinned   EntityKind = "file_bookmark_pinned"
	KindBookmarkShortcut EntityKind = "file_bookmark_shortcut"
	KindCommandHistory   EntityKind = "command_history"
	KindSessionRecording EntityKind = "session_recording"
	KindSharedSecret     EntityKind = "shared_secret"
	KindPendingShare     EntityKind = "pending_share"
)

// SensitiveField describes one encrypted column of an entity kind. Lazy
// fields may be skipped on bulk decrypt and resolved on demand; this keeps
// list endpoints from paying for large payloads like recordings and keys.
type SensitiveField struct {
	Name string
	Lazy bool
}

// sensitiveFields is the immutable entity-kind registry. It is fixed at
// compile time; nothing mutates it at runtime.
var sensitiveFields = map[EntityKind][]SensitiveField{
	KindHost: {
		{Name: "password"},
		{Name: "private_key", Lazy: true},
		{Name: "key_passphrase"},
		{Name: "sudo_password"},
		{Name: "proxy_password"},
		{Name: "autostart_password"},
		{Name: "autostart_private_key", Lazy: true},
		{Name: "autostart_key_passphrase"},
	},
	KindCredential: {
		{Name: "password"},
		{Name: "private_key", Lazy: true},
		{Name: "key_passphrase"},
	},
	KindUser: {
		{Name: "totp_secret"},
		{Name: "totp_backup_codes"},
	},
	KindSettings: {
		{Name: "value"},
	},
	KindBookmarkRecent: {
		{Name: "path"},
		{Name: "display_name"},
	},
	KindBookmarkPinned: {
		{Name: "path"},
		{Name: "display_name"},
	},
	KindBookmarkShortcut: {
		{Name: "path"},
		{Name: "display_name"},
	},
	KindCommandHistory: {
		{Name: "command"},
	},
	KindSessionRecording: {
		{Name: "payload", Lazy: true},
	},
}

// SensitiveFields returns the registry entry for a kind. The returned slice
// must not be modified.
func SensitiveFields(kind EntityKind) ([]SensitiveField, bool) {
	fields, ok := sensitiveFields[kind]
	return fields, ok
}

// IsSensitive reports whether a field of a kind is encrypted at rest.
func IsSensitive(kind EntityKind, field string) bool {
	for _, f := range sensitiveFields[kind] {
		if f.Name == field {
			return true
		}
	}
	return false
}
