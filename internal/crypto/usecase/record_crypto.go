package usecase

import (
	"github.com/google/uuid"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
	"github.com/sshdeck/sshdeck/internal/crypto/service"
	"github.com/sshdeck/sshdeck/internal/errors"
)

// RecordCrypto encrypts and decrypts the sensitive fields of a record as a
// unit. Which fields are sensitive comes from the entity registry; fields
// outside the registry pass through untouched.
type RecordCrypto struct {
	cipher service.FieldCipher
}

func NewRecordCrypto(cipher service.FieldCipher) *RecordCrypto {
	return &RecordCrypto{cipher: cipher}
}

// EncryptRecord returns a copy of fields with every registered sensitive
// field encrypted under dek. Values already carrying the version prefix and
// empty values are left as they are.
func (r *RecordCrypto) EncryptRecord(kind cryptoDomain.EntityKind, recordID string, userID uuid.UUID, dek []byte, fields map[string]string) (map[string]string, error) {
	sensitive, ok := cryptoDomain.SensitiveFields(kind)
	if !ok {
		return nil, errors.Wrapf(cryptoDomain.ErrUnknownEntityKind, "encrypt record: kind=%s", kind)
	}

	out := cloneFields(fields)
	for _, field := range sensitive {
		value, ok := out[field.Name]
		if !ok {
			continue
		}

		encrypted, err := r.cipher.EncryptField(value, dek, service.FieldRef{
			Kind:     kind,
			RecordID: recordID,
			Field:    field.Name,
			UserID:   userID,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "encrypt record: kind=%s record_id=%s field=%s", kind, recordID, field.Name)
		}
		out[field.Name] = encrypted
	}

	return out, nil
}

// DecryptRecord returns a copy of fields with every registered sensitive
// field decrypted. When skipLazy is true, fields flagged as lazy in the
// registry keep their stored ciphertext, so list views never pay for bulky
// material like private keys.
func (r *RecordCrypto) DecryptRecord(kind cryptoDomain.EntityKind, recordID string, userID uuid.UUID, dek []byte, fields map[string]string, skipLazy bool) (map[string]string, error) {
	sensitive, ok := cryptoDomain.SensitiveFields(kind)
	if !ok {
		return nil, errors.Wrapf(cryptoDomain.ErrUnknownEntityKind, "decrypt record: kind=%s", kind)
	}

	out := cloneFields(fields)
	for _, field := range sensitive {
		value, ok := out[field.Name]
		if !ok {
			continue
		}
		if skipLazy && field.Lazy {
			continue
		}

		decrypted, err := r.cipher.DecryptField(value, dek, service.FieldRef{
			Kind:     kind,
			RecordID: recordID,
			Field:    field.Name,
			UserID:   userID,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "decrypt record: kind=%s record_id=%s field=%s", kind, recordID, field.Name)
		}
		out[field.Name] = decrypted
	}

	return out, nil
}

// DecryptSingleField decrypts one registered field of a record, for lazy
// fetch endpoints that return exactly one secret.
func (r *RecordCrypto) DecryptSingleField(kind cryptoDomain.EntityKind, recordID, field string, userID uuid.UUID, dek []byte, value string) (string, error) {
	if !cryptoDomain.IsSensitive(kind, field) {
		return "", errors.Wrapf(errors.ErrInvalidInput, "decrypt field: %s is not a sensitive field of %s", field, kind)
	}

	decrypted, err := r.cipher.DecryptField(value, dek, service.FieldRef{
		Kind:     kind,
		RecordID: recordID,
		Field:    field,
		UserID:   userID,
	})
	if err != nil {
		return "", errors.Wrapf(err, "decrypt field: kind=%s record_id=%s field=%s", kind, recordID, field)
	}
	return decrypted, nil
}

// ReencryptRecord moves a record's sensitive fields from one owner's key to
// another's, rebinding the ciphertext to the new owner. Ownership transfer
// of hosts uses this when a shared copy is materialized.
func (r *RecordCrypto) ReencryptRecord(kind cryptoDomain.EntityKind, oldRecordID, newRecordID string, oldOwner, newOwner uuid.UUID, oldDek, newDek []byte, fields map[string]string) (map[string]string, error) {
	decrypted, err := r.DecryptRecord(kind, oldRecordID, oldOwner, oldDek, fields, false)
	if err != nil {
		return nil, err
	}
	return r.EncryptRecord(kind, newRecordID, newOwner, newDek, decrypted)
}

func cloneFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
