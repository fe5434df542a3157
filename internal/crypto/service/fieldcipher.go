package service

import (
	"encoding/base64"
	"fmt"
	"strings"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
)

// fieldVersionPrefix tags the current field ciphertext wire format. The
// prefix reserves an upgrade path: a future format bumps the version and the
// decrypt path dispatches on it.
const fieldVersionPrefix = "v1:"

// FieldCipherService encrypts individual record fields under a user's DEK.
//
// Wire form: "v1:" + base64url(nonce || ciphertext || tag). The associated
// data is "entityKind|recordID|fieldName|userID", which stops a ciphertext
// from being shuffled to another field, record, or user and still decrypting.
type FieldCipherService struct{}

// NewFieldCipher creates a new FieldCipherService.
func NewFieldCipher() *FieldCipherService {
	return &FieldCipherService{}
}

// fieldAAD builds the associated data of a field ciphertext.
func fieldAAD(ref FieldRef) []byte {
	return fmt.Appendf(nil, "%s|%s|%s|%s", ref.Kind, ref.RecordID, ref.Field, ref.UserID)
}

// EncryptField produces the v1 wire form of a field value. Encrypting an
// already-encrypted value is a no-op, and empty values stay empty.
func (f *FieldCipherService) EncryptField(
	plaintext string,
	dek []byte,
	ref FieldRef,
) (string, error) {
	if plaintext == "" || strings.HasPrefix(plaintext, fieldVersionPrefix) {
		return plaintext, nil
	}

	aead, err := NewAESGCM(dek)
	if err != nil {
		return "", err
	}

	ciphertext, nonce, err := aead.Encrypt([]byte(plaintext), fieldAAD(ref))
	if err != nil {
		return "", err
	}

	packed := make([]byte, 0, len(nonce)+len(ciphertext))
	packed = append(packed, nonce...)
	packed = append(packed, ciphertext...)

	return fieldVersionPrefix + base64.RawURLEncoding.EncodeToString(packed), nil
}

// DecryptField inverts EncryptField. Values without the version prefix are
// returned unchanged so legacy plaintext records keep reading; they are
// re-encrypted the next time the record is written.
func (f *FieldCipherService) DecryptField(
	value string,
	dek []byte,
	ref FieldRef,
) (string, error) {
	if !strings.HasPrefix(value, fieldVersionPrefix) {
		return value, nil
	}

	packed, err := base64.RawURLEncoding.DecodeString(value[len(fieldVersionPrefix):])
	if err != nil {
		return "", cryptoDomain.ErrDecryptionFailed
	}

	aead, err := NewAESGCM(dek)
	if err != nil {
		return "", err
	}

	nonceSize := 12
	if len(packed) < nonceSize+16 {
		return "", cryptoDomain.ErrDecryptionFailed
	}

	plaintext, err := aead.Decrypt(packed[nonceSize:], packed[:nonceSize], fieldAAD(ref))
	if err != nil {
		return "", cryptoDomain.ErrDecryptionFailed
	}

	return string(plaintext), nil
}
