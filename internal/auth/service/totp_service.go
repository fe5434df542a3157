package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/pquerna/otp/totp"

	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

const (
	totpIssuer      = "sshdeck"
	backupCodeCount = 10
	backupCodeBytes = 5
)

// totpService implements TOTPService on top of pquerna/otp. Backup codes
// are stored as comma-joined SHA-256 digests; each code works exactly once.
type totpService struct{}

func NewTOTPService() TOTPService {
	return &totpService{}
}

func (s *totpService) GenerateSecret(accountName string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate totp secret")
	}
	return key.Secret(), key.URL(), nil
}

func (s *totpService) ValidateCode(code string, secret string) bool {
	return totp.Validate(code, secret)
}

func (s *totpService) GenerateBackupCodes() ([]string, string, error) {
	plain := make([]string, 0, backupCodeCount)
	hashed := make([]string, 0, backupCodeCount)

	for range backupCodeCount {
		raw := make([]byte, backupCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, "", apperrors.Wrap(err, "failed to generate backup code")
		}

		code := hex.EncodeToString(raw)
		plain = append(plain, code)
		hashed = append(hashed, hashBackupCode(code))
	}

	return plain, strings.Join(hashed, ","), nil
}

func (s *totpService) ConsumeBackupCode(code string, stored string) (string, bool) {
	if stored == "" {
		return stored, false
	}

	target := hashBackupCode(strings.TrimSpace(code))
	codes := strings.Split(stored, ",")

	for i, candidate := range codes {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(target)) == 1 {
			remaining := append(append([]string{}, codes[:i]...), codes[i+1:]...)
			return strings.Join(remaining, ","), true
		}
	}
	return stored, false
}

func hashBackupCode(code string) string {
	digest := sha256.Sum256([]byte(code))
	return hex.EncodeToString(digest[:])
}
