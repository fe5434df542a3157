package service

import (
	"github.com/allisson/go-pwdhash"

	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

// passwordService implements PasswordService using argon2id.
type passwordService struct {
	hasher *pwdhash.PasswordHasher

	// dummyVerifier is a hash of a throwaway password, verified against
	// attempts for unknown user names so both paths cost the same.
	dummyVerifier string
}

// NewPasswordService creates a PasswordService with interactive argon2id
// parameters. The verifier only gates the login path; the heavy KEK
// derivation has its own parameters.
func NewPasswordService() (PasswordService, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyInteractive))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create password hasher")
	}

	dummyVerifier, err := hasher.Hash([]byte("sshdeck-dummy-password"))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash dummy verifier")
	}

	return &passwordService{
		hasher:        hasher,
		dummyVerifier: dummyVerifier,
	}, nil
}

func (p *passwordService) Hash(password string) (string, error) {
	verifier, err := p.hasher.Hash([]byte(password))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash password")
	}
	return verifier, nil
}

func (p *passwordService) Verify(password string, verifier string) bool {
	ok, err := p.hasher.Verify([]byte(password), verifier)
	if err != nil {
		return false
	}
	return ok
}

func (p *passwordService) DummyVerify(password string) {
	_, _ = p.hasher.Verify([]byte(password), p.dummyVerifier)
}
