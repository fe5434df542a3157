package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	authService "github.com/sshdeck/sshdeck/internal/auth/service"
	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
	cryptoService "github.com/sshdeck/sshdeck/internal/crypto/service"
	cryptoUsecase "github.com/sshdeck/sshdeck/internal/crypto/usecase"
	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

// PasswordUseCase handles password change and the two reset paths. A change
// rewraps the existing DEK so stored ciphertexts survive; a destructive
// reset mints a new DEK and destroys everything the old one protected.
type PasswordUseCase struct {
	userRepo    UserRepository
	kekSaltRepo cryptoUsecase.KekSaltRepository
	wrappedRepo cryptoUsecase.WrappedDekRepository
	sessions    *SessionUseCase
	vault       *cryptoUsecase.DekVault
	kekDeriver  cryptoService.KekDeriver
	keyWrapper  cryptoService.KeyWrapper
	systemKeys  cryptoService.SystemKeys
	passwords   authService.PasswordService
	wiper       UserDataWiper
	txManager   database.TxManager
	logger      *slog.Logger
}

func NewPasswordUseCase(
	userRepo UserRepository,
	kekSaltRepo cryptoUsecase.KekSaltRepository,
	wrappedRepo cryptoUsecase.WrappedDekRepository,
	sessions *SessionUseCase,
	vault *cryptoUsecase.DekVault,
	kekDeriver cryptoService.KekDeriver,
	keyWrapper cryptoService.KeyWrapper,
	systemKeys cryptoService.SystemKeys,
	passwords authService.PasswordService,
	txManager database.TxManager,
	logger *slog.Logger,
) *PasswordUseCase {
	return &PasswordUseCase{
		userRepo:    userRepo,
		kekSaltRepo: kekSaltRepo,
		wrappedRepo: wrappedRepo,
		sessions:    sessions,
		vault:       vault,
		kekDeriver:  kekDeriver,
		keyWrapper:  keyWrapper,
		systemKeys:  systemKeys,
		passwords:   passwords,
		txManager:   txManager,
		logger:      logger,
	}
}

// SetUserDataWiper wires the destructive reset's data cascade after
// construction; the hosts context depends on auth.
func (p *PasswordUseCase) SetUserDataWiper(wiper UserDataWiper) {
	p.wiper = wiper
}

// Change rewraps the user's DEK under a KEK derived from the new password.
// The DEK itself does not change, so no stored ciphertext is touched, but
// every session is revoked and clients authenticate again.
func (p *PasswordUseCase) Change(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	user, err := p.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.Verifier == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "account has no password")
	}

	if !p.passwords.Verify(oldPassword, user.Verifier) {
		return authDomain.ErrInvalidCredentials
	}

	// The user lock serializes the rewrap against the user's in-flight
	// crypto operations and concurrent changes from other sessions.
	// Revocation happens after the lock is released: it drops vault
	// references, which take the same per-user lock.
	err = p.vault.WithUserLock(userID, func() error {
		wrapped, err := p.wrappedRepo.Get(ctx, userID)
		if err != nil {
			return err
		}

		// Dual-auth accounts keep their DEK under the external subject's
		// key; only the verifier changes.
		if wrapped.WrapKind == cryptoDomain.WrapKindExternal {
			return p.setVerifier(ctx, user, newPassword)
		}

		salt, err := p.kekSaltRepo.Get(ctx, userID)
		if err != nil {
			return err
		}

		oldKek, err := p.kekDeriver.DeriveKEK(oldPassword, salt.Salt, salt.Params)
		if err != nil {
			return err
		}
		defer cryptoDomain.Zero(oldKek)

		dek, err := p.keyWrapper.Unwrap(wrapped, oldKek)
		if err != nil {
			return apperrors.Wrap(err, "failed to unwrap dek during password change")
		}
		defer cryptoDomain.Zero(dek)

		return p.rewrap(ctx, user, dek, newPassword, cryptoDomain.WrapKindKEK)
	})
	if err != nil {
		return err
	}

	// Every live session authenticated against the old password, the one
	// making this request included. Clients log in again.
	return p.sessions.RevokeAllForUser(ctx, userID)
}

// DestructiveReset sets a new password when the old one is gone and no
// recovery wrapping exists. A fresh DEK replaces the old one, which makes
// every existing ciphertext permanently unreadable; those records are
// deleted in the same transaction rather than left as garbage.
func (p *PasswordUseCase) DestructiveReset(ctx context.Context, userID uuid.UUID, newPassword string) error {
	user, err := p.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsExternal {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "externally linked accounts use the recovery reset")
	}

	err = p.vault.WithUserLock(userID, func() error {
		dek, err := p.keyWrapper.GenerateDEK()
		if err != nil {
			return err
		}
		defer cryptoDomain.Zero(dek)

		return p.txManager.WithTx(ctx, func(txCtx context.Context) error {
			if p.wiper != nil {
				if err := p.wiper.WipeUserSecrets(txCtx, userID); err != nil {
					return err
				}
			}

			// The old DEK is gone, so the second factor's encrypted
			// material is unreadable; the account falls back to
			// single-factor login.
			user.TOTPEnabled = false
			user.TOTPSecret = ""
			user.TOTPBackupCodes = ""

			return p.rewrapTx(txCtx, user, dek, newPassword, cryptoDomain.WrapKindKEK)
		})
	})
	if err != nil {
		return err
	}

	// Every live session authenticated against the old password.
	if err := p.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	p.logger.Warn("password_reset_data_deleted",
		slog.String("operation", "destructive_password_reset"),
		slog.String("user_id", userID.String()),
		slog.String("reason", "dek replaced, encrypted rows unrecoverable"),
	)
	return nil
}

// RecoveryReset sets a new password without losing data, for accounts whose
// DEK is wrapped under the subject's system-derived key. The wrapping stays
// external, so provider login keeps working and the account ends up
// dual-auth: verifier and identity proof open the same DEK record.
func (p *PasswordUseCase) RecoveryReset(ctx context.Context, userID uuid.UUID, newPassword string) error {
	user, err := p.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}

	wrapped, err := p.wrappedRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if wrapped.WrapKind != cryptoDomain.WrapKindExternal {
		return authDomain.ErrNoRecoveryPath
	}

	err = p.vault.WithUserLock(userID, func() error {
		// Prove the wrapping opens before committing to the new verifier.
		wrapKey := p.systemKeys.ExternalIdentityWrapKey(user.ExternalSubject)
		dek, err := p.keyWrapper.Unwrap(wrapped, wrapKey)
		if err != nil {
			return apperrors.Wrap(err, "failed to unwrap dek for recovery reset")
		}
		cryptoDomain.Zero(dek)

		return p.setVerifier(ctx, user, newPassword)
	})
	if err != nil {
		return err
	}
	return p.sessions.RevokeAllForUser(ctx, userID)
}

// SelfReset sets a new password for the caller of an unlocked session
// without the old one: the resident DEK already proves data access, so the
// key material survives. Locked sessions must use Change or a reset.
func (p *PasswordUseCase) SelfReset(ctx context.Context, userID uuid.UUID, newPassword string) error {
	user, err := p.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}

	// Fetch the resident DEK before taking the user lock; the vault's
	// accessors take the same lock internally.
	dek := p.vault.Get(userID)
	if dek == nil {
		return apperrors.ErrDataLocked
	}
	defer cryptoDomain.Zero(dek)

	err = p.vault.WithUserLock(userID, func() error {
		wrapped, err := p.wrappedRepo.Get(ctx, userID)
		if err != nil {
			return err
		}

		// Externally wrapped accounts only change the verifier; the DEK
		// stays under the subject's key.
		if wrapped.WrapKind == cryptoDomain.WrapKindExternal {
			return p.setVerifier(ctx, user, newPassword)
		}

		return p.rewrap(ctx, user, dek, newPassword, cryptoDomain.WrapKindKEK)
	})
	if err != nil {
		return err
	}
	return p.sessions.RevokeAllForUser(ctx, userID)
}

// setVerifier updates the stored password verifier without touching key
// material.
func (p *PasswordUseCase) setVerifier(ctx context.Context, user *authDomain.User, newPassword string) error {
	verifier, err := p.passwords.Hash(newPassword)
	if err != nil {
		return err
	}

	user.Verifier = verifier
	user.UpdatedAt = time.Now().UTC()
	return p.userRepo.Update(ctx, user)
}

// rewrap wraps rewrapTx in its own transaction.
func (p *PasswordUseCase) rewrap(ctx context.Context, user *authDomain.User, dek []byte, newPassword string, kind cryptoDomain.WrapKind) error {
	return p.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return p.rewrapTx(txCtx, user, dek, newPassword, kind)
	})
}

// rewrapTx persists a fresh salt, the DEK wrapped under the new KEK, and
// the new verifier. Caller supplies the transaction context.
func (p *PasswordUseCase) rewrapTx(ctx context.Context, user *authDomain.User, dek []byte, newPassword string, kind cryptoDomain.WrapKind) error {
	saltBytes, params, err := p.kekDeriver.NewSalt()
	if err != nil {
		return err
	}

	newKek, err := p.kekDeriver.DeriveKEK(newPassword, saltBytes, params)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(newKek)

	ciphertext, nonce, err := p.keyWrapper.Wrap(dek, newKek, user.ID, kind)
	if err != nil {
		return err
	}

	verifier, err := p.passwords.Hash(newPassword)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	salt := &cryptoDomain.KekSalt{
		UserID:    user.ID,
		Salt:      saltBytes,
		Params:    params,
		CreatedAt: now,
	}
	wrapped := &cryptoDomain.WrappedDek{
		UserID:     user.ID,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		WrapKind:   kind,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := p.upsertSalt(ctx, salt); err != nil {
		return err
	}
	if err := p.upsertWrapped(ctx, wrapped); err != nil {
		return err
	}

	user.Verifier = verifier
	user.UpdatedAt = now
	return p.userRepo.Update(ctx, user)
}

func (p *PasswordUseCase) upsertSalt(ctx context.Context, salt *cryptoDomain.KekSalt) error {
	err := p.kekSaltRepo.Replace(ctx, salt)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return p.kekSaltRepo.Create(ctx, salt)
	}
	return err
}

func (p *PasswordUseCase) upsertWrapped(ctx context.Context, wrapped *cryptoDomain.WrappedDek) error {
	err := p.wrappedRepo.Replace(ctx, wrapped)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return p.wrappedRepo.Create(ctx, wrapped)
	}
	return err
}
