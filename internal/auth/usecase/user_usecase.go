package usecase

import (
	"context"
	"log/slog"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	authService "github.com/sshdeck/sshdeck/internal/auth/service"
	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
	cryptoService "github.com/sshdeck/sshdeck/internal/crypto/service"
	cryptoUsecase "github.com/sshdeck/sshdeck/internal/crypto/usecase"
	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	appValidation "github.com/sshdeck/sshdeck/internal/validation"
)

// UserUseCase manages account lifecycle: registration with key material
// provisioning, TOTP enrollment, admin flags, and deletion.
type UserUseCase struct {
	userRepo    UserRepository
	kekSaltRepo cryptoUsecase.KekSaltRepository
	wrappedRepo cryptoUsecase.WrappedDekRepository
	sessions    *SessionUseCase
	vault       *cryptoUsecase.DekVault
	kekDeriver  cryptoService.KekDeriver
	keyWrapper  cryptoService.KeyWrapper
	fieldCipher cryptoService.FieldCipher
	passwords   authService.PasswordService
	totp        authService.TOTPService
	txManager   database.TxManager
	logger      *slog.Logger
}

func NewUserUseCase(
	userRepo UserRepository,
	kekSaltRepo cryptoUsecase.KekSaltRepository,
	wrappedRepo cryptoUsecase.WrappedDekRepository,
	sessions *SessionUseCase,
	vault *cryptoUsecase.DekVault,
	kekDeriver cryptoService.KekDeriver,
	keyWrapper cryptoService.KeyWrapper,
	fieldCipher cryptoService.FieldCipher,
	passwords authService.PasswordService,
	totp authService.TOTPService,
	txManager database.TxManager,
	logger *slog.Logger,
) *UserUseCase {
	return &UserUseCase{
		userRepo:    userRepo,
		kekSaltRepo: kekSaltRepo,
		wrappedRepo: wrappedRepo,
		sessions:    sessions,
		vault:       vault,
		kekDeriver:  kekDeriver,
		keyWrapper:  keyWrapper,
		fieldCipher: fieldCipher,
		passwords:   passwords,
		totp:        totp,
		txManager:   txManager,
		logger:      logger,
	}
}

// userFieldRef binds a user-row field ciphertext to the owning account.
func userFieldRef(userID uuid.UUID, field string) cryptoService.FieldRef {
	return cryptoService.FieldRef{
		Kind:     cryptoDomain.KindUser,
		RecordID: userID.String(),
		Field:    field,
		UserID:   userID,
	}
}

func (u *UserUseCase) validateCreateInput(input *authDomain.CreateUserInput) error {
	err := validation.ValidateStruct(input,
		validation.Field(&input.Name,
			validation.Required.Error("name is required"),
			appValidation.NotBlank,
			validation.Length(1, 255).Error("name must be between 1 and 255 characters"),
		),
		validation.Field(&input.Password,
			validation.Required.Error("password is required"),
			validation.Length(8, 128).Error("password must be between 8 and 128 characters"),
		),
	)
	return appValidation.WrapValidationError(err)
}

// Register creates an account with its full key material: verifier, KDF
// salt, and a fresh DEK wrapped under the password-derived KEK. Everything
// lands in one transaction so a half-provisioned account cannot exist.
func (u *UserUseCase) Register(ctx context.Context, input *authDomain.CreateUserInput) (*authDomain.User, error) {
	if err := u.validateCreateInput(input); err != nil {
		return nil, err
	}

	verifier, err := u.passwords.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	saltBytes, params, err := u.kekDeriver.NewSalt()
	if err != nil {
		return nil, err
	}

	kek, err := u.kekDeriver.DeriveKEK(input.Password, saltBytes, params)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(kek)

	dek, err := u.keyWrapper.GenerateDEK()
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	now := time.Now().UTC()
	user := &authDomain.User{
		ID:        uuid.Must(uuid.NewV7()),
		Name:      input.Name,
		Verifier:  verifier,
		IsAdmin:   input.IsAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ciphertext, nonce, err := u.keyWrapper.Wrap(dek, kek, user.ID, cryptoDomain.WrapKindKEK)
	if err != nil {
		return nil, err
	}

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
		WrapKind:   cryptoDomain.WrapKindKEK,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = u.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := u.userRepo.Create(txCtx, user); err != nil {
			return err
		}
		if err := u.kekSaltRepo.Create(txCtx, salt); err != nil {
			return err
		}
		return u.wrappedRepo.Create(txCtx, wrapped)
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("registered user", slog.String("user_id", user.ID.String()), slog.String("name", user.Name))
	return user, nil
}

func (u *UserUseCase) Get(ctx context.Context, id uuid.UUID) (*authDomain.User, error) {
	return u.userRepo.Get(ctx, id)
}

func (u *UserUseCase) List(ctx context.Context, limit, offset int) ([]*authDomain.User, error) {
	return u.userRepo.List(ctx, limit, offset)
}

// SetAdmin flips the admin flag, refusing to demote the last administrator.
func (u *UserUseCase) SetAdmin(ctx context.Context, userID uuid.UUID, isAdmin bool) error {
	user, err := u.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsAdmin == isAdmin {
		return nil
	}

	if !isAdmin {
		count, err := u.userRepo.CountAdmins(ctx)
		if err != nil {
			return err
		}
		if count <= 1 {
			return authDomain.ErrLastAdmin
		}
	}

	user.IsAdmin = isAdmin
	user.UpdatedAt = time.Now().UTC()
	return u.userRepo.Update(ctx, user)
}

// Delete removes the account. Foreign key cascades take the key material,
// sessions, hosts, and shares with it; the resident DEK is wiped first.
func (u *UserUseCase) Delete(ctx context.Context, userID uuid.UUID) error {
	user, err := u.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}

	if user.IsAdmin {
		count, err := u.userRepo.CountAdmins(ctx)
		if err != nil {
			return err
		}
		if count <= 1 {
			return authDomain.ErrLastAdmin
		}
	}

	if err := u.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	if err := u.userRepo.Delete(ctx, userID); err != nil {
		return err
	}

	u.logger.Info("deleted user", slog.String("user_id", userID.String()), slog.String("name", user.Name))
	return nil
}

// StartTOTPEnrollment generates and stores a secret without enabling it.
// The account stays on single-factor login until ConfirmTOTPEnrollment
// proves the authenticator works. The secret is encrypted under the user's
// DEK, so enrollment requires an unlocked session.
func (u *UserUseCase) StartTOTPEnrollment(ctx context.Context, userID uuid.UUID) (secret string, url string, err error) {
	user, err := u.userRepo.Get(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if user.TOTPEnabled {
		return "", "", apperrors.Wrap(apperrors.ErrConflict, "totp already enabled")
	}

	dek := u.vault.Get(userID)
	if dek == nil {
		return "", "", apperrors.ErrDataLocked
	}

	secret, url, err = u.totp.GenerateSecret(user.Name)
	if err != nil {
		return "", "", err
	}

	sealed, err := u.fieldCipher.EncryptField(secret, dek, userFieldRef(userID, "totp_secret"))
	if err != nil {
		return "", "", err
	}

	user.TOTPSecret = sealed
	user.UpdatedAt = time.Now().UTC()
	if err := u.userRepo.Update(ctx, user); err != nil {
		return "", "", err
	}
	return secret, url, nil
}

// ConfirmTOTPEnrollment enables the second factor after a valid code and
// returns the single-use backup codes. This is the only time they exist in
// plain form.
func (u *UserUseCase) ConfirmTOTPEnrollment(ctx context.Context, userID uuid.UUID, code string) ([]string, error) {
	user, err := u.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, apperrors.Wrap(apperrors.ErrConflict, "totp already enabled")
	}
	if user.TOTPSecret == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "totp enrollment not started")
	}

	dek := u.vault.Get(userID)
	if dek == nil {
		return nil, apperrors.ErrDataLocked
	}

	secret, err := u.fieldCipher.DecryptField(user.TOTPSecret, dek, userFieldRef(userID, "totp_secret"))
	if err != nil {
		return nil, err
	}
	if !u.totp.ValidateCode(code, secret) {
		return nil, authDomain.ErrInvalidTOTPCode
	}

	plain, stored, err := u.totp.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}

	sealed, err := u.fieldCipher.EncryptField(stored, dek, userFieldRef(userID, "totp_backup_codes"))
	if err != nil {
		return nil, err
	}

	user.TOTPEnabled = true
	user.TOTPBackupCodes = sealed
	user.UpdatedAt = time.Now().UTC()
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return plain, nil
}

// DisableTOTP turns the second factor off after a valid code.
func (u *UserUseCase) DisableTOTP(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := u.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "totp is not enabled")
	}

	dek := u.vault.Get(userID)
	if dek == nil {
		return apperrors.ErrDataLocked
	}

	secret, err := u.fieldCipher.DecryptField(user.TOTPSecret, dek, userFieldRef(userID, "totp_secret"))
	if err != nil {
		return err
	}
	if !u.totp.ValidateCode(code, secret) {
		return authDomain.ErrInvalidTOTPCode
	}

	user.TOTPEnabled = false
	user.TOTPSecret = ""
	user.TOTPBackupCodes = ""
	user.UpdatedAt = time.Now().UTC()
	return u.userRepo.Update(ctx, user)
}
