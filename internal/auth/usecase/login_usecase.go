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
	"github.com/sshdeck/sshdeck/internal/metrics"
)

// LoginUseCase drives the authentication state machine. A login attempt
// moves through rate limiting, verifier check, KEK derivation, DEK unwrap,
// session creation, and optionally second-factor verification. Key
// derivation failures and unknown accounts produce the same error and burn
// comparable CPU so neither leaks account existence.
type LoginUseCase struct {
	userRepo    UserRepository
	kekSaltRepo cryptoUsecase.KekSaltRepository
	wrappedRepo cryptoUsecase.WrappedDekRepository
	sessions    *SessionUseCase
	vault       *cryptoUsecase.DekVault
	kekDeriver  cryptoService.KekDeriver
	keyWrapper  cryptoService.KeyWrapper
	systemKeys  cryptoService.SystemKeys
	passwords   authService.PasswordService
	tokens      authService.TokenService
	totp        authService.TOTPService
	fieldCipher cryptoService.FieldCipher
	limiter     authService.FailureLimiter
	identity    IdentityClient
	flusher     PendingShareFlusher
	metrics     metrics.BusinessMetrics
	txManager   database.TxManager
	logger      *slog.Logger
}

func NewLoginUseCase(
	userRepo UserRepository,
	kekSaltRepo cryptoUsecase.KekSaltRepository,
	wrappedRepo cryptoUsecase.WrappedDekRepository,
	sessions *SessionUseCase,
	vault *cryptoUsecase.DekVault,
	kekDeriver cryptoService.KekDeriver,
	keyWrapper cryptoService.KeyWrapper,
	systemKeys cryptoService.SystemKeys,
	passwords authService.PasswordService,
	tokens authService.TokenService,
	totp authService.TOTPService,
	fieldCipher cryptoService.FieldCipher,
	limiter authService.FailureLimiter,
	identity IdentityClient,
	txManager database.TxManager,
	logger *slog.Logger,
) *LoginUseCase {
	return &LoginUseCase{
		userRepo:    userRepo,
		kekSaltRepo: kekSaltRepo,
		wrappedRepo: wrappedRepo,
		sessions:    sessions,
		vault:       vault,
		kekDeriver:  kekDeriver,
		keyWrapper:  keyWrapper,
		systemKeys:  systemKeys,
		passwords:   passwords,
		tokens:      tokens,
		totp:        totp,
		fieldCipher: fieldCipher,
		limiter:     limiter,
		identity:    identity,
		metrics:     metrics.NewNoOpBusinessMetrics(),
		txManager:   txManager,
		logger:      logger,
	}
}

// SetBusinessMetrics swaps the default no-op recorder for a real one.
func (l *LoginUseCase) SetBusinessMetrics(m metrics.BusinessMetrics) {
	l.metrics = m
}

// SetPendingShareFlusher wires the flusher after construction; the hosts
// context depends on auth, so the dependency cannot be passed at build time.
func (l *LoginUseCase) SetPendingShareFlusher(flusher PendingShareFlusher) {
	l.flusher = flusher
}

// PasswordLogin runs the password step of the login state machine.
//
// On success the user's DEK is resident and the session exists; whether the
// returned state is unlocked or awaiting the second factor depends on the
// account's TOTP setting. The data gate stays closed until the state
// reaches unlocked.
func (l *LoginUseCase) PasswordLogin(ctx context.Context, input *authDomain.LoginInput) (*authDomain.LoginOutput, error) {
	loginKey := loginLimitKey(input.RemoteAddr, input.Name)
	if err := l.limiter.Check(loginKey); err != nil {
		return nil, err
	}

	user, err := l.userRepo.GetByName(ctx, input.Name)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			// Burn the same verifier cost as the real path.
			l.passwords.DummyVerify(input.Password)
			l.recordFailure(loginKey)
			return nil, authDomain.ErrInvalidCredentials
		}
		return nil, err
	}

	if user.Verifier == "" {
		// Provider-only accounts have no password. A recovery reset gives
		// them one, at which point this path opens up.
		l.passwords.DummyVerify(input.Password)
		l.recordFailure(loginKey)
		return nil, authDomain.ErrInvalidCredentials
	}

	if !l.passwords.Verify(input.Password, user.Verifier) {
		l.recordFailure(loginKey)
		return nil, authDomain.ErrInvalidCredentials
	}

	dek, err := l.unwrapWithPassword(ctx, user, input.Password)
	if err != nil {
		// A verifier pass with a failed unwrap means corrupted key material,
		// but the client only learns that the credentials did not work.
		l.logger.Error("dek unwrap failed after verifier pass",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
		l.recordFailure(loginKey)
		return nil, authDomain.ErrInvalidCredentials
	}
	defer cryptoDomain.Zero(dek)

	session, err := l.sessions.Create(ctx, user.ID, input.DeviceClass, input.DeviceDesc)
	if err != nil {
		return nil, err
	}

	l.vault.Install(user.ID, dek)
	l.sessions.TrackResident(session.ID, user.ID)

	state := authDomain.LoginStateUnlocked
	if user.TOTPEnabled {
		state = authDomain.LoginStateAwait2FA
	} else {
		l.finishUnlock(ctx, session.ID, user.ID)
	}

	l.limiter.RecordSuccess(loginKey)
	l.metrics.RecordOperation(ctx, "auth", "login", "success")

	token, err := l.tokens.Generate(session)
	if err != nil {
		return nil, err
	}

	return &authDomain.LoginOutput{
		Token:     token,
		SessionID: session.ID,
		UserID:    user.ID,
		State:     state,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// SubmitTOTP runs the second-factor step for a session parked in the
// awaiting state. Both TOTP codes and single-use backup codes are accepted.
func (l *LoginUseCase) SubmitTOTP(ctx context.Context, sessionID uuid.UUID, code string) error {
	session, err := l.sessions.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.Alive(time.Now().UTC()) {
		return authDomain.ErrSessionExpired
	}
	if !l.sessions.AwaitingSecondFactor(sessionID) {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "session is not awaiting a second factor")
	}

	user, err := l.userRepo.Get(ctx, session.UserID)
	if err != nil {
		return err
	}

	limitKey := totpLimitKey(user.ID)
	if err := l.limiter.Check(limitKey); err != nil {
		return err
	}

	// The password step already made the DEK resident; the second factor
	// needs it because the TOTP material is encrypted under it.
	dek := l.vault.Get(user.ID)
	if dek == nil {
		return authDomain.ErrSessionExpired
	}

	secret, err := l.fieldCipher.DecryptField(user.TOTPSecret, dek, userFieldRef(user.ID, "totp_secret"))
	if err != nil {
		return err
	}

	if !l.totp.ValidateCode(code, secret) {
		stored, err := l.fieldCipher.DecryptField(user.TOTPBackupCodes, dek, userFieldRef(user.ID, "totp_backup_codes"))
		if err != nil {
			return err
		}

		remaining, ok := l.totp.ConsumeBackupCode(code, stored)
		if !ok {
			l.limiter.RecordFailure(limitKey, time.Now())
			return authDomain.ErrInvalidTOTPCode
		}

		sealed, err := l.fieldCipher.EncryptField(remaining, dek, userFieldRef(user.ID, "totp_backup_codes"))
		if err != nil {
			return err
		}
		user.TOTPBackupCodes = sealed
		user.UpdatedAt = time.Now().UTC()
		if err := l.userRepo.Update(ctx, user); err != nil {
			return err
		}
	}

	l.limiter.RecordSuccess(limitKey)
	l.finishUnlock(ctx, sessionID, user.ID)
	return nil
}

// Unlock re-derives the KEK for a live session whose DEK was evicted. The
// session keeps its token; only the key material is restored.
func (l *LoginUseCase) Unlock(ctx context.Context, sessionID uuid.UUID, password string) error {
	session, err := l.sessions.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.Alive(time.Now().UTC()) {
		return authDomain.ErrSessionExpired
	}

	user, err := l.userRepo.Get(ctx, session.UserID)
	if err != nil {
		return err
	}

	limitKey := unlockLimitKey(user.ID)
	if err := l.limiter.Check(limitKey); err != nil {
		return err
	}

	if !l.passwords.Verify(password, user.Verifier) {
		l.limiter.RecordFailure(limitKey, time.Now())
		return authDomain.ErrInvalidCredentials
	}

	dek, err := l.unwrapWithPassword(ctx, user, password)
	if err != nil {
		l.limiter.RecordFailure(limitKey, time.Now())
		return authDomain.ErrInvalidCredentials
	}
	defer cryptoDomain.Zero(dek)

	l.limiter.RecordSuccess(limitKey)

	l.vault.Install(user.ID, dek)
	l.sessions.TrackResident(sessionID, user.ID)
	l.finishUnlock(ctx, sessionID, user.ID)
	l.metrics.RecordOperation(ctx, "auth", "unlock", "success")
	return nil
}

// ExternalLogin exchanges a provider authorization code for a session. A
// first-time subject gets an account and a DEK wrapped under the subject's
// system-derived key, so external users never hold a password.
func (l *LoginUseCase) ExternalLogin(ctx context.Context, code string, deviceClass authDomain.DeviceClass, deviceDesc string) (*authDomain.LoginOutput, error) {
	identity, err := l.identity.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "identity exchange failed")
	}

	user, err := l.userRepo.GetByExternalSubject(ctx, identity.Subject)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		user, err = l.createExternalUser(ctx, identity)
		if err != nil {
			return nil, err
		}
	}

	wrapped, err := l.wrappedRepo.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if wrapped.WrapKind != cryptoDomain.WrapKindExternal {
		// Linked accounts keep their wrapping under the subject's key; a
		// password-wrapped row here means the link is stale and the
		// provider cannot open the DEK.
		return nil, authDomain.ErrInvalidCredentials
	}

	wrapKey := l.systemKeys.ExternalIdentityWrapKey(identity.Subject)
	dek, err := l.keyWrapper.Unwrap(wrapped, wrapKey)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to unwrap external dek")
	}
	defer cryptoDomain.Zero(dek)

	session, err := l.sessions.Create(ctx, user.ID, deviceClass, deviceDesc)
	if err != nil {
		return nil, err
	}

	l.vault.Install(user.ID, dek)
	l.sessions.TrackResident(session.ID, user.ID)
	l.finishUnlock(ctx, session.ID, user.ID)

	token, err := l.tokens.Generate(session)
	if err != nil {
		return nil, err
	}

	return &authDomain.LoginOutput{
		Token:     token,
		SessionID: session.ID,
		UserID:    user.ID,
		State:     authDomain.LoginStateUnlocked,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Logout revokes the session and drops its hold on the resident DEK.
func (l *LoginUseCase) Logout(ctx context.Context, sessionID uuid.UUID) error {
	return l.sessions.Revoke(ctx, sessionID)
}

// finishUnlock opens the data gate and materializes any shares parked while
// the user was offline.
func (l *LoginUseCase) finishUnlock(ctx context.Context, sessionID, userID uuid.UUID) {
	l.sessions.MarkUnlocked(sessionID)

	if l.flusher == nil {
		return
	}
	dek := l.vault.Get(userID)
	if dek == nil {
		return
	}
	if err := l.flusher.FlushPendingShares(ctx, userID, dek); err != nil {
		// Shares stay parked; the next unlock retries.
		l.logger.Error("failed to flush pending shares",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// unwrapWithPassword opens the user's stored DEK after the verifier passed.
// Password accounts derive the KEK and open the wrap with it. Accounts that
// also carry an external link keep their single wrapping under the
// subject's system-derived key; for them the verifier alone proves the
// password and both login paths converge on the same DEK record.
func (l *LoginUseCase) unwrapWithPassword(ctx context.Context, user *authDomain.User, password string) ([]byte, error) {
	wrapped, err := l.wrappedRepo.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if wrapped.WrapKind == cryptoDomain.WrapKindExternal {
		wrapKey := l.systemKeys.ExternalIdentityWrapKey(user.ExternalSubject)
		return l.keyWrapper.Unwrap(wrapped, wrapKey)
	}

	salt, err := l.kekSaltRepo.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	kek, err := l.kekDeriver.DeriveKEK(password, salt.Salt, salt.Params)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(kek)

	return l.keyWrapper.Unwrap(wrapped, kek)
}

// createExternalUser provisions an account for a first-time external
// subject: the user row and a DEK wrapped under the subject's key, in one
// transaction.
func (l *LoginUseCase) createExternalUser(ctx context.Context, identity *ExternalIdentity) (*authDomain.User, error) {
	now := time.Now().UTC()
	user := &authDomain.User{
		ID:              uuid.Must(uuid.NewV7()),
		Name:            identity.Name,
		IsExternal:      true,
		ExternalSubject: identity.Subject,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	dek, err := l.keyWrapper.GenerateDEK()
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	wrapKey := l.systemKeys.ExternalIdentityWrapKey(identity.Subject)
	ciphertext, nonce, err := l.keyWrapper.Wrap(dek, wrapKey, user.ID, cryptoDomain.WrapKindExternal)
	if err != nil {
		return nil, err
	}

	wrapped := &cryptoDomain.WrappedDek{
		UserID:     user.ID,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		WrapKind:   cryptoDomain.WrapKindExternal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = l.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := l.userRepo.Create(txCtx, user); err != nil {
			return err
		}
		return l.wrappedRepo.Create(txCtx, wrapped)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("provisioned external user",
		slog.String("user_id", user.ID.String()),
		slog.String("name", user.Name),
	)
	return user, nil
}

func (l *LoginUseCase) recordFailure(key string) {
	l.limiter.RecordFailure(key, time.Now())
	l.metrics.RecordOperation(context.Background(), "auth", "login", "failure")
}

// Limiter keys, one namespace per flow. Login failures count against the
// client/account pair, so a remote attacker hammering one name cannot lock
// the account for everyone else; the second-factor and unlock counters are
// scoped to the account, since those callers already hold a session.
func loginLimitKey(remoteAddr, name string) string {
	return "login:" + remoteAddr + "|" + name
}

func totpLimitKey(userID uuid.UUID) string {
	return "totp:" + userID.String()
}

func unlockLimitKey(userID uuid.UUID) string {
	return "unlock:" + userID.String()
}
