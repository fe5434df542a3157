package usecase

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	authRepository "github.com/sshdeck/sshdeck/internal/auth/repository"
	authService "github.com/sshdeck/sshdeck/internal/auth/service"
	"github.com/sshdeck/sshdeck/internal/config"
	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
	cryptoRepository "github.com/sshdeck/sshdeck/internal/crypto/repository"
	cryptoService "github.com/sshdeck/sshdeck/internal/crypto/service"
	cryptoUsecase "github.com/sshdeck/sshdeck/internal/crypto/usecase"
	"github.com/sshdeck/sshdeck/internal/database"
	"github.com/sshdeck/sshdeck/internal/testutil"
)

// testEnv wires the full auth stack against an in-memory database with
// cheap KDF parameters.
type testEnv struct {
	db       *sql.DB
	cfg      *config.Config
	vault    *cryptoUsecase.DekVault
	sessions *SessionUseCase
	login    *LoginUseCase
	password *PasswordUseCase
	users    *UserUseCase
	identity *fakeIdentityClient
	flusher  *fakeFlusher
	keys     cryptoService.SystemKeys
}

// fakeIdentityClient returns a scripted identity for any code.
type fakeIdentityClient struct {
	identity *ExternalIdentity
	err      error
}

func (f *fakeIdentityClient) Exchange(_ context.Context, _ string) (*ExternalIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

// fakeFlusher records flush calls.
type fakeFlusher struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (f *fakeFlusher) FlushPendingShares(_ context.Context, userID uuid.UUID, dek []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, userID)
	return nil
}

func (f *fakeFlusher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeWiper records wipe calls.
type fakeWiper struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (f *fakeWiper) WipeUserSecrets(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupDB(t)
	logger := testutil.Logger()

	cfg := &config.Config{
		SessionTTLBrowser:    time.Hour,
		SessionTTLDevice:     2 * time.Hour,
		SessionCap:           3,
		DekIdleEvict:         30 * time.Minute,
		RateLimitWindow:      10 * time.Minute,
		RateLimitMaxFailures: 3,
		RateLimitLock:        15 * time.Minute,
	}

	keys, err := cryptoService.LoadSystemKeys(context.Background(), filepath.Join(t.TempDir(), "system.key"), nil)
	require.NoError(t, err)
	t.Cleanup(keys.Close)

	userRepo := authRepository.NewSQLiteUserRepository(db)
	sessionRepo := authRepository.NewSQLiteSessionRepository(db)
	kekSaltRepo := cryptoRepository.NewSQLiteKekSaltRepository(db)
	wrappedRepo := cryptoRepository.NewSQLiteWrappedDekRepository(db)
	txManager := database.NewTxManager(db)

	kekDeriver := cryptoService.NewKekDeriver(cryptoDomain.KDFParams{
		MemoryKiB:   8 * 1024,
		Iterations:  1,
		Parallelism: 1,
	})
	keyWrapper := cryptoService.NewKeyWrapper()

	passwords, err := authService.NewPasswordService()
	require.NoError(t, err)
	tokens := authService.NewTokenService(keys.TokenSigningKey())
	totp := authService.NewTOTPService()
	limiter := authService.NewFailureLimiter(cfg.RateLimitWindow, cfg.RateLimitMaxFailures, cfg.RateLimitLock)

	vault := cryptoUsecase.NewDekVault(cfg.DekIdleEvict, nil, logger)
	sessions := NewSessionUseCase(cfg, sessionRepo, tokens, vault, logger)
	vault.SetOnEvict(sessions.DropUserResidency)
	t.Cleanup(vault.Close)

	identity := &fakeIdentityClient{}
	flusher := &fakeFlusher{}

	fieldCipher := cryptoService.NewFieldCipher()

	login := NewLoginUseCase(
		userRepo, kekSaltRepo, wrappedRepo, sessions, vault,
		kekDeriver, keyWrapper, keys, passwords, tokens, totp,
		fieldCipher, limiter, identity, txManager, logger,
	)
	login.SetPendingShareFlusher(flusher)

	password := NewPasswordUseCase(
		userRepo, kekSaltRepo, wrappedRepo, sessions, vault,
		kekDeriver, keyWrapper, keys, passwords, txManager, logger,
	)

	users := NewUserUseCase(
		userRepo, kekSaltRepo, wrappedRepo, sessions, vault,
		kekDeriver, keyWrapper, fieldCipher, passwords, totp, txManager, logger,
	)

	return &testEnv{
		db:       db,
		cfg:      cfg,
		vault:    vault,
		sessions: sessions,
		login:    login,
		password: password,
		users:    users,
		identity: identity,
		flusher:  flusher,
		keys:     keys,
	}
}

func (e *testEnv) register(t *testing.T, name, password string) *authDomain.User {
	t.Helper()
	user, err := e.users.Register(context.Background(), &authDomain.CreateUserInput{
		Name:     name,
		Password: password,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) loginBrowser(t *testing.T, name, password string) *authDomain.LoginOutput {
	t.Helper()
	out, err := e.login.PasswordLogin(context.Background(), &authDomain.LoginInput{
		Name:        name,
		Password:    password,
		DeviceClass: authDomain.DeviceBrowser,
		DeviceDesc:  "test",
		RemoteAddr:  "127.0.0.1",
	})
	require.NoError(t, err)
	return out
}
