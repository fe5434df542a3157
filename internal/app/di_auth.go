package app

import (
	"context"
	"fmt"
	"sync"

	authRepository "github.com/sshdeck/sshdeck/internal/auth/repository"
	authService "github.com/sshdeck/sshdeck/internal/auth/service"
	authUseCase "github.com/sshdeck/sshdeck/internal/auth/usecase"
	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
	cryptoRepository "github.com/sshdeck/sshdeck/internal/crypto/repository"
	cryptoService "github.com/sshdeck/sshdeck/internal/crypto/service"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	"github.com/sshdeck/sshdeck/internal/identity"
	"github.com/sshdeck/sshdeck/internal/metrics"
)

// authComponents holds the lazily initialized authentication context.
type authComponents struct {
	sessionsInit sync.Once
	sessions     *authUseCase.SessionUseCase

	loginInit sync.Once
	login     *authUseCase.LoginUseCase

	passwordInit sync.Once
	password     *authUseCase.PasswordUseCase

	usersInit sync.Once
	users     *authUseCase.UserUseCase

	identityInit sync.Once
	identity     authUseCase.IdentityClient
}

// kekDeriver builds the argon2id deriver from the configured parameters.
func (c *Container) kekDeriver() cryptoService.KekDeriver {
	return cryptoService.NewKekDeriver(cryptoDomain.KDFParams{
		MemoryKiB:   c.config.KDFMemoryKiB,
		Iterations:  c.config.KDFIterations,
		Parallelism: c.config.KDFParallelism,
	})
}

// SessionUseCase returns the session store. First access also wires the
// vault's eviction callback so an evicted key drops session residency.
func (c *Container) SessionUseCase() (*authUseCase.SessionUseCase, error) {
	c.auth.sessionsInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["sessionUseCase"] = fmt.Errorf("failed to get database for session use case: %w", err)
			return
		}
		keys, err := c.SystemKeys()
		if err != nil {
			c.initErrors["sessionUseCase"] = fmt.Errorf("failed to get system keys for session use case: %w", err)
			return
		}
		vault := c.Vault()

		sessionRepo := authRepository.NewSQLiteSessionRepository(db)
		tokens := authService.NewTokenService(keys.TokenSigningKey())

		sessions := authUseCase.NewSessionUseCase(c.config, sessionRepo, tokens, vault, c.Logger())
		vault.SetOnEvict(sessions.DropUserResidency)
		c.auth.sessions = sessions
	})
	if storedErr, exists := c.initErrors["sessionUseCase"]; exists {
		return nil, storedErr
	}
	return c.auth.sessions, nil
}

// IdentityClient returns the external identity client, or a disabled stub
// when no issuer is configured.
func (c *Container) IdentityClient() (authUseCase.IdentityClient, error) {
	c.auth.identityInit.Do(func() {
		if c.config.ExternalIdentityIssuer == "" {
			c.auth.identity = disabledIdentityClient{}
			return
		}
		client, err := identity.NewClient(c.config)
		if err != nil {
			c.initErrors["identityClient"] = fmt.Errorf("failed to create identity client: %w", err)
			return
		}
		c.auth.identity = client
	})
	if storedErr, exists := c.initErrors["identityClient"]; exists {
		return nil, storedErr
	}
	return c.auth.identity, nil
}

// LoginUseCase returns the login state machine.
func (c *Container) LoginUseCase() (*authUseCase.LoginUseCase, error) {
	c.auth.loginInit.Do(func() {
		login, err := c.initLoginUseCase()
		if err != nil {
			c.initErrors["loginUseCase"] = err
			return
		}
		c.auth.login = login
	})
	if storedErr, exists := c.initErrors["loginUseCase"]; exists {
		return nil, storedErr
	}
	return c.auth.login, nil
}

func (c *Container) initLoginUseCase() (*authUseCase.LoginUseCase, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for login use case: %w", err)
	}
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for login use case: %w", err)
	}
	keys, err := c.SystemKeys()
	if err != nil {
		return nil, fmt.Errorf("failed to get system keys for login use case: %w", err)
	}
	sessions, err := c.SessionUseCase()
	if err != nil {
		return nil, err
	}
	identityClient, err := c.IdentityClient()
	if err != nil {
		return nil, err
	}
	vault := c.Vault()

	passwords, err := authService.NewPasswordService()
	if err != nil {
		return nil, fmt.Errorf("failed to create password service: %w", err)
	}
	tokens := authService.NewTokenService(keys.TokenSigningKey())
	totp := authService.NewTOTPService()
	limiter := authService.NewFailureLimiter(
		c.config.RateLimitWindow,
		c.config.RateLimitMaxFailures,
		c.config.RateLimitLock,
	)

	login := authUseCase.NewLoginUseCase(
		authRepository.NewSQLiteUserRepository(db),
		cryptoRepository.NewSQLiteKekSaltRepository(db),
		cryptoRepository.NewSQLiteWrappedDekRepository(db),
		sessions,
		vault,
		c.kekDeriver(),
		cryptoService.NewKeyWrapper(),
		keys,
		passwords,
		tokens,
		totp,
		cryptoService.NewFieldCipher(),
		limiter,
		identityClient,
		txManager,
		c.Logger(),
	)

	share, err := c.ShareUseCase()
	if err != nil {
		return nil, err
	}
	login.SetPendingShareFlusher(share)

	if provider, err := c.MetricsProvider(); err == nil && provider != nil {
		business, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("failed to create business metrics: %w", err)
		}
		login.SetBusinessMetrics(business)
	}

	return login, nil
}

// PasswordUseCase returns password change and recovery-reset operations,
// with the destructive reset cascade wired to the hosts context.
func (c *Container) PasswordUseCase() (*authUseCase.PasswordUseCase, error) {
	c.auth.passwordInit.Do(func() {
		password, err := c.initPasswordUseCase()
		if err != nil {
			c.initErrors["passwordUseCase"] = err
			return
		}
		c.auth.password = password
	})
	if storedErr, exists := c.initErrors["passwordUseCase"]; exists {
		return nil, storedErr
	}
	return c.auth.password, nil
}

func (c *Container) initPasswordUseCase() (*authUseCase.PasswordUseCase, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for password use case: %w", err)
	}
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for password use case: %w", err)
	}
	keys, err := c.SystemKeys()
	if err != nil {
		return nil, fmt.Errorf("failed to get system keys for password use case: %w", err)
	}
	sessions, err := c.SessionUseCase()
	if err != nil {
		return nil, err
	}
	vault := c.Vault()

	passwords, err := authService.NewPasswordService()
	if err != nil {
		return nil, fmt.Errorf("failed to create password service: %w", err)
	}

	password := authUseCase.NewPasswordUseCase(
		authRepository.NewSQLiteUserRepository(db),
		cryptoRepository.NewSQLiteKekSaltRepository(db),
		cryptoRepository.NewSQLiteWrappedDekRepository(db),
		sessions,
		vault,
		c.kekDeriver(),
		cryptoService.NewKeyWrapper(),
		keys,
		passwords,
		txManager,
		c.Logger(),
	)

	hosts, err := c.HostUseCase()
	if err != nil {
		return nil, err
	}
	password.SetUserDataWiper(hosts)

	return password, nil
}

// UserUseCase returns user administration operations.
func (c *Container) UserUseCase() (*authUseCase.UserUseCase, error) {
	c.auth.usersInit.Do(func() {
		users, err := c.initUserUseCase()
		if err != nil {
			c.initErrors["userUseCase"] = err
			return
		}
		c.auth.users = users
	})
	if storedErr, exists := c.initErrors["userUseCase"]; exists {
		return nil, storedErr
	}
	return c.auth.users, nil
}

func (c *Container) initUserUseCase() (*authUseCase.UserUseCase, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for user use case: %w", err)
	}
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for user use case: %w", err)
	}
	sessions, err := c.SessionUseCase()
	if err != nil {
		return nil, err
	}

	passwords, err := authService.NewPasswordService()
	if err != nil {
		return nil, fmt.Errorf("failed to create password service: %w", err)
	}

	return authUseCase.NewUserUseCase(
		authRepository.NewSQLiteUserRepository(db),
		cryptoRepository.NewSQLiteKekSaltRepository(db),
		cryptoRepository.NewSQLiteWrappedDekRepository(db),
		sessions,
		c.Vault(),
		c.kekDeriver(),
		cryptoService.NewKeyWrapper(),
		cryptoService.NewFieldCipher(),
		passwords,
		authService.NewTOTPService(),
		txManager,
		c.Logger(),
	), nil
}

// disabledIdentityClient rejects every exchange; it stands in when no
// external provider is configured.
type disabledIdentityClient struct{}

func (disabledIdentityClient) Exchange(context.Context, string) (*authUseCase.ExternalIdentity, error) {
	return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "external identity provider is not configured")
}
