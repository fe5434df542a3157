package app

import (
	"fmt"
	"sync"

	cryptoService "github.com/sshdeck/sshdeck/internal/crypto/service"
	cryptoUsecase "github.com/sshdeck/sshdeck/internal/crypto/usecase"
	hostsRepository "github.com/sshdeck/sshdeck/internal/hosts/repository"
	hostsUseCase "github.com/sshdeck/sshdeck/internal/hosts/usecase"
)

// hostsComponents holds the lazily initialized host inventory context.
type hostsComponents struct {
	shareInit sync.Once
	share     *hostsUseCase.ShareUseCase

	hostsInit sync.Once
	hosts     *hostsUseCase.HostUseCase

	credentialsInit sync.Once
	credentials     *hostsUseCase.CredentialUseCase

	rolesInit sync.Once
	roles     *hostsUseCase.RoleUseCase
}

// ShareUseCase returns the shared-credential manager.
func (c *Container) ShareUseCase() (*hostsUseCase.ShareUseCase, error) {
	c.hosts.shareInit.Do(func() {
		share, err := c.initShareUseCase()
		if err != nil {
			c.initErrors["shareUseCase"] = err
			return
		}
		c.hosts.share = share
	})
	if storedErr, exists := c.initErrors["shareUseCase"]; exists {
		return nil, storedErr
	}
	return c.hosts.share, nil
}

func (c *Container) initShareUseCase() (*hostsUseCase.ShareUseCase, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for share use case: %w", err)
	}
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for share use case: %w", err)
	}
	keys, err := c.SystemKeys()
	if err != nil {
		return nil, fmt.Errorf("failed to get system keys for share use case: %w", err)
	}
	vault := c.Vault()

	fieldCipher := cryptoService.NewFieldCipher()

	return hostsUseCase.NewShareUseCase(
		hostsRepository.NewSQLiteHostRepository(db),
		hostsRepository.NewSQLiteCredentialRepository(db),
		hostsRepository.NewSQLiteGrantRepository(db),
		hostsRepository.NewSQLiteRoleRepository(db),
		hostsRepository.NewSQLiteSharedSecretRepository(db),
		hostsRepository.NewSQLitePendingShareRepository(db),
		vault,
		cryptoUsecase.NewRecordCrypto(fieldCipher),
		fieldCipher,
		keys,
		txManager,
		c.Logger(),
	), nil
}

// HostUseCase returns host management operations.
func (c *Container) HostUseCase() (*hostsUseCase.HostUseCase, error) {
	c.hosts.hostsInit.Do(func() {
		hosts, err := c.initHostUseCase()
		if err != nil {
			c.initErrors["hostUseCase"] = err
			return
		}
		c.hosts.hosts = hosts
	})
	if storedErr, exists := c.initErrors["hostUseCase"]; exists {
		return nil, storedErr
	}
	return c.hosts.hosts, nil
}

func (c *Container) initHostUseCase() (*hostsUseCase.HostUseCase, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for host use case: %w", err)
	}
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for host use case: %w", err)
	}
	share, err := c.ShareUseCase()
	if err != nil {
		return nil, err
	}
	vault := c.Vault()

	hostRepo := hostsRepository.NewSQLiteHostRepository(db)
	grantRepo := hostsRepository.NewSQLiteGrantRepository(db)
	roleRepo := hostsRepository.NewSQLiteRoleRepository(db)
	resolver := hostsUseCase.NewPermissionResolver(hostRepo, grantRepo, roleRepo)

	return hostsUseCase.NewHostUseCase(
		hostRepo,
		hostsRepository.NewSQLiteCredentialRepository(db),
		hostsRepository.NewSQLiteSharedSecretRepository(db),
		hostsRepository.NewSQLitePendingShareRepository(db),
		hostsRepository.NewSQLiteUserDataRepository(db),
		grantRepo,
		resolver,
		share,
		vault,
		cryptoUsecase.NewRecordCrypto(cryptoService.NewFieldCipher()),
		txManager,
		c.Logger(),
	), nil
}

// CredentialUseCase returns reusable credential operations.
func (c *Container) CredentialUseCase() (*hostsUseCase.CredentialUseCase, error) {
	c.hosts.credentialsInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["credentialUseCase"] = fmt.Errorf("failed to get database for credential use case: %w", err)
			return
		}
		vault := c.Vault()

		c.hosts.credentials = hostsUseCase.NewCredentialUseCase(
			hostsRepository.NewSQLiteCredentialRepository(db),
			vault,
			cryptoUsecase.NewRecordCrypto(cryptoService.NewFieldCipher()),
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["credentialUseCase"]; exists {
		return nil, storedErr
	}
	return c.hosts.credentials, nil
}

// RoleUseCase returns role administration operations.
func (c *Container) RoleUseCase() (*hostsUseCase.RoleUseCase, error) {
	c.hosts.rolesInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["roleUseCase"] = fmt.Errorf("failed to get database for role use case: %w", err)
			return
		}
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["roleUseCase"] = fmt.Errorf("failed to get tx manager for role use case: %w", err)
			return
		}
		share, err := c.ShareUseCase()
		if err != nil {
			c.initErrors["roleUseCase"] = err
			return
		}

		c.hosts.roles = hostsUseCase.NewRoleUseCase(
			hostsRepository.NewSQLiteRoleRepository(db),
			hostsRepository.NewSQLiteGrantRepository(db),
			share,
			txManager,
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["roleUseCase"]; exists {
		return nil, storedErr
	}
	return c.hosts.roles, nil
}
