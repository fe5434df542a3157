package app

import (
	"fmt"
	"sync"

	authHTTP "github.com/sshdeck/sshdeck/internal/auth/http"
	hostsHTTP "github.com/sshdeck/sshdeck/internal/hosts/http"
	"github.com/sshdeck/sshdeck/internal/http"
)

// webComponents holds the lazily initialized HTTP servers.
type webComponents struct {
	httpServerInit sync.Once
	httpServer     *http.Server

	metricsServerInit sync.Once
	metricsServer     *http.MetricsServer
}

// HTTPServer returns the API server with the full router assembled.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.web.httpServerInit.Do(func() {
		server, err := c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		c.web.httpServer = server
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.web.httpServer, nil
}

func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	login, err := c.LoginUseCase()
	if err != nil {
		return nil, err
	}
	sessions, err := c.SessionUseCase()
	if err != nil {
		return nil, err
	}
	users, err := c.UserUseCase()
	if err != nil {
		return nil, err
	}
	password, err := c.PasswordUseCase()
	if err != nil {
		return nil, err
	}
	hosts, err := c.HostUseCase()
	if err != nil {
		return nil, err
	}
	share, err := c.ShareUseCase()
	if err != nil {
		return nil, err
	}
	credentials, err := c.CredentialUseCase()
	if err != nil {
		return nil, err
	}
	roles, err := c.RoleUseCase()
	if err != nil {
		return nil, err
	}
	keys, err := c.SystemKeys()
	if err != nil {
		return nil, err
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	coordinator, err := c.SaveCoordinator()
	if err != nil {
		return nil, err
	}

	router := http.NewRouter(http.RouterDeps{
		Config: c.config,
		Logger: logger,

		LoginHandler:      authHTTP.NewLoginHandler(login, logger),
		SessionHandler:    authHTTP.NewSessionHandler(sessions, logger),
		UserHandler:       authHTTP.NewUserHandler(users, password, logger),
		HostHandler:       hostsHTTP.NewHostHandler(hosts, logger),
		GrantHandler:      hostsHTTP.NewGrantHandler(share, logger),
		CredentialHandler: hostsHTTP.NewCredentialHandler(credentials, logger),
		RoleHandler:       hostsHTTP.NewRoleHandler(roles, logger),
		InternalHandler:   hostsHTTP.NewInternalHandler(hosts, logger),

		SessionUseCase:  sessions,
		UserUseCase:     users,
		SystemKeys:      keys,
		MetricsProvider: provider,
		MarkDirty:       coordinator.MarkDirty,
		ShuttingDown:    c.shuttingDown,
	})

	return http.NewServer(c.config.ServerHost, c.config.ServerPort, logger, router), nil
}

// MetricsServer returns the Prometheus scrape server, or nil when metrics
// are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.web.metricsServerInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
			return
		}
		c.web.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.web.metricsServer, nil
}
