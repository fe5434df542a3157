package http

import (
	"log/slog"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	authHTTP "github.com/sshdeck/sshdeck/internal/auth/http"
	authUseCase "github.com/sshdeck/sshdeck/internal/auth/usecase"
	"github.com/sshdeck/sshdeck/internal/config"
	cryptoService "github.com/sshdeck/sshdeck/internal/crypto/service"
	hostsHTTP "github.com/sshdeck/sshdeck/internal/hosts/http"
	"github.com/sshdeck/sshdeck/internal/metrics"
)

// RouterDeps carries everything the router needs: the handlers for each
// bounded context and the use cases backing the shared middleware.
type RouterDeps struct {
	Config *config.Config
	Logger *slog.Logger

	LoginHandler      *authHTTP.LoginHandler
	SessionHandler    *authHTTP.SessionHandler
	UserHandler       *authHTTP.UserHandler
	HostHandler       *hostsHTTP.HostHandler
	GrantHandler      *hostsHTTP.GrantHandler
	CredentialHandler *hostsHTTP.CredentialHandler
	RoleHandler       *hostsHTTP.RoleHandler
	InternalHandler   *hostsHTTP.InternalHandler

	SessionUseCase *authUseCase.SessionUseCase
	UserUseCase    *authUseCase.UserUseCase
	SystemKeys     cryptoService.SystemKeys

	// MetricsProvider is optional; nil disables HTTP metrics collection.
	MetricsProvider *metrics.Provider

	// MarkDirty is called after every successful mutating request; nil
	// disables snapshot scheduling.
	MarkDirty func()

	// ShuttingDown flips the readiness probe once shutdown begins.
	ShuttingDown <-chan struct{}
}

// NewRouter assembles the API router.
//
// Route protection has three layers: authn (a valid session), gate (the
// session's data key is resident and every login step cleared), and admin.
// Everything that reads or writes encrypted rows sits behind the gate;
// session and password management deliberately does not, so a locked client
// can still log out or change its password. The /internal group bypasses
// sessions entirely and is guarded by the loopback token.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(RecoveryMiddleware(deps.Logger))
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(deps.Logger))

	if corsMiddleware := createCORSMiddleware(
		deps.Config.CORSEnabled,
		deps.Config.CORSAllowOrigins,
		deps.Logger,
	); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if deps.Config.MetricsEnabled && deps.MetricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(
			deps.MetricsProvider.MeterProvider(),
			deps.Config.MetricsNamespace,
		))
	}

	if deps.MarkDirty != nil {
		router.Use(DirtyMarkMiddleware(deps.MarkDirty))
	}

	router.GET("/health", HealthHandler)
	router.GET("/ready", ReadinessHandler(deps.ShuttingDown))

	authn := authHTTP.AuthenticationMiddleware(deps.SessionUseCase, deps.UserUseCase, deps.Logger)
	gate := authHTTP.DataGateMiddleware(deps.SessionUseCase, deps.Logger)
	admin := authHTTP.AdminMiddleware(deps.Logger)
	internalToken := authHTTP.InternalTokenMiddleware(deps.SystemKeys, deps.Logger)

	v1 := router.Group("/v1")

	login := v1.Group("/auth")
	if deps.Config.RateLimitTokenEnabled {
		limit := authHTTP.LoginRateLimitMiddleware(
			deps.Config.RateLimitTokenRequestsPerSec,
			deps.Config.RateLimitTokenBurst,
			deps.Logger,
		)
		login.POST("/login", limit, deps.LoginHandler.PasswordLoginHandler)
		login.POST("/external", limit, deps.LoginHandler.ExternalLoginHandler)
	} else {
		login.POST("/login", deps.LoginHandler.PasswordLoginHandler)
		login.POST("/external", deps.LoginHandler.ExternalLoginHandler)
	}
	login.POST("/totp", authn, deps.LoginHandler.TOTPHandler)
	login.POST("/unlock", authn, deps.LoginHandler.UnlockHandler)
	login.POST("/logout", authn, deps.LoginHandler.LogoutHandler)

	v1.GET("/sessions", authn, deps.SessionHandler.ListHandler)
	v1.DELETE("/sessions/:id", authn, deps.SessionHandler.RevokeHandler)
	v1.GET("/admin/sessions", authn, admin, deps.SessionHandler.ListAllHandler)

	v1.GET("/users/me", authn, deps.UserHandler.MeHandler)
	v1.POST("/users/me/password", authn, deps.UserHandler.ChangePasswordHandler)
	v1.POST("/users/me/password/reset", authn, gate, deps.UserHandler.SelfResetPasswordHandler)
	v1.POST("/users/me/totp", authn, gate, deps.UserHandler.StartTOTPHandler)
	v1.POST("/users/me/totp/confirm", authn, gate, deps.UserHandler.ConfirmTOTPHandler)
	v1.POST("/users/me/totp/disable", authn, gate, deps.UserHandler.DisableTOTPHandler)

	v1.POST("/users", authn, admin, deps.UserHandler.CreateHandler)
	v1.GET("/users", authn, admin, deps.UserHandler.ListHandler)
	v1.GET("/users/:id", authn, admin, deps.UserHandler.GetHandler)
	v1.PUT("/users/:id/admin", authn, admin, deps.UserHandler.SetAdminHandler)
	v1.DELETE("/users/:id", authn, admin, deps.UserHandler.DeleteHandler)
	v1.POST("/users/:id/password/reset", authn, admin, deps.UserHandler.ResetPasswordHandler)

	v1.POST("/hosts", authn, gate, deps.HostHandler.CreateHandler)
	v1.GET("/hosts", authn, gate, deps.HostHandler.ListHandler)
	v1.GET("/hosts/shared", authn, gate, deps.HostHandler.ListSharedHandler)
	v1.GET("/hosts/:id", authn, gate, deps.HostHandler.GetHandler)
	v1.GET("/hosts/:id/secret/:field", authn, gate, deps.HostHandler.GetSecretHandler)
	v1.PUT("/hosts/:id", authn, gate, deps.HostHandler.UpdateHandler)
	v1.DELETE("/hosts/:id", authn, gate, deps.HostHandler.DeleteHandler)

	v1.POST("/hosts/:id/grants", authn, gate, deps.GrantHandler.CreateHandler)
	v1.GET("/hosts/:id/grants", authn, gate, deps.GrantHandler.ListHandler)
	v1.DELETE("/grants/:id", authn, gate, deps.GrantHandler.RevokeHandler)

	v1.POST("/credentials", authn, gate, deps.CredentialHandler.CreateHandler)
	v1.GET("/credentials", authn, gate, deps.CredentialHandler.ListHandler)
	v1.GET("/credentials/:id", authn, gate, deps.CredentialHandler.GetHandler)
	v1.GET("/credentials/:id/secret/:field", authn, gate, deps.CredentialHandler.GetSecretHandler)
	v1.PUT("/credentials/:id", authn, gate, deps.CredentialHandler.UpdateHandler)
	v1.DELETE("/credentials/:id", authn, gate, deps.CredentialHandler.DeleteHandler)

	v1.GET("/roles", authn, deps.RoleHandler.ListHandler)
	v1.POST("/roles", authn, admin, deps.RoleHandler.CreateHandler)
	v1.DELETE("/roles/:id", authn, admin, deps.RoleHandler.DeleteHandler)
	v1.GET("/roles/:id/members", authn, admin, deps.RoleHandler.MembersHandler)
	v1.POST("/roles/:id/members", authn, admin, deps.RoleHandler.AssignHandler)
	v1.DELETE("/roles/:id/members", authn, admin, deps.RoleHandler.UnassignHandler)

	// Loopback endpoints for co-located workers (tunnel runner, collectors).
	internal := router.Group("/internal/v1", internalToken)
	internal.GET("/users/:id/autostart-hosts", deps.InternalHandler.AutostartHostsHandler)

	return router
}
