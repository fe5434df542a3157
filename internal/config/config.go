// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// ServerHost is the host address the server will bind to.
	ServerHost string
	// ServerPort is the port number the server will listen on.
	ServerPort int

	// DataDir is the directory holding the database snapshot and the system key file.
	DataDir string
	// SnapshotFile is the file name of the database snapshot inside DataDir.
	SnapshotFile string

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// KDFMemoryKiB is the argon2id memory parameter for KEK derivation.
	KDFMemoryKiB uint32
	// KDFIterations is the argon2id time parameter for KEK derivation.
	KDFIterations uint32
	// KDFParallelism is the argon2id parallelism parameter for KEK derivation.
	KDFParallelism uint8

	// SessionTTLBrowser is the lifetime of browser sessions.
	SessionTTLBrowser time.Duration
	// SessionTTLDevice is the lifetime of desktop and mobile sessions.
	SessionTTLDevice time.Duration
	// SessionCap is the soft cap of live sessions per user.
	SessionCap int

	// DekIdleEvict is how long a user's data key may sit untouched in memory
	// before the vault watchdog wipes it.
	DekIdleEvict time.Duration

	// RateLimitWindow is the sliding window for counting authentication failures.
	RateLimitWindow time.Duration
	// RateLimitMaxFailures is the number of failures within the window that triggers a lock.
	RateLimitMaxFailures int
	// RateLimitLock is how long a locked key stays locked.
	RateLimitLock time.Duration

	// SaveQuiet is the debounce window of the save coordinator.
	SaveQuiet time.Duration
	// SaveMaxDelay is the hard ceiling after which a flush is forced.
	SaveMaxDelay time.Duration

	// ExternalIdentityIssuer is the base URL of the external identity provider.
	ExternalIdentityIssuer string
	// ExternalIdentityClientID is the OAuth2 client id for the provider.
	ExternalIdentityClientID string
	// ExternalIdentityClientSecret is the OAuth2 client secret for the provider.
	ExternalIdentityClientSecret string
	// ExternalIdentityRedirectURL is the redirect URL registered with the provider.
	ExternalIdentityRedirectURL string
	// ExternalIdentityTimeout bounds every outbound call to the provider.
	ExternalIdentityTimeout time.Duration

	// InternalTokenBytes is the length of the loopback RPC token.
	InternalTokenBytes int

	// KMSKeyURI optionally seals the system key file with an external KMS.
	KMSKeyURI string

	// RateLimitTokenEnabled indicates whether IP-based limiting of the login endpoint is enabled.
	RateLimitTokenEnabled bool
	// RateLimitTokenRequestsPerSec is the number of login requests allowed per second per IP.
	RateLimitTokenRequestsPerSec float64
	// RateLimitTokenBurst is the burst size for the login endpoint limiter.
	RateLimitTokenBurst int

	// CORSEnabled indicates whether CORS is enabled.
	CORSEnabled bool
	// CORSAllowOrigins is a comma-separated list of allowed origins for CORS.
	CORSAllowOrigins string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsPort is the port number for the metrics server.
	MetricsPort int
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		// Server configuration
		ServerHost: env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort: env.GetInt("SERVER_PORT", 8080),

		// Storage
		DataDir:      env.GetString("DATA_DIR", "./data"),
		SnapshotFile: env.GetString("SNAPSHOT_FILE", "sshdeck.db"),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// KEK derivation
		KDFMemoryKiB:   uint32(env.GetInt("KDF_MEMORY_KIB", 65536)),
		KDFIterations:  uint32(env.GetInt("KDF_ITERATIONS", 3)),
		KDFParallelism: uint8(env.GetInt("KDF_PARALLELISM", 4)),

		// Sessions
		SessionTTLBrowser: env.GetDuration("SESSION_TTL_BROWSER", 7*24*3600, time.Second),
		SessionTTLDevice:  env.GetDuration("SESSION_TTL_DEVICE", 30*24*3600, time.Second),
		SessionCap:        env.GetInt("SESSION_CAP", 50),

		// Data key vault
		DekIdleEvict: env.GetDuration("DEK_IDLE_EVICT_SECONDS", 1800, time.Second),

		// Authentication rate limiting
		RateLimitWindow:      env.GetDuration("RATE_LIMIT_WINDOW_SECONDS", 600, time.Second),
		RateLimitMaxFailures: env.GetInt("RATE_LIMIT_MAX_FAILURES", 5),
		RateLimitLock:        env.GetDuration("RATE_LIMIT_LOCK_SECONDS", 900, time.Second),

		// Save coordinator
		SaveQuiet:    env.GetDuration("SAVE_QUIET_MS", 500, time.Millisecond),
		SaveMaxDelay: env.GetDuration("SAVE_MAX_DELAY_MS", 5000, time.Millisecond),

		// External identity provider
		ExternalIdentityIssuer:       env.GetString("EXTERNAL_IDENTITY_ISSUER", ""),
		ExternalIdentityClientID:     env.GetString("EXTERNAL_IDENTITY_CLIENT_ID", ""),
		ExternalIdentityClientSecret: env.GetString("EXTERNAL_IDENTITY_CLIENT_SECRET", ""),
		ExternalIdentityRedirectURL:  env.GetString("EXTERNAL_IDENTITY_REDIRECT_URL", ""),
		ExternalIdentityTimeout:      env.GetDuration("EXTERNAL_IDENTITY_TIMEOUT_SECONDS", 10, time.Second),

		// Loopback RPC
		InternalTokenBytes: env.GetInt("INTERNAL_TOKEN_BYTES", 32),

		// KMS sealing of the system key file
		KMSKeyURI: env.GetString("KMS_KEY_URI", ""),

		// IP-based limiting of the login endpoint
		RateLimitTokenEnabled:        env.GetBool("RATE_LIMIT_TOKEN_ENABLED", true),
		RateLimitTokenRequestsPerSec: env.GetFloat64("RATE_LIMIT_TOKEN_REQUESTS_PER_SEC", 5.0),
		RateLimitTokenBurst:          env.GetInt("RATE_LIMIT_TOKEN_BURST", 10),

		// CORS
		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "sshdeck"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8081),
	}
}

// SnapshotPath returns the full path of the database snapshot file.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, c.SnapshotFile)
}

// SystemKeyPath returns the full path of the system root key file.
func (c *Config) SystemKeyPath() string {
	return filepath.Join(c.DataDir, "system.key")
}

// SessionTTL returns the session lifetime for a device class.
func (c *Config) SessionTTL(deviceClass string) time.Duration {
	if deviceClass == "browser" {
		return c.SessionTTLBrowser
	}
	return c.SessionTTLDevice
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	switch c.LogLevel {
	case "debug":
		return "debug"
	default:
		return "release"
	}
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envFile := filepath.Join(dir, ".env")
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
