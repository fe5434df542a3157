package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, uint32(65536), cfg.KDFMemoryKiB)
	assert.Equal(t, uint32(3), cfg.KDFIterations)
	assert.Equal(t, uint8(4), cfg.KDFParallelism)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTLBrowser)
	assert.Equal(t, 30*24*time.Hour, cfg.SessionTTLDevice)
	assert.Equal(t, 50, cfg.SessionCap)
	assert.Equal(t, 30*time.Minute, cfg.DekIdleEvict)
	assert.Equal(t, 10*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 5, cfg.RateLimitMaxFailures)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitLock)
	assert.Equal(t, 500*time.Millisecond, cfg.SaveQuiet)
	assert.Equal(t, 5*time.Second, cfg.SaveMaxDelay)
	assert.Equal(t, 10*time.Second, cfg.ExternalIdentityTimeout)
	assert.Equal(t, 32, cfg.InternalTokenBytes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KDF_MEMORY_KIB", "8192")
	t.Setenv("SESSION_TTL_BROWSER", "3600")
	t.Setenv("RATE_LIMIT_MAX_FAILURES", "3")
	t.Setenv("SAVE_QUIET_MS", "100")

	cfg := Load()

	assert.Equal(t, uint32(8192), cfg.KDFMemoryKiB)
	assert.Equal(t, time.Hour, cfg.SessionTTLBrowser)
	assert.Equal(t, 3, cfg.RateLimitMaxFailures)
	assert.Equal(t, 100*time.Millisecond, cfg.SaveQuiet)
}

func TestSessionTTL(t *testing.T) {
	cfg := Load()

	assert.Equal(t, cfg.SessionTTLBrowser, cfg.SessionTTL("browser"))
	assert.Equal(t, cfg.SessionTTLDevice, cfg.SessionTTL("desktop"))
	assert.Equal(t, cfg.SessionTTLDevice, cfg.SessionTTL("mobile"))
}

func TestSnapshotPath(t *testing.T) {
	t.Setenv("DATA_DIR", "/var/lib/sshdeck")

	cfg := Load()

	assert.Equal(t, "/var/lib/sshdeck/sshdeck.db", cfg.SnapshotPath())
	assert.Equal(t, "/var/lib/sshdeck/system.key", cfg.SystemKeyPath())
}

func TestGetGinMode(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	assert.Equal(t, "debug", cfg.GetGinMode())

	cfg.LogLevel = "info"
	assert.Equal(t, "release", cfg.GetGinMode())
}
