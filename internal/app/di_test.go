package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshdeck/sshdeck/internal/config"
)

// testConfig returns a configuration that boots the full stack against a
// throwaway data directory with cheap key derivation.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ServerHost:   "127.0.0.1",
		ServerPort:   0,
		DataDir:      t.TempDir(),
		SnapshotFile: "sshdeck.db",
		LogLevel:     "error",

		KDFMemoryKiB:   8 * 1024,
		KDFIterations:  1,
		KDFParallelism: 1,

		SessionTTLBrowser: time.Hour,
		SessionTTLDevice:  2 * time.Hour,
		SessionCap:        3,
		DekIdleEvict:      30 * time.Minute,

		RateLimitWindow:      10 * time.Minute,
		RateLimitMaxFailures: 3,
		RateLimitLock:        15 * time.Minute,

		SaveQuiet:    50 * time.Millisecond,
		SaveMaxDelay: time.Second,

		InternalTokenBytes: 32,
	}
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig(t)
	container := NewContainer(cfg)

	require.NotNil(t, container)
	assert.Equal(t, cfg, container.Config())
}

func TestContainer_LoggerIsSingleton(t *testing.T) {
	container := NewContainer(testConfig(t))

	logger := container.Logger()
	require.NotNil(t, logger)
	assert.Same(t, logger, container.Logger())
}

func TestContainer_HTTPServerBootsFullStack(t *testing.T) {
	container := NewContainer(testConfig(t))
	t.Cleanup(func() { _ = container.Shutdown(context.Background()) })

	server, err := container.HTTPServer()
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.NotNil(t, server.GetHandler())

	// Metrics are disabled in the test config.
	metricsServer, err := container.MetricsServer()
	require.NoError(t, err)
	assert.Nil(t, metricsServer)

	// The data directory now holds the system key file.
	keys, err := container.SystemKeys()
	require.NoError(t, err)
	require.NotNil(t, keys)
	assert.FileExists(t, filepath.Join(container.Config().DataDir, "system.key"))
}

func TestContainer_ComponentsAreSingletons(t *testing.T) {
	container := NewContainer(testConfig(t))
	t.Cleanup(func() { _ = container.Shutdown(context.Background()) })

	login1, err := container.LoginUseCase()
	require.NoError(t, err)
	login2, err := container.LoginUseCase()
	require.NoError(t, err)
	assert.Same(t, login1, login2)

	share1, err := container.ShareUseCase()
	require.NoError(t, err)
	share2, err := container.ShareUseCase()
	require.NoError(t, err)
	assert.Same(t, share1, share2)
}

func TestContainer_ShutdownFlushesSnapshot(t *testing.T) {
	container := NewContainer(testConfig(t))

	_, err := container.HTTPServer()
	require.NoError(t, err)

	require.NoError(t, container.Shutdown(context.Background()))
	assert.FileExists(t, container.Config().SnapshotPath())
}
