// Package integration drives the assembled server through its public HTTP
// surface: real router, real hot database, real crypto. Each test boots a
// full container against a throwaway data directory.
package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshdeck/sshdeck/internal/app"
	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	"github.com/sshdeck/sshdeck/internal/config"
	cryptoUsecase "github.com/sshdeck/sshdeck/internal/crypto/usecase"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

type env struct {
	t       *testing.T
	handler http.Handler
	db      *sql.DB
	vault   *cryptoUsecase.DekVault

	container *app.Container
}

// newEnv boots the whole application and exposes its router. Mutators
// adjust the configuration before the container is built.
func newEnv(t *testing.T, mutators ...func(*config.Config)) *env {
	t.Helper()

	cfg := &config.Config{
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

		RateLimitWindow:      time.Minute,
		RateLimitMaxFailures: 5,
		RateLimitLock:        15 * time.Minute,

		SaveQuiet:    50 * time.Millisecond,
		SaveMaxDelay: time.Second,

		InternalTokenBytes: 32,
	}
	for _, mutate := range mutators {
		mutate(cfg)
	}

	container := app.NewContainer(cfg)
	t.Cleanup(func() { _ = container.Shutdown(context.Background()) })

	server, err := container.HTTPServer()
	require.NoError(t, err)

	db, err := container.DB()
	require.NoError(t, err)

	return &env{
		t:         t,
		handler:   server.GetHandler(),
		db:        db,
		vault:     container.Vault(),
		container: container,
	}
}

// register creates a user directly through the use case, the way the
// create-user command bootstraps accounts.
func (e *env) register(name, password string, isAdmin bool) uuid.UUID {
	e.t.Helper()
	users, err := e.container.UserUseCase()
	require.NoError(e.t, err)
	user, err := users.Register(context.Background(), &authDomain.CreateUserInput{
		Name:     name,
		Password: password,
		IsAdmin:  isAdmin,
	})
	require.NoError(e.t, err)
	return user.ID
}

// request performs an HTTP request against the router. An empty token
// leaves the Authorization header unset.
func (e *env) request(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, req)
	return recorder
}

// decode unmarshals a response body into out.
func (e *env) decode(recorder *httptest.ResponseRecorder, out any) {
	e.t.Helper()
	require.NoError(e.t, json.Unmarshal(recorder.Body.Bytes(), out))
}

// login performs a password login and returns the session token.
func (e *env) login(name, password string) string {
	e.t.Helper()
	recorder := e.request(http.MethodPost, "/v1/auth/login", "", map[string]any{
		"name":         name,
		"password":     password,
		"device_class": "browser",
	})
	require.Equal(e.t, http.StatusOK, recorder.Code, recorder.Body.String())

	var resp struct {
		Token string `json:"token"`
		State string `json:"state"`
	}
	e.decode(recorder, &resp)
	require.Equal(e.t, "unlocked", resp.State)
	require.NotEmpty(e.t, resp.Token)
	return resp.Token
}

// createHost creates a password host and returns its id.
func (e *env) createHost(token, name, address, password string) string {
	e.t.Helper()
	recorder := e.request(http.MethodPost, "/v1/hosts", token, map[string]any{
		"name":      name,
		"address":   address,
		"port":      22,
		"username":  "root",
		"auth_type": "password",
		"password":  password,
	})
	require.Equal(e.t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	e.decode(recorder, &resp)
	require.NotEmpty(e.t, resp.ID)
	return resp.ID
}

// readSecret fetches one host secret field as the given session.
func (e *env) readSecret(token, hostID, field string) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.request(http.MethodGet, fmt.Sprintf("/v1/hosts/%s/secret/%s", hostID, field), token, nil)
}

func TestScenario_EncryptAtRestDecryptThroughHandler(t *testing.T) {
	e := newEnv(t)
	e.register("alice", "p@ss-word-1", false)
	token := e.login("alice", "p@ss-word-1")

	hostID := e.createHost(token, "h1", "10.0.0.1", "secret")

	// The row holds versioned ciphertext, never the plaintext.
	var stored string
	err := e.db.QueryRow(`SELECT password FROM hosts WHERE id = ?`, hostID).Scan(&stored)
	require.NoError(t, err)
	assert.Regexp(t, `^v1:`, stored)
	assert.NotContains(t, stored, "secret")

	recorder := e.readSecret(token, hostID, "password")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var secret struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	e.decode(recorder, &secret)
	assert.Equal(t, "password", secret.Field)
	assert.Equal(t, "secret", secret.Value)
}

func TestScenario_IdleEvictionLocksDataUntilUnlock(t *testing.T) {
	e := newEnv(t)
	e.register("alice", "p@ss-word-1", false)
	token := e.login("alice", "p@ss-word-1")
	hostID := e.createHost(token, "h1", "10.0.0.1", "secret")

	// The watchdog evicts the key after the idle window; forcing the
	// clock forward has the same effect.
	evicted := e.vault.EvictIdle(time.Now().Add(time.Hour))
	require.Len(t, evicted, 1)

	recorder := e.readSecret(token, hostID, "password")
	require.Equal(t, http.StatusLocked, recorder.Code, recorder.Body.String())

	var locked struct {
		Error string `json:"error"`
	}
	e.decode(recorder, &locked)
	assert.Equal(t, "data_locked", locked.Error)

	// The same session unlocks with the password and reads again.
	recorder = e.request(http.MethodPost, "/v1/auth/unlock", token, map[string]any{
		"password": "p@ss-word-1",
	})
	require.Equal(t, http.StatusNoContent, recorder.Code, recorder.Body.String())

	recorder = e.readSecret(token, hostID, "password")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
}

func TestScenario_PasswordChangePreservesData(t *testing.T) {
	e := newEnv(t)
	e.register("alice", "p@ss-word-1", false)
	token := e.login("alice", "p@ss-word-1")
	hostID := e.createHost(token, "h1", "10.0.0.1", "secret")

	recorder := e.request(http.MethodPost, "/v1/users/me/password", token, map[string]any{
		"old_password": "p@ss-word-1",
		"new_password": "n3w-password",
	})
	require.Equal(t, http.StatusNoContent, recorder.Code, recorder.Body.String())

	// Every session died with the old password, this one included.
	recorder = e.readSecret(token, hostID, "password")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// The old password is rejected outright.
	recorder = e.request(http.MethodPost, "/v1/auth/login", "", map[string]any{
		"name":         "alice",
		"password":     "p@ss-word-1",
		"device_class": "browser",
	})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// The DEK survived the rewrap: the new password opens the old data.
	token = e.login("alice", "n3w-password")
	recorder = e.readSecret(token, hostID, "password")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var secret struct {
		Value string `json:"value"`
	}
	e.decode(recorder, &secret)
	assert.Equal(t, "secret", secret.Value)
}

func TestScenario_DestructiveResetWipesEncryptedData(t *testing.T) {
	e := newEnv(t)
	aliceID := e.register("alice", "p@ss-word-1", false)
	e.register("root", "admin-password", true)

	aliceToken := e.login("alice", "p@ss-word-1")
	e.createHost(aliceToken, "h1", "10.0.0.1", "secret")

	// Alice walks away; the reset happens while no session is open.
	recorder := e.request(http.MethodPost, "/v1/auth/logout", aliceToken, nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	adminToken := e.login("root", "admin-password")
	recorder = e.request(http.MethodPost, fmt.Sprintf("/v1/users/%s/password/reset", aliceID), adminToken, map[string]any{
		"new_password": "recover-123",
		"destructive":  true,
	})
	require.Equal(t, http.StatusNoContent, recorder.Code, recorder.Body.String())

	// Alice is back with a fresh DEK and none of her old records.
	aliceToken = e.login("alice", "recover-123")
	recorder = e.request(http.MethodGet, "/v1/hosts", aliceToken, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var list struct {
		Data []json.RawMessage `json:"data"`
	}
	e.decode(recorder, &list)
	assert.Empty(t, list.Data)

	var remaining int
	err := e.db.QueryRow(`SELECT COUNT(*) FROM hosts WHERE user_id = ?`, aliceID).Scan(&remaining)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestScenario_ShareToOfflineGrantee(t *testing.T) {
	e := newEnv(t)
	e.register("alice", "p@ss-word-1", false)
	bobID := e.register("bob", "b0b-password", false)

	aliceToken := e.login("alice", "p@ss-word-1")
	hostID := e.createHost(aliceToken, "h1", "10.0.0.1", "secret")

	recorder := e.request(http.MethodPost, fmt.Sprintf("/v1/hosts/%s/grants", hostID), aliceToken, map[string]any{
		"principal_kind": "user",
		"principal_id":   bobID.String(),
		"level":          "read",
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	// Bob has never unlocked, so the share parks in pending_shares.
	var pending int
	err := e.db.QueryRow(`SELECT COUNT(*) FROM pending_shares WHERE grantee_user_id = ?`, bobID).Scan(&pending)
	require.NoError(t, err)
	require.Positive(t, pending)

	// His first login consumes the pending rows.
	bobToken := e.login("bob", "b0b-password")

	err = e.db.QueryRow(`SELECT COUNT(*) FROM pending_shares WHERE grantee_user_id = ?`, bobID).Scan(&pending)
	require.NoError(t, err)
	assert.Zero(t, pending)

	recorder = e.readSecret(bobToken, hostID, "password")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var secret struct {
		Value string `json:"value"`
	}
	e.decode(recorder, &secret)
	assert.Equal(t, "secret", secret.Value)
}

func TestScenario_LoginRateLimitRecovers(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) {
		cfg.RateLimitLock = 2 * time.Second
	})
	e.register("alice", "p@ss-word-1", false)

	attempt := func(password string) *httptest.ResponseRecorder {
		raw, err := json.Marshal(map[string]any{
			"name":         "alice",
			"password":     password,
			"device_class": "browser",
		})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.1:4455"
		recorder := httptest.NewRecorder()
		e.handler.ServeHTTP(recorder, req)
		return recorder
	}

	for i := 0; i < 5; i++ {
		recorder := attempt("wrong-password")
		require.Equal(t, http.StatusUnauthorized, recorder.Code, recorder.Body.String())
	}

	// The sixth attempt is refused before the password is even checked.
	recorder := attempt("p@ss-word-1")
	require.Equal(t, http.StatusTooManyRequests, recorder.Code, recorder.Body.String())
	assert.NotEmpty(t, recorder.Header().Get("Retry-After"))

	var limited struct {
		Error            string `json:"error"`
		RemainingSeconds int    `json:"remaining_seconds"`
	}
	e.decode(recorder, &limited)
	assert.Equal(t, "rate_limited", limited.Error)
	assert.GreaterOrEqual(t, limited.RemainingSeconds, 1)

	time.Sleep(2100 * time.Millisecond)

	recorder = attempt("p@ss-word-1")
	assert.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
}

func TestScenario_GrantRevocationCutsAccess(t *testing.T) {
	e := newEnv(t)
	e.register("alice", "p@ss-word-1", false)
	bobID := e.register("bob", "b0b-password", false)

	aliceToken := e.login("alice", "p@ss-word-1")
	bobToken := e.login("bob", "b0b-password")
	hostID := e.createHost(aliceToken, "h1", "10.0.0.1", "secret")

	recorder := e.request(http.MethodPost, fmt.Sprintf("/v1/hosts/%s/grants", hostID), aliceToken, map[string]any{
		"principal_kind": "user",
		"principal_id":   bobID.String(),
		"level":          "read",
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var grant struct {
		ID string `json:"id"`
	}
	e.decode(recorder, &grant)

	recorder = e.readSecret(bobToken, hostID, "password")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder = e.request(http.MethodDelete, "/v1/grants/"+grant.ID, aliceToken, nil)
	require.Equal(t, http.StatusNoContent, recorder.Code, recorder.Body.String())

	recorder = e.readSecret(bobToken, hostID, "password")
	assert.Equal(t, http.StatusForbidden, recorder.Code, recorder.Body.String())
}
