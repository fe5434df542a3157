package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthentication_MissingHeader(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthentication_MalformedHeader(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "correct horse battery", false)
	token := env.mustLogin(t, "alice", "correct horse battery")

	// A bare token without the Bearer prefix is refused.
	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Case-insensitive prefix is accepted.
	req = httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "BEARER "+token)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthentication_GarbageToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/v1/users/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthentication_ValidToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "correct horse battery", false)
	token := env.mustLogin(t, "alice", "correct horse battery")

	w := env.request(t, http.MethodGet, "/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"alice"`)
}

func TestDataGate_OpenWhenUnlocked(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "correct horse battery", false)
	token := env.mustLogin(t, "alice", "correct horse battery")

	w := env.request(t, http.MethodGet, "/v1/gated", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDataGate_LockedAfterEviction(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice", "correct horse battery", false)
	token := env.mustLogin(t, "alice", "correct horse battery")

	// Simulate an idle eviction: the key leaves the vault, the session
	// survives.
	env.sessions.DropUserResidency(user.ID)

	w := env.request(t, http.MethodGet, "/v1/gated", token, nil)
	require.Equal(t, http.StatusLocked, w.Code)
	assert.Contains(t, w.Body.String(), "data_locked")

	// The session itself still authenticates.
	w = env.request(t, http.MethodGet, "/v1/users/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdmin_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "correct horse battery", false)
	token := env.mustLogin(t, "alice", "correct horse battery")

	w := env.request(t, http.MethodGet, "/v1/users", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdmin_Allowed(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "root", "admin password 1", true)
	token := env.mustLogin(t, "root", "admin password 1")

	w := env.request(t, http.MethodGet, "/v1/users", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
