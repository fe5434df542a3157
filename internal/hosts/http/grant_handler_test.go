package http

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantFlow_ShareAndRead(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "password-123", false)
	bob := env.register(t, "bob", "password-123", false)
	aliceToken := env.mustLogin(t, "alice", "password-123")
	bobToken := env.mustLogin(t, "bob", "password-123")

	created := env.createHost(t, aliceToken, "web-1")
	hostID := created["id"].(string)

	w := env.request(t, http.MethodPost, "/v1/hosts/"+hostID+"/grants", aliceToken, gin.H{
		"principal_kind": "user",
		"principal_id":   bob.ID.String(),
		"level":          "read",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	grant := decodeBody(t, w)

	// Bob now sees the host in their shared list with the owner's secrets.
	w = env.request(t, http.MethodGet, "/v1/hosts/shared", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	shared := decodeBody(t, w)["hosts"].([]any)
	require.Len(t, shared, 1)
	assert.Equal(t, "host-password", shared[0].(map[string]any)["password"])

	// And can fetch the lazy private key through the secret endpoint.
	w = env.request(t, http.MethodGet, "/v1/hosts/"+hostID+"/secret/private_key", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w)["value"], "BEGIN OPENSSH PRIVATE KEY")

	// A read grant does not allow writes.
	w = env.request(t, http.MethodPut, "/v1/hosts/"+hostID, bobToken, gin.H{
		"name":      "web-1",
		"address":   "10.0.0.1",
		"auth_type": "password",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Revoking cuts access immediately.
	grantID := grant["id"].(string)
	w = env.request(t, http.MethodDelete, "/v1/grants/"+grantID, aliceToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.request(t, http.MethodGet, "/v1/hosts/"+hostID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGrantCreate_NotOwner(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "password-123", false)
	bob := env.register(t, "bob", "password-123", false)
	aliceToken := env.mustLogin(t, "alice", "password-123")
	bobToken := env.mustLogin(t, "bob", "password-123")

	created := env.createHost(t, aliceToken, "web-1")
	hostID := created["id"].(string)

	w := env.request(t, http.MethodPost, "/v1/hosts/"+hostID+"/grants", bobToken, gin.H{
		"principal_kind": "user",
		"principal_id":   bob.ID.String(),
		"level":          "read",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGrantCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "password-123", false)
	token := env.mustLogin(t, "alice", "password-123")
	created := env.createHost(t, token, "web-1")
	hostID := created["id"].(string)

	w := env.request(t, http.MethodPost, "/v1/hosts/"+hostID+"/grants", token, gin.H{
		"principal_kind": "group",
		"principal_id":   "00000000-0000-0000-0000-000000000001",
		"level":          "read",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.request(t, http.MethodPost, "/v1/hosts/"+hostID+"/grants", token, gin.H{
		"principal_kind": "user",
		"principal_id":   "not-a-uuid",
		"level":          "read",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGrantList_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "password-123", false)
	bob := env.register(t, "bob", "password-123", false)
	aliceToken := env.mustLogin(t, "alice", "password-123")
	bobToken := env.mustLogin(t, "bob", "password-123")

	created := env.createHost(t, aliceToken, "web-1")
	hostID := created["id"].(string)

	w := env.request(t, http.MethodPost, "/v1/hosts/"+hostID+"/grants", aliceToken, gin.H{
		"principal_kind": "user",
		"principal_id":   bob.ID.String(),
		"level":          "write",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.request(t, http.MethodGet, "/v1/hosts/"+hostID+"/grants", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["grants"].([]any), 1)

	w = env.request(t, http.MethodGet, "/v1/hosts/"+hostID+"/grants", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
