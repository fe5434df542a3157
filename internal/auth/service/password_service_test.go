package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordService_HashVerify(t *testing.T) {
	svc, err := NewPasswordService()
	require.NoError(t, err)

	verifier, err := svc.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotContains(t, verifier, "correct horse")

	assert.True(t, svc.Verify("correct horse battery staple", verifier))
	assert.False(t, svc.Verify("wrong password", verifier))
}

func TestPasswordService_VerifyMalformedVerifier(t *testing.T) {
	svc, err := NewPasswordService()
	require.NoError(t, err)

	assert.False(t, svc.Verify("anything", "not-a-verifier"))
	assert.False(t, svc.Verify("anything", ""))
}

func TestPasswordService_DummyVerify(t *testing.T) {
	svc, err := NewPasswordService()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		svc.DummyVerify("probe password")
	})
}
