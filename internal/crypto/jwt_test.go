package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJWTManager_CreateAndVerify(t *testing.T) {
	manager, err := NewJWTManager("test-secret")
	require.NoError(t, err)

	token, err := manager.CreateToken("42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, "42", claims.UserID)
	require.Equal(t, "hushwire-server", claims.Issuer)
}

func TestJWTManager_RejectsForeignToken(t *testing.T) {
	manager, err := NewJWTManager("secret-a")
	require.NoError(t, err)
	other, err := NewJWTManager("secret-b")
	require.NoError(t, err)

	token, err := other.CreateToken("42")
	require.NoError(t, err)

	_, err = manager.VerifyToken(token)
	require.Error(t, err)
}

func TestJWTManager_RejectsGarbage(t *testing.T) {
	manager, err := NewJWTManager("test-secret")
	require.NoError(t, err)

	_, err = manager.VerifyToken("not.a.token")
	require.Error(t, err)
}

func TestJWTManager_EmptySecret(t *testing.T) {
	_, err := NewJWTManager("")
	require.Error(t, err)
}

func TestJWTManager_Deterministic(t *testing.T) {
	// The same master secret must derive the same keypair, so tokens stay
	// valid across restarts.
	a, err := NewJWTManager("same-secret")
	require.NoError(t, err)
	b, err := NewJWTManager("same-secret")
	require.NoError(t, err)

	token, err := a.CreateToken("7")
	require.NoError(t, err)

	claims, err := b.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, "7", claims.UserID)
}
