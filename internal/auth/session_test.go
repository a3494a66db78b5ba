// internal/auth/session_test.go
package auth

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndAuthenticateRoundTrip(t *testing.T) {
	Init()

	token, err := CreateJWT(42)
	require.NoError(t, err)

	userID, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestInitFromPathVerifiesExternallyMintedTokens(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	dir := t.TempDir()
	pubPath := filepath.Join(dir, "jwt.pub")
	privPath := filepath.Join(dir, "jwt.key")
	require.NoError(t, os.WriteFile(pubPath, pub, 0o600))
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))

	// Mint a token the way the external auth service does, with its own
	// copy of the private key.
	external := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{"sub": "7"})
	tokenString, err := external.SignedString(priv)
	require.NoError(t, err)

	require.NoError(t, InitFromPath(privPath, pubPath))
	userID, err := AuthenticateJWT(tokenString)
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)

	// Verify-only mode: public key alone still authenticates, but cannot
	// sign.
	require.NoError(t, InitFromPath("", pubPath))
	userID, err = AuthenticateJWT(tokenString)
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
	_, err = CreateJWT(7)
	assert.Error(t, err)
}

func TestAuthenticateRejectsForeignAndGarbageTokens(t *testing.T) {
	Init()
	foreign, err := CreateJWT(7)
	require.NoError(t, err)

	Init() // rotate keys: previously minted tokens no longer verify
	_, err = AuthenticateJWT(foreign)
	assert.Error(t, err)

	_, err = AuthenticateJWT("not-a-token")
	assert.Error(t, err)
}

func TestAuthenticateRejectsNonNumericSubject(t *testing.T) {
	Init()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{"sub": "alice"})
	signed, err := token.SignedString(privateKey)
	require.NoError(t, err)

	_, err = AuthenticateJWT(signed)
	assert.Error(t, err)
}
