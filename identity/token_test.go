package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, priv *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(priv)
	require.NoError(t, err)
	return s
}

func keySetFor(t *testing.T, priv *rsa.PrivateKey, kid string) jwk.Set {
	t.Helper()
	key, err := jwk.FromRaw(priv.Public())
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, kid))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(key))
	return set
}

func TestAssertionFromIDToken(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keys := keySetFor(t, priv, "kid-1")

	raw := signedToken(t, priv, "kid-1", jwt.MapClaims{
		"sub":     "u1",
		"email":   "a@b.com",
		"name":    "Ada Lovelace",
		"picture": "https://img.example/a.png",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	a, err := AssertionFromIDToken("native", raw, keys)
	require.NoError(t, err)
	require.Equal(t, "native", a.ProviderID)
	require.Equal(t, "u1", a.SubjectID)
	require.Equal(t, "a@b.com", a.Email)
	require.Equal(t, "Ada Lovelace", a.DisplayName)
	require.Equal(t, "https://img.example/a.png", a.AvatarURL)
}

func TestAssertionFromIDTokenFallsBackToPreferredUsername(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keys := keySetFor(t, priv, "kid-1")

	raw := signedToken(t, priv, "kid-1", jwt.MapClaims{
		"sub":                "u1",
		"preferred_username": "ada",
		"exp":                time.Now().Add(time.Hour).Unix(),
	})
	a, err := AssertionFromIDToken("native", raw, keys)
	require.NoError(t, err)
	require.Equal(t, "ada", a.DisplayName)
}

func TestAssertionFromIDTokenRejectsUnknownKey(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keys := keySetFor(t, other, "kid-other")
	raw := signedToken(t, priv, "kid-1", jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err = AssertionFromIDToken("native", raw, keys)
	require.Error(t, err)
}

func TestAssertionFromIDTokenRequiresSub(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keys := keySetFor(t, priv, "kid-1")

	raw := signedToken(t, priv, "kid-1", jwt.MapClaims{
		"email": "a@b.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	_, err = AssertionFromIDToken("native", raw, keys)
	require.Error(t, err)
}
